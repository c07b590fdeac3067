package scoring

import (
	"math"
	"sort"

	"github.com/mind-engage/iqscore/internal/questions"
)

type CategoryScore struct {
	Category   questions.Category `json:"category"`
	Label      string             `json:"label"`
	Correct    int                `json:"correct"`
	Total      int                `json:"total"`
	Percentage int                `json:"percentage"`
}

type DifficultyScore struct {
	Level   string `json:"level"` // easy, medium, hard
	Correct int    `json:"correct"`
	Total   int    `json:"total"`
}

// Report is the detailed breakdown shown on the purchased results page.
type Report struct {
	Result
	Classification string            `json:"classification"`
	Correct        int               `json:"correct"`
	Total          int               `json:"total"`
	Categories     []CategoryScore   `json:"categories"`
	Strongest      *CategoryScore    `json:"strongest,omitempty"`
	Weakest        *CategoryScore    `json:"weakest,omitempty"`
	Difficulty     []DifficultyScore `json:"difficulty"`
	AverageTime    int               `json:"averageTimeSeconds"`
	Timeouts       int               `json:"timeouts"`
	LongestStreak  int               `json:"longestStreak"`
}

func difficultyLevel(d int) string {
	switch {
	case d <= 2:
		return "easy"
	case d == 3:
		return "medium"
	default:
		return "hard"
	}
}

// BuildReport breaks answers down by category and difficulty. The score is
// taken over the full bank so a partial attempt is not inflated. Answers to
// questions missing from bank are skipped.
func BuildReport(bank *questions.Bank, answers []questions.Answer) Report {
	r := Report{Total: bank.Len()}

	cats := map[questions.Category]*CategoryScore{}
	diff := map[string]*DifficultyScore{
		"easy":   {Level: "easy"},
		"medium": {Level: "medium"},
		"hard":   {Level: "hard"},
	}
	var timeSum float64
	var timed, streak int
	for _, a := range answers {
		q, ok := bank.ByID(a.QuestionID)
		if !ok {
			continue
		}
		cs := cats[q.Category]
		if cs == nil {
			cs = &CategoryScore{Category: q.Category, Label: questions.CategoryLabel(q.Category)}
			cats[q.Category] = cs
		}
		ds := diff[difficultyLevel(q.Difficulty)]
		cs.Total++
		ds.Total++
		if a.Correct {
			cs.Correct++
			ds.Correct++
			r.Correct++
			streak++
			if streak > r.LongestStreak {
				r.LongestStreak = streak
			}
		} else {
			streak = 0
		}
		if a.TimedOut() {
			r.Timeouts++
		}
		timeSum += a.TimeSpent
		timed++
	}

	for _, cs := range cats {
		cs.Percentage = int(math.Round(float64(cs.Correct) * 100 / float64(cs.Total)))
		r.Categories = append(r.Categories, *cs)
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		a, b := r.Categories[i], r.Categories[j]
		if a.Percentage != b.Percentage {
			return a.Percentage > b.Percentage
		}
		return a.Category < b.Category
	})
	if n := len(r.Categories); n > 0 {
		strong, weak := r.Categories[0], r.Categories[n-1]
		r.Strongest, r.Weakest = &strong, &weak
	}
	for _, lvl := range []string{"easy", "medium", "hard"} {
		r.Difficulty = append(r.Difficulty, *diff[lvl])
	}
	if timed > 0 {
		r.AverageTime = int(math.Round(timeSum / float64(timed)))
	}

	r.Result = Score(r.Correct, r.Total)
	r.Classification = Classify(r.IQ)
	return r
}

// WithResult replaces the headline score with one already issued, so a report
// built after the catalog changed still agrees with the delivered result.
func (r Report) WithResult(res Result, correct, total int) Report {
	r.Result = res
	r.Correct = correct
	r.Total = total
	r.Classification = Classify(res.IQ)
	return r
}
