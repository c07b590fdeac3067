package grading

import (
	"github.com/mind-engage/iqscore/internal/questions"
)

// IsCorrect evaluates r against q's key. It is total: NoAnswer, a nil
// variant, or a response of the wrong shape for the answer type is false.
func IsCorrect(q questions.Question, r questions.Response) bool {
	if r == nil {
		return false
	}
	if _, timedOut := r.(questions.NoAnswer); timedOut {
		return false
	}
	switch v := q.Variant.(type) {
	case questions.MultipleChoice:
		c, ok := r.(questions.Choice)
		return ok && int(c) == v.CorrectAnswer
	case questions.Sequence:
		c, ok := r.(questions.Choice)
		return ok && int(c) == v.CorrectAnswer
	case questions.TrueFalse:
		b, ok := r.(questions.Bool)
		return ok && bool(b) == v.CorrectAnswer
	case questions.Slider:
		n, ok := r.(questions.Number)
		return ok && withinTolerance(float64(n), v.CorrectAnswer, v.Tolerance)
	case questions.Order:
		xs, ok := r.(questions.Indices)
		return ok && sequenceEqual(xs, v.CorrectOrder)
	case questions.MultiSelect:
		xs, ok := r.(questions.Indices)
		return ok && sequenceEqual(sorted(xs), sorted(v.CorrectAnswers))
	default:
		return false
	}
}

// Regrade recomputes Correct for answers supplied by a client, decoding each
// payload for its question's answer type. Unknown questions and payloads of
// the wrong shape are marked incorrect. It returns the regraded answers and
// the correct count.
func Regrade(bank *questions.Bank, answers []questions.Answer) ([]questions.Answer, int) {
	out := make([]questions.Answer, 0, len(answers))
	correct := 0
	seen := make(map[int]bool, len(answers))
	for _, a := range answers {
		q, ok := bank.ByID(a.QuestionID)
		if !ok || seen[a.QuestionID] {
			a.Correct = false
			out = append(out, a)
			continue
		}
		seen[a.QuestionID] = true
		typed, err := a.Retyped(q.AnswerType())
		if err != nil {
			a.Correct = false
			out = append(out, a)
			continue
		}
		typed.Correct = IsCorrect(q, typed.Selected)
		if typed.Correct {
			correct++
		}
		out = append(out, typed)
	}
	return out, correct
}
