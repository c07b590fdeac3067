package quiz

import (
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/scoring"
)

// View is an immutable snapshot of a session for clients.
type View struct {
	Phase           Phase                     `json:"phase"`
	Index           int                       `json:"currentIndex"`
	Total           int                       `json:"total"`
	Answered        int                       `json:"answered"`
	Question        *questions.PublicQuestion `json:"question,omitempty"`
	TimeLeft        int                       `json:"timeLeft"`
	ExtendAvailable bool                      `json:"extendAvailable"`
	Extended        bool                      `json:"extendedThisQuestion"`
	Streak          int                       `json:"streak"`
	LastCorrect     *bool                     `json:"lastCorrect,omitempty"`
	Engagement      *questions.Message        `json:"engagement,omitempty"`
	Result          *scoring.Result           `json:"result,omitempty"`
	Correct         *int                      `json:"correct,omitempty"`
}

func (s *Session) View() View {
	v := View{
		Phase:           s.phase,
		Index:           s.index,
		Total:           s.bank.Len(),
		Answered:        len(s.answers),
		TimeLeft:        s.timeLeft,
		ExtendAvailable: s.extendAvailable,
		Extended:        s.extended,
		Streak:          s.streak,
	}
	if s.phase == AwaitingAnswer || s.phase == Transitioning {
		p := questions.Public(s.bank.Question(s.index))
		v.Question = &p
	}
	if n := len(s.answers); n > 0 {
		c := s.answers[n-1].Correct
		v.LastCorrect = &c
	}
	if s.message != nil {
		m := *s.message
		v.Engagement = &m
	}
	if s.phase == Complete {
		r := s.result
		c := questions.CountCorrect(s.answers)
		v.Result, v.Correct = &r, &c
		v.TimeLeft = 0
	}
	return v
}
