package quiz

import (
	"time"

	"github.com/mind-engage/iqscore/internal/grading"
	"github.com/mind-engage/iqscore/internal/questions"
	"github.com/mind-engage/iqscore/internal/scoring"
)

type Phase string

const (
	AwaitingAnswer Phase = "awaiting_answer"
	Transitioning  Phase = "transitioning"
	Interstitial   Phase = "interstitial"
	Complete       Phase = "complete"
)

const (
	// ExtendSeconds is the time added by one extension.
	ExtendSeconds = 30
	// extendThreshold is the time left at which the extension is offered.
	extendThreshold = 6
)

// Clock returns the current time; tests inject a fake.
type Clock func() time.Time

// Session is the per-attempt state machine. It does no I/O and is not safe
// for concurrent use; a Driver owns it.
type Session struct {
	bank       *questions.Bank
	engagement questions.Engagement
	now        Clock

	phase           Phase
	index           int
	answers         []questions.Answer
	timeLeft        int
	extended        bool
	extendAvailable bool
	streak          int
	message         *questions.Message
	questionStart   time.Time
	result          scoring.Result
}

// NewSession starts at AwaitingAnswer(0). A nil engagement table shows no
// interstitials; a nil clock uses time.Now.
func NewSession(bank *questions.Bank, engagement questions.Engagement, now Clock) *Session {
	if now == nil {
		now = time.Now
	}
	s := &Session{bank: bank, engagement: engagement, now: now, answers: []questions.Answer{}}
	s.enter(0)
	return s
}

// ResumeSession continues an attempt after prior answers, at
// AwaitingAnswer(len(prior)). prior must leave at least one question open.
func ResumeSession(bank *questions.Bank, engagement questions.Engagement, now Clock, prior []questions.Answer) *Session {
	s := NewSession(bank, engagement, now)
	if len(prior) == 0 || len(prior) >= bank.Len() {
		return s
	}
	s.answers = append(s.answers, prior...)
	for _, a := range prior {
		if a.Correct {
			s.streak++
		} else {
			s.streak = 0
		}
	}
	s.enter(len(prior))
	return s
}

func (s *Session) enter(i int) {
	s.phase = AwaitingAnswer
	s.index = i
	s.timeLeft = s.bank.Question(i).TimeLimit
	s.extended = false
	s.extendAvailable = false
	s.message = nil
	s.questionStart = s.now()
}

func (s *Session) Phase() Phase { return s.phase }

// Index is the current question index; len(bank) once complete.
func (s *Session) Index() int { return s.index }

func (s *Session) Streak() int { return s.streak }

func (s *Session) TimeLeft() int { return s.timeLeft }

// Answers returns a copy of the recorded answers.
func (s *Session) Answers() []questions.Answer {
	return append([]questions.Answer{}, s.answers...)
}

// Tick advances the question timer by one second. It reports whether the
// tick resolved the question as a timeout.
func (s *Session) Tick() bool {
	if s.phase != AwaitingAnswer {
		return false
	}
	if s.timeLeft > 0 {
		s.timeLeft--
	}
	if s.timeLeft <= extendThreshold && !s.extended {
		s.extendAvailable = true
	}
	if s.timeLeft > 0 {
		return false
	}
	s.record(questions.NoAnswer{}, false)
	return true
}

// Submit resolves the current question with r. Outside AwaitingAnswer it is a
// no-op returning false.
func (s *Session) Submit(r questions.Response) (questions.Answer, bool) {
	if s.phase != AwaitingAnswer {
		return questions.Answer{}, false
	}
	if r == nil {
		r = questions.NoAnswer{}
	}
	return s.record(r, grading.IsCorrect(s.bank.Question(s.index), r)), true
}

func (s *Session) record(r questions.Response, correct bool) questions.Answer {
	spent := s.now().Sub(s.questionStart).Seconds()
	if spent < 0 {
		spent = 0
	}
	a := questions.Answer{
		QuestionID: s.bank.Question(s.index).ID,
		Selected:   r,
		Correct:    correct,
		TimeSpent:  spent,
	}
	s.answers = append(s.answers, a)
	if correct {
		s.streak++
	} else {
		s.streak = 0
	}
	s.extendAvailable = false
	s.phase = Transitioning
	return a
}

// Extend adds ExtendSeconds once per question, only while offered.
func (s *Session) Extend() bool {
	if s.phase != AwaitingAnswer || s.extended || !s.extendAvailable {
		return false
	}
	s.timeLeft += ExtendSeconds
	s.extended = true
	s.extendAvailable = false
	return true
}

// Advance leaves Transitioning and returns the new phase.
func (s *Session) Advance() Phase {
	if s.phase != Transitioning {
		return s.phase
	}
	answered := s.index + 1
	switch {
	case answered >= s.bank.Len():
		s.index = s.bank.Len()
		s.result = scoring.Score(questions.CountCorrect(s.answers), s.bank.Len())
		s.phase = Complete
	default:
		if m, ok := s.engagement.After(answered); ok {
			s.message = &m
			s.phase = Interstitial
		} else {
			s.enter(answered)
		}
	}
	return s.phase
}

// Acknowledge dismisses the interstitial and moves to the next question.
func (s *Session) Acknowledge() bool {
	if s.phase != Interstitial {
		return false
	}
	s.enter(s.index + 1)
	return true
}

// Outcome is the scored result of a completed session.
type Outcome struct {
	scoring.Result
	Correct int
	Total   int
	Answers []questions.Answer
}

// Outcome reports the result once Complete.
func (s *Session) Outcome() (Outcome, bool) {
	if s.phase != Complete {
		return Outcome{}, false
	}
	return Outcome{
		Result:  s.result,
		Correct: questions.CountCorrect(s.answers),
		Total:   s.bank.Len(),
		Answers: s.Answers(),
	}, true
}
