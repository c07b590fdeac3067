package questions

import (
	"encoding/json"
	"fmt"
)

// Answer is the record of one resolved question. Correct is computed once,
// at submission.
type Answer struct {
	QuestionID int
	Selected   Response
	Correct    bool
	TimeSpent  float64 // seconds
}

// TimedOut reports whether the timer resolved the question.
func (a Answer) TimedOut() bool {
	_, ok := a.Selected.(NoAnswer)
	return ok || a.Selected == nil
}

type wireAnswer struct {
	QuestionID     int             `json:"questionId"`
	SelectedAnswer json.RawMessage `json:"selectedAnswer"`
	Correct        bool            `json:"correct"`
	TimeSpent      float64         `json:"timeSpent"`
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireAnswer{
		QuestionID:     a.QuestionID,
		SelectedAnswer: EncodeResponse(a.Selected),
		Correct:        a.Correct,
		TimeSpent:      a.TimeSpent,
	})
}

// UnmarshalJSON restores Selected without knowing the question, see
// DecodeStoredResponse. Use Retyped to recover the exact shape.
func (a *Answer) UnmarshalJSON(b []byte) error {
	var w wireAnswer
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.TimeSpent < 0 {
		return fmt.Errorf("answer %d: negative timeSpent", w.QuestionID)
	}
	*a = Answer{
		QuestionID: w.QuestionID,
		Selected:   DecodeStoredResponse(w.SelectedAnswer),
		Correct:    w.Correct,
		TimeSpent:  w.TimeSpent,
	}
	return nil
}

// Retyped re-decodes Selected for answer type t.
func (a Answer) Retyped(t AnswerType) (Answer, error) {
	r, err := DecodeResponse(t, EncodeResponse(a.Selected))
	if err != nil {
		return a, err
	}
	a.Selected = r
	return a, nil
}

// CountCorrect returns how many answers are marked correct.
func CountCorrect(answers []Answer) int {
	n := 0
	for _, a := range answers {
		if a.Correct {
			n++
		}
	}
	return n
}

// EncodeAnswers renders answers as the persisted JSON array, never null.
func EncodeAnswers(answers []Answer) ([]byte, error) {
	if answers == nil {
		answers = []Answer{}
	}
	return json.Marshal(answers)
}

// DecodeAnswers parses a persisted JSON array; empty input is no answers.
func DecodeAnswers(b []byte) ([]Answer, error) {
	if len(b) == 0 {
		return []Answer{}, nil
	}
	var out []Answer
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode answers: %w", err)
	}
	if out == nil {
		out = []Answer{}
	}
	return out, nil
}
