package questions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Response is a submitted answer payload. The set of implementations is
// closed: Choice, Bool, Number, Indices and NoAnswer.
type Response interface {
	response()
}

// Choice is a selected option index (multiple_choice, sequence).
type Choice int

// Bool is a true/false pick.
type Bool bool

// Number is a slider value.
type Number float64

// Indices is an ordering (order) or a selection (multi_select).
type Indices []int

// NoAnswer is recorded when the timer runs out.
type NoAnswer struct{}

func (Choice) response()   {}
func (Bool) response()     {}
func (Number) response()   {}
func (Indices) response()  {}
func (NoAnswer) response() {}

var ErrBadResponse = errors.New("response does not match answer type")

// DecodeResponse parses a raw JSON payload into the Response shape expected by t.
// A JSON null decodes to NoAnswer for every answer type.
func DecodeResponse(t AnswerType, raw json.RawMessage) (Response, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NoAnswer{}, nil
	}
	switch t {
	case MultipleChoiceType, SequenceType:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil || n != float64(int(n)) {
			return nil, fmt.Errorf("%w: %s wants an option index", ErrBadResponse, t)
		}
		return Choice(int(n)), nil
	case TrueFalseType:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("%w: %s wants a boolean", ErrBadResponse, t)
		}
		return Bool(b), nil
	case SliderType:
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("%w: %s wants a number", ErrBadResponse, t)
		}
		return Number(f), nil
	case OrderType, MultiSelectType:
		var xs []int
		if err := json.Unmarshal(raw, &xs); err != nil {
			return nil, fmt.Errorf("%w: %s wants a list of indices", ErrBadResponse, t)
		}
		if xs == nil {
			xs = []int{}
		}
		return Indices(xs), nil
	default:
		return nil, fmt.Errorf("%w: unknown answer type %q", ErrBadResponse, t)
	}
}

// EncodeResponse renders r in the same JSON form DecodeResponse accepts.
func EncodeResponse(r Response) json.RawMessage {
	var v any
	switch x := r.(type) {
	case Choice:
		v = int(x)
	case Bool:
		v = bool(x)
	case Number:
		v = float64(x)
	case Indices:
		if x == nil {
			x = Indices{}
		}
		v = []int(x)
	default:
		v = nil
	}
	b, _ := json.Marshal(v)
	return b
}

// DecodeStoredResponse restores a persisted payload without knowing the
// question: numbers with no fraction become Choice, other numbers Number.
func DecodeStoredResponse(raw json.RawMessage) Response {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return NoAnswer{}
	}
	switch raw[0] {
	case 't', 'f':
		var b bool
		if json.Unmarshal(raw, &b) == nil {
			return Bool(b)
		}
	case '[':
		var xs []int
		if json.Unmarshal(raw, &xs) == nil {
			return Indices(xs)
		}
	default:
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			if f == float64(int(f)) {
				return Choice(int(f))
			}
			return Number(f)
		}
	}
	return NoAnswer{}
}

// Key returns the response that answers q correctly.
func (q Question) Key() Response {
	switch v := q.Variant.(type) {
	case MultipleChoice:
		return Choice(v.CorrectAnswer)
	case Sequence:
		return Choice(v.CorrectAnswer)
	case TrueFalse:
		return Bool(v.CorrectAnswer)
	case Slider:
		return Number(v.CorrectAnswer)
	case Order:
		return append(Indices(nil), v.CorrectOrder...)
	case MultiSelect:
		return append(Indices(nil), v.CorrectAnswers...)
	}
	return NoAnswer{}
}
