package questions

// PublicQuestion is the client view of a question: everything needed to
// render and answer it, nothing that reveals the key.
type PublicQuestion struct {
	ID            int        `json:"id"`
	Type          Category   `json:"type"`
	CategoryLabel string     `json:"categoryLabel"`
	AnswerType    AnswerType `json:"answerType"`
	Prompt        string     `json:"question"`
	Difficulty    int        `json:"difficulty"`
	TimeLimit     int        `json:"timeLimit"`

	Options   []string `json:"options,omitempty"`
	Sequence  []string `json:"sequence,omitempty"`
	Statement string   `json:"statement,omitempty"`
	Items     []string `json:"items,omitempty"`

	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Step          *float64 `json:"step,omitempty"`
	Unit          string   `json:"unit,omitempty"`
	MinSelections int      `json:"minSelections,omitempty"`
	MaxSelections int      `json:"maxSelections,omitempty"`
}

func Public(q Question) PublicQuestion {
	p := PublicQuestion{
		ID:            q.ID,
		Type:          q.Category,
		CategoryLabel: CategoryLabel(q.Category),
		Prompt:        q.Prompt,
		Difficulty:    q.Difficulty,
		TimeLimit:     q.TimeLimit,
	}
	if q.Variant == nil {
		return p
	}
	p.AnswerType = q.Variant.AnswerType()
	switch v := q.Variant.(type) {
	case MultipleChoice:
		p.Options = v.Options
	case Sequence:
		p.Sequence = v.Sequence
		p.Options = v.Options
	case TrueFalse:
		p.Statement = v.Statement
	case Slider:
		lo, hi, step := v.Min, v.Max, v.Step
		p.Min, p.Max, p.Step = &lo, &hi, &step
		p.Unit = v.Unit
	case Order:
		p.Items = v.Items
	case MultiSelect:
		p.Options = v.Options
		p.MinSelections = v.MinSelections
		p.MaxSelections = v.MaxSelections
	}
	return p
}

// PublicAll renders the whole bank for clients.
func (b *Bank) PublicAll() []PublicQuestion {
	out := make([]PublicQuestion, 0, len(b.questions))
	for _, q := range b.questions {
		out = append(out, Public(q))
	}
	return out
}
