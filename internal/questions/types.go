package questions

// Category is the cognitive area a question belongs to. Reporting only.
type Category string

const (
	CategoryPattern Category = "pattern"
	CategoryLogic   Category = "logic"
	CategoryVerbal  Category = "verbal"
	CategoryMath    Category = "math"
	CategorySpatial Category = "spatial"
	CategoryMemory  Category = "memory"
	CategoryVisual  Category = "visual"
)

var categoryLabels = map[Category]string{
	CategoryPattern: "Pattern Recognition",
	CategoryLogic:   "Logical Reasoning",
	CategoryVerbal:  "Verbal Intelligence",
	CategoryMath:    "Mathematical Ability",
	CategorySpatial: "Spatial Awareness",
	CategoryMemory:  "Working Memory",
	CategoryVisual:  "Visual Processing",
}

// CategoryLabel returns the display label for c, or c itself if unknown.
func CategoryLabel(c Category) string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

func (c Category) valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// AnswerType selects the evaluation rule and the response shape.
type AnswerType string

const (
	MultipleChoiceType AnswerType = "multiple_choice"
	SequenceType       AnswerType = "sequence"
	TrueFalseType      AnswerType = "true_false"
	SliderType         AnswerType = "slider"
	OrderType          AnswerType = "order"
	MultiSelectType    AnswerType = "multi_select"
)

// Question is one immutable catalog entry. Exactly one Variant is set.
type Question struct {
	ID         int
	Category   Category
	Prompt     string
	Difficulty int // 1-5
	TimeLimit  int // seconds
	Variant    Variant
}

func (q Question) AnswerType() AnswerType { return q.Variant.AnswerType() }

// Variant holds the answer-type specific fields of a question.
// The set of implementations is closed: MultipleChoice, Sequence, TrueFalse,
// Slider, Order and MultiSelect.
type Variant interface {
	AnswerType() AnswerType
	variant()
}

type MultipleChoice struct {
	Options       []string
	CorrectAnswer int
}

type Sequence struct {
	Sequence      []string // shown tokens, "?" marks the gap
	Options       []string
	CorrectAnswer int
}

type TrueFalse struct {
	Statement     string
	CorrectAnswer bool
}

type Slider struct {
	Min, Max, Step float64
	CorrectAnswer  float64
	Tolerance      float64
	Unit           string
}

type Order struct {
	Items        []string
	CorrectOrder []int
}

type MultiSelect struct {
	Options        []string
	CorrectAnswers []int
	MinSelections  int // 0 means no lower bound
	MaxSelections  int // 0 means no upper bound
}

func (MultipleChoice) AnswerType() AnswerType { return MultipleChoiceType }
func (Sequence) AnswerType() AnswerType       { return SequenceType }
func (TrueFalse) AnswerType() AnswerType      { return TrueFalseType }
func (Slider) AnswerType() AnswerType         { return SliderType }
func (Order) AnswerType() AnswerType          { return OrderType }
func (MultiSelect) AnswerType() AnswerType    { return MultiSelectType }

func (MultipleChoice) variant() {}
func (Sequence) variant()       {}
func (TrueFalse) variant()      {}
func (Slider) variant()         {}
func (Order) variant()          {}
func (MultiSelect) variant()    {}
