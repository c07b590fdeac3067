package questions

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/bank.yaml
var defaultBankYAML []byte

// Bank is the ordered, read-only question catalog. Catalog order is the
// difficulty progression shown to the test taker.
type Bank struct {
	questions []Question
	byID      map[int]int
}

func (b *Bank) Len() int { return len(b.questions) }

// Question returns the question at index i. The caller keeps 0 <= i < Len().
func (b *Bank) Question(i int) Question { return b.questions[i] }

func (b *Bank) ByID(id int) (Question, bool) {
	i, ok := b.byID[id]
	if !ok {
		return Question{}, false
	}
	return b.questions[i], true
}

// All returns a copy of the catalog in order.
func (b *Bank) All() []Question {
	out := make([]Question, len(b.questions))
	copy(out, b.questions)
	return out
}

var (
	defaultOnce sync.Once
	defaultBank *Bank
)

// Default returns the embedded catalog. It panics if the embedded data is
// invalid, which a unit test guards against.
func Default() *Bank {
	defaultOnce.Do(func() {
		b, err := Load(bytes.NewReader(defaultBankYAML))
		if err != nil {
			panic(fmt.Sprintf("questions: embedded bank: %v", err))
		}
		defaultBank = b
	})
	return defaultBank
}

// LoadFile reads a catalog from path; an empty path yields Default().
func LoadFile(path string) (*Bank, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// yamlQuestion is the on-disk shape. Variant keys are flat and validated
// against answer_type so a question carries exactly one shape.
type yamlQuestion struct {
	ID         int        `yaml:"id"`
	Type       Category   `yaml:"type"`
	AnswerType AnswerType `yaml:"answer_type"`
	Prompt     string     `yaml:"prompt"`
	Difficulty int        `yaml:"difficulty"`
	TimeLimit  int        `yaml:"time_limit"`

	Options        []string `yaml:"options"`
	Sequence       []string `yaml:"sequence"`
	Statement      string   `yaml:"statement"`
	Items          []string `yaml:"items"`
	Unit           string   `yaml:"unit"`
	Min            *float64 `yaml:"min"`
	Max            *float64 `yaml:"max"`
	Step           *float64 `yaml:"step"`
	Tolerance      *float64 `yaml:"tolerance"`
	CorrectIndex   *int     `yaml:"correct_index"`
	CorrectBool    *bool    `yaml:"correct_bool"`
	CorrectValue   *float64 `yaml:"correct_value"`
	CorrectOrder   []int    `yaml:"correct_order"`
	CorrectIndices []int    `yaml:"correct_indices"`
	MinSelections  int      `yaml:"min_selections"`
	MaxSelections  int      `yaml:"max_selections"`
}

type yamlBank struct {
	Questions []yamlQuestion `yaml:"questions"`
}

// Load parses and validates a YAML catalog.
func Load(r io.Reader) (*Bank, error) {
	var doc yamlBank
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode bank: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, errors.New("bank has no questions")
	}
	b := &Bank{byID: make(map[int]int, len(doc.Questions))}
	for i, yq := range doc.Questions {
		q, err := yq.build()
		if err != nil {
			return nil, fmt.Errorf("question #%d (id %d): %w", i+1, yq.ID, err)
		}
		if _, dup := b.byID[q.ID]; dup {
			return nil, fmt.Errorf("question #%d: duplicate id %d", i+1, q.ID)
		}
		b.byID[q.ID] = len(b.questions)
		b.questions = append(b.questions, q)
	}
	return b, nil
}

func (y yamlQuestion) build() (Question, error) {
	q := Question{
		ID:         y.ID,
		Category:   y.Type,
		Prompt:     y.Prompt,
		Difficulty: y.Difficulty,
		TimeLimit:  y.TimeLimit,
	}
	switch {
	case q.ID <= 0:
		return q, errors.New("id must be positive")
	case !q.Category.valid():
		return q, fmt.Errorf("unknown type %q", q.Category)
	case q.Difficulty < 1 || q.Difficulty > 5:
		return q, fmt.Errorf("difficulty %d out of 1..5", q.Difficulty)
	case q.TimeLimit <= 0:
		return q, errors.New("time_limit must be positive")
	case q.Prompt == "":
		return q, errors.New("prompt is required")
	}

	var err error
	switch y.AnswerType {
	case MultipleChoiceType:
		q.Variant, err = y.multipleChoice()
	case SequenceType:
		q.Variant, err = y.sequence()
	case TrueFalseType:
		q.Variant, err = y.trueFalse()
	case SliderType:
		q.Variant, err = y.slider()
	case OrderType:
		q.Variant, err = y.order()
	case MultiSelectType:
		q.Variant, err = y.multiSelect()
	default:
		err = fmt.Errorf("unknown answer_type %q", y.AnswerType)
	}
	return q, err
}

func (y yamlQuestion) foreign(allowed ...string) error {
	set := map[string]bool{
		"options":         len(y.Options) > 0,
		"sequence":        len(y.Sequence) > 0,
		"statement":       y.Statement != "",
		"items":           len(y.Items) > 0,
		"unit":            y.Unit != "",
		"min":             y.Min != nil,
		"max":             y.Max != nil,
		"step":            y.Step != nil,
		"tolerance":       y.Tolerance != nil,
		"correct_index":   y.CorrectIndex != nil,
		"correct_bool":    y.CorrectBool != nil,
		"correct_value":   y.CorrectValue != nil,
		"correct_order":   len(y.CorrectOrder) > 0,
		"correct_indices": len(y.CorrectIndices) > 0,
		"min_selections":  y.MinSelections != 0,
		"max_selections":  y.MaxSelections != 0,
	}
	for _, k := range allowed {
		delete(set, k)
	}
	var bad []string
	for k, present := range set {
		if present {
			bad = append(bad, k)
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("fields %v do not apply to %s", bad, y.AnswerType)
	}
	return nil
}

func checkIndex(idx *int, n int) (int, error) {
	if idx == nil {
		return 0, errors.New("correct_index is required")
	}
	if *idx < 0 || *idx >= n {
		return 0, fmt.Errorf("correct_index %d out of range [0,%d)", *idx, n)
	}
	return *idx, nil
}

func (y yamlQuestion) multipleChoice() (Variant, error) {
	if err := y.foreign("options", "correct_index"); err != nil {
		return nil, err
	}
	if len(y.Options) < 2 {
		return nil, errors.New("need at least two options")
	}
	idx, err := checkIndex(y.CorrectIndex, len(y.Options))
	if err != nil {
		return nil, err
	}
	return MultipleChoice{Options: y.Options, CorrectAnswer: idx}, nil
}

func (y yamlQuestion) sequence() (Variant, error) {
	if err := y.foreign("sequence", "options", "correct_index"); err != nil {
		return nil, err
	}
	if len(y.Sequence) == 0 {
		return nil, errors.New("sequence is required")
	}
	if len(y.Options) < 2 {
		return nil, errors.New("need at least two options")
	}
	idx, err := checkIndex(y.CorrectIndex, len(y.Options))
	if err != nil {
		return nil, err
	}
	return Sequence{Sequence: y.Sequence, Options: y.Options, CorrectAnswer: idx}, nil
}

func (y yamlQuestion) trueFalse() (Variant, error) {
	if err := y.foreign("statement", "correct_bool"); err != nil {
		return nil, err
	}
	if y.Statement == "" {
		return nil, errors.New("statement is required")
	}
	if y.CorrectBool == nil {
		return nil, errors.New("correct_bool is required")
	}
	return TrueFalse{Statement: y.Statement, CorrectAnswer: *y.CorrectBool}, nil
}

func (y yamlQuestion) slider() (Variant, error) {
	if err := y.foreign("min", "max", "step", "tolerance", "correct_value", "unit"); err != nil {
		return nil, err
	}
	if y.Min == nil || y.Max == nil || y.CorrectValue == nil {
		return nil, errors.New("min, max and correct_value are required")
	}
	s := Slider{Min: *y.Min, Max: *y.Max, CorrectAnswer: *y.CorrectValue, Step: 1, Unit: y.Unit}
	if y.Step != nil {
		s.Step = *y.Step
	}
	if y.Tolerance != nil {
		s.Tolerance = *y.Tolerance
	}
	switch {
	case s.Min >= s.Max:
		return nil, fmt.Errorf("min %v must be below max %v", s.Min, s.Max)
	case s.Step <= 0:
		return nil, errors.New("step must be positive")
	case s.Tolerance < 0:
		return nil, errors.New("tolerance must not be negative")
	case s.CorrectAnswer < s.Min || s.CorrectAnswer > s.Max:
		return nil, fmt.Errorf("correct_value %v outside [%v,%v]", s.CorrectAnswer, s.Min, s.Max)
	}
	// An exact slider must be able to land on its answer.
	if steps := (s.CorrectAnswer - s.Min) / s.Step; s.Tolerance == 0 && math.Abs(steps-math.Round(steps)) > 1e-9 {
		return nil, fmt.Errorf("correct_value %v is not reachable with step %v", s.CorrectAnswer, s.Step)
	}
	return s, nil
}

func (y yamlQuestion) order() (Variant, error) {
	if err := y.foreign("items", "correct_order"); err != nil {
		return nil, err
	}
	if len(y.Items) < 2 {
		return nil, errors.New("need at least two items")
	}
	if len(y.CorrectOrder) != len(y.Items) {
		return nil, fmt.Errorf("correct_order has %d entries for %d items", len(y.CorrectOrder), len(y.Items))
	}
	seen := make([]bool, len(y.Items))
	for _, i := range y.CorrectOrder {
		if i < 0 || i >= len(y.Items) || seen[i] {
			return nil, fmt.Errorf("correct_order %v is not a permutation", y.CorrectOrder)
		}
		seen[i] = true
	}
	return Order{Items: y.Items, CorrectOrder: y.CorrectOrder}, nil
}

func (y yamlQuestion) multiSelect() (Variant, error) {
	if err := y.foreign("options", "correct_indices", "min_selections", "max_selections"); err != nil {
		return nil, err
	}
	if len(y.Options) < 2 {
		return nil, errors.New("need at least two options")
	}
	if len(y.CorrectIndices) == 0 {
		return nil, errors.New("correct_indices is required")
	}
	seen := map[int]bool{}
	for _, i := range y.CorrectIndices {
		if i < 0 || i >= len(y.Options) || seen[i] {
			return nil, fmt.Errorf("correct_indices %v invalid", y.CorrectIndices)
		}
		seen[i] = true
	}
	n := len(y.CorrectIndices)
	if y.MinSelections < 0 || y.MaxSelections < 0 {
		return nil, errors.New("selection bounds must not be negative")
	}
	if y.MinSelections > n || (y.MaxSelections > 0 && y.MaxSelections < n) {
		return nil, fmt.Errorf("selection bounds [%d,%d] exclude the %d correct picks", y.MinSelections, y.MaxSelections, n)
	}
	return MultiSelect{
		Options:        y.Options,
		CorrectAnswers: y.CorrectIndices,
		MinSelections:  y.MinSelections,
		MaxSelections:  y.MaxSelections,
	}, nil
}
