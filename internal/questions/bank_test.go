package questions_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mind-engage/iqscore/internal/questions"
)

func TestDefaultBankCoversEveryShape(t *testing.T) {
	b := questions.Default()
	if b.Len() != 25 {
		t.Fatalf("default bank has %d questions, want 25", b.Len())
	}
	cats := map[questions.Category]bool{}
	types := map[questions.AnswerType]bool{}
	for i := 0; i < b.Len(); i++ {
		q := b.Question(i)
		cats[q.Category] = true
		types[q.AnswerType()] = true
	}
	if len(cats) != 7 {
		t.Errorf("categories covered = %d, want 7", len(cats))
	}
	if len(types) != 6 {
		t.Errorf("answer types covered = %d, want 6", len(types))
	}

	var fractional []float64
	for _, q := range b.All() {
		if s, ok := q.Variant.(questions.Slider); ok && s.Tolerance == 0 && s.CorrectAnswer != float64(int(s.CorrectAnswer)) {
			fractional = append(fractional, s.CorrectAnswer)
		}
	}
	if len(fractional) != 2 || fractional[0] != 7.5 || fractional[1] != 9.5 {
		t.Errorf("zero-tolerance fractional sliders = %v, want [7.5 9.5]", fractional)
	}
}

func TestByID(t *testing.T) {
	b := questions.Default()
	q, ok := b.ByID(22)
	if !ok || q.ID != 22 {
		t.Fatalf("ByID(22) = %v, %v", q.ID, ok)
	}
	if _, ok := b.ByID(999); ok {
		t.Fatal("ByID(999) found a question")
	}
}

func TestLoadRejectsMalformedCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty": `questions: []`,
		"duplicate id": `
questions:
  - {id: 1, type: logic, answer_type: true_false, prompt: p, difficulty: 1, time_limit: 10, statement: s, correct_bool: true}
  - {id: 1, type: logic, answer_type: true_false, prompt: p, difficulty: 1, time_limit: 10, statement: s, correct_bool: true}`,
		"zero id": `
questions:
  - {id: 0, type: logic, answer_type: true_false, prompt: p, difficulty: 1, time_limit: 10, statement: s, correct_bool: true}`,
		"unknown category": `
questions:
  - {id: 1, type: music, answer_type: true_false, prompt: p, difficulty: 1, time_limit: 10, statement: s, correct_bool: true}`,
		"unknown answer type": `
questions:
  - {id: 1, type: logic, answer_type: essay, prompt: p, difficulty: 1, time_limit: 10}`,
		"difficulty": `
questions:
  - {id: 1, type: logic, answer_type: true_false, prompt: p, difficulty: 6, time_limit: 10, statement: s, correct_bool: true}`,
		"time limit": `
questions:
  - {id: 1, type: logic, answer_type: true_false, prompt: p, difficulty: 1, time_limit: 0, statement: s, correct_bool: true}`,
		"index out of range": `
questions:
  - {id: 1, type: verbal, answer_type: multiple_choice, prompt: p, difficulty: 1, time_limit: 10, options: [a, b], correct_index: 2}`,
		"foreign field": `
questions:
  - {id: 1, type: verbal, answer_type: multiple_choice, prompt: p, difficulty: 1, time_limit: 10, options: [a, b], correct_index: 0, correct_bool: true}`,
		"not a permutation": `
questions:
  - {id: 1, type: memory, answer_type: order, prompt: p, difficulty: 1, time_limit: 10, items: [a, b, c], correct_order: [0, 0, 2]}`,
		"empty multi select key": `
questions:
  - {id: 1, type: logic, answer_type: multi_select, prompt: p, difficulty: 1, time_limit: 10, options: [a, b]}`,
		"selection bounds": `
questions:
  - {id: 1, type: logic, answer_type: multi_select, prompt: p, difficulty: 1, time_limit: 10, options: [a, b, c], correct_indices: [0, 1], max_selections: 1}`,
		"slider outside range": `
questions:
  - {id: 1, type: math, answer_type: slider, prompt: p, difficulty: 1, time_limit: 10, min: 0, max: 10, correct_value: 11}`,
		"slider negative tolerance": `
questions:
  - {id: 1, type: math, answer_type: slider, prompt: p, difficulty: 1, time_limit: 10, min: 0, max: 10, correct_value: 5, tolerance: -1}`,
		"slider zero step": `
questions:
  - {id: 1, type: math, answer_type: slider, prompt: p, difficulty: 1, time_limit: 10, min: 0, max: 10, step: 0, correct_value: 5}`,
		"slider unreachable": `
questions:
  - {id: 1, type: math, answer_type: slider, prompt: p, difficulty: 1, time_limit: 10, min: 0, max: 10, step: 1, correct_value: 7.5}`,
		"unknown key": `
questions:
  - {id: 1, type: logic, answer_type: true_false, prompt: p, difficulty: 1, time_limit: 10, statement: s, correct_bool: true, points: 3}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := questions.Load(strings.NewReader(doc)); err == nil {
				t.Fatalf("Load accepted %s catalog", name)
			}
		})
	}
}

func TestLoadSliderDefaults(t *testing.T) {
	b, err := questions.Load(strings.NewReader(`
questions:
  - {id: 7, type: math, answer_type: slider, prompt: p, difficulty: 2, time_limit: 10, min: 0, max: 10, correct_value: 4}`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	s := b.Question(0).Variant.(questions.Slider)
	if s.Step != 1 || s.Tolerance != 0 {
		t.Fatalf("defaults step=%v tolerance=%v, want 1 and 0", s.Step, s.Tolerance)
	}
}

func TestPublicStripsAnswerKeys(t *testing.T) {
	for _, q := range questions.Default().All() {
		raw, err := json.Marshal(questions.Public(q))
		if err != nil {
			t.Fatalf("marshal %d: %v", q.ID, err)
		}
		for _, k := range []string{"correct", "tolerance"} {
			if strings.Contains(strings.ToLower(string(raw)), `"`+k) {
				t.Errorf("question %d leaks %q: %s", q.ID, k, raw)
			}
		}
	}
}

func TestDefaultEngagement(t *testing.T) {
	e := questions.DefaultEngagement()
	for _, n := range []int{5, 10, 15, 20} {
		if _, ok := e.After(n); !ok {
			t.Errorf("no message after %d questions", n)
		}
	}
	if _, ok := e.After(6); ok {
		t.Error("unexpected message after 6 questions")
	}
}

func TestLoadEngagementRejectsDuplicates(t *testing.T) {
	_, err := questions.LoadEngagement(strings.NewReader(`
messages:
  - {after_question: 3, message: a}
  - {after_question: 3, message: b}`))
	if err == nil {
		t.Fatal("duplicate after_question accepted")
	}
}
