package questions

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/engagement.yaml
var defaultEngagementYAML []byte

// Message is an interstitial shown between questions.
type Message struct {
	Text string `json:"message"`
	Kind string `json:"type"` // milestone, encouragement
}

// Engagement maps "questions answered so far" to an interstitial message.
type Engagement map[int]Message

// After returns the message configured after n answered questions.
func (e Engagement) After(n int) (Message, bool) {
	m, ok := e[n]
	return m, ok && m.Text != ""
}

type yamlEngagement struct {
	Messages []struct {
		AfterQuestion int    `yaml:"after_question"`
		Message       string `yaml:"message"`
		Kind          string `yaml:"kind"`
	} `yaml:"messages"`
}

// LoadEngagement parses an engagement table.
func LoadEngagement(r io.Reader) (Engagement, error) {
	var doc yamlEngagement
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode engagement: %w", err)
	}
	out := make(Engagement, len(doc.Messages))
	for _, m := range doc.Messages {
		if m.AfterQuestion <= 0 {
			return nil, fmt.Errorf("after_question %d must be positive", m.AfterQuestion)
		}
		if m.Message == "" {
			return nil, fmt.Errorf("after_question %d: empty message", m.AfterQuestion)
		}
		if _, dup := out[m.AfterQuestion]; dup {
			return nil, fmt.Errorf("after_question %d listed twice", m.AfterQuestion)
		}
		kind := m.Kind
		if kind == "" {
			kind = "encouragement"
		}
		out[m.AfterQuestion] = Message{Text: m.Message, Kind: kind}
	}
	return out, nil
}

var (
	engagementOnce sync.Once
	engagement     Engagement
)

// DefaultEngagement returns the embedded table (after questions 5, 10, 15, 20).
func DefaultEngagement() Engagement {
	engagementOnce.Do(func() {
		e, err := LoadEngagement(bytes.NewReader(defaultEngagementYAML))
		if err != nil {
			panic(fmt.Sprintf("questions: embedded engagement: %v", err))
		}
		engagement = e
	})
	return engagement
}
