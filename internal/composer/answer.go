package composer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kalambet/alumnirag/internal/engine"
)

// Alumnus is one entry of the generated answer.
type Alumnus struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Pic     string `json:"pic"`
	Summary string `json:"summary"`
}

// Answer is the structured reply of the generation step.
type Answer struct {
	Alumni []Alumnus `json:"alumni"`
}

// AnswerSchema describes the JSON object the model must return.
func AnswerSchema() *engine.Schema {
	str := engine.SchemaProperty{Type: "string"}
	return &engine.Schema{
		Type: "object",
		Properties: map[string]engine.SchemaProperty{
			"alumni": {
				Type: "array",
				Items: &engine.SchemaProperty{
					Type: "object",
					Properties: map[string]engine.SchemaProperty{
						"id":      str,
						"name":    str,
						"pic":     str,
						"summary": str,
					},
					Required: []string{"id", "name", "pic", "summary"},
				},
			},
		},
		Required: []string{"alumni"},
	}
}

// ParseAnswer decodes the model output. A bare JSON list is accepted as well
// as the wrapped object, and surrounding code fences are ignored.
func ParseAnswer(raw string) (Answer, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	var ans Answer
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &ans.Alumni); err != nil {
			return Answer{}, fmt.Errorf("decoding answer list: %w", err)
		}
	} else if err := json.Unmarshal([]byte(s), &ans); err != nil {
		return Answer{}, fmt.Errorf("decoding answer: %w", err)
	}
	if ans.Alumni == nil {
		ans.Alumni = []Alumnus{}
	}
	return ans, nil
}

// Restrict drops entries whose id is not in allowed and keeps the first entry
// per id.
func (a Answer) Restrict(allowed map[string]bool) Answer {
	seen := make(map[string]bool, len(a.Alumni))
	out := make([]Alumnus, 0, len(a.Alumni))
	for _, al := range a.Alumni {
		if !allowed[al.ID] || seen[al.ID] {
			continue
		}
		seen[al.ID] = true
		out = append(out, al)
	}
	return Answer{Alumni: out}
}

// JSON renders the answer as the final message content.
func (a Answer) JSON() string {
	if a.Alumni == nil {
		a.Alumni = []Alumnus{}
	}
	b, _ := json.Marshal(a)
	return string(b)
}
