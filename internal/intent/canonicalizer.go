// Package intent maps a free-form question onto the closed grammar of
// canonical alumni questions.
package intent

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/alumnirag/internal/engine"
)

const defaultTimeout = 10 * time.Second

// Refusal ends a turn when the question fits no canonical shape and the
// model offered no direct reply.
const Refusal = "I can only answer questions about alumni, such as who works at a company, holds a title, lives in a location or has a skill."

// ErrAmbiguousQuery marks a decision that does not retrieve.
var ErrAmbiguousQuery = errors.New("query matches no canonical shape")

// Decision is the outcome of canonicalization. When Retrieve is true, Query
// is populated and Text is its canonical rendering. Otherwise Reply is the
// final answer and Reason explains why no retrieval happens.
type Decision struct {
	Retrieve bool
	Query    Query
	Text     string
	Reply    string
	Reason   error
}

type extraction struct {
	Slots
	Reply string `json:"reply"`
}

// Canonicalizer decides whether a question is answerable by retrieval.
type Canonicalizer struct {
	client  engine.Chatter
	model   string
	timeout time.Duration
}

// New creates a Canonicalizer. A non-positive timeout selects the default.
func New(client engine.Chatter, model string, timeout time.Duration) *Canonicalizer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Canonicalizer{client: client, model: model, timeout: timeout}
}

// Canonicalize extracts slots from the query with the completion model and
// matches them against the grammar. Extraction failures never surface as
// errors; they yield a refusal decision so the turn can still complete.
func (c *Canonicalizer) Canonicalize(ctx context.Context, query string, history []engine.Message) Decision {
	if strings.TrimSpace(query) == "" {
		return refuse("", ErrAmbiguousQuery)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Chat(ctx, c.model, BuildPrompt(query, history), extractionSchema())
	if err != nil {
		slog.Warn("slot extraction failed", "error", err)
		return refuse("", errors.Join(ErrAmbiguousQuery, err))
	}

	var ex extraction
	if err := json.Unmarshal([]byte(raw), &ex); err != nil {
		slog.Warn("failed to unmarshal slots from LLM response", "error", err, "response", raw)
		return refuse("", errors.Join(ErrAmbiguousQuery, err))
	}

	return Decide(query, ex.Slots, ex.Reply)
}

// Decide applies the grammar to already extracted slots. It is the
// deterministic half of Canonicalize.
func Decide(query string, slots Slots, reply string) Decision {
	slots = slots.clean()
	shape, ok := Match(slots.Set())
	if !ok {
		return refuse(reply, ErrAmbiguousQuery)
	}

	q := Query{Shape: shape, Tense: DetectTense(query), Slots: slots}
	return Decision{Retrieve: true, Query: q, Text: q.Text()}
}

func refuse(reply string, reason error) Decision {
	reply = strings.TrimSpace(reply)
	if reply == "" {
		reply = Refusal
	}
	return Decision{Reply: reply, Reason: reason}
}
