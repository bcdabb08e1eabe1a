// Package pipeline runs a conversational turn: canonicalize the question,
// retrieve once, filter evidence by time and generate the structured answer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/alumnirag/internal/composer"
	"github.com/kalambet/alumnirag/internal/engine"
	"github.com/kalambet/alumnirag/internal/intent"
	"github.com/kalambet/alumnirag/internal/profile"
	"github.com/kalambet/alumnirag/internal/retrieval"
	"github.com/kalambet/alumnirag/internal/temporal"
)

const defaultGenerateTimeout = 60 * time.Second

// Canonicalizer decides whether a question should be answered by retrieval.
type Canonicalizer interface {
	Canonicalize(ctx context.Context, query string, history []engine.Message) intent.Decision
}

// Retriever fetches ranked chunks for a canonical query.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieval.Result, error)
}

// Config holds the controller's collaborators and policies.
type Config struct {
	Canonicalizer Canonicalizer
	Retriever     Retriever
	Chatter       engine.Chatter
	Model         string
	Composer      *composer.Composer
	Filter        temporal.Filter

	// GenerateTimeout bounds the generation call. Defaults to 60s.
	GenerateTimeout time.Duration

	// Clock returns the evaluation date. Defaults to time.Now.
	Clock func() time.Time
}

// Controller sequences the states of a turn.
type Controller struct {
	cfg Config
}

// NewController creates a Controller.
func NewController(cfg Config) *Controller {
	if cfg.Composer == nil {
		cfg.Composer = composer.New(0)
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = defaultGenerateTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Controller{cfg: cfg}
}

// Filter returns the temporal policy the controller applies.
func (c *Controller) Filter() temporal.Filter {
	return c.cfg.Filter
}

// Run answers question in the context of prior messages. The returned error
// is non-nil only for completion transport faults during generation.
func (c *Controller) Run(ctx context.Context, question string, prior []Message) (*Turn, error) {
	turn := &Turn{
		ID:    uuid.NewString(),
		Now:   c.cfg.Clock(),
		start: len(prior),
	}
	turn.Messages = append(turn.Messages, prior...)
	turn.append(Message{Role: RoleHuman, Content: question})

	state := StateDecide
	turn.states = append(turn.states, state)
	for state != StateDone {
		next, err := c.step(ctx, turn, state)
		if err != nil {
			return turn, err
		}
		if state, err = transition(state, next); err != nil {
			return turn, err
		}
		turn.states = append(turn.states, state)
	}

	slog.Debug("turn complete", "turn", turn.ID, "states", turn.states, "faults", len(turn.Faults))
	return turn, nil
}

func (c *Controller) step(ctx context.Context, turn *Turn, s State) (State, error) {
	switch s {
	case StateDecide:
		return c.decide(ctx, turn), nil
	case StateRetrieve:
		return c.retrieve(ctx, turn)
	case StateGenerate:
		return c.generate(ctx, turn)
	default:
		return s, fmt.Errorf("no step for state %s", s)
	}
}

func (c *Controller) decide(ctx context.Context, turn *Turn) State {
	d := c.cfg.Canonicalizer.Canonicalize(ctx, turn.Question(), turn.history())
	if !d.Retrieve {
		if d.Reason != nil {
			turn.Faults = append(turn.Faults, d.Reason)
		}
		turn.append(Message{Role: RoleAI, Content: d.Reply})
		return StateDone
	}

	turn.Tense = d.Query.Tense
	turn.append(Message{
		Role:     RoleAI,
		ToolCall: &ToolCall{ID: uuid.NewString(), Name: ToolRetrieve, Query: d.Text},
	})
	return StateRetrieve
}

func (c *Controller) retrieve(ctx context.Context, turn *Turn) (State, error) {
	if turn.retrievals > 0 {
		return StateRetrieve, ErrRetrievalBudget
	}
	turn.retrievals++

	call := turn.pendingCall()
	if call == nil {
		return StateRetrieve, errors.New("retrieve entered without a pending tool call")
	}

	result := &ToolResult{CallID: call.ID}
	res, err := c.cfg.Retriever.Retrieve(ctx, call.Query)
	if err != nil {
		slog.Warn("retrieval failed, generating from empty payload", "turn", turn.ID, "error", err)
		turn.Faults = append(turn.Faults, err)
	} else {
		result.Payload = res.Payload
		result.Chunks = res.Chunks
	}
	turn.append(Message{Role: RoleTool, Content: result.Payload, Tool: result})
	return StateGenerate, nil
}

func (c *Controller) generate(ctx context.Context, turn *Turn) (State, error) {
	var payloads []string
	var chunks []profile.Chunk
	for _, m := range turn.trailingTools() {
		if m.Tool == nil {
			continue
		}
		if m.Tool.Payload != "" {
			payloads = append(payloads, m.Tool.Payload)
		}
		chunks = append(chunks, m.Tool.Chunks...)
	}
	payload := strings.Join(payloads, "\n\n")

	question := turn.Question()
	turn.Qualifier = temporal.QualifierFor(question, turn.Tense == intent.TensePresent, turn.Now)
	evidence := temporal.Dedupe(c.cfg.Filter.Apply(turn.Qualifier, chunks))

	slog.Debug("generating answer",
		"turn", turn.ID,
		"payload_bytes", len(payload),
		"qualifier", turn.Qualifier.Kind,
		"profiles", len(evidence),
	)

	if len(evidence) == 0 {
		turn.Faults = append(turn.Faults, ErrEmptyEvidence)
		turn.append(Message{Role: RoleAI, Content: composer.Answer{}.JSON()})
		return StateDone, nil
	}

	gctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	msgs := c.cfg.Composer.Compose(question, evidence, turn.Now)
	raw, err := c.cfg.Chatter.Chat(gctx, c.cfg.Model, msgs, composer.AnswerSchema())
	if err != nil {
		return StateGenerate, fmt.Errorf("generating answer: %w", err)
	}

	ans, err := composer.ParseAnswer(raw)
	if err != nil {
		slog.Warn("failed to parse generated answer, returning empty list", "turn", turn.ID, "error", err)
		turn.Faults = append(turn.Faults, err)
	}

	allowed := make(map[string]bool, len(evidence))
	for _, ev := range evidence {
		allowed[ev.ID] = true
	}
	ans = ans.Restrict(allowed)

	turn.append(Message{Role: RoleAI, Content: ans.JSON()})
	return StateDone, nil
}
