package reranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/alumnirag/internal/engine"
	"github.com/kalambet/alumnirag/internal/retrieval"
)

const defaultConcurrency = 3

// ErrTimeout is returned when scoring does not finish within the budget.
var ErrTimeout = errors.New("rerank timed out")

// NewReranker returns an LLMReranker if enabled, NoOpReranker otherwise.
// An enabled reranker without a chatter degrades to NoOpReranker.
func NewReranker(chatter engine.Chatter, model string, enabled bool, timeout time.Duration, threshold float64) retrieval.Reranker {
	if !enabled || chatter == nil {
		return NoOpReranker{}
	}
	return &LLMReranker{
		chatter:   chatter,
		model:     model,
		timeout:   timeout,
		threshold: threshold,
	}
}

// LLMReranker asks the language model how well each retrieved profile
// excerpt answers the question. Hits scoring below threshold are dropped
// and the rest are sorted by score descending.
type LLMReranker struct {
	chatter   engine.Chatter
	model     string
	timeout   time.Duration
	threshold float64
}

// Rerank scores every hit concurrently. A hit whose score cannot be
// obtained keeps its index score. If the timeout fires first, Rerank
// returns ErrTimeout and the caller keeps the index order.
func (r *LLMReranker) Rerank(ctx context.Context, query string, hits []retrieval.Hit) ([]retrieval.Hit, error) {
	if len(hits) == 0 {
		return hits, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scored := make([]retrieval.Hit, len(hits))
	copy(scored, hits)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)
	for i := range scored {
		g.Go(func() error {
			score, err := r.score(gctx, query, scored[i])
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Debug("reranker: score failed, keeping index score", "chunk", scored[i].Chunk.Metadata.ID, "error", err)
				return nil
			}
			scored[i].Score = float32(score)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrTimeout, r.timeout)
		}
		return nil, err
	}

	kept := scored[:0]
	for _, h := range scored {
		if float64(h.Score) >= r.threshold {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	return kept, nil
}

var scoreSchema = &engine.Schema{
	Type: "object",
	Properties: map[string]engine.SchemaProperty{
		"score": {Type: "number", Description: "Relevance score 0.0-1.0"},
	},
	Required: []string{"score"},
}

func (r *LLMReranker) score(ctx context.Context, query string, h retrieval.Hit) (float64, error) {
	prompt := "Rate how well the following alumni profile excerpt helps answer the question, on a scale of 0.0 to 1.0.\n" +
		"Question: " + query + "\n" +
		"Excerpt: " + h.Chunk.Text + "\n" +
		`Respond with only a JSON object: {"score": <float>}`

	resp, err := r.chatter.Chat(ctx, r.model, []engine.Message{
		{Role: "user", Content: prompt},
	}, scoreSchema)
	if err != nil {
		return 0, err
	}
	return parseScore(resp)
}

// parseScore extracts the score from a model reply that may wrap the JSON
// object in a code fence or surrounding prose.
func parseScore(resp string) (float64, error) {
	s := strings.TrimSpace(resp)

	if idx := strings.Index(s, "```"); idx != -1 {
		s = strings.TrimPrefix(s[idx+3:], "json")
		if end := strings.Index(s, "```"); end != -1 {
			s = s[:end]
		}
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return 0, fmt.Errorf("no JSON object in response")
	}

	var obj struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("unmarshal score: %w", err)
	}
	if obj.Score == nil {
		return 0, fmt.Errorf("response has no score")
	}
	return *obj.Score, nil
}

// NoOpReranker passes hits through unchanged.
type NoOpReranker struct{}

func (NoOpReranker) Rerank(_ context.Context, _ string, hits []retrieval.Hit) ([]retrieval.Hit, error) {
	return hits, nil
}
