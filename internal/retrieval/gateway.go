package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/kalambet/alumnirag/internal/profile"
)

// DefaultTopK is the number of chunks fetched per retrieval.
const DefaultTopK = 15

// NoMatch is the payload returned when the index has no chunks to offer.
const NoMatch = "No matching alumni profiles found."

// ErrIndexUnavailable wraps every failure to embed the query or to search
// the index.
var ErrIndexUnavailable = errors.New("index unavailable")

// Result is the outcome of one retrieval: the ranked chunks and their
// textual rendering for the language model.
type Result struct {
	Payload string
	Chunks  []profile.Chunk
}

// Reranker reorders the hits of one search by relevance to the query. It
// may drop hits but never adds any.
type Reranker interface {
	Rerank(ctx context.Context, query string, hits []Hit) ([]Hit, error)
}

// Gateway embeds queries and searches one collection of the chunk index.
type Gateway struct {
	embedder   *Embedder
	index      Index
	collection string
	topK       int
	reranker   Reranker
}

// NewGateway creates a Gateway. A non-positive topK selects DefaultTopK.
func NewGateway(embedder *Embedder, index Index, collection string, topK int) *Gateway {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Gateway{embedder: embedder, index: index, collection: collection, topK: topK}
}

// WithReranker installs r as a post-search step. A nil r disables reranking.
func (g *Gateway) WithReranker(r Reranker) *Gateway {
	g.reranker = r
	return g
}

// Retrieve returns the chunks nearest to query, ranked as the index ranked
// them unless a Reranker is installed. A collection that does not exist yet
// yields the NoMatch payload and no chunks.
func (g *Gateway) Retrieve(ctx context.Context, query string) (Result, error) {
	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrIndexUnavailable, err)
	}

	hits, err := g.index.Search(ctx, g.collection, vec, g.topK)
	switch {
	case errors.Is(err, ErrCollectionNotFound):
		// Nothing has been ingested yet.
		slog.Warn("collection not found, answering with no matches", "collection", g.collection)
		return Result{Payload: NoMatch, Chunks: []profile.Chunk{}}, nil
	case err != nil:
		return Result{}, fmt.Errorf("%w: searching %s: %w", ErrIndexUnavailable, g.collection, err)
	}

	if g.reranker != nil {
		reranked, err := g.reranker.Rerank(ctx, query, hits)
		if err != nil {
			slog.Warn("rerank failed, keeping index order", "error", err)
		} else {
			hits = reranked
		}
	}

	chunks := make([]profile.Chunk, len(hits))
	for i, h := range hits {
		chunks[i] = h.Chunk
	}
	return Result{Payload: Serialize(chunks), Chunks: chunks}, nil
}

// Serialize renders ranked chunks as numbered blocks separated by blank
// lines.
func Serialize(chunks []profile.Chunk) string {
	if len(chunks) == 0 {
		return NoMatch
	}
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". Content: ")
		b.WriteString(c.Text)
		b.WriteString("\nId: ")
		b.WriteString(c.Metadata.ID)
		b.WriteString("\nName: ")
		b.WriteString(c.Metadata.Name)
		b.WriteString("\nProfile Pic: ")
		b.WriteString(c.Metadata.ProfilePic)
	}
	return b.String()
}
