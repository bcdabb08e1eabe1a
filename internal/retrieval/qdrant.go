package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/alumnirag/internal/profile"
)

// Compile-time check that QdrantIndex implements Index.
var _ Index = (*QdrantIndex)(nil)

const defaultQdrantTimeout = 15 * time.Second

// QdrantIndex is a minimal REST client to Qdrant. Collections use cosine
// distance. Payloads follow the page_content/metadata layout so collections
// stay readable by other tooling.
type QdrantIndex struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewQdrantIndex creates a client for the Qdrant server at baseURL. An empty
// apiKey disables the api-key header.
func NewQdrantIndex(baseURL, apiKey string) *QdrantIndex {
	return &QdrantIndex{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultQdrantTimeout},
	}
}

type qdrantPayload struct {
	PageContent string           `json:"page_content"`
	Metadata    profile.Metadata `json:"metadata"`
}

type qdrantPoint struct {
	ID      string        `json:"id"`
	Vector  []float32     `json:"vector"`
	Payload qdrantPayload `json:"payload"`
}

func (q *QdrantIndex) collectionURL(name string, parts ...string) string {
	return q.baseURL + "/collections/" + url.PathEscape(name) + strings.Join(parts, "")
}

func (q *QdrantIndex) CollectionExists(ctx context.Context, name string) (bool, error) {
	resp, err := q.do(ctx, http.MethodGet, q.collectionURL(name), nil)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode < 300:
		return true, nil
	default:
		return false, statusError("qdrant get collection", resp)
	}
}

func (q *QdrantIndex) CreateCollection(ctx context.Context, name string, dim int) error {
	if dim <= 0 {
		return errors.New("invalid dimension")
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return q.send(ctx, http.MethodPut, q.collectionURL(name), body, nil)
}

func (q *QdrantIndex) DropCollection(ctx context.Context, name string) error {
	resp, err := q.do(ctx, http.MethodDelete, q.collectionURL(name), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return statusError("qdrant delete collection", resp)
	}
	return nil
}

func (q *QdrantIndex) Upsert(ctx context.Context, name string, points []Point) error {
	body := struct {
		Points []qdrantPoint `json:"points"`
	}{Points: make([]qdrantPoint, len(points))}
	for i, p := range points {
		body.Points[i] = qdrantPoint{
			ID:      p.ID,
			Vector:  p.Vector,
			Payload: qdrantPayload{PageContent: p.Chunk.Text, Metadata: p.Chunk.Metadata},
		}
	}
	return q.send(ctx, http.MethodPut, q.collectionURL(name, "/points?wait=true"), body, nil)
}

func (q *QdrantIndex) Search(ctx context.Context, name string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	if err := q.send(ctx, http.MethodPost, q.collectionURL(name, "/points/search"), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{
			Chunk: profile.Chunk{Text: r.Payload.PageContent, Metadata: r.Payload.Metadata},
			Score: r.Score,
		})
	}
	return hits, nil
}

func (q *QdrantIndex) Count(ctx context.Context, name string) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := q.send(ctx, http.MethodPost, q.collectionURL(name, "/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (q *QdrantIndex) do(ctx context.Context, method, u string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling qdrant request: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, r)
	if err != nil {
		return nil, fmt.Errorf("creating qdrant request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s %s: %w", method, u, err)
	}
	return resp, nil
}

func (q *QdrantIndex) send(ctx context.Context, method, u string, body, out any) error {
	resp, err := q.do(ctx, method, u, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, u)
	}
	if resp.StatusCode >= 300 {
		return statusError("qdrant "+method, resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding qdrant response: %w", err)
		}
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(excerpt)))
}
