package retrieval

import (
	"context"
	"errors"
	"strconv"

	"github.com/google/uuid"

	"github.com/kalambet/alumnirag/internal/profile"
)

// ErrCollectionNotFound is returned by index operations on a collection that
// does not exist.
var ErrCollectionNotFound = errors.New("collection not found")

// Index is the nearest-neighbour collaborator. Implementations store chunks
// together with their vectors in named collections.
type Index interface {
	// CollectionExists reports whether name has been created.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// CreateCollection creates an empty collection for vectors of size dim
	// compared by cosine similarity.
	CreateCollection(ctx context.Context, name string, dim int) error

	// DropCollection deletes the collection and everything in it. Dropping a
	// missing collection is not an error.
	DropCollection(ctx context.Context, name string) error

	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, name string, points []Point) error

	// Search returns up to k chunks ranked by descending similarity.
	Search(ctx context.Context, name string, vector []float32, k int) ([]Hit, error)

	// Count returns the number of points in the collection.
	Count(ctx context.Context, name string) (int, error)
}

// Point is a chunk and its embedding.
type Point struct {
	ID     string
	Vector []float32
	Chunk  profile.Chunk
}

// Hit is a search result.
type Hit struct {
	Chunk profile.Chunk
	Score float32
}

// PointID derives a stable UUID for a chunk from its profile id, kind and
// ordinal, so re-ingesting a profile replaces its points.
func PointID(c profile.Chunk) string {
	key := c.Metadata.ID + "#" + string(c.Metadata.Kind) + "#" + strconv.Itoa(c.Metadata.Ordinal)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// NewPoints pairs chunks with their vectors.
func NewPoints(chunks []profile.Chunk, vectors [][]float32) ([]Point, error) {
	if len(chunks) != len(vectors) {
		return nil, errors.New("chunks and vectors length mismatch")
	}
	points := make([]Point, len(chunks))
	for i, c := range chunks {
		points[i] = Point{ID: PointID(c), Vector: vectors[i], Chunk: c}
	}
	return points, nil
}
