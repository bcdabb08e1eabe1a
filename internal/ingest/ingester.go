// Package ingest loads a batch of alumni profiles into the chunk index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/alumnirag/internal/profile"
	"github.com/kalambet/alumnirag/internal/retrieval"
	"github.com/kalambet/alumnirag/internal/storage"
)

const defaultBatchSize = 64

// BatchEmbedder generates embeddings for many texts, in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// RunRecorder persists ingestion bookkeeping.
type RunRecorder interface {
	RecordIngestRun(ctx context.Context, r storage.IngestRun) error
}

// Config wires an Ingester.
type Config struct {
	Index      retrieval.Index
	Embedder   BatchEmbedder
	Runs       RunRecorder
	Collection string
	// Backend names the index backend in run records.
	Backend string
	// BatchSize bounds the number of chunks embedded and upserted per round.
	BatchSize int
}

// Options control one ingestion run.
type Options struct {
	// Reset drops an existing collection before loading.
	Reset bool
	// Source describes the input, typically its file path.
	Source string
}

// Report summarizes one ingestion run.
type Report struct {
	RunID     string
	Status    string
	Profiles  int
	Chunks    int
	Malformed []*profile.MalformedProfileError
}

// Ingester parses, segments, embeds and loads profiles. It is meant to run
// as a batch process, never concurrently with itself on one collection.
type Ingester struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Ingester. If cfg.BatchSize <= 0, it defaults to 64.
func New(cfg Config) *Ingester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	return &Ingester{cfg: cfg, logger: slog.Default()}
}

// Run ingests a JSON array of profiles. An existing collection makes the run
// a no-op unless opts.Reset is set.
func (in *Ingester) Run(ctx context.Context, data []byte, opts Options) (Report, error) {
	run := storage.IngestRun{
		ID:         uuid.NewString(),
		Collection: in.cfg.Collection,
		Backend:    in.cfg.Backend,
		Source:     opts.Source,
		StartedAt:  time.Now().UTC(),
	}

	rep, err := in.run(ctx, data, opts)
	rep.RunID = run.ID
	run.Status = rep.Status
	run.Profiles = rep.Profiles
	run.Chunks = rep.Chunks
	run.Skipped = len(rep.Malformed)
	if err != nil {
		run.Status = storage.RunFailed
		run.Error = err.Error()
		run.Chunks = 0
		rep.Status = storage.RunFailed
		rep.Chunks = 0
	}
	run.FinishedAt = time.Now().UTC()

	if in.cfg.Runs != nil {
		if recErr := in.cfg.Runs.RecordIngestRun(ctx, run); recErr != nil {
			in.logger.Warn("failed to record ingest run", "run_id", run.ID, "error", recErr)
		}
	}
	return rep, err
}

func (in *Ingester) run(ctx context.Context, data []byte, opts Options) (Report, error) {
	records, malformed, err := profile.ParseBatch(data)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Profiles: len(records), Malformed: malformed}
	for _, m := range malformed {
		in.logger.Warn("skipping malformed profile", "index", m.Index, "reason", m.Reason)
	}

	exists, err := in.cfg.Index.CollectionExists(ctx, in.cfg.Collection)
	if err != nil {
		return rep, fmt.Errorf("checking collection %s: %w", in.cfg.Collection, err)
	}
	if exists && !opts.Reset {
		in.logger.Info("collection already exists, skipping ingestion", "collection", in.cfg.Collection)
		rep.Status = storage.RunSkipped
		rep.Profiles = 0
		return rep, nil
	}
	if exists {
		if err := in.cfg.Index.DropCollection(ctx, in.cfg.Collection); err != nil {
			return rep, fmt.Errorf("dropping collection %s: %w", in.cfg.Collection, err)
		}
		in.logger.Info("dropped collection", "collection", in.cfg.Collection)
	}

	var chunks []profile.Chunk
	for _, rec := range records {
		chunks = append(chunks, profile.Segment(rec)...)
	}
	if len(chunks) == 0 {
		in.logger.Warn("no profiles to ingest", "source", opts.Source)
		rep.Status = storage.RunCompleted
		return rep, nil
	}

	created := false
	for start := 0; start < len(chunks); start += in.cfg.BatchSize {
		end := min(start+in.cfg.BatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := in.cfg.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return rep, in.abort(ctx, created, fmt.Errorf("embedding chunks %d-%d: %w", start, end, err))
		}

		if !created {
			if err := in.cfg.Index.CreateCollection(ctx, in.cfg.Collection, len(vecs[0])); err != nil {
				return rep, fmt.Errorf("creating collection %s: %w", in.cfg.Collection, err)
			}
			created = true
		}

		points, err := retrieval.NewPoints(batch, vecs)
		if err != nil {
			return rep, in.abort(ctx, created, err)
		}
		if err := in.cfg.Index.Upsert(ctx, in.cfg.Collection, points); err != nil {
			return rep, in.abort(ctx, created, fmt.Errorf("upserting chunks %d-%d: %w", start, end, err))
		}
		rep.Chunks += len(batch)
		in.logger.Debug("ingested batch", "chunks", rep.Chunks, "total", len(chunks))
	}

	rep.Status = storage.RunCompleted
	in.logger.Info("ingestion complete",
		"collection", in.cfg.Collection,
		"profiles", rep.Profiles,
		"chunks", rep.Chunks,
		"skipped", len(rep.Malformed),
	)
	return rep, nil
}

// abort drops a partially loaded collection. An existing collection is
// always a complete one.
func (in *Ingester) abort(ctx context.Context, created bool, cause error) error {
	if created {
		if err := in.cfg.Index.DropCollection(context.WithoutCancel(ctx), in.cfg.Collection); err != nil {
			in.logger.Error("failed to drop partial collection", "collection", in.cfg.Collection, "error", err)
		}
	}
	return cause
}
