package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Ingest run outcomes.
const (
	RunCompleted = "completed"
	RunSkipped   = "skipped"
	RunFailed    = "failed"
)

// IngestRun records one execution of the ingestion batch.
type IngestRun struct {
	ID         string
	Collection string
	Backend    string
	Source     string
	Status     string
	Profiles   int
	Chunks     int
	Skipped    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
