package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestSchemaObjectsExist(t *testing.T) {
	s := openTestStore(t)

	objects := []struct{ typ, name string }{
		{"table", "collections"},
		{"table", "chunk_vectors"},
		{"table", "ingest_runs"},
		{"index", "idx_chunk_vectors_profile"},
		{"index", "idx_ingest_runs_started"},
	}
	for _, o := range objects {
		var count int
		err := s.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", o.typ, o.name).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master: %v", err)
		}
		if count != 1 {
			t.Errorf("%s %s not created", o.typ, o.name)
		}
	}
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("001_init.sql")
	if err != nil || v != 1 {
		t.Errorf("parseMigrationVersion = (%d, %v), want (1, nil)", v, err)
	}
	if _, err := parseMigrationVersion("init.sql"); err == nil {
		t.Error("expected error for unnumbered migration")
	}
}

func TestIngestRuns(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	runs := []IngestRun{
		{ID: "r1", Collection: "alumni", Backend: "sqlite", Source: "a.json", Status: RunCompleted, Profiles: 10, Chunks: 42, Skipped: 1, StartedAt: base, FinishedAt: base.Add(time.Minute)},
		{ID: "r2", Collection: "alumni", Backend: "sqlite", Source: "a.json", Status: RunSkipped, StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour)},
		{ID: "r3", Collection: "other", Backend: "qdrant", Status: RunFailed, Error: "boom", StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		if err := s.RecordIngestRun(ctx, r); err != nil {
			t.Fatalf("RecordIngestRun(%s): %v", r.ID, err)
		}
	}

	latest, err := s.LatestIngestRun(ctx, "alumni")
	if err != nil {
		t.Fatalf("LatestIngestRun: %v", err)
	}
	if latest.ID != "r2" || latest.Status != RunSkipped {
		t.Errorf("latest = %+v, want r2 skipped", latest)
	}
	if !latest.StartedAt.Equal(base.Add(time.Hour)) {
		t.Errorf("StartedAt = %v", latest.StartedAt)
	}

	list, err := s.ListIngestRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListIngestRuns: %v", err)
	}
	if len(list) != 2 || list[0].ID != "r3" || list[1].ID != "r2" {
		t.Errorf("ListIngestRuns order wrong: %+v", list)
	}
	if list[0].Error != "boom" {
		t.Errorf("Error = %q", list[0].Error)
	}

	first, err := s.LatestIngestRun(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("LatestIngestRun(missing) = %+v, %v; want ErrNotFound", first, err)
	}
}

func TestRecordIngestRun_DuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := IngestRun{ID: "dup", Collection: "c", Backend: "sqlite", Status: RunCompleted, StartedAt: time.Now(), FinishedAt: time.Now()}
	if err := s.RecordIngestRun(ctx, r); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := s.RecordIngestRun(ctx, r); err == nil {
		t.Error("expected primary key violation on duplicate id")
	}
}
