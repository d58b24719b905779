package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/opencode-ai/wavecast/internal/models"
)

func newTestRepo(t *testing.T) *DispatchRepository {
	t.Helper()

	database, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	applied, err := database.MigrateUp(context.Background())
	if err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected 1 migration, got %d", applied)
	}
	again, err := database.MigrateUp(context.Background())
	if err != nil || again != 0 {
		t.Fatalf("expected idempotent migrations, got %d err=%v", again, err)
	}

	return NewDispatchRepository(database)
}

func TestDispatchRepositoryCreateGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	record := &models.DispatchRecord{
		RunID:     "run-1",
		Iteration: 1,
		Name:      "Ada",
		Number:    "+49170111",
		Channel:   models.ChannelSignal,
		Handle:    "welcome",
		Wave:      2,
		Status:    models.DispatchStatusSent,
		Content:   "Hallo Ada",
	}
	if err := repo.Create(ctx, record); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if record.ID == "" {
		t.Fatal("expected ID to be set")
	}
	if record.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be set")
	}

	got, err := repo.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Number != record.Number || got.Channel != models.ChannelSignal || got.Wave != 2 || got.Content != "Hallo Ada" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if !got.Timestamp.Equal(record.Timestamp) {
		t.Fatalf("timestamp mismatch: %v vs %v", got.Timestamp, record.Timestamp)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrDispatchNotFound) {
		t.Fatalf("expected ErrDispatchNotFound, got %v", err)
	}
}

func TestDispatchRepositoryCreateValidates(t *testing.T) {
	repo := newTestRepo(t)
	err := repo.Create(context.Background(), &models.DispatchRecord{RunID: "run-1", Status: models.DispatchStatusSent})
	if err == nil {
		t.Fatal("expected validation error for missing number")
	}
}

func TestDispatchRepositoryQuery(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	base := time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)

	records := []*models.DispatchRecord{
		{RunID: "run-1", Number: "+1", Status: models.DispatchStatusSent, Timestamp: base},
		{RunID: "run-1", Number: "+2", Status: models.DispatchStatusUnrecorded, Timestamp: base.Add(time.Second)},
		{RunID: "run-2", Number: "+1", Status: models.DispatchStatusSkipped, Timestamp: base.Add(time.Hour)},
		{RunID: "run-2", Number: "+2", Status: models.DispatchStatusUnrecorded, Timestamp: base.Add(2 * time.Hour)},
	}
	for _, r := range records {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	byRun, err := repo.Query(ctx, DispatchQuery{RunID: "run-1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byRun) != 2 || byRun[0].Number != "+1" {
		t.Fatalf("unexpected run records: %+v", byRun)
	}

	byNumber, err := repo.Query(ctx, DispatchQuery{Number: "+1"})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(byNumber) != 2 {
		t.Fatalf("expected 2 records for +1, got %d", len(byNumber))
	}

	since := base.Add(30 * time.Minute)
	recent, err := repo.Query(ctx, DispatchQuery{Since: &since, Limit: 1})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(recent) != 1 || recent[0].RunID != "run-2" || recent[0].Status != models.DispatchStatusSkipped {
		t.Fatalf("unexpected recent records: %+v", recent)
	}

	unrecorded, err := repo.ListUnrecorded(ctx, 0)
	if err != nil {
		t.Fatalf("ListUnrecorded failed: %v", err)
	}
	if len(unrecorded) != 2 {
		t.Fatalf("expected 2 unrecorded, got %d", len(unrecorded))
	}
	for _, r := range unrecorded {
		if r.Status != models.DispatchStatusUnrecorded {
			t.Fatalf("unexpected status: %s", r.Status)
		}
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := t.TempDir() + "/nested/journal.db"
	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer database.Close()

	if _, err := database.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
}
