package plant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the history schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE analysis_history (
			id TEXT PRIMARY KEY,
			plant_id TEXT NOT NULL,
			analysis_type TEXT NOT NULL,
			data TEXT NOT NULL DEFAULT '{}',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryRepository_CreateAndGet(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	rec := &HistoryRecord{
		PlantID:      "plant-1",
		AnalysisType: "automated_photo",
		Data:         map[string]any{"healthScore": 72.5},
		Metadata:     map[string]any{"type": "scheduled"},
	}

	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}
	if rec.CreatedAt.IsZero() {
		t.Fatal("Create() did not assign CreatedAt")
	}

	got, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.PlantID != "plant-1" {
		t.Errorf("PlantID = %q, want plant-1", got.PlantID)
	}
	if score, ok := HealthScore(got.Data); !ok || score != 72.5 {
		t.Errorf("round-tripped healthScore = %v (ok=%v), want 72.5", score, ok)
	}
	if got.Metadata["type"] != "scheduled" {
		t.Errorf("Metadata[type] = %v, want scheduled", got.Metadata["type"])
	}
}

func TestHistoryRepository_GetMissing(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupTestDB(t))

	_, err := repo.GetByID(context.Background(), "nope")
	if !errors.Is(err, ErrHistoryNotFound) {
		t.Errorf("GetByID() error = %v, want ErrHistoryNotFound", err)
	}
}

func TestHistoryRepository_ListSince(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	old := &HistoryRecord{PlantID: "p1", AnalysisType: "photo", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &HistoryRecord{PlantID: "p1", AnalysisType: "photo", CreatedAt: now.Add(-1 * time.Hour)}
	for _, rec := range []*HistoryRecord{old, fresh} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListSince(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ListSince() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ListSince() returned %d records, want 1", len(got))
	}
	if got[0].ID != fresh.ID {
		t.Errorf("ListSince() returned %q, want %q", got[0].ID, fresh.ID)
	}
}

func TestHistoryRepository_PruneKeepNewest(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	// Ten rows for p1, three for p2; pruning p1 must not touch p2.
	for i := 0; i < 10; i++ {
		rec := &HistoryRecord{
			PlantID:      "p1",
			AnalysisType: "photo",
			CreatedAt:    now.Add(time.Duration(-i) * time.Hour),
			Data:         map[string]any{"seq": i},
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		rec := &HistoryRecord{
			PlantID:      "p2",
			AnalysisType: "photo",
			CreatedAt:    now.Add(time.Duration(-i) * time.Hour),
		}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	deleted, err := repo.PruneKeepNewest(ctx, "p1", 4)
	if err != nil {
		t.Fatalf("PruneKeepNewest() error = %v", err)
	}
	if deleted != 6 {
		t.Errorf("deleted = %d, want 6", deleted)
	}

	count, err := repo.CountByPlant(ctx, "p1")
	if err != nil {
		t.Fatalf("CountByPlant() error = %v", err)
	}
	if count != 4 {
		t.Errorf("p1 count = %d, want 4", count)
	}

	count, err = repo.CountByPlant(ctx, "p2")
	if err != nil {
		t.Fatalf("CountByPlant() error = %v", err)
	}
	if count != 3 {
		t.Errorf("p2 count = %d, want 3", count)
	}

	// The newest rows survive.
	remaining, err := repo.ListByPlant(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListByPlant() error = %v", err)
	}
	for i, rec := range remaining {
		if seq, _ := rec.Data["seq"].(float64); int(seq) != i {
			t.Errorf("remaining[%d] seq = %v, want %d", i, rec.Data["seq"], i)
		}
	}
}

func TestHistoryRepository_DistinctPlantIDs(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupTestDB(t))
	ctx := context.Background()

	for _, plantID := range []string{"p2", "p1", "p1", "p3"} {
		rec := &HistoryRecord{PlantID: plantID, AnalysisType: "photo"}
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	ids, err := repo.DistinctPlantIDs(ctx)
	if err != nil {
		t.Fatalf("DistinctPlantIDs() error = %v", err)
	}
	want := []string{"p1", "p2", "p3"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("DistinctPlantIDs() = %v, want %v", ids, want)
	}
}
