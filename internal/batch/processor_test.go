package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canopyops/canopy-core/internal/plant"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE analysis_batches (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			plant_ids TEXT NOT NULL DEFAULT '[]',
			type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			total_count INTEGER NOT NULL DEFAULT 0,
			completed_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			started_at TEXT,
			completed_at TEXT,
			results TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// stubAnalyzer fails for plant ids listed in failFor.
type stubAnalyzer struct {
	calls   []string
	failFor map[string]bool
}

func (s *stubAnalyzer) TriggerAnalysis(_ context.Context, plantID string, analysisType plant.AnalysisType, _ map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, plantID)
	if s.failFor[plantID] {
		return nil, fmt.Errorf("%w: camera offline", plant.ErrAnalysisFailed)
	}
	return map[string]any{"healthScore": 80.0, "analysisType": string(analysisType)}, nil
}

func createBatch(t *testing.T, repo Repository, plantIDs []string, status string) *AnalysisBatch {
	t.Helper()
	b := &AnalysisBatch{Name: "test", PlantIDs: plantIDs, Type: "photo", Status: status}
	if err := repo.Create(context.Background(), b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return b
}

func TestProcessor_PartialFailure(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	analyzer := &stubAnalyzer{failFor: map[string]bool{"p2": true}}
	processor := NewProcessor(repo, analyzer, Options{})
	ctx := context.Background()

	b := createBatch(t, repo, []string{"p1", "p2"}, "")

	result, err := processor.ExecuteBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}

	if result.CompletedCount != 1 || result.FailedCount != 1 {
		t.Errorf("counts = %d/%d, want 1 completed 1 failed", result.CompletedCount, result.FailedCount)
	}
	if len(result.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(result.Results))
	}
	if result.Results[0]["plantId"] != "p1" || result.Results[0]["success"] != true {
		t.Errorf("first result = %v", result.Results[0])
	}
	if result.Results[1]["plantId"] != "p2" || result.Results[1]["success"] != false {
		t.Errorf("second result = %v", result.Results[1])
	}

	// A partial failure still completes the batch.
	stored, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.Status != StatusCompleted {
		t.Errorf("Status = %q, want completed", stored.Status)
	}
	if stored.CompletedCount+stored.FailedCount != stored.TotalCount {
		t.Errorf("counter invariant broken: %d+%d != %d", stored.CompletedCount, stored.FailedCount, stored.TotalCount)
	}
	if len(stored.Results) != stored.TotalCount {
		t.Errorf("stored %d results, want %d", len(stored.Results), stored.TotalCount)
	}
	if stored.StartedAt == nil || stored.CompletedAt == nil {
		t.Error("StartedAt and CompletedAt should both be set")
	}
}

func TestProcessor_StatusPreconditions(t *testing.T) {
	tests := []struct {
		status  string
		wantErr bool
	}{
		{StatusPending, false},
		{StatusFailed, false},
		{StatusRunning, true},
		{StatusCompleted, true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			repo := NewSQLiteRepository(setupTestDB(t))
			processor := NewProcessor(repo, &stubAnalyzer{}, Options{})
			ctx := context.Background()

			b := createBatch(t, repo, []string{"p1"}, tt.status)

			_, err := processor.ExecuteBatch(ctx, b.ID)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidStatus) {
					t.Fatalf("ExecuteBatch() error = %v, want ErrInvalidStatus", err)
				}
				// No mutation on a rejected batch.
				stored, _ := repo.GetByID(ctx, b.ID)
				if stored.Status != tt.status {
					t.Errorf("Status changed to %q", stored.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExecuteBatch() error = %v", err)
			}
		})
	}
}

func TestProcessor_RetryFailedResetsCounters(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	b := createBatch(t, repo, []string{"p1", "p2"}, StatusFailed)
	// Leftover counters from the failed attempt.
	if err := repo.IncrementFailed(ctx, b.ID); err != nil {
		t.Fatalf("IncrementFailed() error = %v", err)
	}

	processor := NewProcessor(repo, &stubAnalyzer{}, Options{})
	result, err := processor.ExecuteBatch(ctx, b.ID)
	if err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}

	if result.CompletedCount != 2 || result.FailedCount != 0 {
		t.Errorf("counts = %d/%d, want 2/0 after retry", result.CompletedCount, result.FailedCount)
	}
	stored, _ := repo.GetByID(ctx, b.ID)
	if stored.CompletedCount != 2 || stored.FailedCount != 0 {
		t.Errorf("stored counts = %d/%d, stale counters not reset", stored.CompletedCount, stored.FailedCount)
	}
}

func TestProcessor_OrderPreserved(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	analyzer := &stubAnalyzer{}
	processor := NewProcessor(repo, analyzer, Options{})

	b := createBatch(t, repo, []string{"c", "a", "b"}, "")

	if _, err := processor.ExecuteBatch(context.Background(), b.ID); err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}

	want := []string{"c", "a", "b"}
	for i, id := range want {
		if analyzer.calls[i] != id {
			t.Fatalf("call order = %v, want %v", analyzer.calls, want)
		}
	}
}

func TestProcessor_CancellationFailsBatch(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	processor := NewProcessor(repo, &stubAnalyzer{}, Options{})

	b := createBatch(t, repo, []string{"p1"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.ExecuteBatch(ctx, b.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("ExecuteBatch() error = %v, want context.Canceled", err)
	}

	stored, getErr := repo.GetByID(context.Background(), b.ID)
	if getErr != nil {
		t.Fatalf("GetByID() error = %v", getErr)
	}
	if stored.Status != StatusFailed {
		t.Errorf("Status = %q, want failed after loop-level error", stored.Status)
	}
}

func TestProcessor_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	processor := NewProcessor(repo, &stubAnalyzer{}, Options{})

	_, err := processor.ExecuteBatch(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ExecuteBatch() error = %v, want ErrNotFound", err)
	}
}

func TestProcessor_HistoryRecorded(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	history := &captureHistory{}
	processor := NewProcessor(repo, &stubAnalyzer{}, Options{History: history})

	b := createBatch(t, repo, []string{"p1"}, "")

	if _, err := processor.ExecuteBatch(context.Background(), b.ID); err != nil {
		t.Fatalf("ExecuteBatch() error = %v", err)
	}

	if len(history.records) != 1 {
		t.Fatalf("got %d history records, want 1", len(history.records))
	}
	rec := history.records[0]
	if rec.Metadata["batchId"] != b.ID || rec.Metadata["type"] != "batch" {
		t.Errorf("history metadata = %v", rec.Metadata)
	}
}

type captureHistory struct {
	records []*plant.HistoryRecord
}

func (c *captureHistory) Create(_ context.Context, rec *plant.HistoryRecord) error {
	c.records = append(c.records, rec)
	return nil
}

func TestRepository_IncrementsAreAtomic(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	b := createBatch(t, repo, []string{"p1", "p2", "p3"}, "")

	for i := 0; i < 3; i++ {
		if err := repo.IncrementCompleted(ctx, b.ID); err != nil {
			t.Fatalf("IncrementCompleted() error = %v", err)
		}
	}

	stored, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.CompletedCount != 3 {
		t.Errorf("CompletedCount = %d, want 3", stored.CompletedCount)
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	now := time.Now().UTC()
	b := &AnalysisBatch{
		Name:     "round trip",
		PlantIDs: []string{"p1", "p2"},
		Type:     "trichome",
	}
	if err := repo.Create(ctx, b); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Finish(ctx, b.ID, StatusCompleted, now, []map[string]any{{"plantId": "p1", "success": true}}); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	stored, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if stored.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", stored.TotalCount)
	}
	if len(stored.PlantIDs) != 2 || stored.PlantIDs[0] != "p1" {
		t.Errorf("PlantIDs = %v", stored.PlantIDs)
	}
	if len(stored.Results) != 1 || stored.Results[0]["plantId"] != "p1" {
		t.Errorf("Results = %v", stored.Results)
	}
}
