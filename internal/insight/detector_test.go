package insight

import (
	"context"
	"database/sql"
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
		CREATE TABLE anomaly_detections (
			id TEXT PRIMARY KEY,
			plant_id TEXT NOT NULL,
			metric TEXT NOT NULL,
			severity TEXT NOT NULL,
			threshold REAL NOT NULL,
			current_value REAL NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			resolved_at TEXT
		) STRICT;

		CREATE TABLE analysis_milestones (
			id TEXT PRIMARY KEY,
			plant_id TEXT NOT NULL,
			type TEXT NOT NULL,
			detected_at TEXT NOT NULL
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

type stubHistory struct {
	records []plant.HistoryRecord
}

func (s *stubHistory) ListSince(_ context.Context, since time.Time) ([]plant.HistoryRecord, error) {
	// Newest first, matching the real repository.
	var out []plant.HistoryRecord
	for i := len(s.records) - 1; i >= 0; i-- {
		if !s.records[i].CreatedAt.Before(since) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

func trichomePayload(stage string, ready bool, amber float64) map[string]any {
	return map[string]any{
		"trichomeAnalysis": map[string]any{
			"overallMaturity":  map[string]any{"stage": stage, "amberPercentage": amber},
			"harvestReadiness": map[string]any{"ready": ready},
		},
	}
}

func TestDetector_HealthScoreSeverity(t *testing.T) {
	tests := []struct {
		name         string
		data         map[string]any
		wantSeverity string
		wantCreated  bool
	}{
		{"low score is high severity", map[string]any{"healthScore": 55.0}, SeverityHigh, true},
		{"very low score is critical", map[string]any{"healthScore": 30.0}, SeverityCritical, true},
		{"nested score honored", map[string]any{"analysis": map[string]any{"healthScore": 45.0}}, SeverityHigh, true},
		{"healthy score creates nothing", map[string]any{"healthScore": 85.0}, "", false},
		{"missing score creates nothing", map[string]any{}, "", false},
		{"boundary 60 creates nothing", map[string]any{"healthScore": 60.0}, "", false},
		{"boundary 40 is high", map[string]any{"healthScore": 40.0}, SeverityHigh, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewSQLiteAnomalyRepository(setupTestDB(t))
			detector := NewDetector(repo, nil, nil)
			ctx := context.Background()

			if err := detector.DetectFromAnalysis(ctx, "plant-1", tt.data); err != nil {
				t.Fatalf("DetectFromAnalysis() error = %v", err)
			}

			anomalies, err := repo.ListUnresolved(ctx, 10)
			if err != nil {
				t.Fatalf("ListUnresolved() error = %v", err)
			}

			if !tt.wantCreated {
				if len(anomalies) != 0 {
					t.Errorf("got %d anomalies, want none", len(anomalies))
				}
				return
			}
			if len(anomalies) != 1 {
				t.Fatalf("got %d anomalies, want 1", len(anomalies))
			}
			a := anomalies[0]
			if a.Severity != tt.wantSeverity {
				t.Errorf("Severity = %q, want %q", a.Severity, tt.wantSeverity)
			}
			if a.Metric != MetricHealthScore || a.Threshold != 60 {
				t.Errorf("anomaly = %+v, want health_score/60", a)
			}
		})
	}
}

func TestDetector_DedupIdempotence(t *testing.T) {
	repo := NewSQLiteAnomalyRepository(setupTestDB(t))
	detector := NewDetector(repo, nil, nil)
	ctx := context.Background()

	payload := map[string]any{"healthScore": 42.0}
	for i := 0; i < 3; i++ {
		if err := detector.DetectFromAnalysis(ctx, "plant-1", payload); err != nil {
			t.Fatalf("DetectFromAnalysis() error = %v", err)
		}
	}

	anomalies, err := repo.ListUnresolved(ctx, 10)
	if err != nil {
		t.Fatalf("ListUnresolved() error = %v", err)
	}
	if len(anomalies) != 1 {
		t.Errorf("got %d anomalies, want exactly 1 despite repeated inputs", len(anomalies))
	}
}

func TestDetector_ReopensAfterResolve(t *testing.T) {
	repo := NewSQLiteAnomalyRepository(setupTestDB(t))
	detector := NewDetector(repo, nil, nil)
	ctx := context.Background()

	payload := map[string]any{"healthScore": 42.0}
	if err := detector.DetectFromAnalysis(ctx, "plant-1", payload); err != nil {
		t.Fatalf("DetectFromAnalysis() error = %v", err)
	}

	open, _ := repo.ListUnresolved(ctx, 10)
	if err := repo.Resolve(ctx, open[0].ID); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	// With the prior anomaly resolved, the same payload opens a new one.
	if err := detector.DetectFromAnalysis(ctx, "plant-1", payload); err != nil {
		t.Fatalf("DetectFromAnalysis() error = %v", err)
	}
	open, _ = repo.ListUnresolved(ctx, 10)
	if len(open) != 1 {
		t.Errorf("got %d unresolved anomalies, want 1 reopened", len(open))
	}
}

func TestDetector_TrichomeRule(t *testing.T) {
	repo := NewSQLiteAnomalyRepository(setupTestDB(t))
	detector := NewDetector(repo, nil, nil)
	ctx := context.Background()

	if err := detector.DetectFromAnalysis(ctx, "plant-1", trichomePayload("amber", true, 35)); err != nil {
		t.Fatalf("DetectFromAnalysis() error = %v", err)
	}

	anomalies, _ := repo.ListUnresolved(ctx, 10)
	if len(anomalies) != 1 {
		t.Fatalf("got %d anomalies, want 1", len(anomalies))
	}
	a := anomalies[0]
	if a.Metric != MetricTrichomeMaturity || a.Severity != SeverityMedium {
		t.Errorf("anomaly = %+v, want trichome_maturity/medium", a)
	}
	if a.CurrentValue != 35 {
		t.Errorf("CurrentValue = %v, want amber percentage 35", a.CurrentValue)
	}
	if a.Threshold != 70 {
		t.Errorf("Threshold = %v, want 70", a.Threshold)
	}
}

func TestDetector_TrichomeRuleRequiresBothSignals(t *testing.T) {
	repo := NewSQLiteAnomalyRepository(setupTestDB(t))
	detector := NewDetector(repo, nil, nil)
	ctx := context.Background()

	// Amber but not ready, then ready but cloudy.
	for _, data := range []map[string]any{
		trichomePayload("amber", false, 20),
		trichomePayload("cloudy", true, 5),
	} {
		if err := detector.DetectFromAnalysis(ctx, "plant-1", data); err != nil {
			t.Fatalf("DetectFromAnalysis() error = %v", err)
		}
	}

	anomalies, _ := repo.ListUnresolved(ctx, 10)
	if len(anomalies) != 0 {
		t.Errorf("got %d anomalies, want none", len(anomalies))
	}
}

func TestDetector_ScanHistory(t *testing.T) {
	repo := NewSQLiteAnomalyRepository(setupTestDB(t))
	now := time.Now().UTC()
	history := &stubHistory{records: []plant.HistoryRecord{
		{ID: "h1", PlantID: "plant-1", CreatedAt: now.Add(-2 * time.Hour), Data: map[string]any{"healthScore": 55.0}},
		{ID: "h2", PlantID: "plant-2", CreatedAt: now.Add(-time.Hour), Data: map[string]any{"healthScore": 90.0}},
		{ID: "h3", PlantID: "plant-3", CreatedAt: now.Add(-30 * time.Minute), Data: map[string]any{"healthScore": 20.0}},
	}}
	detector := NewDetector(repo, history, nil)

	created, err := detector.ScanHistory(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("ScanHistory() error = %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}
}
