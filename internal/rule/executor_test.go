package rule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canopyops/canopy-core/internal/action"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	schema := `
		CREATE TABLE rules (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			plant_id TEXT,
			schedule_id TEXT,
			enabled INTEGER NOT NULL DEFAULT 1,
			actions TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;

		CREATE TABLE rule_executions (
			id TEXT PRIMARY KEY,
			rule_id TEXT NOT NULL,
			executed_at TEXT NOT NULL,
			results TEXT NOT NULL DEFAULT '[]',
			success INTEGER NOT NULL DEFAULT 0
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// stubRunner returns canned results keyed by action type, or an error.
type stubRunner struct {
	calls []action.Type
	fail  map[action.Type]error
}

func (s *stubRunner) Execute(_ context.Context, actionType action.Type, plantID string, _ map[string]any) (map[string]any, error) {
	s.calls = append(s.calls, actionType)
	if err, ok := s.fail[actionType]; ok {
		return nil, err
	}
	if !actionType.Valid() {
		return nil, fmt.Errorf("%w: %q", action.ErrUnknownType, actionType)
	}
	return map[string]any{"ok": true, "plantId": plantID}, nil
}

func TestExecutor_Execute(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	runner := &stubRunner{}
	executor := NewExecutor(repo, runner, nil)
	ctx := context.Background()

	r := &Rule{
		Name:    "evening check",
		PlantID: "plant-1",
		Enabled: true,
		Actions: []action.Descriptor{
			{Type: action.TypeAnalyze, Config: map[string]any{"analysisType": "health"}},
			{Type: action.TypeNotify, Config: map[string]any{"title": "done"}},
		},
	}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	execution, err := executor.Execute(ctx, r.ID)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if !execution.Success {
		t.Error("execution should report success")
	}
	if len(execution.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(execution.Results))
	}
	if execution.Results[0].Action != action.TypeAnalyze || execution.Results[1].Action != action.TypeNotify {
		t.Errorf("results out of order: %+v", execution.Results)
	}

	// Audit row persisted.
	audits, err := repo.ListExecutions(ctx, r.ID, 10)
	if err != nil {
		t.Fatalf("ListExecutions() error = %v", err)
	}
	if len(audits) != 1 {
		t.Fatalf("got %d audit rows, want 1", len(audits))
	}
	if len(audits[0].Results) != 2 {
		t.Errorf("audit row carries %d results, want 2", len(audits[0].Results))
	}
}

func TestExecutor_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	executor := NewExecutor(repo, &stubRunner{}, nil)

	_, err := executor.Execute(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Execute() error = %v, want ErrNotFound", err)
	}
}

func TestExecutor_Disabled(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	executor := NewExecutor(repo, &stubRunner{}, nil)
	ctx := context.Background()

	r := &Rule{Name: "off", Enabled: false}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err := executor.Execute(ctx, r.ID)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Execute() error = %v, want ErrDisabled", err)
	}
}

func TestExecutor_ActionFailureIsolated(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	runner := &stubRunner{fail: map[action.Type]error{
		action.TypeCapture: errors.New("camera offline"),
	}}
	executor := NewExecutor(repo, runner, nil)
	ctx := context.Background()

	r := &Rule{
		Name:    "capture then notify",
		Enabled: true,
		Actions: []action.Descriptor{
			{Type: action.TypeCapture},
			{Type: action.TypeNotify, Config: map[string]any{"title": "x"}},
		},
	}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	execution, err := executor.Execute(ctx, r.ID)
	if err != nil {
		t.Fatalf("Execute() error = %v, per-action failures must not abort", err)
	}

	if len(execution.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(execution.Results))
	}
	if execution.Results[0].Error == "" {
		t.Error("first result should carry the capture error")
	}
	if execution.Results[1].Result == nil {
		t.Error("notify should still have run after the capture failure")
	}
	if len(runner.calls) != 2 {
		t.Errorf("runner called %d times, want 2", len(runner.calls))
	}
}

func TestExecutor_UnknownActionSkipped(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	runner := &stubRunner{}
	executor := NewExecutor(repo, runner, nil)
	ctx := context.Background()

	r := &Rule{
		Name:    "mixed",
		Enabled: true,
		Actions: []action.Descriptor{
			{Type: action.Type("water")},
			{Type: action.TypeNotify, Config: map[string]any{"title": "x"}},
		},
	}
	if err := repo.Create(ctx, r); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	execution, err := executor.Execute(ctx, r.ID)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// Unknown types are omitted from results entirely.
	if len(execution.Results) != 1 {
		t.Fatalf("got %d results, want 1", len(execution.Results))
	}
	if execution.Results[0].Action != action.TypeNotify {
		t.Errorf("surviving result = %+v, want notify", execution.Results[0])
	}
}

func TestRepository_ListEnabledBySchedule(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	rules := []*Rule{
		{Name: "a", ScheduleID: "sch-1", Enabled: true},
		{Name: "b", ScheduleID: "sch-1", Enabled: false},
		{Name: "c", ScheduleID: "sch-2", Enabled: true},
	}
	for _, r := range rules {
		if err := repo.Create(ctx, r); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.ListEnabledBySchedule(ctx, "sch-1")
	if err != nil {
		t.Fatalf("ListEnabledBySchedule() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "a" {
		t.Errorf("got %+v, want only rule a", got)
	}
}
