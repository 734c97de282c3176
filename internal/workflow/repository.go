package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for workflows and their execution records.
type Repository interface {
	Create(ctx context.Context, wf *Workflow) error
	GetByID(ctx context.Context, id string) (*Workflow, error)
	Update(ctx context.Context, wf *Workflow) error

	RecordExecution(ctx context.Context, e *Execution) error
	ListExecutions(ctx context.Context, workflowID string, limit int) ([]Execution, error)
}

const workflowColumns = `id, name, enabled, steps, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed workflow repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new workflow. Missing ID and timestamp fields are filled in.
func (r *SQLiteRepository) Create(ctx context.Context, wf *Workflow) error {
	if wf.ID == "" {
		wf.ID = "wf-" + uuid.NewString()[:16]
	}
	now := time.Now().UTC()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	stepsJSON, err := marshalSteps(wf.Steps)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflows (id, name, enabled, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		wf.ID,
		wf.Name,
		boolToInt(wf.Enabled),
		stepsJSON,
		wf.CreatedAt.Format(time.RFC3339),
		wf.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting workflow: %w", err)
	}
	return nil
}

// GetByID retrieves a workflow by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = ?`

	wf, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying workflow: %w", err)
	}
	return wf, nil
}

// Update persists changes to an existing workflow.
func (r *SQLiteRepository) Update(ctx context.Context, wf *Workflow) error {
	wf.UpdatedAt = time.Now().UTC()

	stepsJSON, err := marshalSteps(wf.Steps)
	if err != nil {
		return err
	}

	query := `UPDATE workflows SET name = ?, enabled = ?, steps = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		wf.Name,
		boolToInt(wf.Enabled),
		stepsJSON,
		wf.UpdatedAt.Format(time.RFC3339),
		wf.ID,
	)
	if err != nil {
		return fmt.Errorf("updating workflow: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordExecution inserts an execution audit row.
func (r *SQLiteRepository) RecordExecution(ctx context.Context, e *Execution) error {
	if e.ID == "" {
		e.ID = "wex-" + uuid.NewString()[:16]
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}

	resultsJSON := []byte("[]")
	if e.Results != nil {
		var err error
		resultsJSON, err = json.Marshal(e.Results)
		if err != nil {
			return fmt.Errorf("marshalling results: %w", err)
		}
	}

	query := `
		INSERT INTO workflow_executions (id, workflow_id, executed_at, steps_executed, results, success)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		e.ID,
		e.WorkflowID,
		e.ExecutedAt.Format(time.RFC3339),
		e.StepsExecuted,
		string(resultsJSON),
		boolToInt(e.Success),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves execution records for a workflow, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, workflowID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, workflow_id, executed_at, steps_executed, results, success
		FROM workflow_executions WHERE workflow_id = ? ORDER BY executed_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		var executedAt, resultsJSON string
		var success int

		if err := rows.Scan(&e.ID, &e.WorkflowID, &executedAt, &e.StepsExecuted, &resultsJSON, &success); err != nil {
			return nil, fmt.Errorf("scanning execution: %w", err)
		}

		if t, parseErr := time.Parse(time.RFC3339, executedAt); parseErr == nil {
			e.ExecutedAt = t
		}
		if err := json.Unmarshal([]byte(resultsJSON), &e.Results); err != nil {
			return nil, fmt.Errorf("unmarshalling results: %w", err)
		}
		e.Success = success != 0

		executions = append(executions, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating executions: %w", err)
	}
	return executions, nil
}

func scanWorkflow(scanner interface{ Scan(dest ...any) error }) (*Workflow, error) {
	var wf Workflow
	var enabled int
	var stepsJSON, createdAt, updatedAt string

	err := scanner.Scan(
		&wf.ID,
		&wf.Name,
		&enabled,
		&stepsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	wf.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(stepsJSON), &wf.Steps); err != nil {
		return nil, fmt.Errorf("unmarshalling steps: %w", err)
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		wf.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		wf.UpdatedAt = t
	}

	return &wf, nil
}

func marshalSteps(steps StepList) (string, error) {
	if steps == nil {
		return "[]", nil
	}
	data, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("marshalling steps: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
