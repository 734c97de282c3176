package batch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for analysis batches.
//
// The counter increments run as single SQL updates against the stored
// row, never as read-modify-write of a snapshot, so concurrent item
// processing can not lose counts.
type Repository interface {
	Create(ctx context.Context, b *AnalysisBatch) error
	GetByID(ctx context.Context, id string) (*AnalysisBatch, error)
	SetRunning(ctx context.Context, id string, startedAt time.Time) error
	IncrementCompleted(ctx context.Context, id string) error
	IncrementFailed(ctx context.Context, id string) error
	Finish(ctx context.Context, id, status string, completedAt time.Time, results []map[string]any) error
}

const batchColumns = `id, name, plant_ids, type, status, total_count, completed_count, failed_count, started_at, completed_at, results, created_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed batch repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new batch. Missing ID, Status, TotalCount, and
// CreatedAt fields are filled in; TotalCount always mirrors PlantIDs.
func (r *SQLiteRepository) Create(ctx context.Context, b *AnalysisBatch) error {
	if b.ID == "" {
		b.ID = "bat-" + uuid.NewString()[:16]
	}
	if b.Status == "" {
		b.Status = StatusPending
	}
	b.TotalCount = len(b.PlantIDs)
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	plantIDsJSON, err := json.Marshal(b.PlantIDs)
	if err != nil {
		return fmt.Errorf("marshalling plant ids: %w", err)
	}
	if b.PlantIDs == nil {
		plantIDsJSON = []byte("[]")
	}

	resultsJSON, err := marshalResults(b.Results)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO analysis_batches (id, name, plant_ids, type, status, total_count, completed_count, failed_count, started_at, completed_at, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		b.ID,
		b.Name,
		string(plantIDsJSON),
		b.Type,
		b.Status,
		b.TotalCount,
		b.CompletedCount,
		b.FailedCount,
		nullableTime(b.StartedAt),
		nullableTime(b.CompletedAt),
		resultsJSON,
		b.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*AnalysisBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM analysis_batches WHERE id = ?`

	b, err := scanBatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying batch: %w", err)
	}
	return b, nil
}

// SetRunning transitions a batch to running and resets the counters
// and results from any previous failed attempt.
func (r *SQLiteRepository) SetRunning(ctx context.Context, id string, startedAt time.Time) error {
	query := `
		UPDATE analysis_batches
		SET status = ?, started_at = ?, completed_at = NULL,
			completed_count = 0, failed_count = 0, results = '[]'
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		StatusRunning,
		startedAt.UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("marking batch running: %w", err)
	}
	return requireRow(result)
}

// IncrementCompleted atomically bumps the completed counter.
func (r *SQLiteRepository) IncrementCompleted(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE analysis_batches SET completed_count = completed_count + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("incrementing completed count: %w", err)
	}
	return requireRow(result)
}

// IncrementFailed atomically bumps the failed counter.
func (r *SQLiteRepository) IncrementFailed(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE analysis_batches SET failed_count = failed_count + 1 WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("incrementing failed count: %w", err)
	}
	return requireRow(result)
}

// Finish records the terminal status and the full results log.
func (r *SQLiteRepository) Finish(ctx context.Context, id, status string, completedAt time.Time, results []map[string]any) error {
	resultsJSON, err := marshalResults(results)
	if err != nil {
		return err
	}

	query := `UPDATE analysis_batches SET status = ?, completed_at = ?, results = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		status,
		completedAt.UTC().Format(time.RFC3339),
		resultsJSON,
		id,
	)
	if err != nil {
		return fmt.Errorf("finishing batch: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBatch(scanner rowScanner) (*AnalysisBatch, error) {
	var b AnalysisBatch
	var plantIDsJSON, resultsJSON, createdAt string
	var startedAt, completedAt sql.NullString

	err := scanner.Scan(
		&b.ID,
		&b.Name,
		&plantIDsJSON,
		&b.Type,
		&b.Status,
		&b.TotalCount,
		&b.CompletedCount,
		&b.FailedCount,
		&startedAt,
		&completedAt,
		&resultsJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(plantIDsJSON), &b.PlantIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling plant ids: %w", err)
	}
	if err := json.Unmarshal([]byte(resultsJSON), &b.Results); err != nil {
		return nil, fmt.Errorf("unmarshalling results: %w", err)
	}

	b.StartedAt = parseNullableTime(startedAt)
	b.CompletedAt = parseNullableTime(completedAt)
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		b.CreatedAt = t
	}

	return &b, nil
}

func marshalResults(results []map[string]any) (string, error) {
	if results == nil {
		return "[]", nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", fmt.Errorf("marshalling results: %w", err)
	}
	return string(data), nil
}

func parseNullableTime(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}
