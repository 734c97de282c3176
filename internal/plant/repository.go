package plant

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryRepository defines persistence for analysis history records.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type HistoryRepository interface {
	Create(ctx context.Context, rec *HistoryRecord) error
	GetByID(ctx context.Context, id string) (*HistoryRecord, error)
	ListSince(ctx context.Context, since time.Time) ([]HistoryRecord, error)
	ListByPlant(ctx context.Context, plantID string, limit int) ([]HistoryRecord, error)
	CountByPlant(ctx context.Context, plantID string) (int, error)
	DistinctPlantIDs(ctx context.Context) ([]string, error)

	// PruneKeepNewest deletes a plant's history rows beyond the newest
	// keep records, returning the number deleted.
	PruneKeepNewest(ctx context.Context, plantID string, keep int) (int64, error)
}

// historyColumns is the SELECT column list for history queries.
const historyColumns = `id, plant_id, analysis_type, data, metadata, created_at`

// SQLiteHistoryRepository implements HistoryRepository using SQLite.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a new SQLite-backed history repository.
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// Create inserts a new history record.
// Missing ID and CreatedAt fields are filled in.
func (r *SQLiteHistoryRepository) Create(ctx context.Context, rec *HistoryRecord) error {
	if rec.ID == "" {
		rec.ID = "hist-" + uuid.NewString()[:16]
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := marshalMap(rec.Data)
	if err != nil {
		return fmt.Errorf("marshalling data: %w", err)
	}
	metaJSON, err := marshalMap(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	query := `
		INSERT INTO analysis_history (id, plant_id, analysis_type, data, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.PlantID,
		rec.AnalysisType,
		dataJSON,
		metaJSON,
		rec.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting history record: %w", err)
	}
	return nil
}

// GetByID retrieves a history record by its unique identifier.
func (r *SQLiteHistoryRepository) GetByID(ctx context.Context, id string) (*HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM analysis_history WHERE id = ?`

	rec, err := scanHistory(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHistoryNotFound
		}
		return nil, fmt.Errorf("querying history record: %w", err)
	}
	return rec, nil
}

// ListSince retrieves all records created at or after the given time,
// newest first.
func (r *SQLiteHistoryRepository) ListSince(ctx context.Context, since time.Time) ([]HistoryRecord, error) {
	query := `SELECT ` + historyColumns + ` FROM analysis_history
		WHERE created_at >= ? ORDER BY created_at DESC`
	return r.queryHistory(ctx, query, since.UTC().Format(time.RFC3339))
}

// ListByPlant retrieves a plant's most recent records, newest first.
func (r *SQLiteHistoryRepository) ListByPlant(ctx context.Context, plantID string, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + historyColumns + ` FROM analysis_history
		WHERE plant_id = ? ORDER BY created_at DESC LIMIT ?`
	return r.queryHistory(ctx, query, plantID, limit)
}

// CountByPlant returns the number of history rows for a plant.
func (r *SQLiteHistoryRepository) CountByPlant(ctx context.Context, plantID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analysis_history WHERE plant_id = ?`, plantID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting history records: %w", err)
	}
	return count, nil
}

// DistinctPlantIDs returns every plant that has at least one history row.
func (r *SQLiteHistoryRepository) DistinctPlantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT DISTINCT plant_id FROM analysis_history ORDER BY plant_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying plant ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning plant id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating plant ids: %w", err)
	}
	return ids, nil
}

// PruneKeepNewest deletes a plant's rows beyond its newest keep records.
// The window is computed per plant, not over the whole table.
func (r *SQLiteHistoryRepository) PruneKeepNewest(ctx context.Context, plantID string, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("prune: keep must be at least 1, got %d", keep)
	}

	query := `
		DELETE FROM analysis_history
		WHERE plant_id = ?
		AND id NOT IN (
			SELECT id FROM analysis_history
			WHERE plant_id = ?
			ORDER BY created_at DESC
			LIMIT ?
		)`

	result, err := r.db.ExecContext(ctx, query, plantID, plantID, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return deleted, nil
}

// queryHistory executes a query and returns a slice of records.
func (r *SQLiteHistoryRepository) queryHistory(ctx context.Context, query string, args ...any) ([]HistoryRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var records []HistoryRecord
	for rows.Next() {
		rec, scanErr := scanHistory(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning history record: %w", scanErr)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history: %w", err)
	}
	return records, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanHistory(scanner rowScanner) (*HistoryRecord, error) {
	var rec HistoryRecord
	var dataJSON, metaJSON, createdAt string

	err := scanner.Scan(
		&rec.ID,
		&rec.PlantID,
		&rec.AnalysisType,
		&dataJSON,
		&metaJSON,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalMap(dataJSON, &rec.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling data: %w", err)
	}
	if err := unmarshalMap(metaJSON, &rec.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		rec.CreatedAt = t
	}

	return &rec, nil
}

func marshalMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalMap(s string, dst *map[string]any) error {
	if s == "" || s == "{}" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}
