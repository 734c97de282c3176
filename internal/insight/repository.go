package insight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnomalyRepository defines persistence for anomaly detections.
type AnomalyRepository interface {
	Create(ctx context.Context, a *AnomalyDetection) error
	GetByID(ctx context.Context, id string) (*AnomalyDetection, error)
	HasUnresolved(ctx context.Context, plantID, metric string) (bool, error)
	ListUnresolved(ctx context.Context, limit int) ([]AnomalyDetection, error)
	Resolve(ctx context.Context, id string) error

	// DeleteResolvedBefore removes resolved anomalies created before
	// the cutoff, returning the number deleted.
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MilestoneRepository defines persistence for milestones.
type MilestoneRepository interface {
	Create(ctx context.Context, m *Milestone) error
	ListByPlant(ctx context.Context, plantID string, limit int) ([]Milestone, error)

	// LastDetected returns the most recent detection time of a
	// milestone type for a plant, or nil if none was ever recorded.
	LastDetected(ctx context.Context, plantID, milestoneType string) (*time.Time, error)
}

const anomalyColumns = `id, plant_id, metric, severity, threshold, current_value, resolved, created_at, resolved_at`

// SQLiteAnomalyRepository implements AnomalyRepository using SQLite.
type SQLiteAnomalyRepository struct {
	db *sql.DB
}

// NewSQLiteAnomalyRepository creates a new SQLite-backed anomaly repository.
func NewSQLiteAnomalyRepository(db *sql.DB) *SQLiteAnomalyRepository {
	return &SQLiteAnomalyRepository{db: db}
}

// Create inserts a new anomaly detection. Missing ID and CreatedAt
// fields are filled in.
func (r *SQLiteAnomalyRepository) Create(ctx context.Context, a *AnomalyDetection) error {
	if a.ID == "" {
		a.ID = "ano-" + uuid.NewString()[:16]
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO anomaly_detections (id, plant_id, metric, severity, threshold, current_value, resolved, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID,
		a.PlantID,
		a.Metric,
		a.Severity,
		a.Threshold,
		a.CurrentValue,
		boolToInt(a.Resolved),
		a.CreatedAt.Format(time.RFC3339),
		nullableTime(a.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting anomaly: %w", err)
	}
	return nil
}

// GetByID retrieves an anomaly by its unique identifier.
func (r *SQLiteAnomalyRepository) GetByID(ctx context.Context, id string) (*AnomalyDetection, error) {
	query := `SELECT ` + anomalyColumns + ` FROM anomaly_detections WHERE id = ?`

	a, err := scanAnomaly(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying anomaly: %w", err)
	}
	return a, nil
}

// HasUnresolved reports whether an unresolved anomaly exists for a
// plant and metric. This is the dedup gate for anomaly creation.
func (r *SQLiteAnomalyRepository) HasUnresolved(ctx context.Context, plantID, metric string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM anomaly_detections WHERE plant_id = ? AND metric = ? AND resolved = 0)`,
		plantID, metric,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking unresolved anomaly: %w", err)
	}
	return exists == 1, nil
}

// ListUnresolved retrieves open anomalies, newest first.
func (r *SQLiteAnomalyRepository) ListUnresolved(ctx context.Context, limit int) ([]AnomalyDetection, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + anomalyColumns + ` FROM anomaly_detections
		WHERE resolved = 0 ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []AnomalyDetection
	for rows.Next() {
		a, scanErr := scanAnomaly(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning anomaly: %w", scanErr)
		}
		anomalies = append(anomalies, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating anomalies: %w", err)
	}
	return anomalies, nil
}

// Resolve marks an anomaly as resolved.
func (r *SQLiteAnomalyRepository) Resolve(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE anomaly_detections SET resolved = 1, resolved_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("resolving anomaly: %w", err)
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

// DeleteResolvedBefore removes resolved anomalies created before the cutoff.
func (r *SQLiteAnomalyRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM anomaly_detections WHERE resolved = 1 AND created_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting anomalies: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return deleted, nil
}

// SQLiteMilestoneRepository implements MilestoneRepository using SQLite.
type SQLiteMilestoneRepository struct {
	db *sql.DB
}

// NewSQLiteMilestoneRepository creates a new SQLite-backed milestone repository.
func NewSQLiteMilestoneRepository(db *sql.DB) *SQLiteMilestoneRepository {
	return &SQLiteMilestoneRepository{db: db}
}

// Create inserts a new milestone. Missing ID and DetectedAt fields are
// filled in.
func (r *SQLiteMilestoneRepository) Create(ctx context.Context, m *Milestone) error {
	if m.ID == "" {
		m.ID = "mst-" + uuid.NewString()[:16]
	}
	if m.DetectedAt.IsZero() {
		m.DetectedAt = time.Now().UTC()
	}

	query := `INSERT INTO analysis_milestones (id, plant_id, type, detected_at) VALUES (?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		m.ID,
		m.PlantID,
		m.Type,
		m.DetectedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting milestone: %w", err)
	}
	return nil
}

// ListByPlant retrieves a plant's milestones, newest first.
func (r *SQLiteMilestoneRepository) ListByPlant(ctx context.Context, plantID string, limit int) ([]Milestone, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, plant_id, type, detected_at FROM analysis_milestones
		WHERE plant_id = ? ORDER BY detected_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, plantID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying milestones: %w", err)
	}
	defer rows.Close()

	var milestones []Milestone
	for rows.Next() {
		var m Milestone
		var detectedAt string
		if err := rows.Scan(&m.ID, &m.PlantID, &m.Type, &detectedAt); err != nil {
			return nil, fmt.Errorf("scanning milestone: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339, detectedAt); parseErr == nil {
			m.DetectedAt = t
		}
		milestones = append(milestones, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating milestones: %w", err)
	}
	return milestones, nil
}

// LastDetected returns the newest detection time of a milestone type
// for a plant, or nil if none exists.
func (r *SQLiteMilestoneRepository) LastDetected(ctx context.Context, plantID, milestoneType string) (*time.Time, error) {
	var detectedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT detected_at FROM analysis_milestones
			WHERE plant_id = ? AND type = ? ORDER BY detected_at DESC LIMIT 1`,
		plantID, milestoneType,
	).Scan(&detectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying last milestone: %w", err)
	}

	t, err := time.Parse(time.RFC3339, detectedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing milestone time: %w", err)
	}
	return &t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnomaly(scanner rowScanner) (*AnomalyDetection, error) {
	var a AnomalyDetection
	var resolved int
	var createdAt string
	var resolvedAt sql.NullString

	err := scanner.Scan(
		&a.ID,
		&a.PlantID,
		&a.Metric,
		&a.Severity,
		&a.Threshold,
		&a.CurrentValue,
		&resolved,
		&createdAt,
		&resolvedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Resolved = resolved != 0
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		a.CreatedAt = t
	}
	if resolvedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, resolvedAt.String); parseErr == nil {
			a.ResolvedAt = &t
		}
	}

	return &a, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
