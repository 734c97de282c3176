package schedule

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for rule schedules.
//
// Claim is the concurrency guard for the scheduler: it advances a due
// schedule's bookkeeping only if next_run still holds the value the
// due query observed, so two overlapping passes cannot both execute
// the same item.
type Repository interface {
	Create(ctx context.Context, s *Schedule) error
	GetByID(ctx context.Context, id string) (*Schedule, error)
	ListDue(ctx context.Context, now time.Time) ([]Schedule, error)
	Claim(ctx context.Context, id string, expectedNextRun *time.Time, lastRun, nextRun time.Time) (bool, error)
}

// SchedulerRepository defines persistence for analysis schedulers.
type SchedulerRepository interface {
	Create(ctx context.Context, s *AnalysisScheduler) error
	GetByID(ctx context.Context, id string) (*AnalysisScheduler, error)
	ListDue(ctx context.Context, now time.Time) ([]AnalysisScheduler, error)
	Claim(ctx context.Context, id string, expectedNextRun *time.Time, lastRun, nextRun time.Time) (bool, error)
}

const scheduleColumns = `id, name, cron_expression, interval, enabled, last_run, next_run, run_count, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed schedule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new schedule. Missing ID, Interval, and timestamp
// fields are filled in.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	if s.ID == "" {
		s.ID = "sch-" + uuid.NewString()[:16]
	}
	if s.Interval == "" {
		s.Interval = FreqDaily
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `
		INSERT INTO schedules (id, name, cron_expression, interval, enabled, last_run, next_run, run_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Name,
		nullableString(s.CronExpression),
		s.Interval,
		boolToInt(s.Enabled),
		nullableTime(s.LastRun),
		nullableTime(s.NextRun),
		s.RunCount,
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// GetByID retrieves a schedule by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`

	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying schedule: %w", err)
	}
	return s, nil
}

// ListDue retrieves enabled schedules whose next_run is at or before now.
func (r *SQLiteRepository) ListDue(ctx context.Context, now time.Time) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run`

	rows, err := r.db.QueryContext(ctx, query, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying due schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, scanErr := scanSchedule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning schedule: %w", scanErr)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return schedules, nil
}

// Claim conditionally advances a schedule's bookkeeping. It succeeds
// only if next_run still matches expectedNextRun, incrementing
// run_count as part of the same update.
func (r *SQLiteRepository) Claim(ctx context.Context, id string, expectedNextRun *time.Time, lastRun, nextRun time.Time) (bool, error) {
	query := `
		UPDATE schedules
		SET last_run = ?, next_run = ?, run_count = run_count + 1, updated_at = ?
		WHERE id = ? AND enabled = 1 AND next_run IS ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query,
		lastRun.UTC().Format(time.RFC3339),
		nextRun.UTC().Format(time.RFC3339),
		now,
		id,
		nullableTime(expectedNextRun),
	)
	if err != nil {
		return false, fmt.Errorf("claiming schedule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

const schedulerColumns = `id, name, plant_id, analysis_type, frequency, time_of_day, enabled, last_run, next_run, created_at, updated_at`

// SQLiteSchedulerRepository implements SchedulerRepository using SQLite.
type SQLiteSchedulerRepository struct {
	db *sql.DB
}

// NewSQLiteSchedulerRepository creates a new SQLite-backed analysis
// scheduler repository.
func NewSQLiteSchedulerRepository(db *sql.DB) *SQLiteSchedulerRepository {
	return &SQLiteSchedulerRepository{db: db}
}

// Create inserts a new analysis scheduler. Missing ID, Frequency, and
// timestamp fields are filled in.
func (r *SQLiteSchedulerRepository) Create(ctx context.Context, s *AnalysisScheduler) error {
	if s.ID == "" {
		s.ID = "asc-" + uuid.NewString()[:16]
	}
	if s.Frequency == "" {
		s.Frequency = FreqDaily
	}
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `
		INSERT INTO analysis_schedulers (id, name, plant_id, analysis_type, frequency, time_of_day, enabled, last_run, next_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Name,
		nullableString(s.PlantID),
		s.AnalysisType,
		s.Frequency,
		nullableString(s.TimeOfDay),
		boolToInt(s.Enabled),
		nullableTime(s.LastRun),
		nullableTime(s.NextRun),
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting analysis scheduler: %w", err)
	}
	return nil
}

// GetByID retrieves an analysis scheduler by its unique identifier.
func (r *SQLiteSchedulerRepository) GetByID(ctx context.Context, id string) (*AnalysisScheduler, error) {
	query := `SELECT ` + schedulerColumns + ` FROM analysis_schedulers WHERE id = ?`

	s, err := scanScheduler(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying analysis scheduler: %w", err)
	}
	return s, nil
}

// ListDue retrieves enabled analysis schedulers whose next_run is at
// or before now.
func (r *SQLiteSchedulerRepository) ListDue(ctx context.Context, now time.Time) ([]AnalysisScheduler, error) {
	query := `SELECT ` + schedulerColumns + ` FROM analysis_schedulers
		WHERE enabled = 1 AND next_run IS NOT NULL AND next_run <= ?
		ORDER BY next_run`

	rows, err := r.db.QueryContext(ctx, query, now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying due schedulers: %w", err)
	}
	defer rows.Close()

	var schedulers []AnalysisScheduler
	for rows.Next() {
		s, scanErr := scanScheduler(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning scheduler: %w", scanErr)
		}
		schedulers = append(schedulers, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedulers: %w", err)
	}
	return schedulers, nil
}

// Claim conditionally advances an analysis scheduler's bookkeeping.
func (r *SQLiteSchedulerRepository) Claim(ctx context.Context, id string, expectedNextRun *time.Time, lastRun, nextRun time.Time) (bool, error) {
	query := `
		UPDATE analysis_schedulers
		SET last_run = ?, next_run = ?, updated_at = ?
		WHERE id = ? AND enabled = 1 AND next_run IS ?`

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, query,
		lastRun.UTC().Format(time.RFC3339),
		nextRun.UTC().Format(time.RFC3339),
		now,
		id,
		nullableTime(expectedNextRun),
	)
	if err != nil {
		return false, fmt.Errorf("claiming scheduler: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(scanner rowScanner) (*Schedule, error) {
	var s Schedule
	var cron, lastRun, nextRun sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&cron,
		&s.Interval,
		&enabled,
		&lastRun,
		&nextRun,
		&s.RunCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if cron.Valid {
		s.CronExpression = cron.String
	}
	s.Enabled = enabled != 0
	s.LastRun = parseNullableTime(lastRun)
	s.NextRun = parseNullableTime(nextRun)

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		s.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		s.UpdatedAt = t
	}

	return &s, nil
}

func scanScheduler(scanner rowScanner) (*AnalysisScheduler, error) {
	var s AnalysisScheduler
	var plantID, timeOfDay, lastRun, nextRun sql.NullString
	var enabled int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.Name,
		&plantID,
		&s.AnalysisType,
		&s.Frequency,
		&timeOfDay,
		&enabled,
		&lastRun,
		&nextRun,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if plantID.Valid {
		s.PlantID = plantID.String
	}
	if timeOfDay.Valid {
		s.TimeOfDay = timeOfDay.String
	}
	s.Enabled = enabled != 0
	s.LastRun = parseNullableTime(lastRun)
	s.NextRun = parseNullableTime(nextRun)

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		s.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		s.UpdatedAt = t
	}

	return &s, nil
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

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
