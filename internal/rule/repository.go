package rule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/canopyops/canopy-core/internal/action"
)

// Repository defines persistence for rules and their execution records.
type Repository interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id string) (*Rule, error)
	ListEnabledBySchedule(ctx context.Context, scheduleID string) ([]Rule, error)
	Update(ctx context.Context, r *Rule) error

	RecordExecution(ctx context.Context, e *Execution) error
	ListExecutions(ctx context.Context, ruleID string, limit int) ([]Execution, error)
}

const ruleColumns = `id, name, plant_id, schedule_id, enabled, actions, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed rule repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new rule. Missing ID and timestamp fields are filled in.
func (r *SQLiteRepository) Create(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = "rule-" + uuid.NewString()[:16]
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	actionsJSON, err := marshalActions(rule.Actions)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rules (id, name, plant_id, schedule_id, enabled, actions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		nullableString(rule.PlantID),
		nullableString(rule.ScheduleID),
		boolToInt(rule.Enabled),
		actionsJSON,
		rule.CreatedAt.Format(time.RFC3339),
		rule.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting rule: %w", err)
	}
	return nil
}

// GetByID retrieves a rule by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules WHERE id = ?`

	rule, err := scanRule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying rule: %w", err)
	}
	return rule, nil
}

// ListEnabledBySchedule retrieves the enabled rules owned by a
// schedule, in creation order.
func (r *SQLiteRepository) ListEnabledBySchedule(ctx context.Context, scheduleID string) ([]Rule, error) {
	query := `SELECT ` + ruleColumns + ` FROM rules
		WHERE schedule_id = ? AND enabled = 1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("querying rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning rule: %w", scanErr)
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rules: %w", err)
	}
	return rules, nil
}

// Update persists changes to an existing rule.
func (r *SQLiteRepository) Update(ctx context.Context, rule *Rule) error {
	rule.UpdatedAt = time.Now().UTC()

	actionsJSON, err := marshalActions(rule.Actions)
	if err != nil {
		return err
	}

	query := `
		UPDATE rules SET name = ?, plant_id = ?, schedule_id = ?, enabled = ?, actions = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		rule.Name,
		nullableString(rule.PlantID),
		nullableString(rule.ScheduleID),
		boolToInt(rule.Enabled),
		actionsJSON,
		rule.UpdatedAt.Format(time.RFC3339),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("updating rule: %w", err)
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
		e.ID = "rex-" + uuid.NewString()[:16]
	}
	if e.ExecutedAt.IsZero() {
		e.ExecutedAt = time.Now().UTC()
	}

	resultsJSON, err := json.Marshal(e.Results)
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	if e.Results == nil {
		resultsJSON = []byte("[]")
	}

	query := `
		INSERT INTO rule_executions (id, rule_id, executed_at, results, success)
		VALUES (?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		e.ID,
		e.RuleID,
		e.ExecutedAt.Format(time.RFC3339),
		string(resultsJSON),
		boolToInt(e.Success),
	)
	if err != nil {
		return fmt.Errorf("inserting execution: %w", err)
	}
	return nil
}

// ListExecutions retrieves execution records for a rule, newest first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, ruleID string, limit int) ([]Execution, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, rule_id, executed_at, results, success FROM rule_executions
		WHERE rule_id = ? ORDER BY executed_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, ruleID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying executions: %w", err)
	}
	defer rows.Close()

	var executions []Execution
	for rows.Next() {
		var e Execution
		var executedAt, resultsJSON string
		var success int

		if err := rows.Scan(&e.ID, &e.RuleID, &executedAt, &resultsJSON, &success); err != nil {
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(scanner rowScanner) (*Rule, error) {
	var rule Rule
	var plantID, scheduleID sql.NullString
	var enabled int
	var actionsJSON, createdAt, updatedAt string

	err := scanner.Scan(
		&rule.ID,
		&rule.Name,
		&plantID,
		&scheduleID,
		&enabled,
		&actionsJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if plantID.Valid {
		rule.PlantID = plantID.String
	}
	if scheduleID.Valid {
		rule.ScheduleID = scheduleID.String
	}
	rule.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(actionsJSON), &rule.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		rule.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		rule.UpdatedAt = t
	}

	return &rule, nil
}

func marshalActions(actions []action.Descriptor) (string, error) {
	if actions == nil {
		return "[]", nil
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(data), nil
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
