package action

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskRepository defines persistence for tasks created by actions.
type TaskRepository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	ListOpen(ctx context.Context, limit int) ([]Task, error)
}

const taskColumns = `id, title, description, plant_id, priority, status, due_at, created_at`

// SQLiteTaskRepository implements TaskRepository using SQLite.
type SQLiteTaskRepository struct {
	db *sql.DB
}

// NewSQLiteTaskRepository creates a new SQLite-backed task repository.
func NewSQLiteTaskRepository(db *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{db: db}
}

// Create inserts a new task. Missing ID, Priority, Status, and
// CreatedAt fields are filled in.
func (r *SQLiteTaskRepository) Create(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = "task-" + uuid.NewString()[:16]
	}
	if task.Priority == "" {
		task.Priority = PriorityMedium
	}
	if task.Status == "" {
		task.Status = StatusOpen
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO tasks (id, title, description, plant_id, priority, status, due_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		nullableString(task.PlantID),
		task.Priority,
		task.Status,
		nullableTime(task.DueAt),
		task.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// GetByID retrieves a task by its unique identifier.
func (r *SQLiteTaskRepository) GetByID(ctx context.Context, id string) (*Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	task, err := scanTask(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("querying task: %w", err)
	}
	return task, nil
}

// ListOpen retrieves open tasks, newest first.
func (r *SQLiteTaskRepository) ListOpen(ctx context.Context, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE status = ? ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, StatusOpen, limit)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, scanErr := scanTask(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning task: %w", scanErr)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(scanner rowScanner) (*Task, error) {
	var task Task
	var description, plantID, dueAt sql.NullString
	var createdAt string

	err := scanner.Scan(
		&task.ID,
		&task.Title,
		&description,
		&plantID,
		&task.Priority,
		&task.Status,
		&dueAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		task.Description = description.String
	}
	if plantID.Valid {
		task.PlantID = plantID.String
	}
	if dueAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, dueAt.String); parseErr == nil {
			task.DueAt = &t
		}
	}
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		task.CreatedAt = t
	}

	return &task, nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}
