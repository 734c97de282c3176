package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence for notifications.
type Repository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
	ListUnacknowledged(ctx context.Context, limit int) ([]Notification, error)
	Acknowledge(ctx context.Context, id string) error

	// DeleteAcknowledgedBefore removes acknowledged notifications created
	// before the cutoff, returning the number deleted.
	DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

const notificationColumns = `id, channel, title, message, payload, acknowledged, created_at, acknowledged_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed notification repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new notification.
// Missing ID, Channel, and CreatedAt fields are filled in.
func (r *SQLiteRepository) Create(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = "ntf-" + uuid.NewString()[:16]
	}
	if n.Channel == "" {
		n.Channel = DefaultChannel
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	payloadJSON := "{}"
	if n.Payload != nil {
		data, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("marshalling payload: %w", err)
		}
		payloadJSON = string(data)
	}

	query := `
		INSERT INTO notifications (id, channel, title, message, payload, acknowledged, created_at, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.Channel,
		n.Title,
		n.Message,
		payloadJSON,
		boolToInt(n.Acknowledged),
		n.CreatedAt.Format(time.RFC3339),
		nullableTime(n.AcknowledgedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// GetByID retrieves a notification by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying notification: %w", err)
	}
	return n, nil
}

// ListUnacknowledged retrieves pending notifications, newest first.
func (r *SQLiteRepository) ListUnacknowledged(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications
		WHERE acknowledged = 0 ORDER BY created_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying notifications: %w", err)
	}
	defer rows.Close()

	var notifications []Notification
	for rows.Next() {
		n, scanErr := scanNotification(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning notification: %w", scanErr)
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating notifications: %w", err)
	}
	return notifications, nil
}

// Acknowledge marks a notification as acknowledged.
func (r *SQLiteRepository) Acknowledge(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET acknowledged = 1, acknowledged_at = ? WHERE id = ?`,
		now, id,
	)
	if err != nil {
		return fmt.Errorf("acknowledging notification: %w", err)
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

// DeleteAcknowledgedBefore removes acknowledged notifications created
// before the cutoff.
func (r *SQLiteRepository) DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notifications WHERE acknowledged = 1 AND created_at < ?`,
		cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting notifications: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(scanner rowScanner) (*Notification, error) {
	var n Notification
	var message, acknowledgedAt sql.NullString
	var payloadJSON, createdAt string
	var acknowledged int

	err := scanner.Scan(
		&n.ID,
		&n.Channel,
		&n.Title,
		&message,
		&payloadJSON,
		&acknowledged,
		&createdAt,
		&acknowledgedAt,
	)
	if err != nil {
		return nil, err
	}

	if message.Valid {
		n.Message = message.String
	}
	n.Acknowledged = acknowledged != 0

	if payloadJSON != "" && payloadJSON != "{}" {
		if err := json.Unmarshal([]byte(payloadJSON), &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling payload: %w", err)
		}
	}

	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		n.CreatedAt = t
	}
	if acknowledgedAt.Valid {
		if t, parseErr := time.Parse(time.RFC3339, acknowledgedAt.String); parseErr == nil {
			n.AcknowledgedAt = &t
		}
	}

	return &n, nil
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
