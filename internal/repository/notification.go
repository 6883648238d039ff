package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Daninc24/dropshipping-sub001/internal/events"
)

const (
	insertNotificationSQL = `INSERT INTO notifications (id, user_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	listNotificationsSQL = `SELECT id, user_id, kind, payload, read, created_at
		FROM notifications WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	countNotificationsSQL = `SELECT count(*) FROM notifications WHERE user_id = $1`

	markNotificationReadSQL = `UPDATE notifications SET read = TRUE WHERE id = $1 AND user_id = $2`
)

var _ events.NotificationStore = (*NotificationRepository)(nil)

// NotificationRepository implements events.NotificationStore backed by
// PostgreSQL.
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository returns a NotificationRepository that uses
// the given pool.
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create inserts a notification row.
func (r *NotificationRepository) Create(ctx context.Context, n events.Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("encoding notification payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, insertNotificationSQL, n.ID, n.UserID, n.Kind, payload, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating notification %q: %w", n.ID, err)
	}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]events.Notification, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, countNotificationsSQL, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting notifications for %q: %w", userID, err)
	}

	rows, err := r.pool.Query(ctx, listNotificationsSQL, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications for %q: %w", userID, err)
	}
	notifications, err := pgx.CollectRows(rows, scanNotification)
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications for %q: %w", userID, err)
	}
	return notifications, total, nil
}

// MarkRead flags a notification as read. The user id guard keeps users
// from touching each other's rows.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	_, err := r.pool.Exec(ctx, markNotificationReadSQL, id, userID)
	if err != nil {
		return fmt.Errorf("marking notification %q read: %w", id, err)
	}
	return nil
}

func scanNotification(row pgx.CollectableRow) (events.Notification, error) {
	var (
		n       events.Notification
		payload []byte
	)
	err := row.Scan(&n.ID, &n.UserID, &n.Kind, &payload, &n.Read, &n.CreatedAt)
	if err != nil {
		return n, err
	}
	if err := json.Unmarshal(payload, &n.Payload); err != nil {
		return n, fmt.Errorf("decoding notification payload: %w", err)
	}
	return n, nil
}
