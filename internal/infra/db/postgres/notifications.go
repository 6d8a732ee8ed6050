package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainnotification "autoparc/internal/domain/notification"
)

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domainnotification.Notification) error {
	if n == nil || n.ID == "" {
		return domainnotification.ErrIDRequired
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, link, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, string(n.ID), n.UserID, string(n.Kind), n.Title, n.Body, n.Link, n.Read, n.CreatedAt.UTC())
	return err
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int, unreadOnly bool) ([]*domainnotification.Notification, error) {
	if limit <= 0 {
		limit = domainnotification.DefaultListLimit
	}
	if limit > domainnotification.MaxListLimit {
		limit = domainnotification.MaxListLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, kind, title, body, link, read, created_at
		FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT read)
		ORDER BY created_at DESC, id
		LIMIT $3
	`, userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanNotification)
}

func scanNotification(row pgx.CollectableRow) (*domainnotification.Notification, error) {
	var (
		n    domainnotification.Notification
		id   string
		kind string
	)
	if err := row.Scan(&id, &n.UserID, &kind, &n.Title, &n.Body, &n.Link, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.ID = domainnotification.ID(id)
	n.Kind = domainnotification.Kind(kind)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}

// MarkAsRead only touches the owner's row. Unknown or foreign ids report
// ErrNotFound.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id domainnotification.ID, userID string) (bool, error) {
	var wasRead bool
	err := r.pool.QueryRow(ctx, `
		WITH prev AS (SELECT read FROM notifications WHERE id = $1 AND user_id = $2)
		UPDATE notifications SET read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING (SELECT read FROM prev)
	`, string(id), userID).Scan(&wasRead)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, domainnotification.ErrNotFound
	}
	if err != nil {
		return false, err
	}
	return !wasRead, nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND NOT read`, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	return n, err
}

var _ domainnotification.Repository = (*NotificationRepository)(nil)
