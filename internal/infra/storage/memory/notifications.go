package memory

import (
	"context"
	"sort"
	"sync"

	domainnotification "autoparc/internal/domain/notification"
)

type NotificationRepository struct {
	mu    sync.RWMutex
	items map[domainnotification.ID]*domainnotification.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{items: make(map[domainnotification.ID]*domainnotification.Notification)}
}

func (r *NotificationRepository) Create(ctx context.Context, n *domainnotification.Notification) error {
	if n == nil || n.ID == "" {
		return domainnotification.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	copyN := *n
	r.items[n.ID] = &copyN
	return nil
}

func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, limit int, unreadOnly bool) ([]*domainnotification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainnotification.Notification, 0)
	for _, n := range r.items {
		if n.UserID != userID || (unreadOnly && n.Read) {
			continue
		}
		copyN := *n
		out = append(out, &copyN)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkAsRead returns ErrNotFound for notifications of other users.
func (r *NotificationRepository) MarkAsRead(ctx context.Context, id domainnotification.ID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return false, domainnotification.ErrNotFound
	}
	return n.MarkAsRead(), nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := 0
	for _, n := range r.items {
		if n.UserID == userID && n.MarkAsRead() {
			changed++
		}
	}
	return changed, nil
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, n := range r.items {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

var _ domainnotification.Repository = (*NotificationRepository)(nil)
