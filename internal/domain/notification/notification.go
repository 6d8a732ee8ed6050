package notification

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired    = errors.New("notification: id is required")
	ErrUserRequired  = errors.New("notification: user is required")
	ErrTitleRequired = errors.New("notification: title is required")
	ErrKind          = errors.New("notification: unknown kind")
	ErrNotFound      = errors.New("notification: not found")
)

type ID string

type Kind string

const (
	KindMessage   Kind = "message"
	KindFavorite  Kind = "favorite"
	KindExpertise Kind = "expertise"
	KindSystem    Kind = "system"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

type Notification struct {
	ID        ID
	UserID    string
	Kind      Kind
	Title     string
	Body      string
	Link      string
	Read      bool
	CreatedAt time.Time
}

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID string, limit int, unreadOnly bool) ([]*Notification, error)
	// MarkAsRead reports whether the notification changed state.
	MarkAsRead(ctx context.Context, id ID, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (int, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

type CreateParams struct {
	ID     ID
	UserID string
	Kind   Kind
	Title  string
	Body   string
	Link   string
	Now    time.Time
}

func New(params CreateParams) (*Notification, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.UserID) == "" {
		return nil, ErrUserRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	kind := params.Kind
	if kind == "" {
		kind = KindSystem
	}
	if !kind.Valid() {
		return nil, ErrKind
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Notification{
		ID:        params.ID,
		UserID:    strings.TrimSpace(params.UserID),
		Kind:      kind,
		Title:     title,
		Body:      strings.TrimSpace(params.Body),
		Link:      strings.TrimSpace(params.Link),
		CreatedAt: now.UTC(),
	}, nil
}

// MarkAsRead flips the read flag; it reports false when already read.
func (n *Notification) MarkAsRead() bool {
	if n.Read {
		return false
	}
	n.Read = true
	return true
}

func (k Kind) Valid() bool {
	switch k {
	case KindMessage, KindFavorite, KindExpertise, KindSystem:
		return true
	}
	return false
}

func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
