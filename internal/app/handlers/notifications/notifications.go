package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainnotification "autoparc/internal/domain/notification"
	"autoparc/internal/realtime"
)

const (
	listNotificationsKey = "notifications.list"
	unreadCountKey       = "notifications.unread"
	markReadKey          = "notifications.read"
	markAllReadKey       = "notifications.read_all"
)

var (
	ErrUserRequired         = errors.New("user id is required")
	ErrNotificationRequired = errors.New("notification id is required")
)

type ListNotificationsQuery struct {
	UserID     string
	Limit      int
	UnreadOnly bool
}

func (q ListNotificationsQuery) Key() string { return listNotificationsKey }

type ListNotificationsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListNotificationsHandler) Handle(ctx context.Context, q ListNotificationsQuery) (dto.NotificationList, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return dto.NotificationList{}, ErrUserRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.NotificationList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	items, err := unit.Notifications().ListForUser(execCtx, q.UserID, domainnotification.ClampLimit(q.Limit), q.UnreadOnly)
	if err != nil {
		return dto.NotificationList{}, err
	}
	unread, err := unit.Notifications().UnreadCount(execCtx, q.UserID)
	if err != nil {
		return dto.NotificationList{}, err
	}
	out := dto.NotificationList{Items: make([]dto.Notification, 0, len(items)), UnreadCount: unread}
	for _, n := range items {
		out.Items = append(out.Items, dto.MapNotification(n))
	}
	return out, nil
}

type UnreadCountQuery struct {
	UserID string
}

func (q UnreadCountQuery) Key() string { return unreadCountKey }

type UnreadCountHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *UnreadCountHandler) Handle(ctx context.Context, q UnreadCountQuery) (int, error) {
	if strings.TrimSpace(q.UserID) == "" {
		return 0, ErrUserRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return 0, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Notifications().UnreadCount(execCtx, q.UserID)
}

// MarkReadCommand is a no-op for notifications already read.
type MarkReadCommand struct {
	UserID         string
	NotificationID string
}

func (c MarkReadCommand) Key() string { return markReadKey }

func (c MarkReadCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserRequired
	}
	if strings.TrimSpace(c.NotificationID) == "" {
		return ErrNotificationRequired
	}
	return nil
}

type MarkReadHandler struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (*dto.NotificationReadState, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := unit.Notifications().MarkAsRead(ctx, domainnotification.ID(cmd.NotificationID), cmd.UserID)
	if err != nil {
		return nil, err
	}
	unread, err := unit.Notifications().UnreadCount(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	out := &dto.NotificationReadState{ID: cmd.NotificationID, UnreadCount: unread}
	if changed {
		out.Changed = 1
		realtime.Enqueue(ctx, realtime.Event{
			Table: realtime.TableNotifications,
			Type:  realtime.Update,
			Record: map[string]any{
				"id":      cmd.NotificationID,
				"user_id": cmd.UserID,
				"read":    true,
			},
			At: handlersupport.Now(h.Now).UTC(),
		})
		if h.Logger != nil {
			h.Logger.Debug("notification read", "notification_id", cmd.NotificationID, "user_id", cmd.UserID)
		}
	}
	return out, nil
}

type MarkAllReadCommand struct {
	UserID string
}

func (c MarkAllReadCommand) Key() string { return markAllReadKey }

func (c MarkAllReadCommand) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrUserRequired
	}
	return nil
}

type MarkAllReadHandler struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *MarkAllReadHandler) Handle(ctx context.Context, cmd MarkAllReadCommand) (*dto.NotificationReadState, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	changed, err := unit.Notifications().MarkAllRead(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if changed > 0 {
		realtime.Enqueue(ctx, realtime.Event{
			Table: realtime.TableNotifications,
			Type:  realtime.Update,
			Record: map[string]any{
				"user_id": cmd.UserID,
				"read":    true,
				"all":     true,
			},
			At: handlersupport.Now(h.Now).UTC(),
		})
	}
	if h.Logger != nil {
		h.Logger.Info("notifications marked read", "user_id", cmd.UserID, "count", changed)
	}
	return &dto.NotificationReadState{Changed: changed}, nil
}

var (
	_ queries.Handler[ListNotificationsQuery, dto.NotificationList]    = (*ListNotificationsHandler)(nil)
	_ queries.Handler[UnreadCountQuery, int]                           = (*UnreadCountHandler)(nil)
	_ commands.Handler[MarkReadCommand, *dto.NotificationReadState]    = (*MarkReadHandler)(nil)
	_ commands.Handler[MarkAllReadCommand, *dto.NotificationReadState] = (*MarkAllReadHandler)(nil)
)
