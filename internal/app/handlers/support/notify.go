package support

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/dto"
	"autoparc/internal/app/policies"
	domainnotification "autoparc/internal/domain/notification"
	"autoparc/internal/realtime"
)

// Notifier stores notifications through the unit of work in ctx and queues
// the matching realtime INSERT.
type Notifier struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (n Notifier) Notify(ctx context.Context, params domainnotification.CreateParams) (*domainnotification.Notification, error) {
	unit, err := UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(params.ID)) == "" {
		params.ID = domainnotification.ID(uuid.NewString())
	}
	if params.Now.IsZero() {
		params.Now = Now(n.Now)
	}
	notif, err := domainnotification.New(params)
	if err != nil {
		return nil, err
	}
	if err := unit.Notifications().Create(ctx, notif); err != nil {
		return nil, err
	}
	realtime.Enqueue(ctx, realtime.Event{
		Table:  realtime.TableNotifications,
		Type:   realtime.Insert,
		Record: dto.NotificationRecord(notif),
		At:     notif.CreatedAt,
	})
	if n.Logger != nil {
		n.Logger.Debug("notification created", "notification_id", notif.ID, "user_id", notif.UserID, "kind", notif.Kind)
	}
	return notif, nil
}

// Now returns clock() or the current time when clock is nil.
func Now(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now()
}

var _ policies.Notifier = Notifier{}
