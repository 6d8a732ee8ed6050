package policies

import (
	"context"

	domainnotification "autoparc/internal/domain/notification"
)

// Notifier creates a user notification and announces it in realtime.
type Notifier interface {
	Notify(ctx context.Context, params domainnotification.CreateParams) (*domainnotification.Notification, error)
}
