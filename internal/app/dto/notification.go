package dto

import (
	"time"

	domainnotification "autoparc/internal/domain/notification"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Body      string    `json:"body,omitempty"`
	Link      string    `json:"link,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NotificationList struct {
	Items       []Notification `json:"items"`
	UnreadCount int            `json:"unread_count"`
}

func MapNotification(n *domainnotification.Notification) Notification {
	if n == nil {
		return Notification{}
	}
	return Notification{
		ID:        string(n.ID),
		UserID:    n.UserID,
		Kind:      string(n.Kind),
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}

func NotificationRecord(n *domainnotification.Notification) map[string]any {
	return map[string]any{
		"id":         string(n.ID),
		"user_id":    n.UserID,
		"kind":       string(n.Kind),
		"title":      n.Title,
		"body":       n.Body,
		"link":       n.Link,
		"read":       n.Read,
		"created_at": n.CreatedAt,
	}
}

// NotificationReadState is returned by read markings; UnreadCount is the
// stored count after the change.
type NotificationReadState struct {
	ID          string `json:"id,omitempty"`
	Changed     int    `json:"changed"`
	UnreadCount int    `json:"unread_count"`
}
