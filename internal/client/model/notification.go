package model

import "autoparc/internal/app/dto"

type Notification struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body,omitempty"`
	Link      string `json:"link,omitempty"`
	Read      bool   `json:"read"`
	Timestamp int64  `json:"timestamp"`
}

func NotificationFromRow(row dto.Notification) Notification {
	return Notification{
		ID:        row.ID,
		Kind:      row.Kind,
		Title:     row.Title,
		Body:      row.Body,
		Link:      row.Link,
		Read:      row.Read,
		Timestamp: Millis(row.CreatedAt),
	}
}

func NotificationFromRecord(record map[string]any) (Notification, error) {
	var row dto.Notification
	if err := decodeRecord(record, &row); err != nil {
		return Notification{}, err
	}
	return NotificationFromRow(row), nil
}
