package dto

import (
	"time"

	domainchat "autoparc/internal/domain/chat"
)

type Chat struct {
	ID              string    `json:"id"`
	ListingID       string    `json:"listing_id,omitempty"`
	Participants    []string  `json:"participants"`
	CreatedAt       time.Time `json:"created_at"`
	LastMessageAt   time.Time `json:"last_message_at"`
	LastMessageID   string    `json:"last_message_id,omitempty"`
	LastSenderID    string    `json:"last_message_sender_id,omitempty"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	UnreadCount     int       `json:"unread_count"`
}

// ChatList carries every chat of a user with the unread total, which is
// always the sum of the per-chat counts.
type ChatList struct {
	Items       []Chat `json:"items"`
	UnreadTotal int    `json:"unread_total"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chat_id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	ClientID  string    `json:"client_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatMessageList struct {
	Items      []ChatMessage `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ReadState is the authoritative unread count after a mark-read.
type ReadState struct {
	ChatID      string    `json:"chat_id"`
	UnreadCount int       `json:"unread_count"`
	LastReadAt  time.Time `json:"last_read_at"`
}

type UnreadSummary struct {
	Chats map[string]int `json:"chats"`
	Total int            `json:"total"`
}

func MapChat(c *domainchat.Chat, unread int) Chat {
	if c == nil {
		return Chat{}
	}
	return Chat{
		ID:              string(c.ID),
		ListingID:       c.ListingID,
		Participants:    []string{c.Participants[0], c.Participants[1]},
		CreatedAt:       c.CreatedAt,
		LastMessageAt:   c.LastActivity(),
		LastMessageID:   string(c.LastMessageID),
		LastSenderID:    c.LastSenderID,
		LastMessageText: c.LastMessageText,
		UnreadCount:     unread,
	}
}

func MapChatMessage(m *domainchat.Message) ChatMessage {
	if m == nil {
		return ChatMessage{}
	}
	return ChatMessage{
		ID:        string(m.ID),
		ChatID:    string(m.ChatID),
		SenderID:  m.SenderID,
		Text:      m.Text,
		ClientID:  m.ClientID,
		CreatedAt: m.CreatedAt,
	}
}

func MessageRecord(m *domainchat.Message) map[string]any {
	return map[string]any{
		"id":         string(m.ID),
		"chat_id":    string(m.ChatID),
		"sender_id":  m.SenderID,
		"text":       m.Text,
		"client_id":  m.ClientID,
		"created_at": m.CreatedAt,
	}
}

func ChatRecord(c *domainchat.Chat) map[string]any {
	return map[string]any{
		"id":                     string(c.ID),
		"listing_id":             c.ListingID,
		"participants":           []string{c.Participants[0], c.Participants[1]},
		"last_message_at":        c.LastActivity(),
		"last_message_id":        string(c.LastMessageID),
		"last_message_sender_id": c.LastSenderID,
		"last_message_text":      c.LastMessageText,
	}
}
