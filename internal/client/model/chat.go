package model

import (
	"autoparc/internal/app/dto"
)

// Message is a chat message. Pending marks an optimistic send the server
// has not confirmed yet.
type Message struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	SenderID  string `json:"senderId"`
	Text      string `json:"text"`
	ClientID  string `json:"clientId,omitempty"`
	Timestamp int64  `json:"timestamp"`
	Pending   bool   `json:"pending,omitempty"`
}

type Chat struct {
	ID            string    `json:"id"`
	ListingID     string    `json:"listingId,omitempty"`
	Participants  []string  `json:"participants"`
	LastMessage   string    `json:"lastMessage,omitempty"`
	LastMessageAt int64     `json:"lastMessageAt"`
	LastSenderID  string    `json:"lastSenderId,omitempty"`
	UnreadCount   int       `json:"unreadCount"`
	Messages      []Message `json:"messages,omitempty"`
}

// Other returns the participant that is not userID.
func (c Chat) Other(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func ChatFromRow(row dto.Chat) Chat {
	return Chat{
		ID:            row.ID,
		ListingID:     row.ListingID,
		Participants:  append([]string(nil), row.Participants...),
		LastMessage:   row.LastMessageText,
		LastMessageAt: Millis(row.LastMessageAt),
		LastSenderID:  row.LastSenderID,
		UnreadCount:   row.UnreadCount,
	}
}

func ChatsFromRows(rows []dto.Chat) []Chat {
	out := make([]Chat, 0, len(rows))
	for _, r := range rows {
		out = append(out, ChatFromRow(r))
	}
	return out
}

// ChatFromRecord maps a realtime chats record. Records carry no unread
// count; callers keep their own.
func ChatFromRecord(record map[string]any) (Chat, error) {
	var row dto.Chat
	if err := decodeRecord(record, &row); err != nil {
		return Chat{}, err
	}
	return ChatFromRow(row), nil
}

func MessageFromRow(row dto.ChatMessage) Message {
	return Message{
		ID:        row.ID,
		ChatID:    row.ChatID,
		SenderID:  row.SenderID,
		Text:      row.Text,
		ClientID:  row.ClientID,
		Timestamp: Millis(row.CreatedAt),
	}
}

func MessagesFromRows(rows []dto.ChatMessage) []Message {
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, MessageFromRow(r))
	}
	return out
}

func MessageFromRecord(record map[string]any) (Message, error) {
	var row dto.ChatMessage
	if err := decodeRecord(record, &row); err != nil {
		return Message{}, err
	}
	return MessageFromRow(row), nil
}

// ReadFromRecord extracts the chat and authoritative unread count of a
// chat_reads record.
func ReadFromRecord(record map[string]any) (chatID, userID string, unread int, err error) {
	var row struct {
		ChatID      string `json:"chat_id"`
		UserID      string `json:"user_id"`
		UnreadCount int    `json:"unread_count"`
	}
	if err := decodeRecord(record, &row); err != nil {
		return "", "", 0, err
	}
	return row.ChatID, row.UserID, row.UnreadCount, nil
}

// TypingFromRecord extracts who is typing in which chat.
func TypingFromRecord(record map[string]any) (chatID, userID string, err error) {
	var row struct {
		ChatID string `json:"chat_id"`
		UserID string `json:"user_id"`
	}
	if err := decodeRecord(record, &row); err != nil {
		return "", "", err
	}
	return row.ChatID, row.UserID, nil
}
