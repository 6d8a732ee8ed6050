package chat

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrIDRequired       = errors.New("chat: id is required")
	ErrParticipants     = errors.New("chat: exactly two distinct participants are required")
	ErrNotParticipant   = errors.New("chat: user is not a participant")
	ErrTextRequired     = errors.New("chat: message text is required")
	ErrTextTooLong      = errors.New("chat: message text is too long")
	ErrSenderRequired   = errors.New("chat: sender is required")
	ErrNotFound         = errors.New("chat: not found")
	ErrMessageNotFound  = errors.New("chat: message not found")
	ErrSelfConversation = errors.New("chat: cannot start a conversation with yourself")
)

const (
	MaxMessageRunes = 4000
	previewRunes    = 500

	DefaultMessagesLimit = 50
	MaxMessagesLimit     = 200
)

type ID string
type MessageID string

type Chat struct {
	ID              ID
	Participants    [2]string
	ListingID       string
	CreatedAt       time.Time
	LastMessageAt   time.Time
	LastMessageID   MessageID
	LastSenderID    string
	LastMessageText string
}

type Message struct {
	ID        MessageID
	ChatID    ID
	SenderID  string
	Text      string
	ClientID  string
	CreatedAt time.Time
}

// ReadMarker is the per-user last-read position in a chat.
type ReadMarker struct {
	ChatID     ID
	UserID     string
	LastReadAt time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Chat, error)
	// FindByListing returns ErrNotFound when no chat links these participants to the listing.
	FindByListing(ctx context.Context, listingID string, participants [2]string) (*Chat, error)
	Create(ctx context.Context, chat *Chat) error
	// ListForUser returns the user's chats, most recent activity first.
	ListForUser(ctx context.Context, userID string) ([]*Chat, error)
	// AddMessage stores the message and moves the chat preview to it.
	AddMessage(ctx context.Context, msg *Message) error
	// ListMessages returns up to limit messages older than before (zero means now), oldest first.
	ListMessages(ctx context.Context, chatID ID, limit int, before time.Time) ([]*Message, error)
	MarkRead(ctx context.Context, chatID ID, userID string, at time.Time) error
	ReadMarker(ctx context.Context, chatID ID, userID string) (ReadMarker, bool, error)
	UnreadCount(ctx context.Context, chatID ID, userID string) (int, error)
}

type CreateParams struct {
	ID           ID
	ListingID    string
	Participants []string
	Now          time.Time
}

func NewChat(params CreateParams) (*Chat, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	pair, err := NormalizeParticipants(params.Participants)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()
	return &Chat{
		ID:            params.ID,
		Participants:  pair,
		ListingID:     strings.TrimSpace(params.ListingID),
		CreatedAt:     now,
		LastMessageAt: now,
	}, nil
}

// NormalizeParticipants dedups and sorts ids; the result must hold exactly two.
func NormalizeParticipants(ids []string) ([2]string, error) {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) != 2 {
		return [2]string{}, ErrParticipants
	}
	sort.Strings(out)
	return [2]string{out[0], out[1]}, nil
}

func (c *Chat) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Other returns the participant that is not userID.
func (c *Chat) Other(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// RecordMessage moves the preview to msg when it is newer than the current one.
func (c *Chat) RecordMessage(msg *Message) {
	if msg == nil || (c.LastMessageID != "" && msg.CreatedAt.Before(c.LastMessageAt)) {
		return
	}
	c.LastMessageAt = msg.CreatedAt
	c.LastMessageID = msg.ID
	c.LastSenderID = msg.SenderID
	c.LastMessageText = Snippet(msg.Text)
}

// LastActivity is the ordering key for chat lists.
func (c *Chat) LastActivity() time.Time {
	if !c.LastMessageAt.IsZero() {
		return c.LastMessageAt
	}
	return c.CreatedAt
}

type MessageParams struct {
	ID       MessageID
	ChatID   ID
	SenderID string
	Text     string
	ClientID string
	Now      time.Time
}

func NewMessage(params MessageParams) (*Message, error) {
	if strings.TrimSpace(string(params.ID)) == "" || strings.TrimSpace(string(params.ChatID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(params.SenderID) == "" {
		return nil, ErrSenderRequired
	}
	text, err := NormalizeText(params.Text)
	if err != nil {
		return nil, err
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Message{
		ID:        params.ID,
		ChatID:    params.ChatID,
		SenderID:  strings.TrimSpace(params.SenderID),
		Text:      text,
		ClientID:  strings.TrimSpace(params.ClientID),
		CreatedAt: now.UTC(),
	}, nil
}

// NormalizeText trims and validates message text.
func NormalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrTextRequired
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return "", ErrTextTooLong
	}
	return text, nil
}

func Snippet(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= previewRunes {
		return string(runes)
	}
	return string(runes[:previewRunes])
}

// UnreadFor counts messages authored by someone other than userID that
// were created after the marker. Messages of userID never count.
func UnreadFor(messages []*Message, userID string, marker ReadMarker) int {
	count := 0
	for _, m := range messages {
		if m == nil || m.SenderID == userID {
			continue
		}
		if !marker.LastReadAt.IsZero() && !m.CreatedAt.After(marker.LastReadAt) {
			continue
		}
		count++
	}
	return count
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultMessagesLimit
	}
	if limit > MaxMessagesLimit {
		return MaxMessagesLimit
	}
	return limit
}
