package chat

import (
	"context"
	"log/slog"
	"time"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/realtime"
)

const (
	markReadKey = "chat.reads.mark"
	typingKey   = "chat.typing"
)

// MarkReadCommand moves the user's read marker to now. The result carries the
// unread count the store reports afterwards, which clients adopt as is.
type MarkReadCommand struct {
	ChatID string
	UserID string
}

func (c MarkReadCommand) Key() string { return markReadKey }

func (c MarkReadCommand) Validate() error { return requireChatUser(c.ChatID, c.UserID) }

type MarkReadHandler struct {
	Logger *slog.Logger
	Now    func() time.Time
}

func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) (*dto.ReadState, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	conversation, err := loadParticipantChat(ctx, unit.Chats(), cmd.ChatID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	at := handlersupport.Now(h.Now).UTC()
	if err := unit.Chats().MarkRead(ctx, conversation.ID, cmd.UserID, at); err != nil {
		return nil, err
	}
	unread, err := unit.Chats().UnreadCount(ctx, conversation.ID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	realtime.Enqueue(ctx, realtime.Event{
		Table: realtime.TableChatReads,
		Type:  realtime.Update,
		Record: map[string]any{
			"chat_id":      string(conversation.ID),
			"user_id":      cmd.UserID,
			"unread_count": unread,
			"last_read_at": at,
		},
		At: at,
	})
	if h.Logger != nil {
		h.Logger.Debug("chat marked read", "chat_id", conversation.ID, "user_id", cmd.UserID, "unread", unread)
	}
	return &dto.ReadState{ChatID: string(conversation.ID), UnreadCount: unread, LastReadAt: at}, nil
}

// TypingCommand announces that the user is composing. Nothing is stored.
type TypingCommand struct {
	ChatID string
	UserID string
}

func (c TypingCommand) Key() string { return typingKey }

func (c TypingCommand) Validate() error { return requireChatUser(c.ChatID, c.UserID) }

type TypingHandler struct {
	Now func() time.Time
}

func (h *TypingHandler) Handle(ctx context.Context, cmd TypingCommand) (*dto.Chat, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	conversation, err := loadParticipantChat(ctx, unit.Chats(), cmd.ChatID, cmd.UserID)
	if err != nil {
		return nil, err
	}
	realtime.Enqueue(ctx, realtime.Event{
		Table: realtime.TableTyping,
		Type:  realtime.Broadcast,
		Record: map[string]any{
			"chat_id":      string(conversation.ID),
			"user_id":      cmd.UserID,
			"participants": []string{conversation.Participants[0], conversation.Participants[1]},
		},
		At: handlersupport.Now(h.Now).UTC(),
	})
	return nil, nil
}

var (
	_ commands.Handler[MarkReadCommand, *dto.ReadState] = (*MarkReadHandler)(nil)
	_ commands.Handler[TypingCommand, *dto.Chat]        = (*TypingHandler)(nil)
)
