package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	handlersupport "autoparc/internal/app/handlers/support"
	"autoparc/internal/app/policies"
	"autoparc/internal/app/queries"
	"autoparc/internal/app/uow"
	domainchat "autoparc/internal/domain/chat"
	domainnotification "autoparc/internal/domain/notification"
	"autoparc/internal/realtime"
)

const (
	sendMessageKey  = "chat.messages.send"
	listMessagesKey = "chat.messages.list"
)

// SendMessageCommand posts a message. ClientID, when set, makes retries of
// the same optimistic send idempotent.
type SendMessageCommand struct {
	ChatID   string
	SenderID string
	Text     string
	ClientID string
}

func (c SendMessageCommand) Key() string { return sendMessageKey }

func (c SendMessageCommand) Validate() error {
	if err := requireChatUser(c.ChatID, c.SenderID); err != nil {
		return err
	}
	_, err := domainchat.NormalizeText(c.Text)
	return err
}

func (c SendMessageCommand) IdempotencyKey() string {
	if c.ClientID == "" {
		return ""
	}
	return c.SenderID + ":" + c.ClientID
}

func (c SendMessageCommand) ResultPrototype() any { return &dto.ChatMessage{} }

type SendMessageHandler struct {
	Logger   *slog.Logger
	Notifier policies.Notifier
	Now      func() time.Time
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (*dto.ChatMessage, error) {
	unit, err := handlersupport.UnitFromContext(ctx)
	if err != nil {
		return nil, err
	}
	conversation, err := loadParticipantChat(ctx, unit.Chats(), cmd.ChatID, cmd.SenderID)
	if err != nil {
		return nil, err
	}
	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:       domainchat.MessageID(uuid.NewString()),
		ChatID:   conversation.ID,
		SenderID: cmd.SenderID,
		Text:     cmd.Text,
		ClientID: cmd.ClientID,
		Now:      handlersupport.Now(h.Now),
	})
	if err != nil {
		return nil, err
	}
	if err := unit.Chats().AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	conversation.RecordMessage(msg)

	realtime.Enqueue(ctx, realtime.Event{
		Table:  realtime.TableMessages,
		Type:   realtime.Insert,
		Record: dto.MessageRecord(msg),
		At:     msg.CreatedAt,
	})
	realtime.Enqueue(ctx, realtime.Event{
		Table:  realtime.TableChats,
		Type:   realtime.Update,
		Record: dto.ChatRecord(conversation),
		At:     msg.CreatedAt,
	})

	// The message is already stored; a failed notification is only logged.
	recipient := conversation.Other(cmd.SenderID)
	if h.Notifier != nil {
		if _, err := h.Notifier.Notify(ctx, domainnotification.CreateParams{
			UserID: recipient,
			Kind:   domainnotification.KindMessage,
			Title:  "Nouveau message",
			Body:   domainchat.Snippet(msg.Text),
			Link:   "/messages/" + string(conversation.ID),
			Now:    msg.CreatedAt,
		}); err != nil && h.Logger != nil {
			h.Logger.Warn("message notification failed", "chat_id", conversation.ID, "recipient_id", recipient, "error", err)
		}
	}

	if h.Logger != nil {
		h.Logger.Info("message sent", "chat_id", conversation.ID, "message_id", msg.ID, "sender_id", cmd.SenderID)
	}
	result := dto.MapChatMessage(msg)
	return &result, nil
}

type ListMessagesQuery struct {
	ChatID string
	UserID string
	Limit  int
	Before time.Time
}

func (q ListMessagesQuery) Key() string { return listMessagesKey }

type ListMessagesHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle returns a page of messages, oldest first. NextCursor points at the
// oldest message of the page when older ones may exist.
func (h *ListMessagesHandler) Handle(ctx context.Context, q ListMessagesQuery) (dto.ChatMessageList, error) {
	if err := requireChatUser(q.ChatID, q.UserID); err != nil {
		return dto.ChatMessageList{}, err
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.ChatMessageList{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if _, err := loadParticipantChat(execCtx, unit.Chats(), q.ChatID, q.UserID); err != nil {
		return dto.ChatMessageList{}, err
	}
	limit := domainchat.ClampLimit(q.Limit)
	messages, err := unit.Chats().ListMessages(execCtx, domainchat.ID(q.ChatID), limit, q.Before)
	if err != nil {
		return dto.ChatMessageList{}, err
	}
	out := dto.ChatMessageList{Items: make([]dto.ChatMessage, 0, len(messages))}
	for _, m := range messages {
		out.Items = append(out.Items, dto.MapChatMessage(m))
	}
	if len(messages) == limit {
		out.NextCursor = messages[0].CreatedAt.Format(time.RFC3339Nano)
	}
	return out, nil
}

var (
	_ commands.Handler[SendMessageCommand, *dto.ChatMessage]  = (*SendMessageHandler)(nil)
	_ queries.Handler[ListMessagesQuery, dto.ChatMessageList] = (*ListMessagesHandler)(nil)
)
