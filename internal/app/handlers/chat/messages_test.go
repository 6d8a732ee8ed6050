package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"autoparc/internal/app/uow"
	domainchat "autoparc/internal/domain/chat"
	domainnotification "autoparc/internal/domain/notification"
	"autoparc/internal/infra/storage/memory"
)

type failingNotifier struct{ calls int }

func (n *failingNotifier) Notify(ctx context.Context, params domainnotification.CreateParams) (*domainnotification.Notification, error) {
	n.calls++
	return nil, errors.New("notifications unavailable")
}

func TestSendSucceedsWhenNotificationFails(t *testing.T) {
	ctx := context.Background()
	factory := memory.NewFactory()
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	conversation, err := domainchat.NewChat(domainchat.CreateParams{
		ID:           "c-1",
		ListingID:    "l-1",
		Participants: []string{"u-buyer", "u-seller"},
		Now:          now,
	})
	if err != nil {
		t.Fatalf("new chat: %v", err)
	}
	if err := factory.ChatsRepo.Create(ctx, conversation); err != nil {
		t.Fatalf("create chat: %v", err)
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	notifier := &failingNotifier{}
	h := &SendMessageHandler{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Notifier: notifier,
		Now:      func() time.Time { return now.Add(time.Minute) },
	}
	res, err := h.Handle(uow.Inject(ctx, unit), SendMessageCommand{ChatID: "c-1", SenderID: "u-buyer", Text: "Toujours disponible ?"})
	if err != nil {
		t.Fatalf("expected send to succeed, got %v", err)
	}
	if res == nil || res.Text != "Toujours disponible ?" {
		t.Fatalf("expected stored message, got %+v", res)
	}
	if notifier.calls != 1 {
		t.Fatalf("expected one notification attempt, got %d", notifier.calls)
	}
	msgs, err := factory.ChatsRepo.ListMessages(ctx, "c-1", 10, time.Time{})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("expected one stored message, got %d %v", len(msgs), err)
	}
}
