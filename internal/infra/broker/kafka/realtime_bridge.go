package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"autoparc/internal/realtime"
)

const originHeader = "x-autoparc-origin"

// RecordPublisher is satisfied by Producer.
type RecordPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Deduplicator reports whether an event id was handled before.
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// RealtimeBridge spreads change events across API instances. Publish delivers
// to the local hub first, then forwards the event to the shared topic. Handle
// feeds events from other instances back into the local hub.
type RealtimeBridge struct {
	Local    realtime.Publisher
	Producer RecordPublisher
	Topic    string
	Origin   string
	Inbox    Deduplicator
	Logger   *slog.Logger
}

var ErrBridgeNotConfigured = errors.New("kafka: realtime bridge missing dependencies")

func (b *RealtimeBridge) Publish(ctx context.Context, ev realtime.Event) error {
	if b.Local == nil || b.Producer == nil || b.Topic == "" {
		return ErrBridgeNotConfigured
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := b.Local.Publish(ctx, ev); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	headers := map[string]string{
		originHeader:   b.Origin,
		"content-type": "application/json",
	}
	if err := b.Producer.Publish(ctx, b.Topic, ev.Table, payload, headers); err != nil {
		// Local subscribers already have the event; remote ones miss it.
		if b.Logger != nil {
			b.Logger.Warn("realtime event not forwarded", "table", ev.Table, "event_id", ev.ID, "err", err)
		}
	}
	return nil
}

func (b *RealtimeBridge) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	if b.Local == nil {
		return ErrBridgeNotConfigured
	}
	if headerValue(msg, originHeader) == b.Origin {
		return nil
	}
	var ev realtime.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		// Poison messages are skipped rather than retried forever.
		if b.Logger != nil {
			b.Logger.Warn("realtime event undecodable", "offset", msg.Offset, "err", err)
		}
		return nil
	}
	if b.Inbox != nil && ev.ID != "" {
		seen, err := b.Inbox.Seen(ctx, ev.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	return b.Local.Publish(ctx, ev)
}

func headerValue(msg *sarama.ConsumerMessage, key string) string {
	for _, h := range msg.Headers {
		if h != nil && string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

var (
	_ realtime.Publisher = (*RealtimeBridge)(nil)
	_ MessageHandler     = (*RealtimeBridge)(nil)
	_ RecordPublisher    = (*Producer)(nil)
)
