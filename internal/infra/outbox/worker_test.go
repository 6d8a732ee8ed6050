package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type fakeClaimer struct {
	queue  []*EventDocument
	sent   []string
	failed map[string]string
}

func (f *fakeClaimer) Claim(ctx context.Context, workerID string) (*EventDocument, error) {
	if len(f.queue) == 0 {
		return nil, nil
	}
	doc := f.queue[0]
	f.queue = f.queue[1:]
	return doc, nil
}

func (f *fakeClaimer) MarkSent(ctx context.Context, id string) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeClaimer) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	if f.failed == nil {
		f.failed = map[string]string{}
	}
	f.failed[id] = errMsg
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	err  error
	msgs []published
}

func (p *fakeProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestWorkerRelaysRecordAsCloudEvent(t *testing.T) {
	store := &fakeClaimer{queue: []*EventDocument{{
		ID:         "evt-1",
		Name:       "listing.boosted",
		Aggregate:  "listing-1",
		Payload:    []byte(`{"name":"listing.boosted","aggregate_id":"listing-1"}`),
		OccurredAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}}}
	producer := &fakeProducer{}
	w := &Worker{Store: store, Producer: producer, Topic: "autoparc.domain-events"}

	if err := w.drain(context.Background()); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(producer.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(producer.msgs))
	}
	msg := producer.msgs[0]
	if msg.topic != "autoparc.domain-events" || msg.key != "listing-1" {
		t.Fatalf("unexpected routing %s/%s", msg.topic, msg.key)
	}
	var evt map[string]any
	if err := json.Unmarshal(msg.payload, &evt); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if evt["type"] != "listing.boosted.v1" || evt["id"] != "evt-1" {
		t.Fatalf("unexpected envelope %v", evt)
	}
	if len(store.sent) != 1 || store.sent[0] != "evt-1" {
		t.Fatalf("expected evt-1 marked sent, got %v", store.sent)
	}
}

func TestWorkerMarksFailedWhenBrokerRejects(t *testing.T) {
	store := &fakeClaimer{queue: []*EventDocument{{ID: "evt-2", Name: "listing.created", Payload: []byte(`{}`)}}}
	w := &Worker{Store: store, Producer: &fakeProducer{err: errors.New("broker down")}, Topic: "t", Backoff: []time.Duration{time.Second}}

	claimed, err := w.ProcessOnce(context.Background())
	if err != nil || !claimed {
		t.Fatalf("expected claimed record without error, got %v %v", claimed, err)
	}
	if store.failed["evt-2"] != "broker down" {
		t.Fatalf("expected failure recorded, got %v", store.failed)
	}
	if len(store.sent) != 0 {
		t.Fatalf("expected nothing sent, got %v", store.sent)
	}
}

func TestWorkerRequiresDependencies(t *testing.T) {
	if err := (&Worker{}).Run(context.Background()); !errors.Is(err, ErrWorkerNotConfigured) {
		t.Fatalf("expected ErrWorkerNotConfigured, got %v", err)
	}
}
