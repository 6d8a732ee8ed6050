package realtime

import (
	"context"
	"testing"
	"time"
)

func TestHubDeliversMatchingEventsInOrder(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe(Filter{Table: TableMessages, Column: "chat_id", Value: "c1"})
	defer sub.Close()

	ctx := context.Background()
	_ = hub.Publish(ctx, Event{Table: TableMessages, Type: Insert, Record: map[string]any{"id": "m1", "chat_id": "c1"}})
	_ = hub.Publish(ctx, Event{Table: TableMessages, Type: Insert, Record: map[string]any{"id": "mX", "chat_id": "c2"}})
	_ = hub.Publish(ctx, Event{Table: TableNotifications, Type: Insert, Record: map[string]any{"chat_id": "c1"}})
	_ = hub.Publish(ctx, Event{Table: TableMessages, Type: Insert, Record: map[string]any{"id": "m2", "chat_id": "c1"}})

	for _, want := range []string{"m1", "m2"} {
		select {
		case ev := <-sub.Events():
			if ev.Record["id"] != want {
				t.Fatalf("expected %s, got %v", want, ev.Record["id"])
			}
			if ev.ID == "" || ev.At.IsZero() {
				t.Fatalf("expected id and timestamp assigned, got %+v", ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}
	select {
	case ev := <-sub.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestHubDropsSlowSubscriberWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)
	hub.Buffer = 1
	slow := hub.Subscribe(Filter{Table: TableListings})
	fast := hub.Subscribe(Filter{Table: TableListings})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			_ = hub.Publish(context.Background(), Event{Table: TableListings, Type: Update})
			<-fast.Events()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publisher blocked on slow subscriber")
	}
	if !slow.Dropped() {
		t.Fatalf("expected slow subscriber dropped")
	}
	if hub.Subscribers() != 1 {
		t.Fatalf("expected one live subscriber, got %d", hub.Subscribers())
	}
	fast.Close()
	fast.Close()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected no subscribers after close")
	}
}

func TestFilterParsingAndMatching(t *testing.T) {
	f, err := ParseFilter("chats:participants=u1:INSERT,update")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Table != TableChats || f.Column != "participants" || f.Value != "u1" || len(f.Types) != 2 {
		t.Fatalf("unexpected filter %+v", f)
	}
	ev := Event{Table: TableChats, Type: Update, Record: map[string]any{"participants": []string{"u1", "u2"}}}
	if !f.Matches(ev) {
		t.Fatalf("expected array membership match")
	}
	ev.Type = Delete
	if f.Matches(ev) {
		t.Fatalf("expected type filter to reject DELETE")
	}
	if _, err := ParseFilter("chats:oops"); err == nil {
		t.Fatalf("expected invalid predicate error")
	}
	if got := f.String(); got != "chats:participants=u1:INSERT,UPDATE" {
		t.Fatalf("unexpected string form %q", got)
	}
}

func TestBatchFlushesInOrder(t *testing.T) {
	ctx, batch := WithBatch(context.Background())
	Enqueue(ctx, Event{Table: "a"})
	Enqueue(ctx, Event{Table: "b"})
	if Enqueue(context.Background(), Event{Table: "c"}) {
		t.Fatalf("expected enqueue without batch to report false")
	}
	var got []string
	err := batch.Flush(ctx, PublisherFunc(func(_ context.Context, ev Event) error {
		got = append(got, ev.Table)
		return nil
	}))
	if err != nil || len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("unexpected flush result %v (%v)", got, err)
	}
	if len(batch.Events()) != 0 {
		t.Fatalf("expected batch emptied")
	}
}
