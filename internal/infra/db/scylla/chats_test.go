package scylla

import (
	"testing"
	"time"

	domainchat "autoparc/internal/domain/chat"
)

func TestParticipantsKeyIsOrderFree(t *testing.T) {
	a, err := domainchat.NormalizeParticipants([]string{"seller", "buyer"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	b, _ := domainchat.NormalizeParticipants([]string{"buyer", "seller"})
	if participantsKey(a) != participantsKey(b) {
		t.Fatalf("expected same key, got %q and %q", participantsKey(a), participantsKey(b))
	}
}

func TestSortByActivityNewestFirst(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	chats := []*domainchat.Chat{
		{ID: "old", CreatedAt: base, LastMessageAt: base},
		{ID: "new", CreatedAt: base, LastMessageAt: base.Add(time.Minute)},
		{ID: "idle", CreatedAt: base.Add(30 * time.Second)},
	}
	sortByActivity(chats)
	if chats[0].ID != "new" || chats[1].ID != "idle" || chats[2].ID != "old" {
		t.Fatalf("unexpected order %s %s %s", chats[0].ID, chats[1].ID, chats[2].ID)
	}
}

func TestReverseGivesOldestFirst(t *testing.T) {
	msgs := []*domainchat.Message{{ID: "3"}, {ID: "2"}, {ID: "1"}}
	reverse(msgs)
	if msgs[0].ID != "1" || msgs[2].ID != "3" {
		t.Fatalf("expected oldest first, got %s..%s", msgs[0].ID, msgs[2].ID)
	}
}

func TestMillisTruncates(t *testing.T) {
	in := time.Date(2024, 1, 1, 0, 0, 0, 1_234_567, time.UTC)
	if got := millis(in); got.Nanosecond() != 1_000_000 {
		t.Fatalf("expected millisecond precision, got %d", got.Nanosecond())
	}
}
