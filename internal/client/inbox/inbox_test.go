package inbox

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"autoparc/internal/client/model"
	"autoparc/internal/realtime"
)

const me = "u-me"

func messageChange(id, chatID, sender string, at time.Time) model.Change {
	return model.Change{
		Table: realtime.TableMessages,
		Type:  string(realtime.Insert),
		Record: map[string]any{
			"id":         id,
			"chat_id":    chatID,
			"sender_id":  sender,
			"text":       "msg " + id,
			"created_at": at,
		},
	}
}

func loaded() *Inbox {
	b := New(me, nil, nil)
	b.Load([]model.Chat{
		{ID: "c1", Participants: []string{me, "u-a"}, UnreadCount: 1, LastMessageAt: 300},
		{ID: "c2", Participants: []string{me, "u-b"}, UnreadCount: 0, LastMessageAt: 200},
		{ID: "c3", Participants: []string{me, "u-c"}, UnreadCount: 2, LastMessageAt: 100},
	})
	return b
}

func assertTotal(t *testing.T, s Snapshot) {
	t.Helper()
	sum := 0
	for _, c := range s.Chats {
		sum += c.UnreadCount
	}
	if sum != s.Total {
		t.Fatalf("expected total %d to equal sum %d", s.Total, sum)
	}
}

func TestLoadComputesTotal(t *testing.T) {
	s := loaded().Snapshot()
	if s.Total != 3 {
		t.Fatalf("expected total 3, got %d", s.Total)
	}
	assertTotal(t, s)
}

func TestDuplicateDeliveryCountsOnce(t *testing.T) {
	b := loaded()
	at := time.Now()
	ch := messageChange("m1", "c2", "u-b", at)
	if !b.Apply(ch) {
		t.Fatalf("expected first delivery to change state")
	}
	if b.Apply(ch) {
		t.Fatalf("expected second delivery to be ignored")
	}
	s := b.Snapshot()
	if s.Chats[0].ID != "c2" || s.Chats[0].UnreadCount != 1 {
		t.Fatalf("expected c2 first with one unread, got %+v", s.Chats[0])
	}
	if s.Total != 4 {
		t.Fatalf("expected total 4, got %d", s.Total)
	}
	assertTotal(t, s)
}

func TestOwnMessagesDoNotCount(t *testing.T) {
	b := loaded()
	b.Apply(messageChange("m1", "c3", me, time.Now()))
	s := b.Snapshot()
	if s.Chats[0].ID != "c3" {
		t.Fatalf("expected c3 moved to top, got %s", s.Chats[0].ID)
	}
	if s.Chats[0].UnreadCount != 2 || s.Total != 3 {
		t.Fatalf("expected counts unchanged, got chat %d total %d", s.Chats[0].UnreadCount, s.Total)
	}
}

func TestMarkReadAdoptsServerCount(t *testing.T) {
	b := loaded()
	b.MarkRead("c3", 0)
	s := b.Snapshot()
	if s.Total != 1 {
		t.Fatalf("expected total 1, got %d", s.Total)
	}
	b.Apply(model.Change{
		Table:  realtime.TableChatReads,
		Type:   string(realtime.Update),
		Record: map[string]any{"chat_id": "c1", "user_id": me, "unread_count": 0},
	})
	if got := b.Snapshot().Total; got != 0 {
		t.Fatalf("expected total 0 after read event, got %d", got)
	}
	b.Apply(model.Change{
		Table:  realtime.TableChatReads,
		Type:   string(realtime.Update),
		Record: map[string]any{"chat_id": "c1", "user_id": "u-a", "unread_count": 5},
	})
	if got := b.Snapshot().Total; got != 0 {
		t.Fatalf("expected other user's read marker to be ignored, got %d", got)
	}
}

func TestMessageForUnknownChatCreatesPlaceholder(t *testing.T) {
	b := loaded()
	b.Apply(messageChange("m9", "c-new", "u-z", time.Now()))
	s := b.Snapshot()
	if s.Chats[0].ID != "c-new" || s.Chats[0].UnreadCount != 1 || s.Total != 4 {
		t.Fatalf("unexpected snapshot %+v", s)
	}
	b.Apply(model.Change{
		Table:  realtime.TableChats,
		Type:   string(realtime.Insert),
		Record: map[string]any{"id": "c-new", "listing_id": "l1", "participants": []string{me, "u-z"}},
	})
	s = b.Snapshot()
	if s.Chats[0].ListingID != "l1" || s.Chats[0].UnreadCount != 1 {
		t.Fatalf("expected metadata merged and unread kept, got %+v", s.Chats[0])
	}
}

func TestFailedSendRestoresDraftAndKeepsOrder(t *testing.T) {
	b := loaded()
	b.SetDraft("c3", "Bonjour")
	b.BeginSend("c3", "tmp-1", "Bonjour", time.Now())
	if b.Draft("c3") != "" {
		t.Fatalf("expected draft cleared while sending")
	}
	if msgs := b.Messages("c3"); len(msgs) != 1 || !msgs[0].Pending {
		t.Fatalf("expected one pending message, got %+v", msgs)
	}
	if text := b.FailSend("c3", "tmp-1"); text != "Bonjour" {
		t.Fatalf("expected restored text, got %q", text)
	}
	if b.Draft("c3") != "Bonjour" {
		t.Fatalf("expected draft restored")
	}
	if len(b.Messages("c3")) != 0 {
		t.Fatalf("expected pending message removed")
	}
	if s := b.Snapshot(); s.Chats[0].ID != "c3" {
		t.Fatalf("expected chat to keep its new position, got %s", s.Chats[0].ID)
	}
}

func TestConfirmedSendReplacesPending(t *testing.T) {
	b := loaded()
	b.BeginSend("c2", "tmp-1", "Salut", time.Now())
	stored := model.Message{ID: "m-srv", ChatID: "c2", SenderID: me, Text: "Salut", ClientID: "tmp-1", Timestamp: time.Now().UnixMilli()}
	b.ConfirmSend(stored)
	b.Apply(messageChange("m-srv", "c2", me, time.Now()))
	msgs := b.Messages("c2")
	if len(msgs) != 1 || msgs[0].ID != "m-srv" || msgs[0].Pending {
		t.Fatalf("expected one confirmed message, got %+v", msgs)
	}
	if got := b.Snapshot().Total; got != 3 {
		t.Fatalf("expected total unchanged, got %d", got)
	}
}

func TestTotalIsConsistentUnderConcurrentStreams(t *testing.T) {
	var mu sync.Mutex
	var bad int
	b := New(me, nil, func(s Snapshot) {
		sum := 0
		for _, c := range s.Chats {
			sum += c.UnreadCount
		}
		if sum != s.Total {
			mu.Lock()
			bad++
			mu.Unlock()
		}
	})
	b.Load([]model.Chat{{ID: "c1"}, {ID: "c2"}})

	streamA := make(chan model.Change)
	streamB := make(chan model.Change)
	go func() {
		defer close(streamA)
		for i := 0; i < 100; i++ {
			streamA <- messageChange("a"+strconv.Itoa(i), "c1", "u-a", time.Now())
		}
	}()
	go func() {
		defer close(streamB)
		for i := 0; i < 100; i++ {
			streamB <- messageChange("b"+strconv.Itoa(i), "c2", "u-b", time.Now())
			streamB <- model.Change{
				Table:  realtime.TableChatReads,
				Type:   string(realtime.Update),
				Record: map[string]any{"chat_id": "c2", "user_id": me, "unread_count": 0},
			}
		}
	}()
	if err := b.Run(context.Background(), streamA, streamB); err != nil {
		t.Fatalf("run: %v", err)
	}
	s := b.Snapshot()
	assertTotal(t, s)
	if s.Total != 100 {
		t.Fatalf("expected 100 unread in c1, got total %d", s.Total)
	}
	if bad != 0 {
		t.Fatalf("expected every snapshot consistent, %d were not", bad)
	}
}

func TestBadgeCountsEachNotificationOnce(t *testing.T) {
	badge := NewBadge()
	badge.Load([]model.Notification{{ID: "n1"}, {ID: "n2", Read: true}})
	ins := model.Change{Table: realtime.TableNotifications, Type: string(realtime.Insert), Record: map[string]any{"id": "n3", "title": "x"}}
	badge.Apply(ins)
	badge.Apply(ins)
	if got := badge.Count(); got != 2 {
		t.Fatalf("expected 2 unread, got %d", got)
	}
	badge.Apply(model.Change{Table: realtime.TableNotifications, Type: string(realtime.Update), Record: map[string]any{"id": "n1", "read": true}})
	if got := badge.Count(); got != 1 {
		t.Fatalf("expected 1 unread, got %d", got)
	}
	badge.MarkAllRead()
	if got := badge.Count(); got != 0 {
		t.Fatalf("expected 0 unread, got %d", got)
	}
}

func TestMessageCoveredByLoadedCountIsNotCountedAgain(t *testing.T) {
	b := New(me, nil, nil)
	b.Load([]model.Chat{{ID: "c1", UnreadCount: 1, LastMessageAt: 1}})
	b.Apply(messageChange("m1", "c1", "u-a", time.UnixMilli(1)))
	if got := b.Snapshot().Total; got != 1 {
		t.Fatalf("expected loaded count kept at 1, got %d", got)
	}
	b.Apply(messageChange("m2", "c1", "u-a", time.UnixMilli(2)))
	if got := b.Snapshot().Total; got != 2 {
		t.Fatalf("expected newer message counted, got %d", got)
	}
}

func TestReloadKeepsDeliveredIDsAndDrafts(t *testing.T) {
	b := loaded()
	at := time.UnixMilli(400)
	b.Apply(messageChange("m1", "c2", "u-b", at))
	b.SetDraft("c2", "A demain")
	b.Load([]model.Chat{
		{ID: "c1", UnreadCount: 1, LastMessageAt: 300},
		{ID: "c2", UnreadCount: 0, LastMessageAt: 200},
	})
	b.Apply(messageChange("m1", "c2", "u-b", at))
	s := b.Snapshot()
	if s.Total != 1 {
		t.Fatalf("expected redelivered message ignored after reload, got total %d", s.Total)
	}
	if b.Draft("c2") != "A demain" || len(b.Messages("c2")) != 1 {
		t.Fatalf("expected draft and history kept, got %q %+v", b.Draft("c2"), b.Messages("c2"))
	}
}

func TestOlderMessageDoesNotReorder(t *testing.T) {
	b := loaded()
	b.Apply(messageChange("m-old", "c3", "u-c", time.UnixMilli(50)))
	s := b.Snapshot()
	if s.Chats[0].ID != "c1" {
		t.Fatalf("expected c1 to stay on top, got %s", s.Chats[0].ID)
	}
	if c3 := s.Chats[2]; c3.ID != "c3" || c3.LastMessageAt != 100 {
		t.Fatalf("expected c3 preview unchanged, got %+v", c3)
	}
}

func TestReadEventReportsRealChange(t *testing.T) {
	b := loaded()
	read := func(chatID string, n int) model.Change {
		return model.Change{
			Table:  realtime.TableChatReads,
			Type:   string(realtime.Update),
			Record: map[string]any{"chat_id": chatID, "user_id": me, "unread_count": n},
		}
	}
	if b.Apply(read("c2", 0)) {
		t.Fatalf("expected no change for an equal count")
	}
	if b.Apply(read("c-unknown", 0)) {
		t.Fatalf("expected no change for an unknown chat")
	}
	if !b.Apply(read("c3", 0)) {
		t.Fatalf("expected change when the count drops")
	}
}

func TestLoadedHistoryIsNotCountedOnRedelivery(t *testing.T) {
	b := loaded()
	at := time.UnixMilli(500)
	b.BeginSend("c2", "tmp-1", "En route", time.UnixMilli(450))
	b.LoadMessages("c2", []model.Message{{ID: "h1", ChatID: "c2", SenderID: "u-b", Text: "Bonjour", Timestamp: 500}})
	b.Apply(messageChange("h1", "c2", "u-b", at))
	if got := b.Snapshot().Total; got != 3 {
		t.Fatalf("expected history message not counted, got total %d", got)
	}
	msgs := b.Messages("c2")
	if len(msgs) != 2 || msgs[0].ID != "h1" || msgs[1].ID != "tmp-1" {
		t.Fatalf("expected history then pending send, got %+v", msgs)
	}
}
