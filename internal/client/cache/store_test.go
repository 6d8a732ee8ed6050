package cache

import (
	"sync"
	"testing"
	"time"

	"autoparc/internal/client/model"
)

func TestUpsertListingReplacesInPlaceOrPrepends(t *testing.T) {
	s := New()
	s.SetListings([]model.Listing{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}})

	s.UpsertListing(model.Listing{ID: "b", Title: "B2"})
	got := s.Listings()
	if len(got) != 2 || got[1].Title != "B2" {
		t.Fatalf("expected in-place update, got %+v", got)
	}

	s.UpsertListing(model.Listing{ID: "c", Title: "C"})
	got = s.Listings()
	if len(got) != 3 || got[0].ID != "c" {
		t.Fatalf("expected new listing first, got %+v", got)
	}

	s.RemoveListing("a")
	if got = s.Listings(); len(got) != 2 {
		t.Fatalf("expected 2 listings after remove, got %d", len(got))
	}
}

func TestListingsFreshness(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := New().WithClock(func() time.Time { return now })
	if s.ListingsFresh(0) {
		t.Fatalf("expected empty snapshot to be stale")
	}
	s.SetListings(nil)
	now = now.Add(10 * time.Second)
	if !s.ListingsFresh(0) {
		t.Fatalf("expected snapshot to be fresh after 10s")
	}
	now = now.Add(6 * time.Second)
	if s.ListingsFresh(0) {
		t.Fatalf("expected snapshot to be stale after 16s")
	}
}

func TestClearDropsEverything(t *testing.T) {
	s := New()
	s.SetUser(model.User{ID: "u1"})
	s.SetChats([]model.Chat{{ID: "c1"}})
	s.SetListings([]model.Listing{{ID: "l1"}})
	s.Clear()
	if _, ok := s.User("u1"); ok {
		t.Fatalf("expected user to be cleared")
	}
	if len(s.Chats()) != 0 || len(s.Listings()) != 0 || s.ListingsFresh(time.Hour) {
		t.Fatalf("expected empty cache after clear")
	}
}

func TestConcurrentUpserts(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.UpsertChat(model.Chat{ID: "same", UnreadCount: i})
		}(i)
	}
	wg.Wait()
	if got := s.Chats(); len(got) != 1 {
		t.Fatalf("expected a single chat, got %d", len(got))
	}
}
