package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domainchat "autoparc/internal/domain/chat"
	domainfavorites "autoparc/internal/domain/favorites"
	domainlistings "autoparc/internal/domain/listings"
	domainnotification "autoparc/internal/domain/notification"
)

func TestFavoriteAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewFavoriteRepository()
	fav := domainfavorites.Favorite{UserID: "u1", ListingID: "l1", CreatedAt: time.Now()}

	created, err := repo.Add(ctx, fav)
	if err != nil || !created {
		t.Fatalf("expected first add to create, got created=%v err=%v", created, err)
	}
	created, err = repo.Add(ctx, fav)
	if err != nil {
		t.Fatalf("expected second add to succeed, got %v", err)
	}
	if created {
		t.Fatalf("expected second add to report no new row")
	}
	list, _ := repo.ListForUser(ctx, "u1")
	if len(list) != 1 {
		t.Fatalf("expected exactly one favorite, got %d", len(list))
	}
	count, _ := repo.CountForListing(ctx, "l1")
	if count != 1 {
		t.Fatalf("expected listing count 1, got %d", count)
	}
}

func newTestChat(t *testing.T, repo *ChatRepository, at time.Time) *domainchat.Chat {
	t.Helper()
	c, err := domainchat.NewChat(domainchat.CreateParams{
		ID:           "c1",
		ListingID:    "l1",
		Participants: []string{"buyer", "seller"},
		Now:          at,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func addMessage(t *testing.T, repo *ChatRepository, id, sender string, at time.Time) {
	t.Helper()
	msg, err := domainchat.NewMessage(domainchat.MessageParams{
		ID:       domainchat.MessageID(id),
		ChatID:   "c1",
		SenderID: sender,
		Text:     "salut " + id,
		Now:      at,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.AddMessage(context.Background(), msg); err != nil {
		t.Fatal(err)
	}
}

func TestChatUnreadCountsOnlyOtherSenders(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	newTestChat(t, repo, base)

	addMessage(t, repo, "m1", "buyer", base.Add(time.Minute))
	addMessage(t, repo, "m2", "buyer", base.Add(2*time.Minute))
	addMessage(t, repo, "m3", "seller", base.Add(3*time.Minute))

	sellerUnread, _ := repo.UnreadCount(ctx, "c1", "seller")
	if sellerUnread != 2 {
		t.Fatalf("expected 2 unread for seller, got %d", sellerUnread)
	}
	buyerUnread, _ := repo.UnreadCount(ctx, "c1", "buyer")
	if buyerUnread != 1 {
		t.Fatalf("expected 1 unread for buyer, got %d", buyerUnread)
	}

	if err := repo.MarkRead(ctx, "c1", "seller", base.Add(90*time.Second)); err != nil {
		t.Fatal(err)
	}
	sellerUnread, _ = repo.UnreadCount(ctx, "c1", "seller")
	if sellerUnread != 1 {
		t.Fatalf("expected 1 unread after partial read, got %d", sellerUnread)
	}

	// an older marker must not move the read position back
	if err := repo.MarkRead(ctx, "c1", "seller", base); err != nil {
		t.Fatal(err)
	}
	sellerUnread, _ = repo.UnreadCount(ctx, "c1", "seller")
	if sellerUnread != 1 {
		t.Fatalf("expected marker to stay monotonic, got %d unread", sellerUnread)
	}

	if err := repo.MarkRead(ctx, "c1", "stranger", base); !errors.Is(err, domainchat.ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestChatPreviewAndPaging(t *testing.T) {
	ctx := context.Background()
	repo := NewChatRepository()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	newTestChat(t, repo, base)
	for i, id := range []string{"m1", "m2", "m3", "m4"} {
		addMessage(t, repo, id, "buyer", base.Add(time.Duration(i+1)*time.Minute))
	}

	c, err := repo.ByID(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if c.LastMessageID != "m4" {
		t.Fatalf("expected preview of m4, got %s", c.LastMessageID)
	}

	page, _ := repo.ListMessages(ctx, "c1", 2, time.Time{})
	if len(page) != 2 || page[0].ID != "m3" || page[1].ID != "m4" {
		t.Fatalf("expected latest two messages oldest first, got %v", messageIDs(page))
	}
	older, _ := repo.ListMessages(ctx, "c1", 2, page[0].CreatedAt)
	if len(older) != 2 || older[0].ID != "m1" || older[1].ID != "m2" {
		t.Fatalf("expected m1 m2 before m3, got %v", messageIDs(older))
	}
}

func messageIDs(msgs []*domainchat.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = string(m.ID)
	}
	return out
}

func TestListingSearchPutsBoostedFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	mileage := 80000
	for i, title := range []string{"Clio", "Golf", "Yaris"} {
		l, err := domainlistings.NewListing(domainlistings.CreateListingParams{
			ID:       domainlistings.ListingID(title),
			SellerID: "s1",
			Details: domainlistings.Details{
				Title:      title,
				PriceCents: int64(500000 + i*100000),
				Category:   domainlistings.CategoryCar,
				Year:       2015 + i,
				Mileage:    &mileage,
				Condition:  7,
				SellerType: domainlistings.SellerIndividual,
				Status:     domainlistings.StatusUsed,
				Location:   "Nantes",
			},
			Now: now.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatal(err)
		}
		if title == "Clio" {
			l.Boost(now.Add(5 * time.Hour))
		}
		if err := repo.Save(ctx, l); err != nil {
			t.Fatal(err)
		}
	}

	result, err := repo.Search(ctx, domainlistings.SearchParams{}.Normalized())
	if err != nil {
		t.Fatal(err)
	}
	if result.Total != 3 || result.Items[0].ID != "Clio" {
		t.Fatalf("expected boosted Clio first of 3, got total=%d first=%s", result.Total, result.Items[0].ID)
	}
	if result.Items[1].ID != "Yaris" {
		t.Fatalf("expected newest unboosted next, got %s", result.Items[1].ID)
	}

	cheap, _ := repo.Search(ctx, domainlistings.SearchParams{PriceMaxCents: 600000, Sort: domainlistings.SortPriceAsc}.Normalized())
	if cheap.Total != 2 || cheap.Items[0].ID != "Clio" {
		t.Fatalf("expected two listings under 6000 euros starting with Clio, got %d", cheap.Total)
	}
}

func TestNotificationMarkAsReadIsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewNotificationRepository()
	n, err := domainnotification.New(domainnotification.CreateParams{
		ID:     "n1",
		UserID: "u1",
		Kind:   domainnotification.KindMessage,
		Title:  "Nouveau message",
		Now:    time.Now(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Create(ctx, n); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.MarkAsRead(ctx, "n1", "u2"); !errors.Is(err, domainnotification.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user, got %v", err)
	}
	unread, _ := repo.UnreadCount(ctx, "u1")
	if unread != 1 {
		t.Fatalf("expected 1 unread, got %d", unread)
	}
}
