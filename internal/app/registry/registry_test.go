package registry

import (
	"context"
	"testing"
	"time"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/dto"
	chatapp "autoparc/internal/app/handlers/chat"
	listingapp "autoparc/internal/app/handlers/listings"
	"autoparc/internal/app/queries"
	domainlistings "autoparc/internal/domain/listings"
	domainuser "autoparc/internal/domain/user"
	"autoparc/internal/infra/storage/memory"
	"autoparc/internal/realtime"
)

func seedUsers(t *testing.T, repo domainuser.Repository, ids ...string) {
	t.Helper()
	for _, id := range ids {
		u, err := domainuser.NewUser(domainuser.CreateParams{
			ID:           domainuser.ID(id),
			Email:        id + "@example.com",
			Name:         id,
			PasswordHash: "hash",
			Role:         domainuser.RoleBuyer,
		})
		if err != nil {
			t.Fatal(err)
		}
		if err := repo.Save(context.Background(), u); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSendMessageRetryWithClientIDIsDeliveredOnce(t *testing.T) {
	ctx := context.Background()
	factory := memory.NewFactory()
	hub := realtime.NewHub(nil)
	sub := hub.Subscribe(realtime.Filter{Table: realtime.TableMessages})
	defer sub.Close()
	buses := Build(Deps{
		UoW:         factory,
		Idempotency: memory.NewIdempotencyStore(0),
		Publisher:   hub,
		Now:         func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	seedUsers(t, factory.UsersRepo, "buyer", "seller")

	listing, err := commands.Dispatch[listingapp.CreateListingCommand, *dto.Listing](ctx, buses.Commands, listingapp.CreateListingCommand{
		SellerID: "seller",
		Details: domainlistings.Details{
			Title:      "Yamaha MT-07",
			PriceCents: 590000,
			Category:   domainlistings.CategoryMoto,
			Year:       2021,
			Condition:  9,
			SellerType: domainlistings.SellerPro,
			Status:     domainlistings.StatusUsed,
			Location:   "Bordeaux",
		},
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	chat, err := commands.Dispatch[chatapp.StartConversationCommand, *dto.Chat](ctx, buses.Commands,
		chatapp.StartConversationCommand{ListingID: listing.ID, BuyerID: "buyer"})
	if err != nil {
		t.Fatalf("start conversation: %v", err)
	}

	send := chatapp.SendMessageCommand{ChatID: chat.ID, SenderID: "buyer", Text: "Toujours disponible ?", ClientID: "tmp-1"}
	first, err := commands.Dispatch[chatapp.SendMessageCommand, *dto.ChatMessage](ctx, buses.Commands, send)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	second, err := commands.Dispatch[chatapp.SendMessageCommand, *dto.ChatMessage](ctx, buses.Commands, send)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected retry to return message %s, got %s", first.ID, second.ID)
	}

	page, err := queries.Ask[chatapp.ListMessagesQuery, dto.ChatMessageList](ctx, buses.Queries,
		chatapp.ListMessagesQuery{ChatID: chat.ID, UserID: "seller"})
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("expected one stored message, got %d", len(page.Items))
	}
	if got := len(sub.Events()); got != 1 {
		t.Fatalf("expected one realtime insert, got %d", got)
	}
}

func TestBoostIsIdempotent(t *testing.T) {
	ctx := context.Background()
	factory := memory.NewFactory()
	buses := Build(Deps{UoW: factory})
	listing, err := commands.Dispatch[listingapp.CreateListingCommand, *dto.Listing](ctx, buses.Commands, listingapp.CreateListingCommand{
		SellerID: "seller",
		Details: domainlistings.Details{
			Title:      "Casque Shoei",
			PriceCents: 35000,
			Category:   domainlistings.CategoryAccessory,
			Condition:  6,
			SellerType: domainlistings.SellerIndividual,
			Status:     domainlistings.StatusUsed,
			Location:   "Lille",
		},
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	for i := 0; i < 2; i++ {
		res, err := commands.Dispatch[listingapp.BoostListingCommand, *dto.Listing](ctx, buses.Commands,
			listingapp.BoostListingCommand{SellerID: "seller", ListingID: listing.ID, Boost: true})
		if err != nil {
			t.Fatalf("boost %d: %v", i+1, err)
		}
		if !res.IsBoosted {
			t.Fatalf("boost %d: expected listing to stay boosted", i+1)
		}
	}
}
