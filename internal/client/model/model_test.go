package model

import (
	"strings"
	"testing"
	"time"

	"autoparc/internal/app/dto"
)

func TestUserFromRowSynthesizesAvatar(t *testing.T) {
	u := UserFromRow(dto.UserProfile{ID: "u1", Name: "Jean Dupont", HourlyRateCents: 4550})
	if !strings.Contains(u.Avatar, "name=Jean+Dupont") {
		t.Fatalf("expected generated avatar, got %q", u.Avatar)
	}
	if u.HourlyRate != 45.5 {
		t.Fatalf("expected hourly rate 45.5, got %v", u.HourlyRate)
	}
	kept := UserFromRow(dto.UserProfile{ID: "u2", Name: "A", AvatarURL: "https://cdn/x.png"})
	if kept.Avatar != "https://cdn/x.png" {
		t.Fatalf("expected stored avatar, got %q", kept.Avatar)
	}
}

func TestListingFromRowConvertsUnits(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l := ListingFromRow(dto.Listing{ID: "l1", PriceCents: 1250000, SellerID: "s1", CreatedAt: at})
	if l.Price != 12500 {
		t.Fatalf("expected price 12500, got %v", l.Price)
	}
	if l.CreatedAt != at.UnixMilli() {
		t.Fatalf("expected millis %d, got %d", at.UnixMilli(), l.CreatedAt)
	}
	if l.SellerID != "s1" {
		t.Fatalf("expected seller s1, got %q", l.SellerID)
	}
}

func TestListingDraftValidatesBeforeRequest(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	draft := ListingDraft{Title: "Clio", Price: 9000, Category: "car", Year: 2018, Condition: 7, Location: "Lyon"}
	if err := draft.Validate(now); err != nil {
		t.Fatalf("expected valid draft, got %v", err)
	}
	if row := draft.Row(); row.PriceCents != 900000 {
		t.Fatalf("expected 900000 cents, got %d", row.PriceCents)
	}
	draft.Location = " "
	if err := draft.Validate(now); err == nil {
		t.Fatalf("expected missing location to fail")
	}
}

func TestMessageFromRecord(t *testing.T) {
	at := time.Date(2026, 5, 2, 8, 30, 0, 0, time.UTC)
	msg, err := MessageFromRecord(map[string]any{
		"id":         "m1",
		"chat_id":    "c1",
		"sender_id":  "u2",
		"text":       "Bonjour",
		"client_id":  "tmp-1",
		"created_at": at,
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.ChatID != "c1" || msg.SenderID != "u2" || msg.ClientID != "tmp-1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.Timestamp != at.UnixMilli() {
		t.Fatalf("expected timestamp %d, got %d", at.UnixMilli(), msg.Timestamp)
	}
	if _, err := MessageFromRecord(nil); err == nil {
		t.Fatalf("expected error for empty record")
	}
}

func TestReadFromRecord(t *testing.T) {
	chatID, userID, unread, err := ReadFromRecord(map[string]any{"chat_id": "c1", "user_id": "u1", "unread_count": 3})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if chatID != "c1" || userID != "u1" || unread != 3 {
		t.Fatalf("unexpected read state %s %s %d", chatID, userID, unread)
	}
}
