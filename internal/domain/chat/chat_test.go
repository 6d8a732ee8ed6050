package chat

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewChatNormalizesParticipants(t *testing.T) {
	c, err := NewChat(CreateParams{ID: "c1", ListingID: "l1", Participants: []string{"zoe", " adam ", "zoe"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Participants != [2]string{"adam", "zoe"} {
		t.Fatalf("unexpected participants %v", c.Participants)
	}
	if c.Other("adam") != "zoe" || !c.HasParticipant("zoe") || c.HasParticipant("eve") {
		t.Fatalf("participant helpers disagree with %v", c.Participants)
	}
	if _, err := NewChat(CreateParams{ID: "c2", Participants: []string{"adam", "adam"}}); !errors.Is(err, ErrParticipants) {
		t.Fatalf("expected ErrParticipants, got %v", err)
	}
}

func TestNewMessageValidatesText(t *testing.T) {
	if _, err := NewMessage(MessageParams{ID: "m1", ChatID: "c1", SenderID: "a", Text: "   "}); !errors.Is(err, ErrTextRequired) {
		t.Fatalf("expected ErrTextRequired, got %v", err)
	}
	long := strings.Repeat("é", MaxMessageRunes+1)
	if _, err := NewMessage(MessageParams{ID: "m1", ChatID: "c1", SenderID: "a", Text: long}); !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("expected ErrTextTooLong, got %v", err)
	}
	exact := strings.Repeat("é", MaxMessageRunes)
	if _, err := NewMessage(MessageParams{ID: "m1", ChatID: "c1", SenderID: "a", Text: exact}); err != nil {
		t.Fatalf("expected %d runes accepted, got %v", MaxMessageRunes, err)
	}
}

func TestUnreadForExcludesSenderAndReadMessages(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []*Message{
		{ID: "1", SenderID: "a", CreatedAt: base},
		{ID: "2", SenderID: "b", CreatedAt: base.Add(time.Minute)},
		{ID: "3", SenderID: "a", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "4", SenderID: "a", CreatedAt: base.Add(3 * time.Minute)},
	}
	if got := UnreadFor(msgs, "b", ReadMarker{}); got != 3 {
		t.Fatalf("expected 3 unread without marker, got %d", got)
	}
	if got := UnreadFor(msgs, "a", ReadMarker{}); got != 1 {
		t.Fatalf("expected own messages excluded, got %d", got)
	}
	marker := ReadMarker{LastReadAt: base.Add(2 * time.Minute)}
	if got := UnreadFor(msgs, "b", marker); got != 1 {
		t.Fatalf("expected 1 unread after marker, got %d", got)
	}
}

func TestRecordMessageKeepsNewestPreview(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c, _ := NewChat(CreateParams{ID: "c1", Participants: []string{"a", "b"}, Now: base})
	c.RecordMessage(&Message{ID: "2", SenderID: "a", Text: "second", CreatedAt: base.Add(2 * time.Minute)})
	c.RecordMessage(&Message{ID: "1", SenderID: "b", Text: "first", CreatedAt: base.Add(time.Minute)})
	if c.LastMessageID != "2" || c.LastMessageText != "second" {
		t.Fatalf("expected newest preview kept, got %q", c.LastMessageText)
	}
}
