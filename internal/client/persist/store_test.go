package persist

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	if _, ok, err := s.Load(ctx); err != nil || ok {
		t.Fatalf("expected no session, got ok=%v err=%v", ok, err)
	}
	expires := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := s.Save(ctx, Saved{Token: "t1", UserID: "u1", ExpiresAt: expires}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Save(ctx, Saved{Token: "t2", UserID: "u1", ExpiresAt: expires}); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, ok, err := s.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("expected session, got ok=%v err=%v", ok, err)
	}
	if got.Token != "t2" || !got.ExpiresAt.Equal(expires) {
		t.Fatalf("unexpected session %+v", got)
	}
	if !got.Expired(expires) || got.Expired(expires.Add(-time.Minute)) {
		t.Fatalf("unexpected expiry evaluation")
	}

	if err := s.SaveDraft(ctx, "c1", "Bonjour"); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.Load(ctx); ok {
		t.Fatalf("expected session cleared")
	}
	drafts, err := s.Drafts(ctx)
	if err != nil || len(drafts) != 0 {
		t.Fatalf("expected drafts cleared, got %v %v", drafts, err)
	}
}

func TestEmptyDraftDeletes(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	_ = s.SaveDraft(ctx, "c1", "a")
	_ = s.SaveDraft(ctx, "c1", "b")
	drafts, _ := s.Drafts(ctx)
	if drafts["c1"] != "b" {
		t.Fatalf("expected updated draft, got %q", drafts["c1"])
	}
	_ = s.SaveDraft(ctx, "c1", "")
	drafts, _ = s.Drafts(ctx)
	if _, ok := drafts["c1"]; ok {
		t.Fatalf("expected draft removed")
	}
}
