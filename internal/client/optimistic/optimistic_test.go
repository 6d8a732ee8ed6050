package optimistic

import (
	"context"
	"errors"
	"testing"
)

func TestApplyKeepsForwardOnSuccess(t *testing.T) {
	cell := NewCell(1)
	var seen int
	err := Apply(context.Background(), cell,
		func(v int) int { return v + 1 },
		func(v int) int { return v - 1 },
		func(context.Context) error { seen = cell.Get(); return nil },
	)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected forward applied before remote, got %d", seen)
	}
	if got := cell.Get(); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
}

func TestApplyRevertsOnFailure(t *testing.T) {
	boom := errors.New("boom")
	cell := NewCell(map[string]bool{})
	err := Apply(context.Background(), cell,
		func(m map[string]bool) map[string]bool { m["x"] = true; return m },
		func(m map[string]bool) map[string]bool { delete(m, "x"); return m },
		func(context.Context) error { return boom },
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected remote error, got %v", err)
	}
	if cell.Get()["x"] {
		t.Fatalf("expected forward change to be reverted")
	}
}
