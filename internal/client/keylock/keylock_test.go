package keylock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAcquireBlocksSameKey(t *testing.T) {
	var s Set
	release, err := s.Acquire(context.Background(), "a")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	acquired := make(chan struct{})
	go func() {
		r, err := s.Acquire(context.Background(), "a")
		if err == nil {
			r()
		}
		close(acquired)
	}()
	select {
	case <-acquired:
		t.Fatalf("expected second acquire to wait")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("expected second acquire after release")
	}
}

func TestOtherKeysAreIndependent(t *testing.T) {
	var s Set
	release, _ := s.TryAcquire("a")
	defer release()
	other, ok := s.TryAcquire("b")
	if !ok {
		t.Fatalf("expected b to be free")
	}
	other()
	if _, ok := s.TryAcquire("a"); ok {
		t.Fatalf("expected a to be held")
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	var s Set
	release, _ := s.TryAcquire("a")
	defer release()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := s.Acquire(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	var s Set
	release, _ := s.TryAcquire("a")
	release()
	again, ok := s.TryAcquire("a")
	if !ok {
		t.Fatalf("expected a to be free")
	}
	release()
	if !s.Held("a") {
		t.Fatalf("expected stale release to leave the new holder alone")
	}
	again()
}
