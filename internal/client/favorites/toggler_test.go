package favorites

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"testing"
	"time"
)

type call struct {
	op string
	id string
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []call
	fail  error
	gate  chan struct{}
	enter chan call
}

func (f *fakeBackend) do(ctx context.Context, op, id string) error {
	f.mu.Lock()
	f.calls = append(f.calls, call{op, id})
	f.mu.Unlock()
	if f.enter != nil {
		f.enter <- call{op, id}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.fail
}

func (f *fakeBackend) AddFavorite(ctx context.Context, id string) error {
	return f.do(ctx, "add", id)
}

func (f *fakeBackend) RemoveFavorite(ctx context.Context, id string) error {
	return f.do(ctx, "remove", id)
}

func (f *fakeBackend) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func TestToggleFlipsAndCallsBackend(t *testing.T) {
	backend := &fakeBackend{}
	tg := NewToggler(backend, nil)
	got, err := tg.Toggle(context.Background(), "l1")
	if err != nil || !got {
		t.Fatalf("expected favorite after toggle, got %v %v", got, err)
	}
	if !tg.IsFavorite("l1") {
		t.Fatalf("expected l1 to be a favorite")
	}
	if calls := backend.recorded(); len(calls) != 1 || calls[0].op != "add" {
		t.Fatalf("expected one add call, got %+v", calls)
	}
}

func TestFailedToggleRestoresPreviousState(t *testing.T) {
	boom := errors.New("network down")
	backend := &fakeBackend{fail: boom}
	tg := NewToggler(backend, nil)
	tg.Load([]string{"l1"})

	got, err := tg.Toggle(context.Background(), "l1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if !got || !tg.IsFavorite("l1") {
		t.Fatalf("expected l1 to remain a favorite after failure")
	}

	got, err = tg.Toggle(context.Background(), "l2")
	if err == nil || got || tg.IsFavorite("l2") {
		t.Fatalf("expected l2 to remain absent after failure")
	}
}

func TestStateIsVisibleBeforeBackendReturns(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{}), enter: make(chan call, 1)}
	tg := NewToggler(backend, nil)
	done := make(chan struct{})
	go func() {
		_, _ = tg.Toggle(context.Background(), "l1")
		close(done)
	}()
	<-backend.enter
	if !tg.IsFavorite("l1") {
		t.Fatalf("expected optimistic favorite while request is in flight")
	}
	close(backend.gate)
	<-done
}

func TestBackToBackTogglesAreSerialized(t *testing.T) {
	backend := &fakeBackend{gate: make(chan struct{}), enter: make(chan call, 2)}
	tg := NewToggler(backend, nil)

	first := make(chan bool, 1)
	second := make(chan bool, 1)
	go func() {
		v, _ := tg.Toggle(context.Background(), "l1")
		first <- v
	}()
	<-backend.enter
	go func() {
		v, _ := tg.Toggle(context.Background(), "l1")
		second <- v
	}()

	select {
	case c := <-backend.enter:
		t.Fatalf("expected second toggle to wait, saw %+v", c)
	case <-time.After(20 * time.Millisecond):
	}
	close(backend.gate)

	if v := <-first; !v {
		t.Fatalf("expected first toggle to add")
	}
	if v := <-second; v {
		t.Fatalf("expected second toggle to remove")
	}
	if tg.IsFavorite("l1") {
		t.Fatalf("expected final state to match the second toggle")
	}
	calls := backend.recorded()
	if len(calls) != 2 || calls[0].op != "add" || calls[1].op != "remove" {
		t.Fatalf("expected add then remove, got %+v", calls)
	}
}

func TestSetIsNoopWhenStateMatches(t *testing.T) {
	backend := &fakeBackend{}
	tg := NewToggler(backend, nil)
	tg.Load([]string{"l1"})
	if err := tg.Set(context.Background(), "l1", true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if calls := backend.recorded(); len(calls) != 0 {
		t.Fatalf("expected no backend call, got %+v", calls)
	}
}

func TestDifferentListingsToggleConcurrently(t *testing.T) {
	backend := &fakeBackend{}
	tg := NewToggler(backend, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := "l" + strconv.Itoa(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 201; n++ {
				if _, err := tg.Toggle(context.Background(), id); err != nil {
					t.Errorf("toggle %s: %v", id, err)
					return
				}
				for _, got := range tg.IDs() {
					if got == "" {
						t.Errorf("unexpected empty id")
						return
					}
				}
				tg.IsFavorite(id)
			}
		}()
	}
	wg.Wait()

	ids := tg.IDs()
	sort.Strings(ids)
	if len(ids) != 8 {
		t.Fatalf("expected every listing favorite after an odd number of toggles, got %v", ids)
	}
	if calls := backend.recorded(); len(calls) != 8*201 {
		t.Fatalf("expected %d backend calls, got %d", 8*201, len(calls))
	}
}

func TestIDsSnapshotIsNotChangedByLaterToggles(t *testing.T) {
	tg := NewToggler(&fakeBackend{}, nil)
	tg.Load([]string{"l1"})
	before := tg.IDs()
	if _, err := tg.Toggle(context.Background(), "l2"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	tg.Observe("l1", false)
	if len(before) != 1 || before[0] != "l1" {
		t.Fatalf("expected earlier snapshot unchanged, got %v", before)
	}
	if tg.IsFavorite("l1") || !tg.IsFavorite("l2") {
		t.Fatalf("expected l2 only, got %v", tg.IDs())
	}
}
