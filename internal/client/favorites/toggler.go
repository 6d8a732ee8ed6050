// Package favorites keeps the signed-in user's favorite set with optimistic
// toggles.
package favorites

import (
	"context"
	"log/slog"

	"autoparc/internal/client/keylock"
	"autoparc/internal/client/optimistic"
)

// Backend is the remote side of a toggle.
type Backend interface {
	AddFavorite(ctx context.Context, listingID string) error
	RemoveFavorite(ctx context.Context, listingID string) error
}

// Toggler flips favorites locally first. Calls for the same listing run one
// after the other, so a second toggle starts from the outcome of the first.
type Toggler struct {
	backend Backend
	logger  *slog.Logger
	state   *optimistic.Cell[map[string]struct{}]
	locks   keylock.Set
}

func NewToggler(backend Backend, logger *slog.Logger) *Toggler {
	return &Toggler{
		backend: backend,
		logger:  logger,
		state:   optimistic.NewCell(map[string]struct{}{}),
	}
}

// Load replaces the set with ids, usually the server list after sign-in.
func (t *Toggler) Load(ids []string) {
	t.state.Update(func(map[string]struct{}) map[string]struct{} {
		next := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			next[id] = struct{}{}
		}
		return next
	})
}

func (t *Toggler) IsFavorite(listingID string) bool {
	_, ok := t.state.Get()[listingID]
	return ok
}

// IDs returns the current set.
func (t *Toggler) IDs() []string {
	set := t.state.Get()
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// Toggle flips listingID and returns the new state. On failure the previous
// state is restored and returned with the error.
func (t *Toggler) Toggle(ctx context.Context, listingID string) (bool, error) {
	release, err := t.locks.Acquire(ctx, listingID)
	if err != nil {
		return t.IsFavorite(listingID), err
	}
	defer release()
	want := !t.IsFavorite(listingID)
	if err := t.set(ctx, listingID, want); err != nil {
		return !want, err
	}
	return want, nil
}

// Set makes listingID a favorite or not. It is a no-op when the state
// already matches.
func (t *Toggler) Set(ctx context.Context, listingID string, want bool) error {
	release, err := t.locks.Acquire(ctx, listingID)
	if err != nil {
		return err
	}
	defer release()
	if t.IsFavorite(listingID) == want {
		return nil
	}
	return t.set(ctx, listingID, want)
}

// Observe applies a change seen on the realtime stream, for example from
// another device. It is ignored while a local toggle is in flight.
func (t *Toggler) Observe(listingID string, present bool) {
	release, ok := t.locks.TryAcquire(listingID)
	if !ok {
		return
	}
	defer release()
	if present {
		t.state.Update(with(listingID))
	} else {
		t.state.Update(without(listingID))
	}
}

func (t *Toggler) set(ctx context.Context, listingID string, want bool) error {
	add, del := with(listingID), without(listingID)
	forward, inverse, remote := add, del, t.backend.AddFavorite
	if !want {
		forward, inverse, remote = del, add, t.backend.RemoveFavorite
	}
	err := optimistic.Apply(ctx, t.state, forward, inverse, func(ctx context.Context) error {
		return remote(ctx, listingID)
	})
	if err != nil && t.logger != nil {
		t.logger.Warn("favorite toggle reverted", "listing_id", listingID, "want", want, "error", err)
	}
	return err
}

// with and without return copies, so a set handed out by Get is never
// written again.
func with(listingID string) func(map[string]struct{}) map[string]struct{} {
	return func(s map[string]struct{}) map[string]struct{} {
		next := clone(s)
		next[listingID] = struct{}{}
		return next
	}
}

func without(listingID string) func(map[string]struct{}) map[string]struct{} {
	return func(s map[string]struct{}) map[string]struct{} {
		if _, ok := s[listingID]; !ok {
			return s
		}
		next := clone(s)
		delete(next, listingID)
		return next
	}
}

func clone(s map[string]struct{}) map[string]struct{} {
	next := make(map[string]struct{}, len(s)+1)
	for id := range s {
		next[id] = struct{}{}
	}
	return next
}
