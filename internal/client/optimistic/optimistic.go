// Package optimistic applies local state changes before the matching remote
// call completes and reverts them when it fails.
package optimistic

import (
	"context"
	"sync"
)

// Cell is a value updated under a lock. Get hands out the stored value
// itself, so update functions for reference types must return a new value
// instead of modifying their argument.
type Cell[S any] struct {
	mu sync.Mutex
	v  S
}

func NewCell[S any](v S) *Cell[S] { return &Cell[S]{v: v} }

func (c *Cell[S]) Get() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

// Update replaces the value with f applied to it and returns the result.
func (c *Cell[S]) Update(f func(S) S) S {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.v = f(c.v)
	return c.v
}

// Apply runs forward on the cell, then remote. When remote fails, inverse
// is applied and the remote error returned. Inverse must undo forward even
// if other updates happened in between.
func Apply[S any](ctx context.Context, cell *Cell[S], forward, inverse func(S) S, remote func(context.Context) error) error {
	cell.Update(forward)
	if err := remote(ctx); err != nil {
		cell.Update(inverse)
		return err
	}
	return nil
}
