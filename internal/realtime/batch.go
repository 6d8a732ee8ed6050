package realtime

import (
	"context"
	"errors"
	"sync"
)

type batchKey struct{}

// Batch collects events produced while a command runs so they are only
// published once the command succeeded.
type Batch struct {
	mu     sync.Mutex
	events []Event
}

func WithBatch(ctx context.Context) (context.Context, *Batch) {
	b := &Batch{}
	return context.WithValue(ctx, batchKey{}, b), b
}

// Enqueue adds ev to the batch carried by ctx. It reports false when ctx has
// no batch.
func Enqueue(ctx context.Context, ev Event) bool {
	b, ok := ctx.Value(batchKey{}).(*Batch)
	if !ok || b == nil {
		return false
	}
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
	return true
}

func (b *Batch) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Event(nil), b.events...)
}

// Flush publishes every queued event in order and empties the batch.
func (b *Batch) Flush(ctx context.Context, pub Publisher) error {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	if pub == nil {
		return nil
	}
	var errs []error
	for _, ev := range events {
		if err := pub.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
