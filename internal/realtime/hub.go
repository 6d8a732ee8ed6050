package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const defaultBuffer = 64

// Hub delivers events to in-process subscriptions.
type Hub struct {
	Logger *slog.Logger
	Buffer int

	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID atomic.Uint64
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{Logger: logger, subs: make(map[uint64]*Subscription)}
}

// Subscription is a buffered stream of matching events. Events arrive in
// publish order. The channel closes when the subscription ends.
type Subscription struct {
	id      uint64
	filters []Filter
	ch      chan Event
	hub     *Hub
	once    sync.Once
	dropped atomic.Bool
}

// Subscribe registers a subscription matching any of the filters.
func (h *Hub) Subscribe(filters ...Filter) *Subscription {
	size := h.Buffer
	if size <= 0 {
		size = defaultBuffer
	}
	sub := &Subscription{
		id:      h.nextID.Add(1),
		filters: append([]Filter(nil), filters...),
		ch:      make(chan Event, size),
		hub:     h,
	}
	h.mu.Lock()
	if h.subs == nil {
		h.subs = make(map[uint64]*Subscription)
	}
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Publish delivers ev to matching subscriptions without blocking. A
// subscription whose buffer is full is closed.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var slow []*Subscription
	h.mu.RLock()
	for _, sub := range h.subs {
		if !sub.matches(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()
	for _, sub := range slow {
		sub.dropped.Store(true)
		if h.Logger != nil {
			h.Logger.Warn("realtime subscriber dropped", "subscription", sub.id, "table", ev.Table)
		}
		sub.Close()
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped reports whether the hub closed the subscription for falling behind.
func (s *Subscription) Dropped() bool { return s.dropped.Load() }

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
		s.hub.mu.Lock()
		close(s.ch)
		s.hub.mu.Unlock()
	})
}

func (s *Subscription) matches(ev Event) bool {
	if len(s.filters) == 0 {
		return true
	}
	for _, f := range s.filters {
		if f.Matches(ev) {
			return true
		}
	}
	return false
}
