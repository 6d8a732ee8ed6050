package events

import "time"

// DomainEvent is a fact recorded by an aggregate while it changes state.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded by aggregates that buffer events until the
// application layer drains them after a successful save.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

// DrainEvents returns pending events and resets the buffer.
func (r *EventRecorder) DrainEvents() []DomainEvent {
	out := r.PendingEvents()
	r.pending = nil
	return out
}

// Named is a minimal DomainEvent for aggregates that only need a name and a time.
type Named struct {
	Name      string
	Aggregate string
	Time      time.Time
}

func (e Named) EventName() string     { return e.Name }
func (e Named) AggregateID() string   { return e.Aggregate }
func (e Named) OccurredAt() time.Time { return e.Time }
