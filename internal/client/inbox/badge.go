package inbox

import (
	"sync"

	"autoparc/internal/client/model"
	"autoparc/internal/realtime"
)

// Badge counts unread notifications. Each notification id is counted at
// most once.
type Badge struct {
	mu     sync.Mutex
	unread map[string]struct{}
	seen   map[string]struct{}
}

func NewBadge() *Badge {
	return &Badge{unread: make(map[string]struct{}), seen: make(map[string]struct{})}
}

// Load replaces the badge with a server page.
func (b *Badge) Load(items []model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unread = make(map[string]struct{})
	b.seen = make(map[string]struct{}, len(items))
	for _, n := range items {
		b.seen[n.ID] = struct{}{}
		if !n.Read {
			b.unread[n.ID] = struct{}{}
		}
	}
}

// Apply reduces a notifications change and reports whether the count moved.
func (b *Badge) Apply(ch model.Change) bool {
	if ch.Table != realtime.TableNotifications {
		return false
	}
	n, err := model.NotificationFromRecord(ch.Record)
	if err != nil || n.ID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	before := len(b.unread)
	switch ch.Type {
	case string(realtime.Insert):
		if _, dup := b.seen[n.ID]; dup {
			return false
		}
		b.seen[n.ID] = struct{}{}
		if !n.Read {
			b.unread[n.ID] = struct{}{}
		}
	case string(realtime.Update):
		b.seen[n.ID] = struct{}{}
		if n.Read {
			delete(b.unread, n.ID)
		} else {
			b.unread[n.ID] = struct{}{}
		}
	case string(realtime.Delete):
		delete(b.unread, n.ID)
	}
	return len(b.unread) != before
}

// MarkAllRead empties the badge after the server accepted it.
func (b *Badge) MarkAllRead() {
	b.mu.Lock()
	b.unread = make(map[string]struct{})
	b.mu.Unlock()
}

func (b *Badge) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.unread)
}
