package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Tables that emit change events.
const (
	TableListings      = "listings"
	TableChats         = "chats"
	TableMessages      = "messages"
	TableNotifications = "notifications"
	TableFavorites     = "favorites"
	TableTyping        = "typing"
	TableChatReads     = "chat_reads"
)

type Type string

const (
	Insert    Type = "INSERT"
	Update    Type = "UPDATE"
	Delete    Type = "DELETE"
	Broadcast Type = "BROADCAST"
)

// Event is a row-level change or a broadcast-only signal. Record and Old
// carry the row in its wire (snake_case) shape.
type Event struct {
	ID     string         `json:"id"`
	Table  string         `json:"table"`
	Type   Type           `json:"type"`
	Record map[string]any `json:"record,omitempty"`
	Old    map[string]any `json:"old,omitempty"`
	At     time.Time      `json:"at"`
}

// Publisher fans an event out to subscribers. Implementations must not block
// on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ev Event) error

func (f PublisherFunc) Publish(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Filter selects events by table, optional column equality and types.
type Filter struct {
	Table  string `json:"table"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
	Types  []Type `json:"types,omitempty"`
}

// ParseFilter reads the "table", "table:column=value" or
// "table:column=value:INSERT,UPDATE" forms.
func ParseFilter(raw string) (Filter, error) {
	parts := strings.SplitN(strings.TrimSpace(raw), ":", 3)
	f := Filter{Table: strings.TrimSpace(parts[0])}
	if f.Table == "" {
		return Filter{}, fmt.Errorf("realtime: empty table in filter %q", raw)
	}
	if len(parts) > 1 && parts[1] != "" {
		col, val, ok := strings.Cut(parts[1], "=")
		if !ok || strings.TrimSpace(col) == "" {
			return Filter{}, fmt.Errorf("realtime: invalid predicate in filter %q", raw)
		}
		f.Column = strings.TrimSpace(col)
		f.Value = strings.TrimSpace(val)
	}
	if len(parts) > 2 {
		for _, t := range strings.Split(parts[2], ",") {
			typ := Type(strings.ToUpper(strings.TrimSpace(t)))
			switch typ {
			case Insert, Update, Delete, Broadcast:
				f.Types = append(f.Types, typ)
			case "":
			default:
				return Filter{}, fmt.Errorf("realtime: unknown event type %q", t)
			}
		}
	}
	return f, nil
}

func (f Filter) String() string {
	s := f.Table
	if f.Column != "" {
		s += ":" + f.Column + "=" + f.Value
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		if f.Column == "" {
			s += ":"
		}
		s += ":" + strings.Join(types, ",")
	}
	return s
}

// Matches reports whether ev passes the filter. The column is looked up in
// Record, then in Old for deletes.
func (f Filter) Matches(ev Event) bool {
	if f.Table != "" && f.Table != "*" && f.Table != ev.Table {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if t == ev.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Column == "" {
		return true
	}
	if v, ok := ev.Record[f.Column]; ok {
		return valueEquals(v, f.Value)
	}
	if v, ok := ev.Old[f.Column]; ok {
		return valueEquals(v, f.Value)
	}
	return false
}

func valueEquals(v any, want string) bool {
	switch x := v.(type) {
	case string:
		return x == want
	case []string:
		for _, item := range x {
			if item == want {
				return true
			}
		}
		return false
	case []any:
		for _, item := range x {
			if fmt.Sprint(item) == want {
				return true
			}
		}
		return false
	case nil:
		return want == ""
	default:
		return fmt.Sprint(x) == want
	}
}
