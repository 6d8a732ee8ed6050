// Package model holds the client-side view models. Rows arrive in the
// snake_case wire shape of package dto; views use camelCase names and
// epoch-millisecond timestamps.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Change is a realtime event as received over the stream.
type Change struct {
	ID     string         `json:"id"`
	Table  string         `json:"table"`
	Type   string         `json:"type"`
	Record map[string]any `json:"record,omitempty"`
	Old    map[string]any `json:"old,omitempty"`
	At     time.Time      `json:"at"`
}

// decodeRecord re-reads a loosely typed realtime record into a wire row.
func decodeRecord(record map[string]any, out any) error {
	if record == nil {
		return fmt.Errorf("model: empty record")
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("model: encode record: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("model: decode record: %w", err)
	}
	return nil
}

// Millis converts t to epoch milliseconds; zero stays zero.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func centsToUnits(cents int64) float64 { return float64(cents) / 100 }

func unitsToCents(units float64) int64 {
	if units < 0 {
		return int64(units*100 - 0.5)
	}
	return int64(units*100 + 0.5)
}
