package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"autoparc/internal/app/commands"
)

type sendCmd struct{ clientID string }

func (sendCmd) Key() string              { return "test.send" }
func (c sendCmd) IdempotencyKey() string { return c.clientID }
func (sendCmd) ResultPrototype() any     { return &sentResult{} }

type sentResult struct {
	ID string `json:"id"`
}

type mapStore map[string]Replay

func (m mapStore) Get(_ context.Context, key string) (Replay, bool, error) {
	rec, ok := m[key]
	return rec, ok, nil
}

func (m mapStore) Save(_ context.Context, rec Replay) error {
	m[rec.Key] = rec
	return nil
}

func TestIdempotencyReplaysCompletedCommand(t *testing.T) {
	store := mapStore{}
	calls := 0
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		calls++
		return &sentResult{ID: "m-1"}, nil
	})
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bus := ChainCommands(base, Idempotency(store, func() time.Time { return fixed }))

	for i := 0; i < 2; i++ {
		res, err := commands.Dispatch[sendCmd, *sentResult](context.Background(), bus, sendCmd{clientID: "c-1"})
		if err != nil {
			t.Fatalf("dispatch %d: %v", i, err)
		}
		if res.ID != "m-1" {
			t.Fatalf("expected m-1, got %q", res.ID)
		}
	}
	if calls != 1 {
		t.Fatalf("expected handler to run once, got %d", calls)
	}
	rec := store["test.send:c-1"]
	if rec.Command != "test.send" || !rec.CompletedAt.Equal(fixed) {
		t.Fatalf("unexpected replay record %+v", rec)
	}
}

func TestIdempotencyRetriesAfterFailure(t *testing.T) {
	store := mapStore{}
	fail := true
	calls := 0
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		calls++
		if fail {
			return nil, errors.New("storage unavailable")
		}
		return &sentResult{ID: "m-2"}, nil
	})
	bus := ChainCommands(base, Idempotency(store, nil))

	if _, err := bus.Dispatch(context.Background(), sendCmd{clientID: "c-2"}); err == nil {
		t.Fatalf("expected first attempt to fail")
	}
	if len(store) != 0 {
		t.Fatalf("expected failed attempt not to be stored, got %d records", len(store))
	}
	fail = false
	res, err := commands.Dispatch[sendCmd, *sentResult](context.Background(), bus, sendCmd{clientID: "c-2"})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.ID != "m-2" || calls != 2 {
		t.Fatalf("expected retry to run the handler, got id %q after %d calls", res.ID, calls)
	}
}

func TestIdempotencySkipsCommandsWithoutKey(t *testing.T) {
	store := mapStore{}
	calls := 0
	base := commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
		calls++
		return &sentResult{}, nil
	})
	bus := ChainCommands(base, Idempotency(store, nil))
	for i := 0; i < 2; i++ {
		if _, err := bus.Dispatch(context.Background(), sendCmd{}); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	if calls != 2 || len(store) != 0 {
		t.Fatalf("expected two handler calls and no records, got %d calls and %d records", calls, len(store))
	}
}
