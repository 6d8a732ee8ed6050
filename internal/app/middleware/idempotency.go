package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"time"

	"autoparc/internal/app/commands"
)

// IdempotentCommand is implemented by commands a client may retry with the
// same key, such as an optimistic message send carrying its client id.
type IdempotentCommand interface {
	commands.Command
	IdempotencyKey() string
	// ResultPrototype returns a pointer matching the handler result type.
	ResultPrototype() any
}

// Replay is the stored outcome of a command that completed. Failed commands
// are never stored, so a retry after a failure runs again.
type Replay struct {
	Key         string
	Command     string
	Payload     []byte
	CompletedAt time.Time
}

type IdempotencyStore interface {
	Get(ctx context.Context, key string) (Replay, bool, error)
	Save(ctx context.Context, rec Replay) error
}

var errMissingPrototype = errors.New("middleware: idempotent command requires result prototype")

// Idempotency replays the result of a command whose key already completed.
// Keys are scoped by command key.
func Idempotency(store IdempotencyStore, now func() time.Time) CommandMiddleware {
	if store == nil {
		panic("middleware: idempotency store required")
	}
	if now == nil {
		now = time.Now
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			idCmd, ok := cmd.(IdempotentCommand)
			if !ok || idCmd.IdempotencyKey() == "" {
				return nextFn(ctx, cmd)
			}
			key := cmd.Key() + ":" + idCmd.IdempotencyKey()
			rec, found, err := store.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if found {
				return replay(idCmd, rec)
			}

			result, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			rec = Replay{Key: key, Command: cmd.Key(), CompletedAt: now().UTC()}
			if result != nil {
				if rec.Payload, err = json.Marshal(result); err != nil {
					return nil, err
				}
			}
			if err := store.Save(ctx, rec); err != nil {
				return nil, err
			}
			return result, nil
		})
	}
}

func replay(cmd IdempotentCommand, rec Replay) (any, error) {
	proto := cmd.ResultPrototype()
	if proto == nil {
		return nil, errMissingPrototype
	}
	if len(rec.Payload) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(rec.Payload, proto); err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(proto)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Interface(), nil
	}
	return proto, nil
}
