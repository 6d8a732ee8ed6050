package middleware

import (
	"context"

	"autoparc/internal/app/commands"
	"autoparc/internal/app/outbox"
	"autoparc/internal/realtime"
)

// OutboxFlush flushes domain event records once the command succeeded.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := nextFn(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}

// PublishChanges collects realtime events queued by the handler and publishes
// them after the command (and its transaction) completed. Events from a
// failed command are discarded. Publish failures are reported through onErr
// and never fail the command.
func PublishChanges(pub realtime.Publisher, onErr func(error)) CommandMiddleware {
	if pub == nil {
		panic("middleware: realtime publisher required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			execCtx, batch := realtime.WithBatch(ctx)
			res, err := nextFn(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if flushErr := batch.Flush(ctx, pub); flushErr != nil && onErr != nil {
				onErr(flushErr)
			}
			return res, nil
		})
	}
}
