package middleware

import (
	"context"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/commands"
	"marketplace/internal/app/outbox"
)

// OutboxFlush releases the events a command staged once its handler returns
// without error. It sits inside Transaction, so a failed or replayed attempt
// never flushes; the unit's rollback drops what that attempt staged.
func OutboxFlush(box outbox.Outbox) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil {
				return nil, apperr.Internal(err)
			}
			return res, nil
		})
	}
}
