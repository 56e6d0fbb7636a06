package middleware

import (
	"context"
	"time"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/commands"
	"marketplace/internal/app/uow"
)

// TxOptionsProvider picks unit options per command. A nil provider means a
// plain read-write unit.
type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

const (
	txAttempts = 5
	txBackoff  = 10 * time.Millisecond
)

// Transaction binds a fresh unit of work to the context of every command and
// commits it when the rest of the chain succeeds.
//
// A command that fails with uow.ErrConflict is rolled back and replayed in a
// new unit, up to five attempts in total. Once attempts run out the caller
// gets a conflict.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			var lastErr error
			for attempt := 1; attempt <= txAttempts; attempt++ {
				if attempt > 1 {
					select {
					case <-ctx.Done():
						return nil, apperr.Internal(ctx.Err())
					case <-time.After(time.Duration(attempt-1) * txBackoff):
					}
				}
				res, err := runUnit(ctx, factory, opts, cmd, nextFn)
				if err == nil {
					return res, nil
				}
				if !uow.Retryable(err) {
					return nil, err
				}
				lastErr = err
			}
			return nil, apperr.Conflict("concurrent update, retry the request", lastErr)
		})
	}
}

// runUnit is one attempt. The unit is rolled back unless the commit went through.
func runUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, cmd commands.Command, nextFn commandFunc) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := nextFn(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		if uow.Retryable(err) {
			return nil, err
		}
		return nil, apperr.Internal(err)
	}
	committed = true
	return res, nil
}
