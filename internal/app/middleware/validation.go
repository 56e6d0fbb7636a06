package middleware

import (
	"context"

	"marketplace/internal/app/commands"
	"marketplace/internal/app/queries"
)

// Validator checks a command or query struct before its handler sees it. The
// returned error is already an *apperr.Error carrying the failed fields.
type Validator interface {
	Validate(ctx context.Context, message any) error
}

// Validation rejects malformed commands.
func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := v.Validate(ctx, cmd); err != nil {
				return nil, err
			}
			return next.Dispatch(ctx, cmd)
		})
	}
}

// QueryValidation is Validation for the query side: paging bounds, search
// terms and ids.
func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := v.Validate(ctx, q); err != nil {
				return nil, err
			}
			return next.Ask(ctx, q)
		})
	}
}
