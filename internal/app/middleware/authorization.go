package middleware

import (
	"context"

	"marketplace/internal/app/commands"
	"marketplace/internal/app/queries"
)

// Authorizer rejects messages whose principal may not act at all. Resource
// level checks (participation, ownership) stay in the handlers.
type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// Principaled is implemented by messages issued on behalf of a user.
type Principaled interface {
	Principal() string
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
