package queries

import (
	"context"
	"errors"
	"fmt"
)

// Query is a read against conversations or messages. Key names the handler
// registered for it and doubles as the log and authorization label.
type Query interface {
	Key() string
}

type Handler[Q Query, R any] interface {
	Handle(ctx context.Context, query Q) (R, error)
}

// HandlerFunc lets a plain function serve as a Handler.
type HandlerFunc[Q Query, R any] func(ctx context.Context, query Q) (R, error)

func (f HandlerFunc[Q, R]) Handle(ctx context.Context, query Q) (R, error) {
	return f(ctx, query)
}

// Bus answers queries. Middleware wraps a Bus in another Bus.
type Bus interface {
	Ask(ctx context.Context, query Query) (any, error)
}

var (
	ErrHandlerNotFound = errors.New("queries: no handler registered")
	ErrInvalidQuery    = errors.New("queries: query does not match handler")
	ErrResultType      = errors.New("queries: unexpected result type")
	ErrNilBus          = errors.New("queries: nil bus")
)

// Ask sends query through bus and asserts the answer to R. A nil answer is the
// zero R; a *R answer is dereferenced.
func Ask[Q Query, R any](ctx context.Context, bus Bus, query Q) (R, error) {
	var zero R
	if bus == nil {
		return zero, ErrNilBus
	}
	res, err := bus.Ask(ctx, query)
	if err != nil || res == nil {
		return zero, err
	}
	switch value := res.(type) {
	case R:
		return value, nil
	case *R:
		if value != nil {
			return *value, nil
		}
		return zero, nil
	default:
		return zero, fmt.Errorf("%w: %s answered %T", ErrResultType, query.Key(), res)
	}
}
