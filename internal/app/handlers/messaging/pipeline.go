package messaging

import (
	"time"

	"marketplace/internal/app/commands"
	"marketplace/internal/app/middleware"
	"marketplace/internal/app/queries"
	"marketplace/internal/app/validation"
)

type BusOptions struct {
	Base           Base
	Idempotency    middleware.IdempotencyStore
	IdempotencyTTL time.Duration
}

// NewBuses registers the messaging handlers and wraps both buses. Commands
// run Logging, Authorization, Validation, Idempotency, Transaction, then
// OutboxFlush around the handler; queries get the first three.
func NewBuses(opts BusOptions) (commands.Bus, queries.Bus) {
	cmdBus := commands.NewInMemoryBus()
	queryBus := queries.NewInMemoryBus()
	Register(cmdBus, queryBus, opts.Base)

	authorizer := PrincipalAuthorizer{Identities: opts.Base.Identities}
	validator := validation.StructValidator{}

	cmdMiddleware := []middleware.CommandMiddleware{
		middleware.Logging(opts.Base.Logger),
		middleware.Authorization(authorizer),
		middleware.Validation(validator),
	}
	if opts.Idempotency != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.Idempotency(opts.Idempotency, middleware.JSONResultCodec{}, opts.IdempotencyTTL))
	}
	cmdMiddleware = append(cmdMiddleware,
		middleware.Transaction(opts.Base.UoWFactory, nil),
		middleware.OutboxFlush(opts.Base.Outbox),
	)

	return middleware.ChainCommands(cmdBus, cmdMiddleware...),
		middleware.ChainQueries(queryBus,
			middleware.QueryLogging(opts.Base.Logger),
			middleware.QueryAuthorization(authorizer),
			middleware.QueryValidation(validator),
		)
}
