package uow

import (
	"context"

	domainmessaging "marketplace/internal/domain/messaging"
)

// UnitOfWork groups conversation and message writes behind one commit point.
type UnitOfWork interface {
	Conversations() domainmessaging.ConversationRepository
	Messages() domainmessaging.MessageRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry backend state (a Mongo
// session, for instance) through the context.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// RollbackNotifier is implemented by units that can run callbacks when they
// roll back. Stores living outside the unit use it to drop what they staged.
type RollbackNotifier interface {
	OnRollback(fn func())
}

// Bind stores unit in ctx and lets it decorate the context.
func Bind(ctx context.Context, unit UnitOfWork) context.Context {
	ctx = WithUnit(ctx, unit)
	if injector, ok := unit.(ContextInjector); ok {
		ctx = injector.InjectContext(ctx)
	}
	return ctx
}
