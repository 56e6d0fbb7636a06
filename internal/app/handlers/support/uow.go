package support

import (
	"context"

	"marketplace/internal/app/uow"
)

// Unit is the unit of work a handler runs in. When the transaction middleware
// already bound one to the context the handler only borrows it, and Commit and
// Close are no-ops.
type Unit struct {
	uow.UnitOfWork
	Ctx       context.Context
	managed   bool
	committed bool
}

// Begin reuses the unit bound to ctx or starts one owned by the caller.
func Begin(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions) (*Unit, error) {
	if unit, err := uow.Current(ctx); err == nil {
		return &Unit{UnitOfWork: unit, Ctx: ctx}, nil
	} else if factory == nil {
		return nil, err
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Unit{UnitOfWork: unit, Ctx: uow.Bind(ctx, unit), managed: true}, nil
}

// BeginReadOnly is Begin for query handlers.
func BeginReadOnly(ctx context.Context, factory uow.UoWFactory) (*Unit, error) {
	return Begin(ctx, factory, uow.TxOptions{ReadOnly: true})
}

func (u *Unit) Commit() error {
	if !u.managed || u.committed {
		return nil
	}
	if err := u.UnitOfWork.Commit(u.Ctx); err != nil {
		return err
	}
	u.committed = true
	return nil
}

// Close rolls back an owned unit that was not committed.
func (u *Unit) Close() {
	if u.managed && !u.committed {
		_ = u.UnitOfWork.Rollback(u.Ctx)
	}
}
