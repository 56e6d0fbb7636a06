package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"

	"marketplace/internal/app/uow"
	domainmessaging "marketplace/internal/domain/messaging"
)

// Factory wires Mongo sessions into the generic UnitOfWork interface. With
// Transactions off (standalone servers have no transactions) a unit only
// scopes the repositories, and writes land in the order the handler issues
// them: message first, conversation summary second.
type Factory struct {
	DB           *mongo.Database
	Transactions bool
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	unit := &Unit{db: f.DB}
	if !f.Transactions {
		return unit, nil
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetWriteConcern(f.DB.WriteConcern())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Snapshot())
	} else {
		txnOpts = txnOpts.SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.session = session
	return unit, nil
}

type Unit struct {
	db      *mongo.Database
	session mongo.Session
	aborted []func()
}

func (u *Unit) Conversations() domainmessaging.ConversationRepository {
	return NewConversationRepository(u.db)
}

func (u *Unit) Messages() domainmessaging.MessageRepository {
	return NewMessageRepository(u.db)
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.session == nil {
		u.aborted = nil
		return nil
	}
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		return conflictOr(err)
	}
	u.aborted = nil
	return nil
}

// Rollback aborts the transaction, if any, and runs the OnRollback callbacks.
func (u *Unit) Rollback(ctx context.Context) error {
	for i := len(u.aborted) - 1; i >= 0; i-- {
		u.aborted[i]()
	}
	u.aborted = nil
	if u.session == nil {
		return nil
	}
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

func (u *Unit) OnRollback(fn func()) {
	u.aborted = append(u.aborted, fn)
}

// InjectContext makes the session visible to repositories called with ctx.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if u.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.UnitOfWork      = (*Unit)(nil)
	_ uow.ContextInjector = (*Unit)(nil)
	_ uow.RollbackNotifier = (*Unit)(nil)
)

// conflictOr tags errors the server labels transient, which abort the whole
// transaction and are safe to replay from the start.
func conflictOr(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) && se.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %w", uow.ErrConflict, err)
	}
	return err
}

// writeErr is conflictOr for writes issued through ctx. Inside a transaction a
// duplicate key aborts it as well, so it is tagged the same way.
func writeErr(ctx context.Context, err error) error {
	if mongo.SessionFromContext(ctx) != nil && mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", uow.ErrConflict, err)
	}
	return conflictOr(err)
}
