package memory

import (
	"context"
	"errors"
	"sync"

	"marketplace/internal/app/uow"
	domainmessaging "marketplace/internal/domain/messaging"
)

var (
	ErrUnitClosed   = errors.New("memory: unit of work already finished")
	ErrReadOnlyUnit = errors.New("memory: write attempted in a read-only unit")
)

// Store holds conversations and messages. Units serialize access: a write unit
// holds the lock until Commit or Rollback, read-only units share it.
type Store struct {
	mu            sync.RWMutex
	conversations map[domainmessaging.ConversationID]*domainmessaging.Conversation
	messages      map[domainmessaging.MessageID]*storedMessage
	timeline      map[domainmessaging.ConversationID][]domainmessaging.MessageID
	seq           int64
}

type storedMessage struct {
	msg *domainmessaging.Message
	seq int64
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[domainmessaging.ConversationID]*domainmessaging.Conversation),
		messages:      make(map[domainmessaging.MessageID]*storedMessage),
		timeline:      make(map[domainmessaging.ConversationID][]domainmessaging.MessageID),
	}
}

// Factory wires the in-memory store into a unit-of-work boundary.
type Factory struct {
	Store *Store
}

var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.Store == nil {
		return nil, ErrFactoryMisconfigured
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.ReadOnly {
		f.Store.mu.RLock()
	} else {
		f.Store.mu.Lock()
	}
	return &Unit{store: f.Store, readOnly: opts.ReadOnly}, nil
}

// Unit records an undo step for every write so Rollback restores the state
// seen at Begin.
type Unit struct {
	store    *Store
	readOnly bool
	undo     []func()
	closed   bool
}

func (u *Unit) Conversations() domainmessaging.ConversationRepository {
	return conversationRepo{unit: u}
}

func (u *Unit) Messages() domainmessaging.MessageRepository {
	return messageRepo{unit: u}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.closed {
		return ErrUnitClosed
	}
	u.release()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.closed {
		return nil
	}
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.release()
	return nil
}

func (u *Unit) release() {
	u.closed = true
	u.undo = nil
	if u.readOnly {
		u.store.mu.RUnlock()
		return
	}
	u.store.mu.Unlock()
}

func (u *Unit) readable() error {
	if u.closed {
		return ErrUnitClosed
	}
	return nil
}

func (u *Unit) writable() error {
	if u.closed {
		return ErrUnitClosed
	}
	if u.readOnly {
		return ErrReadOnlyUnit
	}
	return nil
}

func (u *Unit) onRollback(fn func()) {
	u.undo = append(u.undo, fn)
}

// OnRollback queues fn behind the unit's own undo entries.
func (u *Unit) OnRollback(fn func()) {
	if !u.closed {
		u.onRollback(fn)
	}
}

var _ uow.UoWFactory = Factory{}
var _ uow.UnitOfWork = (*Unit)(nil)
var _ uow.RollbackNotifier = (*Unit)(nil)
