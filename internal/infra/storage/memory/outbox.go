package memory

import (
	"context"
	"sync"
	"time"

	appoutbox "marketplace/internal/app/outbox"
	"marketplace/internal/app/uow"
)

// Outbox stages records until the command that produced them flushes, then
// keeps them claimable for the relay worker. Records added inside a unit that
// rolls back are dropped.
type Outbox struct {
	mu     sync.Mutex
	staged []appoutbox.EventRecord
	ready  []*outboxEntry
	now    func() time.Time
}

type outboxEntry struct {
	record    appoutbox.EventRecord
	attempts  int
	nextTry   time.Time
	claimed   bool
	sent      bool
	lastError string
}

func NewOutbox() *Outbox {
	return &Outbox{now: time.Now}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	o.staged = append(o.staged, record)
	o.mu.Unlock()
	if unit, err := uow.Current(ctx); err == nil {
		if notifier, ok := unit.(uow.RollbackNotifier); ok {
			notifier.OnRollback(func() { o.discard(record.ID) })
		}
	}
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	for _, rec := range o.staged {
		o.ready = append(o.ready, &outboxEntry{record: rec, nextTry: now})
	}
	o.staged = nil
	return nil
}

func (o *Outbox) Claim(ctx context.Context, workerID string) (*appoutbox.PendingRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := o.now().UTC()
	for _, entry := range o.ready {
		if entry.sent || entry.claimed || entry.nextTry.After(now) {
			continue
		}
		entry.claimed = true
		return &appoutbox.PendingRecord{EventRecord: entry.record, Attempts: entry.attempts}, nil
	}
	return nil, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.ready[:0]
	for _, entry := range o.ready {
		if entry.record.ID == id {
			continue
		}
		kept = append(kept, entry)
	}
	o.ready = kept
	return nil
}

func (o *Outbox) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, entry := range o.ready {
		if entry.record.ID == id {
			entry.claimed = false
			entry.attempts++
			entry.nextTry = next
			entry.lastError = errMsg
		}
	}
	return nil
}

// Pending lists staged and unsent records, oldest first.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]appoutbox.EventRecord, 0, len(o.ready)+len(o.staged))
	for _, entry := range o.ready {
		out = append(out, entry.record)
	}
	return append(out, o.staged...)
}

func (o *Outbox) discard(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.staged[:0]
	for _, rec := range o.staged {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	o.staged = kept
}

var _ appoutbox.Outbox = (*Outbox)(nil)
