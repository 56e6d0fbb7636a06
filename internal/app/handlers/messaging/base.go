package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/outbox"
	"marketplace/internal/app/policies"
	"marketplace/internal/app/uow"
	domainmessaging "marketplace/internal/domain/messaging"
	"marketplace/internal/domain/shared/events"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 100
	defaultSearchCap = 200
)

// Base carries the collaborators shared by every messaging handler.
type Base struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Identities policies.IdentityDirectory
	Listings   policies.ListingDirectory
	Logger     *slog.Logger
	Now        func() time.Time
	// SearchConversationCap bounds how many conversations a cross-conversation
	// search scans.
	SearchConversationCap int
}

func (b *Base) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *Base) record(ctx context.Context, evs ...events.DomainEvent) error {
	if err := outbox.RecordDomainEvents(ctx, b.Outbox, b.Encoder, evs...); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

func (b *Base) searchCap() int {
	if b.SearchConversationCap > 0 {
		return b.SearchConversationCap
	}
	return defaultSearchCap
}

// identity resolves an active user; anything else is reported as not found.
func (b *Base) identity(ctx context.Context, userID string) (policies.Identity, error) {
	if b.Identities == nil {
		return policies.Identity{}, apperr.Internalf("messaging: identity directory not configured")
	}
	ident, err := b.Identities.Lookup(ctx, userID)
	if err != nil {
		if errors.Is(err, policies.ErrIdentityNotFound) {
			return policies.Identity{}, apperr.NotFound("user", err)
		}
		return policies.Identity{}, apperr.Internal(err)
	}
	if !ident.Active {
		return policies.Identity{}, apperr.NotFound("user", policies.ErrIdentityNotFound)
	}
	return ident, nil
}

// visibleConversation loads a conversation the viewer participates in.
// Strangers get the same answer as for a missing id.
func visibleConversation(ctx context.Context, repo domainmessaging.ConversationRepository, id string, viewer string) (*domainmessaging.Conversation, error) {
	conv, err := repo.ByID(ctx, domainmessaging.ConversationID(id))
	if err != nil {
		return nil, translate(err)
	}
	if !conv.VisibleTo(domainmessaging.UserID(viewer)) {
		return nil, apperr.NotFound("conversation", domainmessaging.ErrNotParticipant)
	}
	return conv, nil
}

func normalizePage(page, limit int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func newConversationID() domainmessaging.ConversationID {
	return domainmessaging.ConversationID(uuid.NewString())
}

// newMessageID returns a time-ordered id so ties on created_at sort by insertion.
func newMessageID() domainmessaging.MessageID {
	id, err := uuid.NewV7()
	if err != nil {
		return domainmessaging.MessageID(uuid.NewString())
	}
	return domainmessaging.MessageID(id.String())
}
