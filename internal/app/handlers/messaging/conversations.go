package messaging

import (
	"context"
	"errors"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/commands"
	"marketplace/internal/app/dto"
	"marketplace/internal/app/handlers/support"
	"marketplace/internal/app/policies"
	"marketplace/internal/app/uow"
	domainmessaging "marketplace/internal/domain/messaging"
)

const (
	getOrCreateConversationKey = "messaging.conversations.get_or_create"
	openConversationKey        = "messaging.conversations.open"
	markConversationReadKey    = "messaging.conversations.mark_read"
	archiveConversationKey     = "messaging.conversations.archive"
)

// GetOrCreateConversationCommand returns the active conversation between the
// requester and ParticipantID, creating it on first contact.
type GetOrCreateConversationCommand struct {
	RequesterID   string `json:"-" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required"`
	ServiceID     string `json:"service_id"`
	IdemKey       string `json:"-"`
}

func (c GetOrCreateConversationCommand) Key() string       { return getOrCreateConversationKey }
func (c GetOrCreateConversationCommand) Principal() string { return c.RequesterID }
func (c GetOrCreateConversationCommand) ResultPrototype() any {
	return &dto.Conversation{}
}
func (c GetOrCreateConversationCommand) IdempotencyKey() string {
	if c.IdemKey == "" {
		return ""
	}
	return c.RequesterID + ":" + c.IdemKey
}

type GetOrCreateConversationHandler struct {
	Base
}

func (h *GetOrCreateConversationHandler) Handle(ctx context.Context, cmd GetOrCreateConversationCommand) (dto.Conversation, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Conversation{}, apperr.Internal(err)
	}
	defer unit.Close()

	conv, _, err := h.resolve(unit, cmd.RequesterID, cmd.ParticipantID, cmd.ServiceID)
	if err != nil {
		return dto.Conversation{}, err
	}
	if err := unit.Commit(); err != nil {
		return dto.Conversation{}, apperr.Internal(err)
	}
	return dto.MapConversation(conv, domainmessaging.UserID(cmd.RequesterID)), nil
}

// resolve implements get-or-create inside unit. It reports whether a new
// conversation was created.
func (h *GetOrCreateConversationHandler) resolve(unit *support.Unit, requesterID, participantID, serviceID string) (*domainmessaging.Conversation, bool, error) {
	ctx := unit.Ctx
	if requesterID == participantID {
		return nil, false, apperr.Conflict("cannot start a conversation with yourself", domainmessaging.ErrSelfConversation)
	}
	requester, err := h.identity(ctx, requesterID)
	if err != nil {
		return nil, false, err
	}
	target, err := h.identity(ctx, participantID)
	if err != nil {
		return nil, false, err
	}

	existing, err := unit.Conversations().FindBetween(ctx, domainmessaging.UserID(requesterID), domainmessaging.UserID(participantID))
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, domainmessaging.ErrConversationNotFound):
		return nil, false, translate(err)
	}

	var serviceTitle string
	if serviceID != "" {
		listing, err := h.listing(ctx, serviceID)
		if err != nil {
			return nil, false, err
		}
		serviceTitle = listing.Title
	}

	conv, err := domainmessaging.NewConversation(domainmessaging.NewConversationParams{
		ID: newConversationID(),
		Participants: []domainmessaging.Participant{
			{UserID: domainmessaging.UserID(requester.ID), DisplayName: requester.DisplayName()},
			{UserID: domainmessaging.UserID(target.ID), DisplayName: target.DisplayName()},
		},
		ServiceID:    serviceID,
		ServiceTitle: serviceTitle,
		Now:          h.now(),
	})
	if err != nil {
		return nil, false, translate(err)
	}
	if err := unit.Conversations().Create(ctx, conv); err != nil {
		if errors.Is(err, domainmessaging.ErrConversationExists) && !uow.Retryable(err) {
			// Lost a creation race for the same pair; hand back the winner.
			if winner, findErr := unit.Conversations().FindBetween(ctx, domainmessaging.UserID(requesterID), domainmessaging.UserID(participantID)); findErr == nil {
				return winner, false, nil
			}
		}
		return nil, false, translate(err)
	}
	if err := h.record(ctx, domainmessaging.NewConversationCreated(conv)); err != nil {
		return nil, false, err
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "conversation created", "conversation_id", conv.ID, "requester_id", requesterID, "participant_id", participantID, "service_id", serviceID)
	}
	return conv, true, nil
}

func (h *GetOrCreateConversationHandler) listing(ctx context.Context, id string) (policies.ListingRef, error) {
	if h.Listings == nil {
		return policies.ListingRef{}, apperr.Internalf("messaging: listing directory not configured")
	}
	ref, err := h.Listings.Listing(ctx, id)
	if err != nil {
		if errors.Is(err, policies.ErrListingNotFound) {
			return policies.ListingRef{}, apperr.NotFound("listing", err)
		}
		return policies.ListingRef{}, apperr.Internal(err)
	}
	if !ref.Active {
		return policies.ListingRef{}, apperr.NotFound("listing", policies.ErrListingNotFound)
	}
	return ref, nil
}

// OpenConversationCommand shows a conversation and clears the requester's
// unread counter.
type OpenConversationCommand struct {
	RequesterID    string `json:"-" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

func (c OpenConversationCommand) Key() string       { return openConversationKey }
func (c OpenConversationCommand) Principal() string { return c.RequesterID }

type OpenConversationHandler struct {
	Base
}

func (h *OpenConversationHandler) Handle(ctx context.Context, cmd OpenConversationCommand) (dto.Conversation, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Conversation{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	conv, err := visibleConversation(ctx, unit.Conversations(), cmd.ConversationID, cmd.RequesterID)
	if err != nil {
		return dto.Conversation{}, err
	}
	if conv.UnreadFor(domainmessaging.UserID(cmd.RequesterID)) > 0 {
		now := h.now()
		conv, err = unit.Conversations().MarkRead(ctx, conv.ID, domainmessaging.UserID(cmd.RequesterID), now)
		if err != nil {
			return dto.Conversation{}, translate(err)
		}
		if err := h.record(ctx, domainmessaging.NewConversationRead(conv.ID, domainmessaging.UserID(cmd.RequesterID), 0, now)); err != nil {
			return dto.Conversation{}, err
		}
	}
	if err := unit.Commit(); err != nil {
		return dto.Conversation{}, apperr.Internal(err)
	}
	return dto.MapConversation(conv, domainmessaging.UserID(cmd.RequesterID)), nil
}

// MarkConversationReadCommand clears the requester's counter and marks every
// message from the other party as read.
type MarkConversationReadCommand struct {
	RequesterID    string `json:"-" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

func (c MarkConversationReadCommand) Key() string       { return markConversationReadKey }
func (c MarkConversationReadCommand) Principal() string { return c.RequesterID }

type MarkConversationReadHandler struct {
	Base
}

func (h *MarkConversationReadHandler) Handle(ctx context.Context, cmd MarkConversationReadCommand) (dto.ReadReceipt, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.ReadReceipt{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	conv, err := visibleConversation(ctx, unit.Conversations(), cmd.ConversationID, cmd.RequesterID)
	if err != nil {
		return dto.ReadReceipt{}, err
	}
	reader := domainmessaging.UserID(cmd.RequesterID)
	now := h.now()
	marked, err := unit.Messages().MarkAllRead(ctx, conv.ID, reader, now)
	if err != nil {
		return dto.ReadReceipt{}, translate(err)
	}
	if _, err := unit.Conversations().MarkRead(ctx, conv.ID, reader, now); err != nil {
		return dto.ReadReceipt{}, translate(err)
	}
	if marked > 0 || conv.UnreadFor(reader) > 0 {
		if err := h.record(ctx, domainmessaging.NewConversationRead(conv.ID, reader, marked, now)); err != nil {
			return dto.ReadReceipt{}, err
		}
	}
	if err := unit.Commit(); err != nil {
		return dto.ReadReceipt{}, apperr.Internal(err)
	}
	return dto.ReadReceipt{ConversationID: string(conv.ID), MessagesMarked: marked, ReadAt: now}, nil
}

// ArchiveConversationCommand soft-deletes a conversation for both parties.
type ArchiveConversationCommand struct {
	RequesterID    string `json:"-" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
}

func (c ArchiveConversationCommand) Key() string       { return archiveConversationKey }
func (c ArchiveConversationCommand) Principal() string { return c.RequesterID }

type ArchiveConversationHandler struct {
	Base
}

func (h *ArchiveConversationHandler) Handle(ctx context.Context, cmd ArchiveConversationCommand) (dto.Conversation, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Conversation{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	conv, err := visibleConversation(ctx, unit.Conversations(), cmd.ConversationID, cmd.RequesterID)
	if err != nil {
		return dto.Conversation{}, err
	}
	now := h.now()
	conv, err = unit.Conversations().Archive(ctx, conv.ID, now)
	if err != nil {
		return dto.Conversation{}, translate(err)
	}
	if err := h.record(ctx, domainmessaging.NewConversationArchived(conv.ID, domainmessaging.UserID(cmd.RequesterID), now)); err != nil {
		return dto.Conversation{}, err
	}
	if err := unit.Commit(); err != nil {
		return dto.Conversation{}, apperr.Internal(err)
	}
	if h.Logger != nil {
		h.Logger.InfoContext(ctx, "conversation archived", "conversation_id", conv.ID, "requester_id", cmd.RequesterID)
	}
	return dto.MapConversation(conv, domainmessaging.UserID(cmd.RequesterID)), nil
}

var (
	_ commands.Handler[GetOrCreateConversationCommand, dto.Conversation] = (*GetOrCreateConversationHandler)(nil)
	_ commands.Handler[OpenConversationCommand, dto.Conversation]        = (*OpenConversationHandler)(nil)
	_ commands.Handler[MarkConversationReadCommand, dto.ReadReceipt]     = (*MarkConversationReadHandler)(nil)
	_ commands.Handler[ArchiveConversationCommand, dto.Conversation]     = (*ArchiveConversationHandler)(nil)
)
