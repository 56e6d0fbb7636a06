package memory

import (
	"context"
	"sort"
	"time"

	domainmessaging "marketplace/internal/domain/messaging"
)

type conversationRepo struct {
	unit *Unit
}

func (r conversationRepo) ByID(ctx context.Context, id domainmessaging.ConversationID) (*domainmessaging.Conversation, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	conv, ok := r.unit.store.conversations[id]
	if !ok {
		return nil, domainmessaging.ErrConversationNotFound
	}
	return conv.Clone(), nil
}

func (r conversationRepo) FindBetween(ctx context.Context, a, b domainmessaging.UserID) (*domainmessaging.Conversation, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	key := domainmessaging.PairKey(a, b)
	for _, conv := range r.unit.store.conversations {
		if !conv.IsActive || len(conv.Participants) != 2 {
			continue
		}
		if domainmessaging.PairKey(conv.Participants[0].UserID, conv.Participants[1].UserID) == key {
			return conv.Clone(), nil
		}
	}
	return nil, domainmessaging.ErrConversationNotFound
}

func (r conversationRepo) Create(ctx context.Context, conv *domainmessaging.Conversation) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	store := r.unit.store
	if _, exists := store.conversations[conv.ID]; exists {
		return domainmessaging.ErrConversationExists
	}
	store.conversations[conv.ID] = conv.Clone()
	r.unit.onRollback(func() { delete(store.conversations, conv.ID) })
	return nil
}

func (r conversationRepo) ListForUser(ctx context.Context, user domainmessaging.UserID) ([]*domainmessaging.Conversation, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	out := make([]*domainmessaging.Conversation, 0)
	for _, conv := range r.unit.store.conversations {
		if conv.IsActive && conv.HasParticipant(user) {
			out = append(out, conv.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r conversationRepo) IDsForUser(ctx context.Context, user domainmessaging.UserID, limit int) ([]domainmessaging.ConversationID, error) {
	convs, err := r.ListForUser(ctx, user)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	ids := make([]domainmessaging.ConversationID, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r conversationRepo) UpdateLastMessage(ctx context.Context, id domainmessaging.ConversationID, preview domainmessaging.LastMessage) (*domainmessaging.Conversation, error) {
	return r.mutate(id, func(conv *domainmessaging.Conversation) {
		conv.ApplyMessage(preview.Content, preview.SenderID, preview.Timestamp)
	})
}

func (r conversationRepo) MarkRead(ctx context.Context, id domainmessaging.ConversationID, user domainmessaging.UserID, at time.Time) (*domainmessaging.Conversation, error) {
	return r.mutate(id, func(conv *domainmessaging.Conversation) {
		conv.MarkReadBy(user, at)
	})
}

func (r conversationRepo) Archive(ctx context.Context, id domainmessaging.ConversationID, at time.Time) (*domainmessaging.Conversation, error) {
	return r.mutate(id, func(conv *domainmessaging.Conversation) {
		conv.Archive(at)
	})
}

// mutate applies fn to an active conversation and registers the undo step.
func (r conversationRepo) mutate(id domainmessaging.ConversationID, fn func(*domainmessaging.Conversation)) (*domainmessaging.Conversation, error) {
	if err := r.unit.writable(); err != nil {
		return nil, err
	}
	store := r.unit.store
	conv, ok := store.conversations[id]
	if !ok || !conv.IsActive {
		return nil, domainmessaging.ErrConversationNotFound
	}
	prev := conv.Clone()
	fn(conv)
	r.unit.onRollback(func() { store.conversations[id] = prev })
	return conv.Clone(), nil
}
