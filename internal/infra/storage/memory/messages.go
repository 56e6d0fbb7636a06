package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	domainmessaging "marketplace/internal/domain/messaging"
)

type messageRepo struct {
	unit *Unit
}

func (r messageRepo) Append(ctx context.Context, msg *domainmessaging.Message) error {
	if err := r.unit.writable(); err != nil {
		return err
	}
	store := r.unit.store
	conv, ok := store.conversations[msg.ConversationID]
	if !ok || !conv.IsActive {
		return domainmessaging.ErrConversationNotFound
	}
	if _, exists := store.messages[msg.ID]; exists {
		return domainmessaging.ErrMessageExists
	}
	store.seq++
	store.messages[msg.ID] = &storedMessage{msg: msg.Clone(), seq: store.seq}
	prevTimeline := store.timeline[msg.ConversationID]
	store.timeline[msg.ConversationID] = append(append([]domainmessaging.MessageID(nil), prevTimeline...), msg.ID)
	r.unit.onRollback(func() {
		delete(store.messages, msg.ID)
		if prevTimeline == nil {
			delete(store.timeline, msg.ConversationID)
			return
		}
		store.timeline[msg.ConversationID] = prevTimeline
	})
	return nil
}

func (r messageRepo) ByID(ctx context.Context, id domainmessaging.MessageID) (*domainmessaging.Message, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	stored, ok := r.unit.store.messages[id]
	if !ok {
		return nil, domainmessaging.ErrMessageNotFound
	}
	return stored.msg.Clone(), nil
}

func (r messageRepo) ListByConversation(ctx context.Context, id domainmessaging.ConversationID, limit, offset int) ([]*domainmessaging.Message, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	newest := r.newestFirst([]domainmessaging.ConversationID{id})
	if offset < 0 {
		offset = 0
	}
	if offset >= len(newest) {
		return []*domainmessaging.Message{}, nil
	}
	newest = newest[offset:]
	if limit > 0 && len(newest) > limit {
		newest = newest[:limit]
	}
	return cloneAll(newest), nil
}

func (r messageRepo) CountByConversation(ctx context.Context, id domainmessaging.ConversationID) (int, error) {
	if err := r.unit.readable(); err != nil {
		return 0, err
	}
	return len(r.unit.store.timeline[id]), nil
}

func (r messageRepo) MarkRead(ctx context.Context, id domainmessaging.MessageID, at time.Time) (*domainmessaging.Message, error) {
	if err := r.unit.writable(); err != nil {
		return nil, err
	}
	stored, ok := r.unit.store.messages[id]
	if !ok {
		return nil, domainmessaging.ErrMessageNotFound
	}
	prev := stored.msg.Clone()
	if stored.msg.MarkRead(at) {
		r.unit.onRollback(func() { stored.msg = prev })
	}
	return stored.msg.Clone(), nil
}

func (r messageRepo) MarkAllRead(ctx context.Context, id domainmessaging.ConversationID, reader domainmessaging.UserID, at time.Time) (int, error) {
	if err := r.unit.writable(); err != nil {
		return 0, err
	}
	count := 0
	for _, msgID := range r.unit.store.timeline[id] {
		stored := r.unit.store.messages[msgID]
		if stored == nil || stored.msg.SenderID == reader {
			continue
		}
		prev := stored.msg.Clone()
		if stored.msg.MarkRead(at) {
			count++
			r.unit.onRollback(func() { stored.msg = prev })
		}
	}
	return count, nil
}

func (r messageRepo) EditContent(ctx context.Context, id domainmessaging.MessageID, content string, at time.Time) (*domainmessaging.Message, error) {
	if err := r.unit.writable(); err != nil {
		return nil, err
	}
	stored, ok := r.unit.store.messages[id]
	if !ok {
		return nil, domainmessaging.ErrMessageNotFound
	}
	prev := stored.msg.Clone()
	if err := stored.msg.Edit(stored.msg.SenderID, content, at); err != nil {
		return nil, err
	}
	r.unit.onRollback(func() { stored.msg = prev })
	return stored.msg.Clone(), nil
}

func (r messageRepo) Search(ctx context.Context, ids []domainmessaging.ConversationID, substring string, limit int) ([]*domainmessaging.Message, error) {
	if err := r.unit.readable(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(substring))
	if needle == "" {
		return []*domainmessaging.Message{}, nil
	}
	hits := lo.Filter(r.newestFirst(ids), func(s *storedMessage, _ int) bool {
		return strings.Contains(strings.ToLower(s.msg.Content), needle)
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return cloneAll(hits), nil
}

// CountUnreadForUser groups unread messages from others by conversation, then
// sums the groups.
func (r messageRepo) CountUnreadForUser(ctx context.Context, user domainmessaging.UserID, ids []domainmessaging.ConversationID) (int, error) {
	if err := r.unit.readable(); err != nil {
		return 0, err
	}
	perConversation := make(map[domainmessaging.ConversationID]int, len(ids))
	for _, id := range lo.Uniq(ids) {
		conv, ok := r.unit.store.conversations[id]
		if !ok || !conv.HasParticipant(user) {
			continue
		}
		for _, msgID := range r.unit.store.timeline[id] {
			stored := r.unit.store.messages[msgID]
			if stored == nil || stored.msg.IsRead || stored.msg.SenderID == user {
				continue
			}
			perConversation[id]++
		}
	}
	return lo.Sum(lo.Values(perConversation)), nil
}

// newestFirst collects the messages of ids ordered by created_at then
// insertion, newest first.
func (r messageRepo) newestFirst(ids []domainmessaging.ConversationID) []*storedMessage {
	out := make([]*storedMessage, 0)
	for _, id := range lo.Uniq(ids) {
		for _, msgID := range r.unit.store.timeline[id] {
			if stored := r.unit.store.messages[msgID]; stored != nil {
				out = append(out, stored)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.msg.CreatedAt.Equal(b.msg.CreatedAt) {
			return a.msg.CreatedAt.After(b.msg.CreatedAt)
		}
		return a.seq > b.seq
	})
	return out
}

func cloneAll(items []*storedMessage) []*domainmessaging.Message {
	return lo.Map(items, func(s *storedMessage, _ int) *domainmessaging.Message {
		return s.msg.Clone()
	})
}
