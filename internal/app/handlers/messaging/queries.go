package messaging

import (
	"context"
	"strings"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/dto"
	"marketplace/internal/app/handlers/support"
	"marketplace/internal/app/queries"
	domainmessaging "marketplace/internal/domain/messaging"
)

const (
	listConversationsKey = "messaging.conversations.list"
	unreadTotalKey       = "messaging.messages.unread_total"
	searchMessagesKey    = "messaging.messages.search"
)

type ListConversationsQuery struct {
	RequesterID string `json:"-" validate:"required"`
}

func (q ListConversationsQuery) Key() string       { return listConversationsKey }
func (q ListConversationsQuery) Principal() string { return q.RequesterID }

type ListConversationsHandler struct {
	Base
}

func (h *ListConversationsHandler) Handle(ctx context.Context, q ListConversationsQuery) (dto.ConversationList, error) {
	unit, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.ConversationList{}, apperr.Internal(err)
	}
	defer unit.Close()

	viewer := domainmessaging.UserID(q.RequesterID)
	items, err := unit.Conversations().ListForUser(unit.Ctx, viewer)
	if err != nil {
		return dto.ConversationList{}, translate(err)
	}
	return dto.ConversationList{Items: dto.MapConversations(items, viewer)}, nil
}

type UnreadTotalQuery struct {
	RequesterID string `json:"-" validate:"required"`
}

func (q UnreadTotalQuery) Key() string       { return unreadTotalKey }
func (q UnreadTotalQuery) Principal() string { return q.RequesterID }

// UnreadTotalHandler counts from the messages themselves rather than summing
// the conversation counters.
type UnreadTotalHandler struct {
	Base
}

func (h *UnreadTotalHandler) Handle(ctx context.Context, q UnreadTotalQuery) (dto.UnreadTotal, error) {
	unit, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.UnreadTotal{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	user := domainmessaging.UserID(q.RequesterID)
	ids, err := unit.Conversations().IDsForUser(ctx, user, 0)
	if err != nil {
		return dto.UnreadTotal{}, translate(err)
	}
	if len(ids) == 0 {
		return dto.UnreadTotal{}, nil
	}
	count, err := unit.Messages().CountUnreadForUser(ctx, user, ids)
	if err != nil {
		return dto.UnreadTotal{}, translate(err)
	}
	return dto.UnreadTotal{Count: count}, nil
}

// SearchMessagesQuery searches one conversation when ConversationID is set,
// otherwise the requester's most recent conversations up to the configured cap.
type SearchMessagesQuery struct {
	RequesterID    string `json:"-" validate:"required"`
	Query          string `json:"q" validate:"notblank,max=200"`
	ConversationID string `json:"conversation_id"`
}

func (q SearchMessagesQuery) Key() string       { return searchMessagesKey }
func (q SearchMessagesQuery) Principal() string { return q.RequesterID }

type SearchMessagesHandler struct {
	Base
}

func (h *SearchMessagesHandler) Handle(ctx context.Context, q SearchMessagesQuery) (dto.MessageSearchResult, error) {
	unit, err := support.BeginReadOnly(ctx, h.UoWFactory)
	if err != nil {
		return dto.MessageSearchResult{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	term := strings.TrimSpace(q.Query)
	var ids []domainmessaging.ConversationID
	if q.ConversationID != "" {
		conv, err := visibleConversation(ctx, unit.Conversations(), q.ConversationID, q.RequesterID)
		if err != nil {
			return dto.MessageSearchResult{}, err
		}
		ids = []domainmessaging.ConversationID{conv.ID}
	} else {
		ids, err = unit.Conversations().IDsForUser(ctx, domainmessaging.UserID(q.RequesterID), h.searchCap())
		if err != nil {
			return dto.MessageSearchResult{}, translate(err)
		}
	}
	result := dto.MessageSearchResult{Query: term, Items: []dto.Message{}}
	if len(ids) == 0 {
		return result, nil
	}
	hits, err := unit.Messages().Search(ctx, ids, term, domainmessaging.SearchLimit)
	if err != nil {
		return dto.MessageSearchResult{}, translate(err)
	}
	result.Items = dto.MapMessages(hits)
	return result, nil
}

var (
	_ queries.Handler[ListConversationsQuery, dto.ConversationList] = (*ListConversationsHandler)(nil)
	_ queries.Handler[UnreadTotalQuery, dto.UnreadTotal]            = (*UnreadTotalHandler)(nil)
	_ queries.Handler[SearchMessagesQuery, dto.MessageSearchResult] = (*SearchMessagesHandler)(nil)
)
