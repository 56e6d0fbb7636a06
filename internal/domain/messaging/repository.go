package messaging

import (
	"context"
	"time"
)

// SearchLimit caps the number of hits returned by message search.
const SearchLimit = 20

type ConversationRepository interface {
	ByID(ctx context.Context, id ConversationID) (*Conversation, error)
	// FindBetween returns the active conversation of the unordered pair {a, b}.
	FindBetween(ctx context.Context, a, b UserID) (*Conversation, error)
	Create(ctx context.Context, conv *Conversation) error
	// ListForUser returns active conversations of user, most recently updated first.
	ListForUser(ctx context.Context, user UserID) ([]*Conversation, error)
	// IDsForUser returns at most limit active conversation ids; limit <= 0 means all.
	IDsForUser(ctx context.Context, user UserID, limit int) ([]ConversationID, error)
	// UpdateLastMessage atomically sets the preview and increments the unread
	// counter of every participant other than preview.SenderID.
	UpdateLastMessage(ctx context.Context, id ConversationID, preview LastMessage) (*Conversation, error)
	MarkRead(ctx context.Context, id ConversationID, user UserID, at time.Time) (*Conversation, error)
	Archive(ctx context.Context, id ConversationID, at time.Time) (*Conversation, error)
}

type MessageRepository interface {
	Append(ctx context.Context, msg *Message) error
	ByID(ctx context.Context, id MessageID) (*Message, error)
	// ListByConversation pages newest first.
	ListByConversation(ctx context.Context, id ConversationID, limit, offset int) ([]*Message, error)
	CountByConversation(ctx context.Context, id ConversationID) (int, error)
	MarkRead(ctx context.Context, id MessageID, at time.Time) (*Message, error)
	// MarkAllRead marks every unread message not sent by reader and returns how many changed.
	MarkAllRead(ctx context.Context, id ConversationID, reader UserID, at time.Time) (int, error)
	EditContent(ctx context.Context, id MessageID, content string, at time.Time) (*Message, error)
	// Search does a case-insensitive substring match over content, newest first.
	Search(ctx context.Context, ids []ConversationID, substring string, limit int) ([]*Message, error)
	// CountUnreadForUser counts unread messages addressed to user inside ids.
	CountUnreadForUser(ctx context.Context, user UserID, ids []ConversationID) (int, error)
}
