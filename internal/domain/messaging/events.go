package messaging

import (
	"time"

	"marketplace/internal/domain/shared/events"
)

const (
	EventConversationCreated  = "conversation.created"
	EventConversationRead     = "conversation.read"
	EventConversationArchived = "conversation.archived"
	EventMessageSent          = "message.sent"
	EventMessageEdited        = "message.edited"
)

type ConversationCreated struct {
	events.BaseEvent
	Participants []UserID `json:"participants"`
	ServiceID    string   `json:"service_id,omitempty"`
}

func NewConversationCreated(c *Conversation) ConversationCreated {
	return ConversationCreated{
		BaseEvent:    events.NewBase(EventConversationCreated, string(c.ID), c.CreatedAt),
		Participants: c.ParticipantIDs(),
		ServiceID:    c.ServiceID,
	}
}

type MessageSent struct {
	events.BaseEvent
	MessageID  MessageID   `json:"message_id"`
	SenderID   UserID      `json:"sender_id"`
	Recipients []UserID    `json:"recipients"`
	Type       MessageType `json:"message_type"`
	Snippet    string      `json:"snippet"`
}

func NewMessageSent(c *Conversation, m *Message) MessageSent {
	recipients := make([]UserID, 0, 1)
	for _, id := range c.ParticipantIDs() {
		if id != m.SenderID {
			recipients = append(recipients, id)
		}
	}
	return MessageSent{
		BaseEvent:  events.NewBase(EventMessageSent, string(c.ID), m.CreatedAt),
		MessageID:  m.ID,
		SenderID:   m.SenderID,
		Recipients: recipients,
		Type:       m.Type,
		Snippet:    Snippet(m.Content),
	}
}

type MessageEdited struct {
	events.BaseEvent
	MessageID MessageID `json:"message_id"`
	EditorID  UserID    `json:"editor_id"`
}

func NewMessageEdited(m *Message) MessageEdited {
	return MessageEdited{
		BaseEvent: events.NewBase(EventMessageEdited, string(m.ConversationID), m.EditedAt),
		MessageID: m.ID,
		EditorID:  m.SenderID,
	}
}

type ConversationRead struct {
	events.BaseEvent
	ReaderID       UserID `json:"reader_id"`
	MessagesMarked int    `json:"messages_marked"`
}

func NewConversationRead(id ConversationID, reader UserID, marked int, at time.Time) ConversationRead {
	return ConversationRead{
		BaseEvent:      events.NewBase(EventConversationRead, string(id), at),
		ReaderID:       reader,
		MessagesMarked: marked,
	}
}

type ConversationArchived struct {
	events.BaseEvent
	ArchivedBy UserID `json:"archived_by"`
}

func NewConversationArchived(id ConversationID, by UserID, at time.Time) ConversationArchived {
	return ConversationArchived{
		BaseEvent:  events.NewBase(EventConversationArchived, string(id), at),
		ArchivedBy: by,
	}
}
