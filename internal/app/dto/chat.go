package dto

import (
	"time"

	"github.com/samber/lo"

	domainmessaging "marketplace/internal/domain/messaging"
)

type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"sender_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the view of a conversation for one participant. Unread is
// that participant's own counter; UnreadCount carries all of them.
type Conversation struct {
	ID           string         `json:"id"`
	Participants []Participant  `json:"participants"`
	Counterpart  *Participant   `json:"counterpart,omitempty"`
	ServiceID    string         `json:"service_id,omitempty"`
	ServiceTitle string         `json:"service_title,omitempty"`
	LastMessage  LastMessage    `json:"last_message"`
	Unread       int            `json:"unread"`
	UnreadCount  map[string]int `json:"unread_count"`
	IsActive     bool           `json:"is_active"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

type ConversationList struct {
	Items []Conversation `json:"items"`
}

type Attachment struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
}

type Message struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	SenderID       string       `json:"sender_id"`
	SenderName     string       `json:"sender_name"`
	Content        string       `json:"content"`
	MessageType    string       `json:"message_type"`
	Attachments    []Attachment `json:"attachments"`
	IsRead         bool         `json:"is_read"`
	ReadAt         *time.Time   `json:"read_at,omitempty"`
	IsEdited       bool         `json:"is_edited"`
	EditedAt       *time.Time   `json:"edited_at,omitempty"`
	ReplyTo        string       `json:"reply_to,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// MessagePage lists messages in chronological order.
type MessagePage struct {
	Items []Message `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

type MessageSearchResult struct {
	Query string    `json:"query"`
	Items []Message `json:"items"`
}

type UnreadTotal struct {
	Count int `json:"count"`
}

type ReadReceipt struct {
	ConversationID string    `json:"conversation_id"`
	MessagesMarked int       `json:"messages_marked"`
	ReadAt         time.Time `json:"read_at"`
}

func MapConversation(c *domainmessaging.Conversation, viewer domainmessaging.UserID) Conversation {
	if c == nil {
		return Conversation{}
	}
	out := Conversation{
		ID: string(c.ID),
		Participants: lo.Map(c.Participants, func(p domainmessaging.Participant, _ int) Participant {
			return mapParticipant(p)
		}),
		ServiceID:    c.ServiceID,
		ServiceTitle: c.ServiceTitle,
		LastMessage: LastMessage{
			Content:   c.LastMessage.Content,
			SenderID:  string(c.LastMessage.SenderID),
			Timestamp: c.LastMessage.Timestamp,
		},
		Unread:      c.UnreadFor(viewer),
		UnreadCount: make(map[string]int, len(c.UnreadCount)),
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
	for _, p := range c.Participants {
		out.UnreadCount[string(p.UserID)] = c.UnreadFor(p.UserID)
	}
	if other, ok := c.Counterpart(viewer); ok {
		out.Counterpart = lo.ToPtr(mapParticipant(other))
	}
	return out
}

func MapConversations(items []*domainmessaging.Conversation, viewer domainmessaging.UserID) []Conversation {
	return lo.Map(items, func(c *domainmessaging.Conversation, _ int) Conversation {
		return MapConversation(c, viewer)
	})
}

func MapMessage(m *domainmessaging.Message) Message {
	if m == nil {
		return Message{}
	}
	out := Message{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		SenderName:     m.SenderName,
		Content:        m.Content,
		MessageType:    string(m.Type),
		Attachments: lo.Map(m.Attachments, func(a domainmessaging.Attachment, _ int) Attachment {
			return Attachment{Type: string(a.Kind), URL: a.URL, Filename: a.Filename, Size: a.Size}
		}),
		IsRead:    m.IsRead,
		IsEdited:  m.IsEdited,
		ReplyTo:   string(m.ReplyTo),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if !m.ReadAt.IsZero() {
		out.ReadAt = lo.ToPtr(m.ReadAt)
	}
	if !m.EditedAt.IsZero() {
		out.EditedAt = lo.ToPtr(m.EditedAt)
	}
	return out
}

func MapMessages(items []*domainmessaging.Message) []Message {
	return lo.Map(items, func(m *domainmessaging.Message, _ int) Message {
		return MapMessage(m)
	})
}

func mapParticipant(p domainmessaging.Participant) Participant {
	return Participant{UserID: string(p.UserID), DisplayName: p.DisplayName}
}

// DirectMessage is the result of sending to a user: the conversation it landed
// in and the stored message.
type DirectMessage struct {
	Conversation Conversation `json:"conversation"`
	Message      Message      `json:"message"`
	Created      bool         `json:"created"`
}
