package mongo

import (
	"time"

	"github.com/samber/lo"

	domainmessaging "marketplace/internal/domain/messaging"
)

type participantDocument struct {
	UserID      string `bson:"user_id"`
	DisplayName string `bson:"display_name"`
}

type lastMessageDocument struct {
	Content   string    `bson:"content"`
	SenderID  string    `bson:"sender_id"`
	Timestamp time.Time `bson:"timestamp"`
}

type conversationDocument struct {
	ID             string                `bson:"_id"`
	PairKey        string                `bson:"pair_key"`
	ParticipantIDs []string              `bson:"participant_ids"`
	Participants   []participantDocument `bson:"participants"`
	ServiceID      string                `bson:"service_id,omitempty"`
	ServiceTitle   string                `bson:"service_title,omitempty"`
	LastMessage    lastMessageDocument   `bson:"last_message"`
	UnreadCount    map[string]int        `bson:"unread_count"`
	IsActive       bool                  `bson:"is_active"`
	CreatedAt      time.Time             `bson:"created_at"`
	UpdatedAt      time.Time             `bson:"updated_at"`
}

func newConversationDocument(c *domainmessaging.Conversation) conversationDocument {
	ids := lo.Map(c.Participants, func(p domainmessaging.Participant, _ int) string { return string(p.UserID) })
	unread := make(map[string]int, len(c.Participants))
	for _, id := range ids {
		unread[id] = c.UnreadFor(domainmessaging.UserID(id))
	}
	return conversationDocument{
		ID:             string(c.ID),
		PairKey:        domainmessaging.PairKey(c.Participants[0].UserID, c.Participants[1].UserID),
		ParticipantIDs: ids,
		Participants: lo.Map(c.Participants, func(p domainmessaging.Participant, _ int) participantDocument {
			return participantDocument{UserID: string(p.UserID), DisplayName: p.DisplayName}
		}),
		ServiceID:    c.ServiceID,
		ServiceTitle: c.ServiceTitle,
		LastMessage: lastMessageDocument{
			Content:   c.LastMessage.Content,
			SenderID:  string(c.LastMessage.SenderID),
			Timestamp: c.LastMessage.Timestamp,
		},
		UnreadCount: unread,
		IsActive:    c.IsActive,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func (d conversationDocument) toAggregate() *domainmessaging.Conversation {
	unread := make(map[domainmessaging.UserID]int, len(d.Participants))
	for _, p := range d.Participants {
		unread[domainmessaging.UserID(p.UserID)] = d.UnreadCount[p.UserID]
	}
	return &domainmessaging.Conversation{
		ID: domainmessaging.ConversationID(d.ID),
		Participants: lo.Map(d.Participants, func(p participantDocument, _ int) domainmessaging.Participant {
			return domainmessaging.Participant{UserID: domainmessaging.UserID(p.UserID), DisplayName: p.DisplayName}
		}),
		ServiceID:    d.ServiceID,
		ServiceTitle: d.ServiceTitle,
		LastMessage: domainmessaging.LastMessage{
			Content:   d.LastMessage.Content,
			SenderID:  domainmessaging.UserID(d.LastMessage.SenderID),
			Timestamp: d.LastMessage.Timestamp.UTC(),
		},
		UnreadCount: unread,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type attachmentDocument struct {
	Kind     string `bson:"type"`
	URL      string `bson:"url"`
	Filename string `bson:"filename,omitempty"`
	Size     int64  `bson:"size,omitempty"`
}

type messageDocument struct {
	ID             string               `bson:"_id"`
	ConversationID string               `bson:"conversation_id"`
	SenderID       string               `bson:"sender_id"`
	SenderName     string               `bson:"sender_name"`
	Content        string               `bson:"content"`
	Type           string               `bson:"message_type"`
	Attachments    []attachmentDocument `bson:"attachments,omitempty"`
	IsRead         bool                 `bson:"is_read"`
	ReadAt         *time.Time           `bson:"read_at,omitempty"`
	IsEdited       bool                 `bson:"is_edited"`
	EditedAt       *time.Time           `bson:"edited_at,omitempty"`
	ReplyTo        string               `bson:"reply_to,omitempty"`
	CreatedAt      time.Time            `bson:"created_at"`
	UpdatedAt      time.Time            `bson:"updated_at"`
}

func newMessageDocument(m *domainmessaging.Message) messageDocument {
	return messageDocument{
		ID:             string(m.ID),
		ConversationID: string(m.ConversationID),
		SenderID:       string(m.SenderID),
		SenderName:     m.SenderName,
		Content:        m.Content,
		Type:           string(m.Type),
		Attachments: lo.Map(m.Attachments, func(a domainmessaging.Attachment, _ int) attachmentDocument {
			return attachmentDocument{Kind: string(a.Kind), URL: a.URL, Filename: a.Filename, Size: a.Size}
		}),
		IsRead:    m.IsRead,
		ReadAt:    optionalTime(m.ReadAt),
		IsEdited:  m.IsEdited,
		EditedAt:  optionalTime(m.EditedAt),
		ReplyTo:   string(m.ReplyTo),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func (d messageDocument) toAggregate() *domainmessaging.Message {
	return &domainmessaging.Message{
		ID:             domainmessaging.MessageID(d.ID),
		ConversationID: domainmessaging.ConversationID(d.ConversationID),
		SenderID:       domainmessaging.UserID(d.SenderID),
		SenderName:     d.SenderName,
		Content:        d.Content,
		Type:           domainmessaging.MessageType(d.Type),
		Attachments: lo.Map(d.Attachments, func(a attachmentDocument, _ int) domainmessaging.Attachment {
			return domainmessaging.Attachment{Kind: domainmessaging.AttachmentKind(a.Kind), URL: a.URL, Filename: a.Filename, Size: a.Size}
		}),
		IsRead:    d.IsRead,
		ReadAt:    derefTime(d.ReadAt),
		IsEdited:  d.IsEdited,
		EditedAt:  derefTime(d.EditedAt),
		ReplyTo:   domainmessaging.MessageID(d.ReplyTo),
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
