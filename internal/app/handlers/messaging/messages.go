package messaging

import (
	"context"
	"errors"
	"slices"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/commands"
	"marketplace/internal/app/dto"
	"marketplace/internal/app/handlers/support"
	"marketplace/internal/app/uow"
	domainmessaging "marketplace/internal/domain/messaging"
)

const (
	sendMessageKey       = "messaging.messages.send"
	sendDirectMessageKey = "messaging.messages.send_direct"
	listMessagesKey      = "messaging.messages.list"
	markMessageReadKey   = "messaging.messages.mark_read"
	editMessageKey       = "messaging.messages.edit"
)

type AttachmentInput struct {
	Type     string `json:"type" validate:"required,oneof=image file"`
	URL      string `json:"url" validate:"required,url"`
	Filename string `json:"filename" validate:"max=255"`
	Size     int64  `json:"size" validate:"gte=0"`
}

// MessageInput is the payload shared by both send commands.
type MessageInput struct {
	Content     string            `json:"content" validate:"content"`
	MessageType string            `json:"message_type" validate:"msgtype"`
	Attachments []AttachmentInput `json:"attachments" validate:"max=10,dive"`
	ReplyTo     string            `json:"reply_to"`
}

type SendMessageCommand struct {
	RequesterID    string `json:"-" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
	MessageInput
	IdemKey string `json:"-"`
}

func (c SendMessageCommand) Key() string          { return sendMessageKey }
func (c SendMessageCommand) Principal() string    { return c.RequesterID }
func (c SendMessageCommand) ResultPrototype() any { return &dto.Message{} }
func (c SendMessageCommand) IdempotencyKey() string {
	if c.IdemKey == "" {
		return ""
	}
	return c.RequesterID + ":" + c.IdemKey
}

// SendMessageHandler appends a message and updates the conversation preview
// and counters in the same unit of work.
type SendMessageHandler struct {
	Base
}

func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (dto.Message, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Message{}, apperr.Internal(err)
	}
	defer unit.Close()

	conv, err := visibleConversation(unit.Ctx, unit.Conversations(), cmd.ConversationID, cmd.RequesterID)
	if err != nil {
		return dto.Message{}, err
	}
	msg, _, err := h.send(unit, conv, cmd.RequesterID, cmd.MessageInput)
	if err != nil {
		return dto.Message{}, err
	}
	if err := unit.Commit(); err != nil {
		return dto.Message{}, apperr.Internal(err)
	}
	return dto.MapMessage(msg), nil
}

// send stores the message first and the conversation summary second, so a
// backend without transactions is left with a stale summary rather than a
// phantom unread bump.
func (h *SendMessageHandler) send(unit *support.Unit, conv *domainmessaging.Conversation, senderID string, in MessageInput) (*domainmessaging.Message, *domainmessaging.Conversation, error) {
	ctx := unit.Ctx
	sender := domainmessaging.UserID(senderID)

	attachments := make([]domainmessaging.Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		att, err := domainmessaging.NewAttachment(a.Type, a.URL, a.Filename, a.Size)
		if err != nil {
			return nil, nil, translate(err)
		}
		attachments = append(attachments, att)
	}
	msgType, err := domainmessaging.ParseMessageType(in.MessageType)
	if err != nil {
		return nil, nil, translate(err)
	}
	if in.ReplyTo != "" {
		if err := h.checkReply(ctx, unit.Messages(), conv.ID, domainmessaging.MessageID(in.ReplyTo)); err != nil {
			return nil, nil, err
		}
	}

	msg, err := domainmessaging.NewMessage(domainmessaging.NewMessageParams{
		ID:             newMessageID(),
		ConversationID: conv.ID,
		SenderID:       sender,
		SenderName:     h.senderName(ctx, conv, sender),
		Content:        in.Content,
		Type:           msgType,
		Attachments:    attachments,
		ReplyTo:        domainmessaging.MessageID(in.ReplyTo),
		Now:            conv.NextTimestamp(h.now()),
	})
	if err != nil {
		return nil, nil, translate(err)
	}
	if err := unit.Messages().Append(ctx, msg); err != nil {
		return nil, nil, translate(err)
	}
	updated, err := unit.Conversations().UpdateLastMessage(ctx, conv.ID, domainmessaging.LastMessage{
		Content:   msg.Content,
		SenderID:  sender,
		Timestamp: msg.CreatedAt,
	})
	if err != nil {
		if h.Logger != nil {
			h.Logger.ErrorContext(ctx, "conversation summary not updated after append", "conversation_id", conv.ID, "message_id", msg.ID, "err", err)
		}
		return nil, nil, translate(err)
	}
	if err := h.record(ctx, domainmessaging.NewMessageSent(updated, msg)); err != nil {
		return nil, nil, err
	}
	return msg, updated, nil
}

// checkReply tolerates dangling references but refuses a reply pointing into
// another conversation.
func (h *SendMessageHandler) checkReply(ctx context.Context, repo domainmessaging.MessageRepository, convID domainmessaging.ConversationID, replyTo domainmessaging.MessageID) error {
	target, err := repo.ByID(ctx, replyTo)
	if err != nil {
		if errors.Is(err, domainmessaging.ErrMessageNotFound) {
			return nil
		}
		return apperr.Internal(err)
	}
	if target.ConversationID != convID {
		return translate(domainmessaging.ErrReplyOutsideThread)
	}
	return nil
}

// senderName prefers the current directory name and falls back to the
// snapshot taken when the conversation was created.
func (h *SendMessageHandler) senderName(ctx context.Context, conv *domainmessaging.Conversation, sender domainmessaging.UserID) string {
	if h.Identities != nil {
		if ident, err := h.Identities.Lookup(ctx, string(sender)); err == nil && ident.DisplayName() != "" {
			return ident.DisplayName()
		}
	}
	p, _ := conv.Participant(sender)
	return p.DisplayName
}

// SendDirectMessageCommand sends to a user rather than a conversation; the
// conversation is created on first contact.
type SendDirectMessageCommand struct {
	RequesterID string `json:"-" validate:"required"`
	RecipientID string `json:"recipient_id" validate:"required"`
	ServiceID   string `json:"service_id"`
	MessageInput
	IdemKey string `json:"-"`
}

func (c SendDirectMessageCommand) Key() string          { return sendDirectMessageKey }
func (c SendDirectMessageCommand) Principal() string    { return c.RequesterID }
func (c SendDirectMessageCommand) ResultPrototype() any { return &dto.DirectMessage{} }
func (c SendDirectMessageCommand) IdempotencyKey() string {
	if c.IdemKey == "" {
		return ""
	}
	return c.RequesterID + ":" + c.IdemKey
}

type SendDirectMessageHandler struct {
	Conversations *GetOrCreateConversationHandler
	Messages      *SendMessageHandler
}

func (h *SendDirectMessageHandler) Handle(ctx context.Context, cmd SendDirectMessageCommand) (dto.DirectMessage, error) {
	unit, err := support.Begin(ctx, h.Messages.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.DirectMessage{}, apperr.Internal(err)
	}
	defer unit.Close()

	conv, created, err := h.Conversations.resolve(unit, cmd.RequesterID, cmd.RecipientID, cmd.ServiceID)
	if err != nil {
		return dto.DirectMessage{}, err
	}
	msg, updated, err := h.Messages.send(unit, conv, cmd.RequesterID, cmd.MessageInput)
	if err != nil {
		return dto.DirectMessage{}, err
	}
	if err := unit.Commit(); err != nil {
		return dto.DirectMessage{}, apperr.Internal(err)
	}
	return dto.DirectMessage{
		Conversation: dto.MapConversation(updated, domainmessaging.UserID(cmd.RequesterID)),
		Message:      dto.MapMessage(msg),
		Created:      created,
	}, nil
}

// ListMessagesCommand pages a conversation and, afterwards, marks the other
// party's messages read. The page shows the read state from before the call.
type ListMessagesCommand struct {
	RequesterID    string `json:"-" validate:"required"`
	ConversationID string `json:"conversation_id" validate:"required"`
	Page           int    `json:"page" validate:"gte=0"`
	Limit          int    `json:"limit" validate:"gte=0,lte=100"`
}

func (c ListMessagesCommand) Key() string       { return listMessagesKey }
func (c ListMessagesCommand) Principal() string { return c.RequesterID }

type ListMessagesHandler struct {
	Base
}

func (h *ListMessagesHandler) Handle(ctx context.Context, cmd ListMessagesCommand) (dto.MessagePage, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.MessagePage{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	conv, err := visibleConversation(ctx, unit.Conversations(), cmd.ConversationID, cmd.RequesterID)
	if err != nil {
		return dto.MessagePage{}, err
	}
	page, limit := normalizePage(cmd.Page, cmd.Limit)
	total, err := unit.Messages().CountByConversation(ctx, conv.ID)
	if err != nil {
		return dto.MessagePage{}, translate(err)
	}
	items, err := unit.Messages().ListByConversation(ctx, conv.ID, limit, (page-1)*limit)
	if err != nil {
		return dto.MessagePage{}, translate(err)
	}
	slices.Reverse(items)
	result := dto.MessagePage{Items: dto.MapMessages(items), Total: total, Page: page, Limit: limit}

	reader := domainmessaging.UserID(cmd.RequesterID)
	now := h.now()
	marked, err := unit.Messages().MarkAllRead(ctx, conv.ID, reader, now)
	if err != nil {
		return dto.MessagePage{}, translate(err)
	}
	if marked > 0 {
		if err := h.record(ctx, domainmessaging.NewConversationRead(conv.ID, reader, marked, now)); err != nil {
			return dto.MessagePage{}, err
		}
	}
	if err := unit.Commit(); err != nil {
		return dto.MessagePage{}, apperr.Internal(err)
	}
	return result, nil
}

// MarkMessageReadCommand marks one message from the other party as read.
type MarkMessageReadCommand struct {
	RequesterID string `json:"-" validate:"required"`
	MessageID   string `json:"message_id" validate:"required"`
}

func (c MarkMessageReadCommand) Key() string       { return markMessageReadKey }
func (c MarkMessageReadCommand) Principal() string { return c.RequesterID }

type MarkMessageReadHandler struct {
	Base
}

func (h *MarkMessageReadHandler) Handle(ctx context.Context, cmd MarkMessageReadCommand) (dto.Message, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Message{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	msg, err := visibleMessage(ctx, unit, cmd.MessageID, cmd.RequesterID)
	if err != nil {
		return dto.Message{}, err
	}
	if msg.SenderID != domainmessaging.UserID(cmd.RequesterID) && !msg.IsRead {
		msg, err = unit.Messages().MarkRead(ctx, msg.ID, h.now())
		if err != nil {
			return dto.Message{}, translate(err)
		}
	}
	if err := unit.Commit(); err != nil {
		return dto.Message{}, apperr.Internal(err)
	}
	return dto.MapMessage(msg), nil
}

// EditMessageCommand replaces the content of one of the requester's messages.
type EditMessageCommand struct {
	RequesterID string `json:"-" validate:"required"`
	MessageID   string `json:"message_id" validate:"required"`
	Content     string `json:"content" validate:"content"`
}

func (c EditMessageCommand) Key() string       { return editMessageKey }
func (c EditMessageCommand) Principal() string { return c.RequesterID }

type EditMessageHandler struct {
	Base
}

func (h *EditMessageHandler) Handle(ctx context.Context, cmd EditMessageCommand) (dto.Message, error) {
	unit, err := support.Begin(ctx, h.UoWFactory, uow.TxOptions{})
	if err != nil {
		return dto.Message{}, apperr.Internal(err)
	}
	defer unit.Close()
	ctx = unit.Ctx

	msg, err := visibleMessage(ctx, unit, cmd.MessageID, cmd.RequesterID)
	if err != nil {
		return dto.Message{}, err
	}
	if msg.SenderID != domainmessaging.UserID(cmd.RequesterID) {
		return dto.Message{}, translate(domainmessaging.ErrNotSender)
	}
	content, err := domainmessaging.NormalizeContent(cmd.Content)
	if err != nil {
		return dto.Message{}, translate(err)
	}
	msg, err = unit.Messages().EditContent(ctx, msg.ID, content, h.now())
	if err != nil {
		return dto.Message{}, translate(err)
	}
	if err := h.record(ctx, domainmessaging.NewMessageEdited(msg)); err != nil {
		return dto.Message{}, err
	}
	if err := unit.Commit(); err != nil {
		return dto.Message{}, apperr.Internal(err)
	}
	return dto.MapMessage(msg), nil
}

// visibleMessage loads a message whose conversation the viewer can see.
func visibleMessage(ctx context.Context, unit *support.Unit, messageID, viewer string) (*domainmessaging.Message, error) {
	msg, err := unit.Messages().ByID(ctx, domainmessaging.MessageID(messageID))
	if err != nil {
		return nil, translate(err)
	}
	if _, err := visibleConversation(ctx, unit.Conversations(), string(msg.ConversationID), viewer); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("message", domainmessaging.ErrNotParticipant)
		}
		return nil, err
	}
	return msg, nil
}

var (
	_ commands.Handler[SendMessageCommand, dto.Message]             = (*SendMessageHandler)(nil)
	_ commands.Handler[SendDirectMessageCommand, dto.DirectMessage] = (*SendDirectMessageHandler)(nil)
	_ commands.Handler[ListMessagesCommand, dto.MessagePage]        = (*ListMessagesHandler)(nil)
	_ commands.Handler[MarkMessageReadCommand, dto.Message]         = (*MarkMessageReadHandler)(nil)
	_ commands.Handler[EditMessageCommand, dto.Message]             = (*EditMessageHandler)(nil)
)
