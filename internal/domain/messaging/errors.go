package messaging

import "errors"

var (
	ErrIDRequired           = errors.New("messaging: id is required")
	ErrConversationNotFound = errors.New("messaging: conversation not found")
	ErrConversationExists   = errors.New("messaging: conversation already exists")
	ErrMessageNotFound      = errors.New("messaging: message not found")
	ErrMessageExists        = errors.New("messaging: message already exists")
	ErrSelfConversation     = errors.New("messaging: cannot start a conversation with yourself")
	ErrParticipantsCount    = errors.New("messaging: a conversation has exactly two distinct participants")
	ErrNotParticipant       = errors.New("messaging: user does not participate in the conversation")
	ErrNotSender            = errors.New("messaging: only the sender may edit a message")
	ErrContentLength        = errors.New("messaging: content must be between 1 and 1000 characters")
	ErrInvalidMessageType   = errors.New("messaging: unknown message type")
	ErrInvalidAttachment    = errors.New("messaging: invalid attachment")
	ErrReplyOutsideThread   = errors.New("messaging: reply target belongs to another conversation")
)
