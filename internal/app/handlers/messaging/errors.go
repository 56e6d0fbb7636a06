package messaging

import (
	"errors"

	"marketplace/internal/app/apperr"
	"marketplace/internal/app/uow"
	domainmessaging "marketplace/internal/domain/messaging"
)

// translate maps domain and storage errors onto application error kinds. Write
// conflicts pass through untouched for the transaction middleware to replay.
func translate(err error) error {
	if err == nil || uow.Retryable(err) {
		return err
	}
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, domainmessaging.ErrConversationNotFound),
		errors.Is(err, domainmessaging.ErrNotParticipant):
		return apperr.NotFound("conversation", err)
	case errors.Is(err, domainmessaging.ErrMessageNotFound):
		return apperr.NotFound("message", err)
	case errors.Is(err, domainmessaging.ErrSelfConversation):
		return apperr.Conflict("cannot start a conversation with yourself", err)
	case errors.Is(err, domainmessaging.ErrConversationExists):
		return apperr.Conflict("conversation already exists", err)
	case errors.Is(err, domainmessaging.ErrMessageExists):
		return apperr.Conflict("message already exists", err)
	case errors.Is(err, domainmessaging.ErrContentLength):
		return apperr.Field("content", "content", err)
	case errors.Is(err, domainmessaging.ErrInvalidMessageType):
		return apperr.Field("message_type", "msgtype", err)
	case errors.Is(err, domainmessaging.ErrInvalidAttachment):
		return apperr.Field("attachments", "attachment", err)
	case errors.Is(err, domainmessaging.ErrReplyOutsideThread):
		return apperr.Field("reply_to", "same_conversation", err)
	case errors.Is(err, domainmessaging.ErrIDRequired),
		errors.Is(err, domainmessaging.ErrParticipantsCount):
		return apperr.Field("id", "required", err)
	case errors.Is(err, domainmessaging.ErrNotSender):
		return apperr.Forbidden("only the sender may edit a message", err)
	default:
		return apperr.Internal(err)
	}
}
