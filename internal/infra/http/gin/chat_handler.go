package ginserver

import (
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"marketplace/internal/app/commands"
	"marketplace/internal/app/dto"
	messagingapp "marketplace/internal/app/handlers/messaging"
	"marketplace/internal/app/queries"
)

// ChatHTTP exposes conversation and message endpoints.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	GetOrCreateConversation(c *gin.Context)
	OpenConversation(c *gin.Context)
	ArchiveConversation(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkConversationRead(c *gin.Context)
	SendDirectMessage(c *gin.Context)
	UnreadCount(c *gin.Context)
	SearchMessages(c *gin.Context)
	EditMessage(c *gin.Context)
	MarkMessageRead(c *gin.Context)
}

// ChatHandler translates HTTP requests into messaging commands and queries.
type ChatHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	list, err := queries.Ask[messagingapp.ListConversationsQuery, dto.ConversationList](c.Request.Context(), h.Queries,
		messagingapp.ListConversationsQuery{RequesterID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err, "op", "conversations.list", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h ChatHandler) GetOrCreateConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		ParticipantID string `json:"participant_id"`
		ServiceID     string `json:"service_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	conv, err := commands.Dispatch[messagingapp.GetOrCreateConversationCommand, dto.Conversation](c.Request.Context(), h.Commands,
		messagingapp.GetOrCreateConversationCommand{
			RequesterID:   p.ID,
			ParticipantID: strings.TrimSpace(req.ParticipantID),
			ServiceID:     strings.TrimSpace(req.ServiceID),
			IdemKey:       c.GetHeader(idempotencyHeader),
		})
	if err != nil {
		respondError(c, h.Logger, err, "op", "conversations.get_or_create", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h ChatHandler) OpenConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conv, err := commands.Dispatch[messagingapp.OpenConversationCommand, dto.Conversation](c.Request.Context(), h.Commands,
		messagingapp.OpenConversationCommand{RequesterID: p.ID, ConversationID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err, "op", "conversations.open", "conversation_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h ChatHandler) ArchiveConversation(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	conv, err := commands.Dispatch[messagingapp.ArchiveConversationCommand, dto.Conversation](c.Request.Context(), h.Commands,
		messagingapp.ArchiveConversationCommand{RequesterID: p.ID, ConversationID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err, "op", "conversations.archive", "conversation_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h ChatHandler) ListMessages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	page, ok := parseIntQuery(c, "page", 1)
	if !ok {
		return
	}
	limit, ok := parseIntQuery(c, "limit", 0)
	if !ok {
		return
	}
	result, err := commands.Dispatch[messagingapp.ListMessagesCommand, dto.MessagePage](c.Request.Context(), h.Commands,
		messagingapp.ListMessagesCommand{RequesterID: p.ID, ConversationID: c.Param("id"), Page: page, Limit: limit})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.list", "conversation_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var input messagingapp.MessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	msg, err := commands.Dispatch[messagingapp.SendMessageCommand, dto.Message](c.Request.Context(), h.Commands,
		messagingapp.SendMessageCommand{
			RequesterID:    p.ID,
			ConversationID: c.Param("id"),
			MessageInput:   input,
			IdemKey:        c.GetHeader(idempotencyHeader),
		})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.send", "conversation_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h ChatHandler) MarkConversationRead(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	receipt, err := commands.Dispatch[messagingapp.MarkConversationReadCommand, dto.ReadReceipt](c.Request.Context(), h.Commands,
		messagingapp.MarkConversationReadCommand{RequesterID: p.ID, ConversationID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err, "op", "conversations.mark_read", "conversation_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h ChatHandler) SendDirectMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		RecipientID string `json:"recipient_id"`
		ServiceID   string `json:"service_id"`
		messagingapp.MessageInput
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	result, err := commands.Dispatch[messagingapp.SendDirectMessageCommand, dto.DirectMessage](c.Request.Context(), h.Commands,
		messagingapp.SendDirectMessageCommand{
			RequesterID:  p.ID,
			RecipientID:  strings.TrimSpace(req.RecipientID),
			ServiceID:    strings.TrimSpace(req.ServiceID),
			MessageInput: req.MessageInput,
			IdemKey:      c.GetHeader(idempotencyHeader),
		})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.send_direct", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h ChatHandler) UnreadCount(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	total, err := queries.Ask[messagingapp.UnreadTotalQuery, dto.UnreadTotal](c.Request.Context(), h.Queries,
		messagingapp.UnreadTotalQuery{RequesterID: p.ID})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.unread_total", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, total)
}

func (h ChatHandler) SearchMessages(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	result, err := queries.Ask[messagingapp.SearchMessagesQuery, dto.MessageSearchResult](c.Request.Context(), h.Queries,
		messagingapp.SearchMessagesQuery{
			RequesterID:    p.ID,
			Query:          c.Query("q"),
			ConversationID: strings.TrimSpace(c.Query("conversation_id")),
		})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.search", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ChatHandler) EditMessage(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	msg, err := commands.Dispatch[messagingapp.EditMessageCommand, dto.Message](c.Request.Context(), h.Commands,
		messagingapp.EditMessageCommand{RequesterID: p.ID, MessageID: c.Param("id"), Content: req.Content})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.edit", "message_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h ChatHandler) MarkMessageRead(c *gin.Context) {
	p, ok := requireAuth(c)
	if !ok {
		return
	}
	msg, err := commands.Dispatch[messagingapp.MarkMessageReadCommand, dto.Message](c.Request.Context(), h.Commands,
		messagingapp.MarkMessageReadCommand{RequesterID: p.ID, MessageID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err, "op", "messages.mark_read", "message_id", c.Param("id"))
		return
	}
	c.JSON(http.StatusOK, msg)
}

var _ ChatHTTP = ChatHandler{}
