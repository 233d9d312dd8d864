package ginserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"marketchat/internal/app/devchat"
	"marketchat/internal/app/dto"
	"marketchat/internal/domain/chat"
)

// ChatHTTP exposes the conversation endpoints polled by the client.
type ChatHTTP interface {
	ListConversations(c *gin.Context)
	GetConversation(c *gin.Context)
	SendMessage(c *gin.Context)
	UnreadCount(c *gin.Context)
}

// ChatService is the subset of devchat.Service the handlers need.
type ChatService interface {
	Conversations(ctx context.Context, userID string) ([]chat.Conversation, error)
	Open(ctx context.Context, userID, conversationID string) ([]chat.Message, chat.OtherUser, error)
	Send(ctx context.Context, sender, adID, receiverID, content string) (chat.Message, error)
	UnreadTotal(ctx context.Context, userID string) (int, error)
}

// ChatHandler bridges HTTP with the conversation service.
type ChatHandler struct {
	Service ChatService
	Logger  *slog.Logger
}

// ListConversations returns the current user's conversations.
func (h ChatHandler) ListConversations(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	convs, err := h.Service.Conversations(c.Request.Context(), p.ID)
	if err != nil {
		h.respondError(c, err, "list conversations", "user_id", p.ID)
		return
	}
	out := dto.ConversationList{Conversations: make([]dto.Conversation, 0, len(convs))}
	for _, conv := range convs {
		out.Conversations = append(out.Conversations, dto.NewConversation(conv))
	}
	c.JSON(http.StatusOK, out)
}

// GetConversation returns the thread and marks it read for the caller.
func (h ChatHandler) GetConversation(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return
	}
	msgs, other, err := h.Service.Open(c.Request.Context(), p.ID, conversationID)
	if err != nil {
		h.respondError(c, err, "load conversation", "conversation_id", conversationID, "user_id", p.ID)
		return
	}
	otherDTO := dto.NewOtherUser(other)
	out := dto.Thread{Messages: make([]dto.ChatMessage, 0, len(msgs)), OtherUser: &otherDTO}
	for _, m := range msgs {
		out.Messages = append(out.Messages, dto.NewChatMessage(m))
	}
	c.JSON(http.StatusOK, out)
}

// SendMessage posts a message, opening the conversation on first contact.
func (h ChatHandler) SendMessage(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	msg, err := h.Service.Send(c.Request.Context(), p.ID, req.AdID, req.ReceiverID, req.Content)
	if err != nil {
		h.respondError(c, err, "send message", "ad_id", req.AdID, "user_id", p.ID)
		return
	}
	c.JSON(http.StatusCreated, dto.NewChatMessage(msg))
}

// UnreadCount returns the caller's total unread messages.
func (h ChatHandler) UnreadCount(c *gin.Context) {
	p, ok := requirePrincipal(c)
	if !ok {
		return
	}
	total, err := h.Service.UnreadTotal(c.Request.Context(), p.ID)
	if err != nil {
		h.respondError(c, err, "unread count", "user_id", p.ID)
		return
	}
	c.JSON(http.StatusOK, dto.UnreadCount{UnreadCount: total})
}

func (h ChatHandler) respondError(c *gin.Context, err error, action string, attrs ...any) {
	switch {
	case errors.Is(err, chat.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	case errors.Is(err, chat.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return
	case errors.Is(err, chat.ErrEmptyContent), errors.Is(err, chat.ErrSelfConversation), errors.Is(err, devchat.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Logger != nil {
		h.Logger.Error("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "chat unavailable"})
}

var _ ChatHTTP = (*ChatHandler)(nil)
