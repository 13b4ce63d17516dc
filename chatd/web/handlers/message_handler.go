package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/chat"
	"github.com/yeti47/cryochat/core/relay"
)

type MessageHandler struct {
	logger  logging.Logger
	session *chat.Session
}

func NewMessageHandler(logger logging.Logger, session *chat.Session) *MessageHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &MessageHandler{
		logger:  logger,
		session: session,
	}
}

type SendMessageRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	Content    string `json:"content" binding:"required"`
}

type SendMessageResponse struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
}

type TypingRequest struct {
	PeerID   string `json:"peer_id" binding:"required"`
	IsTyping bool   `json:"is_typing"`
}

// GetHistory handles GET /api/messages/:peerId
func (h *MessageHandler) GetHistory(c *gin.Context) {
	history, err := h.session.History(c.Request.Context(), c.Param("peerId"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": history})
}

// Send handles POST /api/messages
func (h *MessageHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Receiver and content are required"})
		return
	}

	msg, err := h.session.Send(c.Request.Context(), req.ReceiverID, req.Content)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, SendMessageResponse{
		ID:        msg.ID,
		Timestamp: msg.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// MarkRead handles POST /api/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	if err := h.session.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Typing handles POST /api/typing
func (h *MessageHandler) Typing(c *gin.Context) {
	var req TypingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Peer is required"})
		return
	}

	if err := h.session.Typing(c.Request.Context(), req.PeerID, req.IsTyping); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetEvents handles GET /api/events. It returns the relay events received
// since the previous call.
func (h *MessageHandler) GetEvents(c *gin.Context) {
	events := h.session.Events()
	if events == nil {
		events = []relay.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
