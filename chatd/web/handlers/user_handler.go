package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/chat"
)

// UserHandler handles user lookups
type UserHandler struct {
	logger  logging.Logger
	session *chat.Session
}

// NewUserHandler creates a new user handler
func NewUserHandler(logger logging.Logger, session *chat.Session) *UserHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &UserHandler{
		logger:  logger,
		session: session,
	}
}

// Search handles GET /api/users/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	profiles, err := h.session.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": profiles})
}
