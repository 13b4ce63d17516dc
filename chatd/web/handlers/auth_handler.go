package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yeti47/cryochat/chatd/sessions"
	"github.com/yeti47/cryochat/chatd/web/middleware"
	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/chat"
	"github.com/yeti47/cryochat/core/users"
)

type AuthHandler struct {
	logger               logging.Logger
	session              *chat.Session
	users                users.UserRepository
	identityStoreFactory sessions.IdentityStoreFactory
}

func NewAuthHandler(logger logging.Logger, session *chat.Session, userRepo users.UserRepository, identityStoreFactory sessions.IdentityStoreFactory) *AuthHandler {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &AuthHandler{
		logger:               logger,
		session:              session,
		users:                userRepo,
		identityStoreFactory: identityStoreFactory,
	}
}

type SignUpRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"display_name"`
}

type SignInRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// SignUp handles POST /auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req SignUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, password and username are required"})
		return
	}

	id := chat.Identity{UserID: uuid.NewString(), Email: req.Email}
	if err := h.session.SignUp(c.Request.Context(), id, req.Password, req.Username, req.DisplayName); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.startIdentity(c, id.UserID, http.StatusCreated)
}

// SignIn handles POST /auth/signin
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	user, err := h.users.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if user == nil {
		h.logger.Info("Sign-in for unknown username")
		writeError(c, h.logger, chat.ErrUnknownUser)
		return
	}

	id := chat.Identity{UserID: user.ID, Email: user.Email}
	if err := h.session.SignIn(c.Request.Context(), id, req.Password); err != nil {
		h.logger.Warn("Failed sign-in attempt", "user", user.ID, "error", err)
		writeError(c, h.logger, err)
		return
	}

	h.startIdentity(c, id.UserID, http.StatusOK)
}

func (h *AuthHandler) startIdentity(c *gin.Context, userID string, status int) {
	if err := h.identityStoreFactory(c).SetUserID(userID); err != nil {
		h.logger.Error("Failed to set identity in session", "error", err)
		h.session.SignOut(c.Request.Context())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil || user == nil {
		c.JSON(status, gin.H{"id": userID})
		return
	}
	c.JSON(status, user.Profile())
}

// SignOut handles POST /auth/signout
func (h *AuthHandler) SignOut(c *gin.Context) {
	h.session.SignOut(c.Request.Context())
	if err := h.identityStoreFactory(c).Clear(); err != nil {
		// Don't block sign-out, just log the error.
		h.logger.Error("Failed to clear identity from session", "error", err)
	}
	c.Status(http.StatusNoContent)
}

// ChangePassword handles POST /api/password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Old and new password are required"})
		return
	}

	if err := h.session.ChangePassword(c.Request.Context(), req.OldPassword, req.NewPassword); err != nil {
		writeError(c, h.logger, err)
		return
	}

	h.logger.Info("Password changed", "user", c.GetString(middleware.UserIDKey))
	c.Status(http.StatusNoContent)
}
