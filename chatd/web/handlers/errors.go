package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeti47/cryochat/core/ccc/auth"
	"github.com/yeti47/cryochat/core/ccc/logging"
	"github.com/yeti47/cryochat/core/chat"
	"github.com/yeti47/cryochat/core/encryption"
	"github.com/yeti47/cryochat/core/messages"
	"github.com/yeti47/cryochat/core/security"
	"github.com/yeti47/cryochat/core/users"
)

// writeError maps err onto a status code and JSON body.
// Decryption failures never say whether the password or the data was wrong.
func writeError(c *gin.Context, logger logging.Logger, err error) {
	var rle *auth.RateLimitedError
	if errors.As(err, &rle) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":             "Too many failed attempts",
			"remaining_minutes": rle.RemainingMinutes,
		})
		return
	}

	var perr *encryption.PersistenceError
	if errors.As(err, &perr) {
		if perr.Kind == encryption.PersistencePolicyRejected {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to store these keys"})
			return
		}
		logger.Error("Key storage failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Key storage unavailable, try again"})
		return
	}

	var verr *security.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field, "problems": verr.Problems})
		return
	}

	switch {
	case errors.Is(err, chat.ErrStoredKeysLocked),
		errors.Is(err, chat.ErrUnknownUser),
		encryption.IsDecryptionError(err):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
	case errors.Is(err, chat.ErrNotSignedIn),
		errors.Is(err, encryption.ErrKeyUnavailable):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
	case errors.Is(err, chat.ErrEmptyMessage),
		errors.Is(err, chat.ErrMessageToSelf),
		errors.Is(err, chat.ErrRecipientNoKey),
		errors.Is(err, users.ErrInvalidSearchTerm),
		encryption.IsEncryptionError(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotRecipient):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, messages.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		logger.Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
