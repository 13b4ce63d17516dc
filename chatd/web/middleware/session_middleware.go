package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeti47/cryochat/chatd/sessions"
	"github.com/yeti47/cryochat/core/ccc/logging"
)

// UserIDKey is the gin context key RequireSession stores the user id under
const UserIDKey = "userID"

// ActiveChecker reports whether userID holds unlocked keys and a live password
type ActiveChecker interface {
	Active(userID string) bool
}

type SessionMiddleware struct {
	logger               logging.Logger
	session              ActiveChecker
	identityStoreFactory sessions.IdentityStoreFactory
}

func NewSessionMiddleware(logger logging.Logger, session ActiveChecker, identityStoreFactory sessions.IdentityStoreFactory) *SessionMiddleware {
	if logger == nil {
		logger = logging.NopLogger
	}

	return &SessionMiddleware{
		logger:               logger,
		session:              session,
		identityStoreFactory: identityStoreFactory,
	}
}

// RequireSession rejects requests without an identity cookie or whose
// session password expired. Checking an expired session clears its keys.
func (m *SessionMiddleware) RequireSession(c *gin.Context) {
	identity := m.identityStoreFactory(c)
	userID, err := identity.GetUserID()
	if err != nil {
		m.logger.Debug("Request without identity")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	if !m.session.Active(userID) {
		m.logger.Info("Session expired, password required", "user", userID)
		if err := identity.Clear(); err != nil {
			m.logger.Warn("Failed to clear session cookie", "error", err)
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session expired, sign in again"})
		return
	}

	c.Set(UserIDKey, userID)
	c.Next()
}
