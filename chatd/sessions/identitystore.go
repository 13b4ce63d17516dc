package sessions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

const (
	sessionName = "cryochat-session"
	userIDKey   = "user_id"
)

var ErrNoIdentity = errors.New("no identity in session")

// IdentityStore keeps the signed-in user id in the session cookie.
// Key material never goes into the cookie.
type IdentityStore interface {
	GetUserID() (string, error)
	SetUserID(userID string) error
	Clear() error
}

// GorillaIdentityStore implements IdentityStore using gorilla sessions
type GorillaIdentityStore struct {
	store   sessions.Store
	request *gin.Context
}

// NewGorillaIdentityStore creates a new GorillaIdentityStore for a specific request
func NewGorillaIdentityStore(store sessions.Store, c *gin.Context) IdentityStore {
	return &GorillaIdentityStore{
		store:   store,
		request: c,
	}
}

// GetUserID retrieves the user id from the session
func (s *GorillaIdentityStore) GetUserID() (string, error) {
	session, err := s.store.Get(s.request.Request, sessionName)
	if err != nil {
		return "", err
	}

	value, ok := session.Values[userIDKey]
	if !ok {
		return "", ErrNoIdentity
	}

	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", errors.New("invalid user id format in session")
	}

	return userID, nil
}

// SetUserID sets the user id in the session
func (s *GorillaIdentityStore) SetUserID(userID string) error {
	session, err := s.store.Get(s.request.Request, sessionName)
	if err != nil {
		return err
	}

	session.Values[userIDKey] = userID
	return session.Save(s.request.Request, s.request.Writer)
}

// Clear removes the user id and expires the cookie
func (s *GorillaIdentityStore) Clear() error {
	session, err := s.store.Get(s.request.Request, sessionName)
	if err != nil {
		return err
	}

	delete(session.Values, userIDKey)
	session.Options.MaxAge = -1
	return session.Save(s.request.Request, s.request.Writer)
}

// NewCookieStore creates the cookie store for identity sessions. Cookies are
// HTTP only and same-site strict; secure is set when serving over TLS.
func NewCookieStore(key []byte, secure bool) *sessions.CookieStore {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   12 * 60 * 60,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	return store
}
