package sessions

import (
	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
)

// IdentityStoreFactory is a function that creates an IdentityStore for a given request context.
type IdentityStoreFactory func(c *gin.Context) IdentityStore

// NewIdentityStoreFactory creates a new IdentityStoreFactory.
func NewIdentityStoreFactory(store sessions.Store) IdentityStoreFactory {
	return func(c *gin.Context) IdentityStore {
		return NewGorillaIdentityStore(store, c)
	}
}
