package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeti47/cryochat/chatd/web/handlers"
	"github.com/yeti47/cryochat/chatd/web/middleware"
)

type Handlers struct {
	Auth     *handlers.AuthHandler
	Messages *handlers.MessageHandler
	Users    *handlers.UserHandler
	Session  *middleware.SessionMiddleware
}

// SetupRoutes configures the HTTP routes
func SetupRoutes(router *gin.Engine, h Handlers) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", h.Auth.SignUp)
		authGroup.POST("/signin", h.Auth.SignIn)
		authGroup.POST("/signout", h.Auth.SignOut)
	}

	api := router.Group("/api")
	api.Use(h.Session.RequireSession)
	{
		api.GET("/messages/:peerId", h.Messages.GetHistory)
		api.POST("/messages", h.Messages.Send)
		api.POST("/messages/:id/read", h.Messages.MarkRead)
		api.POST("/typing", h.Messages.Typing)
		api.GET("/events", h.Messages.GetEvents)
		api.GET("/users/search", h.Users.Search)
		api.POST("/password", h.Auth.ChangePassword)
	}

	// Health check endpoint (no auth required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "chatd",
		})
	})
}
