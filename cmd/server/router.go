package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thereayou/whisper/internal/config"
	"github.com/thereayou/whisper/internal/handlers"
	"github.com/thereayou/whisper/internal/middleware"
)

type routeHandlers struct {
	auth      *handlers.AuthHandler
	users     *handlers.UserHandler
	chats     *handlers.ChatHandler
	websocket *handlers.WebSocketHandler
	resolver  middleware.TokenResolver
}

func APIEndpoints(r *gin.Engine, cfg *config.Config, h routeHandlers) {
	r.Use(middleware.CORS(cfg.CORSOrigin))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.AuthMiddleware(h.resolver)

	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.auth.SignUp)
		auth.POST("/login", h.auth.Login)
		auth.POST("/refresh", h.auth.Refresh)
		auth.POST("/logout", requireAuth, h.auth.Logout)
	}

	users := r.Group("/users", requireAuth)
	{
		users.GET("", h.users.Search)
		users.GET("/me", h.users.GetMe)
		users.PATCH("/me", h.users.UpdateMe)
		users.DELETE("/me", h.users.DeleteMe)
		users.GET("/:id/relationship", h.users.Relationship)
	}

	chats := r.Group("/chats", requireAuth)
	{
		chats.GET("", h.chats.ListConversations)
		chats.GET("/requests", h.chats.ListRequests)
		chats.POST("/requests/send", h.chats.SendRequest)
		chats.PUT("/requests/receive/:id", h.chats.RespondToRequest)
		chats.GET("/:id/messages", h.chats.GetMessages)
		chats.POST("/:id/messages", h.chats.PostMessage)
		chats.DELETE("/:id", h.chats.DeleteChat)
	}

	r.GET("/ws", middleware.WSAuthMiddleware(h.resolver), h.websocket.HandleWebSocket)
}
