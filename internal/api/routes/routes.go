package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/menycars/copiloto/internal/api/handlers"
	"github.com/menycars/copiloto/internal/api/middleware"
)

type Deps struct {
	Webhook *handlers.WebhookHandler
	Chat    *handlers.ChatHandler
	Lead    *handlers.LeadHandler
	Vehicle *handlers.VehicleHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Gateway-facing, authenticated by the verify token handshake
	r.GET("/webhook/whatsapp", d.Webhook.Verify)
	r.POST("/webhook/whatsapp", d.Webhook.Receive)

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.GET("/chats/:session_id", d.Chat.GetSession)
	auth.GET("/chats/:session_id/history", d.Chat.History)
	auth.GET("/conversations/search", d.Chat.Search)

	auth.GET("/leads/:id", d.Lead.Get)
	auth.GET("/leads/:id/tasks", d.Lead.Tasks)

	auth.GET("/vehicles", d.Vehicle.List)
	auth.GET("/vehicles/:id", d.Vehicle.Get)
	auth.POST("/vehicles/:id/photos", d.Vehicle.UploadPhoto)

	// WebSocket
	auth.GET("/ws/chats/:session_id", d.Chat.WatchWS)
}
