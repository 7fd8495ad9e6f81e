package routes

import (
	"ridepool/internal/handlers"

	"github.com/gin-gonic/gin"
)

// SetupChatRoutes sets up routes for chat history and the live socket
func SetupChatRoutes(r *gin.RouterGroup, chatHandler *handlers.ChatHandler, auth gin.HandlerFunc) {
	chat := r.Group("/chat")
	chat.Use(auth)
	{
		chat.GET("/conversations", chatHandler.GetConversations)
		chat.GET("/messages/:conversationId", chatHandler.GetMessages)

		// Live connection to the conversation with another user
		chat.GET("/ws/:userId", chatHandler.HandleWebSocket)
	}
}
