package router

import (
	"github.com/labstack/echo/v4"

	"campuschat/internal/adapter/api/handler"
	"campuschat/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding the live channel)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	chatGroup := e.Group("/chat")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.GET("/chat-users", chatHandler.SearchChatUsers)
	chatGroup.POST("/room", chatHandler.CreateRoom)
	chatGroup.GET("/room/:roomId/messages", chatHandler.GetRoomMessages)
	chatGroup.POST("/send", chatHandler.SendMessage)
}
