package router

import (
	"github.com/labstack/echo/v4"

	"campuschat/internal/adapter/api/handler"
	"campuschat/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	authHandler *handler.AuthHandler,
	chatHandler *handler.ChatHandler,
	wsHandler *handler.WebSocketHandler,
	authMiddleware *middleware.AuthMiddleware,
) {
	SetupAuthRouter(e, authHandler)
	SetupChatRouter(e, chatHandler, authMiddleware)
	SetupWebSocketRouter(e, wsHandler)
	SetupHealthRouter(e)
}
