package router

import (
	"github.com/labstack/echo/v4"

	"campuschat/internal/adapter/api/handler"
)

// SetupWebSocketRouter sets up the live channel route. Auth is handled
// inside the handler since the handshake may carry the token in a
// query parameter.
func SetupWebSocketRouter(e *echo.Echo, wsHandler *handler.WebSocketHandler) {
	e.GET("/chatHub", wsHandler.HandleWebSocket)
}
