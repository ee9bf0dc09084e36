package handler

import (
	"context"
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "campuschat/internal/infrastructure/websocket"
	"campuschat/internal/usecase"
	"campuschat/pkg/errors"
)

type WebSocketHandler struct {
	hub         *ws.Hub
	authUseCase *usecase.AuthUseCase
}

var upgrader = gorillaws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict in production
	},
}

func NewWebSocketHandler(hub *ws.Hub, authUseCase *usecase.AuthUseCase) *WebSocketHandler {
	return &WebSocketHandler{
		hub:         hub,
		authUseCase: authUseCase,
	}
}

// HandleWebSocket upgrades the connection and registers the client.
// The bearer token arrives in the Authorization header or, for clients
// that cannot set headers on the handshake, in access_token.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := bearerToken(c)
	if token == "" {
		return errors.Unauthorized("Authentication required", nil)
	}

	userID, err := h.authUseCase.VerifyToken(c.Request().Context(), token)
	if err != nil {
		return errors.Unauthorized("Invalid or expired token", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := &ws.Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}

	h.hub.Register <- client

	// The request context ends when this handler returns; the pump
	// outlives it.
	go client.ReadPump(context.Background(), h.hub)
	go client.WritePump()

	return nil
}

func bearerToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.QueryParam("access_token")
}
