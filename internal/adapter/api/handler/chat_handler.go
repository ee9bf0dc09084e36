package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"campuschat/internal/usecase"
	"campuschat/pkg/errors"
	"campuschat/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type createRoomRequest struct {
	Name           string   `json:"name"`
	IsGroup        bool     `json:"isGroup"`
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1"`
}

type createRoomResponse struct {
	ID string `json:"id"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

// SearchChatUsers handles GET /chat/chat-users?search=
func (h *ChatHandler) SearchChatUsers(c echo.Context) error {
	userID := c.Get("uid").(string)

	users, err := h.chatUseCase.SearchChatUsers(c.Request().Context(), userID, c.QueryParam("search"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, users)
}

// CreateRoom handles POST /chat/room
func (h *ChatHandler) CreateRoom(c echo.Context) error {
	var req createRoomRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	room, err := h.chatUseCase.CreateRoom(c.Request().Context(), userID, usecase.CreateRoomInput{
		Name:           req.Name,
		IsGroup:        req.IsGroup,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, createRoomResponse{ID: room.ID})
}

// GetRoomMessages handles GET /chat/room/:roomId/messages?page=&pageSize=
func (h *ChatHandler) GetRoomMessages(c echo.Context) error {
	userID := c.Get("uid").(string)
	roomID := c.Param("roomId")

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page <= 0 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.QueryParam("pageSize"))

	messages, err := h.chatUseCase.GetRoomMessages(c.Request().Context(), userID, roomID, page, pageSize)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

// SendMessage handles POST /chat/send?roomId=
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)
	roomID := c.QueryParam("roomId")
	if roomID == "" {
		return response.Error(c, errors.BadRequest("roomId is required", nil))
	}

	if err := h.chatUseCase.SendMessage(c.Request().Context(), userID, roomID, req.Content); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, nil)
}
