package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"campuschat/internal/domain/entity"
	"campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// TokenFunc returns the current bearer token. It is consulted on every
// request and every connect attempt so a refreshed token is always used.
type TokenFunc func(ctx context.Context) (string, error)

// APIClient is the REST collaborator for the chat engine: user search,
// room creation, history pages and sends.
type APIClient struct {
	baseURL string
	token   TokenFunc
	http    *http.Client
}

func NewAPIClient(baseURL string, token TokenFunc) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type createRoomRequest struct {
	Name           string   `json:"name"`
	IsGroup        bool     `json:"isGroup"`
	ParticipantIDs []string `json:"participantIds"`
}

type createRoomResponse struct {
	ID string `json:"id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (c *APIClient) SearchUsers(ctx context.Context, search string) ([]entity.User, error) {
	path := "/chat/chat-users?search=" + url.QueryEscape(search)
	var users []entity.User
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *APIClient) CreateRoom(ctx context.Context, name string, isGroup bool, participantIDs []string) (string, error) {
	req := createRoomRequest{
		Name:           name,
		IsGroup:        isGroup,
		ParticipantIDs: participantIDs,
	}
	var res createRoomResponse
	if err := c.do(ctx, http.MethodPost, "/chat/room", req, &res); err != nil {
		return "", err
	}
	if res.ID == "" {
		return "", errors.Internal("Room creation returned no id", nil)
	}
	return res.ID, nil
}

func (c *APIClient) GetMessages(ctx context.Context, roomID string, page, pageSize int) ([]entity.Message, error) {
	path := fmt.Sprintf("/chat/room/%s/messages?page=%d&pageSize=%d",
		url.PathEscape(roomID), page, pageSize)
	var messages []entity.Message
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (c *APIClient) SendMessage(ctx context.Context, roomID, content string) error {
	path := "/chat/send?roomId=" + url.QueryEscape(roomID)
	return c.do(ctx, http.MethodPost, path, sendMessageRequest{Content: content}, nil)
}

// envelope mirrors the server's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *envelopeError  `json:"error,omitempty"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Internal("Failed to encode request", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return errors.Internal("Failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.token(ctx)
	if err != nil {
		return errors.Unauthorized("Failed to obtain credential", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		logger.Warn("chat api: %s %s failed: %v", method, path, err)
		return errors.Internal("Request failed", err)
	}
	defer res.Body.Close()

	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		if res.StatusCode == http.StatusNotFound {
			return errors.NotFound("Resource", err)
		}
		return errors.Internal("Failed to decode response", err)
	}

	if !env.Success {
		code := "INTERNAL_ERROR"
		message := "Request failed"
		if env.Error != nil {
			code = env.Error.Code
			message = env.Error.Message
		}
		return errors.New(code, message, res.StatusCode, nil)
	}

	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Internal("Failed to decode response data", err)
		}
	}
	return nil
}
