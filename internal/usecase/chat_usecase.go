package usecase

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"campuschat/internal/domain/entity"
	"campuschat/internal/domain/repository"
	ws "campuschat/internal/infrastructure/websocket"
	"campuschat/pkg/errors"
)

type ChatUseCase struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
	hub      *ws.Hub
}

func NewChatUseCase(
	chatRepo repository.ChatRepository,
	userRepo repository.UserRepository,
	hub *ws.Hub,
) *ChatUseCase {
	uc := &ChatUseCase{
		chatRepo: chatRepo,
		userRepo: userRepo,
		hub:      hub,
	}
	hub.Authorize = uc.AuthorizeRoom
	return uc
}

type CreateRoomInput struct {
	Name           string
	IsGroup        bool
	ParticipantIDs []string
}

// SearchChatUsers returns users matching the search text, decorated
// with the caller's shared direct-room id and live presence.
func (uc *ChatUseCase) SearchChatUsers(ctx context.Context, selfID, search string) ([]*entity.User, error) {
	users, err := uc.userRepo.Search(ctx, search, 20)
	if err != nil {
		log.Printf("SearchChatUsers Error: Failed to search users: %v", err)
		return nil, err
	}

	results := make([]*entity.User, 0, len(users))
	for _, user := range users {
		if user.ID == selfID {
			continue
		}

		room, err := uc.chatRepo.GetDirectRoom(ctx, selfID, user.ID)
		if err == nil && room != nil {
			user.ChatRoomID = room.ID
		} else if err != nil && !errors.Is(err, "NOT_FOUND") {
			log.Printf("SearchChatUsers Error: Failed to resolve room for user %s: %v", user.ID, err)
			return nil, err
		}

		user.IsOnline = uc.hub.IsOnline(user.ID)
		user.PasswordHash = ""
		results = append(results, user)
	}
	return results, nil
}

// CreateRoom creates a room lazily on first message-intent. For a
// direct pair an existing room is reused rather than duplicated.
func (uc *ChatUseCase) CreateRoom(ctx context.Context, creatorID string, input CreateRoomInput) (*entity.Room, error) {
	if len(input.ParticipantIDs) == 0 {
		return nil, errors.BadRequest("At least one participant is required", nil)
	}
	for _, id := range input.ParticipantIDs {
		if id == creatorID {
			return nil, errors.BadRequest("You cannot create a room with yourself", nil)
		}
		if _, err := uc.userRepo.GetByID(ctx, id); err != nil {
			log.Printf("CreateRoom Error: Participant %s not found: %v", id, err)
			return nil, errors.NotFound("Participant", err)
		}
	}

	if !input.IsGroup && len(input.ParticipantIDs) == 1 {
		existing, err := uc.chatRepo.GetDirectRoom(ctx, creatorID, input.ParticipantIDs[0])
		if err == nil && existing != nil {
			return existing, nil
		}
		if err != nil && !errors.Is(err, "NOT_FOUND") {
			log.Printf("CreateRoom Error: Failed to search for existing room: %v", err)
			return nil, err
		}
	}

	room := &entity.Room{
		ID:             uuid.NewString(),
		Name:           input.Name,
		IsGroup:        input.IsGroup,
		ParticipantIDs: append([]string{creatorID}, input.ParticipantIDs...),
		CreatedAt:      time.Now().UTC(),
	}
	if err := uc.chatRepo.CreateRoom(ctx, room); err != nil {
		log.Printf("CreateRoom Error: Failed to create room: %v", err)
		return nil, err
	}
	return room, nil
}

// GetRoomMessages returns one recency-ordered page of history.
func (uc *ChatUseCase) GetRoomMessages(ctx context.Context, userID, roomID string, page, pageSize int) ([]*entity.Message, error) {
	if err := uc.AuthorizeRoom(ctx, userID, roomID); err != nil {
		return nil, err
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	messages, err := uc.chatRepo.GetMessagesByRoom(ctx, roomID, page, pageSize)
	if err != nil {
		log.Printf("GetRoomMessages Error: Failed to load page %d for room %s: %v", page, roomID, err)
		return nil, err
	}

	// Reading a page marks its messages as seen by the reader. A
	// failure here must not fail the read itself.
	for _, message := range messages {
		if message.SenderID == userID || containsID(message.SeenBy, userID) {
			continue
		}
		if err := uc.chatRepo.MarkMessageSeen(ctx, message.ID, userID); err != nil {
			log.Printf("GetRoomMessages Error: Failed to mark message %s seen: %v", message.ID, err)
			continue
		}
		message.SeenBy = append(message.SeenBy, userID)
	}
	return messages, nil
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// SendMessage persists the message and fans it out to room members
// over the live channel. Delivery to the sender happens through the
// same push; the REST response carries no message body.
func (uc *ChatUseCase) SendMessage(ctx context.Context, senderID, roomID, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.BadRequest("Message content cannot be empty", nil)
	}
	if err := uc.AuthorizeRoom(ctx, senderID, roomID); err != nil {
		return err
	}

	message := &entity.Message{
		ID:       uuid.NewString(),
		RoomID:   roomID,
		SenderID: senderID,
		Content:  content,
		SentAt:   time.Now().UTC(),
	}
	if err := uc.chatRepo.CreateMessage(ctx, message); err != nil {
		log.Printf("SendMessage Error: Failed to persist message in room %s: %v", roomID, err)
		return err
	}

	frame, err := ws.NewFrame(ws.FrameTypeEvent, "", ws.EventReceiveMessage, message)
	if err != nil {
		log.Printf("SendMessage Error: Failed to build push frame: %v", err)
		return errors.Internal("Failed to deliver message", err)
	}
	uc.hub.BroadcastToRoom(roomID, frame)
	return nil
}

// AuthorizeRoom rejects access to rooms the user is not a member of.
func (uc *ChatUseCase) AuthorizeRoom(ctx context.Context, userID, roomID string) error {
	room, err := uc.chatRepo.GetRoomByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(userID) {
		return errors.Unauthorized("You are not a participant of this room", nil)
	}
	return nil
}
