package repository

import (
	"context"

	"campuschat/internal/domain/entity"
)

type ChatRepository interface {
	CreateRoom(ctx context.Context, room *entity.Room) error
	GetRoomByID(ctx context.Context, id string) (*entity.Room, error)
	// GetDirectRoom returns the existing non-group room shared by exactly
	// the two given users, or NOT_FOUND.
	GetDirectRoom(ctx context.Context, userID, otherID string) (*entity.Room, error)
	ListRoomsByUserID(ctx context.Context, userID string) ([]*entity.Room, error)

	CreateMessage(ctx context.Context, message *entity.Message) error
	// GetMessagesByRoom returns one page of messages ordered newest first.
	// Page numbering starts at 1.
	GetMessagesByRoom(ctx context.Context, roomID string, page, pageSize int) ([]*entity.Message, error)
	MarkMessageSeen(ctx context.Context, messageID, userID string) error
}
