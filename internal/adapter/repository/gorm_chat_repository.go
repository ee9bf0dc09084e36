package repository

import (
	"context"

	"gorm.io/gorm"

	"campuschat/internal/domain/entity"
	"campuschat/internal/domain/repository"
	"campuschat/pkg/errors"
)

type gormChatRepository struct {
	db *gorm.DB
}

func NewGormChatRepository(db *gorm.DB) repository.ChatRepository {
	return &gormChatRepository{db: db}
}

func (r *gormChatRepository) CreateRoom(ctx context.Context, room *entity.Room) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record := roomRecord{
			ID:        room.ID,
			Name:      room.Name,
			IsGroup:   room.IsGroup,
			CreatedAt: room.CreatedAt,
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		for _, userID := range room.ParticipantIDs {
			if err := tx.Create(&participantRecord{RoomID: room.ID, UserID: userID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Internal("Failed to create room", err)
	}
	return nil
}

func (r *gormChatRepository) GetRoomByID(ctx context.Context, id string) (*entity.Room, error) {
	var record roomRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("Room", err)
		}
		return nil, errors.Internal("Failed to get room", err)
	}
	return r.roomWithParticipants(ctx, &record)
}

func (r *gormChatRepository) GetDirectRoom(ctx context.Context, userID, otherID string) (*entity.Room, error) {
	var roomIDs []string
	err := r.db.WithContext(ctx).Model(&participantRecord{}).
		Select("room_id").
		Where("user_id IN ?", []string{userID, otherID}).
		Group("room_id").
		Having("COUNT(DISTINCT user_id) = 2").
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, errors.Internal("Failed to search for direct room", err)
	}
	if len(roomIDs) == 0 {
		return nil, errors.NotFound("Room", nil)
	}

	var record roomRecord
	err = r.db.WithContext(ctx).
		Where("id IN ? AND is_group = ?", roomIDs, false).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFound("Room", err)
		}
		return nil, errors.Internal("Failed to search for direct room", err)
	}
	return r.roomWithParticipants(ctx, &record)
}

func (r *gormChatRepository) ListRoomsByUserID(ctx context.Context, userID string) ([]*entity.Room, error) {
	var records []roomRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN participant_records ON participant_records.room_id = room_records.id").
		Where("participant_records.user_id = ?", userID).
		Order("room_records.created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, errors.Internal("Failed to list rooms", err)
	}

	rooms := make([]*entity.Room, 0, len(records))
	for i := range records {
		room, err := r.roomWithParticipants(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, nil
}

func (r *gormChatRepository) CreateMessage(ctx context.Context, message *entity.Message) error {
	record := messageRecord{
		ID:       message.ID,
		RoomID:   message.RoomID,
		SenderID: message.SenderID,
		Content:  message.Content,
		SentAt:   message.SentAt,
		SeenBy:   encodeSeenBy(message.SeenBy),
	}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *gormChatRepository) GetMessagesByRoom(ctx context.Context, roomID string, page, pageSize int) ([]*entity.Message, error) {
	if page < 1 {
		page = 1
	}

	var records []messageRecord
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("sent_at DESC, id DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, errors.Internal("Failed to load messages", err)
	}

	messages := make([]*entity.Message, 0, len(records))
	for i := range records {
		messages = append(messages, records[i].toEntity())
	}
	return messages, nil
}

func (r *gormChatRepository) MarkMessageSeen(ctx context.Context, messageID, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record messageRecord
		if err := tx.First(&record, "id = ?", messageID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errors.NotFound("Message", err)
			}
			return errors.Internal("Failed to load message", err)
		}

		seen := record.seenByList()
		for _, id := range seen {
			if id == userID {
				return nil
			}
		}
		seen = append(seen, userID)

		return tx.Model(&messageRecord{}).Where("id = ?", messageID).
			Update("seen_by", encodeSeenBy(seen)).Error
	})
}

func (r *gormChatRepository) roomWithParticipants(ctx context.Context, record *roomRecord) (*entity.Room, error) {
	var participantIDs []string
	err := r.db.WithContext(ctx).Model(&participantRecord{}).
		Where("room_id = ?", record.ID).
		Pluck("user_id", &participantIDs).Error
	if err != nil {
		return nil, errors.Internal("Failed to load room participants", err)
	}

	return &entity.Room{
		ID:             record.ID,
		Name:           record.Name,
		IsGroup:        record.IsGroup,
		ParticipantIDs: participantIDs,
		CreatedAt:      record.CreatedAt,
	}, nil
}

func (record *messageRecord) toEntity() *entity.Message {
	return &entity.Message{
		ID:       record.ID,
		RoomID:   record.RoomID,
		SenderID: record.SenderID,
		Content:  record.Content,
		SentAt:   record.SentAt,
		SeenBy:   record.seenByList(),
	}
}
