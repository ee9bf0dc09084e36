package repository

import (
	"encoding/json"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type userRecord struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string `gorm:"uniqueIndex"`
	Profile      string
	PasswordHash string
	LastSeen     *time.Time
}

type roomRecord struct {
	ID        string `gorm:"primaryKey"`
	Name      string
	IsGroup   bool
	CreatedAt time.Time
}

type participantRecord struct {
	RoomID string `gorm:"primaryKey;index"`
	UserID string `gorm:"primaryKey;index"`
}

type messageRecord struct {
	ID       string `gorm:"primaryKey"`
	RoomID   string `gorm:"index:idx_messages_room_sent"`
	SenderID string
	Content  string
	SentAt   time.Time `gorm:"index:idx_messages_room_sent"`
	SeenBy   string    // JSON-encoded list of user ids
}

func (m *messageRecord) seenByList() []string {
	if m.SeenBy == "" {
		return nil
	}
	var seen []string
	if err := json.Unmarshal([]byte(m.SeenBy), &seen); err != nil {
		return nil
	}
	return seen
}

func encodeSeenBy(seen []string) string {
	if len(seen) == 0 {
		return ""
	}
	raw, err := json.Marshal(seen)
	if err != nil {
		return ""
	}
	return string(raw)
}

// Open opens the sqlite database and migrates the chat schema.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&userRecord{}, &roomRecord{}, &participantRecord{}, &messageRecord{}); err != nil {
		return nil, err
	}
	return db, nil
}
