package entity

import "time"

type Message struct {
	ID       string    `json:"id"`
	RoomID   string    `json:"roomId"`
	SenderID string    `json:"senderId"`
	Content  string    `json:"content"`
	SentAt   time.Time `json:"sentAt"`
	SeenBy   []string  `json:"seenBy,omitempty"`

	// IsOwnMessage is derived client-side from SenderID and is never
	// trusted from the wire.
	IsOwnMessage bool `json:"isOwnMessage"`
}
