package entity

import "time"

type User struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Profile      string     `json:"profile,omitempty"` // avatar URI
	ChatRoomID   string     `json:"chatRoomId,omitempty"`
	IsOnline     bool       `json:"isOnline"`
	LastSeen     *time.Time `json:"lastSeen,omitempty"`
	PasswordHash string     `json:"-"`
}
