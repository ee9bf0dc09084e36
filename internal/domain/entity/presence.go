package entity

import "time"

// PresenceEvent is pushed over the live channel when a user's
// online status changes. At orders events; a later event wins.
type PresenceEvent struct {
	UserID   string     `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
	At       time.Time  `json:"at"`
}
