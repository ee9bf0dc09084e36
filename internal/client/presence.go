package client

import (
	"fmt"
	"sync"
	"time"

	"campuschat/internal/domain/entity"
)

type presenceEntry struct {
	isOnline bool
	lastSeen *time.Time
	at       time.Time
}

// PresenceTracker holds best-effort online/last-seen state per
// counterpart. The only guarantee is that the most recent event wins.
type PresenceTracker struct {
	mu      sync.RWMutex
	entries map[string]presenceEntry
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		entries: make(map[string]presenceEntry),
	}
}

// Update applies a presence event. An event older than the one already
// recorded for the user is ignored; returns whether state changed.
func (p *PresenceTracker) Update(event entity.PresenceEvent) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.entries[event.UserID]; ok && event.At.Before(existing.at) {
		return false
	}
	p.entries[event.UserID] = presenceEntry{
		isOnline: event.IsOnline,
		lastSeen: event.LastSeen,
		at:       event.At,
	}
	return true
}

// IsOnline reports the tracked online state for userID.
func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.entries[userID].isOnline
}

// Label renders the display string for userID as of now: "Online",
// a relative last-seen duration, or "" when nothing is known.
func (p *PresenceTracker) Label(userID string, now time.Time) string {
	p.mu.RLock()
	entry, ok := p.entries[userID]
	p.mu.RUnlock()

	if !ok {
		return ""
	}
	if entry.isOnline {
		return "Online"
	}
	if entry.lastSeen == nil {
		return ""
	}
	return "last seen " + formatDuration(now.Sub(*entry.lastSeen)) + " ago"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return "moments"
	}
	minutes := int(d.Minutes())
	if minutes < 60 {
		return fmt.Sprintf("%dm", minutes)
	}
	hours := minutes / 60
	if hours < 24 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dd", hours/24)
}
