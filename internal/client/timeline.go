package client

import (
	"sort"
	"sync"

	"campuschat/internal/domain/entity"
)

// Timeline is the single source of truth for the rendered message
// sequence of the active room: ordered ascending by SentAt, unique by
// id, ties kept in arrival order. The UI only ever reads snapshots.
type Timeline struct {
	selfID string

	mu       sync.RWMutex
	messages []entity.Message
	ids      map[string]struct{}
}

func NewTimeline(selfID string) *Timeline {
	return &Timeline{
		selfID: selfID,
		ids:    make(map[string]struct{}),
	}
}

// Append adds one live message to the end of the timeline. Live
// messages are newer than all loaded history, so no re-sort happens
// here. Returns false for a duplicate id (redelivery, or the echo of
// an own send already present).
func (t *Timeline) Append(message entity.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ids[message.ID]; exists {
		return false
	}
	message.IsOwnMessage = message.SenderID == t.selfID
	t.ids[message.ID] = struct{}{}
	t.messages = append(t.messages, message)
	return true
}

// MergePage folds an older history page (ascending order) into the
// timeline. Duplicates are skipped; the result is re-sorted stably by
// SentAt so a late-arriving page lands in the right place even when
// live messages arrived first.
func (t *Timeline) MergePage(page []entity.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := make([]entity.Message, 0, len(page))
	for _, message := range page {
		if _, exists := t.ids[message.ID]; exists {
			continue
		}
		message.IsOwnMessage = message.SenderID == t.selfID
		t.ids[message.ID] = struct{}{}
		fresh = append(fresh, message)
	}
	if len(fresh) == 0 {
		return
	}

	t.messages = append(fresh, t.messages...)
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].SentAt.Before(t.messages[j].SentAt)
	})
}

// Reset clears the timeline for a room switch.
func (t *Timeline) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = nil
	t.ids = make(map[string]struct{})
}

// Snapshot returns a copy of the current sequence.
func (t *Timeline) Snapshot() []entity.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snapshot := make([]entity.Message, len(t.messages))
	copy(snapshot, t.messages)
	return snapshot
}

// Len returns the number of messages in the timeline.
func (t *Timeline) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
