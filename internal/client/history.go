package client

import (
	"context"
	"sync"

	"campuschat/internal/domain/entity"
)

// messagePager is the slice of the REST client the loader depends on.
type messagePager interface {
	GetMessages(ctx context.Context, roomID string, page, pageSize int) ([]entity.Message, error)
}

// HistoryLoader fetches paginated history for the active room. Page 1
// is the most recent pageSize messages; higher pages walk toward the
// start of the conversation.
type HistoryLoader struct {
	api      messagePager
	pageSize int

	mu       sync.Mutex
	gen      uint64 // bumped by Reset; resolutions from an older gen are discarded
	roomID   string
	nextPage int
	hasMore  bool
	inFlight bool
}

func NewHistoryLoader(api messagePager, pageSize int) *HistoryLoader {
	return &HistoryLoader{
		api:      api,
		pageSize: pageSize,
	}
}

// Reset points the loader at a new room and rewinds pagination.
func (l *HistoryLoader) Reset(roomID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.roomID = roomID
	l.nextPage = 1
	l.hasMore = true
	l.inFlight = false
}

// HasMore reports whether older history may remain.
func (l *HistoryLoader) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hasMore
}

// LoadNext fetches the next page, oldest-first in the returned slice.
// It is a no-op (nil, nil) when a load is already in flight, history
// is exhausted, or no room is set. A response for a room that is no
// longer current is silently dropped. On failure the pagination state
// is unchanged so the next trigger retries the same page.
func (l *HistoryLoader) LoadNext(ctx context.Context) ([]entity.Message, error) {
	l.mu.Lock()
	if l.inFlight || !l.hasMore || l.roomID == "" {
		l.mu.Unlock()
		return nil, nil
	}
	gen := l.gen
	roomID := l.roomID
	page := l.nextPage
	l.inFlight = true
	l.mu.Unlock()

	messages, err := l.api.GetMessages(ctx, roomID, page, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		// Stale page: the loader was reset while the request was in
		// flight. The current load's state, including its in-flight
		// marker, belongs to the reset and must not be touched here.
		return nil, nil
	}
	l.inFlight = false

	if err != nil {
		return nil, err
	}

	if len(messages) < l.pageSize {
		l.hasMore = false
	}
	l.nextPage++

	// The server returns pages newest-first; normalize to ascending so
	// the merge engine prepends in timeline order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
