package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/internal/domain/entity"
	"campuschat/pkg/errors"
)

type fakePager struct {
	mu    sync.Mutex
	calls []int    // pages requested
	rooms []string // rooms requested
	pages map[int][]entity.Message
	err   error
	gate  chan struct{}            // when non-nil, GetMessages blocks until released
	gates map[string]chan struct{} // per-room gates, override gate
}

func (f *fakePager) GetMessages(ctx context.Context, roomID string, page, pageSize int) ([]entity.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, page)
	f.rooms = append(f.rooms, roomID)
	gate := f.gate
	if g, ok := f.gates[roomID]; ok {
		gate = g
	}
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[page], nil
}

func newestFirst(ids ...string) []entity.Message {
	base := time.Now()
	messages := make([]entity.Message, 0, len(ids))
	for i, id := range ids {
		messages = append(messages, entity.Message{
			ID:     id,
			RoomID: "r1",
			SentAt: base.Add(-time.Duration(i) * time.Minute),
		})
	}
	return messages
}

func TestHistoryLoaderFullPageKeepsHasMore(t *testing.T) {
	pager := &fakePager{pages: map[int][]entity.Message{
		1: newestFirst("m2", "m1"),
	}}
	loader := NewHistoryLoader(pager, 2)
	loader.Reset("r1")

	page, err := loader.LoadNext(context.Background())
	require.NoError(t, err)
	require.Len(t, page, 2)
	// Normalized to ascending: oldest first.
	assert.Equal(t, "m1", page[0].ID)
	assert.Equal(t, "m2", page[1].ID)
	assert.True(t, loader.HasMore())
}

func TestHistoryLoaderShortPageExhausts(t *testing.T) {
	pager := &fakePager{pages: map[int][]entity.Message{
		1: newestFirst("m1"),
	}}
	loader := NewHistoryLoader(pager, 2)
	loader.Reset("r1")

	_, err := loader.LoadNext(context.Background())
	require.NoError(t, err)
	assert.False(t, loader.HasMore())

	// Exhausted history suppresses further loads entirely.
	page, err := loader.LoadNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)
	assert.Equal(t, []int{1}, pager.calls)
}

func TestHistoryLoaderSuppressesConcurrentLoads(t *testing.T) {
	pager := &fakePager{
		pages: map[int][]entity.Message{1: newestFirst("m2", "m1")},
		gate:  make(chan struct{}),
	}
	loader := NewHistoryLoader(pager, 2)
	loader.Reset("r1")

	done := make(chan struct{})
	go func() {
		loader.LoadNext(context.Background())
		close(done)
	}()

	// Wait for the first load to be in flight.
	assert.Eventually(t, func() bool {
		pager.mu.Lock()
		defer pager.mu.Unlock()
		return len(pager.calls) == 1
	}, time.Second, 5*time.Millisecond)

	// A second trigger while one is pending is ignored.
	page, err := loader.LoadNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)

	close(pager.gate)
	<-done
	assert.Equal(t, []int{1}, pager.calls)
}

func TestHistoryLoaderStaleResponseKeepsInFlightGuard(t *testing.T) {
	gateA := make(chan struct{})
	gateB := make(chan struct{})
	pager := &fakePager{
		pages: map[int][]entity.Message{
			1: newestFirst("m2", "m1"),
			2: newestFirst("m0"),
		},
		gates: map[string]chan struct{}{"a": gateA, "b": gateB},
	}
	loader := NewHistoryLoader(pager, 2)

	inFlightCalls := func(n int) func() bool {
		return func() bool {
			pager.mu.Lock()
			defer pager.mu.Unlock()
			return len(pager.calls) == n
		}
	}

	loader.Reset("a")
	resultA := make(chan error, 1)
	go func() {
		_, err := loader.LoadNext(context.Background())
		resultA <- err
	}()
	assert.Eventually(t, inFlightCalls(1), time.Second, 5*time.Millisecond)

	loader.Reset("b")
	resultB := make(chan error, 1)
	go func() {
		_, err := loader.LoadNext(context.Background())
		resultB <- err
	}()
	assert.Eventually(t, inFlightCalls(2), time.Second, 5*time.Millisecond)

	// The old room's response resolves while the new room's load is
	// still pending. It must not clear the pending load's guard.
	close(gateA)
	require.NoError(t, <-resultA)

	page, err := loader.LoadNext(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page, "a trigger during a pending load must be suppressed")

	close(gateB)
	require.NoError(t, <-resultB)

	// Exactly one load ran for the new room, and the next one asks for
	// page 2, so no page was skipped.
	_, err = loader.LoadNext(context.Background())
	require.NoError(t, err)

	pager.mu.Lock()
	defer pager.mu.Unlock()
	assert.Equal(t, []string{"a", "b", "b"}, pager.rooms)
	assert.Equal(t, []int{1, 1, 2}, pager.calls)
}

func TestHistoryLoaderFailureLeavesStateRetryable(t *testing.T) {
	pager := &fakePager{err: errors.Internal("boom", nil)}
	loader := NewHistoryLoader(pager, 2)
	loader.Reset("r1")

	_, err := loader.LoadNext(context.Background())
	require.Error(t, err)
	assert.True(t, loader.HasMore())

	// Retry requests the same page again.
	pager.err = nil
	pager.pages = map[int][]entity.Message{1: newestFirst("m2", "m1")}
	page, err := loader.LoadNext(context.Background())
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, []int{1, 1}, pager.calls)
}

func TestHistoryLoaderDropsStalePage(t *testing.T) {
	pager := &fakePager{
		pages: map[int][]entity.Message{1: newestFirst("m2", "m1")},
		gate:  make(chan struct{}),
	}
	loader := NewHistoryLoader(pager, 2)
	loader.Reset("r1")

	type result struct {
		page []entity.Message
		err  error
	}
	results := make(chan result, 1)
	go func() {
		page, err := loader.LoadNext(context.Background())
		results <- result{page, err}
	}()

	assert.Eventually(t, func() bool {
		pager.mu.Lock()
		defer pager.mu.Unlock()
		return len(pager.calls) == 1
	}, time.Second, 5*time.Millisecond)

	// The room changes while the request is in flight.
	loader.Reset("r2")
	close(pager.gate)

	res := <-results
	require.NoError(t, res.err)
	assert.Nil(t, res.page)

	// The new room starts from page 1.
	loader.LoadNext(context.Background())
	pager.mu.Lock()
	defer pager.mu.Unlock()
	assert.Equal(t, "r2", pager.rooms[len(pager.rooms)-1])
	assert.Equal(t, 1, pager.calls[len(pager.calls)-1])
}
