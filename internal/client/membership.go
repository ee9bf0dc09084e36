package client

import (
	"context"
	"sync"
	"sync/atomic"

	"campuschat/internal/domain/entity"
	"campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// roomInvoker is the slice of Session the controller depends on.
type roomInvoker interface {
	JoinRoom(ctx context.Context, roomID string) error
	LeaveRoom(ctx context.Context, roomID string) error
}

// roomCreator is the slice of the REST client the controller depends on.
type roomCreator interface {
	CreateRoom(ctx context.Context, name string, isGroup bool, participantIDs []string) (string, error)
}

// Membership enforces single-room occupancy on top of the session:
// at most one joined room, leave sequenced before join, and the most
// recent switch always wins. A switch that resolves after a newer one
// started is discarded, not raced to completion.
type Membership struct {
	session roomInvoker
	api     roomCreator

	seq uint64 // bumped by every switch and leave; stale resolutions check against it

	mu     sync.Mutex
	active string
}

func NewMembership(session roomInvoker, api roomCreator) *Membership {
	return &Membership{
		session: session,
		api:     api,
	}
}

// ActiveRoom returns the currently joined room id, or "".
func (m *Membership) ActiveRoom() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// SwitchTo leaves the current room (if any) and joins roomID.
func (m *Membership) SwitchTo(ctx context.Context, roomID string) error {
	seq := atomic.AddUint64(&m.seq, 1)
	return m.switchTo(ctx, seq, roomID)
}

// SwitchToUser switches to the room shared with the given user,
// creating it first when the user has no room yet. When creation
// fails no join is attempted.
func (m *Membership) SwitchToUser(ctx context.Context, user entity.User) (string, error) {
	seq := atomic.AddUint64(&m.seq, 1)

	roomID := user.ChatRoomID
	if roomID == "" {
		created, err := m.api.CreateRoom(ctx, "", false, []string{user.ID})
		if err != nil {
			return "", err
		}
		if m.stale(seq) {
			return "", errors.Superseded("Room creation resolved after a newer switch")
		}
		roomID = created
	}

	if err := m.switchTo(ctx, seq, roomID); err != nil {
		return "", err
	}
	return roomID, nil
}

func (m *Membership) switchTo(ctx context.Context, seq uint64, roomID string) error {
	m.mu.Lock()
	current := m.active
	m.mu.Unlock()

	if current == roomID {
		return nil
	}

	if current != "" {
		if err := m.session.LeaveRoom(ctx, current); err != nil {
			return err
		}
		m.mu.Lock()
		if m.active == current {
			m.active = ""
		}
		m.mu.Unlock()
		if m.stale(seq) {
			return errors.Superseded("Switch superseded while leaving previous room")
		}
	}

	err := m.session.JoinRoom(ctx, roomID)
	if m.stale(seq) {
		if err == nil {
			// The join landed for a room no longer desired; undo it so
			// the server never holds two memberships for this client.
			go func() {
				if leaveErr := m.session.LeaveRoom(context.Background(), roomID); leaveErr != nil {
					logger.Warn("chat membership: failed to leave stale room %s: %v", roomID, leaveErr)
				}
			}()
		}
		return errors.Superseded("Join resolved after a newer switch")
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.active = roomID
	m.mu.Unlock()
	return nil
}

// Leave exits the active room. Leaving when no room is joined is a
// no-op, not an error. A Leave also supersedes any in-flight switch.
func (m *Membership) Leave(ctx context.Context) error {
	atomic.AddUint64(&m.seq, 1)

	m.mu.Lock()
	current := m.active
	m.mu.Unlock()
	if current == "" {
		return nil
	}

	if err := m.session.LeaveRoom(ctx, current); err != nil {
		return err
	}

	m.mu.Lock()
	if m.active == current {
		m.active = ""
	}
	m.mu.Unlock()
	return nil
}

// Rejoin re-issues the join for the active room, used after the
// session reconnects.
func (m *Membership) Rejoin(ctx context.Context) error {
	m.mu.Lock()
	current := m.active
	m.mu.Unlock()
	if current == "" {
		return nil
	}
	return m.session.JoinRoom(ctx, current)
}

func (m *Membership) stale(seq uint64) bool {
	return atomic.LoadUint64(&m.seq) != seq
}
