package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campuschat/pkg/errors"
)

func newTestClient(userID string) *Client {
	return &Client{
		UserID: userID,
		Send:   make(chan []byte, 16),
	}
}

func receiveFrame(t *testing.T, client *Client) Frame {
	t.Helper()
	select {
	case payload := <-client.Send:
		var frame Frame
		require.NoError(t, json.Unmarshal(payload, &frame))
		return frame
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return Frame{}
	}
}

func TestHubJoinRoomImplicitlyLeavesPrevious(t *testing.T) {
	hub := NewHub()
	client := newTestClient("u1")
	ctx := context.Background()

	require.NoError(t, hub.JoinRoom(ctx, client, "r1"))
	require.NoError(t, hub.JoinRoom(ctx, client, "r2"))

	frame, err := NewFrame(FrameTypeEvent, "", EventReceiveMessage, map[string]string{"id": "m1"})
	require.NoError(t, err)

	hub.BroadcastToRoom("r1", frame)
	assert.Empty(t, client.Send, "client must not receive frames for the room it left")

	hub.BroadcastToRoom("r2", frame)
	got := receiveFrame(t, client)
	assert.Equal(t, FrameTypeEvent, got.Type)
	assert.Equal(t, EventReceiveMessage, got.Target)
}

func TestHubBroadcastReachesOnlyMembers(t *testing.T) {
	hub := NewHub()
	member := newTestClient("u1")
	other := newTestClient("u2")
	ctx := context.Background()

	require.NoError(t, hub.JoinRoom(ctx, member, "r1"))
	require.NoError(t, hub.JoinRoom(ctx, other, "r2"))

	frame, err := NewFrame(FrameTypeEvent, "", EventReceiveMessage, map[string]string{"id": "m1"})
	require.NoError(t, err)
	hub.BroadcastToRoom("r1", frame)

	receiveFrame(t, member)
	assert.Empty(t, other.Send)
}

func TestHubJoinRoomRejectedByAuthorizer(t *testing.T) {
	hub := NewHub()
	hub.Authorize = func(ctx context.Context, userID, roomID string) error {
		return errors.Unauthorized("You are not a participant of this room", nil)
	}
	client := newTestClient("u1")

	err := hub.JoinRoom(context.Background(), client, "r1")
	require.Error(t, err)

	frame, buildErr := NewFrame(FrameTypeEvent, "", EventReceiveMessage, nil)
	require.NoError(t, buildErr)
	hub.BroadcastToRoom("r1", frame)
	assert.Empty(t, client.Send)
}

func TestHubLeaveRoomIsIdempotent(t *testing.T) {
	hub := NewHub()
	client := newTestClient("u1")
	ctx := context.Background()

	hub.LeaveRoom(client, "r1") // never joined

	require.NoError(t, hub.JoinRoom(ctx, client, "r1"))
	hub.LeaveRoom(client, "r2") // joined to a different room, no-op
	hub.LeaveRoom(client, "r1")
	hub.LeaveRoom(client, "r1")

	frame, err := NewFrame(FrameTypeEvent, "", EventReceiveMessage, nil)
	require.NoError(t, err)
	hub.BroadcastToRoom("r1", frame)
	assert.Empty(t, client.Send)
}

func TestHubPresenceOnRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)

	observer := newTestClient("u1")
	hub.Register <- observer
	assert.Eventually(t, func() bool { return hub.IsOnline("u1") }, time.Second, 5*time.Millisecond)

	peer := newTestClient("u2")
	hub.Register <- peer

	frame := receiveFrame(t, observer)
	assert.Equal(t, FrameTypeEvent, frame.Type)
	assert.Equal(t, EventPresence, frame.Target)

	var event struct {
		UserID   string `json:"userId"`
		IsOnline bool   `json:"isOnline"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &event))
	assert.Equal(t, "u2", event.UserID)
	assert.True(t, event.IsOnline)

	lastSeen := make(chan string, 1)
	hub.OnDisconnect = func(userID string, at time.Time) {
		lastSeen <- userID
	}

	hub.Unregister <- peer
	frame = receiveFrame(t, observer)
	require.NoError(t, json.Unmarshal(frame.Data, &event))
	assert.Equal(t, "u2", event.UserID)
	assert.False(t, event.IsOnline)

	select {
	case userID := <-lastSeen:
		assert.Equal(t, "u2", userID)
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not called")
	}
	assert.False(t, hub.IsOnline("u2"))
}

func TestHubSupersededClientUnregisterKeepsUserOnline(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.Start(ctx)

	disconnects := make(chan string, 4)
	hub.OnDisconnect = func(userID string, at time.Time) {
		disconnects <- userID
	}

	observer := newTestClient("u1")
	hub.Register <- observer
	assert.Eventually(t, func() bool { return hub.IsOnline("u1") }, time.Second, 5*time.Millisecond)

	// Alice reconnects: the new client registers before the dead
	// socket's pump unregisters the old one.
	oldClient := newTestClient("alice")
	hub.Register <- oldClient
	receiveFrame(t, observer) // online

	newClient := newTestClient("alice")
	hub.Register <- newClient
	receiveFrame(t, observer) // online again

	hub.Unregister <- oldClient
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-oldClient.Send:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond, "superseded client's send channel must be closed")

	// The user is still connected: no offline broadcast, no last-seen
	// persistence for the superseded socket.
	assert.True(t, hub.IsOnline("alice"))
	assert.Empty(t, observer.Send)
	assert.Empty(t, disconnects)

	// The real disconnect still announces offline.
	hub.Unregister <- newClient
	frame := receiveFrame(t, observer)
	assert.Equal(t, EventPresence, frame.Target)

	var event struct {
		UserID   string `json:"userId"`
		IsOnline bool   `json:"isOnline"`
	}
	require.NoError(t, json.Unmarshal(frame.Data, &event))
	assert.Equal(t, "alice", event.UserID)
	assert.False(t, event.IsOnline)

	select {
	case userID := <-disconnects:
		assert.Equal(t, "alice", userID)
	case <-time.After(time.Second):
		t.Fatal("OnDisconnect was not called for the live client")
	}
}

func TestHubHandleClientFramePingAndInvoke(t *testing.T) {
	hub := NewHub()
	client := newTestClient("u1")
	ctx := context.Background()

	hub.HandleClientFrame(ctx, client, []byte(`{"type":"ping","id":"p1"}`))
	pong := receiveFrame(t, client)
	assert.Equal(t, FrameTypePong, pong.Type)
	assert.Equal(t, "p1", pong.ID)

	hub.HandleClientFrame(ctx, client, []byte(`{"type":"invoke","id":"i1","target":"JoinRoom","data":{"roomId":"r1"}}`))
	ack := receiveFrame(t, client)
	assert.Equal(t, FrameTypeAck, ack.Type)
	assert.Equal(t, "i1", ack.ID)
	assert.Empty(t, ack.Error)

	hub.HandleClientFrame(ctx, client, []byte(`{"type":"invoke","id":"i2","target":"Nope"}`))
	ack = receiveFrame(t, client)
	assert.Equal(t, "i2", ack.ID)
	assert.NotEmpty(t, ack.Error)
}
