package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"campuschat/internal/domain/entity"
)

// Client represents one connected chat user.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte

	roomID string // guarded by Hub.mutex
}

// Hub tracks connected clients and per-room membership. A client is a
// member of at most one room at a time; joining a room implicitly
// leaves the previous one.
type Hub struct {
	clients    map[string]*Client
	rooms      map[string]map[*Client]struct{}
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex

	// Authorize rejects a join for a room the user does not belong to.
	Authorize func(ctx context.Context, userID, roomID string) error

	// OnDisconnect is called after a client unregisters, with the
	// disconnect time. Used to persist last-seen.
	OnDisconnect func(userID string, at time.Time)
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[*Client]struct{}),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Start runs the hub's main loop in a goroutine.
func (h *Hub) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case client := <-h.Register:
				h.mutex.Lock()
				h.clients[client.UserID] = client
				h.mutex.Unlock()
				log.Printf("Hub: client registered: %s", client.UserID)
				h.broadcastPresence(client.UserID, true)

			case client := <-h.Unregister:
				h.mutex.Lock()
				current, ok := h.clients[client.UserID]
				isCurrent := ok && current == client
				if isCurrent {
					delete(h.clients, client.UserID)
				}
				h.removeFromRoomLocked(client)
				close(client.Send)
				h.mutex.Unlock()

				if !isCurrent {
					// A reconnect already replaced this client. Tearing
					// down the superseded socket must not announce the
					// still-connected user as offline.
					log.Printf("Hub: superseded client unregistered: %s", client.UserID)
					break
				}
				log.Printf("Hub: client unregistered: %s", client.UserID)
				h.broadcastPresence(client.UserID, false)
				if h.OnDisconnect != nil {
					h.OnDisconnect(client.UserID, time.Now().UTC())
				}

			case <-ctx.Done():
				return
			}
		}
	}()
}

// IsOnline reports whether the user currently has a registered client.
func (h *Hub) IsOnline(userID string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// JoinRoom moves the client into roomID, leaving any previous room.
func (h *Hub) JoinRoom(ctx context.Context, client *Client, roomID string) error {
	if h.Authorize != nil {
		if err := h.Authorize(ctx, client.UserID, roomID); err != nil {
			return err
		}
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.removeFromRoomLocked(client)
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]struct{})
	}
	h.rooms[roomID][client] = struct{}{}
	client.roomID = roomID
	return nil
}

// LeaveRoom removes the client from roomID. Leaving a room the client
// is not in is a no-op.
func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if client.roomID != roomID {
		return
	}
	h.removeFromRoomLocked(client)
}

func (h *Hub) removeFromRoomLocked(client *Client) {
	if client.roomID == "" {
		return
	}
	if members, ok := h.rooms[client.roomID]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, client.roomID)
		}
	}
	client.roomID = ""
}

// BroadcastToRoom pushes an event frame to every client joined to the room.
func (h *Hub) BroadcastToRoom(roomID string, frame Frame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("Hub: failed to marshal frame for room %s: %v", roomID, err)
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	for client := range h.rooms[roomID] {
		select {
		case client.Send <- payload:
		default:
			log.Printf("Hub: dropping frame for slow client %s", client.UserID)
		}
	}
}

func (h *Hub) broadcastPresence(userID string, online bool) {
	now := time.Now().UTC()
	event := entity.PresenceEvent{
		UserID:   userID,
		IsOnline: online,
		At:       now,
	}
	if !online {
		event.LastSeen = &now
	}

	frame, err := NewFrame(FrameTypeEvent, "", EventPresence, event)
	if err != nil {
		log.Printf("Hub: failed to build presence frame: %v", err)
		return
	}
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}

	h.mutex.RLock()
	defer h.mutex.RUnlock()
	for _, client := range h.clients {
		if client.UserID == userID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
		}
	}
}

// HandleClientFrame processes one frame read from a client connection.
func (h *Hub) HandleClientFrame(ctx context.Context, client *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		log.Printf("Hub: invalid frame from client %s: %v", client.UserID, err)
		return
	}

	switch frame.Type {
	case FrameTypePing:
		h.sendFrame(client, Frame{Type: FrameTypePong, ID: frame.ID})

	case FrameTypeInvoke:
		h.handleInvoke(ctx, client, frame)

	default:
		log.Printf("Hub: unknown frame type %q from client %s", frame.Type, client.UserID)
	}
}

func (h *Hub) handleInvoke(ctx context.Context, client *Client, frame Frame) {
	var arg RoomArg
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &arg); err != nil {
			h.sendFrame(client, Frame{Type: FrameTypeAck, ID: frame.ID, Error: "invalid invocation argument"})
			return
		}
	}

	switch frame.Target {
	case TargetJoinRoom:
		if err := h.JoinRoom(ctx, client, arg.RoomID); err != nil {
			log.Printf("Hub: join %s rejected for client %s: %v", arg.RoomID, client.UserID, err)
			h.sendFrame(client, Frame{Type: FrameTypeAck, ID: frame.ID, Error: err.Error()})
			return
		}
		h.sendFrame(client, Frame{Type: FrameTypeAck, ID: frame.ID})

	case TargetLeaveRoom:
		h.LeaveRoom(client, arg.RoomID)
		h.sendFrame(client, Frame{Type: FrameTypeAck, ID: frame.ID})

	default:
		h.sendFrame(client, Frame{Type: FrameTypeAck, ID: frame.ID, Error: "unknown target: " + frame.Target})
	}
}

func (h *Hub) sendFrame(client *Client, frame Frame) {
	frame.Timestamp = time.Now().UTC().Format(time.RFC3339)
	payload, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case client.Send <- payload:
	default:
	}
}

// ReadPump reads frames from the client connection until it closes.
func (c *Client) ReadPump(ctx context.Context, h *Hub) {
	defer func() {
		h.Unregister <- c
		c.Conn.Close()
	}()

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("Hub: read error for client %s: %v", c.UserID, err)
			}
			break
		}
		h.HandleClientFrame(ctx, c, raw)
	}
}

// WritePump sends queued frames to the client connection.
func (c *Client) WritePump() {
	defer c.Conn.Close()

	for {
		payload, ok := <-c.Send
		if !ok {
			c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}

		if err := c.Conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("Hub: write error for client %s: %v", c.UserID, err)
			return
		}
	}
}
