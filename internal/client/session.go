package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"campuschat/internal/domain/entity"
	ws "campuschat/internal/infrastructure/websocket"
	"campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

const (
	defaultBackoffBase      = 500 * time.Millisecond
	defaultBackoffMax       = 30 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultInvokeTimeout    = 10 * time.Second
)

// SessionConfig configures the live-channel session.
type SessionConfig struct {
	HubURL string
	Token  TokenFunc

	BackoffBase      time.Duration
	BackoffMax       time.Duration
	HandshakeTimeout time.Duration

	OnStatus   func(Status)
	OnMessage  func(entity.Message)
	OnPresence func(entity.PresenceEvent)
}

// Session owns the single persistent duplex connection to the
// messaging backend: connect, authenticate, reconnect with backoff,
// clean teardown. There is one Session per process; it holds at most
// one socket at a time.
type Session struct {
	cfg SessionConfig

	mu       sync.Mutex
	status   Status
	conn     *websocket.Conn
	gen      uint64 // connection generation, bumps on every dial
	closed   bool   // explicit Disconnect; stops reconnects
	done     chan struct{}
	retrying bool

	writeMu sync.Mutex
	pending map[string]chan string

	flight singleflight.Group
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = defaultBackoffMax
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Session{
		cfg:     cfg,
		status:  StatusDisconnected,
		pending: make(map[string]chan string),
		done:    make(chan struct{}),
	}
}

// Status returns the current lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Connect establishes the connection. It is idempotent: when already
// connected it returns immediately, and concurrent callers share one
// in-flight dial instead of racing a second attempt. A failed connect
// leaves the session disconnected; it never panics into callers.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusConnected {
		s.mu.Unlock()
		return nil
	}
	if s.closed {
		// A new Connect after an explicit Disconnect revives the session.
		s.closed = false
		s.done = make(chan struct{})
	}
	s.mu.Unlock()

	return s.connectOnce(ctx)
}

// connectOnce funnels every dial, explicit or retried, through one
// singleflight key so attempts never run concurrently.
func (s *Session) connectOnce(ctx context.Context) error {
	_, err, _ := s.flight.Do("connect", func() (interface{}, error) {
		return nil, s.dial(ctx)
	})
	return err
}

// dial performs one connection attempt and, on success, starts the
// read loop for the new socket.
func (s *Session) dial(ctx context.Context) error {
	s.mu.Lock()
	if s.status == StatusConnected && s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.setStatus(StatusConnecting)

	token, err := s.cfg.Token(ctx)
	if err != nil {
		s.setStatus(StatusDisconnected)
		return errors.Unauthorized("Failed to obtain credential", err)
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.HandshakeTimeout}
	conn, res, err := dialer.DialContext(ctx, s.cfg.HubURL, header)
	if res != nil && res.Body != nil {
		res.Body.Close()
	}
	if err != nil {
		s.setStatus(StatusDisconnected)
		return errors.Disconnected("Failed to connect to chat hub", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return errors.Disconnected("Session was torn down during connect", nil)
	}
	if s.conn != nil {
		// Another dial won the race; this socket must not dangle.
		s.mu.Unlock()
		conn.Close()
		return nil
	}
	s.conn = conn
	s.gen++
	gen := s.gen
	s.status = StatusConnected
	s.mu.Unlock()

	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(StatusConnected)
	}

	go s.readLoop(conn, gen)
	return nil
}

// Disconnect tears the session down. Calling it when already
// disconnected is a no-op. It stops any reconnect loop and fails all
// pending invocations.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.closed || (s.status == StatusDisconnected && !s.retrying) {
		s.closed = true
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.conn = nil
	s.status = StatusDisconnected
	s.mu.Unlock()

	if conn != nil {
		s.writeMu.Lock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		conn.Close()
	}

	s.failPending("session disconnected")
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(StatusDisconnected)
	}
	return nil
}

// JoinRoom invokes JoinRoom on the hub and waits for the ack.
func (s *Session) JoinRoom(ctx context.Context, roomID string) error {
	return s.Invoke(ctx, ws.TargetJoinRoom, ws.RoomArg{RoomID: roomID})
}

// LeaveRoom invokes LeaveRoom on the hub and waits for the ack.
func (s *Session) LeaveRoom(ctx context.Context, roomID string) error {
	return s.Invoke(ctx, ws.TargetLeaveRoom, ws.RoomArg{RoomID: roomID})
}

// Invoke sends an invocation frame and waits for the matching ack.
func (s *Session) Invoke(ctx context.Context, target string, arg interface{}) error {
	s.mu.Lock()
	if s.status != StatusConnected || s.conn == nil {
		s.mu.Unlock()
		return errors.Disconnected("Not connected to chat hub", nil)
	}
	conn := s.conn
	s.mu.Unlock()

	id := uuid.NewString()
	frame, err := ws.NewFrame(ws.FrameTypeInvoke, id, target, arg)
	if err != nil {
		return errors.Internal("Failed to build invocation", err)
	}

	ack := make(chan string, 1)
	s.writeMu.Lock()
	s.pending[id] = ack
	err = conn.WriteJSON(frame)
	s.writeMu.Unlock()
	if err != nil {
		s.dropPending(id)
		return errors.Disconnected("Failed to send invocation", err)
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultInvokeTimeout)
		defer cancel()
	}

	select {
	case ackErr := <-ack:
		if ackErr != "" {
			return errors.New("INVOKE_FAILED", ackErr, http.StatusBadGateway, nil)
		}
		return nil
	case <-ctx.Done():
		s.dropPending(id)
		return errors.Disconnected("Invocation timed out", ctx.Err())
	}
}

func (s *Session) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.handleFrame(conn, raw)
	}
	s.handleDrop(conn, gen)
}

func (s *Session) handleFrame(conn *websocket.Conn, raw []byte) {
	var frame ws.Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		logger.Warn("chat session: invalid frame: %v", err)
		return
	}

	switch frame.Type {
	case ws.FrameTypeAck:
		s.writeMu.Lock()
		ack, ok := s.pending[frame.ID]
		delete(s.pending, frame.ID)
		s.writeMu.Unlock()
		if ok {
			ack <- frame.Error
		}

	case ws.FrameTypeEvent:
		s.handleEvent(frame)

	case ws.FrameTypePing:
		pong := ws.Frame{Type: ws.FrameTypePong, ID: frame.ID}
		s.writeMu.Lock()
		conn.WriteJSON(pong)
		s.writeMu.Unlock()
	}
}

func (s *Session) handleEvent(frame ws.Frame) {
	switch frame.Target {
	case ws.EventReceiveMessage:
		var message entity.Message
		if err := json.Unmarshal(frame.Data, &message); err != nil {
			logger.Warn("chat session: invalid message event: %v", err)
			return
		}
		if s.cfg.OnMessage != nil {
			s.cfg.OnMessage(message)
		}

	case ws.EventPresence:
		var event entity.PresenceEvent
		if err := json.Unmarshal(frame.Data, &event); err != nil {
			logger.Warn("chat session: invalid presence event: %v", err)
			return
		}
		if s.cfg.OnPresence != nil {
			s.cfg.OnPresence(event)
		}
	}
}

// handleDrop runs when a read loop exits. For the current socket and
// absent an explicit Disconnect, it flips to disconnected and starts
// the reconnect loop.
func (s *Session) handleDrop(conn *websocket.Conn, gen uint64) {
	conn.Close()

	s.mu.Lock()
	if s.gen != gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.status = StatusDisconnected
	alreadyRetrying := s.retrying
	if !alreadyRetrying {
		s.retrying = true
	}
	s.mu.Unlock()

	s.failPending("connection lost")
	if s.cfg.OnStatus != nil {
		s.cfg.OnStatus(StatusDisconnected)
	}

	if !alreadyRetrying {
		go s.reconnectLoop()
	}
}

// reconnectLoop retries until the session reconnects or is explicitly
// disconnected. Attempts never pile up: this is the only goroutine
// dialing, and delays grow exponentially up to the configured cap.
func (s *Session) reconnectLoop() {
	defer func() {
		s.mu.Lock()
		s.retrying = false
		s.mu.Unlock()
	}()

	for attempt := 0; ; attempt++ {
		delay := computeBackoff(attempt, s.cfg.BackoffBase, s.cfg.BackoffMax)
		logger.Info("chat session: reconnecting in %s (attempt %d)", delay, attempt+1)

		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		if s.closed || s.status == StatusConnected {
			// An explicit Connect succeeded during the backoff sleep.
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := s.connectOnce(context.Background()); err == nil {
			return
		}
	}
}

// computeBackoff returns the delay before the given attempt: the base
// delay doubled per attempt, capped at max.
func computeBackoff(attempt int, base, max time.Duration) time.Duration {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if max <= 0 {
		max = defaultBackoffMax
	}
	delay := base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}

func (s *Session) dropPending(id string) {
	s.writeMu.Lock()
	delete(s.pending, id)
	s.writeMu.Unlock()
}

func (s *Session) failPending(reason string) {
	s.writeMu.Lock()
	for id, ack := range s.pending {
		delete(s.pending, id)
		select {
		case ack <- reason:
		default:
		}
	}
	s.writeMu.Unlock()
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()
	if changed && s.cfg.OnStatus != nil {
		s.cfg.OnStatus(status)
	}
}
