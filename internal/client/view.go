package client

import (
	"context"
	"strings"
	"sync"
	"time"

	"campuschat/internal/domain/entity"
	"campuschat/pkg/errors"
	"campuschat/pkg/logger"
)

// messageSender is the slice of the REST client the view depends on
// beyond what its sub-components already hold.
type messageSender interface {
	SearchUsers(ctx context.Context, search string) ([]entity.User, error)
	SendMessage(ctx context.Context, roomID, content string) error
}

// ViewConfig wires a chat view to a backend.
type ViewConfig struct {
	SelfID    string
	ServerURL string
	HubURL    string
	Token     TokenFunc
	PageSize  int

	BackoffBase      time.Duration
	BackoffMax       time.Duration
	HandshakeTimeout time.Duration

	// Notify receives every engine event. It may be called from the
	// session's read goroutine; handlers must not block.
	Notify func(Event)
}

// ChatView drives the chat widget's state transitions (user list →
// conversation → back) and orchestrates the session, membership
// controller, history loader, merge engine and presence tracker.
type ChatView struct {
	selfID     string
	api        messageSender
	session    *Session
	membership *Membership
	history    *HistoryLoader
	timeline   *Timeline
	presence   *PresenceTracker
	notify     func(Event)

	mu    sync.Mutex
	state ViewState
}

func NewChatView(cfg ViewConfig) *ChatView {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}

	api := NewAPIClient(cfg.ServerURL, cfg.Token)

	view := &ChatView{
		selfID:   cfg.SelfID,
		api:      api,
		timeline: NewTimeline(cfg.SelfID),
		presence: NewPresenceTracker(),
		history:  NewHistoryLoader(api, pageSize),
		notify:   cfg.Notify,
		state:    StateBrowsing,
	}

	view.session = NewSession(SessionConfig{
		HubURL:           cfg.HubURL,
		Token:            cfg.Token,
		BackoffBase:      cfg.BackoffBase,
		BackoffMax:       cfg.BackoffMax,
		HandshakeTimeout: cfg.HandshakeTimeout,
		OnStatus:         view.handleStatus,
		OnMessage:        view.handleMessage,
		OnPresence:       view.handlePresence,
	})
	view.membership = NewMembership(view.session, api)

	return view
}

// Open connects the session. Called when the chat widget opens.
func (v *ChatView) Open(ctx context.Context) error {
	return v.session.Connect(ctx)
}

// Close tears the widget down: leaves any room state behind and
// disconnects the session. Mandatory cleanup on unmount/logout.
func (v *ChatView) Close() error {
	v.timeline.Reset()
	v.history.Reset("")
	v.setState(StateBrowsing)
	return v.session.Disconnect()
}

// State returns the current view state.
func (v *ChatView) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// ConnectionStatus exposes the session state for the status indicator.
func (v *ChatView) ConnectionStatus() Status {
	return v.session.Status()
}

// Messages returns a snapshot of the active conversation's timeline.
func (v *ChatView) Messages() []entity.Message {
	return v.timeline.Snapshot()
}

// PresenceLabel renders the counterpart's presence line.
func (v *ChatView) PresenceLabel(userID string) string {
	return v.presence.Label(userID, time.Now())
}

// SearchUsers queries the user directory, overlaying live presence
// over the server's snapshot. Debouncing is the caller's concern.
func (v *ChatView) SearchUsers(ctx context.Context, search string) ([]entity.User, error) {
	users, err := v.api.SearchUsers(ctx, search)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if online := v.presence.IsOnline(users[i].ID); online {
			users[i].IsOnline = true
		}
	}
	return users, nil
}

// SelectUser transitions Browsing → Selecting → Conversing: resolves
// (or creates) the room, joins it, and loads the first history page.
// On join failure the view reverts to Browsing with no partial state.
func (v *ChatView) SelectUser(ctx context.Context, user entity.User) error {
	v.setState(StateSelecting)

	roomID, err := v.membership.SwitchToUser(ctx, user)
	if err != nil {
		if errors.Is(err, "SUPERSEDED") {
			// A newer selection owns the state machine now.
			return nil
		}
		v.setState(StateBrowsing)
		v.emit(Event{Kind: EventError, Err: err})
		return err
	}
	return v.enterConversation(ctx, roomID)
}

// enterConversation installs roomID as the rendered conversation and
// loads its first history page. A selection whose room is no longer
// active by the time it gets here was superseded; it must not clobber
// the newer conversation's state.
func (v *ChatView) enterConversation(ctx context.Context, roomID string) error {
	if v.membership.ActiveRoom() != roomID {
		return nil
	}
	v.timeline.Reset()
	v.history.Reset(roomID)
	v.setState(StateConversing)

	page, err := v.history.LoadNext(ctx)
	if err != nil {
		// The conversation stays open; the next scroll retries.
		logger.Warn("chat view: initial history load failed for room %s: %v", roomID, err)
		v.emit(Event{Kind: EventError, Err: err})
		return nil
	}
	if v.membership.ActiveRoom() == roomID {
		v.timeline.MergePage(page)
	}
	return nil
}

// Back leaves the conversation and returns to the user list. The
// timeline and pagination are reset; leave failures still land in
// Browsing.
func (v *ChatView) Back(ctx context.Context) error {
	err := v.membership.Leave(ctx)
	v.timeline.Reset()
	v.history.Reset("")
	v.setState(StateBrowsing)
	return err
}

// Send submits a message over REST. The message reaches the timeline
// through the live-channel echo, never by optimistic append, so a
// failed send leaves the timeline untouched and the caller's draft
// intact.
func (v *ChatView) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return errors.BadRequest("Message content cannot be empty", nil)
	}

	roomID := v.membership.ActiveRoom()
	if roomID == "" {
		return errors.BadRequest("No active conversation", nil)
	}
	return v.api.SendMessage(ctx, roomID, content)
}

// LoadOlder fetches the next history page when the viewport nears the
// top. In-flight and exhausted-history suppression live in the loader.
func (v *ChatView) LoadOlder(ctx context.Context) error {
	page, err := v.history.LoadNext(ctx)
	if err != nil {
		v.emit(Event{Kind: EventError, Err: err})
		return err
	}
	v.timeline.MergePage(page)
	return nil
}

func (v *ChatView) handleStatus(status Status) {
	switch status {
	case StatusConnecting:
		v.emit(Event{Kind: EventConnecting})
	case StatusConnected:
		v.emit(Event{Kind: EventConnected})
		// Recover the room membership the server lost with the socket.
		go func() {
			if err := v.membership.Rejoin(context.Background()); err != nil {
				logger.Warn("chat view: rejoin after reconnect failed: %v", err)
			}
		}()
	case StatusDisconnected:
		v.emit(Event{Kind: EventDisconnected})
	}
}

func (v *ChatView) handleMessage(message entity.Message) {
	if message.RoomID != v.membership.ActiveRoom() {
		// Push for a room we already left; drop it.
		return
	}
	if !v.timeline.Append(message) {
		return
	}
	message.IsOwnMessage = message.SenderID == v.selfID
	v.emit(Event{Kind: EventMessage, Message: &message})
}

func (v *ChatView) handlePresence(event entity.PresenceEvent) {
	if v.presence.Update(event) {
		v.emit(Event{Kind: EventPresence, Presence: &event})
	}
}

func (v *ChatView) setState(state ViewState) {
	v.mu.Lock()
	changed := v.state != state
	v.state = state
	v.mu.Unlock()
	if changed {
		v.emit(Event{Kind: EventStateChanged, State: state})
	}
}

func (v *ChatView) emit(event Event) {
	if v.notify != nil {
		v.notify(event)
	}
}
