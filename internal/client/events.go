package client

import (
	"campuschat/internal/domain/entity"
)

// Status is the connection lifecycle state of a Session.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// ViewState is the chat widget's UI state.
type ViewState int

const (
	StateBrowsing ViewState = iota
	StateSelecting
	StateConversing
)

func (s ViewState) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateConversing:
		return "conversing"
	default:
		return "browsing"
	}
}

// EventKind discriminates the events delivered to the view observer.
type EventKind int

const (
	EventConnecting EventKind = iota
	EventConnected
	EventDisconnected
	EventStateChanged
	EventMessage
	EventPresence
	EventError
)

// Event is the single notification type pushed to the UI layer. The
// engine owns all state; the UI reads snapshots and renders events.
type Event struct {
	Kind     EventKind
	State    ViewState
	Message  *entity.Message
	Presence *entity.PresenceEvent
	Err      error
}
