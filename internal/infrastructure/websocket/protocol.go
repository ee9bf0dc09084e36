package websocket

import (
	"encoding/json"
	"time"
)

// Frame types
const (
	FrameTypeInvoke = "invoke"
	FrameTypeAck    = "ack"
	FrameTypeEvent  = "event"
	FrameTypePing   = "ping"
	FrameTypePong   = "pong"
)

// Invocation targets
const (
	TargetJoinRoom  = "JoinRoom"
	TargetLeaveRoom = "LeaveRoom"
)

// Event targets
const (
	EventReceiveMessage = "ReceiveMessage"
	EventPresence       = "Presence"
)

// Frame is the single wire structure for the live channel. Invocations
// carry an ID that the matching ack echoes back; events carry no ID.
type Frame struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	Target    string          `json:"target,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

type RoomArg struct {
	RoomID string `json:"roomId"`
}

func NewFrame(frameType, id, target string, data interface{}) (Frame, error) {
	frame := Frame{
		Type:      frameType,
		ID:        id,
		Target:    target,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Frame{}, err
		}
		frame.Data = raw
	}
	return frame, nil
}
