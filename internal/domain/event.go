package domain

import (
	"time"
)

// EventType identifies a frame on the real-time channel
type EventType string

const (
	EventJoin    EventType = "join"
	EventLeave   EventType = "leave"
	EventMessage EventType = "message"
	EventTyping  EventType = "typing"
	EventError   EventType = "error"
)

// Event is the wire frame exchanged over the real-time transport.
// Client-originated frames carry join/leave/message/typing; the server emits
// message/typing/error. The server echoes every published message back to its
// originator with the authoritative id and timestamp.
type Event struct {
	Type       EventType `json:"type"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	Message    *Message  `json:"message,omitempty"`
	IsTyping   bool      `json:"is_typing,omitempty"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
