package domain

import (
	"time"
)

// MessageKind distinguishes text messages from file references
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindFile  MessageKind = "file"
)

// Message represents a single chat message in a room.
// Before server confirmation the ID is a locally generated provisional one
// (see Timeline); once reconciled the ID is unique within the room.
// Messages are immutable once created.
type Message struct {
	ID        string      `json:"id"`
	RoomID    string      `json:"room_id"`
	SenderID  string      `json:"sender_id"`
	Kind      MessageKind `json:"kind"`
	Body      string      `json:"body"`
	CreatedAt time.Time   `json:"created_at"`
	FileName  string      `json:"file_name,omitempty"`
	FileSize  int64       `json:"file_size,omitempty"`
}

// EntryState tracks the two-phase commit of an optimistically rendered message
type EntryState string

const (
	// EntryProvisional means the message was rendered locally and is awaiting
	// the server's confirmation (history row or live echo)
	EntryProvisional EntryState = "provisional"
	// EntryConfirmed means the server acknowledged the message
	EntryConfirmed EntryState = "confirmed"
	// EntryExpired means no confirmation arrived within the bounded wait;
	// the publish was most likely silently dropped by the server
	EntryExpired EntryState = "expired"
)

// TimelineEntry is a Message plus the flags the UI renders it with
type TimelineEntry struct {
	Message
	IsSelf bool       `json:"is_self"`
	State  EntryState `json:"state"`
}

// IsProvisional reports whether the entry still awaits server confirmation
func (e *TimelineEntry) IsProvisional() bool {
	return e.State == EntryProvisional
}
