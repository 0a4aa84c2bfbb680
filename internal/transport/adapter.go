package transport

import (
	"lawlink-chat/internal/domain"
)

// Listener receives the inbound events of one room. Nil callbacks are skipped.
// Subscriptions are additive: every listener registered for a room sees every
// event, so one consumer cannot silently displace another.
type Listener struct {
	OnMessage func(domain.Event)
	OnTyping  func(domain.Event)
	OnError   func(domain.Event)
}

// StateHandler observes connection state transitions. The connection is shared
// by every room, so state subscriptions are not room-scoped.
type StateHandler func(domain.ConnectionState)

// Adapter wraps the single persistent bidirectional connection of a client
// session. Publishes are fire-and-forget: delivery failure surfaces later as
// an error event or a provisional-entry timeout, never as a return value.
type Adapter interface {
	// JoinRoom subscribes the connection to a room channel. Joining a room
	// the adapter already considers joined is a no-op.
	JoinRoom(roomID string)
	// LeaveRoom releases the server-side subscription for the room.
	LeaveRoom(roomID string)
	// PublishMessage sends a message frame. Dropped with a log line when the
	// connection is down.
	PublishMessage(roomID string, msg domain.Message)
	// PublishTyping signals a typing start/stop for the local user.
	PublishTyping(roomID string, isTyping bool)
	// Subscribe registers a listener for one room's events. The returned
	// function detaches it.
	Subscribe(roomID string, l Listener) (unsubscribe func())
	// SubscribeState registers a connection-state observer.
	SubscribeState(h StateHandler) (unsubscribe func())
	// State returns the current connection state.
	State() domain.ConnectionState
	// Close tears the connection down. No reconnect is attempted afterwards.
	Close() error
}
