package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lawlink-chat/internal/domain"
	"lawlink-chat/pkg/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	outboundBuffer = 64
)

var errAdapterClosed = errors.New("transport: adapter closed")

// Options configures the websocket adapter
type Options struct {
	// URL is the websocket endpoint, e.g. ws://host/ws
	URL string
	// AuthToken is sent as a Bearer header on dial
	AuthToken string
	// Log defaults to a no-op logger
	Log *zap.Logger
}

// WSAdapter is the gorilla/websocket implementation of Adapter. It maintains
// exactly one underlying socket per client session (not per room) and rejoins
// every active room, in original join order, after a reconnect.
type WSAdapter struct {
	url    string
	header http.Header
	dialer *websocket.Dialer
	log    *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	state     domain.ConnectionState
	joined    []string
	subs      map[string]map[int]Listener
	stateSubs map[int]StateHandler
	nextSub   int
	closed    bool

	outbound chan domain.Event
}

// Dial connects the adapter. Call once per client session; reconnects after
// that are automatic.
func Dial(ctx context.Context, opts Options) (*WSAdapter, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	header := http.Header{}
	if opts.AuthToken != "" {
		header.Set("Authorization", "Bearer "+opts.AuthToken)
	}

	a := &WSAdapter{
		url:       opts.URL,
		header:    header,
		dialer:    websocket.DefaultDialer,
		log:       log,
		state:     domain.Disconnected,
		subs:      make(map[string]map[int]Listener),
		stateSubs: make(map[int]StateHandler),
		outbound:  make(chan domain.Event, outboundBuffer),
	}

	conn, _, err := a.dialer.DialContext(ctx, a.url, a.header)
	if err != nil {
		return nil, err
	}
	a.attach(conn)

	return a, nil
}

// attach installs a fresh connection, replays joins and starts the pumps
func (a *WSAdapter) attach(conn *websocket.Conn) {
	a.mu.Lock()
	a.conn = conn
	a.state = domain.Connected
	joined := append([]string(nil), a.joined...)
	a.mu.Unlock()

	go a.readPump(conn)
	go a.writePump(conn)

	// Re-issue joins in the order the rooms were originally joined
	for _, roomID := range joined {
		a.enqueue(domain.Event{Type: domain.EventJoin, RoomID: roomID, Timestamp: time.Now()})
	}

	a.notifyState(domain.Connected)
}

// JoinRoom subscribes the connection to a room channel; idempotent
func (a *WSAdapter) JoinRoom(roomID string) {
	a.mu.Lock()
	for _, id := range a.joined {
		if id == roomID {
			a.mu.Unlock()
			return
		}
	}
	a.joined = append(a.joined, roomID)
	connected := a.state == domain.Connected
	a.mu.Unlock()

	metrics.RoomsJoined.Inc()
	if connected {
		a.enqueue(domain.Event{Type: domain.EventJoin, RoomID: roomID, Timestamp: time.Now()})
	}
}

// LeaveRoom releases the server-side subscription for the room
func (a *WSAdapter) LeaveRoom(roomID string) {
	a.mu.Lock()
	found := false
	for i, id := range a.joined {
		if id == roomID {
			a.joined = append(a.joined[:i], a.joined[i+1:]...)
			found = true
			break
		}
	}
	connected := a.state == domain.Connected
	a.mu.Unlock()

	if !found {
		return
	}
	metrics.RoomsJoined.Dec()
	if connected {
		a.enqueue(domain.Event{Type: domain.EventLeave, RoomID: roomID, Timestamp: time.Now()})
	}
}

// PublishMessage sends a message frame; dropped with a log line when down
func (a *WSAdapter) PublishMessage(roomID string, msg domain.Message) {
	if a.State() != domain.Connected {
		a.log.Warn("dropping message publish while disconnected", zap.String("room_id", roomID))
		metrics.PublishDroppedTotal.WithLabelValues("message").Inc()
		return
	}
	a.enqueue(domain.Event{
		Type:      domain.EventMessage,
		RoomID:    roomID,
		Message:   &msg,
		Timestamp: time.Now(),
	})
}

// PublishTyping signals a typing start/stop for the local user
func (a *WSAdapter) PublishTyping(roomID string, isTyping bool) {
	if a.State() != domain.Connected {
		a.log.Warn("dropping typing publish while disconnected", zap.String("room_id", roomID))
		metrics.PublishDroppedTotal.WithLabelValues("typing").Inc()
		return
	}
	metrics.TypingSignalsTotal.WithLabelValues("outbound").Inc()
	a.enqueue(domain.Event{
		Type:      domain.EventTyping,
		RoomID:    roomID,
		IsTyping:  isTyping,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a listener for one room's events
func (a *WSAdapter) Subscribe(roomID string, l Listener) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.subs[roomID] == nil {
		a.subs[roomID] = make(map[int]Listener)
	}
	id := a.nextSub
	a.nextSub++
	a.subs[roomID][id] = l

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if listeners, ok := a.subs[roomID]; ok {
			delete(listeners, id)
			if len(listeners) == 0 {
				delete(a.subs, roomID)
			}
		}
	}
}

// SubscribeState registers a connection-state observer
func (a *WSAdapter) SubscribeState(h StateHandler) func() {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSub
	a.nextSub++
	a.stateSubs[id] = h

	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.stateSubs, id)
	}
}

// State returns the current connection state
func (a *WSAdapter) State() domain.ConnectionState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close tears the connection down permanently
func (a *WSAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	conn := a.conn
	a.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// enqueue hands a frame to the write pump, dropping when the buffer is full
func (a *WSAdapter) enqueue(evt domain.Event) {
	select {
	case a.outbound <- evt:
	default:
		a.log.Warn("outbound buffer full, dropping frame",
			zap.String("type", string(evt.Type)),
			zap.String("room_id", evt.RoomID))
	}
}

// readPump reads frames from one connection until it fails
func (a *WSAdapter) readPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var evt domain.Event
		if err := conn.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				a.log.Warn("websocket read failed", zap.Error(err))
			}
			a.handleDisconnect(conn)
			return
		}
		a.dispatch(evt)
	}
}

// writePump serializes all writes to one connection
func (a *WSAdapter) writePump(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case evt := <-a.outbound:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(evt); err != nil {
				a.handleDisconnect(conn)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				a.handleDisconnect(conn)
				return
			}
		}
	}
}

// dispatch fans an inbound event out to the room's listeners
func (a *WSAdapter) dispatch(evt domain.Event) {
	a.mu.Lock()
	listeners := make([]Listener, 0, len(a.subs[evt.RoomID]))
	for _, l := range a.subs[evt.RoomID] {
		listeners = append(listeners, l)
	}
	a.mu.Unlock()

	for _, l := range listeners {
		switch evt.Type {
		case domain.EventMessage:
			if l.OnMessage != nil {
				l.OnMessage(evt)
			}
		case domain.EventTyping:
			if l.OnTyping != nil {
				metrics.TypingSignalsTotal.WithLabelValues("inbound").Inc()
				l.OnTyping(evt)
			}
		case domain.EventError:
			if l.OnError != nil {
				l.OnError(evt)
			}
		}
	}
}

// handleDisconnect flips the state and kicks off the reconnect loop.
// Connection loss is reported as a state transition, never as an error to
// the caller.
func (a *WSAdapter) handleDisconnect(conn *websocket.Conn) {
	a.mu.Lock()
	if a.closed || a.conn != conn {
		// Already handled or superseded by a newer connection
		a.mu.Unlock()
		return
	}
	a.conn = nil
	a.state = domain.Disconnected
	a.mu.Unlock()

	conn.Close()
	a.notifyState(domain.Disconnected)

	go a.reconnect()
}

// reconnect dials with exponential backoff until it succeeds or the adapter
// is closed
func (a *WSAdapter) reconnect() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxInterval = 15 * time.Second
	bo.MaxElapsedTime = 0 // retry until closed

	err := backoff.Retry(func() error {
		a.mu.Lock()
		if a.closed {
			a.mu.Unlock()
			return backoff.Permanent(errAdapterClosed)
		}
		a.mu.Unlock()

		conn, _, err := a.dialer.Dial(a.url, a.header)
		if err != nil {
			return err
		}
		a.attach(conn)
		metrics.ReconnectsTotal.Inc()
		a.log.Info("transport reconnected")
		return nil
	}, bo)

	if err != nil && !errors.Is(err, errAdapterClosed) {
		a.log.Error("reconnect abandoned", zap.Error(err))
	}
}

// notifyState fans a state transition out to the observers
func (a *WSAdapter) notifyState(state domain.ConnectionState) {
	a.mu.Lock()
	handlers := make([]StateHandler, 0, len(a.stateSubs))
	for _, h := range a.stateSubs {
		handlers = append(handlers, h)
	}
	a.mu.Unlock()

	for _, h := range handlers {
		h(state)
	}
}
