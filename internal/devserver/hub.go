package devserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"lawlink-chat/internal/domain"
	"lawlink-chat/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dev harness only
	},
}

// Hub manages the room channels of every connected client. One client holds
// one socket and may be joined to many rooms at once.
//
// The hub echoes every published message back to its originator with the
// authoritative id and timestamp; the client engine relies on that echo to
// confirm its provisional entries.
type Hub struct {
	store *Store

	mu    sync.RWMutex
	rooms map[string]map[*hubClient]bool

	register   chan *hubClient
	unregister chan *hubClient
	inbound    chan inboundFrame
}

type inboundFrame struct {
	client *hubClient
	evt    domain.Event
}

// hubClient represents one connected websocket client
type hubClient struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	userID      string
	displayName string
}

// NewHub creates a hub over the store and starts its event loop
func NewHub(store *Store) *Hub {
	hub := &Hub{
		store:      store,
		rooms:      make(map[string]map[*hubClient]bool),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		inbound:    make(chan inboundFrame, 256),
	}

	go hub.run()

	return hub
}

// run handles hub operations
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			// Room membership is established by join frames, not by connect
			_ = client

		case client := <-h.unregister:
			h.mu.Lock()
			for roomID, members := range h.rooms {
				if members[client] {
					delete(members, client)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
			}
			h.mu.Unlock()
			close(client.send)

		case frame := <-h.inbound:
			h.handle(frame.client, frame.evt)
		}
	}
}

// handle routes one client-originated frame
func (h *Hub) handle(c *hubClient, evt domain.Event) {
	switch evt.Type {
	case domain.EventJoin:
		h.mu.Lock()
		if h.rooms[evt.RoomID] == nil {
			h.rooms[evt.RoomID] = make(map[*hubClient]bool)
		}
		h.rooms[evt.RoomID][c] = true
		h.mu.Unlock()

	case domain.EventLeave:
		h.mu.Lock()
		if members, ok := h.rooms[evt.RoomID]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, evt.RoomID)
			}
		}
		h.mu.Unlock()

	case domain.EventMessage:
		if evt.Message == nil {
			h.sendError(c, evt.RoomID, "message frame without a message")
			return
		}
		msg := *evt.Message
		msg.ID = uuid.New().String()
		msg.RoomID = evt.RoomID
		msg.SenderID = c.userID
		msg.CreatedAt = time.Now()
		if msg.Kind == "" {
			msg.Kind = domain.KindText
		}

		if !h.store.Append(msg) {
			h.sendError(c, evt.RoomID, "unknown room")
			return
		}

		// Broadcast to every member including the sender: the echo carries
		// the authoritative id and timestamp back to the originator
		h.broadcast(evt.RoomID, domain.Event{
			Type:       domain.EventMessage,
			RoomID:     evt.RoomID,
			SenderID:   c.userID,
			SenderName: c.displayName,
			Message:    &msg,
			Timestamp:  msg.CreatedAt,
		})

	case domain.EventTyping:
		h.broadcast(evt.RoomID, domain.Event{
			Type:       domain.EventTyping,
			RoomID:     evt.RoomID,
			SenderID:   c.userID,
			SenderName: c.displayName,
			IsTyping:   evt.IsTyping,
			Timestamp:  time.Now(),
		})
	}
}

// broadcast fans an event out to every member of a room
func (h *Hub) broadcast(roomID string, evt domain.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		logger.Error("failed to marshal broadcast frame", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.rooms[roomID] {
		select {
		case client.send <- payload:
		default:
			// Slow consumer; drop the frame rather than stall the room
		}
	}
}

// sendError delivers an error frame to one client
func (h *Hub) sendError(c *hubClient, roomID, message string) {
	payload, err := json.Marshal(domain.Event{
		Type:      domain.EventError,
		RoomID:    roomID,
		Error:     message,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

// ServeConn upgrades one authenticated request and runs its pumps
func (h *Hub) ServeConn(w http.ResponseWriter, r *http.Request, userID, displayName string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &hubClient{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 256),
		userID:      userID,
		displayName: displayName,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump reads frames from the socket into the hub
func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var evt domain.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			logger.Warn("invalid frame", zap.Error(err))
			continue
		}

		c.hub.inbound <- inboundFrame{client: c, evt: evt}
	}
}

// writePump writes frames and keepalive pings to the socket
func (c *hubClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
