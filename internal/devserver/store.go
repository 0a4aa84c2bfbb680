package devserver

import (
	"sync"

	"lawlink-chat/internal/domain"
)

// Store is the in-memory room store backing the dev harness. It stands in for
// the durable message store the production engine talks to over the same
// endpoints.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*roomRecord
}

type roomRecord struct {
	room     domain.Room
	messages []domain.Message
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{rooms: make(map[string]*roomRecord)}
}

// Seed registers a room with its participants
func (s *Store) Seed(room domain.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = &roomRecord{room: room}
}

// Room returns a room's metadata
func (s *Store) Room(id string) (domain.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return rec.room, true
}

// Append persists a message at the end of its room's history
func (s *Store) Append(msg domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rooms[msg.RoomID]
	if !ok {
		return false
	}
	rec.messages = append(rec.messages, msg)
	return true
}

// Messages returns a room's history in ascending created_at order
func (s *Store) Messages(roomID string) ([]domain.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.rooms[roomID]
	if !ok {
		return nil, false
	}
	out := make([]domain.Message, len(rec.messages))
	copy(out, rec.messages)
	return out, true
}
