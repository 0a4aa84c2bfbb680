package domain

import (
	"time"
)

// PresenceEntry represents one peer currently signaling "typing" in a room.
// A peer never has more than one entry per room; repeated signals refresh
// ExpiresAt instead of adding entries.
type PresenceEntry struct {
	PeerID      string    `json:"peer_id"`
	DisplayName string    `json:"display_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}
