package domain

// ConnectionState reflects the health of the shared transport connection.
// Only the transport adapter mutates it; every other component reads it.
type ConnectionState string

const (
	Connected    ConnectionState = "connected"
	Disconnected ConnectionState = "disconnected"
)

// Participant is one member of a room
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Room is a logical channel scoping one conversation between a client and a lawyer
type Room struct {
	ID           string        `json:"id"`
	Participants []Participant `json:"participants"`
}

// ParticipantName resolves a participant id to its display name, falling back
// to the raw id for unknown peers
func (r *Room) ParticipantName(id string) string {
	for _, p := range r.Participants {
		if p.ID == id {
			return p.DisplayName
		}
	}
	return id
}
