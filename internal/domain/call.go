package domain

// CallKind represents type of call
type CallKind string

const (
	CallAudio CallKind = "audio"
	CallVideo CallKind = "video"
)

// CallState tracks the lifecycle of a media call attempt
type CallState string

const (
	CallIdle       CallState = "idle"
	CallRequesting CallState = "requesting"
	CallActive     CallState = "active"
	CallEnded      CallState = "ended"
	CallFailed     CallState = "failed"
)

// CallSession represents the ephemeral audio/video session layered on a room.
// At most one session may be Requesting or Active per room per client.
// The credential is a single-use secret; it is never logged or persisted.
type CallSession struct {
	RoomID     string    `json:"room_id"`
	Kind       CallKind  `json:"kind,omitempty"`
	State      CallState `json:"state"`
	Credential string    `json:"-"`
	FailReason string    `json:"fail_reason,omitempty"`
}

// InFlight reports whether a join attempt is pending or established
func (s CallSession) InFlight() bool {
	return s.State == CallRequesting || s.State == CallActive
}
