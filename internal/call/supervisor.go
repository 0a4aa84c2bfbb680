package call

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"lawlink-chat/internal/domain"
	pkgerrors "lawlink-chat/pkg/errors"
	"lawlink-chat/pkg/metrics"
)

// AuthTokenSource supplies the auth token the credential exchange
// authenticates with
type AuthTokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

// TokenExchanger trades an auth token for a room-scoped media credential
type TokenExchanger interface {
	Exchange(ctx context.Context, roomID, kind, authToken string) (string, error)
}

// Supervisor tracks the lifecycle of the ephemeral media call layered on one
// room: Idle -> Requesting -> Active -> Idle, with Failed reachable from
// Requesting. It guarantees at most one Requesting-or-Active session per room
// per client; a second join attempt while one is in flight is rejected, not
// queued.
//
// The credential is treated as a single-use secret scoped to one join
// attempt: it lives only in the in-memory session and is never logged.
type Supervisor struct {
	roomID   string
	auth     AuthTokenSource
	tokens   TokenExchanger
	log      *zap.Logger
	onChange func(domain.CallSession)

	mu      sync.Mutex
	session domain.CallSession
	gen     int
}

// NewSupervisor creates a Supervisor for one room. onChange may be nil.
func NewSupervisor(roomID string, auth AuthTokenSource, tokens TokenExchanger, log *zap.Logger, onChange func(domain.CallSession)) *Supervisor {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Supervisor{
		roomID:   roomID,
		auth:     auth,
		tokens:   tokens,
		log:      log,
		onChange: onChange,
		session:  domain.CallSession{RoomID: roomID, State: domain.CallIdle},
	}
	return s
}

// Join starts a call attempt. Rejected while a previous attempt is still
// Requesting or Active. The two-step credential exchange runs asynchronously;
// the caller observes progress through the session state, not a blocking call.
func (s *Supervisor) Join(ctx context.Context, kind domain.CallKind) error {
	s.mu.Lock()
	if s.session.InFlight() {
		s.mu.Unlock()
		return pkgerrors.CallInProgressError()
	}

	s.gen++
	gen := s.gen
	s.session = domain.CallSession{
		RoomID: s.roomID,
		Kind:   kind,
		State:  domain.CallRequesting,
	}
	snapshot := s.session
	s.mu.Unlock()

	metrics.CallTransitionsTotal.WithLabelValues(string(domain.CallRequesting)).Inc()
	s.notify(snapshot)

	go s.exchange(ctx, gen, kind)

	return nil
}

// exchange performs the two-step credential retrieval for one join attempt
func (s *Supervisor) exchange(ctx context.Context, gen int, kind domain.CallKind) {
	authToken, err := s.auth.AuthToken(ctx)
	if err != nil {
		s.fail(gen, pkgerrors.CredentialError("obtaining auth token", err))
		return
	}

	credential, err := s.tokens.Exchange(ctx, s.roomID, string(kind), authToken)
	if err != nil {
		s.fail(gen, err)
		return
	}

	s.mu.Lock()
	if s.gen != gen || s.session.State != domain.CallRequesting {
		// The attempt was abandoned while the exchange was in flight; the
		// credential is single-use and simply discarded
		s.mu.Unlock()
		return
	}
	s.session.State = domain.CallActive
	s.session.Credential = credential
	snapshot := s.session
	s.mu.Unlock()

	metrics.CallTransitionsTotal.WithLabelValues(string(domain.CallActive)).Inc()
	s.log.Info("call active", zap.String("room_id", s.roomID), zap.String("kind", string(kind)))
	s.notify(snapshot)
}

// fail transitions a still-current attempt to Failed. Failed is a resting
// state: the next Join is accepted as a fresh attempt.
func (s *Supervisor) fail(gen int, err error) {
	s.mu.Lock()
	if s.gen != gen || s.session.State != domain.CallRequesting {
		s.mu.Unlock()
		return
	}
	s.session.State = domain.CallFailed
	s.session.Credential = ""
	s.session.FailReason = pkgerrors.GetAppError(err).Message
	snapshot := s.session
	s.mu.Unlock()

	metrics.CallTransitionsTotal.WithLabelValues(string(domain.CallFailed)).Inc()
	s.log.Warn("call attempt failed", zap.String("room_id", s.roomID), zap.Error(err))
	s.notify(snapshot)
}

// Leave ends the call from any state, clearing the credential. Idempotent.
// A leave during Requesting abandons the in-flight exchange; its credential,
// if any, is discarded when it lands.
func (s *Supervisor) Leave() {
	s.mu.Lock()
	if s.session.State == domain.CallIdle {
		s.mu.Unlock()
		return
	}
	s.gen++
	wasActive := s.session.State == domain.CallActive
	s.session = domain.CallSession{RoomID: s.roomID, State: domain.CallIdle}
	snapshot := s.session
	s.mu.Unlock()

	metrics.CallTransitionsTotal.WithLabelValues(string(domain.CallIdle)).Inc()
	if wasActive {
		s.log.Info("call ended", zap.String("room_id", s.roomID))
	}
	s.notify(snapshot)
}

// Session returns a copy of the current call session
func (s *Supervisor) Session() domain.CallSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Supervisor) notify(snapshot domain.CallSession) {
	if s.onChange != nil {
		s.onChange(snapshot)
	}
}
