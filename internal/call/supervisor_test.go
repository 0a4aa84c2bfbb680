package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lawlink-chat/internal/domain"
	pkgerrors "lawlink-chat/pkg/errors"
)

// Mocks
type MockAuthSource struct {
	mock.Mock
}

func (m *MockAuthSource) AuthToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

type MockExchanger struct {
	mock.Mock
}

func (m *MockExchanger) Exchange(ctx context.Context, roomID, kind, authToken string) (string, error) {
	args := m.Called(ctx, roomID, kind, authToken)
	return args.String(0), args.Error(1)
}

// blockingExchanger holds the exchange until released, to pin the supervisor
// in the Requesting state
type blockingExchanger struct {
	release    chan struct{}
	credential string
	err        error
}

func (b *blockingExchanger) Exchange(ctx context.Context, roomID, kind, authToken string) (string, error) {
	<-b.release
	return b.credential, b.err
}

func TestJoinReachesActiveWithCredential(t *testing.T) {
	auth := new(MockAuthSource)
	tokens := new(MockExchanger)
	auth.On("AuthToken", mock.Anything).Return("auth-token", nil)
	tokens.On("Exchange", mock.Anything, "room-1", "video", "auth-token").Return("media-cred", nil)

	s := NewSupervisor("room-1", auth, tokens, nil, nil)

	require.NoError(t, s.Join(context.Background(), domain.CallVideo))
	assert.Equal(t, domain.CallRequesting, s.Session().State)

	assert.Eventually(t, func() bool {
		return s.Session().State == domain.CallActive
	}, time.Second, 5*time.Millisecond)

	sess := s.Session()
	assert.Equal(t, "media-cred", sess.Credential)
	assert.Equal(t, domain.CallVideo, sess.Kind)
	tokens.AssertExpectations(t)
}

func TestSecondJoinWhileInFlightIsRejected(t *testing.T) {
	auth := new(MockAuthSource)
	auth.On("AuthToken", mock.Anything).Return("auth-token", nil)
	tokens := &blockingExchanger{release: make(chan struct{}), credential: "media-cred"}

	transitions := make(chan domain.CallState, 8)
	s := NewSupervisor("room-1", auth, tokens, nil, func(cs domain.CallSession) {
		transitions <- cs.State
	})

	require.NoError(t, s.Join(context.Background(), domain.CallVideo))

	err := s.Join(context.Background(), domain.CallVideo)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeCallInProgress))

	close(tokens.release)
	assert.Eventually(t, func() bool {
		return s.Session().State == domain.CallActive
	}, time.Second, 5*time.Millisecond)

	// Exactly one Requesting -> Active pair; the rejected join produced no
	// transition at all
	assert.Equal(t, domain.CallRequesting, <-transitions)
	assert.Equal(t, domain.CallActive, <-transitions)
	assert.Empty(t, transitions)
}

func TestExchangeFailureEndsInFailed(t *testing.T) {
	auth := new(MockAuthSource)
	tokens := new(MockExchanger)
	auth.On("AuthToken", mock.Anything).Return("auth-token", nil)
	tokens.On("Exchange", mock.Anything, "room-1", "audio", "auth-token").
		Return("", pkgerrors.CredentialError("token service unavailable", nil))

	s := NewSupervisor("room-1", auth, tokens, nil, nil)
	require.NoError(t, s.Join(context.Background(), domain.CallAudio))

	assert.Eventually(t, func() bool {
		return s.Session().State == domain.CallFailed
	}, time.Second, 5*time.Millisecond)

	sess := s.Session()
	assert.Empty(t, sess.Credential)
	assert.NotEmpty(t, sess.FailReason)
}

func TestRetryAfterFailureIsAFreshAttempt(t *testing.T) {
	auth := new(MockAuthSource)
	tokens := new(MockExchanger)
	auth.On("AuthToken", mock.Anything).Return("auth-token", nil)
	tokens.On("Exchange", mock.Anything, "room-1", "video", "auth-token").
		Return("", pkgerrors.CredentialError("boom", nil)).Once()
	tokens.On("Exchange", mock.Anything, "room-1", "video", "auth-token").
		Return("media-cred", nil).Once()

	s := NewSupervisor("room-1", auth, tokens, nil, nil)

	require.NoError(t, s.Join(context.Background(), domain.CallVideo))
	assert.Eventually(t, func() bool {
		return s.Session().State == domain.CallFailed
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Join(context.Background(), domain.CallVideo))
	assert.Eventually(t, func() bool {
		return s.Session().State == domain.CallActive
	}, time.Second, 5*time.Millisecond)
}

func TestAuthTokenFailureEndsInFailed(t *testing.T) {
	auth := new(MockAuthSource)
	auth.On("AuthToken", mock.Anything).Return("", assert.AnError)
	tokens := new(MockExchanger)

	s := NewSupervisor("room-1", auth, tokens, nil, nil)
	require.NoError(t, s.Join(context.Background(), domain.CallVideo))

	assert.Eventually(t, func() bool {
		return s.Session().State == domain.CallFailed
	}, time.Second, 5*time.Millisecond)
	tokens.AssertNotCalled(t, "Exchange")
}

func TestLeaveDuringRequestingDiscardsCredential(t *testing.T) {
	auth := new(MockAuthSource)
	auth.On("AuthToken", mock.Anything).Return("auth-token", nil)
	tokens := &blockingExchanger{release: make(chan struct{}), credential: "media-cred"}

	s := NewSupervisor("room-1", auth, tokens, nil, nil)
	require.NoError(t, s.Join(context.Background(), domain.CallVideo))

	s.Leave()
	assert.Equal(t, domain.CallIdle, s.Session().State)

	// The exchange lands after the leave; its credential must be discarded
	close(tokens.release)
	time.Sleep(50 * time.Millisecond)
	sess := s.Session()
	assert.Equal(t, domain.CallIdle, sess.State)
	assert.Empty(t, sess.Credential)
}

func TestLeaveIsIdempotent(t *testing.T) {
	auth := new(MockAuthSource)
	tokens := new(MockExchanger)

	s := NewSupervisor("room-1", auth, tokens, nil, nil)
	s.Leave()
	s.Leave()

	assert.Equal(t, domain.CallIdle, s.Session().State)
}
