package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawlink-chat/internal/domain"
	"lawlink-chat/internal/transport"
	pkgerrors "lawlink-chat/pkg/errors"
)

const (
	testRoom = "room-1"
	testSelf = "U1"
)

// fakeTransport records outbound traffic and lets a test inject inbound events
type fakeTransport struct {
	mu        sync.Mutex
	state     domain.ConnectionState
	joins     []string
	leaves    []string
	published []domain.Message
	typings   []bool
	listeners map[int]transport.Listener
	nextID    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		state:     domain.Connected,
		listeners: make(map[int]transport.Listener),
	}
}

func (f *fakeTransport) JoinRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, roomID)
}

func (f *fakeTransport) LeaveRoom(roomID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, roomID)
}

func (f *fakeTransport) PublishMessage(roomID string, msg domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
}

func (f *fakeTransport) PublishTyping(roomID string, isTyping bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typings = append(f.typings, isTyping)
}

func (f *fakeTransport) Subscribe(roomID string, l transport.Listener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = l
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeTransport) SubscribeState(h transport.StateHandler) func() {
	return func() {}
}

func (f *fakeTransport) State() domain.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) setState(state domain.ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = state
}

// emit dispatches an event to every live listener the way the real adapter does
func (f *fakeTransport) emit(evt domain.Event) {
	f.mu.Lock()
	listeners := make([]transport.Listener, 0, len(f.listeners))
	for _, l := range f.listeners {
		listeners = append(listeners, l)
	}
	f.mu.Unlock()
	for _, l := range listeners {
		switch evt.Type {
		case domain.EventMessage:
			if l.OnMessage != nil {
				l.OnMessage(evt)
			}
		case domain.EventTyping:
			if l.OnTyping != nil {
				l.OnTyping(evt)
			}
		case domain.EventError:
			if l.OnError != nil {
				l.OnError(evt)
			}
		}
	}
}

func (f *fakeTransport) publishedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

func (f *fakeTransport) lastPublished() domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[len(f.published)-1]
}

type fakeHistory struct {
	room     *domain.Room
	messages []domain.Message
	block    chan struct{} // when non-nil, Messages waits for it (or ctx)
}

func (f *fakeHistory) Room(ctx context.Context, roomID string) (*domain.Room, error) {
	if f.room != nil {
		return f.room, nil
	}
	return &domain.Room{ID: roomID}, nil
}

func (f *fakeHistory) Messages(ctx context.Context, roomID string) ([]domain.Message, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.messages, nil
}

type fakeIdentity struct{}

func (fakeIdentity) UserID() string      { return testSelf }
func (fakeIdentity) DisplayName() string { return "Alice" }
func (fakeIdentity) AuthToken(ctx context.Context) (string, error) {
	return "auth-token", nil
}

type fakeExchanger struct {
	credential string
	err        error
}

func (f *fakeExchanger) Exchange(ctx context.Context, roomID, kind, authToken string) (string, error) {
	return f.credential, f.err
}

func mountTestSession(t *testing.T, tr *fakeTransport, hist *fakeHistory, opts ...func(*Options)) *Session {
	t.Helper()
	o := Options{
		Transport: tr,
		History:   hist,
		Identity:  fakeIdentity{},
		Tokens:    &fakeExchanger{credential: "media-cred"},
	}
	for _, fn := range opts {
		fn(&o)
	}
	s, err := Mount(context.Background(), testRoom, o)
	require.NoError(t, err)
	t.Cleanup(s.Unmount)
	return s
}

func remoteMessage(id, sender, body string) domain.Event {
	return domain.Event{
		Type:     domain.EventMessage,
		RoomID:   testRoom,
		SenderID: sender,
		Message: &domain.Message{
			ID:        id,
			RoomID:    testRoom,
			SenderID:  sender,
			Kind:      domain.KindText,
			Body:      body,
			CreatedAt: time.Now(),
		},
		Timestamp: time.Now(),
	}
}

func TestMountRequiresRoomID(t *testing.T) {
	_, err := Mount(context.Background(), "  ", Options{
		Transport: newFakeTransport(),
		History:   &fakeHistory{},
		Identity:  fakeIdentity{},
		Tokens:    &fakeExchanger{},
	})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeMissingField))
}

func TestMountRequiresCollaborators(t *testing.T) {
	_, err := Mount(context.Background(), testRoom, Options{})
	assert.Error(t, err)
}

func TestMountJoinsRoomAndLoadsHistory(t *testing.T) {
	tr := newFakeTransport()
	hist := &fakeHistory{messages: []domain.Message{
		{ID: "m1", RoomID: testRoom, SenderID: "U2", Kind: domain.KindText, Body: "hello", CreatedAt: time.Now()},
		{ID: "m2", RoomID: testRoom, SenderID: testSelf, Kind: domain.KindText, Body: "hi", CreatedAt: time.Now()},
	}}
	s := mountTestSession(t, tr, hist)

	assert.Equal(t, []string{testRoom}, tr.joins)
	assert.Eventually(t, func() bool {
		return len(s.Snapshot().Timeline) == 2
	}, time.Second, 5*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, "m1", snap.Timeline[0].ID)
	assert.False(t, snap.Timeline[0].IsSelf)
	assert.True(t, snap.Timeline[1].IsSelf)
	assert.Equal(t, domain.EntryConfirmed, snap.Timeline[0].State)
}

func TestSendMessageRendersProvisionalThenConfirmsOnEcho(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	require.NoError(t, s.SendMessage("hello there"))

	snap := s.Snapshot()
	require.Len(t, snap.Timeline, 1)
	assert.Equal(t, domain.EntryProvisional, snap.Timeline[0].State)
	assert.True(t, snap.Timeline[0].IsSelf)
	require.Equal(t, 1, tr.publishedCount())
	assert.Equal(t, "hello there", tr.lastPublished().Body)

	// Server echoes the publish back with its authoritative id
	tr.emit(remoteMessage("srv-1", testSelf, "hello there"))

	snap = s.Snapshot()
	require.Len(t, snap.Timeline, 1)
	assert.Equal(t, domain.EntryConfirmed, snap.Timeline[0].State)
	assert.Equal(t, "srv-1", snap.Timeline[0].ID)
}

func TestSendRejectedWhileDisconnected(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	tr.setState(domain.Disconnected)
	err := s.SendMessage("hello")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeDisconnected))
	assert.Empty(t, s.Snapshot().Timeline)
	assert.Zero(t, tr.publishedCount())
}

func TestSendRejectsEmptyBody(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	err := s.SendMessage("   ")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeValidation))
	assert.Zero(t, tr.publishedCount())
}

func TestSendFileValidatesKindAndURL(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	assert.Error(t, s.SendFile(domain.KindText, "https://x/y.pdf", "y.pdf", 10))
	assert.Error(t, s.SendFile(domain.KindFile, "", "y.pdf", 10))

	require.NoError(t, s.SendFile(domain.KindFile, "https://x/y.pdf", "y.pdf", 1024))
	msg := tr.lastPublished()
	assert.Equal(t, domain.KindFile, msg.Kind)
	assert.Equal(t, "y.pdf", msg.FileName)
	assert.Equal(t, int64(1024), msg.FileSize)
}

func TestRemoteMessageIncrementsUnreadUntilMarkRead(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	tr.emit(remoteMessage("m1", "U2", "one"))
	tr.emit(remoteMessage("m2", "U2", "two"))
	assert.Equal(t, 2, s.Snapshot().Unread)

	s.MarkRead()
	assert.Zero(t, s.Snapshot().Unread)
}

func TestTypingEventEnrichedFromRoomParticipants(t *testing.T) {
	tr := newFakeTransport()
	hist := &fakeHistory{room: &domain.Room{
		ID: testRoom,
		Participants: []domain.Participant{
			{ID: "U2", DisplayName: "Bilal the Lawyer"},
		},
	}}
	s := mountTestSession(t, tr, hist)

	// Wait for the room metadata fetch before emitting
	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.room != nil
	}, time.Second, 5*time.Millisecond)

	tr.emit(domain.Event{
		Type:     domain.EventTyping,
		RoomID:   testRoom,
		SenderID: "U2",
		IsTyping: true,
	})

	snap := s.Snapshot()
	require.Len(t, snap.Presence, 1)
	assert.Equal(t, "Bilal the Lawyer", snap.Presence[0].DisplayName)
}

func TestCallFlowThroughSession(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	require.NoError(t, s.JoinCall(domain.CallVideo))
	assert.Eventually(t, func() bool {
		return s.Snapshot().Call.State == domain.CallActive
	}, time.Second, 5*time.Millisecond)

	err := s.JoinCall(domain.CallVideo)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeCallInProgress))

	s.LeaveCall()
	assert.Equal(t, domain.CallIdle, s.Snapshot().Call.State)
}

func TestUnmountCancelsInFlightHistory(t *testing.T) {
	tr := newFakeTransport()
	hist := &fakeHistory{
		messages: []domain.Message{{ID: "m1", RoomID: testRoom, SenderID: "U2", Kind: domain.KindText, Body: "late"}},
		block:    make(chan struct{}),
	}
	s := mountTestSession(t, tr, hist)

	s.Unmount()
	close(hist.block)

	// The late result must not resurface in the (closed) timeline
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.Snapshot().Timeline)
	assert.Equal(t, []string{testRoom}, tr.leaves)
}

func TestUnmountIsIdempotentAndRefusesSends(t *testing.T) {
	tr := newFakeTransport()
	s := mountTestSession(t, tr, &fakeHistory{})

	s.Unmount()
	s.Unmount()
	assert.Equal(t, []string{testRoom}, tr.leaves)

	err := s.SendMessage("after unmount")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeInternal))
	err = s.SetTyping(true)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.ErrCodeInternal))
}

func TestOnChangeDeliversSnapshots(t *testing.T) {
	tr := newFakeTransport()
	var mu sync.Mutex
	var snapshots []Snapshot
	s := mountTestSession(t, tr, &fakeHistory{}, func(o *Options) {
		o.OnChange = func(snap Snapshot) {
			mu.Lock()
			snapshots = append(snapshots, snap)
			mu.Unlock()
		}
	})

	require.NoError(t, s.SendMessage("hello"))

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, testRoom, last.RoomID)
	require.Len(t, last.Timeline, 1)
	assert.Equal(t, domain.EntryProvisional, last.Timeline[0].State)
}
