package presence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawlink-chat/internal/domain"
)

func typingEvent(sender, name string, typing bool) domain.Event {
	return domain.Event{
		Type:       domain.EventTyping,
		RoomID:     "room-1",
		SenderID:   sender,
		SenderName: name,
		IsTyping:   typing,
		Timestamp:  time.Now(),
	}
}

func TestTypingStartCreatesEntry(t *testing.T) {
	tr := NewTracker("U1")
	defer tr.Close()

	tr.Apply(typingEvent("U2", "Dana", true))

	entries := tr.List()
	require.Len(t, entries, 1)
	assert.Equal(t, "U2", entries[0].PeerID)
	assert.Equal(t, "Dana", entries[0].DisplayName)
}

func TestRepeatedSignalsRefreshNotDuplicate(t *testing.T) {
	tr := NewTracker("U1")
	defer tr.Close()

	tr.Apply(typingEvent("U2", "Dana", true))
	first := tr.List()[0].ExpiresAt

	time.Sleep(10 * time.Millisecond)
	tr.Apply(typingEvent("U2", "Dana", true))

	entries := tr.List()
	require.Len(t, entries, 1)
	assert.True(t, entries[0].ExpiresAt.After(first))
}

func TestTypingStopRemovesImmediately(t *testing.T) {
	tr := NewTracker("U1")
	defer tr.Close()

	tr.Apply(typingEvent("U2", "Dana", true))
	tr.Apply(typingEvent("U2", "Dana", false))

	assert.Empty(t, tr.List())
}

func TestSelfIsNeverTracked(t *testing.T) {
	tr := NewTracker("U1")
	defer tr.Close()

	tr.Apply(typingEvent("U1", "Me", true))

	assert.Empty(t, tr.List())
}

func TestEntryExpiresWithoutStopSignal(t *testing.T) {
	tr := NewTracker("U1", WithTTL(40*time.Millisecond))
	defer tr.Close()

	tr.Apply(typingEvent("U2", "Dana", true))
	require.Len(t, tr.List(), 1)

	assert.Eventually(t, func() bool {
		return len(tr.List()) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMissingNameFallsBackToPeerID(t *testing.T) {
	tr := NewTracker("U1")
	defer tr.Close()

	tr.Apply(typingEvent("U2", "", true))

	assert.Equal(t, "U2", tr.List()[0].DisplayName)
}

func TestOnChangeFires(t *testing.T) {
	changes := make(chan struct{}, 8)
	tr := NewTracker("U1", WithOnChange(func() { changes <- struct{}{} }))
	defer tr.Close()

	tr.Apply(typingEvent("U2", "Dana", true))
	tr.Apply(typingEvent("U2", "Dana", false))

	assert.Len(t, changes, 2)
}

func TestClosedTrackerIgnoresEvents(t *testing.T) {
	tr := NewTracker("U1")
	tr.Close()

	tr.Apply(typingEvent("U2", "Dana", true))

	assert.Empty(t, tr.List())
}
