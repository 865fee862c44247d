package surface

import (
	"testing"

	"cuecard/app/client/gemini"
	"cuecard/app/service/orchestrator"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotTracksSinkCalls(t *testing.T) {
	s := NewService()
	assert.Equal(t, InitialGuidance, s.Snapshot().Guidance)

	s.GuidanceFailed(gemini.KindRequestFailed)
	assert.Equal(t, gemini.KindRequestFailed, s.Snapshot().LastError)

	s.GuidanceUpdated("**Lead with impact**")
	s.TypingChanged(true)
	s.MessageAppended(orchestrator.Message{ID: uuid.New(), Content: "hi", Sender: orchestrator.SenderUser})

	snap := s.Snapshot()
	assert.Equal(t, "**Lead with impact**", snap.Guidance)
	assert.Empty(t, snap.LastError)
	assert.True(t, snap.Typing)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "hi", snap.Messages[0].Content)
}

func TestResetClearsState(t *testing.T) {
	s := NewService()
	s.GuidanceUpdated("x")
	s.MessageAppended(orchestrator.Message{Content: "m"})
	s.TypingChanged(true)

	s.Reset("session-2")

	snap := s.Snapshot()
	assert.Equal(t, InitialGuidance, snap.Guidance)
	assert.False(t, snap.Typing)
	assert.Empty(t, snap.Messages)
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	s := NewService()
	events, cancel := s.Subscribe()
	defer cancel()

	id := uuid.New()
	s.TypingChanged(true)
	s.TypingChanged(false)
	s.ChatFailed(id, gemini.KindEmptyResponse, "No response generated")

	ev := <-events
	assert.Equal(t, EventTypingChanged, ev.Type)
	require.NotNil(t, ev.Typing)
	assert.True(t, *ev.Typing)

	ev = <-events
	require.NotNil(t, ev.Typing)
	assert.False(t, *ev.Typing)

	ev = <-events
	assert.Equal(t, EventChatError, ev.Type)
	assert.Equal(t, gemini.KindEmptyResponse, ev.Kind)
	assert.Equal(t, id, *ev.MessageID)
	assert.Equal(t, "No response generated", ev.Fallback)
	assert.False(t, ev.Timestamp.IsZero())
}

func TestSubscribeReplacesListener(t *testing.T) {
	s := NewService()

	first, cancelFirst := s.Subscribe()
	second, cancelSecond := s.Subscribe()
	defer cancelSecond()

	_, ok := <-first
	assert.False(t, ok)

	cancelFirst()

	s.GuidanceUpdated("still delivered")
	ev := <-second
	assert.Equal(t, "still delivered", ev.Guidance)
}

func TestPublishDoesNotBlockWhenListenerLags(t *testing.T) {
	s := NewService()
	_, cancel := s.Subscribe()
	defer cancel()

	for i := 0; i < listenerBuffer*2; i++ {
		s.GuidanceUpdated("x")
	}
}
