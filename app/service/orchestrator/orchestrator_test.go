package orchestrator

import (
	"errors"
	"testing"

	"cuecard/app/client/gemini"
	"cuecard/app/service/history"
	"cuecard/app/service/prompt"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events   []string
	guidance []string
	errors   []gemini.Kind
	messages []Message
	typing   []bool
	failures []uuid.UUID
}

func (s *recordingSink) GuidanceUpdated(text string) {
	s.events = append(s.events, "guidance")
	s.guidance = append(s.guidance, text)
}

func (s *recordingSink) GuidanceFailed(kind gemini.Kind) {
	s.events = append(s.events, "guidance_error")
	s.errors = append(s.errors, kind)
}

func (s *recordingSink) MessageAppended(msg Message) {
	s.events = append(s.events, "message:"+string(msg.Sender))
	s.messages = append(s.messages, msg)
}

func (s *recordingSink) TypingChanged(typing bool) {
	if typing {
		s.events = append(s.events, "typing:on")
	} else {
		s.events = append(s.events, "typing:off")
	}
	s.typing = append(s.typing, typing)
}

func (s *recordingSink) ChatFailed(messageID uuid.UUID, kind gemini.Kind, _ string) {
	s.events = append(s.events, "chat_error")
	s.failures = append(s.failures, messageID)
	s.errors = append(s.errors, kind)
}

func newStarted(t *testing.T) (*Orchestrator, *history.Store, *recordingSink) {
	t.Helper()

	store := history.New()
	sink := &recordingSink{}
	o := New(store, sink)

	persona, ok := prompt.Lookup("interview")
	require.True(t, ok)
	o.Start(SessionConfig{ID: "session-1", Persona: persona})

	return o, store, sink
}

var errFailed = &gemini.Error{Kind: gemini.KindRequestFailed, Status: 500}

func TestEmptyInputIsRejected(t *testing.T) {
	o, store, sink := newStarted(t)

	for _, text := range []string{"", "   ", "\n", "\t \n"} {
		assert.Nil(t, o.SubmitFragment(text))
		assert.Nil(t, o.SubmitMessage(text))
	}

	assert.Equal(t, StateIdle, o.State(ChannelGuidance))
	assert.Equal(t, StateIdle, o.State(ChannelChat))
	assert.Equal(t, 0, store.Len())
	assert.Empty(t, sink.events)
}

func TestInputWithoutSessionIsIgnored(t *testing.T) {
	o := New(history.New(), &recordingSink{})

	assert.False(t, o.Active())
	assert.Nil(t, o.SubmitFragment("hello"))
	assert.Nil(t, o.SubmitMessage("hello"))

	_, err := o.Resend(uuid.New())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestFragmentStartsRequest(t *testing.T) {
	o, _, _ := newStarted(t)

	req := o.SubmitFragment("  Tell me about yourself ")
	require.NotNil(t, req)

	assert.Equal(t, ChannelGuidance, req.Channel)
	assert.Equal(t, "Tell me about yourself", req.Input)
	assert.Equal(t, "session-1", req.SessionID)
	assert.Equal(t, "Current question/statement: Tell me about yourself", req.UserPrompt)
	assert.Contains(t, req.SystemPrompt, "interview assistant")
	assert.Equal(t, StatePending, o.State(ChannelGuidance))
}

func TestGuidanceSingleFlightAndCoalescing(t *testing.T) {
	o, _, sink := newStarted(t)

	first := o.SubmitFragment("F1")
	require.NotNil(t, first)

	assert.Nil(t, o.SubmitFragment("F2"))
	assert.Nil(t, o.SubmitFragment("F3"))
	assert.Equal(t, StatePending, o.State(ChannelGuidance))

	next := o.Resolve(first, "R1", nil)
	require.NotNil(t, next)
	assert.Equal(t, "F3", next.Input)
	assert.Equal(t, StatePending, o.State(ChannelGuidance))

	assert.Nil(t, o.Resolve(next, "R3", nil))
	assert.Equal(t, StateIdle, o.State(ChannelGuidance))
	assert.Equal(t, []string{"R1", "R3"}, sink.guidance)
}

func TestCoalescingSkipsUnchangedFragment(t *testing.T) {
	o, _, _ := newStarted(t)

	first := o.SubmitFragment("same")
	require.NotNil(t, first)
	assert.Nil(t, o.SubmitFragment("changed"))
	assert.Nil(t, o.SubmitFragment("same"))

	assert.Nil(t, o.Resolve(first, "R", nil))
	assert.Equal(t, StateIdle, o.State(ChannelGuidance))
}

func TestGuidanceSuccessAppendsTurn(t *testing.T) {
	o, store, sink := newStarted(t)

	req := o.SubmitFragment("Tell me about yourself")
	require.NotNil(t, req)
	o.Resolve(req, "**I have 5 years of experience...**", nil)

	turns := store.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "Tell me about yourself", turns[0].Input)
	assert.Equal(t, "**I have 5 years of experience...**", turns[0].Response)
	assert.Equal(t, []string{"**I have 5 years of experience...**"}, sink.guidance)

	next := o.SubmitFragment("What about weaknesses?")
	require.NotNil(t, next)
	assert.Equal(t,
		"Previous conversation context:\nTell me about yourself\n\nCurrent question/statement: What about weaknesses?",
		next.UserPrompt,
	)
}

func TestGuidanceFailureReturnsToIdle(t *testing.T) {
	o, store, sink := newStarted(t)

	req := o.SubmitFragment("Q1")
	require.NotNil(t, req)

	assert.Nil(t, o.Resolve(req, "", errFailed))
	assert.Equal(t, StateIdle, o.State(ChannelGuidance))
	assert.Equal(t, []gemini.Kind{gemini.KindRequestFailed}, sink.errors)
	assert.Equal(t, 0, store.Len())

	retry := o.SubmitFragment("Q2")
	require.NotNil(t, retry)
	assert.Equal(t, "Q2", retry.Input)
}

func TestGuidanceFailureDrainsBufferedFragment(t *testing.T) {
	o, _, _ := newStarted(t)

	req := o.SubmitFragment("Q1")
	require.NotNil(t, req)
	assert.Nil(t, o.SubmitFragment("Q1 and more"))

	next := o.Resolve(req, "", errors.New("network down"))
	require.NotNil(t, next)
	assert.Equal(t, "Q1 and more", next.Input)
}

func TestChatFIFO(t *testing.T) {
	o, store, sink := newStarted(t)

	m1 := o.SubmitMessage("M1")
	require.NotNil(t, m1)
	assert.Nil(t, o.SubmitMessage("M2"))
	assert.Nil(t, o.SubmitMessage("M3"))

	assert.Equal(t, "M1", m1.UserPrompt)

	m2 := o.Resolve(m1, "A1", nil)
	require.NotNil(t, m2)
	assert.Equal(t, "M2", m2.Input)

	m3 := o.Resolve(m2, "A2", nil)
	require.NotNil(t, m3)
	assert.Equal(t, "M3", m3.Input)

	assert.Nil(t, o.Resolve(m3, "A3", nil))
	assert.Equal(t, StateIdle, o.State(ChannelChat))

	contents := make([]string, 0, len(sink.messages))
	for _, msg := range sink.messages {
		contents = append(contents, msg.Content)
	}
	assert.Equal(t, []string{"M1", "A1", "M2", "A2", "M3", "A3"}, contents)
	assert.Equal(t, 3, store.Len())
}

func TestChatTypingAndAppendOrder(t *testing.T) {
	o, store, sink := newStarted(t)

	req := o.SubmitMessage("How should I open?")
	require.NotNil(t, req)
	assert.Equal(t, []string{"typing:on"}, sink.events)

	o.Resolve(req, "Start with a summary.", nil)

	assert.Equal(t, []string{"typing:on", "typing:off", "message:user", "message:ai"}, sink.events)
	assert.Equal(t, req.MessageID, sink.messages[0].ID)
	assert.Equal(t, "Start with a summary.", sink.messages[1].Content)
	require.Equal(t, 1, store.Len())
	assert.Equal(t, "How should I open?", store.Turns()[0].Input)
}

func TestChatUsesNoHistory(t *testing.T) {
	o, _, _ := newStarted(t)

	g := o.SubmitFragment("earlier question")
	o.Resolve(g, "answer", nil)

	req := o.SubmitMessage("  standalone  ")
	require.NotNil(t, req)
	assert.Equal(t, "standalone", req.UserPrompt)
}

func TestChatFailureAdvancesQueueAndAllowsResend(t *testing.T) {
	o, store, sink := newStarted(t)

	m1 := o.SubmitMessage("M1")
	require.NotNil(t, m1)
	assert.Nil(t, o.SubmitMessage("M2"))

	m2 := o.Resolve(m1, "", errFailed)
	require.NotNil(t, m2)
	assert.Equal(t, "M2", m2.Input)

	require.Len(t, sink.messages, 1)
	failed := sink.messages[0]
	assert.True(t, failed.Failed)
	assert.Equal(t, "M1", failed.Content)
	assert.Equal(t, []uuid.UUID{failed.ID}, sink.failures)
	assert.Equal(t, 0, store.Len())

	o.Resolve(m2, "A2", nil)

	resent, err := o.Resend(failed.ID)
	require.NoError(t, err)
	require.NotNil(t, resent)
	assert.Equal(t, "M1", resent.Input)
	assert.NotEqual(t, failed.ID, resent.MessageID)

	_, err = o.Resend(failed.ID)
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestTypingClearedOncePerRequest(t *testing.T) {
	o, _, sink := newStarted(t)

	m1 := o.SubmitMessage("M1")
	o.SubmitMessage("M2")
	m2 := o.Resolve(m1, "", errFailed)
	o.Resolve(m2, "A2", nil)

	assert.Equal(t, []bool{true, false, true, false}, sink.typing)
}

func TestChannelsAreIndependent(t *testing.T) {
	o, _, _ := newStarted(t)

	g := o.SubmitFragment("fragment")
	c := o.SubmitMessage("message")

	require.NotNil(t, g)
	require.NotNil(t, c)
	assert.Equal(t, StatePending, o.State(ChannelGuidance))
	assert.Equal(t, StatePending, o.State(ChannelChat))
}

func TestEndDiscardsLateResults(t *testing.T) {
	o, store, sink := newStarted(t)

	g := o.SubmitFragment("question")
	c := o.SubmitMessage("message")
	o.SubmitMessage("queued")

	o.End()

	assert.True(t, g.Cancelled)
	assert.True(t, c.Cancelled)
	assert.False(t, o.Active())
	assert.Equal(t, StateIdle, o.State(ChannelGuidance))
	assert.Equal(t, StateIdle, o.State(ChannelChat))

	eventsAtEnd := len(sink.events)

	assert.Nil(t, o.Resolve(g, "late", nil))
	assert.Nil(t, o.Resolve(c, "late", nil))

	assert.Len(t, sink.events, eventsAtEnd)
	assert.Equal(t, 0, store.Len())
}

func TestStartResetsPreviousSession(t *testing.T) {
	o, store, _ := newStarted(t)

	req := o.SubmitFragment("old")
	o.Resolve(req, "answer", nil)
	stale := o.SubmitFragment("stale")
	require.Equal(t, 1, store.Len())

	persona, _ := prompt.Lookup("exam")
	o.Start(SessionConfig{ID: "session-2", Persona: persona, CustomPrompt: "Organic chemistry"})

	assert.Equal(t, 0, store.Len())
	assert.True(t, stale.Cancelled)

	next := o.SubmitFragment("new")
	require.NotNil(t, next)
	assert.Equal(t, "session-2", next.SessionID)
	assert.Contains(t, next.SystemPrompt, "exam assistant")
	assert.Contains(t, next.SystemPrompt, "Organic chemistry")
	assert.Equal(t, "Current question/statement: new", next.UserPrompt)
}

func TestCancelledKindIsSilent(t *testing.T) {
	o, _, sink := newStarted(t)

	g := o.SubmitFragment("q")
	o.Resolve(g, "", &gemini.Error{Kind: gemini.KindCancelled})

	c := o.SubmitMessage("m")
	o.Resolve(c, "", &gemini.Error{Kind: gemini.KindCancelled})

	assert.Empty(t, sink.errors)
	assert.Empty(t, sink.messages)
	assert.Equal(t, []bool{true, false}, sink.typing)
}

func TestSupersededChatResultIsDiscarded(t *testing.T) {
	o, store, sink := newStarted(t)

	m1 := o.SubmitMessage("M1")
	require.NotNil(t, m1)
	assert.Nil(t, o.SubmitMessage("M2"))

	m2 := o.Resolve(m1, "A1", nil)
	require.NotNil(t, m2)

	eventsBefore := len(sink.events)
	messagesBefore := len(sink.messages)

	// A second result for M1 arrives while M2 is pending.
	assert.Nil(t, o.Resolve(m1, "A1 again", nil))

	// A result for a request that was never dispatched.
	stray := *m2
	assert.Nil(t, o.Resolve(&stray, "stray", nil))

	assert.Len(t, sink.events, eventsBefore)
	assert.Len(t, sink.messages, messagesBefore)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, StatePending, o.State(ChannelChat))

	assert.Nil(t, o.Resolve(m2, "A2", nil))

	contents := make([]string, 0, len(sink.messages))
	for _, msg := range sink.messages {
		contents = append(contents, msg.Content)
	}
	assert.Equal(t, []string{"M1", "A1", "M2", "A2"}, contents)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, StateIdle, o.State(ChannelChat))
}
