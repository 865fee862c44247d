// Package orchestrator turns transcription fragments and chat messages into
// guidance requests. It is not safe for concurrent use: a single goroutine
// must own it and feed results back through Resolve.
package orchestrator

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"cuecard/app/client/gemini"
	"cuecard/app/service/history"
	"cuecard/app/service/prompt"
	"cuecard/app/util/metrics"

	"github.com/google/uuid"
)

var (
	ErrNoSession      = errors.New("no active session")
	ErrUnknownMessage = errors.New("message is not available for resend")
)

type Orchestrator struct {
	store *history.Store
	sink  Sink
	now   func() time.Time

	session      *SessionConfig
	systemPrompt string
	guidance     *channel
	chat         *channel
	failed       map[uuid.UUID]string
	nextID       uint64
}

func New(store *history.Store, sink Sink) *Orchestrator {
	return &Orchestrator{
		store:    store,
		sink:     sink,
		now:      time.Now,
		guidance: newChannel(ChannelGuidance, ModeCoalesce),
		chat:     newChannel(ChannelChat, ModeQueue),
		failed:   make(map[uuid.UUID]string),
	}
}

// Start replaces the current session, if any, with a fresh one.
func (o *Orchestrator) Start(cfg SessionConfig) {
	o.End()

	o.store.Reset()
	o.session = &cfg
	o.systemPrompt = prompt.BuildSystemPrompt(cfg.Persona, cfg.CustomPrompt)

	slog.Debug("Orchestrator reset for session",
		"session_id", cfg.ID,
		"persona", cfg.Persona.ID,
	)
}

// End cancels pending requests and clears the conversation. Results of the
// cancelled requests are discarded when they arrive.
func (o *Orchestrator) End() {
	if o.session == nil {
		return
	}

	o.guidance.reset()
	if o.chat.reset() != nil {
		o.sink.TypingChanged(false)
	}
	metrics.QueuedMessages.Set(0)

	o.store.Reset()
	clear(o.failed)

	slog.Debug("Orchestrator session closed", "session_id", o.session.ID)
	o.session = nil
}

func (o *Orchestrator) Active() bool {
	return o.session != nil
}

func (o *Orchestrator) State(kind ChannelKind) State {
	return o.channel(kind).state
}

// SubmitFragment offers a transcription fragment to the guidance channel and
// returns the request to execute, if one should start now.
func (o *Orchestrator) SubmitFragment(text string) *Request {
	text = strings.TrimSpace(text)
	if text == "" || o.session == nil {
		return nil
	}

	sub := submission{
		input:    text,
		queuedAt: o.now(),
	}
	if !o.guidance.offer(sub) {
		metrics.CoalescedFragments.Inc()
		return nil
	}

	return o.dispatch(o.guidance, sub)
}

// SubmitMessage queues a chat message and returns the request to execute, if
// the chat channel was idle.
func (o *Orchestrator) SubmitMessage(text string) *Request {
	text = strings.TrimSpace(text)
	if text == "" || o.session == nil {
		return nil
	}

	sub := submission{
		input:     text,
		messageID: uuid.New(),
		queuedAt:  o.now(),
	}
	if !o.chat.offer(sub) {
		metrics.QueuedMessages.Set(float64(len(o.chat.backlog)))
		return nil
	}

	return o.dispatch(o.chat, sub)
}

// Resend submits the content of a failed chat message again.
func (o *Orchestrator) Resend(messageID uuid.UUID) (*Request, error) {
	if o.session == nil {
		return nil, ErrNoSession
	}

	content, ok := o.failed[messageID]
	if !ok {
		return nil, ErrUnknownMessage
	}
	delete(o.failed, messageID)

	return o.SubmitMessage(content), nil
}

// Resolve applies the outcome of req and returns the next request of the same
// channel to execute, if any.
func (o *Orchestrator) Resolve(req *Request, response string, err error) *Request {
	ch := o.channel(req.Channel)

	if req.Cancelled || ch.pending != req {
		metrics.RequestsTotal.WithLabelValues(string(req.Channel), string(gemini.KindCancelled)).Inc()
		slog.Debug("Discarding result of cancelled request",
			"channel", req.Channel,
			"request_id", req.ID,
			"session_id", req.SessionID,
		)
		return nil
	}

	kind := gemini.KindOf(err)

	outcome := "success"
	if err != nil {
		outcome = string(kind)
	}
	metrics.RequestsTotal.WithLabelValues(string(req.Channel), outcome).Inc()
	metrics.RequestDuration.WithLabelValues(string(req.Channel)).Observe(o.now().Sub(req.SubmittedAt).Seconds())

	switch req.Channel {
	case ChannelGuidance:
		o.resolveGuidance(req, response, err)
	case ChannelChat:
		o.resolveChat(req, response, err)
	}

	next, ok := ch.finish(req, err != nil)
	if ch == o.chat {
		metrics.QueuedMessages.Set(float64(len(o.chat.backlog)))
	}
	if !ok {
		return nil
	}

	return o.dispatch(ch, next)
}

func (o *Orchestrator) resolveGuidance(req *Request, response string, err error) {
	if err != nil {
		kind := gemini.KindOf(err)

		slog.Warn("Guidance request failed",
			"session_id", req.SessionID,
			"kind", kind,
			"error", err,
		)

		if kind != gemini.KindCancelled {
			o.sink.GuidanceFailed(kind)
		}
		return
	}

	o.store.AppendTurn(req.Input, response)
	o.sink.GuidanceUpdated(response)
}

func (o *Orchestrator) resolveChat(req *Request, response string, err error) {
	o.sink.TypingChanged(false)

	userMsg := Message{
		ID:        req.MessageID,
		Content:   req.Input,
		Sender:    SenderUser,
		Timestamp: req.QueuedAt,
	}

	if err != nil {
		kind := gemini.KindOf(err)

		slog.Warn("Chat request failed",
			"session_id", req.SessionID,
			"message_id", req.MessageID,
			"kind", kind,
			"error", err,
		)

		if kind == gemini.KindCancelled {
			return
		}

		userMsg.Failed = true
		o.failed[userMsg.ID] = userMsg.Content
		o.sink.MessageAppended(userMsg)
		o.sink.ChatFailed(userMsg.ID, kind, gemini.FallbackOf(err))
		return
	}

	o.sink.MessageAppended(userMsg)
	o.sink.MessageAppended(Message{
		ID:        uuid.New(),
		Content:   response,
		Sender:    SenderAI,
		Timestamp: o.now(),
	})
	o.store.AppendTurn(req.Input, response)
}

func (o *Orchestrator) dispatch(ch *channel, sub submission) *Request {
	o.nextID++

	req := &Request{
		ID:           o.nextID,
		SessionID:    o.session.ID,
		Channel:      ch.kind,
		Input:        sub.input,
		MessageID:    sub.messageID,
		SystemPrompt: o.systemPrompt,
		QueuedAt:     sub.queuedAt,
		SubmittedAt:  o.now(),
	}

	if ch.kind == ChannelChat {
		req.UserPrompt = prompt.BuildUserPrompt(sub.input, "", true)
	} else {
		req.UserPrompt = prompt.BuildUserPrompt(sub.input, o.store.RecentContext(history.DefaultRecentTurns), false)
	}

	ch.begin(req)

	if ch.kind == ChannelChat {
		o.sink.TypingChanged(true)
	}

	return req
}

func (o *Orchestrator) channel(kind ChannelKind) *channel {
	if kind == ChannelChat {
		return o.chat
	}

	return o.guidance
}
