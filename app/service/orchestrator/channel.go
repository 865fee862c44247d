package orchestrator

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type submission struct {
	input     string
	messageID uuid.UUID
	queuedAt  time.Time
}

// channel is one input/response pipeline holding at most one pending request.
type channel struct {
	kind    ChannelKind
	mode    Mode
	state   State
	pending *Request
	backlog []submission
}

func newChannel(kind ChannelKind, mode Mode) *channel {
	return &channel{
		kind: kind,
		mode: mode,
	}
}

// offer reports whether sub can be dispatched right away. Otherwise it is
// buffered according to the channel mode.
func (c *channel) offer(sub submission) bool {
	if c.state != StatePending {
		return true
	}

	switch c.mode {
	case ModeCoalesce:
		c.backlog = []submission{sub}
	case ModeQueue:
		c.backlog = append(c.backlog, sub)
	}

	return false
}

func (c *channel) begin(req *Request) {
	c.pending = req
	c.transition(StatePending)
}

// finish releases the pending request and returns the buffered submission
// that should be dispatched next, if any.
func (c *channel) finish(req *Request, failed bool) (submission, bool) {
	c.pending = nil
	if failed {
		c.transition(StateFailed)
	}
	c.transition(StateIdle)

	if len(c.backlog) == 0 {
		return submission{}, false
	}

	switch c.mode {
	case ModeCoalesce:
		next := c.backlog[0]
		c.backlog = nil

		if next.input == req.Input {
			return submission{}, false
		}

		return next, true
	default:
		next := c.backlog[0]
		c.backlog = c.backlog[1:]

		return next, true
	}
}

// reset cancels the pending request and drops the backlog.
func (c *channel) reset() *Request {
	cancelled := c.pending
	if cancelled != nil {
		cancelled.Cancelled = true
	}

	c.pending = nil
	c.backlog = nil
	c.state = StateIdle

	return cancelled
}

func (c *channel) transition(to State) {
	if c.state == to {
		return
	}

	slog.Debug("Channel state changed",
		"channel", c.kind,
		"from", c.state,
		"to", to,
	)

	c.state = to
}
