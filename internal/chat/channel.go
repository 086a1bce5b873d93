// Package chat implements job-scoped conversations on top of the message
// change feed.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"quicktasker/gig-service/internal/feed"
	"quicktasker/gig-service/internal/model"
)

// State is the lifecycle state of a Channel.
type State int

const (
	Idle State = iota
	Subscribed
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Subscribed:
		return "subscribed"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrState is returned when an operation does not fit the channel state.
	ErrState = errors.New("chat channel in wrong state")
	// ErrLagged is reported by Err when the reader of Updates fell so far
	// behind that the channel stopped following the feed.
	ErrLagged = errors.New("chat reader fell behind")
)

// updateBuffer is how many unread updates a Channel holds before it gives
// up on its reader.
const updateBuffer = 64

// Channel is the message history of one job, kept current by a feed
// subscription. The history only grows: INSERT events are appended in
// arrival order and nothing is ever removed or reordered.
type Channel struct {
	feed     feed.Feed
	messages feed.MessageStore
	logger   *slog.Logger

	mu      sync.Mutex
	state   State
	jobID   string
	history []model.Message
	seen    map[string]struct{}
	sub     feed.Subscription
	updates chan model.Message
	done    chan struct{}
	err     error
}

// NewChannel returns an Idle channel.
func NewChannel(f feed.Feed, messages feed.MessageStore, logger *slog.Logger) *Channel {
	return &Channel{feed: f, messages: messages, logger: logger}
}

// State returns the current state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open subscribes to the events of jobID, then loads its history. Events
// for messages already in the history are skipped.
func (c *Channel) Open(ctx context.Context, jobID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Idle {
		return fmt.Errorf("open in state %s: %w", c.state, ErrState)
	}

	sub, err := c.feed.Subscribe(ctx, jobID)
	if err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	history, err := c.messages.ListByJob(ctx, jobID)
	if err != nil {
		if cerr := sub.Close(); cerr != nil {
			c.logger.Warn("release subscription failed", "job_id", jobID, "error", cerr.Error())
		}
		return fmt.Errorf("load history: %w", err)
	}

	c.jobID = jobID
	c.history = history
	c.seen = make(map[string]struct{}, len(history))
	for _, m := range history {
		c.seen[m.ID] = struct{}{}
	}
	c.sub = sub
	c.updates = make(chan model.Message, updateBuffer)
	c.done = make(chan struct{})
	c.state = Subscribed

	go c.follow(sub, c.updates, c.done)
	return nil
}

func (c *Channel) follow(sub feed.Subscription, updates chan<- model.Message, done <-chan struct{}) {
	defer close(updates)
	for ev := range sub.Events() {
		if ev.Type != feed.Insert {
			continue
		}

		c.mu.Lock()
		if _, dup := c.seen[ev.Record.ID]; dup || c.state != Subscribed {
			c.mu.Unlock()
			continue
		}
		c.seen[ev.Record.ID] = struct{}{}
		c.history = append(c.history, ev.Record)
		c.mu.Unlock()

		select {
		case updates <- ev.Record:
		case <-done:
			return
		default:
			c.logger.Warn("chat reader too slow, stopping updates", "job_id", ev.Record.JobID, "message_id", ev.Record.ID)
			c.mu.Lock()
			c.err = ErrLagged
			c.mu.Unlock()
			return
		}
	}
}

// JobID returns the job the channel is subscribed to.
func (c *Channel) JobID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobID
}

// Messages returns a copy of the history.
func (c *Channel) Messages() []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.history)
}

// Updates delivers every message appended after Open. It is closed when
// the subscription ends or the reader falls behind; Err tells which.
func (c *Channel) Updates() <-chan model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updates
}

// Err returns ErrLagged once Updates was closed because its reader fell
// behind, and nil otherwise.
func (c *Channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close releases the subscription. Calling Close a second time returns
// feed.ErrClosed.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case Closed:
		return feed.ErrClosed
	case Idle:
		c.state = Closed
		return nil
	}
	c.state = Closed
	close(c.done)
	return c.sub.Close()
}
