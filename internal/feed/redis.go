package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "messages:job:"

// Channel returns the pub/sub channel carrying the events of jobID.
func Channel(jobID string) string { return channelPrefix + jobID }

// Redis is a Feed on Redis pub/sub.
type Redis struct {
	cli    *redis.Client
	logger *slog.Logger
}

// NewRedis returns a Feed using cli.
func NewRedis(cli *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{cli: cli, logger: logger}
}

// Publish sends ev on the channel of its record's job.
func (r *Redis) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.cli.Publish(ctx, Channel(ev.Record.JobID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe opens a subscription to the events of jobID. It returns once
// Redis has confirmed the subscription.
func (r *Redis) Subscribe(ctx context.Context, jobID string) (Subscription, error) {
	ps := r.cli.Subscribe(ctx, Channel(jobID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", jobID, err)
	}
	return newSubscription(ps.Channel(), ps, r.logger.With("job_id", jobID)), nil
}

type subscription struct {
	events chan Event
	done   chan struct{}
	closer io.Closer
	closed atomic.Bool
}

// newSubscription decodes the payloads of src until src is closed or the
// subscription is.
func newSubscription(src <-chan *redis.Message, closer io.Closer, logger *slog.Logger) *subscription {
	s := &subscription{
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		closer: closer,
	}
	go s.pump(src, logger)
	return s
}

func (s *subscription) pump(src <-chan *redis.Message, logger *slog.Logger) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-src:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("dropping malformed feed event", "channel", msg.Channel, "error", err.Error())
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) Events() <-chan Event { return s.events }

func (s *subscription) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	close(s.done)
	return s.closer.Close()
}
