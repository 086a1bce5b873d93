// Package feed is the change feed of the message collection. Every stored
// message is published as an INSERT event on a channel scoped to its job;
// chat views subscribe to that channel.
package feed

import (
	"context"
	"errors"
	"log/slog"

	"quicktasker/gig-service/internal/model"
)

// EventType is the kind of row change.
type EventType string

const (
	Insert EventType = "INSERT"
	Update EventType = "UPDATE"
	Delete EventType = "DELETE"
)

// Event is one row change of the message collection.
type Event struct {
	Type   EventType     `json:"type"`
	Record model.Message `json:"record"`
}

// ErrClosed is returned by Subscription.Close after the first call.
var ErrClosed = errors.New("subscription already closed")

// Subscription delivers the events of one job until closed. The Events
// channel is closed once the subscription ends.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// Publisher emits events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Feed publishes events and opens per-job subscriptions.
type Feed interface {
	Publisher
	Subscribe(ctx context.Context, jobID string) (Subscription, error)
}

// MessageStore is the subset of store.Messages that produces events.
type MessageStore interface {
	ListByJob(ctx context.Context, jobID string) ([]model.Message, error)
	Insert(ctx context.Context, msg model.Message) (model.Message, error)
}

// NotifyingMessages publishes an INSERT event for every message it stores.
type NotifyingMessages struct {
	MessageStore
	pub    Publisher
	logger *slog.Logger
}

// NewNotifyingMessages wraps ms so that inserts are published on pub.
func NewNotifyingMessages(ms MessageStore, pub Publisher, logger *slog.Logger) *NotifyingMessages {
	return &NotifyingMessages{MessageStore: ms, pub: pub, logger: logger}
}

// Insert stores msg and publishes it. A failed publish is logged and does
// not fail the insert: the message is stored, subscribers just miss it
// until they reload the history.
func (n *NotifyingMessages) Insert(ctx context.Context, msg model.Message) (model.Message, error) {
	stored, err := n.MessageStore.Insert(ctx, msg)
	if err != nil {
		return model.Message{}, err
	}
	if err := n.pub.Publish(ctx, Event{Type: Insert, Record: stored}); err != nil {
		n.logger.Warn("publish message event failed", "job_id", stored.JobID, "message_id", stored.ID, "error", err.Error())
	}
	return stored, nil
}
