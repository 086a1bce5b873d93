package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
	"github.com/redis/go-redis/v9"

	"quicktasker/gig-service/internal/model"
)

type countingCloser struct{ n int }

func (c *countingCloser) Close() error {
	c.n++
	return nil
}

func receive(t *testing.T, ch <-chan Event) (Event, bool) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		return ev, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}, false
	}
}

func TestChannel(t *testing.T) {
	if got := Channel("job-1"); got != "messages:job:job-1" {
		t.Errorf("Channel() = %q", got)
	}
}

func TestSubscription_DecodesAndSkipsMalformed(t *testing.T) {
	src := make(chan *redis.Message, 3)
	closer := &countingCloser{}
	sub := newSubscription(src, closer, slogt.New(t))
	defer sub.Close()

	src <- &redis.Message{Channel: Channel("job-1"), Payload: `not json`}
	src <- &redis.Message{Channel: Channel("job-1"), Payload: `{"type":"INSERT","record":{"id":"m1","job_id":"job-1","content":"hi"}}`}

	ev, ok := receive(t, sub.Events())
	if !ok {
		t.Fatal("events closed early")
	}
	want := Event{Type: Insert, Record: model.Message{ID: "m1", JobID: "job-1", Content: "hi"}}
	if diff := cmp.Diff(want, ev); diff != "" {
		t.Errorf("event mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscription_CloseExactlyOnce(t *testing.T) {
	src := make(chan *redis.Message)
	closer := &countingCloser{}
	sub := newSubscription(src, closer, slogt.New(t))

	if err := sub.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := sub.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() = %v, want ErrClosed", err)
	}
	if closer.n != 1 {
		t.Errorf("underlying Close called %d times, want 1", closer.n)
	}
	if _, ok := receive(t, sub.Events()); ok {
		t.Error("Events() should be closed after Close")
	}
}

func TestSubscription_SourceClosed(t *testing.T) {
	src := make(chan *redis.Message)
	sub := newSubscription(src, &countingCloser{}, slogt.New(t))
	close(src)
	if _, ok := receive(t, sub.Events()); ok {
		t.Error("Events() should close with its source")
	}
	_ = sub.Close()
}

type testMessages struct {
	insert func(msg model.Message) (model.Message, error)
}

func (m *testMessages) ListByJob(context.Context, string) ([]model.Message, error) { return nil, nil }

func (m *testMessages) Insert(_ context.Context, msg model.Message) (model.Message, error) {
	return m.insert(msg)
}

type testPublisher struct {
	events []Event
	err    error
}

func (p *testPublisher) Publish(_ context.Context, ev Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestNotifyingMessages_Insert(t *testing.T) {
	ms := &testMessages{insert: func(msg model.Message) (model.Message, error) {
		msg.ID = "m1"
		return msg, nil
	}}
	pub := &testPublisher{}
	n := NewNotifyingMessages(ms, pub, slogt.New(t))

	got, err := n.Insert(context.Background(), model.Message{JobID: "job-1", Content: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	want := []Event{{Type: Insert, Record: got}}
	if diff := cmp.Diff(want, pub.events); diff != "" {
		t.Errorf("published events (-want +got):\n%s", diff)
	}
}

func TestNotifyingMessages_PublishFailureKeepsMessage(t *testing.T) {
	ms := &testMessages{insert: func(msg model.Message) (model.Message, error) {
		msg.ID = "m1"
		return msg, nil
	}}
	n := NewNotifyingMessages(ms, &testPublisher{err: errors.New("redis down")}, slogt.New(t))

	got, err := n.Insert(context.Background(), model.Message{JobID: "job-1", Content: "hello"})
	if err != nil || got.ID != "m1" {
		t.Errorf("Insert() = %+v, %v", got, err)
	}
}

func TestNotifyingMessages_StoreFailureNotPublished(t *testing.T) {
	ms := &testMessages{insert: func(model.Message) (model.Message, error) {
		return model.Message{}, errors.New("insert message: timeout")
	}}
	pub := &testPublisher{}
	n := NewNotifyingMessages(ms, pub, slogt.New(t))

	if _, err := n.Insert(context.Background(), model.Message{JobID: "job-1"}); err == nil {
		t.Fatal("Insert() expected error")
	}
	if len(pub.events) != 0 {
		t.Errorf("published %d events for a failed insert", len(pub.events))
	}
}
