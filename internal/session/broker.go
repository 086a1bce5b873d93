package session

import (
	"sync"
	"sync/atomic"
)

// EventType is the kind of session change.
type EventType int

const (
	SignedIn EventType = iota + 1
	SignedOut
)

func (t EventType) String() string {
	switch t {
	case SignedIn:
		return "SIGNED_IN"
	case SignedOut:
		return "SIGNED_OUT"
	}
	return "UNKNOWN"
}

// Event is a sign-in or sign-out of one user.
type Event struct {
	Type   EventType
	UserID string
}

// Source delivers session changes.
type Source interface {
	OnSessionChange(fn func(Event)) (unsubscribe func())
}

// Broker fans session changes out to subscribers in this process.
// Publish calls every subscriber synchronously before returning.
type Broker struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

// NewBroker returns an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[int]func(Event))}
}

// OnSessionChange registers fn and returns a function that removes it.
func (b *Broker) OnSessionChange(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every current subscriber.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Status is the sign-in state of one user as seen by a long-lived view.
// The callback registered by Watch is its only writer; LoggedIn and Done
// may be called from any goroutine.
type Status struct {
	loggedIn    atomic.Bool
	done        chan struct{}
	closeOnce   sync.Once
	unsubscribe func()
}

// Watch returns a Status for userID that starts logged in and follows the
// events of src until Stop.
func Watch(src Source, userID string) *Status {
	s := &Status{done: make(chan struct{})}
	s.loggedIn.Store(true)
	s.unsubscribe = src.OnSessionChange(func(ev Event) {
		if ev.UserID != userID {
			return
		}
		switch ev.Type {
		case SignedIn:
			s.loggedIn.Store(true)
		case SignedOut:
			s.loggedIn.Store(false)
			s.closeOnce.Do(func() { close(s.done) })
		}
	})
	return s
}

// LoggedIn reports the current state.
func (s *Status) LoggedIn() bool { return s.loggedIn.Load() }

// Done is closed once the user signs out.
func (s *Status) Done() <-chan struct{} { return s.done }

// Stop detaches s from its source.
func (s *Status) Stop() { s.unsubscribe() }
