package session

import (
	"log/slog"
	"sync"
	"time"

	"acessonucleo-hub/internal/authn"
)

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Event is an auth-state change: a login or a logout.
type Event struct {
	Kind      EventKind
	Principal authn.Principal
	At        time.Time
}

// Bus fans auth-state events out to subscribers. Publish never blocks; a
// subscriber whose buffer is full misses the event.
type Bus struct {
	mu     sync.RWMutex
	subs   []chan Event
	closed bool
	log    *slog.Logger
}

func NewBus(log *slog.Logger) *Bus {
	return &Bus{log: log}
}

func (b *Bus) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.log.Warn("auth event dropped, subscriber is full",
				slog.String("kind", string(ev.Kind)),
				slog.String("user_id", ev.Principal.UserID))
		}
	}
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
