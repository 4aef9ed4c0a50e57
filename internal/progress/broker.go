package progress

import (
	"log/slog"
	"sync"
	"time"
)

const (
	// subscriberBuffer bounds the per-subscriber channel; a consumer that
	// falls further behind loses the oldest events, never blocks ingestion.
	subscriberBuffer = 256
	// historyLimit bounds the per-session replay buffer used by polling
	// clients and late subscribers.
	historyLimit = 500
)

type subscriber struct {
	ch chan Event
}

type session struct {
	subs    map[*subscriber]struct{}
	history []Event
	closed  bool
}

// Broker fans ingestion events out to per-session subscribers. One Broker is
// constructed per process and injected wherever events are emitted; there is
// no global registry.
type Broker struct {
	mu       sync.Mutex
	sessions map[string]*session
	log      *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		sessions: make(map[string]*session),
		log:      slog.Default().With("component", "progress-broker"),
	}
}

func (b *Broker) session(id string) *session {
	s, ok := b.sessions[id]
	if !ok {
		s = &session{subs: make(map[*subscriber]struct{})}
		b.sessions[id] = s
	}
	return s
}

// Publish appends an event to the session history and delivers it to every
// subscriber. Slow subscribers drop their oldest buffered event.
func (b *Broker) Publish(sessionID string, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.session(sessionID)
	if s.closed {
		return
	}
	s.history = append(s.history, ev)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	for sub := range s.subs {
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

// Subscribe attaches a new consumer to a session and replays the session
// history into the returned channel first. The returned cancel function must
// be called when the consumer goes away.
func (b *Broker) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.session(sessionID)
	sub := &subscriber{ch: make(chan Event, subscriberBuffer)}

	// Replay history so a consumer attaching mid-job still sees the full
	// ordered stream (bounded by historyLimit).
	for _, ev := range s.history {
		select {
		case sub.ch <- ev:
		default:
		}
	}
	if s.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	s.subs[sub] = struct{}{}

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if cur, ok := b.sessions[sessionID]; ok {
			if _, live := cur.subs[sub]; live {
				delete(cur.subs, sub)
				close(sub.ch)
			}
		}
	}
	return sub.ch, cancel
}

// History returns a copy of the buffered events for a session.
func (b *Broker) History(sessionID string) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok {
		return nil
	}
	out := make([]Event, len(s.history))
	copy(out, s.history)
	return out
}

// Close ends a session: subscriber channels are closed and later publishes
// are dropped. History stays available for polling until Forget.
func (b *Broker) Close(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[sessionID]
	if !ok || s.closed {
		return
	}
	s.closed = true
	for sub := range s.subs {
		close(sub.ch)
		delete(s.subs, sub)
	}
}

// CloseAfter closes the session once the grace period elapses, giving
// streaming consumers time to drain the terminal event.
func (b *Broker) CloseAfter(sessionID string, grace time.Duration) {
	time.AfterFunc(grace, func() { b.Close(sessionID) })
}

// Forget drops all state for a session.
func (b *Broker) Forget(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.sessions[sessionID]; ok {
		for sub := range s.subs {
			close(sub.ch)
		}
		delete(b.sessions, sessionID)
	}
}
