// Package bus carries fire-and-forget broadcasts between the core and its
// connectors: in process through Bus, across processes through the framed
// TCP Server and Client, and optionally mirrored to Kafka.
package bus

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/danmuck/smsctl/internal/observability"
)

const DefaultSubscriberBuffer = 64

// Publisher accepts broadcasts. Publish never blocks on slow receivers.
type Publisher interface {
	Publish(b Broadcast) int
}

// Bus fans each published broadcast out to every matching subscription.
// A subscription whose buffer is full misses the broadcast.
type Bus struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
	log    zerolog.Logger
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	return &Bus{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    observability.ComponentLogger("bus"),
	}
}

// Subscription receives broadcasts accepted by its filter until closed.
type Subscription struct {
	bus    *Bus
	accept func(Kind) bool
	ch     chan Broadcast
	once   sync.Once
}

func (s *Subscription) C() <-chan Broadcast { return s.ch }

// Close detaches the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		defer s.bus.mu.Unlock()
		if _, ok := s.bus.subs[s]; ok {
			delete(s.bus.subs, s)
			close(s.ch)
		}
	})
}

// Subscribe receives the listed kinds, or every kind when none are given.
func (b *Bus) Subscribe(kinds ...Kind) *Subscription {
	if len(kinds) == 0 {
		return b.subscribe(func(Kind) bool { return true })
	}
	set := kindSet(kinds)
	return b.subscribe(func(k Kind) bool { return set[k] })
}

// SubscribeExcept receives every kind other than the listed ones.
func (b *Bus) SubscribeExcept(kinds ...Kind) *Subscription {
	set := kindSet(kinds)
	return b.subscribe(func(k Kind) bool { return !set[k] })
}

func (b *Bus) subscribe(accept func(Kind) bool) *Subscription {
	s := &Subscription{bus: b, accept: accept, ch: make(chan Broadcast, b.buffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Publish delivers msg to every matching subscription that has room and
// returns how many received it. Each receiver gets its own payload copy.
func (b *Bus) Publish(msg Broadcast) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0
	}
	delivered := 0
	for s := range b.subs {
		if !s.accept(msg.Kind) {
			continue
		}
		out := msg
		out.Payload = msg.Payload.Clone()
		select {
		case s.ch <- out:
			delivered++
		default:
			observability.RecordFrame("local", "dropped_full")
			b.log.Warn().Str("kind", string(msg.Kind)).Str("source", msg.Source).
				Msg("bus.Bus.Publish subscriber full, broadcast dropped")
		}
	}
	return delivered
}

// Close ends every subscription. Later publishes are discarded.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

func kindSet(kinds []Kind) map[Kind]bool {
	set := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}
