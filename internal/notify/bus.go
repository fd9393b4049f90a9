package notify

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventPostsUpdated is the only signal this service emits: a level-triggered
// "post state changed, re-fetch" notification with no payload.
const EventPostsUpdated = "posts_updated"

type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
}

// Bus is an in-memory fanout broadcaster for connected observers.
//
// Contract:
//   - Publish never blocks.
//   - An observer whose buffer is full is dropped from the membership set
//     and its channel closed; it must re-subscribe after a disconnect.
//   - Within one observer, events arrive in publish order.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a bus with no background goroutines; lifecycle is owned by
// the caller (built at process start, garbage collected at shutdown).
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.Mutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

// Publish delivers to every current subscriber without blocking. Sends are
// buffered non-blocking selects, so holding the lock across the loop is
// bounded and keeps channel closes ordered against in-flight sends.
func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Slow or gone observer: remove it so it never blocks or
			// fails delivery to the others.
			delete(b.subs, id)
			close(ch)
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	return ch, func() { b.drop(id) }
}

func (b *memBus) drop(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}
