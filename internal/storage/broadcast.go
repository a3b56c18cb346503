package storage

import "sync"

// Event signals that a cache key changed.
type Event struct {
	Key     string
	Removed bool
}

// Broadcaster fans cache change events out to subscribers. Anything mutating
// the cache publishes; the session store subscribes to mirror changes made by
// other processes sharing the cache directory.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a listener. The returned cancel func must be called to
// release it; events are dropped for subscribers that fall behind.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 16)

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; skip rather than block the writer.
		}
	}
}
