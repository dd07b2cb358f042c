package actuator

import "sync"

// UnlockBroadcaster fans an unlock signal out to in-process observers (e.g.
// a visible lock UI instance). Fire-and-forget: a subscriber that is not
// draining its channel misses the signal.
type UnlockBroadcaster struct {
	mu   sync.Mutex
	subs map[int]chan struct{}
	next int
}

// NewUnlockBroadcaster returns an empty broadcaster.
func NewUnlockBroadcaster() *UnlockBroadcaster {
	return &UnlockBroadcaster{subs: make(map[int]chan struct{})}
}

// Subscribe registers an observer. The returned cancel func must be called
// when the observer goes away.
func (b *UnlockBroadcaster) Subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan struct{}, 1)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Broadcast signals all current subscribers without blocking.
func (b *UnlockBroadcaster) Broadcast() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
