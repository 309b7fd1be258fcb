package identity

import (
	"sync"

	"go.pilab.hu/gtgram/domain"
)

// Broadcaster fans a provider's sign-in state changes out to subscribers.
// Providers embed it to satisfy the Subscribe half of
// domain.IdentityProvider. Callbacks run synchronously on the emitting
// goroutine, so state consumers observe transitions in order.
type Broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func(*domain.Identity)
}

// Subscribe registers fn for sign-in state changes. A nil identity means
// signed out. The returned function cancels the subscription.
func (b *Broadcaster) Subscribe(fn func(*domain.Identity)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(*domain.Identity))
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Emit delivers a sign-in state change to all current subscribers.
func (b *Broadcaster) Emit(identity *domain.Identity) {
	b.mu.Lock()
	fns := make([]func(*domain.Identity), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
