package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/theoremus-urban-solutions/asset-tracking/internal/observability"
)

// ErrClosed is returned by Subscribe and Publish after a bus shuts down.
var ErrClosed = errors.New("bus: closed")

// InProcess is the single-instance Bus. Publish walks the matching
// subscriptions under a read lock and enqueues without blocking.
type InProcess struct {
	bufSize int

	mu     sync.RWMutex
	subs   map[string][]*Subscription
	closed bool

	dropped atomic.Uint64
}

// NewInProcess creates an in-process bus whose subscriptions buffer up to
// bufSize events each.
func NewInProcess(bufSize int) *InProcess {
	return &InProcess{
		bufSize: bufSize,
		subs:    make(map[string][]*Subscription),
	}
}

// Subscribe registers a subscription for topic, or TopicAll for everything.
func (b *InProcess) Subscribe(topic string) (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	sub := newSubscription(topic, b.bufSize, b.remove)
	b.subs[topic] = append(b.subs[topic], sub)
	return sub, nil
}

// Publish delivers ev to subscriptions of topic and of TopicAll. It never
// blocks on a subscriber.
func (b *InProcess) Publish(_ context.Context, topic string, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	for _, sub := range b.subs[topic] {
		b.count(sub.offer(ev))
	}
	if topic != TopicAll {
		for _, sub := range b.subs[TopicAll] {
			b.count(sub.offer(ev))
		}
	}
	return nil
}

func (b *InProcess) count(dropped uint64) {
	if dropped == 0 {
		return
	}
	b.dropped.Add(dropped)
	observability.DroppedEvents.Add(float64(dropped))
}

// Dropped returns the total events lost to full subscriber buffers.
func (b *InProcess) Dropped() uint64 { return b.dropped.Load() }

// Close cancels every subscription and rejects further use.
func (b *InProcess) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var all []*Subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*Subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.Unsubscribe()
	}
	return nil
}

// remove detaches the subscription under the write lock, so no publisher
// can touch it once Unsubscribe returns.
func (b *InProcess) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.topic]
	for i, s := range list {
		if s == sub {
			b.subs[sub.topic] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.topic]) == 0 {
		delete(b.subs, sub.topic)
	}
}
