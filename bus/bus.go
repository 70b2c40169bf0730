package bus

import (
	"context"
	"sync"
	"sync/atomic"
)

// Bus is the publish/subscribe channel between the tracking core and its
// observers. Implementations must keep Publish non-blocking with respect to
// slow subscribers.
type Bus interface {
	// Publish delivers the event to every live subscription matching the
	// topic. It returns an error only for transport-level failures (e.g.
	// a broken broker connection), never for slow subscribers.
	Publish(ctx context.Context, topic string, ev Event) error
	// Subscribe registers a new subscription for the topic (or TopicAll).
	// It fails only when the bus is closed.
	Subscribe(topic string) (*Subscription, error)
	// Dropped returns the total number of events dropped across all
	// subscriptions because of full buffers.
	Dropped() uint64
	Close() error
}

// Subscription is one subscriber's live event feed. Events are read from
// Events(); the buffer policy is drop-oldest when full.
type Subscription struct {
	topic   string
	ch      chan Event
	done    chan struct{}
	dropped atomic.Uint64
	once    sync.Once
	cancel  func(*Subscription)
}

func newSubscription(topic string, bufSize int, cancel func(*Subscription)) *Subscription {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Subscription{
		topic:  topic,
		ch:     make(chan Event, bufSize),
		done:   make(chan struct{}),
		cancel: cancel,
	}
}

// Events returns the channel of delivered events. The channel is never
// closed; select on Done to observe cancellation.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Done is closed when the subscription is canceled or its bus shuts down.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Topic returns the topic this subscription was created with.
func (s *Subscription) Topic() string { return s.topic }

// Dropped returns how many events this subscription lost to backpressure.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Unsubscribe cancels the subscription. No delivery is attempted after it
// returns.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancel(s)
		}
		close(s.done)
	})
}

// offer enqueues the event without ever blocking. When the buffer is full
// the oldest buffered event is evicted (latest-state-wins). Returns the
// number of events dropped.
func (s *Subscription) offer(ev Event) uint64 {
	select {
	case s.ch <- ev:
		return 0
	default:
	}
	var dropped uint64
	select {
	case <-s.ch:
		dropped++
	default:
	}
	select {
	case s.ch <- ev:
	default:
		// Lost the race against another publisher refilling the buffer;
		// the newest event is the one sacrificed.
		dropped++
	}
	s.dropped.Add(dropped)
	return dropped
}
