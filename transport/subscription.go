package transport

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// DefaultQueueSize is used for subscriptions created with a non-positive queue size.
const DefaultQueueSize = 1

// Subscription is a consumer's attachment to a topic. Messages are handed to its callback on a
// goroutine owned by the subscription, in publish order.
type Subscription struct {
	id        uuid.UUID
	topic     string
	hints     TransportHints
	queueSize int
	cb        func(interface{})
	bus       *Bus

	mu      sync.Mutex
	pending []interface{}
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

func newSubscription(b *Bus, topic string, queueSize int, hints TransportHints, cb func(interface{})) *Subscription {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Subscription{
		id:        uuid.New(),
		topic:     topic,
		hints:     hints,
		queueSize: queueSize,
		cb:        cb,
		bus:       b,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

// ID uniquely identifies the subscription.
func (s *Subscription) ID() uuid.UUID {
	return s.id
}

// Topic is the subscribed topic.
func (s *Subscription) Topic() string {
	return s.topic
}

// Transport is the transport the subscription receives.
func (s *Subscription) Transport() string {
	return s.hints.Transport
}

// SubscriptionStats counts the messages of one subscription.
type SubscriptionStats struct {
	Delivered uint64
	Dropped   uint64
}

// Stats returns how many messages were handed to the callback and how many were dropped because
// the queue was full.
func (s *Subscription) Stats() SubscriptionStats {
	return SubscriptionStats{Delivered: s.delivered.Load(), Dropped: s.dropped.Load()}
}

// Unsubscribe detaches the subscription from its topic. Messages still queued are discarded; a
// callback already running is allowed to finish. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	if !s.close() {
		return
	}
	s.bus.removeSubscription(s)
}

// close stops delivery and returns whether this call did it.
func (s *Subscription) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	s.pending = nil
	close(s.done)
	return true
}

// enqueue queues a message, dropping the oldest pending one when more than limit would be queued.
func (s *Subscription) enqueue(msg interface{}, limit int) {
	if limit <= 0 || limit > s.queueSize {
		limit = s.queueSize
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	for len(s.pending) >= limit {
		s.pending[0] = nil
		s.pending = s.pending[1:]
		s.dropped.Inc()
	}
	s.pending = append(s.pending, msg)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) next() (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.pending) == 0 {
		return nil, false
	}
	msg := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	return msg, true
}

func (s *Subscription) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			msg, ok := s.next()
			if !ok {
				break
			}
			s.cb(msg)
			s.delivered.Inc()
		}
	}
}
