// Package msgsync matches messages from independent streams by their timestamps.
//
// ApproximateTime3 buffers three streams and emits sets of one message per stream whose stamps
// are as close to each other as the buffered data allows. A set is only emitted once no message
// that may still arrive could produce a tighter set, so matching never depends on arrival order
// across streams.
package msgsync

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"go.viam.com/xyzl/logging"
)

// Stamped is a message carrying an acquisition time.
type Stamped interface {
	Stamp() time.Time
}

const numStreams = 3

// DefaultQueueSize is the number of messages buffered per stream when none is configured.
const DefaultQueueSize = 5

// Stats counts what happened to the messages handed to a synchronizer. Received counts messages
// as they are added and Processed once their Add call, including any callbacks it ran, returned.
type Stats struct {
	Received   uint64
	Processed  uint64
	Matched    uint64
	Evicted    uint64
	OutOfOrder uint64
}

// ApproximateTime3 synchronizes three streams of message types A, B and C.
//
// For the current buffers, the pivot is the stream whose oldest message is the most recent. Every
// other stream contributes its buffered message closest in time to the pivot. The set is emitted
// once each of those streams also holds a message at or after the pivot, since nothing arriving
// later could be closer. Older messages are discarded when a set is emitted, and a stream that
// exceeds its queue size silently loses its oldest message.
//
// Callbacks are invoked while the synchronizer lock is held: sets are delivered one at a time and
// in increasing time order. A callback must not add messages to the same synchronizer.
type ApproximateTime3[A, B, C Stamped] struct {
	mu          sync.Mutex
	queueSize   int
	maxInterval time.Duration
	queues      [numStreams][]Stamped
	last        [numStreams]time.Time
	callbacks   []func(A, B, C)
	logger      logging.Logger

	received   atomic.Uint64
	processed  atomic.Uint64
	matched    atomic.Uint64
	evicted    atomic.Uint64
	outOfOrder atomic.Uint64
}

// NewApproximateTime3 returns a synchronizer buffering up to queueSize messages per stream. A
// non-positive queueSize selects DefaultQueueSize.
func NewApproximateTime3[A, B, C Stamped](queueSize int, logger logging.Logger) *ApproximateTime3[A, B, C] {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &ApproximateTime3[A, B, C]{
		queueSize: queueSize,
		logger:    logger,
	}
}

// SetMaxInterval bounds the spread of stamps within an emitted set. Zero means unbounded.
func (s *ApproximateTime3[A, B, C]) SetMaxInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxInterval = d
}

// RegisterCallback adds a function called with every matched set.
func (s *ApproximateTime3[A, B, C]) RegisterCallback(cb func(A, B, C)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, cb)
}

// AddA adds a message to the first stream.
func (s *ApproximateTime3[A, B, C]) AddA(msg A) {
	s.add(0, msg)
}

// AddB adds a message to the second stream.
func (s *ApproximateTime3[A, B, C]) AddB(msg B) {
	s.add(1, msg)
}

// AddC adds a message to the third stream.
func (s *ApproximateTime3[A, B, C]) AddC(msg C) {
	s.add(2, msg)
}

// Reset drops every buffered message and forgets previously emitted stamps.
func (s *ApproximateTime3[A, B, C]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.queues {
		s.queues[i] = nil
		s.last[i] = time.Time{}
	}
}

// Stats returns counters describing the messages seen so far.
func (s *ApproximateTime3[A, B, C]) Stats() Stats {
	return Stats{
		Received:   s.received.Load(),
		Processed:  s.processed.Load(),
		Matched:    s.matched.Load(),
		Evicted:    s.evicted.Load(),
		OutOfOrder: s.outOfOrder.Load(),
	}
}

func (s *ApproximateTime3[A, B, C]) add(stream int, msg Stamped) {
	defer s.processed.Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received.Inc()

	stamp := msg.Stamp()
	q := s.queues[stream]
	if (!s.last[stream].IsZero() && !stamp.After(s.last[stream])) ||
		(len(q) > 0 && stamp.Before(q[len(q)-1].Stamp())) {
		s.outOfOrder.Inc()
		s.logger.Debugw("dropping out of order message", "stream", stream, "stamp", stamp)
		return
	}
	q = append(q, msg)
	if len(q) > s.queueSize {
		q = q[1:]
		s.evicted.Inc()
	}
	s.queues[stream] = q
	s.process()
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// process emits every set that can be decided with the buffered messages. Must hold s.mu.
func (s *ApproximateTime3[A, B, C]) process() {
	for {
		for _, q := range s.queues {
			if len(q) == 0 {
				return
			}
		}

		pivot := 0
		for i := 1; i < numStreams; i++ {
			if s.queues[i][0].Stamp().After(s.queues[pivot][0].Stamp()) {
				pivot = i
			}
		}
		pivotStamp := s.queues[pivot][0].Stamp()

		ready := true
		for i := range s.queues {
			if i == pivot {
				continue
			}
			q := s.queues[i]
			for len(q) > 1 &&
				absDuration(q[1].Stamp().Sub(pivotStamp)) <= absDuration(q[0].Stamp().Sub(pivotStamp)) {
				q = q[1:]
				s.evicted.Inc()
			}
			s.queues[i] = q
			if len(q) == 1 && q[0].Stamp().Before(pivotStamp) {
				// a later message may still be closer to the pivot
				ready = false
			}
		}
		if !ready {
			return
		}

		oldest := 0
		for i := 1; i < numStreams; i++ {
			if s.queues[i][0].Stamp().Before(s.queues[oldest][0].Stamp()) {
				oldest = i
			}
		}
		if s.maxInterval > 0 && pivotStamp.Sub(s.queues[oldest][0].Stamp()) > s.maxInterval {
			s.queues[oldest] = s.queues[oldest][1:]
			s.evicted.Inc()
			continue
		}

		var set [numStreams]Stamped
		for i := range s.queues {
			set[i] = s.queues[i][0]
			s.queues[i] = s.queues[i][1:]
			s.last[i] = set[i].Stamp()
		}
		s.matched.Inc()
		a, _ := set[0].(A)
		b, _ := set[1].(B)
		c, _ := set[2].(C)
		for _, cb := range s.callbacks {
			cb(a, b, c)
		}
	}
}
