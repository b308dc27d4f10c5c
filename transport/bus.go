package transport

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.viam.com/utils"

	"go.viam.com/xyzl/logging"
)

var (
	// ErrBusClosed is returned by operations on a closed bus.
	ErrBusClosed = errors.New("bus is closed")

	// ErrTopicAdvertised is returned when advertising a topic that already has a publisher.
	ErrTopicAdvertised = errors.New("topic is already advertised")
)

type topicEntry struct {
	publisher *Publisher
	subs      map[uuid.UUID]*Subscription
}

// Bus routes messages from publishers to subscriptions by topic name. A topic has at most one
// publisher and any number of subscriptions, which may exist before the publisher does.
type Bus struct {
	mu     sync.RWMutex
	topics map[string]*topicEntry
	closed bool

	callbacks *dispatcher
	workers   *utils.StoppableWorkers
	logger    logging.Logger

	published atomic.Uint64
}

// NewBus returns a running bus. It must be closed to stop its goroutines. A nil logger means the
// global logger.
func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Global().Sublogger("bus")
	}
	b := &Bus{
		topics:    map[string]*topicEntry{},
		callbacks: newDispatcher(),
		logger:    logger,
	}
	b.workers = utils.NewBackgroundStoppableWorkers(b.callbacks.run)
	return b
}

func (b *Bus) entry(topic string) *topicEntry {
	e, ok := b.topics[topic]
	if !ok {
		e = &topicEntry{subs: map[uuid.UUID]*Subscription{}}
		b.topics[topic] = e
	}
	return e
}

// must hold b.mu.
func (b *Bus) pruneLocked(topic string) {
	if e, ok := b.topics[topic]; ok && e.publisher == nil && len(e.subs) == 0 {
		delete(b.topics, topic)
	}
}

// Advertise creates the publisher of a topic. queueSize bounds how many of its messages may wait
// for any one subscription; zero leaves the subscription's own bound in charge.
func (b *Bus) Advertise(topic string, queueSize int, opts AdvertiseOptions) (*Publisher, error) {
	transports := opts.Transports
	if len(transports) == 0 {
		transports = []string{RawTransport}
	}
	for _, t := range transports {
		if err := validateTransport(t); err != nil {
			return nil, err
		}
	}
	pub := &Publisher{
		bus:          b,
		topic:        topic,
		queueSize:    queueSize,
		transports:   lo.Uniq(transports),
		onConnect:    opts.OnConnect,
		onDisconnect: opts.OnDisconnect,
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	e := b.entry(topic)
	if e.publisher != nil {
		b.mu.Unlock()
		return nil, errors.Wrapf(ErrTopicAdvertised, "%q", topic)
	}
	e.publisher = pub
	var links []SubscriberLink
	for _, sub := range e.subs {
		if pub.offers(sub.hints.Transport) {
			links = append(links, pub.link(sub))
		}
	}
	b.mu.Unlock()

	b.logger.Debugw("advertised topic", "topic", topic, "transports", pub.transports)
	if pub.onConnect != nil {
		for _, link := range links {
			link := link
			b.callbacks.enqueue(func() { pub.onConnect(link) })
		}
	}
	return pub, nil
}

func (b *Bus) removePublisher(pub *Publisher) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.topics[pub.topic]
	if !ok || e.publisher != pub {
		return
	}
	e.publisher = nil
	b.pruneLocked(pub.topic)
	b.logger.Debugw("unadvertised topic", "topic", pub.topic)
}

// Subscribe attaches cb to a topic. cb receives every message published with the hinted transport,
// unless the subscription falls more than queueSize messages behind.
func (b *Bus) Subscribe(
	topic string,
	queueSize int,
	hints TransportHints,
	cb func(msg interface{}),
) (*Subscription, error) {
	if hints.Transport == "" {
		hints = DefaultTransportHints()
	}
	if err := hints.Validate(); err != nil {
		return nil, err
	}
	sub := newSubscription(b, topic, queueSize, hints, cb)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	e := b.entry(topic)
	e.subs[sub.id] = sub
	pub := e.publisher
	b.mu.Unlock()

	b.workers.Add(sub.run)
	b.logger.Debugw("subscribed", "topic", topic, "transport", hints.Transport, "id", sub.id)
	if pub != nil && pub.onConnect != nil && pub.offers(hints.Transport) {
		link := pub.link(sub)
		b.callbacks.enqueue(func() { pub.onConnect(link) })
	}
	return sub, nil
}

// SubscribeTo is Subscribe for callbacks taking a concrete message type. Messages of any other
// type are logged and dropped.
func SubscribeTo[T any](
	b *Bus,
	topic string,
	queueSize int,
	hints TransportHints,
	cb func(T),
) (*Subscription, error) {
	return b.Subscribe(topic, queueSize, hints, func(msg interface{}) {
		typed, ok := msg.(T)
		if !ok {
			b.logger.Errorw("dropping message of unexpected type",
				"topic", topic, "type", fmt.Sprintf("%T", msg))
			return
		}
		cb(typed)
	})
}

func (b *Bus) removeSubscription(sub *Subscription) {
	b.mu.Lock()
	e, ok := b.topics[sub.topic]
	if !ok {
		b.mu.Unlock()
		return
	}
	if _, ok := e.subs[sub.id]; !ok {
		b.mu.Unlock()
		return
	}
	delete(e.subs, sub.id)
	pub := e.publisher
	b.pruneLocked(sub.topic)
	b.mu.Unlock()

	b.logger.Debugw("unsubscribed", "topic", sub.topic, "id", sub.id)
	if pub != nil && pub.onDisconnect != nil && pub.offers(sub.hints.Transport) {
		link := pub.link(sub)
		b.callbacks.enqueue(func() { pub.onDisconnect(link) })
	}
}

// connected returns the subscriptions a publisher currently delivers to.
func (b *Bus) connected(pub *Publisher) ([]*Subscription, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	e, ok := b.topics[pub.topic]
	if !ok || e.publisher != pub {
		return nil, errors.Wrapf(ErrPublisherShutdown, "topic %q", pub.topic)
	}
	subs := make([]*Subscription, 0, len(e.subs))
	for _, sub := range e.subs {
		if pub.offers(sub.hints.Transport) {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

// NumSubscribers returns the number of subscriptions to a topic, whatever their transport.
func (b *Bus) NumSubscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if e, ok := b.topics[topic]; ok {
		return len(e.subs)
	}
	return 0
}

// Topics returns the sorted names of topics that have a publisher or a subscription.
func (b *Bus) Topics() []string {
	b.mu.RLock()
	names := lo.Keys(b.topics)
	b.mu.RUnlock()
	sort.Strings(names)
	return names
}

// NumPublished returns the number of messages published on the bus.
func (b *Bus) NumPublished() uint64 {
	return b.published.Load()
}

// Close detaches every subscription and publisher and stops the bus goroutines. Pending connect
// callbacks are not run.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var subs []*Subscription
	for _, e := range b.topics {
		if e.publisher != nil {
			e.publisher.shutdown.Store(true)
		}
		subs = append(subs, lo.Values(e.subs)...)
	}
	b.topics = map[string]*topicEntry{}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
	b.workers.Stop()
	return nil
}
