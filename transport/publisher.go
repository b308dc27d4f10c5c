package transport

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
)

// ErrPublisherShutdown is returned when publishing through a publisher that was shut down.
var ErrPublisherShutdown = errors.New("publisher is shut down")

// SubscriberLink identifies the subscription a connect or disconnect callback is about.
type SubscriberLink struct {
	ID        uuid.UUID
	Topic     string
	Transport string
}

// SubscriberStatusCallback is told about a consumer attaching to or detaching from a topic.
type SubscriberStatusCallback func(SubscriberLink)

// AdvertiseOptions are the optional parts of an advertisement.
type AdvertiseOptions struct {
	// Transports offered by the publisher. Empty means raw only.
	Transports []string
	// OnConnect is called for every subscription matching an offered transport, including those
	// that existed before the advertisement.
	OnConnect SubscriberStatusCallback
	// OnDisconnect is called when such a subscription goes away.
	OnDisconnect SubscriberStatusCallback
}

// Publisher is the producing end of a topic.
type Publisher struct {
	bus          *Bus
	topic        string
	queueSize    int
	transports   []string
	onConnect    SubscriberStatusCallback
	onDisconnect SubscriberStatusCallback

	shutdown  atomic.Bool
	published atomic.Uint64
}

// Topic is the advertised topic.
func (p *Publisher) Topic() string {
	return p.topic
}

// Transports lists the offered transports.
func (p *Publisher) Transports() []string {
	return append([]string(nil), p.transports...)
}

func (p *Publisher) offers(transport string) bool {
	return lo.Contains(p.transports, transport)
}

// Publish hands msg to every subscription connected to the publisher. It does not wait for the
// consumers' callbacks.
func (p *Publisher) Publish(msg interface{}) error {
	if p.shutdown.Load() {
		return errors.Wrapf(ErrPublisherShutdown, "topic %q", p.topic)
	}
	subs, err := p.bus.connected(p)
	if err != nil {
		return err
	}
	for _, sub := range subs {
		sub.enqueue(msg, p.queueSize)
	}
	p.published.Inc()
	p.bus.published.Inc()
	return nil
}

// NumSubscribers returns the number of subscriptions currently connected to the publisher.
func (p *Publisher) NumSubscribers() int {
	subs, err := p.bus.connected(p)
	if err != nil {
		return 0
	}
	return len(subs)
}

// NumPublished returns how many messages were published.
func (p *Publisher) NumPublished() uint64 {
	return p.published.Load()
}

// Shutdown unadvertises the topic. Subscriptions stay attached and will connect to the next
// publisher of the topic. It is safe to call more than once.
func (p *Publisher) Shutdown() {
	if p.shutdown.Swap(true) {
		return
	}
	p.bus.removePublisher(p)
}

func (p *Publisher) link(sub *Subscription) SubscriberLink {
	return SubscriberLink{ID: sub.id, Topic: p.topic, Transport: sub.hints.Transport}
}
