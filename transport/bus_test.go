package transport

import (
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
	"go.viam.com/utils/testutils"

	"go.viam.com/xyzl/logging"
)

type recorder struct {
	mu   sync.Mutex
	msgs []interface{}
}

func (r *recorder) add(msg interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) get() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.msgs...)
}

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b := NewBus(logging.NewTestLogger(t))
	t.Cleanup(func() {
		test.That(t, b.Close(), test.ShouldBeNil)
	})
	return b
}

func TestPublishSubscribe(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.Advertise("camera/image", 0, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 0)

	var rec recorder
	sub, err := b.Subscribe("camera/image", 10, DefaultTransportHints(), rec.add)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sub.Topic(), test.ShouldEqual, "camera/image")
	test.That(t, sub.Transport(), test.ShouldEqual, RawTransport)
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 1)

	for i := 0; i < 3; i++ {
		test.That(t, pub.Publish(i), test.ShouldBeNil)
	}
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.get(), test.ShouldResemble, []interface{}{0, 1, 2})
	})
	test.That(t, pub.NumPublished(), test.ShouldEqual, uint64(3))
	test.That(t, b.NumPublished(), test.ShouldEqual, uint64(3))

	sub.Unsubscribe()
	sub.Unsubscribe()
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 0)
	test.That(t, pub.Publish(3), test.ShouldBeNil)
	test.That(t, rec.get(), test.ShouldHaveLength, 3)
}

func TestSubscribeBeforeAdvertise(t *testing.T) {
	b := newTestBus(t)

	var rec recorder
	_, err := b.Subscribe("label/camera_info", 1, TransportHints{}, rec.add)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, b.NumSubscribers("label/camera_info"), test.ShouldEqual, 1)
	test.That(t, b.Topics(), test.ShouldResemble, []string{"label/camera_info"})

	pub, err := b.Advertise("label/camera_info", 1, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 1)
	test.That(t, pub.Publish("info"), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.get(), test.ShouldResemble, []interface{}{"info"})
	})

	_, err = b.Advertise("label/camera_info", 1, AdvertiseOptions{})
	test.That(t, errors.Is(err, ErrTopicAdvertised), test.ShouldBeTrue)
}

func TestTransportMatching(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.Advertise("depth/image_rect", 0, AdvertiseOptions{
		Transports: []string{RawTransport, CompressedDepthTransport},
	})
	test.That(t, err, test.ShouldBeNil)

	var raw, depth, theora recorder
	_, err = b.Subscribe("depth/image_rect", 5, NewTransportHints(""), raw.add)
	test.That(t, err, test.ShouldBeNil)
	_, err = b.Subscribe("depth/image_rect", 5, NewTransportHints(CompressedDepthTransport), depth.add)
	test.That(t, err, test.ShouldBeNil)
	_, err = b.Subscribe("depth/image_rect", 5, NewTransportHints(TheoraTransport), theora.add)
	test.That(t, err, test.ShouldBeNil)

	test.That(t, b.NumSubscribers("depth/image_rect"), test.ShouldEqual, 3)
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 2)

	test.That(t, pub.Publish("frame"), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, raw.get(), test.ShouldHaveLength, 1)
		test.That(tb, depth.get(), test.ShouldHaveLength, 1)
	})
	test.That(t, theora.get(), test.ShouldBeEmpty)

	_, err = b.Subscribe("depth/image_rect", 5, NewTransportHints("carrier-pigeon"), raw.add)
	test.That(t, errors.Is(err, ErrUnknownTransport), test.ShouldBeTrue)
	_, err = b.Advertise("other", 0, AdvertiseOptions{Transports: []string{"carrier-pigeon"}})
	test.That(t, errors.Is(err, ErrUnknownTransport), test.ShouldBeTrue)
}

func TestConnectCallbacks(t *testing.T) {
	b := newTestBus(t)

	var mu sync.Mutex
	var connects, disconnects int
	var topics []string
	early, err := b.Subscribe("points", 1, DefaultTransportHints(), func(interface{}) {})
	test.That(t, err, test.ShouldBeNil)

	pub, err := b.Advertise("points", 1, AdvertiseOptions{
		OnConnect: func(link SubscriberLink) {
			mu.Lock()
			defer mu.Unlock()
			topics = append(topics, link.Topic)
			connects++
		},
		OnDisconnect: func(SubscriberLink) {
			mu.Lock()
			defer mu.Unlock()
			disconnects++
		},
	})
	test.That(t, err, test.ShouldBeNil)

	late, err := b.Subscribe("points", 1, DefaultTransportHints(), func(interface{}) {})
	test.That(t, err, test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mu.Lock()
		defer mu.Unlock()
		test.That(tb, connects, test.ShouldEqual, 2)
		test.That(tb, topics, test.ShouldResemble, []string{"points", "points"})
	})

	early.Unsubscribe()
	late.Unsubscribe()
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mu.Lock()
		defer mu.Unlock()
		test.That(tb, disconnects, test.ShouldEqual, 2)
	})
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 0)
}

func TestConnectCallbackMaySubscribe(t *testing.T) {
	b := newTestBus(t)

	var rec recorder
	var inner *Subscription
	var innerErr error
	done := make(chan struct{})
	_, err := b.Advertise("points", 1, AdvertiseOptions{
		OnConnect: func(SubscriberLink) {
			inner, innerErr = b.Subscribe("depth", 1, DefaultTransportHints(), rec.add)
			close(done)
		},
	})
	test.That(t, err, test.ShouldBeNil)

	_, err = b.Subscribe("points", 1, DefaultTransportHints(), func(interface{}) {})
	test.That(t, err, test.ShouldBeNil)
	<-done
	test.That(t, innerErr, test.ShouldBeNil)
	test.That(t, inner, test.ShouldNotBeNil)
	test.That(t, b.NumSubscribers("depth"), test.ShouldEqual, 1)
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.Advertise("image", 0, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var rec recorder
	sub, err := b.Subscribe("image", 2, DefaultTransportHints(), func(msg interface{}) {
		if msg == 0 {
			started <- struct{}{}
			<-release
		}
		rec.add(msg)
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, pub.Publish(0), test.ShouldBeNil)
	<-started
	for i := 1; i <= 4; i++ {
		test.That(t, pub.Publish(i), test.ShouldBeNil)
	}
	close(release)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.get(), test.ShouldResemble, []interface{}{0, 3, 4})
		test.That(tb, sub.Stats(), test.ShouldResemble, SubscriptionStats{Delivered: 3, Dropped: 2})
	})
}

func TestPublisherQueueSizeBoundsDelivery(t *testing.T) {
	b := newTestBus(t)

	pub, err := b.Advertise("points", 1, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	var rec recorder
	_, err = b.Subscribe("points", 10, DefaultTransportHints(), func(msg interface{}) {
		if msg == "first" {
			started <- struct{}{}
			<-release
		}
		rec.add(msg)
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, pub.Publish("first"), test.ShouldBeNil)
	<-started
	test.That(t, pub.Publish("stale"), test.ShouldBeNil)
	test.That(t, pub.Publish("latest"), test.ShouldBeNil)
	close(release)

	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		test.That(tb, rec.get(), test.ShouldResemble, []interface{}{"first", "latest"})
	})
}

func TestSubscribeTo(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	b := NewBus(logger)
	defer func() {
		test.That(t, b.Close(), test.ShouldBeNil)
	}()

	pub, err := b.Advertise("numbers", 0, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)

	var mu sync.Mutex
	var sum int
	_, err = SubscribeTo(b, "numbers", 10, DefaultTransportHints(), func(n int) {
		mu.Lock()
		defer mu.Unlock()
		sum += n
	})
	test.That(t, err, test.ShouldBeNil)

	test.That(t, pub.Publish(2), test.ShouldBeNil)
	test.That(t, pub.Publish("three"), test.ShouldBeNil)
	test.That(t, pub.Publish(5), test.ShouldBeNil)
	testutils.WaitForAssertion(t, func(tb testing.TB) {
		tb.Helper()
		mu.Lock()
		defer mu.Unlock()
		test.That(tb, sum, test.ShouldEqual, 7)
		test.That(tb, logs.FilterMessage("dropping message of unexpected type").Len(), test.ShouldEqual, 1)
	})
}

func TestShutdownAndClose(t *testing.T) {
	b := NewBus(logging.NewTestLogger(t))

	pub, err := b.Advertise("points", 1, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)
	sub, err := b.Subscribe("points", 1, DefaultTransportHints(), func(interface{}) {})
	test.That(t, err, test.ShouldBeNil)

	pub.Shutdown()
	pub.Shutdown()
	test.That(t, errors.Is(pub.Publish(1), ErrPublisherShutdown), test.ShouldBeTrue)
	test.That(t, pub.NumSubscribers(), test.ShouldEqual, 0)

	// the subscription survives and connects to the next publisher
	again, err := b.Advertise("points", 1, AdvertiseOptions{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, again.NumSubscribers(), test.ShouldEqual, 1)

	test.That(t, b.Close(), test.ShouldBeNil)
	test.That(t, b.Close(), test.ShouldBeNil)
	test.That(t, errors.Is(again.Publish(1), ErrPublisherShutdown), test.ShouldBeTrue)
	_, err = b.Subscribe("points", 1, DefaultTransportHints(), func(interface{}) {})
	test.That(t, errors.Is(err, ErrBusClosed), test.ShouldBeTrue)
	_, err = b.Advertise("other", 1, AdvertiseOptions{})
	test.That(t, errors.Is(err, ErrBusClosed), test.ShouldBeTrue)
	sub.Unsubscribe()
	test.That(t, b.Topics(), test.ShouldBeEmpty)
}
