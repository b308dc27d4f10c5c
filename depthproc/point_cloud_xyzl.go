// Package depthproc fuses rectified depth images with per-pixel label images into labelled point
// clouds.
//
// The PointCloudXYZL node subscribes to a depth image, a label image and the label camera's
// calibration, matches them by timestamp, and publishes one XYZL cloud per matched triple. It only
// subscribes to its inputs while something is subscribed to its output.
package depthproc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/atomic"

	"go.viam.com/xyzl/logging"
	"go.viam.com/xyzl/msgsync"
	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
	"go.viam.com/xyzl/transport"
)

// errorThrottlePeriod is how often each kind of per-frame error may be logged.
const errorThrottlePeriod = 5 * time.Second

// Stats counts the triples a node processed.
type Stats struct {
	Received                 uint64
	Published                uint64
	FrameMismatches          uint64
	UnsupportedDepthEncoding uint64
	UnsupportedLabelEncoding uint64
	ConversionFailures       uint64
	PublishFailures          uint64
	Sync                     msgsync.Stats
}

// PointCloudXYZL publishes labelled point clouds built from synchronized depth, label and
// calibration messages.
type PointCloudXYZL struct {
	bus       *transport.Bus
	cfg       Config
	logger    logging.Logger
	throttled *logging.Throttled
	sync      *msgsync.ApproximateTime3[*rimage.Image, *rimage.Image, *transform.CameraInfo]

	// connectMu is held while deciding whether to (un)subscribe and while doing it, so the decision
	// always reflects the current number of consumers.
	connectMu sync.Mutex
	pub       *transport.Publisher
	subDepth  *transport.Subscription
	subLabel  *transport.Subscription
	subInfo   *transport.Subscription
	closed    bool

	received          atomic.Uint64
	published         atomic.Uint64
	frameMismatches   atomic.Uint64
	unsupportedDepth  atomic.Uint64
	unsupportedLabel  atomic.Uint64
	conversionFailure atomic.Uint64
	publishFailures   atomic.Uint64
}

// NewPointCloudXYZL creates the node and advertises its output on the bus. Inputs are subscribed
// once the output has a consumer. A nil logger means the global logger.
func NewPointCloudXYZL(bus *transport.Bus, conf Config, logger logging.Logger) (*PointCloudXYZL, error) {
	if _, err := conf.Validate("depthproc"); err != nil {
		return nil, err
	}
	conf = conf.withDefaults()
	if logger == nil {
		logger = logging.Global().Sublogger("point_cloud_xyzl")
	}

	n := &PointCloudXYZL{
		bus:       bus,
		cfg:       conf,
		logger:    logger,
		throttled: logging.NewThrottled(logger, errorThrottlePeriod),
		sync: msgsync.NewApproximateTime3[*rimage.Image, *rimage.Image, *transform.CameraInfo](
			conf.QueueSize, logger.Sublogger("sync")),
	}
	n.sync.SetMaxInterval(conf.MaxInterval())
	n.sync.RegisterCallback(n.imageCb)

	// connectCb must not run between advertising and assigning n.pub
	n.connectMu.Lock()
	defer n.connectMu.Unlock()
	pub, err := bus.Advertise(conf.OutputTopic(), 1, transport.AdvertiseOptions{
		OnConnect:    n.connectCb,
		OnDisconnect: n.connectCb,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot advertise %q", conf.OutputTopic())
	}
	n.pub = pub
	logger.Infow("advertised labelled point cloud",
		"topic", conf.OutputTopic(),
		"depth", conf.DepthTopic(),
		"label", conf.LabelTopic(),
		"camera_info", conf.InfoTopic())
	return n, nil
}

// Config returns the node's config with defaults filled in.
func (n *PointCloudXYZL) Config() Config {
	return n.cfg
}

// OutputTopic is the topic clouds are published on.
func (n *PointCloudXYZL) OutputTopic() string {
	return n.cfg.OutputTopic()
}

// Subscribed reports whether the node is subscribed to its inputs.
func (n *PointCloudXYZL) Subscribed() bool {
	n.connectMu.Lock()
	defer n.connectMu.Unlock()
	return n.subDepth != nil
}

func (n *PointCloudXYZL) connectCb(transport.SubscriberLink) {
	n.connectMu.Lock()
	defer n.connectMu.Unlock()
	if n.closed {
		return
	}
	if n.pub.NumSubscribers() == 0 {
		n.unsubscribeLocked()
		return
	}
	if n.subDepth == nil {
		if err := n.subscribeLocked(); err != nil {
			n.logger.Errorw("cannot subscribe to inputs", "error", err)
			n.unsubscribeLocked()
		}
	}
}

// must hold n.connectMu.
func (n *PointCloudXYZL) subscribeLocked() error {
	var err error
	n.subDepth, err = transport.SubscribeTo(n.bus, n.cfg.DepthTopic(), 1,
		transport.NewTransportHints(n.cfg.DepthImageTransport), n.sync.AddA)
	if err != nil {
		return err
	}
	n.subLabel, err = transport.SubscribeTo(n.bus, n.cfg.LabelTopic(), 1,
		transport.NewTransportHints(n.cfg.ImageTransport), n.sync.AddB)
	if err != nil {
		return err
	}
	n.subInfo, err = transport.SubscribeTo(n.bus, n.cfg.InfoTopic(), 1,
		transport.DefaultTransportHints(), n.sync.AddC)
	if err != nil {
		return err
	}
	n.logger.Debugw("subscribed to inputs", "depth_transport", n.cfg.DepthImageTransport,
		"label_transport", n.cfg.ImageTransport)
	return nil
}

// must hold n.connectMu.
func (n *PointCloudXYZL) unsubscribeLocked() {
	if n.subDepth == nil && n.subLabel == nil && n.subInfo == nil {
		return
	}
	for _, sub := range []*transport.Subscription{n.subDepth, n.subLabel, n.subInfo} {
		if sub != nil {
			sub.Unsubscribe()
		}
	}
	n.subDepth, n.subLabel, n.subInfo = nil, nil, nil
	// inputs seen before the detach must not hold back the next consumer's stream
	n.sync.Reset()
	n.logger.Debug("unsubscribed from inputs")
}

// imageCb runs with the synchronizer locked, one triple at a time.
func (n *PointCloudXYZL) imageCb(depth, label *rimage.Image, info *transform.CameraInfo) {
	ctx, span := trace.StartSpan(context.Background(), "depthproc::PointCloudXYZL::imageCb")
	defer span.End()
	n.received.Inc()

	cloud, err := Process(ctx, depth, label, info)
	if err != nil {
		n.reportError(err, depth, label)
		return
	}
	if err := n.pub.Publish(cloud); err != nil {
		n.publishFailures.Inc()
		n.throttled.Errorw("cannot publish point cloud", "error", err)
		return
	}
	n.published.Inc()
}

func (n *PointCloudXYZL) reportError(err error, depth, label *rimage.Image) {
	switch {
	case errors.Is(err, ErrFrameIdentityMismatch):
		n.frameMismatches.Inc()
		n.throttled.Errorw("depth image frame id doesn't match label frame id",
			"depth_frame", depth.Header.FrameID, "label_frame", label.Header.FrameID)
	case errors.Is(err, ErrUnsupportedDepthEncoding):
		n.unsupportedDepth.Inc()
		n.throttled.Errorw("depth image has unsupported encoding", "encoding", depth.Encoding)
	case errors.Is(err, ErrUnsupportedLabelEncoding):
		n.unsupportedLabel.Inc()
		n.throttled.Errorw("label image has unsupported encoding", "encoding", label.Encoding, "error", err)
	default:
		n.conversionFailure.Inc()
		n.throttled.Errorw("cannot convert images", "error", err)
	}
}

// Stats returns the node's counters.
func (n *PointCloudXYZL) Stats() Stats {
	return Stats{
		Received:                 n.received.Load(),
		Published:                n.published.Load(),
		FrameMismatches:          n.frameMismatches.Load(),
		UnsupportedDepthEncoding: n.unsupportedDepth.Load(),
		UnsupportedLabelEncoding: n.unsupportedLabel.Load(),
		ConversionFailures:       n.conversionFailure.Load(),
		PublishFailures:          n.publishFailures.Load(),
		Sync:                     n.sync.Stats(),
	}
}

// Close unsubscribes from the inputs and stops publishing.
func (n *PointCloudXYZL) Close() error {
	n.connectMu.Lock()
	defer n.connectMu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	n.unsubscribeLocked()
	n.pub.Shutdown()
	return nil
}

// SubscribeClouds attaches a consumer to the node's output. It is a convenience over
// transport.SubscribeTo for the cloud type.
func (n *PointCloudXYZL) SubscribeClouds(queueSize int, cb func(*pointcloud.Cloud)) (*transport.Subscription, error) {
	return transport.SubscribeTo(n.bus, n.OutputTopic(), queueSize, transport.DefaultTransportHints(), cb)
}
