package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.viam.com/utils"
	"golang.org/x/time/rate"

	"go.viam.com/xyzl/depthproc"
	"go.viam.com/xyzl/logging"
	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/ros"
	"go.viam.com/xyzl/transport"
)

const (
	connectTimeout = 5 * time.Second
	drainTimeout   = 5 * time.Second
	pollInterval   = time.Millisecond
)

// ReplayAction reads a rosbag and replays its depth, label and calibration topics through a
// labelled point cloud node, writing every resulting cloud as a pcd file.
func ReplayAction(c *cli.Context) error {
	format, err := pointcloud.PCDTypeFromString(c.String(replayFlagFormat))
	if err != nil {
		return err
	}
	conf := depthproc.Config{}
	if path := c.Path(replayFlagConfig); path != "" {
		fromFile, err := depthproc.ReadConfigFile(path)
		if err != nil {
			return err
		}
		conf = *fromFile
	}
	outDir := c.Path(replayFlagOut)
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return errors.Wrapf(err, "cannot create output directory %q", outDir)
	}

	depthTopic := c.String(replayFlagDepthTopic)
	labelTopic := c.String(replayFlagLabelTopic)
	infoTopic := c.String(replayFlagInfoTopic)
	if len(lo.Uniq([]string{depthTopic, labelTopic, infoTopic})) != 3 {
		return errors.New("depth, label and camera info topics must be distinct")
	}

	logger, closeLog, err := newLogger(c)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(closeLog)
	rb, err := ros.ReadBag(c.Path(replayFlagBag))
	if err != nil {
		return err
	}
	rec, err := ros.ReadRecording(rb, ros.Topics{
		Images:      []string{depthTopic, labelTopic},
		CameraInfos: []string{infoTopic},
	})
	if err != nil {
		return err
	}
	logger.Infow("read bag", "messages", len(rec.Records),
		"depth", rec.Count(depthTopic), "label", rec.Count(labelTopic), "camera_info", rec.Count(infoTopic))

	r := &replayer{
		conf:       conf,
		depthTopic: depthTopic,
		labelTopic: labelTopic,
		infoTopic:  infoTopic,
		outDir:     outDir,
		format:     format,
		rate:       c.Float64(replayFlagRate),
		logger:     logger,
	}
	summary, err := r.run(c.Context, rec)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "replayed %d messages, wrote %d point clouds to %s",
		summary.Published, summary.Written, outDir)
	if summary.Lost > 0 || summary.CloudsDropped > 0 {
		logger.Warnw("replay dropped data", "lost_messages", summary.Lost, "dropped_clouds", summary.CloudsDropped)
	}
	printf(c.App.Writer, "%s", summary)
	return nil
}

type replayer struct {
	conf       depthproc.Config
	depthTopic string
	labelTopic string
	infoTopic  string
	outDir     string
	format     pointcloud.PCDType
	rate       float64
	logger     logging.Logger
}

type replaySummary struct {
	Published int
	// Lost counts published messages the node never handled.
	Lost          int
	Written       int
	CloudsDropped uint64
	Node          depthproc.Stats
}

// String renders the node counters as a table.
func (s replaySummary) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Counter", "Count"})
	for _, row := range []struct {
		name  string
		count uint64
	}{
		{"messages lost before the node", uint64(s.Lost)},
		{"messages synchronized", s.Node.Sync.Received},
		{"sets matched", s.Node.Sync.Matched},
		{"messages evicted", s.Node.Sync.Evicted},
		{"messages out of order", s.Node.Sync.OutOfOrder},
		{"clouds published", s.Node.Published},
		{"frame id mismatches", s.Node.FrameMismatches},
		{"unsupported depth encodings", s.Node.UnsupportedDepthEncoding},
		{"unsupported label encodings", s.Node.UnsupportedLabelEncoding},
		{"conversion failures", s.Node.ConversionFailures},
		{"publish failures", s.Node.PublishFailures},
		{"clouds dropped before writing", s.CloudsDropped},
	} {
		t.AppendRow(table.Row{row.name, row.count})
	}
	return t.Render()
}

// run publishes the recording on a private bus in record order, at most at r.rate messages per
// second and never faster than the node and the pcd writer keep up.
func (r *replayer) run(ctx context.Context, rec *ros.Recording) (replaySummary, error) {
	var summary replaySummary

	bus := transport.NewBus(r.logger.Sublogger("bus"))
	defer utils.UncheckedErrorFunc(bus.Close)

	node, err := depthproc.NewPointCloudXYZL(bus, r.conf, r.logger.Sublogger("point_cloud_xyzl"))
	if err != nil {
		return summary, err
	}
	defer utils.UncheckedErrorFunc(node.Close)
	conf := node.Config()

	pubs := map[string]*transport.Publisher{}
	for bagTopic, in := range map[string]struct {
		topic     string
		transport string
	}{
		r.depthTopic: {conf.DepthTopic(), conf.DepthImageTransport},
		r.labelTopic: {conf.LabelTopic(), conf.ImageTransport},
		r.infoTopic:  {conf.InfoTopic(), transport.RawTransport},
	} {
		pub, err := bus.Advertise(in.topic, 0, transport.AdvertiseOptions{
			Transports: lo.Uniq([]string{transport.RawTransport, in.transport}),
		})
		if err != nil {
			return summary, err
		}
		pubs[bagTopic] = pub
	}

	var (
		written  atomic.Int64
		errMu    sync.Mutex
		writeErr error
		index    int
	)
	consumer, err := node.SubscribeClouds(1, func(cloud *pointcloud.Cloud) {
		// header sequence numbers are often left at zero, so files are numbered in arrival order
		index++
		path := filepath.Join(r.outDir, fmt.Sprintf("cloud_%d.pcd", index))
		if err := pointcloud.WriteToPCDFile(cloud, path, r.format); err != nil {
			errMu.Lock()
			writeErr = multierr.Append(writeErr, errors.Wrapf(err, "cannot write %q", path))
			errMu.Unlock()
			return
		}
		written.Inc()
		r.logger.Debugw("wrote point cloud", "path", path, "seq", cloud.Header.Seq, "points", cloud.Size())
	})
	if err != nil {
		return summary, err
	}
	defer consumer.Unsubscribe()

	// the node subscribes to its inputs asynchronously once it sees the consumer
	if !waitUntil(ctx, connectTimeout, func() bool {
		return lo.EveryBy(lo.Values(pubs), func(pub *transport.Publisher) bool {
			return pub.NumSubscribers() > 0
		})
	}) {
		return summary, errors.New("timed out waiting for the node to subscribe to its inputs")
	}

	limit := rate.Inf
	if r.rate > 0 {
		limit = rate.Limit(r.rate)
	}
	limiter := rate.NewLimiter(limit, 1)
	// the node's inputs and the writer each hold a single message, so every message is handed all
	// the way through before the next one is published
	handedOff := func() bool {
		stats := node.Stats()
		cloudStats := consumer.Stats()
		return stats.Sync.Processed+uint64(summary.Lost) >= uint64(summary.Published) &&
			cloudStats.Delivered+cloudStats.Dropped >= stats.Published
	}
	for _, record := range rec.Records {
		if err := limiter.Wait(ctx); err != nil {
			return summary, err
		}
		pub, ok := pubs[record.Topic]
		if !ok {
			continue
		}
		if err := pub.Publish(record.Message); err != nil {
			return summary, err
		}
		summary.Published++
		if waitUntil(ctx, drainTimeout, handedOff) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		processed := int(node.Stats().Sync.Processed)
		if lost := summary.Published - processed - summary.Lost; lost > 0 {
			summary.Lost += lost
		}
		r.logger.Warnw("node did not handle a replayed message in time",
			"topic", record.Topic, "published", summary.Published, "processed", processed)
	}

	summary.Written = int(written.Load())
	summary.CloudsDropped = consumer.Stats().Dropped
	summary.Node = node.Stats()
	errMu.Lock()
	defer errMu.Unlock()
	return summary, writeErr
}

// waitUntil polls cond until it holds, the timeout passes or ctx is done.
func waitUntil(ctx context.Context, timeout time.Duration, cond func() bool) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for !cond() {
		if !utils.SelectContextOrWait(ctx, pollInterval) {
			return cond()
		}
	}
	return true
}
