package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/xyzl/depthproc"
	"go.viam.com/xyzl/logging"
	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
	"go.viam.com/xyzl/ros"
)

const (
	bagDepth = "/camera/depth_registered/image_rect"
	bagLabel = "/camera/label/label"
	bagInfo  = "/camera/label/camera_info"
	frame    = "camera_optical_frame"
)

var start = time.Unix(1700000000, 0)

func frameRecords(t *testing.T, seq uint32, stamp time.Time, labelFrame string) []ros.Record {
	t.Helper()
	header := rimage.Header{Seq: seq, Stamp: stamp, FrameID: frame}

	depth, err := rimage.NewImage(4, 3, rimage.Type16U)
	test.That(t, err, test.ShouldBeNil)
	depth.Header = header
	label, err := rimage.NewImage(4, 3, rimage.Type32S)
	test.That(t, err, test.ShouldBeNil)
	label.Header = header
	label.Header.FrameID = labelFrame
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			depth.SetUint16(x, y, 1500)
			label.SetInt32(x, y, int32(seq))
		}
	}
	info := &transform.CameraInfo{
		Header: header,
		Width:  4,
		Height: 3,
		K:      [9]float64{100, 0, 2, 0, 100, 1.5, 0, 0, 1},
		P:      [12]float64{100, 0, 2, 0, 0, 100, 1.5, 0, 0, 0, 1, 0},
	}
	return []ros.Record{
		{Topic: bagDepth, Time: stamp, Message: depth},
		{Topic: bagLabel, Time: stamp, Message: label},
		{Topic: bagInfo, Time: stamp, Message: info},
	}
}

func newTestReplayer(t *testing.T, outDir string, format pointcloud.PCDType) *replayer {
	t.Helper()
	return &replayer{
		depthTopic: bagDepth,
		labelTopic: bagLabel,
		infoTopic:  bagInfo,
		outDir:     outDir,
		format:     format,
		rate:       100,
		logger:     logging.NewTestLogger(t),
	}
}

func TestReplayWritesClouds(t *testing.T) {
	rec := &ros.Recording{}
	for i := 0; i < 3; i++ {
		stamp := start.Add(time.Duration(i) * 100 * time.Millisecond)
		rec.Records = append(rec.Records, frameRecords(t, uint32(i+1), stamp, frame)...)
	}

	outDir := t.TempDir()
	r := newTestReplayer(t, outDir, pointcloud.PCDAscii)
	summary, err := r.run(context.Background(), rec)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Published, test.ShouldEqual, 9)
	test.That(t, summary.Written, test.ShouldEqual, 3)
	test.That(t, summary.Node.Published, test.ShouldEqual, uint64(3))

	for i := 1; i <= 3; i++ {
		//nolint:gosec
		data, err := os.ReadFile(filepath.Join(outDir, fmt.Sprintf("cloud_%d.pcd", i)))
		test.That(t, err, test.ShouldBeNil)
		text := string(data)
		test.That(t, text, test.ShouldContainSubstring, "FIELDS x y z label\n")
		test.That(t, text, test.ShouldContainSubstring, "WIDTH 4\nHEIGHT 3\n")
		test.That(t, text, test.ShouldContainSubstring, "DATA ascii\n")
		lines := strings.Split(strings.TrimSpace(text), "\n")
		// ten header lines, then one line per point ending with the label
		test.That(t, lines, test.ShouldHaveLength, 10+12)
		test.That(t, strings.HasSuffix(lines[10], fmt.Sprintf(" %d", i)), test.ShouldBeTrue)
	}
}

func TestReplayUnpaced(t *testing.T) {
	const frames = 50
	rec := &ros.Recording{}
	for i := 0; i < frames; i++ {
		stamp := start.Add(time.Duration(i) * 100 * time.Millisecond)
		rec.Records = append(rec.Records, frameRecords(t, uint32(i+1), stamp, frame)...)
	}

	outDir := t.TempDir()
	r := newTestReplayer(t, outDir, pointcloud.PCDBinary)
	r.rate = 0
	summary, err := r.run(context.Background(), rec)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Published, test.ShouldEqual, 3*frames)
	test.That(t, summary.Lost, test.ShouldEqual, 0)
	test.That(t, summary.CloudsDropped, test.ShouldEqual, uint64(0))
	test.That(t, summary.Node.Sync.Received, test.ShouldEqual, uint64(3*frames))
	test.That(t, summary.Node.Sync.Matched, test.ShouldEqual, uint64(frames))
	test.That(t, summary.Written, test.ShouldEqual, frames)
	test.That(t, summary.String(), test.ShouldContainSubstring, "messages lost before the node")

	files, err := filepath.Glob(filepath.Join(outDir, "cloud_*.pcd"))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, files, test.ShouldHaveLength, frames)
}

func TestReplayNumbersCloudsInArrivalOrder(t *testing.T) {
	rec := &ros.Recording{}
	for i := 0; i < 3; i++ {
		stamp := start.Add(time.Duration(i) * 100 * time.Millisecond)
		rec.Records = append(rec.Records, frameRecords(t, 0, stamp, frame)...)
	}

	outDir := t.TempDir()
	r := newTestReplayer(t, outDir, pointcloud.PCDAscii)
	summary, err := r.run(context.Background(), rec)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Written, test.ShouldEqual, 3)

	for i := 1; i <= 3; i++ {
		_, err := os.Stat(filepath.Join(outDir, fmt.Sprintf("cloud_%d.pcd", i)))
		test.That(t, err, test.ShouldBeNil)
	}
}

func TestReplayCountsFailures(t *testing.T) {
	rec := &ros.Recording{}
	rec.Records = append(rec.Records, frameRecords(t, 1, start, frame)...)
	rec.Records = append(rec.Records, frameRecords(t, 2, start.Add(100*time.Millisecond), "other_frame")...)

	outDir := t.TempDir()
	r := newTestReplayer(t, outDir, pointcloud.PCDBinary)
	summary, err := r.run(context.Background(), rec)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, summary.Written, test.ShouldEqual, 1)
	test.That(t, summary.Node.Received, test.ShouldEqual, uint64(2))
	test.That(t, summary.Node.FrameMismatches, test.ShouldEqual, uint64(1))
	test.That(t, summary.String(), test.ShouldContainSubstring, "frame id mismatches")

	_, err = os.Stat(filepath.Join(outDir, "cloud_1.pcd"))
	test.That(t, err, test.ShouldBeNil)
	_, err = os.Stat(filepath.Join(outDir, "cloud_2.pcd"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
}

func TestReplayRejectsBadConfig(t *testing.T) {
	r := newTestReplayer(t, t.TempDir(), pointcloud.PCDBinary)
	r.conf = depthproc.Config{DepthImageTransport: "jpeg"}
	_, err := r.run(context.Background(), &ros.Recording{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReplayCommandFlags(t *testing.T) {
	prev := logging.Global()
	defer logging.ReplaceGlobal(prev)
	dir := t.TempDir()
	run := func(args ...string) error {
		var out, errOut bytes.Buffer
		return NewApp(&out, &errOut).Run(append([]string{"xyzl"}, args...))
	}

	err := run("replay", "--out", dir)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bag")

	err = run("replay", "--bag", filepath.Join(dir, "missing.bag"), "--out", dir, "--format", "xml")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "xml")

	err = run("replay", "--bag", filepath.Join(dir, "missing.bag"), "--out", dir,
		"--label-topic", bagDepth, "--depth-topic", bagDepth)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "distinct")

	err = run("--log-level", "loud", "replay", "--bag", filepath.Join(dir, "missing.bag"), "--out", dir)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unknown log level")

	err = run("--log-level", "warn", "replay", "--bag", filepath.Join(dir, "missing.bag"), "--out", dir)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "unable to open input file")
	test.That(t, logging.Global().GetLevel(), test.ShouldEqual, logging.WARN)
}
