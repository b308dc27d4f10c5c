package depthproc

import (
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

const testFrame = "camera_optical_frame"

var testStamp = time.Unix(1700000000, 0)

func newDepth16(t *testing.T, width, height int, fill uint16) *rimage.Image {
	t.Helper()
	img, err := rimage.NewImage(width, height, rimage.Type16U)
	test.That(t, err, test.ShouldBeNil)
	img.Header = rimage.Header{Stamp: testStamp, FrameID: testFrame}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetUint16(x, y, fill)
		}
	}
	return img
}

func newDepth32F(t *testing.T, width, height int, fill float32) *rimage.Image {
	t.Helper()
	img, err := rimage.NewImage(width, height, rimage.Type32F)
	test.That(t, err, test.ShouldBeNil)
	img.Header = rimage.Header{Stamp: testStamp, FrameID: testFrame}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetFloat32(x, y, fill)
		}
	}
	return img
}

func newLabel32(t *testing.T, width, height int, label func(x, y int) int32) *rimage.Image {
	t.Helper()
	img, err := rimage.NewImage(width, height, rimage.Type32S)
	test.That(t, err, test.ShouldBeNil)
	img.Header = rimage.Header{Stamp: testStamp, FrameID: testFrame}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetInt32(x, y, label(x, y))
		}
	}
	return img
}

func constLabel(v int32) func(x, y int) int32 {
	return func(x, y int) int32 { return v }
}

// checkerLabel alternates ids 1 and 2 in square cells.
func checkerLabel(cell int) func(x, y int) int32 {
	return func(x, y int) int32 {
		if (x/cell+y/cell)%2 == 0 {
			return 1
		}
		return 2
	}
}

func newCameraInfo(width, height int, fx, fy, cx, cy float64) *transform.CameraInfo {
	return &transform.CameraInfo{
		Header:          rimage.Header{Stamp: testStamp, FrameID: testFrame},
		Width:           width,
		Height:          height,
		DistortionModel: "plumb_bob",
		D:               []float64{0, 0, 0, 0, 0},
		K:               [9]float64{fx, 0, cx, 0, fy, cy, 0, 0, 1},
		R:               [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		P:               [12]float64{fx, 0, cx, 0, 0, fy, cy, 0, 0, 0, 1, 0},
	}
}

func labelValues(img *rimage.Image) map[int32]struct{} {
	values := map[int32]struct{}{}
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			values[img.Int32At(x, y)] = struct{}{}
		}
	}
	return values
}
