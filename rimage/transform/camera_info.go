package transform

import (
	"time"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/xyzl/rimage"
)

// RegionOfInterest is the sub-window of the full resolution sensor an image was taken from.
// A zero value means the full image.
type RegionOfInterest struct {
	XOffset   int  `json:"x_offset"`
	YOffset   int  `json:"y_offset"`
	Height    int  `json:"height"`
	Width     int  `json:"width"`
	DoRectify bool `json:"do_rectify"`
}

// CameraInfo is a calibration message for a pinhole camera. K is the row-major 3x3 intrinsic
// matrix of the raw image and P the row-major 3x4 projection matrix of the rectified image.
type CameraInfo struct {
	Header          rimage.Header
	Width           int
	Height          int
	DistortionModel string
	D               []float64
	K               [9]float64
	R               [9]float64
	P               [12]float64
	BinningX        int
	BinningY        int
	ROI             RegionOfInterest
}

// Stamp returns the time the calibration applies to.
func (ci *CameraInfo) Stamp() time.Time {
	return ci.Header.Stamp
}

// KMatrix returns a 3x3 matrix backed by the message's K array.
func (ci *CameraInfo) KMatrix() *mat.Dense {
	return mat.NewDense(3, 3, ci.K[:])
}

// PMatrix returns a 3x4 matrix backed by the message's P array.
func (ci *CameraInfo) PMatrix() *mat.Dense {
	return mat.NewDense(3, 4, ci.P[:])
}

// focal and principal point entries, as (row, col), shared by K and P.
var pinholeEntries = [4][2]int{{0, 0}, {0, 2}, {1, 1}, {1, 2}}

// Rescaled returns a copy of the calibration for an image of width x height whose pixels are
// ratio times smaller than the calibrated ones. The focal lengths and principal point of K and P
// are multiplied by ratio; everything else is copied.
func (ci *CameraInfo) Rescaled(width, height int, ratio float64) *CameraInfo {
	ret := *ci
	ret.D = append([]float64(nil), ci.D...)
	ret.Width = width
	ret.Height = height
	k := ret.KMatrix()
	p := ret.PMatrix()
	for _, e := range pinholeEntries {
		k.Set(e[0], e[1], k.At(e[0], e[1])*ratio)
		p.Set(e[0], e[1], p.At(e[0], e[1])*ratio)
	}
	return &ret
}

// Intrinsics returns the pinhole parameters of the rectified image described by the message,
// taking binning and region of interest into account.
func (ci *CameraInfo) Intrinsics() (*PinholeCameraIntrinsics, error) {
	if ci == nil {
		return nil, NewNoIntrinsicsError("camera info is nil")
	}
	p := ci.PMatrix()
	if p.At(0, 0) == 0 && p.At(1, 1) == 0 {
		return nil, NewNoIntrinsicsError("uncalibrated camera: projection matrix is zero")
	}
	binX, binY := ci.BinningX, ci.BinningY
	if binX == 0 {
		binX = 1
	}
	if binY == 0 {
		binY = 1
	}
	if binX < 0 || binY < 0 {
		return nil, errors.Errorf("invalid binning (%d, %d)", ci.BinningX, ci.BinningY)
	}
	width, height := ci.Width, ci.Height
	if ci.ROI.Width != 0 && ci.ROI.Height != 0 {
		width, height = ci.ROI.Width, ci.ROI.Height
	}
	params := &PinholeCameraIntrinsics{
		Width:  width / binX,
		Height: height / binY,
		Fx:     p.At(0, 0) / float64(binX),
		Fy:     p.At(1, 1) / float64(binY),
		Ppx:    (p.At(0, 2) - float64(ci.ROI.XOffset)) / float64(binX),
		Ppy:    (p.At(1, 2) - float64(ci.ROI.YOffset)) / float64(binY),
	}
	return params, nil
}
