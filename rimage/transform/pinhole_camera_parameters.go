package transform

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrNoIntrinsics is returned when a camera has no usable intrinsic parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with a description of what is missing.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// PinholeCameraIntrinsics are the focal lengths and principal point of the image a pixel grid was
// taken with, in pixels of that grid.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// CheckValid reports whether the intrinsics can be used to back project pixels.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	switch {
	case params == nil:
		return NewNoIntrinsicsError("intrinsics do not exist")
	case params.Width <= 0 || params.Height <= 0:
		return NewNoIntrinsicsError(errors.Errorf("invalid size %dx%d", params.Width, params.Height).Error())
	case params.Fx <= 0 || params.Fy <= 0:
		return NewNoIntrinsicsError(errors.Errorf("invalid focal length (%g, %g)", params.Fx, params.Fy).Error())
	}
	return nil
}

// PixelToPoint back projects column x and row y at depth z into the camera frame.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return 0, 0, 0
	}
	return (x - params.Ppx) * z / params.Fx, (y - params.Ppy) * z / params.Fy, z
}

// PixelToVector is PixelToPoint returning an r3.Vector.
func (params *PinholeCameraIntrinsics) PixelToVector(x, y, z float64) r3.Vector {
	px, py, pz := params.PixelToPoint(x, y, z)
	return r3.Vector{X: px, Y: py, Z: pz}
}

// GetCameraMatrix returns the 3x3 matrix
//
//	[[fx 0 ppx]
//	 [0 fy ppy]
//	 [0  0   1]]
func (params *PinholeCameraIntrinsics) GetCameraMatrix() *mat.Dense {
	if params == nil {
		return nil
	}
	return mat.NewDense(3, 3, []float64{
		params.Fx, 0, params.Ppx,
		0, params.Fy, params.Ppy,
		0, 0, 1,
	})
}
