package depthproc

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

type depthKind int

const (
	depthUint16 depthKind = iota
	depthFloat32
)

func depthKindOf(enc rimage.Encoding) (depthKind, error) {
	switch enc {
	case rimage.Type16U:
		return depthUint16, nil
	case rimage.Type32F:
		return depthFloat32, nil
	case rimage.Mono8, rimage.Mono16, rimage.Type8U, rimage.Type8S, rimage.Type16S,
		rimage.Type32S, rimage.Type64F:
	}
	return 0, errors.Wrapf(ErrUnsupportedDepthEncoding, "[%s]", enc)
}

// sample returns the raw depth at (x, y). 16 bit depths are exact in a float32.
func (k depthKind) sample(img *rimage.Image, x, y int) float32 {
	if k == depthUint16 {
		return float32(img.Uint16At(x, y))
	}
	return img.Float32At(x, y)
}

// toMeters converts a raw depth: millimeters for 16 bit depth, meters already for float depth.
func (k depthKind) toMeters(raw float32) float32 {
	if k == depthUint16 {
		return raw * 0.001
	}
	return raw
}

// isValid reports whether a raw depth is a measurement: non-zero, and finite for float depth.
func (k depthKind) isValid(raw float32) bool {
	if k == depthUint16 {
		return raw != 0
	}
	return raw != 0 && !math.IsNaN(float64(raw)) && !math.IsInf(float64(raw), 0)
}

type labelKind int

const (
	labelUint8 labelKind = iota
	labelInt32
)

func labelKindOf(enc rimage.Encoding) (labelKind, error) {
	switch enc {
	case rimage.Type8U, rimage.Mono8:
		return labelUint8, nil
	case rimage.Type32S:
		return labelInt32, nil
	case rimage.Mono16, rimage.Type8S, rimage.Type16U, rimage.Type16S, rimage.Type32F, rimage.Type64F:
	}
	return 0, errors.Wrapf(ErrUnsupportedLabelEncoding, "[%s]", enc)
}

// sample returns the label at (x, y) as its 32 bit pattern, and whether it marks the pixel as
// unlabelled. Only signed labels can be negative.
func (k labelKind) sample(img *rimage.Image, x, y int) (uint32, bool) {
	if k == labelUint8 {
		return uint32(img.Uint8At(x, y)), false
	}
	v := img.Int32At(x, y)
	return uint32(v), v < 0
}

// Projector turns depth pixels into camera frame points for one pairing of depth and label
// encodings. It is chosen once per frame.
type Projector struct {
	depth depthKind
	label labelKind
}

// NewProjector returns the projector for the given depth and label encodings.
func NewProjector(depthEncoding, labelEncoding rimage.Encoding) (Projector, error) {
	dk, err := depthKindOf(depthEncoding)
	if err != nil {
		return Projector{}, err
	}
	lk, err := labelKindOf(labelEncoding)
	if err != nil {
		return Projector{}, err
	}
	return Projector{depth: dk, label: lk}, nil
}

// ToMeters converts a raw depth sample to meters.
func (p Projector) ToMeters(raw float32) float32 {
	return p.depth.toMeters(raw)
}

// IsValidDepth reports whether a raw depth sample is a measurement.
func (p Projector) IsValidDepth(raw float32) bool {
	return p.depth.isValid(raw)
}

// Project returns the point seen at (row, col) with the given raw depth:
// z = ToMeters(raw), x = (col-cx)*z/fx, y = (row-cy)*z/fy.
func (p Projector) Project(row, col int, raw float32, params *transform.PinholeCameraIntrinsics) r3.Vector {
	z := p.depth.toMeters(raw)
	return params.PixelToVector(float64(col), float64(row), float64(z))
}
