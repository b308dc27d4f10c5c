package depthproc

import (
	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
)

var (
	// ErrFrameIdentityMismatch is returned when the depth and label images of a triple were taken in
	// different coordinate frames.
	ErrFrameIdentityMismatch = errors.New("depth and label frame ids differ")

	// ErrUnsupportedDepthEncoding is returned for depth images that are neither 16UC1 nor 32FC1.
	ErrUnsupportedDepthEncoding = errors.New("unsupported depth encoding")

	// ErrUnsupportedLabelEncoding is returned for label images that cannot be read as integer labels.
	ErrUnsupportedLabelEncoding = rimage.ErrUnsupportedLabelEncoding

	// ErrConversionFailure is returned when an image does not hold the data its header declares, or
	// when the calibration cannot be used for projection.
	ErrConversionFailure = errors.New("image conversion failed")

	errEmptyLabel = errors.New("label image has zero width")
)

func newConversionFailure(err error, msg string) error {
	return errors.Wrapf(ErrConversionFailure, "%s: %v", msg, err)
}
