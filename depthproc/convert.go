package depthproc

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/xyzl/pointcloud"
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// Convert fuses a depth image and a label image of the same size into an organized XYZL cloud with
// the depth image's header and dimensions. Pixels without a valid depth, or with a negative label,
// get NaN coordinates. Every point keeps its label, stored as the label's 32 bit pattern.
func Convert(
	depth, label *rimage.Image,
	params *transform.PinholeCameraIntrinsics,
) (*pointcloud.Cloud, error) {
	proj, err := NewProjector(depth.Encoding, label.Encoding)
	if err != nil {
		return nil, err
	}
	if depth.Width != label.Width || depth.Height != label.Height {
		return nil, errors.Wrapf(ErrConversionFailure, "depth is %dx%d but label is %dx%d",
			depth.Width, depth.Height, label.Width, label.Height)
	}
	if err := depth.Validate(); err != nil {
		return nil, newConversionFailure(err, "bad depth image")
	}
	if err := label.Validate(); err != nil {
		return nil, newConversionFailure(err, "bad label image")
	}

	cloud := pointcloud.NewXYZL(depth.Header, depth.Width, depth.Height)
	iterX, err := pointcloud.NewFloat32Iterator(cloud, "x")
	if err != nil {
		return nil, err
	}
	iterY, err := pointcloud.NewFloat32Iterator(cloud, "y")
	if err != nil {
		return nil, err
	}
	iterZ, err := pointcloud.NewFloat32Iterator(cloud, "z")
	if err != nil {
		return nil, err
	}
	iterL, err := pointcloud.NewUint32Iterator(cloud, "label")
	if err != nil {
		return nil, err
	}

	badPoint := float32(math.NaN())
	for row := 0; row < depth.Height; row++ {
		for col := 0; col < depth.Width; col++ {
			raw := proj.depth.sample(depth, col, row)
			l, unlabelled := proj.label.sample(label, col, row)
			if !proj.depth.isValid(raw) || unlabelled {
				iterX.Set(badPoint)
				iterY.Set(badPoint)
				iterZ.Set(badPoint)
			} else {
				p := proj.Project(row, col, raw, params)
				iterX.Set(float32(p.X))
				iterY.Set(float32(p.Y))
				iterZ.Set(float32(p.Z))
			}
			iterL.Set(l)

			iterX.Next()
			iterY.Next()
			iterZ.Next()
			iterL.Next()
		}
	}
	return cloud, nil
}

// Process turns one synchronized triple into a cloud: it checks that depth and label share a frame,
// reconciles the label with the depth resolution, normalizes the label encoding, and converts.
func Process(
	ctx context.Context,
	depth, label *rimage.Image,
	info *transform.CameraInfo,
) (*pointcloud.Cloud, error) {
	_, span := trace.StartSpan(ctx, "depthproc::Process")
	defer span.End()

	if depth.Header.FrameID != label.Header.FrameID {
		return nil, errors.Wrapf(ErrFrameIdentityMismatch, "depth image frame id [%s] doesn't match label frame id [%s]",
			depth.Header.FrameID, label.Header.FrameID)
	}

	label, info, err := Reconcile(depth, label, info)
	if err != nil {
		return nil, err
	}

	label, err = rimage.NormalizeLabel(label)
	if err != nil {
		if errors.Is(err, ErrUnsupportedLabelEncoding) {
			return nil, err
		}
		return nil, newConversionFailure(err, "cannot normalize label")
	}

	params, err := info.Intrinsics()
	if err != nil {
		return nil, newConversionFailure(err, "bad calibration")
	}
	return Convert(depth, label, params)
}
