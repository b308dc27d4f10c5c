package depthproc

import (
	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// Reconcile brings a label image and its calibration to the resolution of the depth image.
//
// Images of equal size are returned unchanged. Otherwise the scale between them is taken from the
// widths alone: the calibration's focal lengths and principal point are multiplied by
// ratio = depth width / label width, the label is cropped to its first int(depth height / ratio)
// rows and resampled by nearest neighbor to exactly the depth size. Depth and label are assumed to
// share an aspect ratio; when they do not, the height is still scaled by the width ratio.
func Reconcile(
	depth, label *rimage.Image,
	info *transform.CameraInfo,
) (*rimage.Image, *transform.CameraInfo, error) {
	if depth.Width == label.Width && depth.Height == label.Height {
		return label, info, nil
	}
	if label.Width == 0 {
		return nil, nil, newConversionFailure(errEmptyLabel, "cannot rescale label")
	}

	ratio := float32(depth.Width) / float32(label.Width)
	scaled := info.Rescaled(depth.Width, depth.Height, float64(ratio))

	rows := int(float32(depth.Height) / ratio)
	if rows > label.Height {
		rows = label.Height
	}
	cropped, err := rimage.CropRows(label, rows)
	if err != nil {
		return nil, nil, newConversionFailure(err, "cannot crop label")
	}
	resized, err := rimage.ResizeNearest(cropped, depth.Width, depth.Height)
	if err != nil {
		return nil, nil, newConversionFailure(err, "cannot resize label")
	}
	return resized, scaled, nil
}
