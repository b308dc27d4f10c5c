package rimage

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrUnsupportedLabelEncoding is returned when a label image cannot be losslessly represented as
// 32 bit signed labels.
var ErrUnsupportedLabelEncoding = errors.New("unsupported label encoding")

// LabelEncodings are the label formats consumed as-is.
var LabelEncodings = []Encoding{Type32S, Type8U, Mono8}

// IsLabelEncoding returns whether e is consumed as a label image without conversion.
func IsLabelEncoding(e Encoding) bool {
	return lo.Contains(LabelEncodings, e)
}

// NormalizeLabel returns a label image whose encoding is one of LabelEncodings. Images already in
// such an encoding are returned unchanged. Other single channel integer images are widened to
// 32SC1, which preserves every value.
func NormalizeLabel(img *Image) (*Image, error) {
	if IsLabelEncoding(img.Encoding) {
		return img, nil
	}
	kind, err := img.Encoding.Kind()
	if err != nil || !kind.IsInteger() {
		return nil, errors.Wrapf(ErrUnsupportedLabelEncoding, "[%s]", img.Encoding)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}

	dst, err := NewImage(img.Width, img.Height, Type32S)
	if err != nil {
		return nil, err
	}
	dst.Header = img.Header
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			var v int32
			switch kind {
			case KindUint8:
				v = int32(img.Uint8At(x, y))
			case KindInt8:
				v = int32(img.Int8At(x, y))
			case KindUint16:
				v = int32(img.Uint16At(x, y))
			case KindInt16:
				v = int32(img.Int16At(x, y))
			case KindInt32:
				v = img.Int32At(x, y)
			case KindUnknown, KindFloat32, KindFloat64:
				return nil, errors.Wrapf(ErrUnsupportedLabelEncoding, "[%s]", img.Encoding)
			}
			dst.SetInt32(x, y, v)
		}
	}
	return dst, nil
}
