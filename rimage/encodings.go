package rimage

import (
	"github.com/pkg/errors"
)

// Encoding is the pixel format tag carried by an image message, using the sensor_msgs spellings.
type Encoding string

// Single channel encodings understood by this package.
const (
	Mono8   Encoding = "mono8"
	Mono16  Encoding = "mono16"
	Type8U  Encoding = "8UC1"
	Type8S  Encoding = "8SC1"
	Type16U Encoding = "16UC1"
	Type16S Encoding = "16SC1"
	Type32S Encoding = "32SC1"
	Type32F Encoding = "32FC1"
	Type64F Encoding = "64FC1"
)

// SampleKind is the numeric type of a single sample.
type SampleKind int

// The numeric sample kinds an Encoding can describe.
const (
	KindUnknown SampleKind = iota
	KindUint8
	KindInt8
	KindUint16
	KindInt16
	KindInt32
	KindFloat32
	KindFloat64
)

func (k SampleKind) String() string {
	switch k {
	case KindUint8:
		return "uint8"
	case KindInt8:
		return "int8"
	case KindUint16:
		return "uint16"
	case KindInt16:
		return "int16"
	case KindInt32:
		return "int32"
	case KindFloat32:
		return "float32"
	case KindFloat64:
		return "float64"
	case KindUnknown:
	}
	return "unknown"
}

// Size returns the number of bytes of one sample of this kind.
func (k SampleKind) Size() int {
	switch k {
	case KindUint8, KindInt8:
		return 1
	case KindUint16, KindInt16:
		return 2
	case KindInt32, KindFloat32:
		return 4
	case KindFloat64:
		return 8
	case KindUnknown:
	}
	return 0
}

// IsInteger reports whether samples of this kind are integers.
func (k SampleKind) IsInteger() bool {
	switch k {
	case KindUint8, KindInt8, KindUint16, KindInt16, KindInt32:
		return true
	case KindUnknown, KindFloat32, KindFloat64:
	}
	return false
}

// ErrUnknownEncoding is returned for encodings this package cannot interpret.
var ErrUnknownEncoding = errors.New("unknown image encoding")

// Kind returns the sample kind of a single channel encoding.
func (e Encoding) Kind() (SampleKind, error) {
	switch e {
	case Mono8, Type8U:
		return KindUint8, nil
	case Type8S:
		return KindInt8, nil
	case Mono16, Type16U:
		return KindUint16, nil
	case Type16S:
		return KindInt16, nil
	case Type32S:
		return KindInt32, nil
	case Type32F:
		return KindFloat32, nil
	case Type64F:
		return KindFloat64, nil
	}
	return KindUnknown, errors.Wrapf(ErrUnknownEncoding, "%q", string(e))
}

// BytesPerSample returns the size in bytes of one sample, or an error for unknown encodings.
func (e Encoding) BytesPerSample() (int, error) {
	k, err := e.Kind()
	if err != nil {
		return 0, err
	}
	return k.Size(), nil
}
