package rimage

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/pkg/errors"
)

// Header carries the acquisition time and coordinate frame of a message.
type Header struct {
	Seq     uint32
	Stamp   time.Time
	FrameID string
}

// Image is a single channel raster as delivered by an image transport. Rows are Step bytes apart
// and samples are laid out as described by Encoding. An Image is treated as immutable once it has
// been published.
type Image struct {
	Header      Header
	Width       int
	Height      int
	Encoding    Encoding
	IsBigEndian bool
	Step        int
	Data        []byte
}

// NewImage returns a zeroed, tightly packed little endian image.
func NewImage(width, height int, encoding Encoding) (*Image, error) {
	if width < 0 || height < 0 {
		return nil, errors.Errorf("bad image size %dx%d", width, height)
	}
	bps, err := encoding.BytesPerSample()
	if err != nil {
		return nil, err
	}
	return &Image{
		Width:    width,
		Height:   height,
		Encoding: encoding,
		Step:     width * bps,
		Data:     make([]byte, width*height*bps),
	}, nil
}

// Stamp returns the acquisition time of the image.
func (i *Image) Stamp() time.Time {
	return i.Header.Stamp
}

// Validate checks that the image data can be interpreted under its declared encoding.
func (i *Image) Validate() error {
	bps, err := i.Encoding.BytesPerSample()
	if err != nil {
		return err
	}
	if i.Width < 0 || i.Height < 0 {
		return errors.Errorf("bad image size %dx%d", i.Width, i.Height)
	}
	if i.Step < i.Width*bps {
		return errors.Errorf("row step %d is smaller than %d pixels of %d bytes", i.Step, i.Width, bps)
	}
	if i.Height == 0 || i.Width == 0 {
		return nil
	}
	if need := (i.Height-1)*i.Step + i.Width*bps; len(i.Data) < need {
		return errors.Errorf("image data has %d bytes, expected at least %d", len(i.Data), need)
	}
	return nil
}

// Clone returns a deep copy of the image.
func (i *Image) Clone() *Image {
	ret := *i
	ret.Data = make([]byte, len(i.Data))
	copy(ret.Data, i.Data)
	return &ret
}

func (i *Image) byteOrder() binary.ByteOrder {
	if i.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (i *Image) kxy(x, y, size int) int {
	return y*i.Step + x*size
}

// Uint8At returns the sample at (x, y) of an 8 bit unsigned image.
func (i *Image) Uint8At(x, y int) uint8 {
	return i.Data[i.kxy(x, y, 1)]
}

// Int8At returns the sample at (x, y) of an 8 bit signed image.
func (i *Image) Int8At(x, y int) int8 {
	return int8(i.Data[i.kxy(x, y, 1)])
}

// Uint16At returns the sample at (x, y) of a 16 bit unsigned image.
func (i *Image) Uint16At(x, y int) uint16 {
	k := i.kxy(x, y, 2)
	return i.byteOrder().Uint16(i.Data[k : k+2])
}

// Int16At returns the sample at (x, y) of a 16 bit signed image.
func (i *Image) Int16At(x, y int) int16 {
	return int16(i.Uint16At(x, y))
}

// Int32At returns the sample at (x, y) of a 32 bit signed image.
func (i *Image) Int32At(x, y int) int32 {
	k := i.kxy(x, y, 4)
	return int32(i.byteOrder().Uint32(i.Data[k : k+4]))
}

// Float32At returns the sample at (x, y) of a 32 bit float image.
func (i *Image) Float32At(x, y int) float32 {
	k := i.kxy(x, y, 4)
	return math.Float32frombits(i.byteOrder().Uint32(i.Data[k : k+4]))
}

// SetUint8 sets the sample at (x, y) of an 8 bit image.
func (i *Image) SetUint8(x, y int, v uint8) {
	i.Data[i.kxy(x, y, 1)] = v
}

// SetUint16 sets the sample at (x, y) of a 16 bit image.
func (i *Image) SetUint16(x, y int, v uint16) {
	k := i.kxy(x, y, 2)
	i.byteOrder().PutUint16(i.Data[k:k+2], v)
}

// SetInt32 sets the sample at (x, y) of a 32 bit signed image.
func (i *Image) SetInt32(x, y int, v int32) {
	k := i.kxy(x, y, 4)
	i.byteOrder().PutUint32(i.Data[k:k+4], uint32(v))
}

// SetFloat32 sets the sample at (x, y) of a 32 bit float image.
func (i *Image) SetFloat32(x, y int, v float32) {
	k := i.kxy(x, y, 4)
	i.byteOrder().PutUint32(i.Data[k:k+4], math.Float32bits(v))
}
