package pointcloud

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// fieldCursor walks one field of every point of a cloud in storage order.
type fieldCursor struct {
	data   []byte
	order  binary.ByteOrder
	offset int
	step   int
	row    int
	width  int
	index  int
	end    int
}

func newFieldCursor(c *Cloud, name string, want Datatype) (fieldCursor, error) {
	f, ok := c.Field(name)
	if !ok {
		return fieldCursor{}, errors.Wrapf(ErrFieldNotFound, "%q", name)
	}
	if f.Datatype != want {
		return fieldCursor{}, errors.Wrapf(ErrFieldType, "%q is %d, not %d", name, f.Datatype, want)
	}
	return fieldCursor{
		data:   c.Data,
		order:  c.byteOrder(),
		offset: f.Offset,
		step:   c.PointStep,
		row:    c.RowStep,
		width:  c.Width,
		end:    c.Size(),
	}, nil
}

// Next advances to the following point.
func (fc *fieldCursor) Next() {
	fc.index++
}

// Seek moves to the i-th point.
func (fc *fieldCursor) Seek(i int) {
	fc.index = i
}

// Done returns whether the cursor walked past the last point.
func (fc *fieldCursor) Done() bool {
	return fc.index >= fc.end
}

func (fc *fieldCursor) k() int {
	return (fc.index/fc.width)*fc.row + (fc.index%fc.width)*fc.step + fc.offset
}

// Float32Iterator reads and writes a float32 field point by point.
type Float32Iterator struct {
	fieldCursor
}

// NewFloat32Iterator returns an iterator positioned at the first point over the named field.
func NewFloat32Iterator(c *Cloud, name string) (*Float32Iterator, error) {
	fc, err := newFieldCursor(c, name, Float32)
	if err != nil {
		return nil, err
	}
	return &Float32Iterator{fc}, nil
}

// Get returns the field of the current point.
func (it *Float32Iterator) Get() float32 {
	k := it.k()
	return math.Float32frombits(it.order.Uint32(it.data[k : k+4]))
}

// Set writes the field of the current point.
func (it *Float32Iterator) Set(v float32) {
	k := it.k()
	it.order.PutUint32(it.data[k:k+4], math.Float32bits(v))
}

// Uint32Iterator reads and writes a uint32 field point by point.
type Uint32Iterator struct {
	fieldCursor
}

// NewUint32Iterator returns an iterator positioned at the first point over the named field.
func NewUint32Iterator(c *Cloud, name string) (*Uint32Iterator, error) {
	fc, err := newFieldCursor(c, name, Uint32)
	if err != nil {
		return nil, err
	}
	return &Uint32Iterator{fc}, nil
}

// Get returns the field of the current point.
func (it *Uint32Iterator) Get() uint32 {
	k := it.k()
	return it.order.Uint32(it.data[k : k+4])
}

// Set writes the field of the current point.
func (it *Uint32Iterator) Set(v uint32) {
	k := it.k()
	it.order.PutUint32(it.data[k:k+4], v)
}
