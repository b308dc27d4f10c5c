// Package pointcloud defines an organized, schema tagged point cloud buffer and the XYZL layout
// produced by depth and label fusion.
//
// A Cloud stores points as fixed size records in a flat byte slice, Height rows of Width points.
// The layout of each record is described by its Fields, so consumers can read any field by name
// without knowing the producer's types.
package pointcloud

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
)

// Datatype is the numeric type of a point field, numbered as in sensor_msgs/PointField.
type Datatype uint8

// The point field datatypes.
const (
	Int8    Datatype = 1
	Uint8   Datatype = 2
	Int16   Datatype = 3
	Uint16  Datatype = 4
	Int32   Datatype = 5
	Uint32  Datatype = 6
	Float32 Datatype = 7
	Float64 Datatype = 8
)

// Size returns the number of bytes of one element of the datatype.
func (d Datatype) Size() int {
	switch d {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Float64:
		return 8
	}
	return 0
}

// PointField describes one named field of a point record.
type PointField struct {
	Name     string
	Offset   int
	Datatype Datatype
	Count    int
}

// FieldSpec is a field to add to a cloud's schema; offsets are assigned in order.
type FieldSpec struct {
	Name     string
	Count    int
	Datatype Datatype
}

// XYZLFields is the schema of a labelled cloud: three float32 coordinates and a uint32 label.
var XYZLFields = []FieldSpec{
	{Name: "x", Count: 1, Datatype: Float32},
	{Name: "y", Count: 1, Datatype: Float32},
	{Name: "z", Count: 1, Datatype: Float32},
	{Name: "label", Count: 1, Datatype: Uint32},
}

// Cloud is an organized point cloud. Points are stored row-major, PointStep bytes apart, with rows
// RowStep bytes apart. IsDense is false when points may hold NaN coordinates.
type Cloud struct {
	Header      rimage.Header
	Height      int
	Width       int
	Fields      []PointField
	IsBigEndian bool
	PointStep   int
	RowStep     int
	Data        []byte
	IsDense     bool
}

// Point is a single labelled point. X, Y and Z are either all NaN or all finite.
type Point struct {
	X, Y, Z float32
	Label   uint32
}

// New returns a cloud of width x height points using the given schema, with zeroed data.
func New(header rimage.Header, width, height int, fields ...FieldSpec) *Cloud {
	cloud := &Cloud{
		Header: header,
		Width:  width,
		Height: height,
	}
	cloud.SetFields(fields...)
	return cloud
}

// NewXYZL returns a width x height cloud with the XYZLFields schema. It is not dense.
func NewXYZL(header rimage.Header, width, height int) *Cloud {
	return New(header, width, height, XYZLFields...)
}

// SetFields replaces the schema of the cloud, packing fields back to back in the given order, and
// resizes the data to hold Width x Height points.
func (c *Cloud) SetFields(fields ...FieldSpec) {
	c.Fields = make([]PointField, 0, len(fields))
	offset := 0
	for _, f := range fields {
		c.Fields = append(c.Fields, PointField{
			Name:     f.Name,
			Offset:   offset,
			Datatype: f.Datatype,
			Count:    f.Count,
		})
		offset += f.Count * f.Datatype.Size()
	}
	c.PointStep = offset
	c.RowStep = c.Width * c.PointStep
	c.Data = make([]byte, c.Height*c.RowStep)
}

// Size returns the number of points in the cloud.
func (c *Cloud) Size() int {
	return c.Width * c.Height
}

// Field returns the field with the given name.
func (c *Cloud) Field(name string) (PointField, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return PointField{}, false
}

func (c *Cloud) byteOrder() binary.ByteOrder {
	if c.IsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ErrFieldNotFound is returned when a field is not part of a cloud's schema.
var ErrFieldNotFound = errors.New("point field not found")

// ErrFieldType is returned when a field is accessed as the wrong type.
var ErrFieldType = errors.New("point field has a different datatype")

// XYZLAt returns the i-th point of a cloud with the XYZLFields schema.
func (c *Cloud) XYZLAt(i int) (Point, error) {
	iterX, err := NewFloat32Iterator(c, "x")
	if err != nil {
		return Point{}, err
	}
	iterY, err := NewFloat32Iterator(c, "y")
	if err != nil {
		return Point{}, err
	}
	iterZ, err := NewFloat32Iterator(c, "z")
	if err != nil {
		return Point{}, err
	}
	iterL, err := NewUint32Iterator(c, "label")
	if err != nil {
		return Point{}, err
	}
	if i < 0 || i >= c.Size() {
		return Point{}, errors.Errorf("point index %d out of range [0, %d)", i, c.Size())
	}
	iterX.Seek(i)
	iterY.Seek(i)
	iterZ.Seek(i)
	iterL.Seek(i)
	return Point{X: iterX.Get(), Y: iterY.Get(), Z: iterZ.Get(), Label: iterL.Get()}, nil
}
