package pointcloud

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/xyzl/rimage"
)

func TestNewXYZLLayout(t *testing.T) {
	cloud := NewXYZL(rimage.Header{FrameID: "cam"}, 4, 3)
	test.That(t, cloud.Size(), test.ShouldEqual, 12)
	test.That(t, cloud.PointStep, test.ShouldEqual, 16)
	test.That(t, cloud.RowStep, test.ShouldEqual, 64)
	test.That(t, cloud.Data, test.ShouldHaveLength, 192)
	test.That(t, cloud.IsDense, test.ShouldBeFalse)
	test.That(t, cloud.IsBigEndian, test.ShouldBeFalse)
	test.That(t, cloud.Fields, test.ShouldResemble, []PointField{
		{Name: "x", Offset: 0, Datatype: Float32, Count: 1},
		{Name: "y", Offset: 4, Datatype: Float32, Count: 1},
		{Name: "z", Offset: 8, Datatype: Float32, Count: 1},
		{Name: "label", Offset: 12, Datatype: Uint32, Count: 1},
	})
}

func TestIterators(t *testing.T) {
	cloud := NewXYZL(rimage.Header{}, 2, 2)
	iterX, err := NewFloat32Iterator(cloud, "x")
	test.That(t, err, test.ShouldBeNil)
	iterL, err := NewUint32Iterator(cloud, "label")
	test.That(t, err, test.ShouldBeNil)

	i := 0
	for ; !iterX.Done(); iterX.Next() {
		iterX.Set(float32(i) + 0.5)
		iterL.Set(uint32(10 + i))
		iterL.Next()
		i++
	}
	test.That(t, i, test.ShouldEqual, 4)

	pt, err := cloud.XYZLAt(3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pt, test.ShouldResemble, Point{X: 3.5, Label: 13})

	_, err = cloud.XYZLAt(4)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewFloat32Iterator(cloud, "label")
	test.That(t, errors.Is(err, ErrFieldType), test.ShouldBeTrue)
	_, err = NewUint32Iterator(cloud, "rgb")
	test.That(t, errors.Is(err, ErrFieldNotFound), test.ShouldBeTrue)
}

func TestIteratorNaN(t *testing.T) {
	cloud := NewXYZL(rimage.Header{}, 1, 1)
	iterZ, err := NewFloat32Iterator(cloud, "z")
	test.That(t, err, test.ShouldBeNil)
	iterZ.Set(float32(math.NaN()))
	pt, err := cloud.XYZLAt(0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, math.IsNaN(float64(pt.Z)), test.ShouldBeTrue)
}
