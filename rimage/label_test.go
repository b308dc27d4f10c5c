package rimage

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func TestNormalizeLabelPassThrough(t *testing.T) {
	for _, enc := range []Encoding{Type32S, Type8U, Mono8} {
		img, err := NewImage(2, 2, enc)
		test.That(t, err, test.ShouldBeNil)
		out, err := NormalizeLabel(img)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, out, test.ShouldEqual, img)
	}
}

func TestNormalizeLabelWidens(t *testing.T) {
	img, err := NewImage(2, 1, Type16U)
	test.That(t, err, test.ShouldBeNil)
	img.Header.FrameID = "cam"
	img.SetUint16(0, 0, 65535)
	img.SetUint16(1, 0, 12)

	out, err := NormalizeLabel(img)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Encoding, test.ShouldEqual, Type32S)
	test.That(t, out.Header.FrameID, test.ShouldEqual, "cam")
	test.That(t, out.Int32At(0, 0), test.ShouldEqual, int32(65535))
	test.That(t, out.Int32At(1, 0), test.ShouldEqual, int32(12))

	signed := &Image{Width: 1, Height: 1, Encoding: Type8S, Step: 1, Data: []byte{0xFF}}
	out, err = NormalizeLabel(signed)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.Int32At(0, 0), test.ShouldEqual, int32(-1))
}

func TestNormalizeLabelRejects(t *testing.T) {
	for _, enc := range []Encoding{Type32F, "rgb8"} {
		img := &Image{Width: 1, Height: 1, Encoding: enc, Step: 4, Data: make([]byte, 4)}
		_, err := NormalizeLabel(img)
		test.That(t, errors.Is(err, ErrUnsupportedLabelEncoding), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, string(enc))
	}
}
