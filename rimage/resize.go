package rimage

import (
	"github.com/pkg/errors"
)

// CropRows returns a view of the first rows of the image. The returned image shares its data with
// the input.
func CropRows(img *Image, rows int) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if rows < 0 || rows > img.Height {
		return nil, errors.Errorf("cannot crop %d rows from an image with %d rows", rows, img.Height)
	}
	ret := *img
	ret.Height = rows
	if rows == 0 {
		ret.Data = nil
		return &ret, nil
	}
	end := rows * img.Step
	if end > len(img.Data) {
		// the final row of a validated image may omit its padding
		end = len(img.Data)
	}
	ret.Data = img.Data[:end]
	return &ret, nil
}

// nearestIndex maps a destination index onto the source axis by flooring, as OpenCV's
// INTER_NEAREST does.
func nearestIndex(dst, srcSize, dstSize int) int {
	src := int(int64(dst) * int64(srcSize) / int64(dstSize))
	if src > srcSize-1 {
		src = srcSize - 1
	}
	return src
}

// ResizeNearest resamples the image to width x height by nearest neighbor. Samples are copied
// verbatim so categorical values such as labels are never blended. Resizing to the current size
// returns a copy with identical samples.
func ResizeNearest(img *Image, width, height int) (*Image, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, errors.Errorf("bad target size %dx%d", width, height)
	}
	if img.Width == 0 || img.Height == 0 {
		return nil, errors.Errorf("cannot resize an empty %dx%d image", img.Width, img.Height)
	}
	dst, err := NewImage(width, height, img.Encoding)
	if err != nil {
		return nil, err
	}
	dst.Header = img.Header
	dst.IsBigEndian = img.IsBigEndian

	size, err := img.Encoding.BytesPerSample()
	if err != nil {
		return nil, err
	}
	xOffsets := make([]int, width)
	for x := range xOffsets {
		xOffsets[x] = nearestIndex(x, img.Width, width) * size
	}
	for y := 0; y < height; y++ {
		srcRow := img.Data[nearestIndex(y, img.Height, height)*img.Step:]
		dstRow := dst.Data[y*dst.Step:]
		for x, off := range xOffsets {
			copy(dstRow[x*size:(x+1)*size], srcRow[off:off+size])
		}
	}
	return dst, nil
}
