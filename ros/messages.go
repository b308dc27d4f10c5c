package ros

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"go.viam.com/xyzl/rimage"
	"go.viam.com/xyzl/rimage/transform"
)

// Time is a ROS timestamp.
type Time struct {
	Secs  int64
	Nsecs int64
}

// Time converts the stamp to a time.Time.
func (t Time) Time() time.Time {
	return time.Unix(t.Secs, t.Nsecs)
}

// Header is a std_msgs/Header.
type Header struct {
	Seq     uint32
	Stamp   Time
	FrameID string `json:"frame_id"`
}

func (h Header) toHeader() rimage.Header {
	return rimage.Header{Seq: h.Seq, Stamp: h.Stamp.Time(), FrameID: h.FrameID}
}

// ImageMessage is a sensor_msgs/Image record as decoded from a bag.
type ImageMessage struct {
	Meta Time
	Data struct {
		Header      Header
		Height      int
		Width       int
		Encoding    string
		IsBigEndian uint8 `json:"is_bigendian"`
		Step        int
		Data        []byte
	}
}

// ToImage converts the message to an image. The layout is only checked for encodings the
// pipeline knows how to read; anything else is passed through so consumers can reject it.
func (m *ImageMessage) ToImage() (*rimage.Image, error) {
	img := &rimage.Image{
		Header:      m.Data.Header.toHeader(),
		Width:       m.Data.Width,
		Height:      m.Data.Height,
		Encoding:    rimage.Encoding(m.Data.Encoding),
		IsBigEndian: m.Data.IsBigEndian != 0,
		Step:        m.Data.Step,
		Data:        m.Data.Data,
	}
	if _, err := img.Encoding.Kind(); err != nil {
		return img, nil
	}
	if err := img.Validate(); err != nil {
		return nil, errors.Wrapf(err, "bad image message seq %d", m.Data.Header.Seq)
	}
	return img, nil
}

// CameraInfoMessage is a sensor_msgs/CameraInfo record as decoded from a bag.
type CameraInfoMessage struct {
	Meta Time
	Data struct {
		Header          Header
		Height          int
		Width           int
		DistortionModel string `json:"distortion_model"`
		D               []float64
		K               [9]float64
		R               [9]float64
		P               [12]float64
		BinningX        int `json:"binning_x"`
		BinningY        int `json:"binning_y"`
		ROI             transform.RegionOfInterest
	}
}

// ToCameraInfo converts the message to a calibration.
func (m *CameraInfoMessage) ToCameraInfo() *transform.CameraInfo {
	return &transform.CameraInfo{
		Header:          m.Data.Header.toHeader(),
		Width:           m.Data.Width,
		Height:          m.Data.Height,
		DistortionModel: m.Data.DistortionModel,
		D:               m.Data.D,
		K:               m.Data.K,
		R:               m.Data.R,
		P:               m.Data.P,
		BinningX:        m.Data.BinningX,
		BinningY:        m.Data.BinningY,
		ROI:             m.Data.ROI,
	}
}

func unmarshal(data []byte, msg interface{}) error {
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrapf(err, "cannot decode %T", msg)
	}
	return nil
}

// DecodeImage decodes one JSON encoded sensor_msgs/Image record.
func DecodeImage(data []byte) (*rimage.Image, error) {
	var msg ImageMessage
	if err := unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return msg.ToImage()
}

// DecodeCameraInfo decodes one JSON encoded sensor_msgs/CameraInfo record.
func DecodeCameraInfo(data []byte) (*transform.CameraInfo, error) {
	var msg CameraInfoMessage
	if err := unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return msg.ToCameraInfo(), nil
}
