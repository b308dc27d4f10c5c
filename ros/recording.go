package ros

import (
	"slices"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Record is one decoded message of a recording. Message is either a *rimage.Image or a
// *transform.CameraInfo.
type Record struct {
	Topic   string
	Time    time.Time
	Message interface{}
}

// Recording is a set of image and calibration topics of a bag, merged in record order.
type Recording struct {
	Records []Record
}

// Topics names the topics to load from a bag and how to decode them.
type Topics struct {
	Images      []string
	CameraInfos []string
}

// ReadRecording decodes the requested topics of a bag and merges them by record time. Messages
// recorded at the same time keep the order of their topics in the request.
func ReadRecording(rb *rosbag.RosBag, topics Topics) (*Recording, error) {
	all := append(append([]string{}, topics.Images...), topics.CameraInfos...)
	if len(all) == 0 {
		return nil, errors.New("no topics requested")
	}
	if len(lo.Uniq(all)) != len(all) {
		return nil, errors.Errorf("topics requested more than once: %v", lo.FindDuplicates(all))
	}
	if err := ParseTopics(rb, 0, 0, all); err != nil {
		return nil, err
	}

	// topics decode independently; results are concatenated in request order before sorting
	perTopic := make([]Recording, len(all))
	var group errgroup.Group
	for i, topic := range all {
		i, topic := i, topic
		decode := imageRecord
		if i >= len(topics.Images) {
			decode = cameraInfoRecord
		}
		group.Go(func() error {
			return perTopic[i].addTopic(rb, topic, decode)
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	rec := &Recording{}
	for _, r := range perTopic {
		rec.Records = append(rec.Records, r.Records...)
	}
	rec.sort()
	return rec, nil
}

func imageRecord(data []byte) (Record, error) {
	var msg ImageMessage
	if err := unmarshal(data, &msg); err != nil {
		return Record{}, err
	}
	img, err := msg.ToImage()
	return Record{Time: msg.Meta.Time(), Message: img}, err
}

func cameraInfoRecord(data []byte) (Record, error) {
	var msg CameraInfoMessage
	if err := unmarshal(data, &msg); err != nil {
		return Record{}, err
	}
	return Record{Time: msg.Meta.Time(), Message: msg.ToCameraInfo()}, nil
}

func (rec *Recording) addTopic(rb *rosbag.RosBag, topic string, decode func([]byte) (Record, error)) error {
	lines, err := RawMessagesForTopic(rb, topic)
	if err != nil {
		return err
	}
	return rec.addLines(topic, lines, decode)
}

func (rec *Recording) addLines(topic string, lines [][]byte, decode func([]byte) (Record, error)) error {
	for i, line := range lines {
		r, err := decode(line)
		if err != nil {
			return errors.Wrapf(err, "topic %s message %d", topic, i)
		}
		r.Topic = topic
		rec.Records = append(rec.Records, r)
	}
	return nil
}

func (rec *Recording) sort() {
	slices.SortStableFunc(rec.Records, func(a, b Record) int {
		return a.Time.Compare(b.Time)
	})
}

// Count returns the number of records on a topic.
func (rec *Recording) Count(topic string) int {
	n := 0
	for _, r := range rec.Records {
		if r.Topic == topic {
			n++
		}
	}
	return n
}
