// Package ros bridges rosbag recordings of sensor_msgs topics into the image and calibration
// types used by the depth processing pipeline.
package ros

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()

	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to create ros bag, error")
	}

	return rb, nil
}

// ParseTopics converts the messages of the given topics to JSON, keeping only those whose
// record time in nanoseconds falls within [startTime, endTime]. A zero bound disables time
// filtering and an empty topic list keeps every topic.
func ParseTopics(rb *rosbag.RosBag, startTime, endTime int64, topicsFilter []string) error {
	var timeFilterFunc func(int64) bool
	if startTime == 0 || endTime == 0 {
		timeFilterFunc = func(timestamp int64) bool {
			return true
		}
	} else {
		timeFilterFunc = func(timestamp int64) bool {
			return timestamp >= startTime && timestamp <= endTime
		}
	}

	var topicFilterFunc func(string) bool
	if len(topicsFilter) == 0 {
		topicFilterFunc = func(string) bool {
			return true
		}
	} else {
		topicsFilterMap := make(map[string]bool)
		for _, topic := range topicsFilter {
			topicsFilterMap[topic] = true
		}
		topicFilterFunc = func(topic string) bool {
			_, ok := topicsFilterMap[topic]
			return ok
		}
	}

	if err := rb.ParseTopicsToJSON("", timeFilterFunc, topicFilterFunc, false); err != nil {
		return errors.Wrapf(err, "error while parsing bag to JSON")
	}

	return nil
}

// RawMessagesForTopic returns the JSON encoding of every message recorded on a topic, in
// record order. The bag must already have been parsed with ParseTopics.
func RawMessagesForTopic(rb *rosbag.RosBag, topic string) ([][]byte, error) {
	msgs := rb.TopicsAsJSON[jsonTopicKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}
	return splitLines(bytes.NewReader(msgs.Bytes()))
}

// jsonTopicKey is the key gobag files a topic's JSON under: no leading slash, the remaining
// slashes replaced by underscores, lower case.
func jsonTopicKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

func splitLines(r io.Reader) ([][]byte, error) {
	br := bufio.NewReader(r)
	var all [][]byte
	for {
		data, err := br.ReadBytes('\n')
		if line := bytes.TrimSpace(data); len(line) > 0 {
			all = append(all, line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return all, nil
}
