package depthproc

import (
	"encoding/json"
	"os"
	"path"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/xyzl/msgsync"
	"go.viam.com/xyzl/transport"
)

// Defaults for an empty Config.
const (
	DefaultDepthNamespace = "depth_registered"
	DefaultLabelNamespace = "label"
)

// Config configures a PointCloudXYZL node.
type Config struct {
	// QueueSize is the number of messages buffered per input stream by the synchronizer.
	QueueSize int `json:"queue_size,omitempty"`
	// DepthImageTransport is the transport used for the depth image.
	DepthImageTransport string `json:"depth_image_transport,omitempty"`
	// ImageTransport is the transport used for the label image.
	ImageTransport string `json:"image_transport,omitempty"`
	// ApproximateSyncMaxInterval is the largest spread, in seconds, of the stamps of a matched
	// triple. Zero means unbounded.
	ApproximateSyncMaxInterval float64 `json:"approximate_sync_max_interval,omitempty"`
	DepthNamespace             string  `json:"depth_namespace,omitempty"`
	LabelNamespace             string  `json:"label_namespace,omitempty"`
}

// Validate checks the config and returns the topics the node consumes.
func (cfg *Config) Validate(path string) ([]string, error) {
	if cfg.QueueSize < 0 {
		return nil, utils.NewConfigValidationError(path, errors.Errorf("queue_size must be non-negative, got %d", cfg.QueueSize))
	}
	if cfg.ApproximateSyncMaxInterval < 0 {
		return nil, utils.NewConfigValidationError(path,
			errors.Errorf("approximate_sync_max_interval must be non-negative, got %v", cfg.ApproximateSyncMaxInterval))
	}
	withDefaults := cfg.withDefaults()
	if err := transport.NewTransportHints(withDefaults.DepthImageTransport).Validate(); err != nil {
		return nil, utils.NewConfigValidationError(path, errors.Wrap(err, "depth_image_transport"))
	}
	if err := transport.NewTransportHints(withDefaults.ImageTransport).Validate(); err != nil {
		return nil, utils.NewConfigValidationError(path, errors.Wrap(err, "image_transport"))
	}
	return []string{withDefaults.DepthTopic(), withDefaults.LabelTopic(), withDefaults.InfoTopic()}, nil
}

func (cfg Config) withDefaults() Config {
	if cfg.QueueSize == 0 {
		cfg.QueueSize = msgsync.DefaultQueueSize
	}
	if cfg.DepthImageTransport == "" {
		cfg.DepthImageTransport = transport.RawTransport
	}
	if cfg.ImageTransport == "" {
		cfg.ImageTransport = transport.RawTransport
	}
	if cfg.DepthNamespace == "" {
		cfg.DepthNamespace = DefaultDepthNamespace
	}
	if cfg.LabelNamespace == "" {
		cfg.LabelNamespace = DefaultLabelNamespace
	}
	return cfg
}

// DepthTopic is the topic of the rectified depth image.
func (cfg Config) DepthTopic() string {
	return path.Join(cfg.DepthNamespace, "image_rect")
}

// LabelTopic is the topic of the label image.
func (cfg Config) LabelTopic() string {
	return path.Join(cfg.LabelNamespace, "label")
}

// InfoTopic is the topic of the label camera's calibration.
func (cfg Config) InfoTopic() string {
	return path.Join(cfg.LabelNamespace, "camera_info")
}

// OutputTopic is the topic the clouds are published on.
func (cfg Config) OutputTopic() string {
	return path.Join(cfg.DepthNamespace, "points")
}

// MaxInterval is ApproximateSyncMaxInterval as a duration.
func (cfg Config) MaxInterval() time.Duration {
	return time.Duration(cfg.ApproximateSyncMaxInterval * float64(time.Second))
}

// NewConfigFromAttributes decodes a config from a generic attribute map, such as one read from a
// larger JSON document.
func NewConfigFromAttributes(attributes map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: &conf})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attributes); err != nil {
		return nil, err
	}
	return &conf, nil
}

// ReadConfigFile reads a JSON config file.
func ReadConfigFile(filePath string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	var attributes map[string]interface{}
	if err := json.Unmarshal(data, &attributes); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}
	conf, err := NewConfigFromAttributes(attributes)
	if err != nil {
		return nil, errors.Wrapf(err, "error decoding config file %q", filePath)
	}
	return conf, nil
}
