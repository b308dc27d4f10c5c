// Package transport is an in-process topic bus carrying images, calibrations and point clouds
// between producers and consumers.
//
// Producers Advertise a topic and Publish on it; consumers Subscribe with a queue size and a
// transport hint. Every subscription has its own bounded queue and delivery goroutine: when a
// consumer falls behind, its oldest pending message is dropped. Publishers may register connect and
// disconnect callbacks to learn when consumers come and go; those callbacks run one at a time on a
// dispatcher goroutine, never on the goroutine that subscribed.
package transport

import (
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Known transports. Messages are not re-encoded in process: a transport only selects which
// publisher offerings a subscription is connected to.
const (
	RawTransport             = "raw"
	CompressedTransport      = "compressed"
	CompressedDepthTransport = "compressedDepth"
	TheoraTransport          = "theora"
)

var knownTransports = []string{RawTransport, CompressedTransport, CompressedDepthTransport, TheoraTransport}

// ErrUnknownTransport is returned when a hint or offering names a transport that does not exist.
var ErrUnknownTransport = errors.New("unknown transport")

// TransportHints selects how a subscription wants to receive a topic.
type TransportHints struct {
	Transport string
}

// DefaultTransportHints returns hints selecting the raw transport.
func DefaultTransportHints() TransportHints {
	return TransportHints{Transport: RawTransport}
}

// NewTransportHints returns hints for the named transport; an empty name means raw.
func NewTransportHints(transport string) TransportHints {
	if transport == "" {
		transport = RawTransport
	}
	return TransportHints{Transport: transport}
}

// Validate checks that the hinted transport exists.
func (h TransportHints) Validate() error {
	return validateTransport(h.Transport)
}

func validateTransport(name string) error {
	if !lo.Contains(knownTransports, name) {
		return errors.Wrapf(ErrUnknownTransport, "%q (known: %v)", name, knownTransports)
	}
	return nil
}
