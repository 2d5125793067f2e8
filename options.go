package avsession

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// DefaultIterationInterval is used when the engine reports no interval
// preference. 50 iterations per second is typical for A/V workloads.
const DefaultIterationInterval = 20 * time.Millisecond

// Options configures a Controller.
type Options struct {
	// Logger receives structured log output. Defaults to the standard
	// logrus logger.
	Logger *logrus.Logger

	// Registerer receives the controller's prometheus collectors. Leave
	// nil to collect without registering (useful when running several
	// controllers in one process).
	Registerer prometheus.Registerer

	// FallbackInterval bounds the continuous loop's wait when the engine
	// reports a zero interval.
	FallbackInterval time.Duration
}

// NewOptions returns an Options with default values.
func NewOptions() *Options {
	return &Options{
		FallbackInterval: DefaultIterationInterval,
	}
}

func (o *Options) normalize() *Options {
	out := &Options{}
	if o != nil {
		*out = *o
	}
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	if out.FallbackInterval <= 0 {
		out.FallbackInterval = DefaultIterationInterval
	}
	return out
}
