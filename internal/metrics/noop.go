package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickCompleted(duration time.Duration, fired int) {}
func (n *NoopSink) VerificationCompleted(outcome string)            {}
func (n *NoopSink) DispatchCompleted(kind string, err error)        {}
