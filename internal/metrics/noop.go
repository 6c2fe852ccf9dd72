package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) OperationCompleted(op string, outcome string, duration time.Duration) {}
func (n *NoopSink) ViewSizeUpdate(events, holidays int)                                  {}
func (n *NoopSink) DirectorySizeUpdate(count int)                                        {}
func (n *NoopSink) DispatchCompleted(statusClass string, duration time.Duration)         {}
func (n *NoopSink) DispatchOutcome(outcome string)                                       {}
func (n *NoopSink) BufferSizeUpdate(size int)                                            {}
func (n *NoopSink) BufferCapacitySet(capacity int)                                       {}
func (n *NoopSink) EmitError()                                                           {}
