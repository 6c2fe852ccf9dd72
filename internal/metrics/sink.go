package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Engine metrics
	OperationCompleted(op string, outcome string, duration time.Duration)
	ViewSizeUpdate(events, holidays int)
	DirectorySizeUpdate(count int)

	// Dispatcher metrics
	DispatchCompleted(statusClass string, duration time.Duration)
	DispatchOutcome(outcome string)

	// Notification bus metrics
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

// Operation constants for OperationCompleted.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Outcome constants for OperationCompleted and DispatchOutcome.
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeSuccess   = "success"
	OutcomeSkipped   = "skipped"
)
