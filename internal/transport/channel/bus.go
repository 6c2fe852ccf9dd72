// Package channel carries notification requests from the engine to the
// dispatcher over a buffered channel. Emitting never blocks the create path:
// a full buffer is an error the caller logs and drops.
package channel

import (
	"errors"

	"agendacal/internal/notify"
)

// ErrBusFull is returned when the buffer has no room for another request.
var ErrBusFull = errors.New("notification bus full")

// MetricsSink records bus occupancy. Optional.
type MetricsSink interface {
	BufferSizeUpdate(size int)
	BufferCapacitySet(capacity int)
	EmitError()
}

type Bus struct {
	ch      chan notify.Request
	metrics MetricsSink
}

type Option func(*Bus)

// WithMetrics attaches a metrics sink to the bus.
func WithMetrics(sink MetricsSink) Option {
	return func(b *Bus) {
		b.metrics = sink
	}
}

func NewBus(buffer int, opts ...Option) *Bus {
	b := &Bus{ch: make(chan notify.Request, buffer)}
	for _, opt := range opts {
		opt(b)
	}
	if b.metrics != nil {
		b.metrics.BufferCapacitySet(buffer)
	}
	return b
}

// Emit queues a request without blocking. Returns ErrBusFull when the
// dispatcher has fallen behind; notifications are best-effort, so the
// caller drops the request after logging.
func (b *Bus) Emit(req notify.Request) error {
	select {
	case b.ch <- req:
		if b.metrics != nil {
			b.metrics.BufferSizeUpdate(len(b.ch))
		}
		return nil
	default:
		if b.metrics != nil {
			b.metrics.EmitError()
		}
		return ErrBusFull
	}
}

// Channel exposes the consumer side for the dispatcher.
func (b *Bus) Channel() <-chan notify.Request {
	return b.ch
}
