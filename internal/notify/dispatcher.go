package notify

import (
	"context"
	"errors"
	"log"
	"time"

	"agendacal/internal/circuitbreaker"
)

// MetricsSink records dispatch metrics. All methods must be non-blocking
// and fire-and-forget.
type MetricsSink interface {
	DispatchCompleted(statusClass string, duration time.Duration)
	DispatchOutcome(outcome string)
}

// Dispatcher consumes queued notification requests and sends each exactly
// once. Failures are logged and absorbed: by the time a request reaches the
// dispatcher the event creation has already committed, and nothing here may
// alter that outcome.
type Dispatcher struct {
	sender       Sender
	breaker      *circuitbreaker.Breaker // optional, nil = disabled
	metrics      MetricsSink             // optional, nil = disabled
	drainTimeout time.Duration
}

// DrainTimeout is the default maximum time spent on buffered requests
// during shutdown.
const DrainTimeout = 30 * time.Second

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{
		sender:       sender,
		drainTimeout: DrainTimeout,
	}
}

// WithBreaker attaches a circuit breaker guarding the service endpoint.
func (d *Dispatcher) WithBreaker(b *circuitbreaker.Breaker) *Dispatcher {
	d.breaker = b
	return d
}

// WithMetrics attaches a metrics sink.
func (d *Dispatcher) WithMetrics(sink MetricsSink) *Dispatcher {
	d.metrics = sink
	return d
}

// WithDrainTimeout overrides the shutdown drain timeout.
func (d *Dispatcher) WithDrainTimeout(timeout time.Duration) *Dispatcher {
	d.drainTimeout = timeout
	return d
}

// Run processes requests from the channel until the context is cancelled,
// then drains what is still buffered.
func (d *Dispatcher) Run(ctx context.Context, ch <-chan Request) {
	for {
		select {
		case <-ctx.Done():
			d.drain(ch)
			return
		case req := <-ch:
			d.Dispatch(ctx, req)
		}
	}
}

// drain sends remaining buffered requests after the shutdown signal, bounded
// by the drain timeout. Uses a background context since the main context is
// already cancelled.
func (d *Dispatcher) drain(ch <-chan Request) {
	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()

	count := 0
	for {
		select {
		case <-drainCtx.Done():
			if count > 0 {
				log.Printf("notify: drain timeout, sent %d notifications", count)
			}
			return
		case req, ok := <-ch:
			if !ok {
				log.Printf("notify: drain complete, sent %d notifications", count)
				return
			}
			d.Dispatch(drainCtx, req)
			count++
		default:
			if count > 0 {
				log.Printf("notify: drain complete, sent %d notifications", count)
			}
			return
		}
	}
}

// Dispatch performs one send. It never returns an error: every failure path
// ends in a log line.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) {
	if d.breaker != nil {
		if err := d.breaker.Allow(); err != nil {
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				log.Printf("notify: service circuit open, skipping notification for %q", req.EventName)
				d.outcome("skipped")
				return
			}
		}
	}

	result := d.sender.Send(ctx, req)

	if d.metrics != nil {
		d.metrics.DispatchCompleted(classifyStatus(result.StatusCode, result.Error), result.Duration)
	}

	if result.IsSuccess() {
		if d.breaker != nil {
			d.breaker.RecordSuccess()
		}
		d.outcome("success")
		log.Printf("notify: sent %q to %d participants", req.EventName, len(req.ParticipantEmails))
		return
	}

	if d.breaker != nil {
		d.breaker.RecordFailure()
	}
	d.outcome("failed")
	log.Printf("notify: send %q failed status=%d err=%v", req.EventName, result.StatusCode, result.Error)
}

func (d *Dispatcher) outcome(outcome string) {
	if d.metrics != nil {
		d.metrics.DispatchOutcome(outcome)
	}
}

// classifyStatus maps a status code and error to a bounded-cardinality
// metrics class: 2xx, 4xx, 5xx, timeout, connection_error, other_error.
func classifyStatus(statusCode int, err error) string {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "timeout"
		}
		return "connection_error"
	}

	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	default:
		return "other_error"
	}
}
