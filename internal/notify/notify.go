// Package notify implements the best-effort notification side channel.
// Requests are queued on event creation only, processed detached from the
// create path, and their outcome is never surfaced to the user flow.
package notify

import (
	"context"
	"time"
)

// Request is one notification to dispatch. The payload fields mirror what
// the notification service accepts.
type Request struct {
	EventName         string   `json:"eventName"`
	EventDescription  string   `json:"eventDescription"`
	EventDate         string   `json:"eventDate"` // DD/MM/YYYY
	EventTime         string   `json:"eventTime"` // HH:mm
	ParticipantEmails []string `json:"participantEmails"`

	// Token is the bearer credential of the creating principal; it is sent
	// as a header, never as part of the JSON body.
	Token string `json:"-"`
}

// Result is the outcome of a single send.
type Result struct {
	StatusCode int
	Error      error
	Duration   time.Duration
}

// IsSuccess reports whether the service accepted the notification.
func (r Result) IsSuccess() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Sender delivers one notification request. One attempt, no retry.
type Sender interface {
	Send(ctx context.Context, req Request) Result
}
