package domain

import "time"

// Holiday is an immutable calendar annotation. It is never persisted and is
// rebuilt from a fixed reference table every session.
type Holiday struct {
	ID          string
	Title       string
	Date        time.Time // calendar date only, midnight, no time-of-day
	Description string
}
