// Package event defines draft submissions and the rules for a well-formed
// calendar event. Validation is pure: no side effects, no network.
package event

import (
	"fmt"
	"time"

	"agendacal/internal/domain"
)

// ValidationError reports the first field that failed validation. Only one
// field is ever reported per submission; the UI shows a single actionable
// message at a time.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a draft for completeness. Fields are checked in a fixed
// order (name, time, description, date, priority, participants) and the
// first failure wins.
func Validate(d Draft) error {
	if d.Name == "" {
		return ValidationError{Field: "name", Message: "required"}
	}
	if d.Time == "" {
		return ValidationError{Field: "time", Message: "required"}
	}
	if _, err := parseTimeOfDay(d.Time); err != nil {
		return ValidationError{Field: "time", Message: fmt.Sprintf("must be HH:mm, got %q", d.Time)}
	}
	if d.Description == "" {
		return ValidationError{Field: "description", Message: "required"}
	}
	if d.Date.IsZero() {
		return ValidationError{Field: "date", Message: "required"}
	}
	if d.Priority == "" {
		return ValidationError{Field: "priority", Message: "required"}
	}
	if _, err := domain.ParsePriority(d.Priority); err != nil {
		return ValidationError{Field: "priority", Message: err.Error()}
	}
	if len(d.Participants) == 0 {
		return ValidationError{Field: "participants", Message: "select at least one participant"}
	}
	return nil
}

// ComposeStartAt combines a calendar date and an "HH:mm" time-of-day into a
// single timestamp. The date portion comes from the date value's own
// calendar day and location, never from the caller's current time zone.
// Seconds and sub-second precision are zeroed.
func ComposeStartAt(date time.Time, timeOfDay string) (time.Time, error) {
	tod, err := parseTimeOfDay(timeOfDay)
	if err != nil {
		return time.Time{}, err
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.hour, tod.minute, 0, 0, date.Location()), nil
}

type timeOfDay struct {
	hour   int
	minute int
}

func parseTimeOfDay(s string) (timeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return timeOfDay{}, fmt.Errorf("parse time of day: %w", err)
	}
	return timeOfDay{hour: t.Hour(), minute: t.Minute()}, nil
}
