package domain

import (
	"fmt"
	"time"
)

type Priority string

// Priority wire values match what the calendar UI submits and what the
// store already holds.
const (
	PriorityHigh   Priority = "Alta"
	PriorityMedium Priority = "Média"
	PriorityLow    Priority = "Baixa"
)

// ParsePriority maps a raw string to a known priority value.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	}
	return "", fmt.Errorf("unknown priority %q", s)
}

// Event is a user-created, dated calendar record. ID is empty until the
// store assigns one.
type Event struct {
	ID string

	Name        string
	StartAt     time.Time
	Description string
	Priority    Priority

	Participants []Participant

	// CreatorID is set once on creation and never mutated afterwards.
	CreatorID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ParticipantEmails returns the participant email addresses in order.
func (e Event) ParticipantEmails() []string {
	emails := make([]string, len(e.Participants))
	for i, p := range e.Participants {
		emails[i] = p.Email
	}
	return emails
}
