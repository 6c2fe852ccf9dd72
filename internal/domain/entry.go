package domain

import "time"

type EntryKind string

const (
	EntryKindEvent   EntryKind = "event"
	EntryKindHoliday EntryKind = "holiday"
)

// Entry is one row of the reconciled view: either a stored event or a
// holiday overlay item. The Kind tag lets downstream code refuse holiday
// mutation structurally instead of by id-string convention.
type Entry struct {
	Kind EntryKind

	ID          string
	Title       string
	StartAt     time.Time
	Description string

	// Event-only fields; zero for holidays.
	Priority     Priority
	Participants []Participant
	CreatorID    string
}

// EventEntry builds a view row from a stored event.
func EventEntry(e Event) Entry {
	return Entry{
		Kind:         EntryKindEvent,
		ID:           e.ID,
		Title:        e.Name,
		StartAt:      e.StartAt,
		Description:  e.Description,
		Priority:     e.Priority,
		Participants: e.Participants,
		CreatorID:    e.CreatorID,
	}
}

// HolidayEntry builds a view row from a holiday overlay item.
func HolidayEntry(h Holiday) Entry {
	return Entry{
		Kind:        EntryKindHoliday,
		ID:          h.ID,
		Title:       h.Title,
		StartAt:     h.Date,
		Description: h.Description,
	}
}
