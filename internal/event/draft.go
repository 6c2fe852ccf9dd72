package event

import (
	"time"

	"agendacal/internal/domain"
)

type DraftMode string

const (
	// DraftNew is a submission for an event that does not exist yet.
	DraftNew DraftMode = "new"
	// DraftEdit is a full-replacement submission for an existing event.
	DraftEdit DraftMode = "edit"
)

// Draft is a user submission before validation. The mode is explicit rather
// than inferred from whether EventID happens to be set.
type Draft struct {
	Mode    DraftMode
	EventID string // required when Mode == DraftEdit

	Name        string
	Time        string // "HH:mm"
	Description string
	Date        time.Time // calendar date; time-of-day ignored
	Priority    string
	Participants []domain.Participant
}
