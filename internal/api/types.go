package api

import (
	"time"

	"agendacal/internal/domain"
)

// SubmitEventRequest carries a draft from the client. Date and time arrive
// as separate fields the way the form captures them; the engine composes
// the start instant.
type SubmitEventRequest struct {
	Name           string   `json:"name"`
	Date           string   `json:"date"` // YYYY-MM-DD
	Time           string   `json:"time"` // HH:mm
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	ParticipantIDs []string `json:"participantIds"`
}

type EventResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	StartAt      string                `json:"startAt"`
	Description  string                `json:"description"`
	Priority     string                `json:"priority"`
	Participants []ParticipantResponse `json:"participants"`
	CreatorID    string                `json:"creatorId,omitempty"`
}

type ParticipantResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// EntryResponse is one row of the calendar view. Kind distinguishes stored
// events from the holiday overlay; holidays carry no priority and cannot
// be mutated.
type EntryResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	StartAt     string `json:"startAt"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
}

type CalendarResponse struct {
	Entries []EntryResponse `json:"entries"`
}

type ParticipantsResponse struct {
	Participants []ParticipantResponse `json:"participants"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toParticipantResponses(ps []domain.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, ParticipantResponse{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Email:     p.Email,
		})
	}
	return out
}

func toEventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:           e.ID,
		Name:         e.Name,
		StartAt:      formatTime(e.StartAt),
		Description:  e.Description,
		Priority:     string(e.Priority),
		Participants: toParticipantResponses(e.Participants),
		CreatorID:    e.CreatorID,
	}
}

func toEntryResponse(entry domain.Entry) EntryResponse {
	return EntryResponse{
		ID:          entry.ID,
		Kind:        string(entry.Kind),
		Title:       entry.Title,
		StartAt:     formatTime(entry.StartAt),
		Description: entry.Description,
		Priority:    string(entry.Priority),
	}
}
