// Package api exposes the scheduling engine over HTTP. Routing uses
// gorilla/mux; every mutating route requires a bearer credential resolved
// into a principal before the engine is invoked.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"agendacal/internal/auth"
	"agendacal/internal/domain"
	"agendacal/internal/engine"
	"agendacal/internal/event"
)

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

// Scheduler is the engine surface the handler drives.
type Scheduler interface {
	View() []domain.Entry
	Participants() []domain.Participant
	ResolveParticipants(ids []string) ([]domain.Participant, error)
	Submit(ctx context.Context, principal auth.Principal, draft event.Draft) (domain.Event, error)
	Delete(ctx context.Context, id string) error
	RefreshDirectory(ctx context.Context) error
}

// HealthChecker provides store health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	scheduler Scheduler
	provider  auth.Provider
	db        HealthChecker
}

func NewHandler(scheduler Scheduler, provider auth.Provider) *Handler {
	return &Handler{scheduler: scheduler, provider: provider}
}

// WithHealthChecker sets the store health checker for verbose /health responses.
func (h *Handler) WithHealthChecker(db HealthChecker) *Handler {
	h.db = db
	return h
}

// Router builds the route table. The health endpoint is unauthenticated;
// everything else goes through the principal middleware.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	s := r.NewRoute().Subrouter()
	s.Use(h.requirePrincipal)
	s.HandleFunc("/calendar", h.calendar).Methods(http.MethodGet)
	s.HandleFunc("/participants", h.participants).Methods(http.MethodGet)
	s.HandleFunc("/participants/refresh", h.refreshParticipants).Methods(http.MethodPost)
	s.HandleFunc("/events", h.createEvent).Methods(http.MethodPost)
	s.HandleFunc("/events/{id}", h.updateEvent).Methods(http.MethodPut)
	s.HandleFunc("/events/{id}", h.deleteEvent).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}

type contextKey string

const principalKey contextKey = "principal"

// requirePrincipal resolves the Authorization header into a principal and
// stores it on the request context. Requests without a valid credential
// never reach the engine.
func (h *Handler) requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		principal, err := h.provider.Authenticate(r.Context(), bearer)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or missing credential")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFrom(r *http.Request) auth.Principal {
	p, _ := r.Context().Value(principalKey).(auth.Principal)
	return p
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || h.db == nil {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Components["store"] = "unhealthy: " + err.Error()
	} else {
		resp.Components["store"] = "healthy"
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}

func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	entries := h.scheduler.View()
	resp := CalendarResponse{Entries: make([]EntryResponse, 0, len(entries))}
	for _, entry := range entries {
		resp.Entries = append(resp.Entries, toEntryResponse(entry))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) participants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ParticipantsResponse{
		Participants: toParticipantResponses(h.scheduler.Participants()),
	})
}

func (h *Handler) refreshParticipants(w http.ResponseWriter, r *http.Request) {
	if err := h.scheduler.RefreshDirectory(r.Context()); err != nil {
		log.Printf("api: directory refresh failed: %v", err)
		writeError(w, http.StatusBadGateway, "participant directory unavailable")
		return
	}
	writeJSON(w, http.StatusOK, ParticipantsResponse{
		Participants: toParticipantResponses(h.scheduler.Participants()),
	})
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, event.Draft{Mode: event.DraftNew})
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, event.Draft{
		Mode:    event.DraftEdit,
		EventID: mux.Vars(r)["id"],
	})
}

// submit decodes the shared request shape, resolves participants and runs
// the draft through the engine. The draft argument carries mode and target
// id; everything else comes from the body.
func (h *Handler) submit(w http.ResponseWriter, r *http.Request, draft event.Draft) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req SubmitEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	draft.Name = req.Name
	draft.Time = req.Time
	draft.Description = req.Description
	draft.Priority = req.Priority

	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid date, want YYYY-MM-DD", Field: "date"})
			return
		}
		draft.Date = date
	}

	participants, err := h.scheduler.ResolveParticipants(req.ParticipantIDs)
	if err != nil {
		if errors.Is(err, engine.ErrUnknownParticipant) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Field: "participants"})
			return
		}
		writeError(w, http.StatusInternalServerError, "participant resolution failed")
		return
	}
	draft.Participants = participants

	created, err := h.scheduler.Submit(r.Context(), principalFrom(r), draft)
	if err != nil {
		h.writeSubmitError(w, draft, err)
		return
	}

	status := http.StatusOK
	if draft.Mode == event.DraftNew {
		status = http.StatusCreated
	}
	writeJSON(w, status, toEventResponse(created))
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, draft event.Draft, err error) {
	var verr event.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, engine.ErrEventBusy):
		writeError(w, http.StatusConflict, "an operation for this event is already in flight")
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, engine.ErrStoreUnavailable):
		log.Printf("api: submit mode=%s failed: %v", draft.Mode, err)
		writeError(w, http.StatusBadGateway, "event store unavailable")
	default:
		log.Printf("api: submit mode=%s failed: %v", draft.Mode, err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) deleteEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.scheduler.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, engine.ErrEventBusy):
			writeError(w, http.StatusConflict, "an operation for this event is already in flight")
		case errors.Is(err, engine.ErrStoreUnavailable):
			log.Printf("api: delete event=%s failed: %v", id, err)
			writeError(w, http.StatusBadGateway, "event store unavailable")
		default:
			log.Printf("api: delete event=%s failed: %v", id, err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
