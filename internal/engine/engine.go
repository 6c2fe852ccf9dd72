// Package engine implements the scheduling orchestrator. It owns the
// authoritative in-memory event collection, applies validation before any
// store write, sequences store calls and notification dispatch, and exposes
// the reconciled view (events plus the holiday overlay).
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"agendacal/internal/auth"
	"agendacal/internal/domain"
	"agendacal/internal/event"
	"agendacal/internal/holiday"
	"agendacal/internal/notify"
)

var (
	// ErrNotFound is returned by the store when the target event no longer
	// exists remotely.
	ErrNotFound = errors.New("event not found")

	// ErrStoreUnavailable wraps transport failures talking to the store.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEventBusy is returned when an operation is already persisting for
	// the same event id. Unrelated events are never serialized against each
	// other.
	ErrEventBusy = errors.New("operation already in flight for this event")

	// ErrUnknownParticipant is returned when a submission references an id
	// absent from the participant directory.
	ErrUnknownParticipant = errors.New("unknown participant")
)

// Store is the persistent store transport. Implementations are stateless
// and perform no automatic retry; every failure is surfaced to the engine.
type Store interface {
	ListEvents(ctx context.Context) ([]domain.Event, error)
	// CreateEvent persists an event without an id and returns the
	// store-assigned id.
	CreateEvent(ctx context.Context, e domain.Event) (string, error)
	// UpdateEvent fully replaces the remote record. Returns ErrNotFound if
	// the id no longer exists.
	UpdateEvent(ctx context.Context, id string, e domain.Event) error
	DeleteEvent(ctx context.Context, id string) error
}

// Directory supplies the participant candidate list.
type Directory interface {
	ListParticipants(ctx context.Context) ([]domain.Participant, error)
}

// Emitter hands a notification request to the detached dispatch pipeline.
// Emit must not block: a full pipeline is an error the engine logs and
// absorbs, never a stall of the create path.
type Emitter interface {
	Emit(req notify.Request) error
}

// AnalyticsSink records committed creations. Optional; implementations
// handle their own errors and never affect operation outcomes.
type AnalyticsSink interface {
	EventCreated(ctx context.Context, e domain.Event)
}

// MetricsSink records operation outcomes. Optional, nil-safe at wiring time.
type MetricsSink interface {
	OperationCompleted(op string, outcome string, duration time.Duration)
	ViewSizeUpdate(events, holidays int)
	DirectorySizeUpdate(count int)
}

// OpState tracks where a submission is in its lifecycle. Every operation
// starts Idle and ends Idle; the terminal states are reported through
// metrics and logs.
type OpState string

const (
	StateIdle       OpState = "idle"
	StateValidating OpState = "validating"
	StateRejected   OpState = "rejected"
	StatePersisting OpState = "persisting"
	StateFailed     OpState = "failed"
	StateCommitted  OpState = "committed"
)

// Engine is the scheduling orchestrator. Safe for concurrent use; the
// authoritative collection is mutated only here, and only after the store
// has confirmed a write.
type Engine struct {
	store     Store
	directory Directory
	emitter   Emitter
	analytics AnalyticsSink // optional, nil = disabled
	metrics   MetricsSink   // optional, nil = disabled
	clock     func() time.Time

	mu           sync.Mutex
	events       map[string]domain.Event
	participants []domain.Participant
	holidays     []domain.Holiday
	inflight     map[string]struct{} // event ids with a persisting operation
	editing      string              // id of the single event focused for editing, "" = none
}

// New creates an engine. The store and emitter are required; the directory
// failure mode is degradation, so a directory that errors is tolerated.
func New(store Store, directory Directory, emitter Emitter) *Engine {
	return &Engine{
		store:     store,
		directory: directory,
		emitter:   emitter,
		clock:     time.Now,
		events:    make(map[string]domain.Event),
		holidays:  holiday.List(),
		inflight:  make(map[string]struct{}),
	}
}

// WithAnalytics attaches a creation-analytics sink.
func (g *Engine) WithAnalytics(sink AnalyticsSink) *Engine {
	g.analytics = sink
	return g
}

// WithMetrics attaches a metrics sink.
func (g *Engine) WithMetrics(sink MetricsSink) *Engine {
	g.metrics = sink
	return g
}

// WithClock overrides the time source. Used by tests.
func (g *Engine) WithClock(clock func() time.Time) *Engine {
	g.clock = clock
	return g
}

// Load fetches the stored events and the participant directory. A store
// failure aborts startup; a directory failure degrades to an empty candidate
// list and never blocks event CRUD.
func (g *Engine) Load(ctx context.Context) error {
	events, err := g.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("load events: %w", err)
	}

	participants, err := g.directory.ListParticipants(ctx)
	if err != nil {
		log.Printf("engine: directory fetch failed, candidate list empty: %v", err)
		participants = nil
	}

	g.mu.Lock()
	g.events = make(map[string]domain.Event, len(events))
	for _, e := range events {
		g.events[e.ID] = e
	}
	g.participants = participants
	g.mu.Unlock()

	g.reportSizes()
	log.Printf("engine: loaded %d events, %d participants, %d holidays",
		len(events), len(participants), len(g.holidays))
	return nil
}

// Reload re-fetches the stored events and replaces the authoritative
// collection. Used by the resync loop; last write wins by design.
func (g *Engine) Reload(ctx context.Context) error {
	events, err := g.store.ListEvents(ctx)
	if err != nil {
		return fmt.Errorf("reload events: %w", err)
	}

	g.mu.Lock()
	fresh := make(map[string]domain.Event, len(events))
	for _, e := range events {
		fresh[e.ID] = e
	}
	g.events = fresh
	g.mu.Unlock()

	g.reportSizes()
	return nil
}

// RefreshDirectory re-fetches the participant candidate list. On failure the
// previous list is kept; the caller gets the error for logging only.
func (g *Engine) RefreshDirectory(ctx context.Context) error {
	participants, err := g.directory.ListParticipants(ctx)
	if err != nil {
		return fmt.Errorf("refresh directory: %w", err)
	}

	g.mu.Lock()
	g.participants = participants
	g.mu.Unlock()

	if g.metrics != nil {
		g.metrics.DirectorySizeUpdate(len(participants))
	}
	return nil
}

// View returns the reconciled, presentation-facing list: all events plus the
// holiday overlay, ordered by start time then id. It is a pure function of
// engine state.
func (g *Engine) View() []domain.Entry {
	g.mu.Lock()
	entries := make([]domain.Entry, 0, len(g.events)+len(g.holidays))
	for _, e := range g.events {
		entries = append(entries, domain.EventEntry(e))
	}
	g.mu.Unlock()

	for _, h := range g.holidays {
		entries = append(entries, domain.HolidayEntry(h))
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].StartAt.Equal(entries[j].StartAt) {
			return entries[i].StartAt.Before(entries[j].StartAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// Participants returns the current candidate list. May be empty when the
// directory was unreachable.
func (g *Engine) Participants() []domain.Participant {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Participant, len(g.participants))
	copy(out, g.participants)
	return out
}

// ResolveParticipants maps directory ids to participant records, preserving
// order. Returns ErrUnknownParticipant for ids absent from the candidate
// list.
func (g *Engine) ResolveParticipants(ids []string) ([]domain.Participant, error) {
	g.mu.Lock()
	byID := make(map[string]domain.Participant, len(g.participants))
	for _, p := range g.participants {
		byID[p.ID] = p
	}
	g.mu.Unlock()

	resolved := make([]domain.Participant, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParticipant, id)
		}
		resolved = append(resolved, p)
	}
	return resolved, nil
}

// Submit runs one user operation through the state machine:
// Idle -> Validating -> (Rejected | Persisting) -> (Failed | Committed).
// Rejected drafts never reach the store. The in-memory collection is mutated
// only after the store confirms the write.
func (g *Engine) Submit(ctx context.Context, principal auth.Principal, draft event.Draft) (domain.Event, error) {
	start := g.clock()
	op := "create"
	if draft.Mode == event.DraftEdit {
		op = "update"
	}

	// Validating
	if err := event.Validate(draft); err != nil {
		g.finish(op, StateRejected, start)
		return domain.Event{}, err
	}

	startAt, err := event.ComposeStartAt(draft.Date, draft.Time)
	if err != nil {
		g.finish(op, StateRejected, start)
		return domain.Event{}, event.ValidationError{Field: "time", Message: err.Error()}
	}
	priority, err := domain.ParsePriority(draft.Priority)
	if err != nil {
		g.finish(op, StateRejected, start)
		return domain.Event{}, event.ValidationError{Field: "priority", Message: err.Error()}
	}

	candidate := domain.Event{
		Name:         draft.Name,
		StartAt:      startAt,
		Description:  draft.Description,
		Priority:     priority,
		Participants: draft.Participants,
	}

	switch draft.Mode {
	case event.DraftEdit:
		return g.persistUpdate(ctx, draft.EventID, candidate, start)
	default:
		return g.persistCreate(ctx, principal, candidate, start)
	}
}

func (g *Engine) persistCreate(ctx context.Context, principal auth.Principal, candidate domain.Event, start time.Time) (domain.Event, error) {
	now := g.clock().UTC()
	candidate.CreatorID = principal.ID
	candidate.CreatedAt = now
	candidate.UpdatedAt = now

	// Persisting
	id, err := g.store.CreateEvent(ctx, candidate)
	if err != nil {
		log.Printf("engine: create %q failed: %v", candidate.Name, err)
		g.finish("create", StateFailed, start)
		return domain.Event{}, fmt.Errorf("create event: %w", err)
	}
	candidate.ID = id

	// Committed: adopt the store-assigned id into the authoritative
	// collection before anything else can observe the event.
	g.mu.Lock()
	g.events[id] = candidate
	g.mu.Unlock()

	g.dispatchCreated(principal, candidate)
	if g.analytics != nil {
		g.analytics.EventCreated(ctx, candidate)
	}

	g.finish("create", StateCommitted, start)
	g.reportSizes()
	log.Printf("engine: created event=%s name=%q participants=%d", id, candidate.Name, len(candidate.Participants))
	return candidate, nil
}

func (g *Engine) persistUpdate(ctx context.Context, id string, candidate domain.Event, start time.Time) (domain.Event, error) {
	// The UI never offers edit affordances for holidays; reaching this with
	// a holiday id is an orchestration bug upstream. Ignore, don't crash.
	if holiday.IsHolidayID(id) {
		log.Printf("engine: ignoring update for holiday id=%s", id)
		g.finish("update", StateRejected, start)
		return domain.Event{}, nil
	}

	if !g.acquire(id) {
		g.finish("update", StateFailed, start)
		return domain.Event{}, fmt.Errorf("%w: %s", ErrEventBusy, id)
	}
	defer g.release(id)

	g.mu.Lock()
	existing, known := g.events[id]
	g.mu.Unlock()

	candidate.ID = id
	candidate.UpdatedAt = g.clock().UTC()
	if known {
		// CreatorID is set once on create and survives every edit.
		candidate.CreatorID = existing.CreatorID
		candidate.CreatedAt = existing.CreatedAt
	}

	// Persisting
	if err := g.store.UpdateEvent(ctx, id, candidate); err != nil {
		log.Printf("engine: update event=%s failed: %v", id, err)
		g.finish("update", StateFailed, start)
		return domain.Event{}, fmt.Errorf("update event: %w", err)
	}

	// Committed
	g.mu.Lock()
	g.events[id] = candidate
	g.mu.Unlock()

	g.finish("update", StateCommitted, start)
	log.Printf("engine: updated event=%s name=%q", id, candidate.Name)
	return candidate, nil
}

// Delete removes an event. Holiday ids are ignored. A record already gone
// remotely is logged, not fatal: delete is idempotent from the caller's
// perspective.
func (g *Engine) Delete(ctx context.Context, id string) error {
	start := g.clock()

	if holiday.IsHolidayID(id) {
		log.Printf("engine: ignoring delete for holiday id=%s", id)
		g.finish("delete", StateRejected, start)
		return nil
	}

	if !g.acquire(id) {
		g.finish("delete", StateFailed, start)
		return fmt.Errorf("%w: %s", ErrEventBusy, id)
	}
	defer g.release(id)

	if err := g.store.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("engine: delete event=%s: already gone remotely", id)
		} else {
			log.Printf("engine: delete event=%s failed: %v", id, err)
			g.finish("delete", StateFailed, start)
			return fmt.Errorf("delete event: %w", err)
		}
	}

	g.mu.Lock()
	delete(g.events, id)
	if g.editing == id {
		g.editing = ""
	}
	g.mu.Unlock()

	g.finish("delete", StateCommitted, start)
	g.reportSizes()
	log.Printf("engine: deleted event=%s", id)
	return nil
}

// BeginEdit focuses a single event for editing and returns a draft prefilled
// from the authoritative record. At most one event is being edited at any
// time; focusing a second event discards the first focus (last wins).
// Holiday entries and unknown ids are refused.
func (g *Engine) BeginEdit(id string) (event.Draft, bool) {
	if holiday.IsHolidayID(id) {
		return event.Draft{}, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.events[id]
	if !ok {
		return event.Draft{}, false
	}
	g.editing = id

	return event.Draft{
		Mode:         event.DraftEdit,
		EventID:      id,
		Name:         e.Name,
		Time:         e.StartAt.Format("15:04"),
		Description:  e.Description,
		Date:         e.StartAt,
		Priority:     string(e.Priority),
		Participants: e.Participants,
	}, true
}

// CancelEdit drops the current editing focus. Unsaved draft state lives with
// the caller; there is nothing to roll back here, and in-flight store calls
// are never aborted.
func (g *Engine) CancelEdit() {
	g.mu.Lock()
	g.editing = ""
	g.mu.Unlock()
}

// Editing returns the id currently focused for editing, or "".
func (g *Engine) Editing() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.editing
}

// dispatchCreated hands the notification to the detached pipeline. Any
// failure here is absorbed: the create already committed and its outcome is
// fixed.
func (g *Engine) dispatchCreated(principal auth.Principal, e domain.Event) {
	req := notify.Request{
		EventName:         e.Name,
		EventDescription:  e.Description,
		EventDate:         e.StartAt.Format("02/01/2006"),
		EventTime:         e.StartAt.Format("15:04"),
		ParticipantEmails: e.ParticipantEmails(),
		Token:             principal.Token,
	}
	if err := g.emitter.Emit(req); err != nil {
		log.Printf("engine: notification for event=%s not queued: %v", e.ID, err)
	}
}

func (g *Engine) acquire(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[id]; busy {
		return false
	}
	g.inflight[id] = struct{}{}
	return true
}

func (g *Engine) release(id string) {
	g.mu.Lock()
	delete(g.inflight, id)
	g.mu.Unlock()
}

func (g *Engine) finish(op string, terminal OpState, start time.Time) {
	if g.metrics != nil {
		g.metrics.OperationCompleted(op, string(terminal), g.clock().Sub(start))
	}
}

func (g *Engine) reportSizes() {
	if g.metrics == nil {
		return
	}
	g.mu.Lock()
	events := len(g.events)
	g.mu.Unlock()
	g.metrics.ViewSizeUpdate(events, len(g.holidays))
}
