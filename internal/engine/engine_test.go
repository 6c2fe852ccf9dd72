package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"agendacal/internal/auth"
	"agendacal/internal/domain"
	"agendacal/internal/event"
	"agendacal/internal/notify"
	"agendacal/internal/testutil"
)

// mockStore records calls and serves a configurable in-memory collection.
type mockStore struct {
	mu     sync.Mutex
	events map[string]domain.Event
	nextID int

	listErr   error
	createErr error
	updateErr error
	deleteErr error

	listCalls   int
	createCalls int
	updateCalls int
	deleteCalls int
}

func newMockStore() *mockStore {
	return &mockStore{events: make(map[string]domain.Event)}
}

func (s *mockStore) ListEvents(ctx context.Context) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.Event, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	return out, nil
}

func (s *mockStore) CreateEvent(ctx context.Context, e domain.Event) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if s.createErr != nil {
		return "", s.createErr
	}
	s.nextID++
	id := "evt-" + strconv.Itoa(s.nextID)
	e.ID = id
	s.events[id] = e
	return id, nil
}

func (s *mockStore) UpdateEvent(ctx context.Context, id string, e domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.events[id] = e
	return nil
}

func (s *mockStore) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.events[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.events, id)
	return nil
}

func (s *mockStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls + s.createCalls + s.updateCalls + s.deleteCalls
}

func (s *mockStore) seed(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[e.ID] = e
}

type mockDirectory struct {
	mu           sync.Mutex
	participants []domain.Participant
	err          error
}

func (d *mockDirectory) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	return d.participants, nil
}

type mockEmitter struct {
	mu       sync.Mutex
	requests []notify.Request
	err      error
}

func (e *mockEmitter) Emit(req notify.Request) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.requests = append(e.requests, req)
	return nil
}

func (e *mockEmitter) emitted() []notify.Request {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]notify.Request, len(e.requests))
	copy(out, e.requests)
	return out
}

var p1 = domain.Participant{ID: "p1", FirstName: "Ana", LastName: "Souza", Email: "ana@example.com"}
var p2 = domain.Participant{ID: "p2", FirstName: "Beto", LastName: "Lima", Email: "beto@example.com"}

func principal() auth.Principal {
	return auth.Principal{ID: "creator-1", Email: "chefe@example.com", Token: "tok-1"}
}

func newDraft() event.Draft {
	return event.Draft{
		Mode:         event.DraftNew,
		Name:         "Reunião",
		Time:         "14:00",
		Description:  "Pauta X",
		Date:         time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		Priority:     "Alta",
		Participants: []domain.Participant{p1},
	}
}

func newEngine(t *testing.T) (*Engine, *mockStore, *mockDirectory, *mockEmitter) {
	t.Helper()
	store := newMockStore()
	dir := &mockDirectory{participants: []domain.Participant{p1, p2}}
	emitter := &mockEmitter{}
	eng := New(store, dir, emitter)
	return eng, store, dir, emitter
}

func TestSubmit_CreateCommitsAndNotifiesOnce(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, emitter := newEngine(t)

	created, err := eng.Submit(ctx, principal(), newDraft())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created.ID == "" {
		t.Fatal("created event should carry the store-assigned id")
	}
	want := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	if !created.StartAt.Equal(want) {
		t.Errorf("StartAt = %v, want %v", created.StartAt, want)
	}
	if created.CreatorID != "creator-1" {
		t.Errorf("CreatorID = %q, want creator-1", created.CreatorID)
	}
	if store.createCalls != 1 {
		t.Errorf("store create calls = %d, want 1", store.createCalls)
	}

	// The event appears in the reconciled view with the assigned id.
	found := false
	for _, entry := range eng.View() {
		if entry.ID == created.ID && entry.Kind == domain.EntryKindEvent {
			found = true
		}
	}
	if !found {
		t.Error("created event missing from the view")
	}

	// Exactly one notification to p1's email, with the expected wire shape.
	reqs := emitter.emitted()
	if len(reqs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(reqs))
	}
	req := reqs[0]
	if len(req.ParticipantEmails) != 1 || req.ParticipantEmails[0] != "ana@example.com" {
		t.Errorf("ParticipantEmails = %v", req.ParticipantEmails)
	}
	if req.EventDate != "10/06/2025" {
		t.Errorf("EventDate = %q, want 10/06/2025", req.EventDate)
	}
	if req.EventTime != "14:00" {
		t.Errorf("EventTime = %q, want 14:00", req.EventTime)
	}
	if req.Token != "tok-1" {
		t.Errorf("Token = %q, want the principal's bearer credential", req.Token)
	}
}

// TestSubmit_RejectedNeverReachesStore asserts the zero-invocation property:
// an incomplete draft is rejected before any store interaction.
func TestSubmit_RejectedNeverReachesStore(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, emitter := newEngine(t)

	draft := newDraft()
	draft.Priority = ""

	_, err := eng.Submit(ctx, principal(), draft)

	var verr event.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "priority" {
		t.Errorf("Field = %q, want priority", verr.Field)
	}
	if got := store.totalCalls(); got != 0 {
		t.Errorf("store received %d calls, want 0", got)
	}
	if len(emitter.emitted()) != 0 {
		t.Error("rejected draft must not emit a notification")
	}
}

func TestSubmit_CreateStoreFailure(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, emitter := newEngine(t)
	store.createErr = fmt.Errorf("%w: connection refused", ErrStoreUnavailable)

	_, err := eng.Submit(ctx, principal(), newDraft())
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}

	for _, entry := range eng.View() {
		if entry.Kind == domain.EntryKindEvent {
			t.Errorf("failed create leaked into the view: %+v", entry)
		}
	}
	if len(emitter.emitted()) != 0 {
		t.Error("failed create must not notify")
	}
}

// TestSubmit_EmitterFailureDoesNotAffectCreate covers the detachment
// contract: a notification that cannot even be queued leaves the committed
// create untouched.
func TestSubmit_EmitterFailureDoesNotAffectCreate(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, _, _, emitter := newEngine(t)
	emitter.err = errors.New("bus full")

	created, err := eng.Submit(ctx, principal(), newDraft())
	if err != nil {
		t.Fatalf("create must succeed despite emitter failure, got %v", err)
	}

	found := false
	for _, entry := range eng.View() {
		if entry.ID == created.ID {
			found = true
		}
	}
	if !found {
		t.Error("event dropped from the view after emitter failure")
	}
}

func TestSubmit_UpdateReplacesAndPreservesCreator(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, emitter := newEngine(t)

	seeded := domain.Event{
		ID:           "evt-seeded",
		Name:         "Planejamento",
		StartAt:      time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		Description:  "Inicial",
		Priority:     domain.PriorityLow,
		Participants: []domain.Participant{p1},
		CreatorID:    "someone-else",
	}
	store.seed(seeded)
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	draft := event.Draft{
		Mode:         event.DraftEdit,
		EventID:      "evt-seeded",
		Name:         "Planejamento Revisado",
		Time:         "16:30",
		Description:  "Nova pauta",
		Date:         time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
		Priority:     "Média",
		Participants: []domain.Participant{p1, p2},
	}

	updated, err := eng.Submit(ctx, principal(), draft)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.CreatorID != "someone-else" {
		t.Errorf("CreatorID = %q, editing must never change the creator", updated.CreatorID)
	}
	if updated.Name != "Planejamento Revisado" {
		t.Errorf("Name = %q", updated.Name)
	}
	if store.updateCalls != 1 {
		t.Errorf("update calls = %d, want 1", store.updateCalls)
	}
	// Update never notifies. Intentional asymmetry with create.
	if len(emitter.emitted()) != 0 {
		t.Errorf("update emitted %d notifications, want 0", len(emitter.emitted()))
	}
}

// TestSubmit_UpdateNotFoundLeavesMemoryUnchanged covers a remote miss:
// the operation fails and the in-memory collection is exactly what it was
// before the attempt.
func TestSubmit_UpdateNotFoundLeavesMemoryUnchanged(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)

	seeded := domain.Event{
		ID:           "evt-1",
		Name:         "Original",
		StartAt:      time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		Description:  "desc",
		Priority:     domain.PriorityHigh,
		Participants: []domain.Participant{p1},
		CreatorID:    "creator-1",
	}
	store.seed(seeded)
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	before := eng.View()

	draft := event.Draft{
		Mode:         event.DraftEdit,
		EventID:      "evt-gone",
		Name:         "Fantasma",
		Time:         "10:00",
		Description:  "x",
		Date:         time.Date(2025, 5, 3, 0, 0, 0, 0, time.UTC),
		Priority:     "Baixa",
		Participants: []domain.Participant{p1},
	}

	_, err := eng.Submit(ctx, principal(), draft)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	after := eng.View()
	if len(after) != len(before) {
		t.Fatalf("view size changed: %d -> %d", len(before), len(after))
	}
	for i := range before {
		if before[i].ID != after[i].ID || before[i].Title != after[i].Title {
			t.Errorf("entry %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)

	store.seed(domain.Event{ID: "evt-1", Name: "x", Priority: domain.PriorityLow})
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := eng.Delete(ctx, "evt-1"); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	// Second delete of the same id: the store reports not-found, the engine
	// logs it and succeeds.
	if err := eng.Delete(ctx, "evt-1"); err != nil {
		t.Fatalf("second delete should not be fatal: %v", err)
	}
}

func TestDelete_StoreFailureKeepsEvent(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)

	store.seed(domain.Event{ID: "evt-1", Name: "x", Priority: domain.PriorityLow})
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}
	store.deleteErr = fmt.Errorf("%w: timeout", ErrStoreUnavailable)

	if err := eng.Delete(ctx, "evt-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}

	found := false
	for _, entry := range eng.View() {
		if entry.ID == "evt-1" {
			found = true
		}
	}
	if !found {
		t.Error("event removed from memory despite failed store delete")
	}
}

func TestHolidays_AlwaysInViewNeverMutable(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	holidays := 0
	for _, entry := range eng.View() {
		if entry.Kind == domain.EntryKindHoliday {
			holidays++
		}
	}
	if holidays == 0 {
		t.Fatal("holiday overlay missing from an empty calendar")
	}

	// Mutating a holiday id is a defensive no-op: no error, no store call.
	if err := eng.Delete(ctx, "holiday-2025-02-12"); err != nil {
		t.Fatalf("holiday delete should be a no-op, got %v", err)
	}
	draft := newDraft()
	draft.Mode = event.DraftEdit
	draft.EventID = "holiday-2025-02-12"
	if _, err := eng.Submit(ctx, principal(), draft); err != nil {
		t.Fatalf("holiday update should be a no-op, got %v", err)
	}
	if got := store.totalCalls(); got != 1 { // the single Load list call
		t.Errorf("store calls = %d, want 1 (load only)", got)
	}

	still := 0
	for _, entry := range eng.View() {
		if entry.Kind == domain.EntryKindHoliday {
			still++
		}
	}
	if still != holidays {
		t.Errorf("holidays in view = %d, want %d", still, holidays)
	}
}

func TestView_SortedByStartTime(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)

	store.seed(domain.Event{ID: "evt-late", Name: "late", StartAt: time.Date(2025, 12, 30, 10, 0, 0, 0, time.UTC)})
	store.seed(domain.Event{ID: "evt-early", Name: "early", StartAt: time.Date(2025, 1, 2, 10, 0, 0, 0, time.UTC)})
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	view := eng.View()
	for i := 1; i < len(view); i++ {
		if view[i].StartAt.Before(view[i-1].StartAt) {
			t.Fatalf("view not sorted at %d: %v after %v", i, view[i].StartAt, view[i-1].StartAt)
		}
	}
	if view[0].ID != "evt-early" {
		t.Errorf("first entry = %s, want evt-early", view[0].ID)
	}
}

func TestLoad_DirectoryFailureDegrades(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newMockStore()
	dir := &mockDirectory{err: errors.New("directory down")}
	eng := New(store, dir, &mockEmitter{})

	if err := eng.Load(ctx); err != nil {
		t.Fatalf("directory failure must not block load, got %v", err)
	}
	if got := eng.Participants(); len(got) != 0 {
		t.Errorf("participants = %d, want empty list", len(got))
	}

	// Event CRUD still works with an empty candidate list.
	if _, err := eng.Submit(ctx, principal(), newDraft()); err != nil {
		t.Fatalf("create blocked by directory failure: %v", err)
	}
}

func TestLoad_StoreFailureAborts(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newMockStore()
	store.listErr = fmt.Errorf("%w: boom", ErrStoreUnavailable)
	eng := New(store, &mockDirectory{}, &mockEmitter{})

	if err := eng.Load(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestRefreshDirectory(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, _, dir, _ := newEngine(t)
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	dir.mu.Lock()
	dir.participants = []domain.Participant{p1}
	dir.mu.Unlock()

	if err := eng.RefreshDirectory(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := eng.Participants(); len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("participants = %+v", got)
	}

	// A failed refresh keeps the previous list.
	dir.mu.Lock()
	dir.err = errors.New("down")
	dir.mu.Unlock()
	if err := eng.RefreshDirectory(ctx); err == nil {
		t.Fatal("expected refresh error")
	}
	if got := eng.Participants(); len(got) != 1 {
		t.Errorf("participants after failed refresh = %d, want 1", len(got))
	}
}

func TestResolveParticipants(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, _, _, _ := newEngine(t)
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	resolved, err := eng.ResolveParticipants([]string{"p2", "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 2 || resolved[0].ID != "p2" || resolved[1].ID != "p1" {
		t.Errorf("resolved = %+v, order must be preserved", resolved)
	}

	if _, err := eng.ResolveParticipants([]string{"nope"}); !errors.Is(err, ErrUnknownParticipant) {
		t.Errorf("err = %v, want ErrUnknownParticipant", err)
	}
}

func TestReload_ReplacesCollection(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)

	store.seed(domain.Event{ID: "evt-1", Name: "first"})
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Another writer mutates the remote collection behind our back.
	store.mu.Lock()
	delete(store.events, "evt-1")
	store.events["evt-2"] = domain.Event{ID: "evt-2", Name: "second"}
	store.mu.Unlock()

	if err := eng.Reload(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}

	var ids []string
	for _, entry := range eng.View() {
		if entry.Kind == domain.EntryKindEvent {
			ids = append(ids, entry.ID)
		}
	}
	if len(ids) != 1 || ids[0] != "evt-2" {
		t.Errorf("events after reload = %v, want [evt-2]", ids)
	}
}

func TestBeginEdit(t *testing.T) {
	ctx := testutil.TestContext(t)
	eng, store, _, _ := newEngine(t)

	store.seed(domain.Event{
		ID:           "evt-1",
		Name:         "Reunião",
		StartAt:      time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC),
		Description:  "Pauta X",
		Priority:     domain.PriorityHigh,
		Participants: []domain.Participant{p1},
	})
	store.seed(domain.Event{ID: "evt-2", Name: "Outra"})
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	draft, ok := eng.BeginEdit("evt-1")
	if !ok {
		t.Fatal("BeginEdit refused a known event")
	}
	if draft.Mode != event.DraftEdit || draft.EventID != "evt-1" {
		t.Errorf("draft mode/id = %v/%v", draft.Mode, draft.EventID)
	}
	if draft.Time != "14:00" || draft.Priority != "Alta" {
		t.Errorf("draft prefill = time %q priority %q", draft.Time, draft.Priority)
	}

	// Focusing a second event replaces the first focus. Last wins.
	if _, ok := eng.BeginEdit("evt-2"); !ok {
		t.Fatal("BeginEdit refused evt-2")
	}
	if got := eng.Editing(); got != "evt-2" {
		t.Errorf("editing focus = %q, want evt-2", got)
	}

	eng.CancelEdit()
	if got := eng.Editing(); got != "" {
		t.Errorf("editing focus after cancel = %q, want empty", got)
	}

	if _, ok := eng.BeginEdit("holiday-2025-12-25"); ok {
		t.Error("BeginEdit accepted a holiday id")
	}
	if _, ok := eng.BeginEdit("evt-missing"); ok {
		t.Error("BeginEdit accepted an unknown id")
	}
}

func TestSubmit_SameIDBusy(t *testing.T) {
	ctx := testutil.TestContext(t)
	store := newMockStore()
	dir := &mockDirectory{}
	emitter := &mockEmitter{}
	eng := New(store, dir, emitter)

	store.seed(domain.Event{ID: "evt-1", Name: "x", Priority: domain.PriorityLow, Participants: []domain.Participant{p1}})
	if err := eng.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	// Hold the in-flight slot the way a persisting operation would.
	if !eng.acquire("evt-1") {
		t.Fatal("could not acquire in-flight slot")
	}
	defer eng.release("evt-1")

	if err := eng.Delete(ctx, "evt-1"); !errors.Is(err, ErrEventBusy) {
		t.Fatalf("err = %v, want ErrEventBusy", err)
	}

	// Unrelated events are not serialized against each other.
	if _, err := eng.Submit(ctx, principal(), newDraft()); err != nil {
		t.Fatalf("unrelated create blocked: %v", err)
	}
}
