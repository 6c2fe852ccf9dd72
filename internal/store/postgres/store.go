// Package postgres implements the store client against PostgreSQL. The
// store is a stateless transport: it holds no event state, performs no
// retries, and maps every failure to the engine's error taxonomy.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agendacal/internal/domain"
	"agendacal/internal/engine"
)

// Store implements engine.Store and engine.Directory over two collections:
// "events" and "users" (the participant directory).
type Store struct {
	db        *sql.DB
	opTimeout time.Duration
}

func New(db *sql.DB, opTimeout time.Duration) *Store {
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	return &Store{db: db, opTimeout: opTimeout}
}

// EnsureSchema creates the collections if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// ListEvents fetches the full event collection. No paging: the original
// store exposes the collection as a whole and the engine owns it in memory.
func (s *Store) ListEvents(ctx context.Context) ([]domain.Event, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListEvents)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return events, nil
}

// CreateEvent persists an event and returns the store-assigned id. Either
// the record exists remotely afterwards or the call failed with no effect.
func (s *Store) CreateEvent(ctx context.Context, e domain.Event) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	id := uuid.NewString()
	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return "", fmt.Errorf("marshal participants: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertEvent,
		id,
		e.Name,
		e.StartAt.UTC(),
		e.Description,
		string(e.Priority),
		participants,
		e.CreatorID,
		e.CreatedAt.UTC(),
		e.UpdatedAt.UTC(),
	)
	if err != nil {
		return "", unavailable(err)
	}
	return id, nil
}

// UpdateEvent fully replaces the remote record. CreatorID is deliberately
// not part of the update: it is set once on create.
func (s *Store) UpdateEvent(ctx context.Context, id string, e domain.Event) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	participants, err := json.Marshal(e.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}

	result, err := s.db.ExecContext(ctx, queryUpdateEvent,
		e.Name,
		e.StartAt.UTC(),
		e.Description,
		string(e.Priority),
		participants,
		e.UpdatedAt.UTC(),
		id,
	)
	if err != nil {
		return unavailable(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", engine.ErrNotFound, id)
	}
	return nil
}

// DeleteEvent removes the record. Deleting an id that is already gone
// returns ErrNotFound so the caller can log it; it is not treated as
// fatal upstream.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result, err := s.db.ExecContext(ctx, queryDeleteEvent, id)
	if err != nil {
		return unavailable(err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", engine.ErrNotFound, id)
	}
	return nil
}

// ListParticipants reads the directory collection. The schema carries no
// password column: credentials belong to the authentication provider.
func (s *Store) ListParticipants(ctx context.Context) ([]domain.Participant, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, queryListParticipants)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var participants []domain.Participant
	for rows.Next() {
		var p domain.Participant
		var department sql.NullString
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &department); err != nil {
			return nil, unavailable(err)
		}
		p.Department = department.String
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return participants, nil
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.Event, error) {
	var e domain.Event
	var priority string
	var participants []byte

	err := row.Scan(
		&e.ID,
		&e.Name,
		&e.StartAt,
		&e.Description,
		&priority,
		&participants,
		&e.CreatorID,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}

	e.Priority = domain.Priority(priority)
	if len(participants) > 0 {
		if err := json.Unmarshal(participants, &e.Participants); err != nil {
			return domain.Event{}, fmt.Errorf("unmarshal participants: %w", err)
		}
	}
	return e, nil
}

// unavailable wraps transport-level failures into the engine taxonomy while
// preserving the original cause for logs.
func unavailable(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return engine.ErrNotFound
	}
	return fmt.Errorf("%w: %v", engine.ErrStoreUnavailable, err)
}

// Compile-time interface assertions
var (
	_ engine.Store     = (*Store)(nil)
	_ engine.Directory = (*Store)(nil)
)
