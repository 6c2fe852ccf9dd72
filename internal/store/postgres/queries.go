package postgres

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    start_at     TIMESTAMPTZ NOT NULL,
    description  TEXT NOT NULL,
    priority     TEXT NOT NULL,
    participants JSONB NOT NULL DEFAULT '[]',
    creator_id   TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS users (
    id         TEXT PRIMARY KEY,
    first_name TEXT NOT NULL,
    last_name  TEXT NOT NULL,
    email      TEXT NOT NULL UNIQUE,
    department TEXT
)`,
	`CREATE INDEX IF NOT EXISTS events_start_at_idx ON events (start_at)`,
}

const queryListEvents = `
SELECT id, name, start_at, description, priority, participants, creator_id, created_at, updated_at
FROM events
ORDER BY start_at, id
`

const queryInsertEvent = `
INSERT INTO events (id, name, start_at, description, priority, participants, creator_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const queryUpdateEvent = `
UPDATE events
SET name = $1, start_at = $2, description = $3, priority = $4, participants = $5, updated_at = $6
WHERE id = $7
`

const queryDeleteEvent = `
DELETE FROM events WHERE id = $1
`

const queryListParticipants = `
SELECT id, first_name, last_name, email, department
FROM users
ORDER BY first_name, last_name
`
