// Package holiday provides the static calendar overlay: a fixed table of
// Brazilian holidays merged into the visible event list. Holidays are never
// persisted and never user-editable.
package holiday

import (
	"strings"
	"time"

	"agendacal/internal/domain"
)

// IDPrefix marks holiday-derived ids. Kept stable because stored views and
// clients key on it.
const IDPrefix = "holiday-"

type entry struct {
	title       string
	date        string // YYYY-MM-DD
	description string
}

// Reference table for 2025. Regenerated identically every session.
var reference = []entry{
	{"Carnaval", "2025-02-12", "Feriado Nacional"},
	{"Sexta-feira Santa", "2025-03-28", "Feriado Nacional"},
	{"Municipal", "2025-04-04", "Aniversário de Inocência"},
	{"Tiradentes", "2025-04-21", "Feriado Nacional"},
	{"Dia do Trabalho", "2025-05-01", "Feriado Nacional"},
	{"Independência do Brasil", "2025-09-07", "Feriado Nacional"},
	{"Nossa Senhora Aparecida", "2025-10-12", "Feriado Nacional"},
	{"Finados", "2025-11-02", "Feriado Nacional"},
	{"Proclamação da República", "2025-11-15", "Feriado Nacional"},
	{"Natal", "2025-12-25", "Feriado Nacional"},
	{"Confraternização Universal", "2025-12-31", "Ano Novo"},
}

// List returns the holiday overlay. The result is freshly built on every
// call so callers can never mutate the reference table.
func List() []domain.Holiday {
	holidays := make([]domain.Holiday, 0, len(reference))
	for _, e := range reference {
		date, err := time.Parse("2006-01-02", e.date)
		if err != nil {
			// The table is compile-time data; a bad date is a programming
			// error, not a runtime condition.
			panic("holiday: bad reference date " + e.date)
		}
		holidays = append(holidays, domain.Holiday{
			ID:          ID(date),
			Title:       e.title,
			Date:        date,
			Description: e.description,
		})
	}
	return holidays
}

// ID derives the synthetic holiday id from its date. Deterministic: the same
// date always yields the same id.
func ID(date time.Time) string {
	return IDPrefix + date.Format("2006-01-02")
}

// IsHolidayID reports whether id belongs to a holiday overlay entry.
// Mutations against such ids must be ignored by the orchestrator.
func IsHolidayID(id string) bool {
	return strings.HasPrefix(id, IDPrefix)
}
