// Package resync periodically re-fetches the stored event collection so the
// in-memory view converges with changes made by other writers. Last write
// wins; there is no conflict resolution beyond replacing the collection.
package resync

import (
	"context"
	"log"
	"time"
)

// Engine is the subset of the scheduling engine the loop drives.
type Engine interface {
	Reload(ctx context.Context) error
	RefreshDirectory(ctx context.Context) error
}

// Config holds resync loop configuration.
type Config struct {
	// Interval is how often the event collection is re-fetched.
	// Default: 1 minute.
	Interval time.Duration

	// DirectoryEvery re-fetches the participant directory every Nth cycle.
	// Zero disables directory refresh.
	DirectoryEvery int
}

// DefaultConfig returns the default resync configuration.
func DefaultConfig() Config {
	return Config{
		Interval:       time.Minute,
		DirectoryEvery: 10,
	}
}

// Loop drives periodic reloads of an engine.
type Loop struct {
	config Config
	engine Engine
}

// New creates a resync loop.
func New(config Config, engine Engine) *Loop {
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}
	return &Loop{config: config, engine: engine}
}

// Run starts the loop. It blocks until ctx is cancelled. The first cycle
// runs after one interval; startup already did a full load.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.config.Interval)
	defer ticker.Stop()

	log.Printf("resync: started (interval=%s, directory every %d cycles)",
		l.config.Interval, l.config.DirectoryEvery)

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			log.Println("resync: stopped")
			return
		case <-ticker.C:
			cycle++
			l.runCycle(ctx, cycle)
		}
	}
}

// runCycle executes one resync cycle. Failures are logged and retried on the
// next interval.
func (l *Loop) runCycle(ctx context.Context, cycle int) {
	if err := l.engine.Reload(ctx); err != nil {
		log.Printf("resync: reload failed: %v", err)
		return
	}

	if l.config.DirectoryEvery > 0 && cycle%l.config.DirectoryEvery == 0 {
		if err := l.engine.RefreshDirectory(ctx); err != nil {
			log.Printf("resync: directory refresh failed: %v", err)
		}
	}
}
