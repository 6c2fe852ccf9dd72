// Package analytics records creation counters in Redis. The sink is a pure
// observer: it runs after a create has committed and its failures are logged,
// never surfaced to the caller.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"agendacal/internal/domain"
)

// DefaultRetention bounds how long a daily counter bucket survives.
const DefaultRetention = 90 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	retention time.Duration
	clock     func() time.Time
}

func NewRedisSink(client *redis.Client) *RedisSink {
	return &RedisSink{
		client:    client,
		retention: DefaultRetention,
		clock:     time.Now,
	}
}

// WithRetention overrides the counter bucket TTL.
func (s *RedisSink) WithRetention(retention time.Duration) *RedisSink {
	s.retention = retention
	return s
}

// WithClock overrides the time source. Used by tests.
func (s *RedisSink) WithClock(clock func() time.Time) *RedisSink {
	s.clock = clock
	return s
}

// EventCreated increments the per-day and per-priority creation counters.
// Errors are logged and swallowed; analytics never affects the create path.
func (s *RedisSink) EventCreated(ctx context.Context, e domain.Event) {
	day := dayBucket(s.clock())

	pipe := s.client.Pipeline()
	dayKey := fmt.Sprintf("agendacal:created:day:%s", day)
	prioKey := fmt.Sprintf("agendacal:created:priority:%s:%s", e.Priority, day)
	pipe.Incr(ctx, dayKey)
	pipe.Expire(ctx, dayKey, s.retention)
	pipe.Incr(ctx, prioKey)
	pipe.Expire(ctx, prioKey, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("analytics: counter write for event=%s failed: %v", e.ID, err)
	}
}

// CreatedOnDay reads the daily counter for a given day. Missing buckets
// read as zero.
func (s *RedisSink) CreatedOnDay(ctx context.Context, day time.Time) (int64, error) {
	key := fmt.Sprintf("agendacal:created:day:%s", dayBucket(day))
	n, err := s.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read counter %s: %w", key, err)
	}
	return n, nil
}

func dayBucket(t time.Time) string {
	return t.UTC().Format("20060102")
}
