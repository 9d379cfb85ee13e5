// Package analytics records trigger firings as time-bucketed counters
// in Redis. The sink is optional wiring; when no Redis address is
// configured the engine runs without it.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daybreak-labs/triggerd/internal/domain"
)

// DefaultRetention bounds how long firing counters live. Analytics
// are a rolling view, not an audit log.
const DefaultRetention = 30 * 24 * time.Hour

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client, window time.Duration) *RedisSink {
	if window <= 0 {
		window = time.Hour
	}
	return &RedisSink{client: client, window: window, retention: DefaultRetention}
}

// Record increments the firing counter for the event's source in the
// bucket containing its fire time.
func (s *RedisSink) Record(ctx context.Context, event domain.TriggerEvent) error {
	key := buildKey(event.Source, event.SourceID, event.FiredAt, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.retention)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(source domain.SourceKind, sourceID string, t time.Time, window time.Duration) string {
	return fmt.Sprintf("triggerd:fired:%s:%s:%s", source, sourceID, truncateToBucket(t, window))
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("2006010215")
	}
}
