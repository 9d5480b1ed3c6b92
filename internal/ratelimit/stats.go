package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Event is one admission decision.
type Event struct {
	Key     string
	Allowed bool
	Method  string
	Path    string
	At      time.Time
}

// Recorder persists admission decisions. Implementations are best-effort:
// callers log errors and never fail a request because of them.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// StatsReader reads back recorded admission decisions.
type StatsReader interface {
	Total(ctx context.Context) (Counters, error)
	ByRoute(ctx context.Context) (map[string]Counters, error)
}

// Stats is a recorder whose counters can be read back.
type Stats interface {
	Recorder
	StatsReader
}

type Counters struct {
	Allowed int64 `json:"allowed"`
	Denied  int64 `json:"denied"`
}

// MemoryStats keeps counters in process memory. Nothing expires.
type MemoryStats struct {
	mu      sync.Mutex
	total   Counters
	byRoute map[string]Counters
}

func NewMemoryStats() *MemoryStats {
	return &MemoryStats{byRoute: make(map[string]Counters)}
}

func (s *MemoryStats) Record(_ context.Context, ev Event) error {
	route := routeField(ev.Method, ev.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.byRoute[route]
	if ev.Allowed {
		s.total.Allowed++
		c.Allowed++
	} else {
		s.total.Denied++
		c.Denied++
	}
	if route != "" {
		s.byRoute[route] = c
	}
	return nil
}

func (s *MemoryStats) Total(context.Context) (Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total, nil
}

func (s *MemoryStats) ByRoute(context.Context) (map[string]Counters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.byRoute))
	for k, v := range s.byRoute {
		out[k] = v
	}
	return out, nil
}

// RedisStats writes counters to Redis hashes:
//
//	<prefix>:total                  allowed/denied, cumulative
//	<prefix>:minute:<yyyymmddhhmm>  allowed/denied, expires after ttl
//	<prefix>:route                  "<METHOD> <path>:<allowed|denied>"
type RedisStats struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStats(client *redis.Client, prefix string, ttl time.Duration) *RedisStats {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit:stats"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStats{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStats) Record(ctx context.Context, ev Event) error {
	if s == nil || s.client == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.client.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	pipe.Expire(ctx, bucketKey, s.ttl)

	if route := routeField(ev.Method, ev.Path); route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", route+":"+field, 1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record rate limit stats: %w", err)
	}
	return nil
}

// Total reads the cumulative counters.
func (s *RedisStats) Total(ctx context.Context) (Counters, error) {
	if s == nil || s.client == nil {
		return Counters{}, nil
	}

	values, err := s.client.HGetAll(ctx, s.prefix+":total").Result()
	if err != nil {
		return Counters{}, fmt.Errorf("failed to read rate limit totals: %w", err)
	}

	var c Counters
	c.add(values["allowed"], "allowed")
	c.add(values["denied"], "denied")
	return c, nil
}

// ByRoute reads the per-route counters back out of the route hash.
func (s *RedisStats) ByRoute(ctx context.Context) (map[string]Counters, error) {
	out := make(map[string]Counters)
	if s == nil || s.client == nil {
		return out, nil
	}

	values, err := s.client.HGetAll(ctx, s.prefix+":route").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rate limit routes: %w", err)
	}

	for field, v := range values {
		i := strings.LastIndex(field, ":")
		if i <= 0 {
			continue
		}
		route := field[:i]
		c := out[route]
		c.add(v, field[i+1:])
		out[route] = c
	}
	return out, nil
}

func (c *Counters) add(value, decision string) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return
	}
	switch decision {
	case "allowed":
		c.Allowed += n
	case "denied":
		c.Denied += n
	}
}

func routeField(method, path string) string {
	return strings.TrimSpace(strings.TrimSpace(method) + " " + strings.TrimSpace(path))
}
