// Package ratelimit implements in-memory sliding-window admission control keyed
// by client identity, plus best-effort recording of admission decisions.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRequests   = 10
	DefaultWindow        = time.Minute
	DefaultSweepInterval = 5 * time.Minute
)

type Config struct {
	MaxRequests   int
	Window        time.Duration
	SweepInterval time.Duration
}

// Limiter is a sliding-window rate limiter. The zero value is not usable; build
// one with New.
type Limiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time

	maxRequests   int
	window        time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	logger        *logrus.Logger

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithLogger(logger *logrus.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

func New(cfg Config, opts ...Option) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = DefaultMaxRequests
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	l := &Limiter{
		requests:      make(map[string][]time.Time),
		maxRequests:   cfg.MaxRequests,
		window:        cfg.Window,
		sweepInterval: cfg.SweepInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = logrus.New()
	}
	return l
}

func (l *Limiter) MaxRequests() int      { return l.maxRequests }
func (l *Limiter) Window() time.Duration { return l.window }

// IsAllowed records a request for identifier and reports whether it fits in the
// current window. Denied requests are not recorded. The clock is read under the
// lock so each identifier's timestamps stay in order.
func (l *Limiter) IsAllowed(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	timestamps := prune(l.requests[identifier], windowStart)
	if len(timestamps) >= l.maxRequests {
		l.requests[identifier] = timestamps
		l.logger.WithField("identifier", identifier).Warn("Rate limit exceeded")
		return false
	}

	l.requests[identifier] = append(timestamps, now)
	return true
}

// Remaining returns how many requests identifier may still make in the current
// window. It does not modify state.
func (l *Limiter) Remaining(identifier string) int {
	l.mu.Lock()
	windowStart := l.now().Add(-l.window)
	count := 0
	for _, ts := range l.requests[identifier] {
		if ts.After(windowStart) {
			count++
		}
	}
	l.mu.Unlock()

	if remaining := l.maxRequests - count; remaining > 0 {
		return remaining
	}
	return 0
}

// RetryAfter is the time until the oldest request in identifier's window expires.
func (l *Limiter) RetryAfter(identifier string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	windowStart := l.now().Add(-l.window)

	var oldest time.Time
	for _, ts := range l.requests[identifier] {
		if ts.After(windowStart) && (oldest.IsZero() || ts.Before(oldest)) {
			oldest = ts
		}
	}
	if oldest.IsZero() {
		return 0
	}
	return oldest.Sub(windowStart)
}

func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	delete(l.requests, identifier)
	l.mu.Unlock()
}

func (l *Limiter) ResetAll() {
	l.mu.Lock()
	l.requests = make(map[string][]time.Time)
	l.mu.Unlock()
}

// Len returns the number of tracked identifiers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Sweep prunes every identifier and drops the ones left empty. The lock is taken
// once per identifier so admission checks interleave with the sweep.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	identifiers := make([]string, 0, len(l.requests))
	for id := range l.requests {
		identifiers = append(identifiers, id)
	}
	l.mu.Unlock()

	removed := 0
	for _, id := range identifiers {
		l.mu.Lock()
		windowStart := l.now().Add(-l.window)
		if timestamps, ok := l.requests[id]; ok {
			timestamps = prune(timestamps, windowStart)
			if len(timestamps) == 0 {
				delete(l.requests, id)
				removed++
			} else {
				l.requests[id] = timestamps
			}
		}
		l.mu.Unlock()
	}
	return removed
}

// Start launches the background sweep. It is a no-op if already running.
func (l *Limiter) Start(ctx context.Context) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := l.Sweep(); removed > 0 {
					l.logger.WithField("removed", removed).Debug("Rate limiter sweep completed")
				}
			}
		}
	}()
}

// Stop halts the background sweep and waits for it to exit.
func (l *Limiter) Stop() {
	l.lifecycle.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// prune drops timestamps at or before windowStart, reusing the backing array.
func prune(timestamps []time.Time, windowStart time.Time) []time.Time {
	kept := timestamps[:0]
	for _, ts := range timestamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}
	return kept
}
