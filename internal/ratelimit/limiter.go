// Package ratelimit implements per-key admission control using a pair of
// token buckets: a minute window for burst abuse and an hour window for
// sustained high-rate abuse. Buckets refill lazily on inspection; there is
// no background goroutine.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"
)

const (
	defaultPerMinute = 100
	defaultPerHour   = 1000
)

// Decision is the outcome of an admission check. When Allowed is false,
// RetryAfter is how long the caller must wait before one token is available
// in the slower-refilling bucket.
type Decision struct {
	RetryAfter time.Duration
	Allowed    bool
}

// Remaining is a read-only snapshot of a key's available tokens.
type Remaining struct {
	Minute      int
	MinuteLimit int
	Hour        int
	HourLimit   int
}

// bucket holds capacity tokens that regenerate at refillRate tokens/second.
type bucket struct {
	lastRefill time.Time
	tokens     float64
	capacity   float64
	refillRate float64
}

func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = min(b.capacity, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now
}

// timeUntilToken reports seconds until one token is available. Must be called
// after refill.
func (b *bucket) timeUntilToken() float64 {
	if b.tokens >= 1 {
		return 0
	}
	return (1 - b.tokens) / b.refillRate
}

type keyBuckets struct {
	minute bucket
	hour   bucket
}

// Limiter is an in-memory dual-window rate limiter. It is safe for
// concurrent use; refill and consumption for a key happen under one lock so
// two callers can never both win a debit that together exceeds capacity.
//
// Keys are created lazily on first use and never expire.
type Limiter struct {
	now       func() time.Time
	keys      map[string]*keyBuckets
	logger    *slog.Logger
	perMinute int
	perHour   int
	mu        sync.Mutex
}

// New creates a rate limiter allowing perMinute requests/minute and perHour
// requests/hour per key. Non-positive limits fall back to defaults.
func New(perMinute, perHour int, logger *slog.Logger) *Limiter {
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}
	if perHour <= 0 {
		perHour = defaultPerHour
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Limiter{
		perMinute: perMinute,
		perHour:   perHour,
		keys:      make(map[string]*keyBuckets),
		logger:    logger,
		now:       time.Now,
	}
}

// Check attempts to admit a request of the given token cost for key. Both
// windows must have capacity; consumption is atomic across them, so a denied
// request debits neither bucket. Check never blocks and never fails.
func (l *Limiter) Check(key string, cost int) Decision {
	if cost <= 0 {
		cost = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	kb := l.buckets(key)
	now := l.now()
	kb.minute.refill(now)
	kb.hour.refill(now)

	need := float64(cost)
	if kb.minute.tokens >= need && kb.hour.tokens >= need {
		kb.minute.tokens -= need
		kb.hour.tokens -= need
		return Decision{Allowed: true}
	}

	// Callers must wait out the slower-refilling constraint.
	wait := max(kb.minute.timeUntilToken(), kb.hour.timeUntilToken())

	l.logger.Warn("rate limit exceeded",
		"key", key,
		"cost", cost,
		"minute_tokens", kb.minute.tokens,
		"hour_tokens", kb.hour.tokens,
		"retry_after", wait)

	return Decision{RetryAfter: time.Duration(wait * float64(time.Second))}
}

// GetRemaining returns the current token counts for a key without consuming
// anything. Buckets are still refilled so the snapshot reflects elapsed time.
func (l *Limiter) GetRemaining(key string) Remaining {
	l.mu.Lock()
	defer l.mu.Unlock()

	kb := l.buckets(key)
	now := l.now()
	kb.minute.refill(now)
	kb.hour.refill(now)

	return Remaining{
		Minute:      int(kb.minute.tokens),
		MinuteLimit: l.perMinute,
		Hour:        int(kb.hour.tokens),
		HourLimit:   l.perHour,
	}
}

// ResetKey discards all rate limit state for a key.
func (l *Limiter) ResetKey(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.keys, key)
}

// buckets returns the bucket pair for key, creating full ones on first use.
// Callers must hold l.mu.
func (l *Limiter) buckets(key string) *keyBuckets {
	kb, ok := l.keys[key]
	if !ok {
		now := l.now()
		kb = &keyBuckets{
			minute: bucket{
				tokens:     float64(l.perMinute),
				capacity:   float64(l.perMinute),
				refillRate: float64(l.perMinute) / 60.0,
				lastRefill: now,
			},
			hour: bucket{
				tokens:     float64(l.perHour),
				capacity:   float64(l.perHour),
				refillRate: float64(l.perHour) / 3600.0,
				lastRefill: now,
			},
		}
		l.keys[key] = kb
	}
	return kb
}
