package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/finflow/finflow/internal/ratelimit"
)

// apiKeyHeader identifies the caller for rate limiting. Absent keys share
// a single anonymous bucket.
const apiKeyHeader = "X-API-Key"

const anonymousKey = "anonymous"

// endpointCosts weights expensive routes so a caller cannot spend their
// whole budget on ingestion triggers. Matching is by path prefix; the
// zero-key entry is the default.
var endpointCosts = map[string]int{
	"/fetch":            10,
	"/api/v1/analytics": 2,
}

func endpointCost(path string) int {
	for prefix, cost := range endpointCosts {
		if strings.HasPrefix(path, prefix) {
			return cost
		}
	}
	return 1
}

// requestID assigns a UUID to every request, honoring one supplied by a
// proxy, and echoes it back in the response.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		w.Header().Set(middleware.RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs one line per request with latency and status.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}

// rateLimiter enforces the dual-window limits per API key. Denied requests
// get a 429 with machine-readable wait hints; allowed requests still carry
// the remaining-budget headers.
func rateLimiter(limiter *ratelimit.Limiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(apiKeyHeader)
			if key == "" {
				key = anonymousKey
			}

			cost := endpointCost(r.URL.Path)
			decision := limiter.Check(key, cost)
			remaining := limiter.GetRemaining(key)
			setRateLimitHeaders(w, remaining)

			if !decision.Allowed {
				retryAfter := int(decision.RetryAfter.Seconds()) + 1
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				logger.Warn("request rate limited",
					"key", key,
					"path", r.URL.Path,
					"cost", cost,
					"retry_after", retryAfter)

				writeJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":               "Rate limit exceeded",
					"retry_after_seconds": retryAfter,
					"limits": map[string]int{
						"per_minute": remaining.MinuteLimit,
						"per_hour":   remaining.HourLimit,
					},
					"remaining": map[string]int{
						"minute_remaining": remaining.Minute,
						"hour_remaining":   remaining.Hour,
					},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, remaining ratelimit.Remaining) {
	h := w.Header()
	h.Set("X-RateLimit-Limit-Minute", strconv.Itoa(remaining.MinuteLimit))
	h.Set("X-RateLimit-Limit-Hour", strconv.Itoa(remaining.HourLimit))
	h.Set("X-RateLimit-Remaining-Minute", strconv.Itoa(remaining.Minute))
	h.Set("X-RateLimit-Remaining-Hour", strconv.Itoa(remaining.Hour))
}
