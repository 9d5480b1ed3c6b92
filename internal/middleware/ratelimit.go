package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/vshop/insights/internal/metrics"
	"github.com/vshop/insights/internal/ratelimit"
	"github.com/vshop/insights/pkg/utils"
)

const (
	// ClientIDKey holds the rate-limit identity in the gin context.
	ClientIDKey  = "client_id"
	RequestIDKey = utils.RequestIDKey

	UnknownClient = "unknown"

	statsTimeout = 2 * time.Second
)

// ClientIdentity picks the caller identity from proxy headers: the first
// X-Forwarded-For entry, then X-Real-IP, then CF-Connecting-IP. Callers without
// any of them share the "unknown" bucket.
func ClientIdentity(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return UnknownClient
}

// RateLimit admits requests through limiter, keyed by ClientIdentity. Rejected
// requests get 429 with Retry-After. recorder and m may be nil.
func RateLimit(limiter *ratelimit.Limiter, recorder ratelimit.Recorder, m *metrics.Metrics, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ClientIdentity(c.Request)
		allowed := limiter.IsAllowed(id)

		m.ObserveRateLimit(allowed)
		if recorder != nil {
			go recordDecision(recorder, logger, ratelimit.Event{
				Key:     utils.HashIdentifier(id),
				Allowed: allowed,
				Method:  c.Request.Method,
				Path:    c.FullPath(),
				At:      time.Now(),
			})
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.MaxRequests()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(id)))

		if !allowed {
			retryAfter := int(math.Ceil(limiter.RetryAfter(id).Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "Rate limit exceeded", nil)
			c.Abort()
			return
		}

		c.Set(ClientIDKey, id)
		c.Next()
	}
}

func recordDecision(recorder ratelimit.Recorder, logger *logrus.Logger, ev ratelimit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	if err := recorder.Record(ctx, ev); err != nil && logger != nil {
		logger.WithError(err).Warn("Failed to record rate limit decision")
	}
}

// Security middleware
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Next()
	}
}

// RequestID keeps a well-formed incoming X-Request-ID and otherwise issues a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if !utils.ValidateRequestID(requestID) {
			requestID = utils.NewRequestID()
		}

		c.Header("X-Request-ID", requestID)
		c.Set(RequestIDKey, requestID)
		c.Next()
	}
}

// Logger writes one structured line per request.
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"request_id":  c.GetString(RequestIDKey),
		}).Info("Request handled")
	}
}
