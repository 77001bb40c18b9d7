// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.ResponseWriter.WriteHeader(code)
		rw.written = true
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// RequestLogging assigns each request a UUID, echoes it in X-Request-ID,
// and logs method, path, status, and timing on completion.
func RequestLogging(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := uuid.NewString()
			w.Header().Set("X-Request-ID", requestID)

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			entry := log.WithFields(logrus.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"elapsed_ms": time.Since(start).Milliseconds(),
				"remote_ip":  clientKey(r),
			})
			if wrapped.statusCode >= http.StatusInternalServerError {
				entry.Error("request failed")
			} else {
				entry.Info("request completed")
			}
		})
	}
}

const clientIdleExpiry = 3 * time.Minute

// ClientLimiter tracks a token bucket per client IP.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int

	perMinute int
}

type clientEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// NewClientLimiter allows perMinute requests per client with the given
// burst. Non-positive arguments fall back to 60 and 10.
func NewClientLimiter(perMinute, burst int) *ClientLimiter {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 10
	}
	cl := &ClientLimiter{
		clients:   make(map[string]*clientEntry),
		limit:     rate.Limit(float64(perMinute) / 60.0),
		burst:     burst,
		perMinute: perMinute,
	}
	go cl.cleanup()
	return cl
}

// Allow reports whether a request from the given client may proceed.
func (cl *ClientLimiter) Allow(key string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	entry, ok := cl.clients[key]
	if !ok {
		entry = &clientEntry{lim: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.lim.Allow()
}

// cleanup drops client entries that have been idle past expiry.
func (cl *ClientLimiter) cleanup() {
	ticker := time.NewTicker(clientIdleExpiry)
	defer ticker.Stop()

	for range ticker.C {
		cl.mu.Lock()
		now := time.Now()
		for key, entry := range cl.clients {
			if now.Sub(entry.lastSeen) > clientIdleExpiry {
				delete(cl.clients, key)
			}
		}
		cl.mu.Unlock()
	}
}

// ClientLimit enforces the per-client limit, answering 429 with a
// Retry-After hint when exceeded.
func ClientLimit(limiter *ClientLimiter) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(1, 60/limiter.perMinute))
	limitHeader := strconv.Itoa(limiter.perMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow(clientKey(r)) {
				w.Header().Set("X-RateLimit-Limit", limitHeader)
				w.Header().Set("Retry-After", retryAfter)
				writeErrorResponse(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey identifies the client for rate limiting. RealIP middleware
// has already resolved forwarded addresses into RemoteAddr.
func clientKey(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
