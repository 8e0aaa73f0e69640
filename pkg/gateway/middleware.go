package gateway

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/deepagent/internal/observability"
	"github.com/harun/deepagent/internal/tracing"
)

const (
	headerRequestID  = "X-Request-ID"
	headerTraceID    = "X-Trace-Id"
	headerRetryAfter = "Retry-After"
)

// RequestID tags every request with an id and a trace id, taken from the
// incoming headers when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(headerRequestID)
		if requestID == "" {
			id, err := gonanoid.New()
			if err != nil {
				id = tracing.NewTraceID()
			}
			requestID = id
		}

		traceID := r.Header.Get(headerTraceID)
		if traceID == "" {
			traceID = tracing.NewTraceID()
		}

		ctx := tracing.WithRequestID(r.Context(), requestID)
		ctx = tracing.WithTraceID(ctx, traceID)

		w.Header().Set(headerRequestID, requestID)
		w.Header().Set(headerTraceID, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs method, route, status and duration, and counts the request
func Logger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			route := routePattern(r)
			observability.RecordHTTPRequest(route, sw.status)

			reqLogger := tracing.LoggerFromContext(r.Context(), logger)
			var event *zerolog.Event
			if sw.status >= http.StatusInternalServerError {
				event = reqLogger.Warn()
			} else {
				event = reqLogger.Info()
			}
			event.
				Str("method", r.Method).
				Str("route", route).
				Int("status", sw.status).
				Int64("duration_ms", time.Since(start).Milliseconds()).
				Msg("HTTP request")
		})
	}
}

// Recovery turns a panic into a 500 answer
func Recovery(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					reqLogger := tracing.LoggerFromContext(r.Context(), logger)
					reqLogger.Error().
						Str("panic", fmt.Sprint(rec)).
						Str("path", r.URL.Path).
						Msg("Panic recovered")
					writeError(w, r, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit rejects clients over their allowance with 429 and a Retry-After header
func RateLimit(limiter *RateLimiter, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, wait := limiter.Allow(ip)
			if !allowed {
				retryAfter := retryAfterSeconds(wait)
				logger.Warn().
					Str("ip", ip).
					Str("path", r.URL.Path).
					Int("retry_after", retryAfter).
					Msg("Rate limit exceeded")
				w.Header().Set(headerRetryAfter, strconv.Itoa(retryAfter))
				writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// clientIP prefers proxy headers and falls back to the connection address
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if !w.wroteHeader {
		w.status = status
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(p)
}

// Hijack lets the websocket upgrader take over the connection
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	w.wroteHeader = true
	return hijacker.Hijack()
}

func (w *statusWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
