package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"txdash/internal/log"
)

type ContextKey string

const (
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID is accepted from upstream and echoed on every response.
	HeaderRequestID = "X-Request-ID"
)

// Metrics is a snapshot of the access counters.
type Metrics struct {
	TotalRequests  int64
	ClientErrors   int64
	ServerErrors   int64
	TotalLatencyUs int64
}

// AverageLatency is zero until a request has completed.
func (m Metrics) AverageLatency() time.Duration {
	if m.TotalRequests == 0 {
		return 0
	}
	return time.Duration(m.TotalLatencyUs/m.TotalRequests) * time.Microsecond
}

// Middleware assigns a request ID to every request and writes the access log.
type Middleware struct {
	extractIP func(*http.Request) string

	total     atomic.Int64
	clientErr atomic.Int64
	serverErr atomic.Int64
	latencyUs atomic.Int64
}

// NewMiddleware takes the client IP resolver; nil leaves the IP blank.
func NewMiddleware(extractIP func(*http.Request) string) *Middleware {
	return &Middleware{extractIP: extractIP}
}

func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := requestIDFrom(r)
		w.Header().Set(HeaderRequestID, id)

		ctx := context.WithValue(r.Context(), RequestIDKey, id)
		r = r.WithContext(ctx)

		var clientIP string
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		m.total.Add(1)
		m.latencyUs.Add(elapsed.Microseconds())
		level := slog.LevelInfo
		switch {
		case rec.status >= 500:
			level = slog.LevelError
			m.serverErr.Add(1)
		case rec.status >= 400:
			level = slog.LevelWarn
			m.clientErr.Add(1)
		}

		slog.Log(ctx, level, "HTTP request completed",
			log.FieldRequestID, id,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldQuery, r.URL.RawQuery,
			log.FieldStatusCode, rec.status,
			log.FieldDuration, elapsed.Milliseconds(),
			log.FieldDurationHuman, elapsed.String(),
			log.FieldClientIP, clientIP,
			log.FieldUserAgent, r.UserAgent(),
			log.FieldSuccess, rec.status < 400)
	})
}

// requestIDFrom reuses a well-formed upstream ID and mints one otherwise.
func requestIDFrom(r *http.Request) string {
	id := r.Header.Get(HeaderRequestID)
	if _, err := uuid.Parse(id); err != nil {
		return uuid.NewString()
	}
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// GetRequestID returns "" outside a traced request.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:  m.total.Load(),
		ClientErrors:   m.clientErr.Load(),
		ServerErrors:   m.serverErr.Load(),
		TotalLatencyUs: m.latencyUs.Load(),
	}
}
