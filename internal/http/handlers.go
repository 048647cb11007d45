package http

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"txdash/internal/core"
	"txdash/internal/log"
)

// Generic per-endpoint messages; the underlying error is only logged.
const (
	msgInitFailed         = "Failed to initialize database"
	msgTransactionsFailed = "Failed to fetch transactions"
	msgStatisticsFailed   = "Failed to fetch statistics"
	msgBarChartFailed     = "Failed to fetch bar chart data"
	msgPieChartFailed     = "Failed to fetch pie chart data"
	msgCombinedFailed     = "Failed to fetch combined data"
)

// InitResponse is the body of a successful reseed.
type InitResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// initWriteGrace is the time left to write the response once a reseed that
// used its whole budget returns.
const initWriteGrace = 5 * time.Second

// handleInit reseeds the store. HEAD is refused: it would run the reseed.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodGet); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.initTimeout)
	defer cancel()
	extendDeadlines(ctx, w, time.Now().Add(s.initTimeout+initWriteGrace))

	n, err := s.dashboard.Reseed(ctx)
	if err != nil {
		s.logError(r.Context(), msgInitFailed, err, log.OpReseed, nil)
		InternalServerError(msgInitFailed).Write(w)
		return
	}
	s.recordReseed()

	NewJSONResponse().
		Payload(InitResponse{Message: "Database initialized successfully", Count: n}).
		Write(w)
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	params, err := ParseListParams(r.URL.Query())
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	page, err := s.dashboard.ListTransactions(ctx, params.Filter, params.Page)
	if err != nil {
		s.logError(ctx, msgTransactionsFailed, err, log.OpList, log.NewFields().
			WithQuery(monthLabel(params.Filter.Month), params.Filter.Search, params.Page.Number, params.Page.PerPage))
		InternalServerError(msgTransactionsFailed).Write(w)
		return
	}
	NewJSONResponse().Payload(page).Write(w)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, msgStatisticsFailed, log.OpStatistics, func(ctx context.Context, m *core.Month) (any, error) {
		return s.dashboard.Statistics(ctx, m)
	})
}

func (s *Server) handleBarChart(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, msgBarChartFailed, log.OpBarChart, func(ctx context.Context, m *core.Month) (any, error) {
		return s.dashboard.BarChart(ctx, m)
	})
}

func (s *Server) handlePieChart(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, msgPieChartFailed, log.OpPieChart, func(ctx context.Context, m *core.Month) (any, error) {
		return s.dashboard.PieChart(ctx, m)
	})
}

func (s *Server) handleCombined(w http.ResponseWriter, r *http.Request) {
	s.serveAggregate(w, r, msgCombinedFailed, log.OpCombined, func(ctx context.Context, m *core.Month) (any, error) {
		return s.dashboard.Combined(ctx, m)
	})
}

// serveAggregate handles the month-only endpoints.
func (s *Server) serveAggregate(w http.ResponseWriter, r *http.Request, failMsg, op string, fetch func(context.Context, *core.Month) (any, error)) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	m, err := ParseMonthParam(r.URL.Query())
	if err != nil {
		s.badRequest(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	data, err := fetch(ctx, m)
	if err != nil {
		s.logError(ctx, failMsg, err, op, log.NewFields().WithQuery(monthLabel(m), "", 0, 0))
		InternalServerError(failMsg).Write(w)
		return
	}
	NewJSONResponse().Payload(data).Write(w)
}

func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Invalid request parameters",
		log.FieldQuery, r.URL.RawQuery,
		log.FieldOperation, log.OpParse,
		log.FieldError, err)
	if errors.Is(err, core.ErrInvalidMonth) {
		BadRequestError(err.Error()).Write(w)
		return
	}
	BadRequestError("Invalid request").Write(w)
}

// extendDeadlines lifts the connection deadlines for a handler that may run
// longer than the server timeouts. Writers without deadline support are
// left alone.
func extendDeadlines(ctx context.Context, w http.ResponseWriter, until time.Time) {
	rc := http.NewResponseController(w)
	for _, set := range []func(time.Time) error{rc.SetWriteDeadline, rc.SetReadDeadline} {
		if err := set(until); err != nil && !errors.Is(err, http.ErrNotSupported) {
			log.FromContext(ctx).WarnContext(ctx, "Failed to extend connection deadline", log.FieldError, err)
		}
	}
}

func (s *Server) logError(ctx context.Context, msg string, err error, op string, fields log.LogFields) {
	log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, msg, err, log.ComponentHTTP, op, fields)
}

func monthLabel(m *core.Month) string {
	if m == nil {
		return "all"
	}
	return m.String()
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Payload(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports whether the transaction store answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if err := s.dashboard.Ping(ctx); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["rate_limiter"] = map[string]any{
		"active_clients": s.rateLimiter.ActiveClients(),
		"status":         "ok",
	}

	NewJSONResponse().Status(httpStatus).Payload(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes the counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	w.WriteHeader(http.StatusOK)

	writeMetric(w, "http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	writeMetric(w, "http_client_errors_total", "counter", "Total number of 4xx responses", traceMetrics.ClientErrors)
	writeMetric(w, "http_server_errors_total", "counter", "Total number of 5xx responses", traceMetrics.ServerErrors)
	writeMetric(w, "http_request_duration_avg_ms", "gauge", "Mean request latency in milliseconds", traceMetrics.AverageLatency().Milliseconds())
	writeMetric(w, "reseeds_total", "counter", "Total successful reseeds served by this process", atomic.LoadInt64(&s.appMetrics.reseeds))
	writeMetric(w, "rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	writeMetric(w, "active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	writeMetric(w, "suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	writeMetric(w, "uptime_seconds", "gauge", "Application uptime in seconds", int64(time.Since(s.appMetrics.uptime).Seconds()))
}

func writeMetric(w http.ResponseWriter, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n\n", name, value)
}

// handleIndex serves the dashboard page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		NotFoundError("Not found").Write(w)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.staticFS == nil {
		InternalServerError("Dashboard not available").Write(w)
		return
	}
	page, err := fs.ReadFile(s.staticFS, "index.html")
	if err != nil {
		log.FromContext(r.Context()).WithComponent(log.ComponentStatic).
			ErrorContext(r.Context(), "Dashboard page missing", log.FieldError, err)
		InternalServerError("Dashboard not available").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(page)
}
