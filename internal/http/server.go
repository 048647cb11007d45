package http

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"txdash/internal/core"
	"txdash/internal/log"
	"txdash/internal/middleware/ratelimit"
	"txdash/internal/middleware/security"
	"txdash/internal/middleware/trace"
	appweb "txdash/web"
)

// Dashboard is the application port the handlers drive.
type Dashboard interface {
	ListTransactions(ctx context.Context, f core.Filter, p core.Page) (core.TransactionPage, error)
	Statistics(ctx context.Context, m *core.Month) (core.Statistics, error)
	BarChart(ctx context.Context, m *core.Month) ([]core.BarChartEntry, error)
	PieChart(ctx context.Context, m *core.Month) ([]core.PieChartEntry, error)
	Combined(ctx context.Context, m *core.Month) (core.CombinedReport, error)
	Reseed(ctx context.Context) (int, error)
	Ping(ctx context.Context) error
}

// Options tunes the server.
type Options struct {
	// RequestTimeout bounds every store call made on behalf of a request.
	RequestTimeout time.Duration
	// InitRateLimit is the number of /api/init calls allowed per client per minute.
	InitRateLimit int
	// TrustedProxies are CIDRs, beyond loopback and private ranges, whose
	// forwarding headers identify the client.
	TrustedProxies []string
	// InitTimeout bounds a reseed, feed retries included. /api/init extends
	// its connection deadlines to match, past the server WriteTimeout.
	InitTimeout time.Duration
}

func DefaultOptions() Options {
	return Options{RequestTimeout: 7 * time.Second, InitRateLimit: 10, InitTimeout: 2 * time.Minute}
}

type Server struct {
	http.Server
	dashboard      Dashboard
	logger         *log.Logger
	requestTimeout time.Duration
	initTimeout    time.Duration
	staticFS       fs.FS

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	reseeds int64
	uptime  time.Time
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, d Dashboard, opts Options) *Server {
	def := DefaultOptions()
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = def.RequestTimeout
	}
	if opts.InitRateLimit <= 0 {
		opts.InitRateLimit = def.InitRateLimit
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = def.InitTimeout
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			slog.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s := &Server{
		dashboard:        d,
		logger:           log.New(log.DefaultConfig()).WithComponent(log.ComponentHTTP),
		requestTimeout:   opts.RequestTimeout,
		initTimeout:      opts.InitTimeout,
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.InitRateLimit}),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		s.staticFS = sub
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	api := func(h http.HandlerFunc) http.Handler {
		return security.NoStoreMiddleware(h)
	}
	limitInit := s.rateLimiter.Middleware(detector.ExtractClientIP, s.handleRateLimited)

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	mux.Handle("/api/init", security.NoStoreMiddleware(limitInit(http.HandlerFunc(s.handleInit))))
	mux.Handle("/api/transactions", api(s.handleTransactions))
	mux.Handle("/api/statistics", api(s.handleStatistics))
	mux.Handle("/api/bar-chart", api(s.handleBarChart))
	mux.Handle("/api/pie-chart", api(s.handlePieChart))
	mux.Handle("/api/combined", api(s.handleCombined))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler: s.traceMiddleware.Middleware(
			log.Middleware(s.logger)(
				log.RequestIDMiddleware(requestID)(
					detector.Middleware(headers.Middleware(mux))))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * opts.RequestTimeout,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	fields := log.NewFields().
		WithClientIP(s.securityDetector.ExtractClientIP(r)).
		WithOperation(log.OpReseed)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded", fields.ToSlice()...)
	retry := int(s.rateLimiter.RetryAfter().Seconds())
	TooManyRequestsError("Rate limit exceeded. Please try again later.").
		Header("Retry-After", strconv.Itoa(retry)).
		Write(w)
}

func requestID(r *http.Request) string {
	return trace.GetRequestID(r.Context())
}

// requestContext bounds downstream work for one request.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.requestTimeout)
}

func (s *Server) recordReseed() {
	atomic.AddInt64(&s.appMetrics.reseeds, 1)
}
