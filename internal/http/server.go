package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"costboard/internal/core"
	"costboard/internal/log"
	"costboard/internal/middleware/ratelimit"
	"costboard/internal/middleware/security"
	"costboard/internal/middleware/trace"
	"costboard/internal/profile"
	"costboard/internal/services"
	"costboard/internal/storage"
)

// DashboardReader builds dashboards and drops cached snapshots.
type DashboardReader interface {
	Brands() []profile.Brand
	Dashboard(ctx context.Context, q services.Query) (*services.Dashboard, error)
	Invalidate(ctx context.Context, brandID string, p core.Period) (int, error)
}

// InsightStore is the annotation document store.
type InsightStore interface {
	GetInsights(ctx context.Context) (core.Insights, error)
	GetInsight(ctx context.Context, key string) (core.Insight, error)
	ReplaceInsights(ctx context.Context, doc core.Insights) error
	UpsertInsight(ctx context.Context, key string, in core.Insight) error
}

// EventLister lists processed snapshot notifications.
type EventLister interface {
	RecentSnapshotEvents(ctx context.Context, limit int) ([]storage.SnapshotEvent, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Insights, Events and Ready may
// be nil; their routes then answer 503.
type Deps struct {
	Dashboard DashboardReader
	Insights  InsightStore
	Events    EventLister
	Ready     Pinger
	Logger    *log.Logger
	// WriteLimit caps annotation writes per client and minute.
	WriteLimit int
	// TrustedProxies are CIDRs whose forwarding headers are honoured.
	TrustedProxies []string
}

type appMetrics struct {
	uptime time.Time
}

type Server struct {
	http.Server
	dashboard DashboardReader
	insights  InsightStore
	events    EventLister
	ready     Pinger
	validate  *validator.Validate

	logger           *log.Logger
	structLog        *log.StructuredLogger
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	appMetrics       appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = log.Discard()
	}

	detector := security.NewDetector()
	for _, cidr := range deps.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		dashboard:        deps.Dashboard,
		insights:         deps.Insights,
		events:           deps.Events,
		ready:            deps.Ready,
		validate:         newValidator(),
		logger:           logger.WithComponent(log.ComponentHTTP),
		structLog:        log.NewStructuredLogger(logger),
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.WriteLimit}),
		appMetrics:       appMetrics{uptime: time.Now()},
	}

	limitWrites := s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), w, http.StatusTooManyRequests, "rate limit exceeded")
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/brands", s.handleBrands)
	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	mux.HandleFunc("GET /api/insights", s.handleGetInsights)
	mux.HandleFunc("GET /api/insights/{key}", s.handleGetInsight)
	mux.Handle("PUT /api/insights", limitWrites(http.HandlerFunc(s.handleReplaceInsights)))
	mux.Handle("POST /api/insights", limitWrites(http.HandlerFunc(s.handleReplaceInsights)))
	mux.Handle("PUT /api/insights/{key}", limitWrites(http.HandlerFunc(s.handleUpsertInsight)))

	mux.HandleFunc("GET /api/snapshots/events", s.handleSnapshotEvents)
	mux.Handle("POST /api/snapshots/invalidate", limitWrites(http.HandlerFunc(s.handleInvalidate)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Handler = s.traceMiddleware.Middleware(
		detector.Middleware(
			headers.Middleware(mux)))

	return s
}

// Shutdown stops the rate limiter and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
