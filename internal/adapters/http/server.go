// Package http provides the HTTP server and handlers.
package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/dogwifhat6/supplychain-lens/internal/application"
	"github.com/dogwifhat6/supplychain-lens/internal/config"
	"github.com/dogwifhat6/supplychain-lens/internal/ports/input"
)

// ReferenceSyncer triggers rate-limited reference reloads.
type ReferenceSyncer interface {
	TriggerSync(ctx context.Context) (application.SyncResult, error)
}

// Services are the application ports served over HTTP. Sync may be nil, in
// which case the sync endpoint is not registered.
type Services struct {
	Processor input.ImageProcessor
	Assessor  input.RiskAssessor
	Analytics input.Analytics
	Spatial   input.GeospatialAnalyzer
	Models    input.ModelCatalog
	Tasks     input.TaskTracker
	Reference input.ReferenceManager
	Sync      ReferenceSyncer
	Health    input.HealthChecker
}

// Options tune optional server features.
type Options struct {
	Version string

	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string

	// MetricsMiddleware records per-route request metrics when set.
	MetricsMiddleware mux.MiddlewareFunc

	// Tracing wraps the router with OpenTelemetry server spans.
	Tracing bool

	TLSConfig *tls.Config
}

// Server wraps the HTTP server with application handlers.
type Server struct {
	server   *http.Server
	router   *mux.Router
	handler  http.Handler
	services Services
	opts     Options
	config   config.ServerConfig
	logger   *slog.Logger

	validate *validator.Validate
	decoder  *schema.Decoder
	limiter  *rate.Limiter
}

// NewServer creates a new HTTP server.
func NewServer(cfg config.ServerConfig, services Services, opts Options, logger *slog.Logger) *Server {
	s := &Server{
		services: services,
		opts:     opts,
		config:   cfg,
		logger:   logger,
		validate: newValidator(),
		decoder:  newQueryDecoder(),
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.Rate > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.Rate), burst)
	}

	s.router = s.setupRoutes()
	s.handler = s.router
	if opts.Tracing {
		s.handler = otelhttp.NewHandler(s.router, "lens.http",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + routePath(r)
			}),
		)
	}

	s.server = &http.Server{
		Addr:         cfg.Address(),
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		TLSConfig:    opts.TLSConfig,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)

	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	if s.opts.MetricsMiddleware != nil {
		r.Use(s.opts.MetricsMiddleware)
	}
	if s.config.CORS.Enabled() {
		r.Use(s.corsMiddleware)
	}
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}

	// Health endpoints
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/health/live", s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", s.handleReadiness).Methods(http.MethodGet)

	// Processing
	r.HandleFunc("/process/satellite-image", s.handleProcessImage).Methods(s.postMethods()...)
	r.HandleFunc("/process/batch", s.handleProcessBatch).Methods(s.postMethods()...)
	r.HandleFunc("/assess/risk", s.handleAssessRisk).Methods(s.postMethods()...)
	r.HandleFunc("/analyze/location", s.handleAnalyzeLocation).Methods(s.postMethods()...)

	// Read side
	r.HandleFunc("/detections/{supplier_id}", s.handleDetections).Methods(http.MethodGet)
	r.HandleFunc("/analytics/trends", s.handleTrends).Methods(http.MethodGet)
	r.HandleFunc("/analytics/risk-map", s.handleRiskMap).Methods(http.MethodGet)
	r.HandleFunc("/analytics/distance", s.handleDistance).Methods(http.MethodGet)
	r.HandleFunc("/models/info", s.handleModelsInfo).Methods(http.MethodGet)
	r.HandleFunc("/persistence/tasks/{task_id}", s.handleTaskStatus).Methods(http.MethodGet)

	// Reference dataset
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/reference", s.handleReferenceInfo).Methods(http.MethodGet)
	if s.services.Sync != nil {
		api.HandleFunc("/reference/sync", s.handleReferenceSync).Methods(s.postMethods()...)
	}

	// OpenAPI spec and Swagger UI
	r.HandleFunc("/openapi.json", s.handleOpenAPI).Methods(http.MethodGet)
	r.HandleFunc("/docs", s.handleSwaggerUI).Methods(http.MethodGet)

	if s.opts.MetricsHandler != nil {
		path := s.opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, s.opts.MetricsHandler).Methods(http.MethodGet)
	}

	return r
}

// postMethods adds OPTIONS to write routes when CORS preflights are served.
func (s *Server) postMethods() []string {
	if s.config.CORS.Enabled() {
		return []string{http.MethodPost, http.MethodOptions}
	}
	return []string{http.MethodPost}
}

// Router returns the mux router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until Shutdown is called, using TLS when configured.
func (s *Server) Start() error {
	var err error
	if s.server.TLSConfig != nil {
		s.logger.Info("starting HTTPS server", "address", s.server.Addr)
		err = s.server.ListenAndServeTLS("", "")
	} else {
		s.logger.Info("starting HTTP server", "address", s.server.Addr)
		err = s.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func routePath(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return r.URL.Path
}
