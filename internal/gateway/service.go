package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carelink/portal-gateway/internal/audit"
	"github.com/carelink/portal-gateway/internal/relay"
	"github.com/carelink/portal-gateway/internal/routing"
	"github.com/carelink/portal-gateway/pkg/config"
	"github.com/carelink/portal-gateway/pkg/database"
	"github.com/carelink/portal-gateway/pkg/logger"
)

// Service is the portal gateway HTTP service. It fronts the rendered
// portal pages with the redirect decision engine and exposes the API
// forwarding surface under /api.
type Service struct {
	cfg           *config.Config
	logger        *logger.Logger
	router        *mux.Router
	server        *http.Server
	engine        *routing.Engine
	uploads       *relay.Relay
	limiter       *RateLimiter
	audit         *audit.Store
	db            *database.DB
	apiClient     *http.Client
	upstream      *url.URL
	frontend      *httputil.ReverseProxy
	sentryEnabled bool
	startTime     time.Time
}

// NewService creates a new portal gateway service
func NewService(
	cfg *config.Config,
	log *logger.Logger,
	engine *routing.Engine,
	uploads *relay.Relay,
	auditStore *audit.Store,
	db *database.DB,
	limiter *RateLimiter,
	sentryEnabled bool,
) (*Service, error) {
	upstream, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base URL: %w", err)
	}

	frontend, err := url.Parse(cfg.Frontend.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid frontend base URL: %w", err)
	}

	service := &Service{
		cfg:           cfg,
		logger:        log,
		router:        mux.NewRouter(),
		engine:        engine,
		uploads:       uploads,
		limiter:       limiter,
		audit:         auditStore,
		db:            db,
		upstream:      upstream,
		frontend:      httputil.NewSingleHostReverseProxy(frontend),
		sentryEnabled: sentryEnabled,
		startTime:     time.Now(),
		apiClient: &http.Client{
			Timeout: time.Duration(cfg.Upstream.ProfileTimeout) * time.Second,
		},
	}

	service.frontend.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.WithComponent("frontend").WithError(err).Error("Frontend proxy failed")
		service.writeErrorResponse(w, http.StatusBadGateway, "frontend unavailable")
	}

	service.setupMiddleware()
	service.setupRoutes()

	// Read and write deadlines must outlast the upload body window, or the
	// server would sever a streaming upload mid-flight. Slow-client
	// protection comes from the header timeout instead.
	service.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           service.router,
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Upstream.BodyTimeout+60) * time.Second,
		IdleTimeout:       time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	return service, nil
}

// setupMiddleware configures the global middleware chain
func (s *Service) setupMiddleware() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.corsMiddleware)
}

// setupRoutes configures all HTTP routes
func (s *Service) setupRoutes() {
	// Operational endpoints
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// Session lifecycle
	s.router.HandleFunc("/auth/session", s.handleCreateSession).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)

	// API forwarding surface. Every route requires a live session token.
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.apiAuthMiddleware)
	if s.cfg.RateLimit.Enabled {
		api.Use(s.rateLimitMiddleware)
	}

	api.HandleFunc("/profile/get-profile", s.passthrough("/api/v1/profile/get-profile")).Methods(http.MethodGet)
	api.HandleFunc("/profile/get-all-profile", s.passthrough("/api/v1/profile/get-all-profile")).Methods(http.MethodGet)
	api.HandleFunc("/profile/create-profile", s.handleCreateProfile).Methods(http.MethodPost)
	api.HandleFunc("/profile/update-profile", s.handleUpdateProfile).Methods(http.MethodPut)

	api.HandleFunc("/report/get-all-reports", s.handleGetAllReports).Methods(http.MethodGet)
	api.HandleFunc("/report/update-profile-id", s.passthrough("/api/v1/report/update-profile-id")).Methods(http.MethodPut)
	api.HandleFunc("/report/upload", s.handleReportUpload).Methods(http.MethodPost)

	// API paths never fall through to the frontend proxy
	api.PathPrefix("/").HandlerFunc(s.handleMethodNotAllowed)

	// Everything else is a page navigation: gate it, then hand it to the
	// frontend origin
	s.router.PathPrefix("/").Handler(s.gateMiddleware(s.frontend))
}

// upstreamURL joins an upstream path with query parameters
func (s *Service) upstreamURL(path string, query url.Values) string {
	target := *s.upstream
	target.Path = path
	target.RawQuery = query.Encode()
	return target.String()
}

// Start starts the HTTP server
func (s *Service) Start() error {
	s.logger.WithFields(map[string]interface{}{
		"address":  s.server.Addr,
		"upstream": s.cfg.Upstream.BaseURL,
		"frontend": s.cfg.Frontend.BaseURL,
	}).Info("Starting portal gateway")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP server
func (s *Service) Stop() error {
	s.logger.Info("Stopping portal gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("Portal gateway stopped")
	return nil
}
