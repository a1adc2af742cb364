package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/krshsl/interviewcoach/backend/metrics"
	ws "github.com/krshsl/interviewcoach/backend/websocket"
	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

// ServerDeps are the collaborators built by main. Only Store is required.
type ServerDeps struct {
	Store    Store
	Model    LanguageModel
	Tracker  ActivityTracker
	Cache    CatalogCache
	Mailer   Mailer
	Clock    clockwork.Clock
	Registry *prometheus.Registry
}

// Server holds all server dependencies
type Server struct {
	config   *Config
	store    Store
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	model    *GuardedModel
	hub      *ws.Hub
	sweeper  *IdleSweeper
	sessions *SessionService
	router   chi.Router
}

// NewServer wires every service and endpoint
func NewServer(config *Config, deps ServerDeps) *Server {
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Registry == nil {
		deps.Registry = metrics.NewRegistry()
	}
	if deps.Tracker == nil {
		deps.Tracker = NewMemoryActivityTracker()
	}
	if deps.Cache == nil {
		deps.Cache = NoopCatalogCache{}
	}
	m := metrics.New(deps.Registry)
	if deps.Mailer == nil {
		deps.Mailer = NewMailer(config.SMTP, m)
	}

	var model *GuardedModel
	if deps.Model != nil {
		model = NewGuardedModel(deps.Model, m)
	}

	hub := ws.NewHub()
	sessions := NewSessionService(deps.Store, SessionServiceOptions{
		Interviewer:   NewInterviewer(model),
		Evaluator:     NewEvaluator(model),
		Tracker:       deps.Tracker,
		Clock:         deps.Clock,
		Metrics:       m,
		Broadcaster:   hub,
		QuestionCount: config.Interview.QuestionCount,
	})

	s := &Server{
		config:   config,
		store:    deps.Store,
		registry: deps.Registry,
		metrics:  m,
		model:    model,
		hub:      hub,
		sessions: sessions,
		sweeper: NewIdleSweeper(deps.Tracker, sessions, deps.Clock, m,
			config.Interview.IdleTimeout, config.Interview.SweepInterval),
	}
	s.router = s.setupRoutes(deps)
	return s
}

// Sessions exposes the session service for startup tasks
func (s *Server) Sessions() *SessionService {
	return s.sessions
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(deps ServerDeps) chi.Router {
	auth := NewAuthService(deps.Store, AuthOptions{
		JWTSecret:     s.config.JWT.Secret,
		SecureCookies: s.config.IsProduction(),
		BaseURL:       s.config.App.BaseURL,
		Mailer:        deps.Mailer,
		Clock:         deps.Clock,
	})
	limiter := NewIPRateLimiter(s.config.RateLimit.RPS, s.config.RateLimit.Burst, deps.Clock)

	authEndpoints := NewAuthEndpoints(auth, limiter)
	profileEndpoints := NewProfileEndpoints(deps.Store)
	topicEndpoints := NewTopicEndpoints(deps.Store)
	catalogEndpoints := NewCatalogEndpoints(deps.Store, deps.Store, deps.Cache)
	agentEndpoints := NewAgentEndpoints(deps.Store)
	sessionEndpoints := NewSessionEndpoints(s.sessions)
	noteEndpoints := NewNoteEndpoints(deps.Store, s.sessions)
	reportEndpoints := NewReportEndpoints(s.sessions, deps.Mailer)
	resumeEndpoints := NewResumeEndpoints(deps.Store, NewResumeAnalyzer(s.model, s.metrics))
	groupEndpoints := NewGroupEndpoints(deps.Store)
	dashboardEndpoints := NewDashboardEndpoints(deps.Store)
	websocketHandler := NewWebSocketHandler(s.sessions, s.hub, s.config.WebSocket.AllowedOrigins)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if s.config.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.HTTP.Middleware)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler(s.registry))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		authEndpoints.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			profileEndpoints.RegisterRoutes(r)
			topicEndpoints.RegisterRoutes(r)
			catalogEndpoints.RegisterRoutes(r)
			agentEndpoints.RegisterRoutes(r)
			sessionEndpoints.RegisterRoutes(r,
				noteEndpoints.RegisterSessionRoutes,
				reportEndpoints.RegisterSessionRoutes,
				websocketHandler.RegisterSessionRoutes,
			)
			noteEndpoints.RegisterRoutes(r)
			resumeEndpoints.RegisterRoutes(r)
			groupEndpoints.RegisterRoutes(r)
			dashboardEndpoints.RegisterRoutes(r)
		})
	})

	return r
}

// Run serves HTTP with the hub and idle sweeper until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	bgCtx, stop := context.WithCancel(ctx)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.hub.Run(bgCtx)
	}()
	go func() {
		defer wg.Done()
		s.sweeper.Run(bgCtx)
	}()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting server", "port", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	slog.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	stop()
	wg.Wait()
	slog.Info("Server exited")
	return serveErr
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "up"
	code := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		dbStatus = "down"
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	modelStatus := "not configured"
	if s.model != nil {
		modelStatus = s.model.State().String()
	}

	writeJSON(w, code, map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"model":    modelStatus,
	})
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "API v1",
		"version": "1.0.0",
	})
}
