package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/harun/deepagent/internal/observability"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	maxBodyBytes           = 64 << 10
)

// Server is the HTTP and WebSocket front door of the agent
type Server struct {
	cfg        Config
	runner     SessionRunner
	router     chi.Router
	server     *http.Server
	listener   net.Listener
	limiter    *RateLimiter
	upgrader   websocket.Upgrader
	logger     zerolog.Logger
	startTime  time.Time
	streams    map[*streamClient]struct{}
	streamsMu  sync.Mutex
	shutdownMu sync.RWMutex
	inFlight   sync.WaitGroup

	isShuttingDown bool
}

// Config holds server configuration
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// RateLimit is requests per second per client IP; 0 disables limiting
	RateLimit      float64
	RateBurst      int
	AllowedOrigins []string
	Runner         SessionRunner
	Logger         zerolog.Logger
}

// NewServer creates a new gateway server
func NewServer(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("session runner is required")
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	observability.EnsureRegistered()

	s := &Server{
		cfg:       cfg,
		runner:    cfg.Runner,
		logger:    cfg.Logger.With().Str("component", "gateway").Logger(),
		startTime: time.Now(),
		streams:   make(map[*streamClient]struct{}),
	}
	if cfg.RateLimit > 0 {
		s.limiter = NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()

	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logger(s.logger))
	r.Use(Recovery(s.logger))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", observability.MetricsHandler())

	r.Route("/api/agent", func(r chi.Router) {
		r.Use(s.trackInFlight)
		r.Use(RateLimit(s.limiter, s.logger))

		r.Post("/execute", s.handleExecute)
		r.Post("/trace", s.handleTrace)
		r.Get("/stream", s.handleStream)
	})

	return r
}

// Handler returns the routed handler, useful for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start binds the listener and serves in the background
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprint(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting gateway server")

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Gateway server error")
		}
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop refuses new work, waits for in-flight sessions and shuts the listener down
func (s *Server) Stop() error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return nil
	}
	s.isShuttingDown = true
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down gateway server")
	s.closeIdleStreams()

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-time.After(s.cfg.ShutdownTimeout):
		s.logger.Warn().Dur("timeout", s.cfg.ShutdownTimeout).Msg("Shutdown timeout reached, forcing close")
	}

	if s.limiter != nil {
		s.limiter.Stop()
	}

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown gateway server: %w", err)
	}

	s.logger.Info().Msg("Gateway server stopped")
	return nil
}

func (s *Server) shuttingDown() bool {
	s.shutdownMu.RLock()
	defer s.shutdownMu.RUnlock()
	return s.isShuttingDown
}

// trackInFlight rejects work during shutdown and counts the rest
func (s *Server) trackInFlight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			writeError(w, r, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		s.inFlight.Add(1)
		s.shutdownMu.RUnlock()

		defer s.inFlight.Done()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
