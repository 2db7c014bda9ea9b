package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/audit"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/config"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Engine is the subset of *basestation.Engine the API needs.
type Engine interface {
	Snapshot() basestation.Snapshot
	Enqueue(cmd basestation.Command) bool
	HealthCheck(ctx context.Context) error
}

// HealthChecker is implemented by optional dependencies reported on /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Engine   Engine
	Audit    audit.Repository         // optional: /commands and /sightings return 503 without it
	Checks   map[string]HealthChecker // optional: extra components reported on /health
	DB       DBStatsProvider          // optional: pool statistics on /metrics
	MQTT     ConnectionReporter       // optional: broker state on /metrics
	Schedule Scheduler                // optional: power schedules
	Version  string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	engine    Engine
	audit     audit.Repository
	checks    map[string]HealthChecker
	db        DBStatsProvider
	mqtt      ConnectionReporter
	schedules Scheduler
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	limiter   *clientLimiter
	cancel    context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called. The hub is created
// here so the server can be registered as an engine observer before Start.
//
// Parameters:
//   - deps: Required dependencies (config, logger, engine)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		engine:    deps.Engine,
		audit:     deps.Audit,
		checks:    deps.Checks,
		db:        deps.DB,
		mqtt:      deps.MQTT,
		schedules: deps.Schedule,
		version:   deps.Version,
		hub:       NewHub(deps.WS, deps.Logger),
	}
	if deps.Security.RateLimit.Enabled {
		s.limiter = newClientLimiter(deps.Security.RateLimit.RequestsPerMinute, deps.Security.RateLimit.Burst)
	}

	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, the optional snapshot pusher and rate limiter
// cleanup, then launches the HTTP listener in a background goroutine. The
// server can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation of background goroutines
//
// Returns:
//   - error: If the server fails to start
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	s.startTime = time.Now()

	go s.hub.Run(srvCtx)

	if interval := time.Duration(s.wsCfg.SnapshotInterval) * time.Millisecond; interval > 0 {
		go s.pushSnapshots(srvCtx, interval)
	}
	if s.limiter != nil {
		go s.limiter.cleanup(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
//
// Returns:
//   - error: If shutdown encounters an error
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//
// Returns:
//   - error: nil if healthy, error describing the issue otherwise
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Notify implements basestation.Observer. Each notification is broadcast
// on the channel named after its event type, followed by a fresh snapshot.
func (s *Server) Notify(n basestation.Notification) {
	s.hub.Broadcast(string(n.Type), n)
	s.hub.Broadcast(ChannelSnapshot, newStatusResponse(s.engine.Snapshot()))
}

// pushSnapshots broadcasts the snapshot on a fixed interval so clients that
// missed events converge.
func (s *Server) pushSnapshots(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.hub.ClientCount() > 0 {
				s.hub.Broadcast(ChannelSnapshot, newStatusResponse(s.engine.Snapshot()))
			}
		}
	}
}
