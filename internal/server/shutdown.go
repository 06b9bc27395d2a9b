package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// ShutdownHandler runs registered hooks, in priority order, when a
// signal arrives or Shutdown is called.
type ShutdownHandler struct {
	mu           sync.Mutex
	hooks        []ShutdownHook
	timeout      time.Duration
	signals      []os.Signal
	logger       *slog.Logger
	shutdownCh   chan struct{}
	doneCh       chan struct{}
	started      bool
	shutdownOnce sync.Once
}

// ShutdownHook is a function called during shutdown.
type ShutdownHook struct {
	Name     string
	Priority int // Lower priority runs first
	Fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout for all hooks together (default: 30s)
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT)
	Signals []os.Signal
	Logger  *slog.Logger
}

// NewShutdownHandler creates a new shutdown handler.
func NewShutdownHandler(config ShutdownConfig) *ShutdownHandler {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if len(config.Signals) == 0 {
		config.Signals = []os.Signal{syscall.SIGTERM, syscall.SIGINT}
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &ShutdownHandler{
		timeout:    config.Timeout,
		signals:    config.Signals,
		logger:     config.Logger,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// RegisterHook adds a shutdown hook. Hooks with equal priority run in
// registration order.
func (s *ShutdownHandler) RegisterHook(hook ShutdownHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
	sort.SliceStable(s.hooks, func(i, j int) bool {
		return s.hooks[i].Priority < s.hooks[j].Priority
	})
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info("shutdown signal received", "signal", sig.String())
			s.trigger()
		case <-s.shutdownCh:
		}
		signal.Stop(sigCh)
		s.run()
	}()
}

// Shutdown triggers a manual shutdown.
func (s *ShutdownHandler) Shutdown() {
	s.trigger()
}

func (s *ShutdownHandler) trigger() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Wait blocks until every hook has run.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

// ShutdownCh is closed when shutdown starts.
func (s *ShutdownHandler) ShutdownCh() <-chan struct{} {
	return s.shutdownCh
}

func (s *ShutdownHandler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]ShutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook.Fn(ctx); err != nil {
			s.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
		}
	}
	close(s.doneCh)
}

// TemporalWorkerShutdownHook stops the worker after the health server.
func TemporalWorkerShutdownHook(stopFn func()) ShutdownHook {
	return ShutdownHook{
		Name:     "temporal-worker",
		Priority: 20,
		Fn: func(ctx context.Context) error {
			stopFn()
			return nil
		},
	}
}

// TracingShutdownHook flushes spans once the worker has stopped.
func TracingShutdownHook(shutdownFn func(ctx context.Context) error) ShutdownHook {
	return ShutdownHook{
		Name:     "tracing",
		Priority: 80,
		Fn:       shutdownFn,
	}
}

// GracefulServer combines health checks with shutdown handling.
type GracefulServer struct {
	Health   *HealthServer
	Shutdown *ShutdownHandler
}

// NewGracefulServer creates a server with health checks and graceful shutdown.
func NewGracefulServer(version string, cfg ShutdownConfig) *GracefulServer {
	health := NewHealthServer(version)
	shutdown := NewShutdownHandler(cfg)

	shutdown.RegisterHook(ShutdownHook{Name: "health-server", Priority: 5, Fn: func(ctx context.Context) error {
		health.SetReady(false)
		return health.Shutdown(ctx)
	}})

	return &GracefulServer{Health: health, Shutdown: shutdown}
}

// Start serves the health endpoints on addr and begins listening for
// shutdown signals.
func (g *GracefulServer) Start(addr string) {
	g.Shutdown.Start()
	go func() {
		if err := g.Health.ListenAndServe(addr); err != nil {
			g.Shutdown.logger.Error("health server stopped", "addr", addr, "error", err)
			g.Shutdown.Shutdown()
		}
	}()
	g.Health.SetReady(true)
}

// Wait waits for shutdown to complete.
func (g *GracefulServer) Wait() {
	g.Shutdown.Wait()
}

// RegisterHook adds a shutdown hook.
func (g *GracefulServer) RegisterHook(hook ShutdownHook) {
	g.Shutdown.RegisterHook(hook)
}
