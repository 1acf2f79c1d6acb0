// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/starford/learnlog/internal/api"
	"github.com/starford/learnlog/internal/linker"
	"github.com/starford/learnlog/internal/mcpserver"
	"github.com/starford/learnlog/internal/noteservice"
	"github.com/starford/learnlog/internal/queue"
	"github.com/starford/learnlog/internal/sse"
	"github.com/starford/learnlog/internal/store"
	"github.com/starford/learnlog/internal/tracker"
)

// components are the wired runtime pieces shared by every command.
type components struct {
	logger   *slog.Logger
	db       *store.DB
	redis    *redis.Client
	queue    queue.Queue
	resolver *linker.Resolver
	svc      *noteservice.Service
	tracker  *tracker.Service
	broker   *sse.Broker
}

// newApplication applies opts and installs the JSON logger as default.
func newApplication(opts []Option) (*application, *slog.Logger, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, nil, fmt.Errorf("config is required")
	}

	logger := slog.New(slog.NewJSONHandler(app.logOutput, &slog.HandlerOptions{
		Level: app.config.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return app, logger, nil
}

// build opens the store and wires the resolver, note and tracker services. With
// background set, saves go through the configured queue and an SSE broker
// is created; otherwise links resolve inline.
func build(cfg *Config, logger *slog.Logger, background bool) (*components, error) {
	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	c := &components{logger: logger, db: db}

	c.resolver = linker.New(db,
		linker.WithPolicy(linker.Policy{Dedupe: cfg.Resolver.Dedupe, Prune: cfg.Resolver.Prune}),
		linker.WithConcurrency(cfg.Resolver.Concurrency),
		linker.WithLogger(logger),
	)

	svcOpts := []noteservice.Option{noteservice.WithLogger(logger)}
	if background {
		if err := c.openQueue(cfg.Queue); err != nil {
			c.Close()
			return nil, err
		}
		c.broker = sse.NewBroker(cfg.Events.GraphThrottle, logger)
		svcOpts = append(svcOpts, noteservice.WithQueue(c.queue), noteservice.WithPublisher(c.broker))
	}
	c.svc = noteservice.NewService(db, c.resolver, svcOpts...)
	c.tracker = tracker.NewService(db, tracker.WithLogger(logger))
	return c, nil
}

func (c *components) openQueue(cfg QueueConfig) error {
	switch cfg.Backend {
	case QueueBackendRedis:
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		c.redis = redis.NewClient(redisOpts)
		q, err := queue.NewRedis(c.redis, cfg.Redis.Key)
		if err != nil {
			return fmt.Errorf("init redis queue: %w", err)
		}
		c.queue = q
	default:
		c.queue = queue.NewMemory(cfg.Size)
	}
	c.logger.Info("Resolution queue ready", slog.String("backend", cfg.Backend))
	return nil
}

// ready reports whether the store and, if used, Redis are reachable.
func (c *components) ready(ctx context.Context) error {
	if err := c.db.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases everything build opened.
func (c *components) Close() {
	if c.broker != nil {
		c.broker.Close()
	}
	if c.queue != nil {
		_ = c.queue.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	if err := c.db.Close(); err != nil {
		c.logger.Warn("close store failed", slog.String("error", err.Error()))
	}
}

// Run starts the HTTP server and the background resolution workers.
func Run(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("queue_backend", cfg.Queue.Backend),
		slog.Int("resolver_workers", cfg.Resolver.Workers),
		slog.Bool("resolver_dedupe", cfg.Resolver.Dedupe),
		slog.Bool("resolver_prune", cfg.Resolver.Prune),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(cfg, logger, true)
	if err != nil {
		return err
	}
	defer c.Close()

	worker := linker.NewWorker(c.resolver, c.queue, linker.WorkerConfig{
		Workers:    cfg.Resolver.Workers,
		Timeout:    cfg.Resolver.Timeout,
		OnResolved: c.svc.NotifyResolved,
	}, logger)

	apiRouter := api.NewRouter(c.svc, c.tracker, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if err := c.ready(req.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return worker.Run(gCtx)
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		cancel()

		logger.Info("Shutting down server...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdio. Links resolve inline so a created
// note is linked before the tool call returns.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, logger, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}

	c, err := build(app.config, logger, false)
	if err != nil {
		return err
	}
	defer c.Close()

	logger.Info("Starting MCP server on stdio", slog.String("sqlite_path", app.config.SQLite.Path))
	return mcpserver.New(c.svc, app.version, mcpserver.WithTracker(c.tracker)).Listen(ctx, os.Stdin, os.Stdout)
}

// Relink re-resolves the links of every stored note.
func Relink(ctx context.Context, opts ...Option) (*noteservice.RelinkSummary, error) {
	app, logger, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return nil, err
	}

	c, err := build(app.config, logger, false)
	if err != nil {
		return nil, err
	}
	defer c.Close()

	return c.svc.Relink(ctx)
}

func writeStatus(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%q}`, msg)
}
