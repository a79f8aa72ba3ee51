package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/headhunt/internal/adapters/http/api"
	"github.com/okian/headhunt/internal/adapters/http/swagger"
	"github.com/okian/headhunt/internal/adapters/notify"
	"github.com/okian/headhunt/internal/adapters/repository"
	app "github.com/okian/headhunt/internal/app"
	"github.com/okian/headhunt/internal/config"
	"github.com/okian/headhunt/internal/domain/badges"
	"github.com/okian/headhunt/internal/domain/reputation"
	"github.com/okian/headhunt/pkg/logger"
	"github.com/okian/headhunt/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// We collect our own system metrics on the custom registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		_, _ = os.Stderr.WriteString("headhunt: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	opts, closers, err := serviceOptions(ctx, cfg, log)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()
	if err != nil {
		return err
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := svc.Stop(stopCtx); err != nil {
			log.Error(stopCtx, "service stop failed", logger.Error(err))
		}
	}()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "server stopped")
	return nil
}

// serviceOptions turns cfg into service options. The returned closers own
// clients the service does not close itself.
func serviceOptions(ctx context.Context, cfg *config.Config, log logger.Logger) ([]app.Option, []io.Closer, error) {
	var closers []io.Closer

	table, err := reputation.TableFromConfig(cfg.Points)
	if err != nil {
		return nil, closers, fmt.Errorf("points table: %w", err)
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithPointsTable(table),
		app.WithStreakWindow(cfg.StreakWindow),
		app.WithStatsMaxRetries(cfg.StatsMaxRetries),
		app.WithLeaderboardCacheTTL(cfg.LeaderboardCacheTTL),
		app.WithQueueSize(cfg.NotifyQueueSize),
		app.WithWorkerCount(cfg.NotifyWorkerCount),
		app.WithDedupeSize(cfg.DedupeSize),
	}

	if cfg.Badges.CatalogPath != "" {
		catalog, err := badges.LoadCatalog(cfg.Badges.CatalogPath)
		if err != nil {
			return nil, closers, fmt.Errorf("badge catalog: %w", err)
		}
		opts = append(opts, app.WithCatalog(catalog))
	}

	if cfg.Store == config.StorePostgres {
		store, err := repository.NewPostgresStore(ctx, cfg.Postgres.DSN,
			repository.WithMaxConns(cfg.Postgres.MaxConns),
			repository.WithMinConns(cfg.Postgres.MinConns),
			repository.WithMigrations(true),
			repository.WithLogger(log.Named("postgres")),
		)
		if err != nil {
			return nil, closers, fmt.Errorf("postgres store: %w", err)
		}
		opts = append(opts, app.WithStore(store))
	}

	sink := notify.Sink(notify.NewLogSink(log.Named("notify")))
	if cfg.Redis.Addr != "" {
		client, err := notify.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, closers, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, client)
		sink = notify.MultiSink{sink, notify.NewRedisSink(client, cfg.Redis.Channel)}
	}
	opts = append(opts, app.WithNotifySink(sink))

	return opts, closers, nil
}

// newRouter registers the docs and API routes.
func newRouter(cfg *config.Config, svc *app.Service) http.Handler {
	r := chi.NewRouter()
	apiServer := api.NewServer(svc, svc,
		api.WithMaxLeaderboardLimit(cfg.MaxLeaderboardLimit),
		api.WithAdminToken(cfg.AdminToken),
		api.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	)
	apiServer.Register(r)
	swagger.Register(r)
	return r
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the store gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics updates service-level metrics. GetStats refreshes the
// store gauges itself.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if pending, ok := stats["pendingNotifications"].(int); ok {
		metrics.UpdateQueueSize(pending)
	}
}
