package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/hantei/internal/adapters/http/api"
	"github.com/okian/hantei/internal/adapters/http/swagger"
	"github.com/okian/hantei/internal/adapters/licensing"
	"github.com/okian/hantei/internal/adapters/ws"
	service "github.com/okian/hantei/internal/app"
	"github.com/okian/hantei/internal/config"
	"github.com/okian/hantei/pkg/logger"
	"github.com/okian/hantei/pkg/metrics"

	"golang.org/x/sync/errgroup"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.InitWithFormat(cfg.LogFormat); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metrics.SetEnabled(cfg.MetricsEnabled)

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "relay stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info(ctx, "relay stopped")
}

// run serves until ctx is cancelled, then shuts the HTTP server and the
// relay down.
func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	svc, handler := build(ctx, cfg, log)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if err := svc.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("ws_path", cfg.WSPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		startSystemMetricsUpdater(gctx, metrics.RefreshInterval())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.WithoutCancel(gctx), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		// Hijacked websocket connections are not tracked by Shutdown; Stop
		// closes every session so their handlers return.
		svc.Stop()
		if err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
			return err
		}
		return nil
	})

	return g.Wait()
}

// build wires the licence gate, the relay service and the HTTP routes.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, http.Handler) {
	gate := licensing.NewGate(
		newResolver(cfg),
		licensing.Plan{Name: config.PlanFree, MaxReferees: cfg.Plans[config.PlanFree]},
		licensing.WithAdminKey(cfg.AdminLicenseKey),
		licensing.WithTimeout(cfg.LicensingTimeout()),
		licensing.WithLogger(log.Named("licensing")),
	)

	svc := service.New(
		service.WithLogger(log.Named("relay")),
		service.WithPlans(gate),
		service.WithWindow(cfg.Window()),
		service.WithCooldown(cfg.Cooldown()),
		service.WithHeartbeatInterval(cfg.HeartbeatInterval()),
		service.WithSweepInterval(cfg.SweepInterval()),
	)

	wsHandler := ws.NewHandler(svc,
		ws.WithLogger(log.Named("ws")),
		ws.WithReadLimit(cfg.ReadLimitBytes),
		ws.WithWriteTimeout(cfg.WriteTimeout()),
		ws.WithOutboxSize(cfg.OutboxSize),
		ws.WithRateLimit(cfg.MessageRate, cfg.MessageBurst),
	)

	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, wsHandler).Register(ctx, mux, cfg.WSPath)
	return svc, mux
}

// newResolver picks the external licensing service when configured and the
// static licence table otherwise.
func newResolver(cfg *config.Config) licensing.Resolver {
	if cfg.LicensingURL != "" {
		return licensing.NewHTTPResolver(cfg.LicensingURL, &http.Client{Timeout: cfg.LicensingTimeout()})
	}
	licenses := make(map[string]string, len(cfg.Licenses))
	for key, lic := range cfg.Licenses {
		licenses[key] = lic.Plan
	}
	return licensing.NewStaticResolver(cfg.Plans, licenses, cfg.LicensingLatency())
}

// startSystemMetricsUpdater refreshes process gauges every interval until
// ctx is done.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	updateSystemMetrics()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
