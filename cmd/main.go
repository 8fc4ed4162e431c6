package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/attackmap/internal/adapters/audio"
	"github.com/okian/attackmap/internal/adapters/http/api"
	"github.com/okian/attackmap/internal/adapters/http/swagger"
	"github.com/okian/attackmap/internal/animation/scheduler"
	app "github.com/okian/attackmap/internal/app"
	"github.com/okian/attackmap/internal/config"
	"github.com/okian/attackmap/pkg/logger"
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
	// Initialize logging
	if err := logger.Init(); err != nil {
		// Use fmt for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	svc := app.New(append(app.OptionsFromConfig(cfg, newPlayer(ctx, cfg, loggerInstance), loggerInstance),
		app.WithSystemMetrics(true),
	)...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start service: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	srv := newHTTPServer(cfg, svc)

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "server stopped")
}

// newPlayer returns an audio player with the configured cues decoded, or nil
// when no sound cue is configured. A cue that fails to load is only logged.
func newPlayer(ctx context.Context, cfg *config.Config, l logger.Logger) scheduler.Player {
	if cfg.ShotSFX == "" && cfg.ImpactSFX == "" {
		return nil
	}
	p := audio.NewPlayer(audio.WithLogger(l.Named("audio")))
	if err := p.Preload(ctx, cfg.ShotSFX, cfg.ImpactSFX); err != nil {
		l.Warn(ctx, "sound cue unavailable", logger.Error(err))
	}
	return p
}

// newHTTPServer registers the API routes for svc on a fresh mux.
func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	// Register Swagger UI under /api-docs
	swagger.Register(context.Background(), mux)

	api.NewServer(svc, svc, cfg.RateLimitPerMin).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
