// Command attackmap-tui runs the attack map and draws it in the terminal.
// The HTTP API stays available for ingest; logs go to a file so they do
// not tear the screen.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/okian/attackmap/internal/adapters/audio"
	"github.com/okian/attackmap/internal/adapters/http/api"
	"github.com/okian/attackmap/internal/adapters/render/terminal"
	"github.com/okian/attackmap/internal/animation/scheduler"
	app "github.com/okian/attackmap/internal/app"
	"github.com/okian/attackmap/internal/config"
	"github.com/okian/attackmap/pkg/logger"
)

const (
	logFilePermission = 0600
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	var (
		logFile = flag.String("log", filepath.Join(os.TempDir(), "attackmap-tui.log"), "Log file")
		noHTTP  = flag.Bool("no-http", false, "Do not serve the HTTP API")
	)
	flag.Parse()

	if err := run(*logFile, !*noHTTP); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func run(logFile string, serveHTTP bool) error {
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := logger.InitWithWriter(f); err != nil {
		return err
	}
	l := logger.Get()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var player scheduler.Player
	if cfg.ShotSFX != "" || cfg.ImpactSFX != "" {
		p := audio.NewPlayer(audio.WithLogger(l.Named("audio")))
		if err := p.Preload(ctx, cfg.ShotSFX, cfg.ImpactSFX); err != nil {
			l.Warn(ctx, "sound cue unavailable", logger.Error(err))
		}
		player = p
	}
	svc := app.New(app.OptionsFromConfig(cfg, player, l)...)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	if serveHTTP {
		mux := http.NewServeMux()
		api.NewServer(svc, svc, cfg.RateLimitPerMin).Register(mux)
		srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Error(ctx, "HTTP server failed", logger.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	err = terminal.Run(ctx, screen, svc.Frame, cfg.FrameFPS)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
