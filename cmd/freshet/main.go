package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	fhttp "github.com/freshet/freshet/internal/adapter/http"
	fotel "github.com/freshet/freshet/internal/adapter/otel"
	"github.com/freshet/freshet/internal/adapter/ristretto"
	"github.com/freshet/freshet/internal/adapter/ws"
	"github.com/freshet/freshet/internal/config"
	"github.com/freshet/freshet/internal/logger"
	"github.com/freshet/freshet/internal/middleware"
	"github.com/freshet/freshet/internal/service"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags, err := config.ParseFlags(args)
	if err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	cfg, cfgPath, err := config.LoadWithCLI(flags)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"session_grace_period", cfg.Runtime.SessionGracePeriod,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := fotel.Setup(ctx, cfg.Otel, log)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	// --- Infrastructure ---
	l1, err := ristretto.New(cfg.Cache.L1MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer l1.Close()

	fwdCache := service.NewForwardMsgCache(l1, cfg.Cache.MsgThresholdBytes, cfg.Cache.MsgMaxAgeRuns, log)

	// --- App pages ---
	pages := service.NewPageRegistry()
	registerDemoPages(pages)
	log.Info("pages registered", "pages", pages.Names())

	// --- Runtime ---
	runtime := service.NewRuntime(pages, fwdCache, cfg.Runtime.SessionGracePeriod, log)
	if cfg.Otel.Enabled {
		metrics, err := fotel.NewMetrics(func() int64 { return int64(runtime.SessionCount()) })
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		defer func() { _ = metrics.Close() }()
		runtime.SetMetrics(metrics)
	}

	// --- HTTP ---
	wsHandler := ws.NewHandler(runtime, cfg.WebSocket, log)
	handlers := fhttp.NewHandlers(runtime, pages, fwdCache, log)

	r := chi.NewRouter()
	r.Use(fhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(fhttp.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(fhttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Otel.Enabled {
		r.Use(fotel.HTTPMiddleware(cfg.Otel.ServiceName))
	}

	fhttp.MountRoutes(r, handlers, wsHandler)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown, with SIGHUP reloading the config file in place.
	holder := config.NewHolder(cfg, cfgPath)
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		log.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
		}
	}()

	for {
		sig := <-sigs
		if sig != syscall.SIGHUP {
			break
		}
		if err := holder.Reload(); err != nil {
			log.Error("config reload failed", "error", err)
			continue
		}
		log.Info("config reloaded", "path", cfgPath)
	}
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Runtime.CloseTimeout)
	defer cancel()
	return runtime.Close(closeCtx)
}
