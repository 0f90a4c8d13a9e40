package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/vncsmyrnk/livepoll/internal/adapters/handler/http"
	"github.com/vncsmyrnk/livepoll/internal/adapters/session"
	"github.com/vncsmyrnk/livepoll/internal/config"
	"github.com/vncsmyrnk/livepoll/internal/core/services"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		slog.Error("failed to parse configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, err := services.NewTallyStore(cfg.PollOptions())
	if err != nil {
		return err
	}
	registry := services.NewConnectionRegistry()
	dispatcher := services.NewBroadcastDispatcher(store, registry, logger)
	voteService := services.NewVoteService(store, dispatcher, logger)

	sessions, err := session.NewResolver(session.Config{
		Secret:     []byte(cfg.SessionSecret),
		CookieName: cfg.SessionCookie,
		TTL:        cfg.SessionTTL,
		Secure:     cfg.CookieSecure,
	})
	if err != nil {
		return err
	}

	wsHandler := http.NewWSHandler(dispatcher, registry, voteService, sessions, http.WSConfig{
		WriteTimeout:       cfg.WriteTimeout,
		SendBuffer:         cfg.SendBuffer,
		MaxMessageBytes:    cfg.MaxMessageBytes,
		MaxFramesPerSecond: cfg.MaxFramesPerSecond,
		AllowedOrigins:     cfg.AllowedOrigins,
	}, logger)

	handler := http.NewHandler(http.Routes{
		Poll:     http.NewPollHandler(store, sessions),
		Vote:     http.NewVoteHandler(voteService, sessions),
		WS:       wsHandler,
		Static:   http.NewStaticHandler(cfg.StaticDir),
		Sessions: sessions.Middleware,
	})
	server := &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "addr", cfg.HTTPAddr, "options", cfg.Options)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Hijacked WebSocket connections are not tracked by Shutdown.
		closed := registry.CloseAll()
		logger.Info("closed live connections", "count", closed)
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
