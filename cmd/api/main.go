package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/app"
	"github.com/aman-zulfiqar/private-swap/internal/config"
	"github.com/aman-zulfiqar/private-swap/internal/server"
)

// main runs the HTTP API for the configured wallet until SIGINT/SIGTERM.
func main() {
	logger := app.NewLogger()

	// load .env BEFORE anything reads os.Getenv
	app.LoadEnv(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if cfg.DevMode {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to start services")
	}
	defer a.Close()

	go a.WatchPool(ctx)

	h := &server.Handlers{
		Session:    a.Session,
		Pool:       a.Pool,
		Engine:     a.Engine,
		Router:     a.Router,
		Compliance: a.Compliance,
		TxTimeout:  cfg.TxTimeout,
		DevMode:    cfg.DevMode,
		Logger:     logger,
	}
	// a nil journal must stay a nil interface
	if a.Journal != nil {
		h.Events = a.Journal
	}

	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:     cfg.APIAddr,
			DevMode:  cfg.DevMode,
			APIKey:   cfg.APIKey,
			TxPerSec: cfg.APITxRate,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		_ = srv.Shutdown(context.Background())
	}()

	logger.WithField("addr", cfg.APIAddr).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("shutdown incomplete")
	}
}
