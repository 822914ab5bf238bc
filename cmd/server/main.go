// Package main is the entry point for the pychat relay server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/chaos-ds/pychat/internal/config"
	"github.com/chaos-ds/pychat/internal/logging"
	"github.com/chaos-ds/pychat/internal/server"
	"github.com/chaos-ds/pychat/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server terminated", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open message store: %w", err)
	}
	defer store.CloseDB(db)

	st := store.New(db, logger)
	hub := server.NewHub(st, logger)
	handler := server.NewHandler(hub, cfg, logger)
	srv := server.NewHTTPServer(cfg.ServerAddr, handler.Routes())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go hub.Run()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server listening", "addr", cfg.ServerAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}

		if err := hub.Shutdown(cfg.ShutdownTimeout); err != nil {
			logger.Error("Hub shutdown incomplete", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}
