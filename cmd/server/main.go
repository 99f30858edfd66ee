// Package main starts the parts-work session HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/partswork/engine/internal/config"
	"github.com/partswork/engine/internal/dialogue"
	"github.com/partswork/engine/internal/dialogue/gemini"
	"github.com/partswork/engine/internal/server"
	"github.com/partswork/engine/internal/session"
	"github.com/partswork/engine/internal/storage"
	"github.com/partswork/engine/internal/storage/sqlite"
)

func main() {
	log.SetPrefix("[ENGINE] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ParseEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	var store storage.SessionStore
	if cfg.DBPath != "" {
		sqliteStore, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		store = sqliteStore
		log.Printf("journal: sqlite at %s", cfg.DBPath)
	} else {
		log.Printf("journal: in-memory only")
	}

	var opts []session.Option
	if cfg.GeminiAPIKey != "" {
		provider, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		opts = append(opts, session.WithProvider(provider))
		log.Printf("dialogue provider: %s", provider.Name())
	} else {
		opts = append(opts, session.WithProvider(dialogue.Scripted{}))
		log.Printf("dialogue provider: scripted")
	}

	manager := session.NewManager(store, opts...)
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: server.New(manager, store, log.Default(), cfg.CORSOrigins).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	log.Printf("shutting down")
	return srv.Shutdown(shutdownCtx)
}
