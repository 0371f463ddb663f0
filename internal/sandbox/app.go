package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/intentscout/scoutctl/internal/config"
	"github.com/intentscout/scoutctl/internal/logging"
	"github.com/intentscout/scoutctl/internal/telemetry"
)

// App runs the sandbox until SIGINT or SIGTERM.
func App(ctx context.Context, cfg *config.SandboxConfig) error {
	logger := logging.New(os.Stderr, cfg.Log)

	var store Store
	if cfg.DatabaseURL != "" {
		dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pg, err := NewPostgresStore(dbCtx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		store = pg
		log.Println("Storing jobs in PostgreSQL")
	} else {
		store = NewMemoryStore()
		log.Println("Storing jobs in memory")
	}
	defer store.Close()

	log.Printf("Starting scout-sandbox %s", cfg.Version)

	shutdownTelemetry, metrics, err := telemetry.InitMetrics(cfg.Version)
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %v", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			log.Printf("Failed to shutdown telemetry: %v", err)
		}
	}()

	jobsCtx, stopJobs := context.WithCancel(ctx)
	defer stopJobs()
	manager := NewManager(store, cfg, WithManagerLogger(logger))
	go manager.CleanupLoop(jobsCtx)

	tokens := NewTokenManager(cfg, nil)
	log.Printf("Sign in with refresh token %q (user %s, access tokens live %s)",
		cfg.DevRefreshToken, cfg.DevUserEmail, cfg.TokenTTL)

	server := NewServer(Deps{
		Config:  cfg,
		Jobs:    manager,
		Tokens:  tokens,
		Metrics: metrics,
		Logger:  logger,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	log.Println("Shutting down server...")

	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := server.Shutdown(sctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting")
	return nil
}
