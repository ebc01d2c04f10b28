// Package cli provides the initialization shared by cmd/kuberx,
// cmd/kuberx-worker and cmd/kuberx-cli.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"kuberx/internal/analytics"
	"kuberx/internal/config"
	"kuberx/internal/llm"
	"kuberx/internal/log"
	"kuberx/internal/services"
	"kuberx/internal/sheets"
	"kuberx/internal/storage"
)

// SetupLogger builds the process logger and installs it as the slog default.
func SetupLogger(level, component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: component,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitSQLite opens the SQLite repository, running migrations.
func InitSQLite(logger *log.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		return nil, err
	}
	return repo, nil
}

// AnalyticsDefaults turns the configured analytics settings into options.
func AnalyticsDefaults(cfg *config.Config) analytics.Options {
	opts := analytics.DefaultOptions(time.Time{}).
		WithRate(cfg.DefaultInterestRate).
		WithThreshold(cfg.InterestThreshold)
	opts.RecentDays = cfg.RecentDays
	opts.TopN = cfg.TopBorrowers
	return opts
}

// NewLoanService wires the loan service over store with whichever language
// models are configured. Missing API keys leave extraction and the model
// search modes unavailable.
func NewLoanService(ctx context.Context, cfg *config.Config, logger *log.Logger, store sheets.LoanStore) (*services.LoanService, error) {
	opts := []services.Option{}
	fallback := llm.Fallback{}

	gemini, err := llm.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEmbeddingModel)
	switch {
	case err == nil:
		fallback.Primary = gemini
		opts = append(opts, services.WithEmbedder(gemini))
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Info("Gemini not configured; semantic search disabled")
	default:
		return nil, fmt.Errorf("gemini: %w", err)
	}

	groq, err := llm.NewGroq(cfg.GroqAPIKey, cfg.GroqAPIURL, cfg.GroqModel)
	switch {
	case err == nil:
		fallback.Secondary = groq
	case errors.Is(err, llm.ErrNotConfigured):
		logger.Info("Groq not configured")
	default:
		return nil, fmt.Errorf("groq: %w", err)
	}

	if fallback.Primary != nil || fallback.Secondary != nil {
		opts = append(opts, services.WithGenerator(fallback))
	}

	return services.NewLoanService(store, services.LoanServiceConfig{
		SnapshotTTL: cfg.SnapshotTTL,
		Defaults:    AnalyticsDefaults(cfg),
	}, opts...), nil
}

// GracefulShutdown returns a context cancelled on SIGINT or SIGTERM. cleanup
// runs with a context bounded by timeout before the returned context is
// cancelled; done closes once it has finished.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}
		cancel()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup is done.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
