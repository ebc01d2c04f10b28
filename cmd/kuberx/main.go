package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"kuberx/internal/auth"
	"kuberx/internal/backend"
	"kuberx/internal/cache"
	"kuberx/internal/cli"
	apphttp "kuberx/internal/http"
	"kuberx/internal/log"
	"kuberx/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.SetupLogger("info", log.ComponentApp).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentApp)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger.Logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := result.Close(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	svc, err := cli.NewLoanService(context.Background(), cfg, logger, result.Backend)
	if err != nil {
		logger.Error("Failed to initialize loan service", "error", err)
		os.Exit(1)
	}

	caches := cache.NewManager()
	caches.Register(svc.Cache())
	caches.StartCleanup(time.Minute)

	var authn *auth.Authenticator
	if cfg.AuthEnabled() {
		authn, err = auth.New(cfg.Users, cfg.SecretKey, cfg.TokenTTL)
		if err != nil {
			logger.Error("Failed to initialize authentication", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("No USERS configured; the API is open")
	}

	srv := apphttp.NewServer(svc, apphttp.Config{
		Addr:      ":" + cfg.Port,
		Logger:    logger.WithComponent(log.ComponentHTTP),
		Auth:      authn,
		RateLimit: ratelimit.DefaultConfig(),
		Ready:     result.Ready,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 60 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		caches.Stop()
	})

	logger.Info("Starting kuberx server", "port", cfg.Port, "backend", cfg.DataBackend, "auth", authn != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
