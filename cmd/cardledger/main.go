package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"cardledger/internal/backend"
	"cardledger/internal/cache"
	"cardledger/internal/config"
	apphttp "cardledger/internal/http"
	"cardledger/internal/ledger"
	"cardledger/internal/log"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()

	logger := log.New(log.Config{
		Level:     cfg.SlogLevel(),
		Format:    cfg.LogFormat,
		Component: log.ComponentApp,
		Output:    os.Stdout,
	})
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err.Error(), log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	res, err := factory.CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", log.FieldError, err.Error())
		}
	}()

	// Only hand the publisher over when one exists, so the ledger sees a
	// nil interface rather than a nil *amqp.Client.
	var events ledger.Publisher
	if res.Events != nil {
		events = res.Events
	}
	l := ledger.New(res.Store, events, ledger.Options{SummaryConcurrency: cfg.SummaryConcurrency})

	srv := apphttp.NewServer(":"+cfg.Port, l, apphttp.Options{
		JWTSecret:          cfg.JWTSecret,
		CORSOrigins:        cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Ready:              res.Store.Ping,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	if cards, ok := res.Store.(*cache.CardStore); ok {
		go sweepCardCache(ctx, cards, cfg.CardCacheTTL, logger)
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting cardledger server",
			log.FieldOperation, log.OpStartup,
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"events_enabled", res.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err.Error())
	}
	logger.Info("Server stopped gracefully")
}

// sweepCardCache drops expired cards once per TTL until ctx is done.
func sweepCardCache(ctx context.Context, cards *cache.CardStore, ttl time.Duration, logger *log.Logger) {
	ticker := time.NewTicker(ttl)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cards.Sweep(); n > 0 {
				logger.Debug("Swept card cache", "removed", n)
			}
		}
	}
}
