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
	"time"

	"offernexus/internal/clients"
	"offernexus/internal/config"
	"offernexus/internal/logging"
	"offernexus/internal/offers"
	"offernexus/internal/storage"
	"offernexus/internal/telemetry"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, os.Stdout)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("offers service stopped", "error", err)
		os.Exit(1)
	}
}

// run serves the offers API until ctx is done or the server fails.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracing shutdown", "error", err)
		}
	}()

	store, err := storage.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	calculator, closeCalculator, err := newValueCalculator(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up value calculator: %w", err)
	}
	defer closeCalculator()

	svc := offers.NewService(store, calculator, offers.NewEngine(), logger)
	handler := offers.NewHandler(svc)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting offers service", "port", cfg.Port, "database", cfg.DatabaseDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	logger.Info("offers service stopped")
	return nil
}

// newValueCalculator picks the value calculator from configuration: a flat
// rate when FLAT_OFFER_VALUE is set, the valuation service otherwise, cached
// in redis when REDIS_URL is set.
func newValueCalculator(cfg config.Config, logger *slog.Logger) (offers.ValueCalculator, func(), error) {
	var calculator offers.ValueCalculator
	if cfg.Valuation.FlatValue > 0 {
		calculator = offers.FlatRateCalculator{Value: cfg.Valuation.FlatValue}
	} else {
		calculator = clients.NewValuationClient(cfg.Valuation.ServiceURL,
			clients.WithHTTPClient(&http.Client{Timeout: cfg.Valuation.Timeout}),
			clients.WithRateLimit(cfg.Valuation.RatePerSec, cfg.Valuation.Burst),
		)
	}

	if cfg.RedisURL == "" {
		return calculator, func() {}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)
	closeRedis := func() {
		if err := rdb.Close(); err != nil {
			logger.Error("redis close", "error", err)
		}
	}
	return clients.NewCachedCalculator(calculator, rdb, cfg.ValueCacheTTL, logger), closeRedis, nil
}
