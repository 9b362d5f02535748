package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/uptime-bridge/internal/adapters/lock/redislock"
	"github.com/tjfontaine/uptime-bridge/internal/api/uptimerobot"
	"github.com/tjfontaine/uptime-bridge/internal/auth"
	"github.com/tjfontaine/uptime-bridge/internal/config"
	"github.com/tjfontaine/uptime-bridge/internal/core/ports"
	"github.com/tjfontaine/uptime-bridge/internal/extract"
	"github.com/tjfontaine/uptime-bridge/internal/frontdoor/asana"
	"github.com/tjfontaine/uptime-bridge/internal/reconcile"
	"github.com/tjfontaine/uptime-bridge/internal/server"
	"github.com/tjfontaine/uptime-bridge/internal/telemetry"
)

const serviceName = "uptime-bridge"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(telemetry.Options{
		ServiceName: serviceName,
		Enabled:     cfg.Telemetry.Enabled,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	clientOpts := []uptimerobot.ClientOption{
		uptimerobot.WithTimeout(cfg.UptimeRobot.Timeout),
		uptimerobot.WithConnLimit(cfg.UptimeRobot.ConnLimit),
		uptimerobot.WithBlockPrivateNetworks(cfg.UptimeRobot.BlockPrivateNetworks),
		uptimerobot.WithLogger(logger),
	}
	if cfg.UptimeRobot.BaseURL != "" {
		clientOpts = append(clientOpts, uptimerobot.WithBaseURL(cfg.UptimeRobot.BaseURL))
	}
	client := uptimerobot.NewClient(cfg.UptimeRobot.APIKey, clientOpts...)

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to set up %s lock: %v", cfg.Reconcile.Lock, err)
	}

	reconciler := reconcile.New(extract.NewExtractor(cfg.Webhook.DomainField), client, reconcile.Options{
		Scheme: cfg.Webhook.Scheme,
		Monitor: reconcile.MonitorDefaults{
			Interval:    cfg.Monitor.Interval,
			HTTPMethod:  cfg.Monitor.HTTPMethod,
			Timeout:     cfg.Monitor.Timeout,
			GracePeriod: cfg.Monitor.GracePeriod,
		},
		Locker: locker,
		Logger: logger,
	})

	if cfg.Webhook.PathToken == "" {
		logger.Warn("webhook path token is not set; all webhook calls will be rejected")
	}

	srv := server.New(cfg.Server.Port, logger, cfg.Server.RequestTimeout)
	asana.NewHandler(reconciler, logger).Routes(srv.Router, auth.NewPathToken(cfg.Webhook.PathToken))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	logger.Info("bridge started",
		slog.String("api", client.BaseURL()),
		slog.String("domain_field", cfg.Webhook.DomainField),
		slog.String("lock", cfg.Reconcile.Lock),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping bridge")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}
	if err := client.Close(); err != nil {
		logger.Error("failed to close monitoring client", slog.String("error", err.Error()))
	}
	if err := closeLocker(); err != nil {
		logger.Error("failed to close lock backend", slog.String("error", err.Error()))
	}

	logger.Info("bridge shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// newLocker returns the configured per-domain lock and a func releasing its
// resources.
func newLocker(cfg *config.Config, logger *slog.Logger) (ports.DomainLocker, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Reconcile.Lock {
	case config.LockNone:
		return reconcile.NoopLocker{}, noop, nil
	case config.LockRedis:
		rdb, err := redislock.Connect(cfg.Redis.URL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		logger.Info("using redis domain lock", slog.Duration("ttl", cfg.Redis.LockTTL))
		return redislock.New(rdb, cfg.Redis.LockTTL, logger), rdb.Close, nil
	default:
		return reconcile.NewKeyedLocker(), noop, nil
	}
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
