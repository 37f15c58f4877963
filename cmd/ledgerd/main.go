package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"partnerledger/config"
	"partnerledger/core"
	"partnerledger/gateway/middleware"
	"partnerledger/gateway/routes"
	"partnerledger/observability"
	"partnerledger/observability/logging"
	telemetry "partnerledger/observability/otel"
	"partnerledger/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./ledgerd.toml", "path to ledger configuration")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.SetupDefault("ledgerd", cfg.Environment, logging.FileConfig{Path: cfg.LogFile})
	if err := run(cfg, logger); err != nil {
		logger.Error("ledgerd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
	})
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	db, err := openStorage(cfg)
	if err != nil {
		return err
	}
	node, err := core.NewNode(db, core.NodeConfigFrom(cfg))
	if err != nil {
		db.Close()
		return fmt.Errorf("build node: %w", err)
	}
	defer node.Close()
	node.SetLogger(logger)

	eventLog := observability.NewEventLog(logger, 0)
	node.SetEmitter(eventLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SeedFile != "" {
		seed, err := config.LoadSeed(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := node.ApplySeed(ctx, seed); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		logger.Info("seed applied", slog.String("file", cfg.SeedFile))
	}

	secret := cfg.Gateway.JWTSecret()
	if secret == "" {
		logger.Warn("gateway authentication disabled; callers are taken from X-Ledger-Caller")
	}
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:    secret != "",
		HMACSecret: secret,
		Issuer:     cfg.Gateway.Issuer,
		Audience:   cfg.Gateway.Audience,
		ScopeClaim: cfg.Gateway.ScopeClaim,
		ClockSkew:  30 * time.Second,
	}, logger)

	write := middleware.RateLimit{RatePerSecond: cfg.Gateway.RatePerSecond, Burst: cfg.Gateway.Burst}
	read := middleware.RateLimit{RatePerSecond: write.RatePerSecond * 4, Burst: write.Burst * 4}
	limiter := middleware.NewRateLimiter(map[string]middleware.RateLimit{
		routes.LimitRead:  read,
		routes.LimitWrite: write,
	}, logger)

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		LogRequests: cfg.Environment != "production",
	}, logger)

	router, err := routes.New(routes.Config{
		Node:          node,
		Events:        eventLog,
		Authenticator: auth,
		RateLimiter:   limiter,
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   cfg.Gateway.AllowedOrigins,
			AllowedHeaders:   cfg.Gateway.AllowedHeaders,
			AllowCredentials: cfg.Gateway.AllowCredentials,
			MaxAge:           cfg.Gateway.CORSMaxAge.Duration,
		},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("configure routes: %w", err)
	}

	handler := http.Handler(router)
	if cfg.Telemetry.Traces {
		handler = otelhttp.NewHandler(router, "ledgerd")
	}
	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           handler,
		ReadHeaderTimeout: cfg.Gateway.ReadHeaderTimeout.Duration,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("address", cfg.ListenAddress), slog.String("storage", cfg.Storage))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

func openStorage(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemDB(), nil
	case config.StorageBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		db, err := storage.NewBoltDB(filepath.Join(cfg.DataDir, "ledger.db"))
		if err != nil {
			return nil, fmt.Errorf("open bolt store: %w", err)
		}
		return db, nil
	default:
		db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "leveldb"))
		if err != nil {
			return nil, fmt.Errorf("open leveldb store: %w", err)
		}
		return db, nil
	}
}
