package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"pacochain/config"
	"pacochain/core"
	"pacochain/core/events"
	"pacochain/core/genesis"
	"pacochain/gateway/middleware"
	"pacochain/gateway/routes"
	"pacochain/indexer"
	"pacochain/observability/logging"
	telemetry "pacochain/observability/otel"
	"pacochain/storage"
)

func main() {
	var cfgPath string
	var genesisOverride string
	flag.StringVar(&cfgPath, "config", "./config.toml", "path to pacod configuration (TOML or YAML)")
	flag.StringVar(&genesisOverride, "genesis", "", "override the configured genesis file")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if strings.TrimSpace(genesisOverride) != "" {
		cfg.GenesisFile = genesisOverride
	}

	env := strings.TrimSpace(os.Getenv("PACO_ENV"))
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.SetupWithOptions("pacod", env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})

	if err := run(cfg, env, logger); err != nil {
		logger.Error("pacod exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, env string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetryConfig(cfg, env))
	if err != nil {
		return fmt.Errorf("initialise telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	params, err := cfg.HarbergerParams()
	if err != nil {
		return err
	}
	policy, err := cfg.FeePolicy()
	if err != nil {
		return err
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		return fmt.Errorf("open ledger database: %w", err)
	}
	defer db.Close()

	hub := routes.NewHub()
	subscribers := []events.Emitter{hub}
	var history routes.History
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		store, err := indexer.Open(dsn, indexer.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("open indexer: %w", err)
		}
		defer store.Close()
		subscribers = append(subscribers, store)
		history = store
		logger.Info("event indexer enabled", logging.MaskField("dsn", dsn))
	}

	opts := []core.Option{
		core.WithLogger(logger),
		core.WithFeePolicy(policy),
		core.WithPauses(cfg.PauseSet()),
	}
	for _, sub := range subscribers {
		opts = append(opts, core.WithSubscriber(sub))
	}
	node, err := core.NewNode(db, params, opts...)
	if err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	if err := applyGenesis(node, cfg.GenesisFile, logger); err != nil {
		return err
	}

	keeperCtx, stopKeeper := context.WithCancel(ctx)
	keeperDone := startKeeper(keeperCtx, cfg.Keeper, node, logger)
	// Runs before the deferred db.Close so no sweep outlives the store.
	defer func() {
		stopKeeper()
		<-keeperDone
	}()

	handler, err := buildHandler(cfg, node, history, hub, logger)
	if err != nil {
		return err
	}
	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.Gateway.ReadTimeout,
		WriteTimeout: cfg.Gateway.WriteTimeout,
		IdleTimeout:  cfg.Gateway.IdleTimeout,
	}
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("pacod listening", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", slog.Any("error", err))
	}
	return nil
}

// startKeeper runs the fee keeper until ctx ends. The returned channel closes
// once the keeper has returned.
func startKeeper(ctx context.Context, cfg config.Keeper, node *core.Node, logger *slog.Logger) <-chan struct{} {
	done := make(chan struct{})
	if !cfg.Enabled {
		close(done)
		return done
	}
	keeper := core.NewKeeper(node,
		core.WithKeeperInterval(cfg.Interval),
		core.WithKeeperBatchSize(cfg.BatchSize),
		core.WithKeeperLogger(logger),
	)
	go func() {
		defer close(done)
		if err := keeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("keeper stopped", slog.Any("error", err))
		}
	}()
	return done
}

func applyGenesis(node *core.Node, path string, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	spec, err := genesis.LoadGenesisSpec(path)
	if err != nil {
		return err
	}
	switch err := node.ApplyGenesis(spec); {
	case errors.Is(err, core.ErrGenesisApplied):
		logger.Info("genesis already applied", slog.String("path", path))
	case err != nil:
		return fmt.Errorf("apply genesis: %w", err)
	default:
		logger.Info("genesis applied",
			slog.String("path", path),
			slog.Int("allocations", len(spec.Allocations())))
	}
	return nil
}

func buildHandler(cfg *config.Config, node *core.Node, history routes.History, hub *routes.Hub, logger *slog.Logger) (http.Handler, error) {
	gw := cfg.Gateway
	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   telemetry.DefaultServiceName,
		MetricsPrefix: gw.MetricsPrefix,
		LogRequests:   gw.LogRequests,
		Enabled:       true,
	}, logger)
	auth := middleware.NewAuthenticator(middleware.AuthConfig{
		Enabled:        gw.Auth.Enabled,
		HMACSecret:     cfg.AuthSecret(),
		Issuer:         gw.Auth.Issuer,
		Audience:       gw.Auth.Audience,
		ScopeClaim:     gw.Auth.ScopeClaim,
		OptionalPaths:  gw.Auth.OptionalPaths,
		AllowAnonymous: gw.Auth.AllowAnonymous,
		ClockSkew:      gw.Auth.ClockSkew,
	}, logger)
	if !gw.Auth.Enabled {
		logger.Warn("gateway authentication disabled; callers are taken from " + middleware.AccountHeader)
	}

	router, err := routes.New(routes.Config{
		Ledger:        node,
		History:       history,
		Hub:           hub,
		Authenticator: auth,
		RateLimiter:   middleware.NewRateLimiter(rateLimits(gw.RateLimits), logger),
		Observability: obs,
		CORS: middleware.CORSConfig{
			AllowedOrigins:   gw.CORS.AllowedOrigins,
			AllowCredentials: gw.CORS.AllowCredentials,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configure routes: %w", err)
	}
	if cfg.Telemetry.Traces {
		return telemetry.WrapHandler(router, "pacod"), nil
	}
	return router, nil
}

func rateLimits(configured map[string]config.RateLimit) map[string]middleware.RateLimit {
	out := make(map[string]middleware.RateLimit, len(configured))
	for route, limit := range configured {
		if limit.RatePerSecond <= 0 {
			continue
		}
		out[route] = middleware.RateLimit{RatePerSecond: limit.RatePerSecond, Burst: limit.Burst}
	}
	return out
}

func telemetryConfig(cfg *config.Config, env string) telemetry.Config {
	t := cfg.Telemetry
	endpoint := t.Endpoint
	if override := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); override != "" {
		endpoint = override
	}
	headers := t.Headers
	if override := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")); override != "" {
		headers = override
	}
	return telemetry.Config{
		ServiceName: telemetry.DefaultServiceName,
		Environment: env,
		Endpoint:    endpoint,
		Insecure:    t.Insecure,
		Headers:     telemetry.ParseHeaders(headers),
		Metrics:     t.Metrics,
		Traces:      t.Traces,
	}
}
