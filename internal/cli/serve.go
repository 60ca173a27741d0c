package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/api"
	"github.com/roach88/moneymap/internal/config"
	"github.com/roach88/moneymap/internal/events"
	"github.com/roach88/moneymap/internal/metrics"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Port int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the workspace HTTP API",
		Long: `Run the HTTP API over the configured SQLite database.

Audit events are logged and, when redis.enabled is set, appended to a
Redis stream. Prometheus metrics are served at /metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.Port, "port", "p", 0, "HTTP port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}
	if opts.Port != 0 {
		cfg.Server.HTTPPort = opts.Port
	}

	level := cfg.Log.Level
	if opts.Verbose {
		level = "debug"
	}
	logger, err := newLogger(level)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create logger", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.OpenDriver(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	logger.Info("database opened",
		zap.String("driver", cfg.Database.Driver),
		zap.String("path", cfg.Database.Path))

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bus, redisClient, err := newEventBus(ctx, cfg, logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect to Redis", err)
	}
	defer bus.Close()
	if redisClient != nil {
		defer redisClient.Close()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	manager := workspace.NewManager(st,
		workspace.WithPublisher(bus),
		workspace.WithMetrics(collector),
		workspace.WithLogger(logger),
	)

	httpServer := api.NewServer(&api.Config{
		Port:     cfg.Server.HTTPPort,
		Manager:  manager,
		Metrics:  collector,
		Gatherer: reg,
		Logger:   logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Start()
	}()

	logger.Info("moneymap started", zap.String("addr", cfg.HTTPAddr()))
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s. Press Ctrl-C to stop.\n", cfg.HTTPAddr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
		// Parent context cancelled (e.g., from test)
	case err := <-serveErr:
		if err != nil {
			return WrapExitError(ExitCommandError, "HTTP server failed", err)
		}
		return nil
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info("moneymap stopped")
	return nil
}

// newEventBus builds the in-process bus the workspace manager publishes to.
// Every event is logged; with Redis enabled it is also appended to the
// configured stream. The returned client is nil when Redis is disabled.
func newEventBus(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*events.Bus, *redis.Client, error) {
	bus := events.NewBus()
	bus.Subscribe(events.TopicWorkspace, func(_ context.Context, ev events.Event) error {
		logger.Debug("workspace event",
			zap.String("type", ev.Type),
			zap.String("household", ev.HouseholdID),
			zap.String("actor", ev.ActorID),
			zap.Int64("seq", ev.Seq))
		return nil
	})

	if !cfg.Redis.Enabled {
		return bus, nil, nil
	}

	client := redis.NewClient(cfg.RedisOptions())
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	logger.Info("connected to Redis", zap.String("addr", cfg.Redis.Addr))

	streams := events.NewStreams(client, cfg.Redis.Stream, cfg.Redis.MaxLen, logger)
	bus.Subscribe(events.TopicWorkspace, func(ctx context.Context, ev events.Event) error {
		return streams.Publish(ctx, events.TopicWorkspace, ev)
	})
	return bus, client, nil
}
