package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/config"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events/retention"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events/store"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/limits/ratelimit"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers/anthropic"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers/openai"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/handlers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/server"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/metrics"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	policyName    string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

The server exposes an OpenAI-compatible API on the configured address and
runs every request through the active policy.

Examples:
  # Start with default config
  luthien run

  # Start with custom config
  luthien run --config /etc/luthien/config.yaml

  # Override the active policy
  luthien run --policy tool_guard`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.policyName, "policy", "", "override active policy name")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if runFlags.policyName != "" {
		cfg.Policy.Name = runFlags.policyName
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger := newLogger(cfg.Telemetry.Logging)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Tracing.
	tracer, err := tracing.New(cfg.Telemetry.Tracing)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// Metrics.
	var (
		promRegistry  *prometheus.Registry
		streamMetrics *metrics.StreamMetrics
	)
	if cfg.Telemetry.Metrics.Enabled {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())
		promRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		streamMetrics = metrics.NewStreamMetrics(promRegistry)
	}

	// Event persistence.
	var sink events.Sink = events.NopSink{}
	if cfg.Events.Enabled {
		eventStore, err := store.NewStore(cfg.Events.Store, logger)
		if err != nil {
			return fmt.Errorf("open event store: %w", err)
		}
		defer eventStore.Close()

		asyncSink := store.NewAsyncSink(eventStore, cfg.Events.BufferSize, logger)
		defer asyncSink.Close()

		sinks := events.MultiSink{asyncSink}
		if cfg.Telemetry.Tracing.Enabled {
			sinks = append(sinks, events.SpanSink{})
		}
		if cfg.Telemetry.Logging.Level == "debug" {
			sinks = append(sinks, events.NewLogSink(logger))
		}
		sink = sinks

		if cfg.Events.Retention.RetentionDays > 0 {
			pruner := retention.NewPruner(eventStore, cfg.Events.Retention, logger)
			if err := pruner.Start(ctx); err != nil {
				logger.Warn("failed to start retention pruner", "error", err)
			} else {
				defer pruner.Stop()
			}
		}

		logger.Info("event store initialized", "path", cfg.Events.Store.Path)
	}

	// Providers.
	providerSet, err := buildProviders(cfg)
	if err != nil {
		return err
	}
	logger.Info("providers initialized", "providers", providerSet.Names())

	// Policies.
	reg := registry.NewWithBuiltins()
	if err := reg.Activate(cfg.Policy.Name, cfg.Policy.Settings); err != nil {
		return fmt.Errorf("activate policy: %w", err)
	}
	logger.Info("policy activated", "policy", cfg.Policy.Name)

	if cfg.Policy.Watch && cfg.Policy.File != "" {
		watcher, err := registry.NewWatcher(cfg.Policy.File, cfg.Policy.DebounceInterval, logger)
		if err != nil {
			return fmt.Errorf("create policy watcher: %w", err)
		}
		go func() {
			err := watcher.Watch(ctx, func() error {
				return reloadPolicy(reg, cfg.Policy.File)
			})
			if err != nil {
				logger.Error("policy watcher exited", "error", err)
			}
		}()
	}

	// Rate limiting.
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.RequestsPerMinute > 0 {
		limiter = ratelimit.NewLimiter(cfg.RateLimit)
	}

	srv := server.New(cfg, server.Dependencies{
		Providers:       providerSet,
		Registry:        reg,
		Sink:            sink,
		Metrics:         streamMetrics,
		MetricsRegistry: promRegistry,
		Limiter:         limiter,
		Tracer:          tracer,
		Logger:          logger,
	})
	return srv.Start(ctx)
}

// buildProviders constructs one adapter per configured provider.
func buildProviders(cfg *config.Config) (*handlers.ProviderSet, error) {
	set := handlers.NewProviderSet()

	for name, providerCfg := range cfg.Providers {
		upstream := providers.NewUpstreamClient(providers.ClientConfig{
			Name:                name,
			BaseURL:             providerCfg.BaseURL,
			APIKey:              providerCfg.APIKey,
			Timeout:             providerCfg.Timeout,
			MaxIdleConns:        providerCfg.MaxIdleConns,
			MaxIdleConnsPerHost: providerCfg.MaxIdleConns,
		})

		switch providerCfg.Kind {
		case "openai":
			set.Add(name, "openai", openai.NewClient(upstream))
		case "anthropic":
			set.Add(name, "anthropic", anthropic.NewClient(upstream))
		default:
			return nil, fmt.Errorf("provider %q: unknown kind %q", name, providerCfg.Kind)
		}
	}
	return set, nil
}

// policyFile is the on-disk shape of a hot-reloadable policy definition.
type policyFile struct {
	Name     string         `yaml:"name"`
	Settings map[string]any `yaml:"settings"`
}

// reloadPolicy re-activates the policy from its file. In-flight streams
// keep the instance they started with.
func reloadPolicy(reg *registry.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read policy file: %w", err)
	}

	var pf policyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	if pf.Name == "" {
		return fmt.Errorf("policy file %q: name is required", path)
	}
	return reg.Activate(pf.Name, pf.Settings)
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
