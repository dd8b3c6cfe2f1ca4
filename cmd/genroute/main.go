package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/draftforge/genroute/internal/api"
	"github.com/draftforge/genroute/internal/cache"
	"github.com/draftforge/genroute/internal/config"
	"github.com/draftforge/genroute/internal/configstore"
	"github.com/draftforge/genroute/internal/health"
	"github.com/draftforge/genroute/internal/limits"
	"github.com/draftforge/genroute/internal/metrics"
	"github.com/draftforge/genroute/internal/notifications"
	"github.com/draftforge/genroute/internal/provider"
	"github.com/draftforge/genroute/internal/provider/anthropic"
	"github.com/draftforge/genroute/internal/provider/bedrock"
	"github.com/draftforge/genroute/internal/provider/ollama"
	"github.com/draftforge/genroute/internal/provider/openai"
	"github.com/draftforge/genroute/internal/queue"
	"github.com/draftforge/genroute/internal/registry"
	"github.com/draftforge/genroute/internal/router"
	"github.com/draftforge/genroute/internal/secrets"
	"github.com/draftforge/genroute/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	slog.Info("starting genroute", "addr", cfg.Addr, "version", "0.1.0")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTelemetry, err := telemetry.Init(ctx, "genroute", cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to initialize telemetry", "error", err)
		os.Exit(1)
	}
	defer shutdownTelemetry(context.Background())

	// Provider config source: Postgres when a database is configured,
	// otherwise the YAML file.
	var source configstore.Source
	if cfg.DatabaseURL != "" {
		pg, err := configstore.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		source = pg
		slog.Info("loading providers from postgres")
	} else {
		source = configstore.YAMLFile{Path: cfg.ProvidersFile}
		slog.Info("loading providers from file", "path", cfg.ProvidersFile)
	}

	descriptors, err := source.Load(ctx)
	if err != nil {
		slog.Error("failed to load providers", "error", err)
		os.Exit(1)
	}

	resolverOpts := []secrets.Option{}
	if cfg.EncryptionKey != "" {
		resolverOpts = append(resolverOpts, secrets.WithEncryptionKey(cfg.EncryptionKey))
	}
	if cfg.AWSRegion != "" {
		store, err := secrets.NewAWSStore(ctx, cfg.AWSRegion)
		if err != nil {
			slog.Error("failed to initialize secrets manager", "error", err)
			os.Exit(1)
		}
		resolverOpts = append(resolverOpts, secrets.WithStore(store))
	}
	resolver := secrets.NewResolver(resolverOpts...)

	adapters, err := buildAdapters(ctx, cfg, resolver, descriptors)
	if err != nil {
		slog.Error("failed to build provider adapters", "error", err)
		os.Exit(1)
	}
	if len(adapters) == 0 {
		slog.Error("no providers configured")
		os.Exit(1)
	}

	tracker := health.NewTracker(health.Config{
		FailureThreshold: cfg.FailureThreshold,
		FailureWindow:    cfg.FailureWindow,
		Cooldown:         cfg.Cooldown,
		MaxCooldown:      cfg.MaxCooldown,
	}, health.WithListener(breakerMetrics{}), health.WithListener(buildBreakerNotifier(ctx, cfg)))

	reg := registry.New(descriptors)
	engine := router.New(router.Config{
		Registry:       reg,
		Health:         tracker,
		Limits:         limits.New(reg.Snapshot()),
		Adapters:       adapters,
		AttemptTimeout: cfg.AttemptTimeout,
	})

	var resultCache cache.Cache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(cfg.RedisURL)
		if err != nil {
			slog.Warn("failed to connect to redis, using in-memory cache", "error", err)
			resultCache = cache.NewInMemory()
		} else {
			defer redisCache.Close()
			resultCache = redisCache
			slog.Info("using redis cache")
		}
	} else {
		resultCache = cache.NewInMemory()
		slog.Info("using in-memory cache")
	}

	var jobQueue queue.Queue
	if cfg.QueueURL != "" {
		jobQueue, err = queue.NewSQSQueue(ctx, cfg.AWSRegion, cfg.QueueURL, cfg.ResponseQueueURL)
		if err != nil {
			slog.Error("failed to initialize job queue", "error", err)
			os.Exit(1)
		}
		for i := 0; i < cfg.WorkerCount; i++ {
			go queue.NewWorker(jobQueue, engine).Run(ctx)
		}
		slog.Info("async generation enabled", "workers", cfg.WorkerCount)
	}

	handler := api.NewHandler(api.HandlerConfig{
		Router:   engine,
		Cache:    resultCache,
		CacheTTL: cfg.CacheTTL,
		Queue:    jobQueue,
	})

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams are bounded per attempt, not per response
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// SIGHUP reloads the provider set without a restart.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			descriptors, err := source.Load(ctx)
			if err != nil {
				slog.Error("reload failed, keeping current providers", "error", err)
				continue
			}
			adapters, err := buildAdapters(ctx, cfg, resolver, descriptors)
			if err != nil {
				slog.Error("reload failed, keeping current providers", "error", err)
				continue
			}
			engine.Reload(descriptors, adapters)
			slog.Info("providers reloaded", "count", len(engine.Providers()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// buildAdapters constructs one adapter per enabled descriptor, resolving
// credentials as needed.
func buildAdapters(ctx context.Context, cfg *config.Config, resolver *secrets.Resolver, descriptors []registry.Descriptor) (map[string]provider.Adapter, error) {
	adapters := make(map[string]provider.Adapter)

	for _, d := range descriptors {
		if !d.Enabled {
			continue
		}

		var credential string
		if d.CredentialRef != "" {
			var err error
			credential, err = resolver.Resolve(ctx, d.CredentialRef)
			if err != nil {
				slog.Error("failed to resolve credential, skipping provider",
					"provider", d.ID,
					"error", err,
				)
				continue
			}
		}

		switch d.Type {
		case "openai":
			baseURL := d.BaseURL
			if baseURL == "" {
				baseURL = "https://api.openai.com/v1"
			}
			adapters[d.ID] = openai.New(d.ID, credential, baseURL, d.Model)
		case "anthropic":
			a := anthropic.New(d.ID, credential, d.Model)
			if d.BaseURL != "" {
				a = a.WithBaseURL(d.BaseURL)
			}
			adapters[d.ID] = a
		case "ollama":
			baseURL := d.BaseURL
			if baseURL == "" {
				baseURL = "http://localhost:11434"
			}
			adapters[d.ID] = ollama.New(d.ID, baseURL, d.Model)
		case "bedrock":
			b, err := bedrock.New(ctx, d.ID, cfg.AWSRegion, d.Model)
			if err != nil {
				slog.Error("failed to initialize bedrock adapter, skipping provider",
					"provider", d.ID,
					"error", err,
				)
				continue
			}
			adapters[d.ID] = b
		default:
			slog.Warn("unknown provider type, skipping", "provider", d.ID, "type", d.Type)
			continue
		}

		slog.Info("registered provider", "provider", d.ID, "type", d.Type, "model", d.Model)
	}

	return adapters, nil
}

func buildBreakerNotifier(ctx context.Context, cfg *config.Config) health.Listener {
	if cfg.SNSTopicARN == "" || cfg.AWSRegion == "" {
		return notifications.NewBreakerListener(notifications.NewInMemoryNotifier())
	}

	notifier, err := notifications.NewSNSNotifier(ctx, cfg.AWSRegion, cfg.SNSTopicARN)
	if err != nil {
		slog.Warn("failed to initialize SNS notifier, breaker alerts disabled", "error", err)
		return notifications.NewBreakerListener(notifications.NewInMemoryNotifier())
	}
	slog.Info("breaker notifications enabled", "topic", cfg.SNSTopicARN)
	return notifications.NewBreakerListener(notifier)
}

// breakerMetrics mirrors breaker transitions into the state gauge.
type breakerMetrics struct{}

func (breakerMetrics) ProviderDown(providerID string, cooldown time.Duration) {
	metrics.SetBreakerState(providerID, 2)
}

func (breakerMetrics) ProviderUp(providerID string) {
	metrics.SetBreakerState(providerID, 0)
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
