package main

// @title           SyncBridge API
// @version         1.0
// @description     Inventory synchronisation API. SyncBridge pulls stock levels from warehouse, marketplace and payment providers on a schedule and reports progress live.

// @contact.name   SyncBridge OSS
// @contact.url    https://github.com/custodia-labs/syncbridge/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/syncbridge/internal/adapters/driven/auth"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/integration"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/metrics"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/notify"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/postgres"
	"github.com/custodia-labs/syncbridge/internal/adapters/driven/providers"
	redisadapter "github.com/custodia-labs/syncbridge/internal/adapters/driven/redis"
	"github.com/custodia-labs/syncbridge/internal/adapters/driving/http"
	"github.com/custodia-labs/syncbridge/internal/config"
	"github.com/custodia-labs/syncbridge/internal/core/ports/driven"
	"github.com/custodia-labs/syncbridge/internal/core/services"
	"github.com/custodia-labs/syncbridge/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	// command line arg overrides RUN_MODE
	if len(os.Args) > 1 {
		cfg.RunMode = os.Args[1]
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("syncbridge exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("syncbridge starting", "version", version, "mode", cfg.RunMode)

	// ===== Initialize PostgreSQL =====
	dbConfig := postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	}
	db, err := postgres.Connect(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	logger.Info("postgres connected and schema initialized")

	// ===== Initialize Redis =====
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("redis connected")

	cacheStore := redisadapter.NewCacheStore(redisClient, cfg.RedisPrefix)
	pubsub := redisadapter.NewPubSub(redisClient, logger)

	// ===== Distributed lock (per-schedule lease) =====
	var lock driven.DistributedLock
	switch cfg.LockBackend {
	case config.LockPostgres:
		lock = postgres.NewLeaseLock(db)
	default:
		lock = redisadapter.NewLock(redisClient)
	}
	logger.Info("schedule lease backend selected", "backend", cfg.LockBackend)

	// ===== PostgreSQL stores =====
	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}
	encryptor, err := postgres.NewSecretEncryptor(key)
	if err != nil {
		return fmt.Errorf("create secret encryptor: %w", err)
	}
	scheduleStore := postgres.NewScheduleStore(db)
	executionStore := postgres.NewExecutionStore(db)
	inventoryStore := postgres.NewInventoryStore(db)
	productStore := postgres.NewProductStore(db)
	webhookStore := postgres.NewWebhookStore(db, encryptor)
	connectionStore := postgres.NewConnectionStore(db, encryptor)

	// ===== Metrics =====
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	// ===== Notifications =====
	var mailer notify.Mailer
	if cfg.SMTP.Enabled() {
		smtp, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:       cfg.SMTP.Host,
			Port:       cfg.SMTP.Port,
			Username:   cfg.SMTP.Username,
			Password:   cfg.SMTP.Password,
			From:       cfg.SMTP.From,
			RequireTLS: cfg.SMTP.RequireTLS,
		})
		if err != nil {
			return fmt.Errorf("configure smtp: %w", err)
		}
		mailer = smtp
	} else {
		logger.Warn("SMTP_HOST not set, email notifications disabled")
	}
	notifier := notify.NewNotifier(notify.Config{Mailer: mailer, Logger: logger})
	webhookSender := notify.NewWebhookSender(nil)

	// ===== Provider registry =====
	credentials, err := providers.LoadCredentials(nil)
	if err != nil {
		return fmt.Errorf("load provider credentials: %w", err)
	}
	providerRegistry := providers.NewRegistry(providers.RegistryConfig{
		Credentials: credentials,
		Connections: connectionStore,
		Refresher:   integration.NewOAuth2Refresher(nil),
		Webhooks:    webhookSender,
		Notifier:    notifier,
		Metrics:     recorder,
		Logger:      logger,
		AdminEmails: cfg.AdminEmails,
	})

	// ===== Core services =====
	cache := services.NewCacheService(services.CacheServiceConfig{
		Store:      cacheStore,
		DefaultTTL: cfg.CacheDefaultTTL,
		Metrics:    recorder,
		Logger:     logger,
	})
	dispatcher := services.NewWebhookDispatcher(services.WebhookDispatcherConfig{
		Store:   webhookStore,
		Sender:  webhookSender,
		Metrics: recorder,
		Logger:  logger,
	})
	progress := services.NewProgressTracker(services.ProgressTrackerConfig{
		Cache:       cache,
		Dispatcher:  dispatcher,
		Broadcaster: pubsub,
		Logger:      logger,
	})
	inventory := services.NewInventoryService(services.InventoryServiceConfig{
		Registry:   providerRegistry,
		Store:      inventoryStore,
		Products:   productStore,
		Cache:      cache,
		Progress:   progress,
		Dispatcher: dispatcher,
		Metrics:    recorder,
		Logger:     logger,
		BatchSize:  cfg.SyncBatchSize,
	})
	schedules := services.NewScheduleManager(services.ScheduleManagerConfig{
		Schedules:      scheduleStore,
		Executions:     executionStore,
		Inventory:      inventory,
		Progress:       progress,
		Cache:          cache,
		Lock:           lock,
		Notifier:       notifier,
		Providers:      providerRegistry,
		Metrics:        recorder,
		Logger:         logger,
		LeaseTTL:       cfg.ScheduleLeaseTTL,
		RetryBaseDelay: cfg.RetryBaseDelay,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.RunsWorker() {
		w := worker.NewWorker(worker.WorkerConfig{
			Schedules:    scheduleStore,
			Executions:   executionStore,
			Runner:       schedules,
			Logger:       logger,
			Concurrency:  cfg.WorkerConcurrency,
			PollInterval: cfg.PollInterval,
		})
		g.Go(func() error {
			if err := w.Start(ctx); err != nil {
				return fmt.Errorf("start worker: %w", err)
			}
			<-ctx.Done()
			w.Stop()
			return nil
		})
	}

	if cfg.RunsAPI() {
		server := http.NewServer(http.Config{
			Host:              cfg.Host,
			Port:              cfg.Port,
			Version:           version,
			RateLimitRequests: cfg.RateLimitRequests,
			RateLimitWindow:   cfg.RateLimitWindow,
			AllowedOrigins:    cfg.AllowedOrigins,
			Logger:            logger,
		}, http.Services{
			Auth:        services.NewAuthService(auth.NewAdapter(cfg.JWTSecret), cfg.TokenTTL),
			Schedules:   schedules,
			Inventory:   inventory,
			Progress:    progress,
			Webhooks:    dispatcher,
			Connections: services.NewConnectionService(connectionStore, providerRegistry),
			RateLimiter: services.NewRateLimiter(services.RateLimiterConfig{Cache: cache, Logger: logger}),
			Broadcasts:  pubsub,
			Metrics:     recorder,
			Checks: map[string]http.Pinger{
				"postgres": db,
				"redis":    cacheStore,
				"lock":     lock,
			},
		})
		g.Go(func() error {
			return server.Start(ctx)
		})
	}

	return g.Wait()
}
