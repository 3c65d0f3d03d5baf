package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/harborhomes/leadrouter/cmd/mainconfig"
	apirouter "github.com/harborhomes/leadrouter/internal/api/router"
	"github.com/harborhomes/leadrouter/internal/cache"
	"github.com/harborhomes/leadrouter/internal/compliance"
	appconfig "github.com/harborhomes/leadrouter/internal/config"
	"github.com/harborhomes/leadrouter/internal/contacts"
	"github.com/harborhomes/leadrouter/internal/crm"
	"github.com/harborhomes/leadrouter/internal/dispatch"
	"github.com/harborhomes/leadrouter/internal/events"
	"github.com/harborhomes/leadrouter/internal/http/handlers"
	"github.com/harborhomes/leadrouter/internal/messaging"
	"github.com/harborhomes/leadrouter/internal/observability/metrics"
	"github.com/harborhomes/leadrouter/internal/router"
	"github.com/harborhomes/leadrouter/internal/routing"
	"github.com/harborhomes/leadrouter/internal/voice"
	"github.com/harborhomes/leadrouter/internal/workflows"
	"github.com/harborhomes/leadrouter/pkg/logging"
)

func main() {
	// Local development convenience; in deployed environments the
	// variables come from the task definition.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting leadrouter API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("redis unreachable", "error", err, "addr", cfg.RedisAddr)
		os.Exit(1)
	}

	// Postgres backs webhook idempotency and the compliance audit
	// trail. Without it the router still serves traffic, minus those
	// two guarantees; that is acceptable for local development only.
	var processedStore *events.ProcessedStore
	var auditTrail *compliance.AuditTrail
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create postgres pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		processedStore = events.NewProcessedStore(pool)

		auditDB, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer auditDB.Close()
		auditTrail = compliance.NewAuditTrail(auditDB)
	} else {
		logger.Warn("DATABASE_URL not set; webhook dedup and audit trail disabled")
	}

	crmClient, err := crm.New(crm.Config{
		BaseURL:       cfg.GHLBaseURL,
		APIKey:        cfg.GHLAPIKey,
		WebhookSecret: cfg.GHLWebhookSecret,
		Logger:        logger.Logger,
	})
	if err != nil {
		logger.Error("failed to create CRM client", "error", err)
		os.Exit(1)
	}

	routerMetrics := metrics.NewRouterMetrics(nil)
	dispatchMetrics := metrics.NewDispatchMetrics(nil)

	dispatcher := messaging.NewDispatcher(crmClient, logger).
		WithAuditTrail(auditTrail).
		WithVoiceRetry(cfg.VoiceRetryAttempts, cfg.VoiceRetryBaseDelay)
	if cfg.VapiAPIKey != "" {
		voiceClient, err := voice.NewClient(voice.ClientConfig{
			APIKey:  cfg.VapiAPIKey,
			BaseURL: cfg.VapiBaseURL,
			Logger:  logger,
		})
		if err != nil {
			logger.Error("failed to create voice client", "error", err)
			os.Exit(1)
		}
		dispatcher = dispatcher.WithVoiceClient(voiceClient)
	} else {
		logger.Warn("VAPI_API_KEY not set; voice handoffs degrade to tagging")
	}

	var publisher *dispatch.Publisher
	var worker *dispatch.Worker
	if cfg.UseMemoryQueue {
		logger.Warn("using in-memory dispatch queue; jobs are lost on restart")
		queue := dispatch.NewMemoryQueue(256)
		publisher = dispatch.NewPublisher(queue, logger)
		worker = dispatch.NewWorker(queue, dispatcher, dispatchMetrics, logger,
			dispatch.WithWorkerCount(cfg.WorkerCount))
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		queue := dispatch.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.DispatchQueueURL)
		publisher = dispatch.NewPublisher(queue, logger)
		worker = dispatch.NewWorker(queue, dispatcher, dispatchMetrics, logger,
			dispatch.WithWorkerCount(cfg.WorkerCount))
	}

	cacheStore := cache.NewRedisStore(redisClient, nil)
	contactStore := contacts.NewStore(redisClient, nil).WithTTL(cfg.ContextTTL)
	wfEngine := workflows.NewEngine(cacheStore, logger).
		WithTTL(cfg.WorkflowDedupTTL).
		WithAtomicDedup(cfg.CacheAtomicDedup)
	ghosts := workflows.NewGhostTracker(cacheStore, wfEngine, cfg.WorkflowUnstaleLeadID, logger).
		WithTTL(cfg.GhostStateTTL)

	fieldMapping, err := router.ParseFieldMapping(cfg.CanonicalFieldMapJSON)
	if err != nil {
		logger.Error("invalid CANONICAL_FIELD_MAP_JSON", "error", err)
		os.Exit(1)
	}
	mappingMode := router.MappingFailOpen
	if cfg.CanonicalMappingMode == "fail_closed" {
		mappingMode = router.MappingFailClosed
	}

	// Bot engines are registered per deployment; a mode with no engine
	// falls back to the scripted safe-mode reply, so the router stays
	// safe to run before any engine ships.
	engines := map[routing.Mode]router.BotEngine{}

	eventRouter := router.New(router.Config{
		Flags: routing.Flags{
			SellerEnabled: cfg.SellerEnabled,
			BuyerEnabled:  cfg.BuyerEnabled,
			LeadEnabled:   cfg.LeadEnabled,
		},
		BuyerTag:         cfg.BuyerTag,
		LeadTag:          cfg.LeadTag,
		DeactivationTags: cfg.DeactivationTags,

		HotLeadWorkflowID:           cfg.WorkflowHotLeadID,
		NegativeSentimentWorkflowID: cfg.WorkflowNegativeSentimentID,
		RejectedOfferWorkflowID:     cfg.WorkflowRejectedOfferID,
		NewLeadWorkflowID:           cfg.WorkflowNewLeadID,

		FieldMapping: fieldMapping,
		MappingMode:  mappingMode,

		VoiceAssistantID: cfg.VapiAssistantID,
	}, contactStore, wfEngine, ghosts, compliance.NewGate(), publisher, engines, logger).
		WithAuditTrail(auditTrail).
		WithMetrics(routerMetrics)

	webhookCfg := handlers.GHLWebhookConfig{
		Router: eventRouter,
		Logger: logger,
	}
	if processedStore != nil {
		webhookCfg.Processed = processedStore
	}
	if cfg.GHLWebhookSecret != "" {
		webhookCfg.Verifier = crmClient
	} else {
		logger.Warn("GHL_WEBHOOK_SECRET not set; webhook signatures are not verified")
	}
	webhooks := handlers.NewGHLWebhookHandler(webhookCfg)

	r := apirouter.New(&apirouter.Config{
		Logger:         logger,
		Webhooks:       webhooks,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := worker.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatch worker shutdown", "error", err)
	}

	logger.Info("server stopped")
}
