// labour-core server - hosts the Labour and Notification aggregates and
// exposes the command/query/event API.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/fern-labour/labour-core/internal/idgen"
	"github.com/fern-labour/labour-core/internal/obsmetrics"
	"github.com/fern-labour/labour-core/internal/pgdb"
	"github.com/fern-labour/labour-core/pkg/api"
	"github.com/fern-labour/labour-core/pkg/config"
	"github.com/fern-labour/labour-core/pkg/eventsourcing"
	"github.com/fern-labour/labour-core/pkg/host"
	"github.com/fern-labour/labour-core/pkg/labour"
	"github.com/fern-labour/labour-core/pkg/notification"
	"github.com/fern-labour/labour-core/pkg/policy"
	"github.com/fern-labour/labour-core/pkg/processmanager"
	"github.com/fern-labour/labour-core/pkg/projection"
	"github.com/fern-labour/labour-core/pkg/queuebus"
	"github.com/fern-labour/labour-core/pkg/readmodel"
	"github.com/fern-labour/labour-core/pkg/repository"
	"github.com/fern-labour/labour-core/pkg/version"
)

const aggregateCacheTTL = 10 * time.Minute

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	// Load .env file from config directory
	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	log.Printf("Starting %s", version.Full())
	log.Printf("HTTP Port: %s", cfg.HTTPPort)

	ctx := context.Background()

	dbClient, err := pgdb.NewClient(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			log.Printf("Error closing database client: %v", err)
		}
	}()
	db := dbClient.DB()
	log.Println("✓ Connected to PostgreSQL database, migrations applied")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis unreachable, caches degrade to replay: %v", err)
		} else {
			log.Println("✓ Connected to Redis")
		}
	}

	// Event stores: one log, instrumented per aggregate kind.
	baseStore := eventsourcing.NewPostgresStore(db)
	labourStore := obsmetrics.InstrumentedEventStore{EventStore: baseStore, AggregateKind: "labour"}
	notificationStore := obsmetrics.InstrumentedEventStore{EventStore: baseStore, AggregateKind: "notification"}

	// Aggregate repositories, with the optional Redis state cache.
	labourCodec := labour.NewCodec()
	labourBase := repository.New(labourStore, labourCodec, repository.Aggregate[labour.State, labour.Command, labour.Event]{
		FromEvents:    labour.FromEvents,
		Apply:         labour.Apply,
		HandleCommand: labour.HandleCommand,
	}, idgen.New)
	labourRepo := repository.NewCached(labourBase, redisClient, "aggregate:labour", aggregateCacheTTL, logger)

	notificationCodec := notification.NewCodec()
	notificationBase := repository.New(notificationStore, notificationCodec, repository.Aggregate[notification.State, notification.Command, notification.Event]{
		FromEvents:    notification.FromEvents,
		Apply:         notification.Apply,
		HandleCommand: notification.HandleCommand,
	}, idgen.New)
	notificationRepo := repository.NewCached(notificationBase, redisClient, "aggregate:notification", aggregateCacheTTL, logger)

	// Read models: local per-labour repositories plus the
	// cross-entity global store.
	labourReads := api.LabourReads{
		Labour:        readmodel.NewPostgresLabourRepository(db),
		Contractions:  readmodel.NewPostgresContractionRepository(db),
		Updates:       readmodel.NewPostgresLabourUpdateRepository(db),
		Subscriptions: readmodel.NewPostgresSubscriptionRepository(db),
	}
	globalStore := readmodel.NewPostgresGlobalStore(db)

	// Projection runtime.
	checkpoints := projection.NewPostgresCheckpointRepository(db)
	labourDecoder := host.LabourEventDecoder(labourCodec)
	notificationDecoder := host.NotificationEventDecoder(notificationCodec)
	labourProcessor := projection.NewProcessor(labourStore, checkpoints, labourDecoder, 100, logger)
	notificationProcessor := projection.NewProcessor(notificationStore, checkpoints, notificationDecoder, 100, logger)
	labourHistory := projection.NewHistoryLoader(labourStore, labourDecoder)
	notificationHistory := projection.NewHistoryLoader(notificationStore, notificationDecoder)

	syncProjectors := []projection.Projector{
		projection.NewLabourProjector(labourReads.Labour),
		projection.NewContractionsProjector(labourReads.Contractions),
		projection.NewLabourUpdatesProjector(labourReads.Updates),
		projection.NewSubscriptionsProjector(labourReads.Subscriptions),
	}
	asyncProjectors := []projection.Projector{
		projection.NewLabourStatusProjector(redisClient, labourHistory, globalStore, logger),
		projection.NewSubscriptionStatusProjector(redisClient, labourHistory, globalStore, logger),
	}
	notificationProjectors := []projection.Projector{
		projection.NewNotificationDetailProjector(redisClient, notificationHistory, globalStore, logger),
	}

	// Process manager: policies, ledger, executors behind circuit breakers.
	ledger := processmanager.NewPostgresEffectLedger(db)
	policyApplications := processmanager.NewPostgresPolicyApplicationRepository(db)
	registry := policy.NewRegistry()

	queueStore := queuebus.NewPostgresStore(db)
	publisher := queuebus.NewPublisher(queueStore)

	// The token generator feeds SetSubscriptionToken back through the
	// labour host, which does not exist yet — bind it late through this
	// holder.
	tokenGen := &subscriptionTokenGenerator{}
	gateway := newGatewayClient(
		getEnv("RENDER_SERVICE_URL", "http://localhost:8081/render"),
		getEnv("DISPATCH_SERVICE_URL", "http://localhost:8082/dispatch"),
	)

	notificationFetch := host.NewNotificationFetch(notificationRepo, logger)

	executors := map[string]processmanager.Executor{
		"queue-publish":    processmanager.NewQueuePublishExecutor(publisher),
		"token-generator":  processmanager.NewTokenGeneratorExecutor(tokenGen),
		"render-service":   processmanager.NewInlineRenderExecutor(gateway, notificationFetch, fastPathCommandMeta("render")),
		"dispatch-service": processmanager.NewInlineDispatchExecutor(gateway, notificationFetch, fastPathCommandMeta("dispatch")),
	}
	dispatcher := processmanager.NewDispatcher(executors, processmanager.DefaultSelector, logger)

	manager := processmanager.NewManager(labourStore, labourCodec, policyApplications, registry, ledger, dispatcher, logger)
	priorityRunner := processmanager.NewPriorityRunner(notificationRepo, ledger, dispatcher, logger)

	// Hosts: one per aggregate kind, alarm wired to each kind's
	// process-manager and projection steps.
	labourAlarm := host.NewLabourAlarm(manager, labourProcessor, syncProjectors, asyncProjectors)
	labourHost := host.New(labourAlarm.Run, logger)

	notificationAlarm := host.NewNotificationAlarm(priorityRunner, notificationProcessor, notificationProjectors, notificationStore)
	notificationHost := host.New(notificationAlarm.Run, logger)

	labourFetch := host.NewLabourFetch(labourRepo, logger)
	tokenGen.labours = labourHost
	tokenGen.fetch = labourFetch

	// Command bus consumer side.
	consumer := host.NewQueueConsumer(notificationHost, notificationFetch, logger)
	workerPool := queuebus.NewWorkerPool(queueStore, consumer, cfg.Queue.WorkerCount,
		cfg.Queue.PollInterval, cfg.Queue.PollIntervalJitter, 10, logger)
	workerPool.Start(ctx, cfg.Queue.WorkerCount)
	defer workerPool.Stop()
	log.Printf("✓ Queue worker pool started (%d workers)", cfg.Queue.WorkerCount)

	// HTTP surface.
	server := api.NewServer(
		labourHost, labourFetch,
		notificationHost, notificationFetch,
		labourStore, notificationStore,
		labourReads, globalStore,
		checkpoints, ledger,
		func(ctx context.Context) error {
			_, err := pgdb.Health(ctx, db)
			return err
		},
		logger,
	)

	router := gin.Default()
	server.Register(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	log.Printf("HTTP server listening on :%s", cfg.HTTPPort)
	if err := router.Run(":" + cfg.HTTPPort); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// fastPathCommandMeta derives the command metadata for one priority
// fast-path step. The key is stable per (notification, step) so a
// re-delivered alarm re-issues the same command and the repository's
// idempotent append makes the replay a no-op.
func fastPathCommandMeta(step string) func(uuid.UUID) eventsourcing.CommandMetadata {
	return func(notificationID uuid.UUID) eventsourcing.CommandMetadata {
		key := uuid.NewSHA1(notificationID, []byte("fastpath:"+step))
		return host.IntentCommandMetadata(notificationID, key)
	}
}
