package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	integrationapp "github.com/mgastron/mvgtms-sub000/internal/application/integration"
	pricingapp "github.com/mgastron/mvgtms-sub000/internal/application/pricing"
	shipmentapp "github.com/mgastron/mvgtms-sub000/internal/application/shipment"
	"github.com/mgastron/mvgtms-sub000/internal/domain/pricing"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/cache"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/config"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/ecommerce"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/event"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/logger"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/migration"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/notification"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/persistence"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/scheduler"
	"github.com/mgastron/mvgtms-sub000/internal/infrastructure/telemetry"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/handler"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/middleware"
	"github.com/mgastron/mvgtms-sub000/internal/interfaces/http/router"
)

const (
	shutdownTimeout = 30 * time.Second
	taskWorkers     = 4
	busWorkers      = 4
	busQueueSize    = 256
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The bootstrap logger reports telemetry setup; the final logger also
	// tees into the OpenTelemetry log bridge.
	logCfg := logger.FromConfig(cfg.App, cfg.Log)
	bootLog := logger.New(logCfg)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(ctx, cfg.Telemetry, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize logger provider", zap.Error(err))
	}

	log := logger.New(logCfg, loggerProvider.ZapCore(cfg.Telemetry.ServiceName, zapcore.InfoLevel))
	zap.ReplaceGlobals(log)
	defer func() { _ = log.Sync() }()

	log.Info("Starting TMS backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if err := run(ctx, cfg, log, tracerProvider, meterProvider); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := errors.Join(
		tracerProvider.Shutdown(shutdownCtx),
		meterProvider.Shutdown(shutdownCtx),
		loggerProvider.Shutdown(shutdownCtx),
	); err != nil {
		log.Warn("Telemetry shutdown incomplete", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider) error {
	// Database
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log)
	db, err := persistence.NewDatabase(&cfg.Database, log, cfg.Log.Level, cfg.Telemetry.DBSlowQueryThresh, dbTracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if cfg.Database.AutoMigrate {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return err
		}
		if err := migration.RunUp(sqlDB, cfg.Database.MigrationsPath, log); err != nil {
			return err
		}
	}

	// Coordination stores: Redis when reachable, in-process otherwise
	stores := cache.NewFactory(cfg.Redis, cache.WithLogger(log))
	defer func() { _ = stores.Close() }()
	locker, err := stores.Locker(ctx)
	if err != nil {
		return err
	}
	oauthStates, err := stores.OAuthStateStore(ctx)
	if err != nil {
		return err
	}

	// Repositories
	shipmentRepo := persistence.NewGormShipmentRepository(db.DB)
	clientRepo := persistence.NewGormClientRepository(db.DB)
	priceLists := cache.NewCachedPriceListRepository(persistence.NewGormPriceListRepository(db.DB), cfg.Pricing.CacheTTL)

	// Pricing
	zones, err := pricing.NewZoneTable(zoneRanges(cfg.Zones))
	if err != nil {
		return err
	}
	calculator := pricingapp.NewCalculator(priceLists, zones, log)

	// Provider adapters and credentials
	registry := ecommerce.NewRegistry(cfg, log)
	vault := integrationapp.NewCredentialVault(clientRepo, registry, log,
		integrationapp.WithRefreshMargin(cfg.Integration.RefreshMargin))
	liveSource := integrationapp.NewLiveSource(vault, registry)

	// Shipments
	shipmentService := shipmentapp.NewService(shipmentRepo, clientRepo, calculator, locker, shipmentapp.Config{
		DedupWindow: cfg.Dedup.Window,
		DedupBucket: cfg.Dedup.Bucket,
		LeaseTTL:    cfg.Dedup.LeaseTTL,
		LeaseWait:   cfg.Dedup.LeaseWait,
	}, log)
	shipmentService.SetLiveFetcher(liveSource)

	// Event bus
	eventBus := event.NewInMemoryEventBus(event.BusConfig{Workers: busWorkers, QueueSize: busQueueSize}, log)
	eventBus.Subscribe(event.NewStatusLogHandler(log))
	eventBus.Subscribe(shipmentapp.NewCollectedHandler(notification.New(cfg.Notification, log), cfg.App.PublicBaseURL, log))
	shipmentService.SetEventPublisher(eventBus)
	if err := eventBus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := eventBus.Stop(stopCtx); err != nil {
			log.Warn("Event bus stop incomplete", zap.Error(err))
		}
	}()

	// Scheduler
	meter := mp.Meter("tms")
	ingestionMetrics, err := telemetry.NewIngestionMetrics(meter)
	if err != nil {
		return err
	}
	history := scheduler.NewRunHistory(cfg.Scheduler.RunHistorySize)
	tasks, err := scheduler.NewTaskRunner(scheduler.TaskRunnerConfig{
		Workers:     taskWorkers,
		QueueSize:   cfg.Scheduler.MaxTasks,
		TaskTimeout: cfg.Scheduler.TaskTimeout,
	}, history, log)
	if err != nil {
		return err
	}
	ingestion := scheduler.NewIngestionSyncer(scheduler.IngestionConfig{
		Interval:        cfg.Scheduler.IngestionInterval,
		Lookback:        cfg.Scheduler.Lookback,
		InitialLookback: cfg.Scheduler.InitialLookback,
		JobTimeout:      cfg.Scheduler.JobTimeout,
		LeaseTTL:        cfg.Dedup.LeaseTTL,
	}, clientRepo, registry, vault, shipmentService, locker, history, ingestionMetrics, log)
	statusCadence, err := scheduler.StatusCadence(cfg.Scheduler)
	if err != nil {
		return err
	}
	statusSync := scheduler.NewStatusSyncer(scheduler.StatusSyncConfig{
		Cadence:    statusCadence,
		JobTimeout: cfg.Scheduler.JobTimeout,
	}, shipmentRepo, clientRepo, liveSource, shipmentService, history, ingestionMetrics, log)

	manager := scheduler.NewManager(history, tasks, log)
	var (
		submitter handler.TaskSubmitter
		syncer    handler.ClientSyncer
	)
	if cfg.Scheduler.Enabled {
		manager.ScheduleProviders(registry.Providers(), ingestion, statusSync)
		if err := manager.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := manager.Stop(stopCtx); err != nil {
				log.Warn("Scheduler stop incomplete", zap.Error(err))
			}
		}()
		submitter, syncer = tasks, ingestion
	} else {
		log.Info("Scheduler disabled, no periodic jobs registered")
	}

	oauthService := integrationapp.NewOAuthService(clientRepo, registry, oauthStates, submitter, syncer, log,
		integrationapp.WithStateTTL(cfg.Integration.OAuthStateTTL))

	// HTTP
	middleware.SetupValidator()
	engine, err := router.NewEngine(router.EngineOptions{
		HTTP:        cfg.HTTP,
		ServiceName: cfg.Telemetry.ServiceName,
		Tracing:     tp.IsEnabled(),
		Meter:       meter,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	var trackingLimit gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(ctx, cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer limiter.Shutdown()
		trackingLimit = limiter.Middleware()
	}

	health := handler.NewHealthHandler(healthChecks(ctx, db, stores), manager.Jobs)
	engine.GET("/health", health.Health)

	router.NewRouter(engine).
		Register(handler.NewShipmentHandler(shipmentService)).
		Register(handler.NewTrackingHandler(shipmentService, trackingLimit)).
		Register(handler.NewIntegrationHandler(oauthService)).
		Register(handler.NewSchedulerHandler(history, submitter, syncer)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func zoneRanges(cfg []config.ZoneRangeConfig) []pricing.ZoneRange {
	out := make([]pricing.ZoneRange, len(cfg))
	for i, z := range cfg {
		out[i] = pricing.ZoneRange{Name: z.Name, From: z.From, To: z.To}
	}
	return out
}

// healthChecks checks the database, and Redis when it is in use.
func healthChecks(ctx context.Context, db *persistence.Database, stores *cache.Factory) map[string]handler.HealthCheck {
	checks := map[string]handler.HealthCheck{"database": db.Ping}
	client, err := stores.Connect(ctx)
	if err == nil && client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	}
	return checks
}
