package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"chess-mint-rewards/config"
	"chess-mint-rewards/handlers"
	"chess-mint-rewards/logging"
	"chess-mint-rewards/middleware"
	"chess-mint-rewards/models"
	"chess-mint-rewards/observability"
	"chess-mint-rewards/realtime"
	"chess-mint-rewards/services"
	"chess-mint-rewards/utils"
	"chess-mint-rewards/workers"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Env: cfg.Env})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, observability.OTelConfig{
		ServiceName: cfg.OTELServiceName,
		Endpoint:    cfg.OTELExporterOTLPEndpoint,
		Env:         cfg.Env,
	})
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	observability.RegisterMetrics()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.Fatal("failed to migrate database", zap.Error(err))
	}

	clock := clockwork.NewRealClock()
	store := services.NewTaskStore(db, clock)
	ledger := services.NewRewardLedger(db, clock)
	players := services.NewPlayerDirectory(db)
	registry := realtime.NewRegistry(logger)

	var notifier services.CompletionNotifier = registry
	if cfg.NATSURL != "" {
		fanout, err := realtime.NewFanout(cfg.NATSURL, cfg.NATSSubjectPrefix, registry, logger)
		if err != nil {
			logger.Fatal("failed to connect to nats", zap.Error(err))
		}
		defer fanout.Close()
		notifier = fanout
	}

	var uploader services.ObjectUploader
	if cfg.R2Bucket != "" {
		r2, err := utils.NewR2Uploader(ctx, utils.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			AccessKeySecret: cfg.R2AccessKeySecret,
			Bucket:          cfg.R2Bucket,
		})
		if err != nil {
			logger.Fatal("failed to initialize R2 client", zap.Error(err))
		}
		uploader = r2
	}
	catalog := services.NewMetadataCatalog(cfg.CDNBaseURL, uploader, logger)
	if uploader != nil {
		if err := catalog.PublishAll(ctx); err != nil {
			logger.Warn("collectible metadata upload failed", zap.Error(err))
		}
	}

	dispatcher, err := services.NewDispatcher(store, ledger, registry, services.DispatcherConfig{
		Grace:         cfg.MintGraceWindow,
		Stale:         cfg.MintStaleThreshold,
		SweepInterval: cfg.MintSweepInterval,
		PageSize:      cfg.MintPendingPageSize,
		Clock:         clock,
		MetadataURL:   catalog.URLFor,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create dispatcher", zap.Error(err))
	}
	if err := dispatcher.Start(); err != nil {
		logger.Fatal("failed to start dispatcher", zap.Error(err))
	}

	gateway := services.NewMintGateway(store, players, ledger, dispatcher, logger)
	reconciler := services.NewReconciler(store, ledger, notifier, logger)
	reclaimer := services.NewReclaimer(store, dispatcher, cfg.MintStaleThreshold, cfg.MintPendingPageSize, clock, logger)
	milestones := services.NewMilestoneService(db, gateway, players, clock, logger)
	authClient := services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.AuthServiceToken, logger)

	if cfg.SyncServiceURL != "" {
		syncWorker := workers.NewPlayerSyncWorker(db, cfg.SyncServiceURL, cfg.SyncEndpointPath, cfg.GameServiceToken, cfg.SyncInterval, logger)
		syncWorker.Start(ctx)
	} else {
		logger.Warn("SYNC_SERVICE_URL not set, player mirror sync disabled")
	}

	app := fiber.New(fiber.Config{
		BodyLimit:             1 * 1024 * 1024,
		DisableStartupMessage: true,
	})

	app.Use(middleware.GatewayAuthMiddleware(cfg.GameServiceToken, logger, "/health", "/metrics"))
	app.Use(middleware.RequestID())
	app.Use(middleware.Tracing())
	app.Use(middleware.AccessLog(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Request-ID, X-Service-Token, X-User-ID, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	deps := handlers.MintDeps{
		Store:      store,
		Gateway:    gateway,
		Reconciler: reconciler,
		Reclaimer:  reclaimer,
		Players:    players,
		Registry:   registry,
		Logger:     logger,
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	handlers.SetupRealtimeRoutes(app, middleware.StreamAuthMiddleware(authClient, logger), deps)

	secured := app.Group("/s", middleware.UserContextMiddleware(logger))
	handlers.SetupMintRoutes(secured, deps)
	handlers.SetupNotificationRoutes(secured, deps)
	handlers.SetupGameRoutes(secured, milestones, ledger, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	logger.Info("server running",
		zap.String("addr", cfg.HTTPAddr),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
		zap.Bool("nats_fanout", cfg.NATSURL != ""),
		zap.Duration("grace", cfg.MintGraceWindow),
		zap.Duration("stale", cfg.MintStaleThreshold),
	)

	<-ctx.Done()
	logger.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := dispatcher.Shutdown(); err != nil {
		logger.Warn("dispatcher shutdown", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
