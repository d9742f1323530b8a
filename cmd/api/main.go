package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/handoffdesk/chat-handoff/internal/api/http"
	"github.com/handoffdesk/chat-handoff/internal/api/http/handlers"
	"github.com/handoffdesk/chat-handoff/internal/auth"
	"github.com/handoffdesk/chat-handoff/internal/config"
	"github.com/handoffdesk/chat-handoff/internal/events"
	"github.com/handoffdesk/chat-handoff/internal/observability"
	"github.com/handoffdesk/chat-handoff/internal/persistence"
	"github.com/handoffdesk/chat-handoff/internal/realtime"
	"github.com/handoffdesk/chat-handoff/internal/repository"
	"github.com/handoffdesk/chat-handoff/internal/service"
	"github.com/handoffdesk/chat-handoff/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var rdb *persistence.Redis
	if needsRedis(cfg) {
		rdb = persistence.NewRedis(cfg.Redis, logger)
		defer rdb.Close()
	}
	redisClient := redisClientOf(rdb)

	backends := repository.Backends{Postgres: pg.PoolHandle(), Redis: redisClient}
	var dyn *persistence.Dynamo
	if cfg.Store.Driver == config.StoreDriverDynamo {
		dyn, err = persistence.NewDynamo(ctx, cfg.Dynamo, logger)
		if err != nil {
			logger.Fatal("failed to init dynamodb", zap.Error(err))
		}
		backends.Dynamo = dyn.Client
		backends.DynamoTable = dyn.Table
	}

	stores, err := repository.OpenStores(cfg.Store, backends)
	if err != nil {
		logger.Fatal("failed to open stores", zap.Error(err))
	}
	logger.Info("hand-off store ready", zap.String("driver", cfg.Store.Driver))

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	worker.RegisterMetrics(dispatcher, metrics)
	if cfg.Notification.RedisChannel != "" && redisClient != nil {
		dispatcher.SubscribeAll(events.NewRedisPublisher(redisClient, cfg.Notification.RedisChannel))
	}
	worker.StartNotificationWorker(ctx, service.NewNotificationService(dispatcher, logger, cfg.Notification))

	staffRepo := repository.NewStaffRepository(stores.Staff)
	directory := service.NewStaffDirectory(staffRepo, logger)
	queue := service.NewQueue(stores.Queue, logger)
	ledger := service.NewAssignmentLedger(stores.Assignments, directory, queue, logger)
	sessions := service.NewSessionStore(stores.Sessions, stores.Transcripts, logger)
	assigner := service.NewAutoAssigner(queue, directory, ledger, logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		StaffRepo: staffRepo,
		Directory: directory,
		Logger:    logger,
	})
	if err := authService.EnsureBootstrapAdmin(ctx, cfg.Auth); err != nil {
		logger.Fatal("failed to provision bootstrap admin", zap.Error(err))
	}

	hub := realtime.NewHub(logger)
	coordinator := realtime.NewCoordinator(hub, *cfg, realtime.Dependencies{
		Sessions:   sessions,
		Staff:      directory,
		Queue:      queue,
		Ledger:     ledger,
		Assigner:   assigner,
		Auth:       authService,
		Responder:  buildResponder(cfg, logger),
		Knowledge:  buildKnowledge(cfg, redisClient, logger),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	worker.StartQueueBroadcaster(ctx, coordinator, cfg.Handoff.QueueBroadcastInterval(), logger)

	var deps []handlers.Dependency
	if pg.PoolHandle() != nil {
		deps = append(deps, handlers.Dependency{Name: "postgres", Pinger: pg})
	}
	if rdb != nil {
		deps = append(deps, handlers.Dependency{Name: "redis", Pinger: rdb})
	}
	if dyn != nil {
		deps = append(deps, handlers.Dependency{Name: "dynamodb", Pinger: dyn})
	}
	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, deps...)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, DisableStartupMessage: true, Immutable: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         healthHandler,
		Staff:          handlers.NewStaffHandler(authService, directory, coordinator),
		Chats:          handlers.NewChatsHandler(coordinator, ledger),
		Queue:          handlers.NewQueueHandler(queue),
		Sessions:       handlers.NewSessionsHandler(sessions),
		AuthMiddleware: auth.NewAuthMiddleware(authService),
	})

	ready := func(ctx context.Context) error {
		if status, ok := healthHandler.Check(ctx); !ok {
			return errors.New("dependencies unavailable: " + joinStatus(status))
		}
		return nil
	}
	realtimeServer := &http.Server{
		Addr:              cfg.Realtime.Addr(),
		Handler:           realtime.NewRouter(realtime.NewHandler(ctx, coordinator, cfg.Realtime, logger), hub, metrics.Registry, cfg.Realtime.AllowedOrigins, ready),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()
	go func() {
		logger.Info("realtime listening", zap.String("addr", realtimeServer.Addr))
		if err := realtimeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("realtime listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := realtimeServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("realtime shutdown", zap.Error(err))
	}
	_ = app.ShutdownWithContext(shutdownCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
