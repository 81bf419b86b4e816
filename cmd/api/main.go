package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/flowbit/ticket-service/internal/api/http"
	"github.com/flowbit/ticket-service/internal/api/http/handlers"
	"github.com/flowbit/ticket-service/internal/auth"
	"github.com/flowbit/ticket-service/internal/config"
	"github.com/flowbit/ticket-service/internal/events"
	"github.com/flowbit/ticket-service/internal/observability"
	"github.com/flowbit/ticket-service/internal/persistence"
	"github.com/flowbit/ticket-service/internal/realtime"
	"github.com/flowbit/ticket-service/internal/registry"
	"github.com/flowbit/ticket-service/internal/repository"
	"github.com/flowbit/ticket-service/internal/service"
	"github.com/flowbit/ticket-service/internal/workflow"
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

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisStore := persistence.NewRedis(cfg.Redis, logger)
	defer redisStore.Close()

	screenRegistry, err := registry.Load(cfg.Registry.Path)
	if err != nil {
		logger.Fatal("failed to load screen registry", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()

	hub := realtime.NewHub()
	go hub.Run(ctx)

	bridge := realtime.NewBridge(hub, redisStore.Client, cfg.Redis.FanoutChannel, logger)
	bridge.RegisterHandlers(dispatcher)
	go bridge.Run(ctx)

	engineClient := workflow.NewEngineClient(cfg.Workflow, logger)

	authService := service.NewAuthService(cfg.Auth, userRepo)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: ticketRepo,
		Workflow:   engineClient,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	webhookService := service.NewWebhookService(cfg.Workflow, ticketRepo, dispatcher, logger)

	authMiddleware := auth.NewMiddleware(authService.TokenManager())

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, cfg.App, logger, metrics)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Auth:            authMiddleware,
		AuthHandler:     handlers.NewAuthHandler(authService),
		TicketsHandler:  handlers.NewTicketsHandler(ticketService),
		WebhookHandler:  handlers.NewWebhookHandler(webhookService),
		ScreensHandler:  handlers.NewScreensHandler(screenRegistry),
		HealthHandler:   handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisStore),
		RealtimeUpgrade: realtime.Upgrade,
		RealtimeHandler: realtime.NewHandler(hub, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	// drain in-flight requests before stopping the hub and bridge
	_ = app.Shutdown()
	cancel()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
