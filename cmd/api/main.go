package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/fieldserve/ticket-engine/internal/api/http"
	"github.com/fieldserve/ticket-engine/internal/api/http/handlers"
	"github.com/fieldserve/ticket-engine/internal/auth"
	"github.com/fieldserve/ticket-engine/internal/config"
	"github.com/fieldserve/ticket-engine/internal/engine"
	"github.com/fieldserve/ticket-engine/internal/events"
	"github.com/fieldserve/ticket-engine/internal/notify"
	"github.com/fieldserve/ticket-engine/internal/observability"
	"github.com/fieldserve/ticket-engine/internal/persistence"
	"github.com/fieldserve/ticket-engine/internal/repository"
	"github.com/fieldserve/ticket-engine/internal/scheduling"
	"github.com/fieldserve/ticket-engine/internal/worker"
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

	pool := pg.PoolHandle()
	if pool != nil && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo  repository.TicketRepository
		userRepo    repository.UserRepository
		billingRepo repository.BillingQueueRepository
	)
	if pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		userRepo = repository.NewUserRepository(pool)
		billingRepo = repository.NewBillingQueueRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		userRepo = repository.NewMemoryUserRepository()
		billingRepo = repository.NewMemoryBillingQueueRepository()
	}

	var deliveryLog repository.NotificationLogRepository
	if redis.Client != nil {
		deliveryLog = repository.NewNotificationLogRepository(redis.Client)
	} else {
		deliveryLog = repository.NewMemoryNotificationLog()
	}

	dispatcher := events.NewInMemoryDispatcher()
	scheduler := scheduling.NewLogScheduler(logger)

	eng := engine.New(engine.Dependencies{
		TicketRepo:  ticketRepo,
		UserRepo:    userRepo,
		BillingRepo: billingRepo,
		Dispatcher:  dispatcher,
		Scheduler:   scheduler,
		Logger:      logger,
		Billing:     cfg.Billing,
		Policy:      cfg.Engine,
		OpsEmail:    cfg.Notification.OpsEmail,
	})

	sender := notify.NewLogSender(cfg.Notification.EmailFrom, logger)
	notifier := notify.NewService(dispatcher, sender, deliveryLog, logger)
	worker.StartNotificationWorker(notifier)

	authService := auth.NewService(cfg.Auth, userRepo)
	authMiddleware := auth.NewMiddleware(authService.TokenManager(), userRepo)

	metrics := observability.NewMetrics()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(eng),
		Workflow:       handlers.NewWorkflowHandler(eng),
		Billing:        handlers.NewBillingHandler(billingRepo),
		Notifications:  handlers.NewNotificationsHandler(notifier),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
