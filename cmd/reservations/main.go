package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/lab_reservations/internal/app"
	"github.com/Freeeeeet/lab_reservations/internal/config"
	"github.com/Freeeeeet/lab_reservations/internal/controller"
	"github.com/Freeeeeet/lab_reservations/internal/controller/handlers"
	"github.com/Freeeeeet/lab_reservations/internal/metrics"
	"github.com/Freeeeeet/lab_reservations/internal/notify"
	"github.com/Freeeeeet/lab_reservations/internal/repository"
	"github.com/Freeeeeet/lab_reservations/internal/service"
	httptransport "github.com/Freeeeeet/lab_reservations/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting lab reservations",
		zap.String("environment", cfg.Environment),
		zap.Bool("env_file", cfg.EnvFileLoaded),
		zap.Bool("telegram", cfg.TelegramToken != ""),
		zap.Bool("amqp_audit", cfg.RabbitMQURL != ""),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}

	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = pool.Ping(pingCtx)
	cancel()
	if err != nil {
		return err
	}

	if cfg.MigrationsEnabled {
		migrator, err := app.NewMigrator(pool, logger)
		if err != nil {
			return err
		}
		defer migrator.Close()

		if err := migrator.Run(ctx); err != nil {
			return err
		}
	}

	userRepo := repository.NewUserRepository(pool)
	resourceRepo := repository.NewResourceRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var botInstance *bot.Bot
	if cfg.TelegramToken != "" {
		botInstance, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
	}

	var auditEmitter service.AuditEmitter = notify.NewLogAuditEmitter(logger)
	if cfg.RabbitMQURL != "" {
		publisher, err := notify.NewAMQPAuditPublisher(cfg.RabbitMQURL, cfg.AuditExchange, logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
		auditEmitter = publisher
	}

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if botInstance != nil {
		notifier = notify.NewTelegramNotifier(botInstance, userRepo)
	}

	dispatcher := notify.NewDispatcher(auditEmitter, notifier, logger, 0)
	dispatcher.Start()
	defer dispatcher.Stop()

	reservationService := service.NewReservationService(
		reservationRepo,
		resourceRepo,
		userRepo,
		dispatcher,
		dispatcher,
		logger,
		service.WithMetrics(m),
		service.WithLocation(cfg.Location),
		service.WithRetryConfig(service.RetryConfig{
			MaxRetries:  cfg.TxMaxRetries,
			BaseBackoff: cfg.TxBaseBackoff,
			MaxBackoff:  cfg.TxMaxBackoff,
		}),
	)
	userService := service.NewUserService(userRepo, logger)

	scheduler := app.NewScheduler(reservationService, cfg.SweepInterval, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httptransport.NewRouter(reservationService, pool, registry, logger)
	server := httptransport.NewServer(cfg.HTTPAddr, router, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Run(gctx)
	})

	if botInstance != nil {
		cmdHandlers := handlers.NewHandlers(userService, reservationService, cfg.Location, logger)
		botController := controller.NewBotController(botInstance, cmdHandlers, logger)

		g.Go(func() error {
			if err := botController.RegisterHandlers(gctx); err != nil {
				// Меню команд не критично для работы бота
				logger.Warn("Bot commands were not registered", zap.Error(err))
			}
			return botController.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
