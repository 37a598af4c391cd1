package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/adplace/backend/internal/config"
	"github.com/adplace/backend/internal/db"
	"github.com/adplace/backend/internal/escrow"
	"github.com/adplace/backend/internal/events"
	apphttp "github.com/adplace/backend/internal/http"
	"github.com/adplace/backend/internal/http/handlers"
	"github.com/adplace/backend/internal/repositories"
	"github.com/adplace/backend/internal/services"
	"github.com/adplace/backend/internal/telegram"
	"github.com/adplace/backend/internal/ton"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// TON
	tonAPI, err := ton.Connect(ctx, ton.ConnectConfig{
		Network:        cfg.TONNetwork,
		LiteServerHost: cfg.LiteServerHost,
		LiteServerPort: cfg.LiteServerPort,
		LiteServerKey:  cfg.LiteServerKey,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to TON", zap.Error(err))
	}

	cipher, err := escrow.NewSeedCipher(cfg.EscrowMasterKey)
	if err != nil {
		log.Fatal("invalid escrow master key", zap.Error(err))
	}
	feeNano, err := ton.ParseTON(cfg.NetworkFeeTON)
	if err != nil {
		log.Fatal("invalid network fee", zap.Error(err))
	}
	wallets := escrow.NewManager(tonAPI, cipher, feeNano, log)

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	dealRepo := repositories.NewDealRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Services
	tgClient := telegram.NewClient(cfg.BotAPIURL, cfg.BotToken, log)
	notifier := services.NewNotifier(tgClient, channelRepo, userRepo, log)
	gate := services.NewRedisJobGate(rdb)
	dealService := services.NewDealService(
		dealRepo, channelRepo, userRepo, auditRepo,
		wallets, notifier, gate, publisher,
		cfg.PaymentWindow, log,
	)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	dealHandler := handlers.NewDealHandler(dealService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, dealHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
