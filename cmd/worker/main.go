package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adplace/backend/internal/config"
	"github.com/adplace/backend/internal/db"
	"github.com/adplace/backend/internal/escrow"
	"github.com/adplace/backend/internal/events"
	"github.com/adplace/backend/internal/repositories"
	"github.com/adplace/backend/internal/services"
	"github.com/adplace/backend/internal/telegram"
	"github.com/adplace/backend/internal/ton"
	"go.uber.org/zap"
)

// job is one recurring background check.
type job interface {
	Run(ctx context.Context) error
}

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

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

	// Repos
	dealRepo := repositories.NewDealRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	userRepo := repositories.NewUserRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	tgClient := telegram.NewClient(cfg.BotAPIURL, cfg.BotToken, log)
	prober := telegram.NewWebProber(10*time.Second, 3, log)
	notifier := services.NewNotifier(tgClient, channelRepo, userRepo, log)
	gate := services.NewRedisJobGate(rdb)

	verifier := services.NewPaymentVerifier(dealRepo, wallets, notifier, publisher, cfg.JobConcurrency, log)
	postPublisher := services.NewPublisher(dealRepo, channelRepo, tgClient, notifier, publisher, cfg.JobConcurrency, log)
	monitor := services.NewIntegrityMonitor(
		dealRepo, channelRepo, wallets, tgClient, prober, auditRepo,
		notifier, publisher, cfg.ProbeChatID, cfg.IntegrityInterval, cfg.JobConcurrency, log,
	)
	settlement := services.NewSettlement(
		dealRepo, channelRepo, wallets, auditRepo, notifier, publisher,
		monitor, cfg.CompletionBuffer, cfg.JobConcurrency, log,
	)
	reconciler := services.NewReconciler(
		dealRepo, channelRepo, wallets, auditRepo, notifier, publisher,
		gate, cfg.OwnerResponseWindow, cfg.ReviewWindow, log,
	)

	log.Info("worker started")

	verifyTicker := time.NewTicker(cfg.VerifyInterval)
	publishTicker := time.NewTicker(cfg.PublishInterval)
	monitorTicker := time.NewTicker(cfg.MonitorInterval)
	settleTicker := time.NewTicker(cfg.SettleInterval)
	reconcileTicker := time.NewTicker(cfg.ReconcileInterval)
	defer verifyTicker.Stop()
	defer publishTicker.Stop()
	defer monitorTicker.Stop()
	defer settleTicker.Stop()
	defer reconcileTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-verifyTicker.C:
			runJob(ctx, gate, verifier, "payment_verifier", log)
		case <-publishTicker.C:
			runJob(ctx, gate, postPublisher, "publisher", log)
		case <-monitorTicker.C:
			runJob(ctx, gate, monitor, "integrity_monitor", log)
		case <-settleTicker.C:
			runJob(ctx, gate, settlement, "settlement", log)
		case <-reconcileTicker.C:
			runJob(ctx, gate, reconciler, "reconciler", log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

// runJob skips the tick when the gate is parked (no active deals).
func runJob(ctx context.Context, gate services.JobGate, j job, name string, log *zap.Logger) {
	active, err := gate.Active(ctx)
	if err != nil {
		log.Warn("job gate check failed, running anyway", zap.String("job", name), zap.Error(err))
		active = true
	}
	if !active {
		return
	}
	if err := j.Run(ctx); err != nil {
		log.Error("job run failed", zap.String("job", name), zap.Error(err))
	}
}
