// Package main provides the settlement reconciliation worker entry point.
// It sweeps the grant ledger for grants whose payout transfer never
// completed and re-drives them.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reward-service/internal/adapter"
	"github.com/reward-service/internal/config"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/storage"
	"github.com/reward-service/internal/types"
	"github.com/reward-service/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logging.InitGlobalLogger(
		logging.ParseLogLevel(cfg.Logging.Level),
		logging.ParseLogFormat(cfg.Logging.Format),
	)
	logger := logging.GetGlobalLogger()

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	rewardRepo := storage.NewRewardRepository(postgres)
	walletRepo := storage.NewWalletRepository(postgres)
	ledgerClient := adapter.NewLedgerClient(&cfg.Ledger)

	reconciler, err := worker.NewReconcileWorker(&worker.ReconcileWorkerConfig{
		Grants:         rewardRepo,
		Wallets:        walletRepo,
		Settlement:     ledgerClient,
		Currency:       types.WalletCurrency(cfg.Rewards.Currency),
		FunderWalletID: types.WalletID(cfg.Rewards.FunderWalletID),
		Interval:       cfg.Reconciler.Interval,
		GracePeriod:    cfg.Reconciler.GracePeriod,
		BatchSize:      cfg.Reconciler.BatchSize,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reconcile worker")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reconciler.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Failed to start reconcile worker")
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down reconciler...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := reconciler.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("Reconciler forced to shutdown")
	}

	logger.Info("Reconciler exited")
}
