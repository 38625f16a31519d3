// Package main provides the API server entry point for the reward service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reward-service/internal/adapter"
	"github.com/reward-service/internal/api"
	"github.com/reward-service/internal/authz"
	"github.com/reward-service/internal/catalog"
	"github.com/reward-service/internal/config"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/service"
	"github.com/reward-service/internal/storage"
	"github.com/reward-service/internal/types"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logLevel := logging.ParseLogLevel(cfg.Logging.Level)
	logFormat := logging.ParseLogFormat(cfg.Logging.Format)
	logging.InitGlobalLogger(logLevel, logFormat)

	logger := logging.GetGlobalLogger()
	logger.WithFields(map[string]interface{}{
		"level":  cfg.Logging.Level,
		"format": cfg.Logging.Format,
	}).Info("Structured logging initialized")

	// Initialize database connections
	logger.Info("Connecting to databases...")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()

	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redis.Close()

	clickhouse, err := storage.NewClickHouseDB(&cfg.Database.ClickHouse)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to ClickHouse")
	}
	defer clickhouse.Close()

	logger.Info("Database connections established")

	// Load the reward catalog
	rewardCatalog, err := catalog.Load(cfg.Rewards.CatalogFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load reward catalog")
	}
	logger.WithField("rewards", rewardCatalog.Len()).Info("Reward catalog loaded")

	// Initialize repositories
	accountRepo := storage.NewAccountRepository(postgres)
	userRepo := storage.NewUserRepository(postgres)
	walletRepo := storage.NewWalletRepository(postgres)
	accountIPRepo := storage.NewAccountIPRepository(postgres)
	rewardRepo := storage.NewRewardRepository(postgres)
	auditRepo := storage.NewAuditRepository(clickhouse)

	statusCache := storage.NewStatusCache(redis, cfg.Cache.TTL)

	// Initialize the ledger client
	ledgerClient := adapter.NewLedgerClient(&cfg.Ledger)

	// Initialize services
	logger.Info("Initializing services...")

	rewardService := service.NewRewardService(
		service.RewardServiceConfig{
			Currency:       types.WalletCurrency(cfg.Rewards.Currency),
			FunderWalletID: types.WalletID(cfg.Rewards.FunderWalletID),
		},
		rewardCatalog,
		authz.NewAuthorizer(cfg.Policy.Phone),
		authz.NewAuthorizer(cfg.Policy.IP),
		accountRepo,
		userRepo,
		walletRepo,
		accountIPRepo,
		rewardRepo,
		ledgerClient,
		auditRepo,
		statusCache,
	)

	statusService := service.NewStatusService(rewardCatalog, accountRepo, rewardRepo, statusCache)

	logger.Info("Services initialized")

	// Create server configuration
	serverConfig := &api.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		ClaimsPerMinute: cfg.RateLimit.ClaimsPerMinute,
		ClaimBurst:      cfg.RateLimit.Burst,
	}

	server := api.NewServer(serverConfig, rewardService, statusService, ledgerClient)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Server started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Fatal("Server forced to shutdown")
	}

	logger.Info("Server exited")
}
