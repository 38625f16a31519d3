// Package worker re-drives reward grants whose settlement transfer never
// completed.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/reward-service/internal/adapter"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

// UnsettledSource lists grants that were recorded but never paid out
type UnsettledSource interface {
	FindUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]*models.RewardGrant, error)
	MarkSettled(ctx context.Context, accountID types.AccountID, rewardID types.RewardID) error
}

// WalletSource resolves wallets during reconciliation
type WalletSource interface {
	GetByID(ctx context.Context, id types.WalletID) (*models.Wallet, error)
	ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.Wallet, error)
}

// SettlementTrigger re-drives the payout transfer
type SettlementTrigger interface {
	Transfer(ctx context.Context, input *adapter.TransferInput, idempotencyKey string) (*adapter.TransferReceipt, error)
}

// ReconcileWorkerConfig holds configuration for the reconcile worker
type ReconcileWorkerConfig struct {
	Grants         UnsettledSource
	Wallets        WalletSource
	Settlement     SettlementTrigger
	Currency       types.WalletCurrency
	FunderWalletID types.WalletID
	Interval       time.Duration
	GracePeriod    time.Duration
	BatchSize      int
}

// ReconcileWorker periodically sweeps the grant ledger for grants that are
// recorded but unsettled and re-drives their transfers. Every re-drive uses
// the same deterministic idempotency key as the original attempt, so a
// transfer that actually went through is deduplicated at the ledger.
type ReconcileWorker struct {
	grants         UnsettledSource
	wallets        WalletSource
	settlement     SettlementTrigger
	currency       types.WalletCurrency
	funderWalletID types.WalletID
	interval       time.Duration
	gracePeriod    time.Duration
	batchSize      int
	running        bool
	mu             sync.Mutex
	stopCh         chan struct{}
	doneCh         chan struct{}
}

// NewReconcileWorker creates a new reconcile worker
func NewReconcileWorker(cfg *ReconcileWorkerConfig) (*ReconcileWorker, error) {
	if cfg.Grants == nil {
		return nil, fmt.Errorf("grant source cannot be nil")
	}
	if cfg.Wallets == nil {
		return nil, fmt.Errorf("wallet source cannot be nil")
	}
	if cfg.Settlement == nil {
		return nil, fmt.Errorf("settlement trigger cannot be nil")
	}
	if cfg.FunderWalletID == "" {
		return nil, fmt.Errorf("funder wallet id cannot be empty")
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = time.Minute
	}
	gracePeriod := cfg.GracePeriod
	if gracePeriod == 0 {
		gracePeriod = 5 * time.Minute
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &ReconcileWorker{
		grants:         cfg.Grants,
		wallets:        cfg.Wallets,
		settlement:     cfg.Settlement,
		currency:       cfg.Currency,
		funderWalletID: cfg.FunderWalletID,
		interval:       interval,
		gracePeriod:    gracePeriod,
		batchSize:      batchSize,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}, nil
}

// Start begins the reconciliation loop
func (w *ReconcileWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker is already running")
	}
	w.running = true
	w.mu.Unlock()

	logging.WithField("interval", w.interval.String()).Info("Starting reconcile worker")

	go w.pollLoop(ctx)

	return nil
}

// Stop gracefully stops the worker
func (w *ReconcileWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("reconcile worker is not running")
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		logging.Info("Reconcile worker stopped")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("stop timeout")
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

func (w *ReconcileWorker) pollLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			settled, err := w.Sweep(ctx)
			if err != nil {
				logging.WithError(err).Error("Reconcile sweep failed")
				continue
			}
			if settled > 0 {
				logging.WithField("settled", settled).Info("Reconciled unsettled grants")
			}
		}
	}
}

// Sweep processes one batch of unsettled grants. The grace period keeps the
// sweep from racing claims that are still in flight. Returns the number of
// grants settled this pass.
func (w *ReconcileWorker) Sweep(ctx context.Context) (int, error) {
	funderWallet, err := w.wallets.GetByID(ctx, w.funderWalletID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve funder wallet: %w", err)
	}

	grants, err := w.grants.FindUnsettled(ctx, time.Now().Add(-w.gracePeriod), w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unsettled grants: %w", err)
	}

	settled := 0
	for _, grant := range grants {
		if err := w.reconcileGrant(ctx, funderWallet, grant); err != nil {
			logging.WithError(err).WithFields(map[string]interface{}{
				"accountId": string(grant.AccountID),
				"rewardId":  string(grant.RewardID),
			}).Warn("Failed to reconcile grant")
			continue
		}
		settled++
	}

	return settled, nil
}

func (w *ReconcileWorker) reconcileGrant(ctx context.Context, funderWallet *models.Wallet, grant *models.RewardGrant) error {
	recipientWallet, err := w.findWalletForCurrency(ctx, grant.AccountID)
	if err != nil {
		return err
	}

	_, err = w.settlement.Transfer(ctx, &adapter.TransferInput{
		SenderWalletID:    funderWallet.ID,
		RecipientWalletID: recipientWallet.ID,
		Amount:            grant.Amount,
		Memo:              string(grant.RewardID),
		SenderAccountID:   funderWallet.AccountID,
	}, adapter.IdempotencyKey(grant.AccountID, grant.RewardID))
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}

	if err := w.grants.MarkSettled(ctx, grant.AccountID, grant.RewardID); err != nil {
		return fmt.Errorf("failed to mark settled: %w", err)
	}

	return nil
}

func (w *ReconcileWorker) findWalletForCurrency(ctx context.Context, accountID types.AccountID) (*models.Wallet, error) {
	wallets, err := w.wallets.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	for _, wallet := range wallets {
		if wallet.Currency == w.currency {
			return wallet, nil
		}
	}
	return nil, fmt.Errorf("account %s has no %s wallet", accountID, w.currency)
}
