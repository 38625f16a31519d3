package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/reward-service/internal/adapter"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/types"
)

type fakeGrants struct {
	mu        sync.Mutex
	unsettled []*models.RewardGrant
	settled   map[string]bool
	findErr   error
}

func newFakeGrants(grants ...*models.RewardGrant) *fakeGrants {
	return &fakeGrants{unsettled: grants, settled: make(map[string]bool)}
}

func (f *fakeGrants) FindUnsettled(ctx context.Context, olderThan time.Time, limit int) ([]*models.RewardGrant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.findErr != nil {
		return nil, f.findErr
	}
	if len(f.unsettled) > limit {
		return f.unsettled[:limit], nil
	}
	return f.unsettled, nil
}

func (f *fakeGrants) MarkSettled(ctx context.Context, accountID types.AccountID, rewardID types.RewardID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.settled[fmt.Sprintf("%s/%s", accountID, rewardID)] = true
	return nil
}

type fakeWallets struct {
	wallets map[types.WalletID]*models.Wallet
}

func (f *fakeWallets) GetByID(ctx context.Context, id types.WalletID) (*models.Wallet, error) {
	if wallet, ok := f.wallets[id]; ok {
		return wallet, nil
	}
	return nil, fmt.Errorf("wallet %s not found", id)
}

func (f *fakeWallets) ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.Wallet, error) {
	var out []*models.Wallet
	for _, wallet := range f.wallets {
		if wallet.AccountID == accountID {
			out = append(out, wallet)
		}
	}
	return out, nil
}

type fakeSettlement struct {
	mu    sync.Mutex
	keys  []string
	calls []*adapter.TransferInput
}

func (f *fakeSettlement) Transfer(ctx context.Context, input *adapter.TransferInput, idempotencyKey string) (*adapter.TransferReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.keys = append(f.keys, idempotencyKey)
	f.calls = append(f.calls, input)
	return &adapter.TransferReceipt{TransactionID: "tx", Status: "settled"}, nil
}

func newTestWorker(t *testing.T, grants *fakeGrants, settlement *fakeSettlement) *ReconcileWorker {
	t.Helper()

	wallets := &fakeWallets{wallets: map[types.WalletID]*models.Wallet{
		"funder-wallet": {ID: "funder-wallet", AccountID: "funder-acct", Currency: types.CurrencyBtc},
		"w1":            {ID: "w1", AccountID: "acct1", Currency: types.CurrencyBtc},
		"w2":            {ID: "w2", AccountID: "acct2", Currency: types.CurrencyBtc},
	}}

	worker, err := NewReconcileWorker(&ReconcileWorkerConfig{
		Grants:         grants,
		Wallets:        wallets,
		Settlement:     settlement,
		Currency:       types.CurrencyBtc,
		FunderWalletID: "funder-wallet",
		Interval:       10 * time.Millisecond,
		GracePeriod:    time.Minute,
		BatchSize:      10,
	})
	if err != nil {
		t.Fatalf("NewReconcileWorker() error = %v", err)
	}
	return worker
}

func TestSweep_ReDrivesUnsettledGrants(t *testing.T) {
	grants := newFakeGrants(
		&models.RewardGrant{AccountID: "acct1", RewardID: "quizA", Amount: 500},
		&models.RewardGrant{AccountID: "acct2", RewardID: "sat", Amount: 2},
	)
	settlement := &fakeSettlement{}
	worker := newTestWorker(t, grants, settlement)

	settled, err := worker.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if settled != 2 {
		t.Errorf("settled = %d, want 2", settled)
	}

	if len(settlement.calls) != 2 {
		t.Fatalf("transfer calls = %d, want 2", len(settlement.calls))
	}
	if settlement.calls[0].Amount != 500 || settlement.calls[0].RecipientWalletID != "w1" {
		t.Errorf("first transfer = %+v", settlement.calls[0])
	}

	// The re-drive must reuse the original claim's idempotency key
	if settlement.keys[0] != adapter.IdempotencyKey("acct1", "quizA") {
		t.Errorf("idempotency key = %s", settlement.keys[0])
	}

	if !grants.settled["acct1/quizA"] || !grants.settled["acct2/sat"] {
		t.Errorf("settled map = %v", grants.settled)
	}
}

func TestSweep_SkipsGrantWithoutWallet(t *testing.T) {
	grants := newFakeGrants(
		&models.RewardGrant{AccountID: "no-wallet-acct", RewardID: "quizA", Amount: 500},
		&models.RewardGrant{AccountID: "acct1", RewardID: "sat", Amount: 2},
	)
	settlement := &fakeSettlement{}
	worker := newTestWorker(t, grants, settlement)

	settled, err := worker.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}

	// One grant failed wallet resolution, the other settled
	if settled != 1 {
		t.Errorf("settled = %d, want 1", settled)
	}
	if grants.settled["no-wallet-acct/quizA"] {
		t.Error("grant without wallet must stay unsettled")
	}
	if !grants.settled["acct1/sat"] {
		t.Error("healthy grant should settle")
	}
}

func TestSweep_RespectsBatchSize(t *testing.T) {
	var batch []*models.RewardGrant
	for i := 0; i < 25; i++ {
		batch = append(batch, &models.RewardGrant{AccountID: "acct1", RewardID: types.RewardID(fmt.Sprintf("r%d", i)), Amount: 1})
	}
	grants := newFakeGrants(batch...)
	settlement := &fakeSettlement{}
	worker := newTestWorker(t, grants, settlement)

	settled, err := worker.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if settled != 10 {
		t.Errorf("settled = %d, want batch size 10", settled)
	}
}

func TestSweep_PropagatesListError(t *testing.T) {
	grants := newFakeGrants()
	grants.findErr = fmt.Errorf("pg down")
	worker := newTestWorker(t, grants, &fakeSettlement{})

	if _, err := worker.Sweep(context.Background()); err == nil {
		t.Fatal("Sweep() expected error")
	}
}

func TestReconcileWorker_StartStop(t *testing.T) {
	grants := newFakeGrants()
	worker := newTestWorker(t, grants, &fakeSettlement{})
	ctx := context.Background()

	if err := worker.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := worker.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	time.Sleep(30 * time.Millisecond)

	if err := worker.Stop(ctx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := worker.Stop(ctx); err == nil {
		t.Error("second Stop() should fail")
	}
}
