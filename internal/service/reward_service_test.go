package service

import (
	"context"
	goerrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/reward-service/internal/adapter"
	"github.com/reward-service/internal/authz"
	"github.com/reward-service/internal/catalog"
	"github.com/reward-service/internal/config"
	"github.com/reward-service/internal/errors"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/storage"
	"github.com/reward-service/internal/types"
)

// In-memory fakes for the pipeline's collaborators

type mockAccountRepo struct {
	accounts map[types.AccountID]*models.Account
}

func (m *mockAccountRepo) GetByID(ctx context.Context, id types.AccountID) (*models.Account, error) {
	if account, ok := m.accounts[id]; ok {
		return account, nil
	}
	return nil, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
}

type mockUserRepo struct {
	users map[types.UserID]*models.User
}

func (m *mockUserRepo) GetByID(ctx context.Context, id types.UserID) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return nil, fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
}

type mockWalletRepo struct {
	wallets map[types.WalletID]*models.Wallet
}

func (m *mockWalletRepo) GetByID(ctx context.Context, id types.WalletID) (*models.Wallet, error) {
	if wallet, ok := m.wallets[id]; ok {
		return wallet, nil
	}
	return nil, fmt.Errorf("wallet %s: %w", id, storage.ErrNotFound)
}

func (m *mockWalletRepo) ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.Wallet, error) {
	var wallets []*models.Wallet
	for _, wallet := range m.wallets {
		if wallet.AccountID == accountID {
			wallets = append(wallets, wallet)
		}
	}
	return wallets, nil
}

type mockIPRepo struct {
	last map[types.AccountID]*models.AccountIP
}

func (m *mockIPRepo) FindLastByAccount(ctx context.Context, accountID types.AccountID) (*models.AccountIP, error) {
	if accountIP, ok := m.last[accountID]; ok {
		return accountIP, nil
	}
	return nil, fmt.Errorf("ip history for account %s: %w", accountID, storage.ErrNotFound)
}

type grantKey struct {
	accountID types.AccountID
	rewardID  types.RewardID
}

// mockGrantLedger mirrors the storage guarantee: TryGrant is an atomic
// compare-and-set per key.
type mockGrantLedger struct {
	mu          sync.Mutex
	grants      map[grantKey]*models.RewardGrant
	tryCalls    int
	failTry     error
	failSettled error
}

func newMockGrantLedger() *mockGrantLedger {
	return &mockGrantLedger{grants: make(map[grantKey]*models.RewardGrant)}
}

func (m *mockGrantLedger) TryGrant(ctx context.Context, accountID types.AccountID, rewardID types.RewardID, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tryCalls++
	if m.failTry != nil {
		return false, m.failTry
	}

	key := grantKey{accountID, rewardID}
	if _, ok := m.grants[key]; ok {
		return true, nil
	}
	m.grants[key] = &models.RewardGrant{AccountID: accountID, RewardID: rewardID, Amount: amount}
	return false, nil
}

func (m *mockGrantLedger) MarkSettled(ctx context.Context, accountID types.AccountID, rewardID types.RewardID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failSettled != nil {
		return m.failSettled
	}
	if grant, ok := m.grants[grantKey{accountID, rewardID}]; ok {
		grant.Settled = true
	}
	return nil
}

func (m *mockGrantLedger) ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.RewardGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var grants []*models.RewardGrant
	for key, grant := range m.grants {
		if key.accountID == accountID {
			grants = append(grants, grant)
		}
	}
	return grants, nil
}

func (m *mockGrantLedger) grantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.grants)
}

func (m *mockGrantLedger) tryGrantCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tryCalls
}

type mockSettlement struct {
	mu       sync.Mutex
	calls    []*adapter.TransferInput
	keys     []string
	failWith error
}

func (m *mockSettlement) Transfer(ctx context.Context, input *adapter.TransferInput, idempotencyKey string) (*adapter.TransferReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return nil, m.failWith
	}
	m.calls = append(m.calls, input)
	m.keys = append(m.keys, idempotencyKey)
	return &adapter.TransferReceipt{TransactionID: fmt.Sprintf("tx-%d", len(m.calls)), Status: "settled"}, nil
}

func (m *mockSettlement) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type mockAuditor struct {
	mu     sync.Mutex
	events []*models.AuditEvent
}

func (m *mockAuditor) RecordDecision(ctx context.Context, event *models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// fixture wires a service whose happy path succeeds: acct1 has a US phone,
// clean US IP history and a BTC wallet; the funder wallet exists.
type fixture struct {
	service    *RewardService
	accounts   *mockAccountRepo
	users      *mockUserRepo
	wallets    *mockWalletRepo
	ips        *mockIPRepo
	ledger     *mockGrantLedger
	settlement *mockSettlement
	auditor    *mockAuditor
}

type fixtureOption func(*fixture, *policies)

type policies struct {
	phone config.PolicySettings
	ip    config.PolicySettings
}

func withPhonePolicy(settings config.PolicySettings) fixtureOption {
	return func(f *fixture, p *policies) { p.phone = settings }
}

func withIPPolicy(settings config.PolicySettings) fixtureOption {
	return func(f *fixture, p *policies) { p.ip = settings }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		accounts: &mockAccountRepo{accounts: map[types.AccountID]*models.Account{
			"acct1":       {ID: "acct1", UserID: "user1", Status: types.AccountStatusActive},
			"funder-acct": {ID: "funder-acct", UserID: "funder-user", Status: types.AccountStatusActive},
		}},
		users: &mockUserRepo{users: map[types.UserID]*models.User{
			"user1": {ID: "user1", Phone: "+15551234567", PhoneMetadata: &models.PhoneMetadata{CountryCode: "US", Carrier: "tmobile"}},
		}},
		wallets: &mockWalletRepo{wallets: map[types.WalletID]*models.Wallet{
			"funder-wallet": {ID: "funder-wallet", AccountID: "funder-acct", Currency: types.CurrencyBtc},
			"w1":            {ID: "w1", AccountID: "acct1", Currency: types.CurrencyBtc},
		}},
		ips: &mockIPRepo{last: map[types.AccountID]*models.AccountIP{
			"acct1": {AccountID: "acct1", Metadata: models.IPMetadata{IP: "203.0.113.7", Country: "US", ASN: "AS15169"}},
		}},
		ledger:     newMockGrantLedger(),
		settlement: &mockSettlement{},
		auditor:    &mockAuditor{},
	}

	p := &policies{}
	for _, opt := range opts {
		opt(f, p)
	}

	f.service = NewRewardService(
		RewardServiceConfig{Currency: types.CurrencyBtc, FunderWalletID: "funder-wallet"},
		catalog.New(map[types.RewardID]int64{"quizA": 500, "sat": 2}),
		authz.NewAuthorizer(p.phone),
		authz.NewAuthorizer(p.ip),
		f.accounts,
		f.users,
		f.wallets,
		f.ips,
		f.ledger,
		f.settlement,
		f.auditor,
		nil,
	)
	return f
}

func assertCode(t *testing.T, err error, wantCode string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error with code %s, got nil", wantCode)
	}
	var catErr *errors.CategorizedError
	if !goerrors.As(err, &catErr) {
		t.Fatalf("expected CategorizedError, got %T: %v", err, err)
	}
	if catErr.Code != wantCode {
		t.Errorf("error code = %s, want %s (err: %v)", catErr.Code, wantCode, err)
	}
}

func TestGrantReward_Success(t *testing.T) {
	f := newFixture(t)

	receipt, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
	if err != nil {
		t.Fatalf("GrantReward() error = %v", err)
	}

	if receipt.RewardID != "quizA" || receipt.Amount != 500 || receipt.AlreadyGranted {
		t.Errorf("receipt = %+v, want quizA/500/first grant", receipt)
	}

	if f.settlement.callCount() != 1 {
		t.Fatalf("settlement calls = %d, want 1", f.settlement.callCount())
	}
	call := f.settlement.calls[0]
	if call.SenderWalletID != "funder-wallet" || call.RecipientWalletID != "w1" {
		t.Errorf("transfer wallets = %s -> %s", call.SenderWalletID, call.RecipientWalletID)
	}
	if call.Amount != 500 || call.Memo != "quizA" || call.SenderAccountID != "funder-acct" {
		t.Errorf("transfer = %+v", call)
	}
	if f.settlement.keys[0] != adapter.IdempotencyKey("acct1", "quizA") {
		t.Errorf("idempotency key = %s", f.settlement.keys[0])
	}

	grant := f.ledger.grants[grantKey{"acct1", "quizA"}]
	if grant == nil || !grant.Settled {
		t.Errorf("grant = %+v, want recorded and settled", grant)
	}
}

func TestGrantReward_SecondClaimDoesNotSettleAgain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.service.GrantReward(ctx, "acct1", "quizA")
	if err != nil {
		t.Fatalf("first GrantReward() error = %v", err)
	}
	if first.AlreadyGranted {
		t.Error("first claim reported AlreadyGranted")
	}

	second, err := f.service.GrantReward(ctx, "acct1", "quizA")
	if err != nil {
		t.Fatalf("second GrantReward() error = %v", err)
	}
	if !second.AlreadyGranted || second.Amount != 500 {
		t.Errorf("second receipt = %+v, want AlreadyGranted with amount 500", second)
	}

	// Exactly one settlement across both calls
	if f.settlement.callCount() != 1 {
		t.Errorf("settlement calls = %d, want 1", f.settlement.callCount())
	}
}

func TestGrantReward_ConcurrentClaimsSettleOnce(t *testing.T) {
	f := newFixture(t)

	const claims = 32
	var wg sync.WaitGroup
	receipts := make([]*models.RewardReceipt, claims)
	errs := make([]error, claims)

	for i := 0; i < claims; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = f.service.GrantReward(context.Background(), "acct1", "quizA")
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < claims; i++ {
		if errs[i] != nil {
			t.Fatalf("claim %d error = %v", i, errs[i])
		}
		if !receipts[i].AlreadyGranted {
			fresh++
		}
	}

	if fresh != 1 {
		t.Errorf("fresh grants = %d, want exactly 1", fresh)
	}
	if f.settlement.callCount() != 1 {
		t.Errorf("settlement calls = %d, want exactly 1", f.settlement.callCount())
	}
	if f.ledger.grantCount() != 1 {
		t.Errorf("ledger grants = %d, want 1", f.ledger.grantCount())
	}
}

func TestGrantReward_InvalidAccountID(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GrantReward(context.Background(), "not a valid id!", "quizA")
	assertCode(t, err, "INVALID_ACCOUNT_ID")
}

func TestGrantReward_UnknownRewardNeverReachesLedger(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GrantReward(context.Background(), "acct1", "noSuchReward")
	assertCode(t, err, "INVALID_REWARD_ID")

	if f.ledger.tryGrantCalls() != 0 {
		t.Errorf("grant ledger calls = %d, want 0", f.ledger.tryGrantCalls())
	}
	if f.settlement.callCount() != 0 {
		t.Errorf("settlement calls = %d, want 0", f.settlement.callCount())
	}
}

func TestGrantReward_FunderMisconfiguration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(f *fixture)
	}{
		{
			name: "funder wallet missing",
			mutate: func(f *fixture) {
				delete(f.wallets.wallets, "funder-wallet")
			},
		},
		{
			name: "funder wallet wrong currency",
			mutate: func(f *fixture) {
				f.wallets.wallets["funder-wallet"].Currency = types.CurrencyUsd
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.mutate(f)

			_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
			assertCode(t, err, "FUNDER_MISCONFIGURED")

			if f.ledger.tryGrantCalls() != 0 {
				t.Errorf("grant ledger calls = %d, want 0", f.ledger.tryGrantCalls())
			}
		})
	}
}

func TestGrantReward_RecipientNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.GrantReward(context.Background(), "ghost", "quizA")
	assertCode(t, err, "ACCOUNT_NOT_FOUND")
}

func TestGrantReward_UserNotFound(t *testing.T) {
	f := newFixture(t)
	delete(f.users.users, "user1")

	_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
	assertCode(t, err, "USER_NOT_FOUND")
}

func TestGrantReward_PhoneChecks(t *testing.T) {
	t.Run("US phone passes with KP deny list", func(t *testing.T) {
		f := newFixture(t, withPhonePolicy(config.PolicySettings{DenyCountries: []string{"KP"}}))

		if _, err := f.service.GrantReward(context.Background(), "acct1", "quizA"); err != nil {
			t.Fatalf("GrantReward() error = %v", err)
		}
	})

	t.Run("missing phone metadata maps to reward-specific error", func(t *testing.T) {
		f := newFixture(t)
		f.users.users["user1"].PhoneMetadata = nil

		_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
		assertCode(t, err, "INVALID_PHONE_FOR_REWARD")

		if !goerrors.Is(err, authz.ErrMissingMetadata) {
			t.Errorf("error should wrap the missing-metadata cause: %v", err)
		}
	})

	t.Run("denied phone country maps to reward-specific error", func(t *testing.T) {
		f := newFixture(t, withPhonePolicy(config.PolicySettings{DenyCountries: []string{"US"}}))

		_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
		assertCode(t, err, "INVALID_PHONE_FOR_REWARD")

		if f.ledger.tryGrantCalls() != 0 {
			t.Errorf("grant ledger calls = %d, want 0", f.ledger.tryGrantCalls())
		}
	})
}

func TestGrantReward_IPChecks(t *testing.T) {
	t.Run("denied ASN fails before any ledger write", func(t *testing.T) {
		f := newFixture(t, withIPPolicy(config.PolicySettings{DenyASNs: []string{"AS1234"}}))
		f.ips.last["acct1"].Metadata.ASN = "AS1234"

		_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
		assertCode(t, err, "POLICY_DENIED")

		var catErr *errors.CategorizedError
		goerrors.As(err, &catErr)
		if catErr.Details["rule"] != authz.RuleASNDenied {
			t.Errorf("rule detail = %v, want %s", catErr.Details["rule"], authz.RuleASNDenied)
		}

		if f.ledger.tryGrantCalls() != 0 {
			t.Errorf("grant ledger calls = %d, want 0", f.ledger.tryGrantCalls())
		}
		if f.settlement.callCount() != 0 {
			t.Errorf("settlement calls = %d, want 0", f.settlement.callCount())
		}
	})

	t.Run("no recorded IP history fails before grant step", func(t *testing.T) {
		f := newFixture(t)
		delete(f.ips.last, "acct1")

		_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
		assertCode(t, err, "INVALID_IP_METADATA")

		if f.ledger.tryGrantCalls() != 0 {
			t.Errorf("grant ledger calls = %d, want 0", f.ledger.tryGrantCalls())
		}
	})

	t.Run("IP metadata without country maps to metadata error", func(t *testing.T) {
		f := newFixture(t)
		f.ips.last["acct1"].Metadata.Country = ""

		_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
		assertCode(t, err, "INVALID_IP_METADATA")
	})

	t.Run("proxy IP denied when policy rejects proxies", func(t *testing.T) {
		f := newFixture(t, withIPPolicy(config.PolicySettings{RejectProxies: true}))
		f.ips.last["acct1"].Metadata.Proxy = true

		_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
		assertCode(t, err, "POLICY_DENIED")
	})
}

func TestGrantReward_NoWalletForCurrencyNeverSettles(t *testing.T) {
	f := newFixture(t)
	f.wallets.wallets["w1"].Currency = types.CurrencyUsd

	_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
	assertCode(t, err, "NO_WALLET_FOR_CURRENCY")

	if f.settlement.callCount() != 0 {
		t.Errorf("settlement calls = %d, want 0", f.settlement.callCount())
	}
}

func TestGrantReward_LedgerFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.ledger.failTry = fmt.Errorf("connection reset")

	_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
	assertCode(t, err, "REPOSITORY_ERROR")

	if f.settlement.callCount() != 0 {
		t.Errorf("settlement calls = %d, want 0", f.settlement.callCount())
	}
}

func TestGrantReward_SettlementFailureKeepsGrant(t *testing.T) {
	f := newFixture(t)
	f.settlement.failWith = fmt.Errorf("ledger unavailable")

	_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
	assertCode(t, err, "SETTLEMENT_ERROR")

	var catErr *errors.CategorizedError
	goerrors.As(err, &catErr)
	if granted, _ := catErr.Details["granted"].(bool); !granted {
		t.Error("settlement error should mark the grant as recorded")
	}

	// The grant stays recorded and unsettled for reconciliation
	grant := f.ledger.grants[grantKey{"acct1", "quizA"}]
	if grant == nil || grant.Settled {
		t.Errorf("grant = %+v, want recorded and unsettled", grant)
	}
}

func TestGrantReward_AuditTrail(t *testing.T) {
	f := newFixture(t, withIPPolicy(config.PolicySettings{DenyCountries: []string{"KP"}}))
	f.ips.last["acct1"].Metadata.Country = "KP"

	_, err := f.service.GrantReward(context.Background(), "acct1", "quizA")
	assertCode(t, err, "POLICY_DENIED")

	if len(f.auditor.events) != 2 {
		t.Fatalf("audit events = %d, want 2 (phone + ip)", len(f.auditor.events))
	}

	phone := f.auditor.events[0]
	if phone.Signal != types.SignalPhone || phone.Outcome != types.OutcomeAuthorized {
		t.Errorf("phone audit = %+v", phone)
	}

	ip := f.auditor.events[1]
	if ip.Signal != types.SignalIP || ip.Outcome != types.OutcomeDenied || ip.Rule != authz.RuleCountryDenied {
		t.Errorf("ip audit = %+v", ip)
	}
	if ip.Country != "KP" {
		t.Errorf("ip audit country = %s, want KP", ip.Country)
	}
}

func TestCheckedAccountID(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{raw: "acct1"},
		{raw: "5b3b5e2a-7c3f-4a0e-9f63-1f2d3c4b5a69"},
		{raw: "", wantErr: true},
		{raw: "has spaces", wantErr: true},
		{raw: "semi;colon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			_, err := CheckedAccountID(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckedAccountID(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}
