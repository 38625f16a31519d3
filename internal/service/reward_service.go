// Package service implements the reward eligibility pipeline and the
// account-facing reward status listing.
package service

import (
	"context"
	goerrors "errors"
	"regexp"

	"github.com/reward-service/internal/adapter"
	"github.com/reward-service/internal/authz"
	"github.com/reward-service/internal/catalog"
	"github.com/reward-service/internal/errors"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/storage"
	"github.com/reward-service/internal/types"
)

// Repository interfaces consumed by the pipeline. Production wiring uses
// the storage package; tests substitute in-memory fakes.

// AccountRepository looks up accounts
type AccountRepository interface {
	GetByID(ctx context.Context, id types.AccountID) (*models.Account, error)
}

// UserRepository looks up user profiles
type UserRepository interface {
	GetByID(ctx context.Context, id types.UserID) (*models.User, error)
}

// WalletRepository looks up wallets
type WalletRepository interface {
	GetByID(ctx context.Context, id types.WalletID) (*models.Wallet, error)
	ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.Wallet, error)
}

// AccountIPRepository reads the account IP history
type AccountIPRepository interface {
	FindLastByAccount(ctx context.Context, accountID types.AccountID) (*models.AccountIP, error)
}

// GrantLedger records reward grants, atomically per (account, reward) key
type GrantLedger interface {
	TryGrant(ctx context.Context, accountID types.AccountID, rewardID types.RewardID, amount int64) (alreadyGranted bool, err error)
	MarkSettled(ctx context.Context, accountID types.AccountID, rewardID types.RewardID) error
	ListByAccount(ctx context.Context, accountID types.AccountID) ([]*models.RewardGrant, error)
}

// SettlementTrigger moves funds between wallets
type SettlementTrigger interface {
	Transfer(ctx context.Context, input *adapter.TransferInput, idempotencyKey string) (*adapter.TransferReceipt, error)
}

// Auditor records policy authorization decisions
type Auditor interface {
	RecordDecision(ctx context.Context, event *models.AuditEvent) error
}

// StatusInvalidator drops cached reward status listings after a grant
type StatusInvalidator interface {
	Invalidate(ctx context.Context, accountID types.AccountID) error
}

// RewardServiceConfig holds pipeline configuration. The funder wallet is an
// explicit injected value, resolved per request through the wallet
// repository rather than memoized globally.
type RewardServiceConfig struct {
	Currency       types.WalletCurrency
	FunderWalletID types.WalletID
}

// RewardService orchestrates the reward eligibility pipeline
type RewardService struct {
	catalog        *catalog.Catalog
	phonePolicy    *authz.Authorizer
	ipPolicy       *authz.Authorizer
	accountRepo    AccountRepository
	userRepo       UserRepository
	walletRepo     WalletRepository
	accountIPRepo  AccountIPRepository
	grants         GrantLedger
	settlement     SettlementTrigger
	auditor        Auditor
	statusCache    StatusInvalidator
	currency       types.WalletCurrency
	funderWalletID types.WalletID
}

// NewRewardService creates a new reward service
func NewRewardService(
	cfg RewardServiceConfig,
	rewardCatalog *catalog.Catalog,
	phonePolicy *authz.Authorizer,
	ipPolicy *authz.Authorizer,
	accountRepo AccountRepository,
	userRepo UserRepository,
	walletRepo WalletRepository,
	accountIPRepo AccountIPRepository,
	grants GrantLedger,
	settlement SettlementTrigger,
	auditor Auditor,
	statusCache StatusInvalidator,
) *RewardService {
	return &RewardService{
		catalog:        rewardCatalog,
		phonePolicy:    phonePolicy,
		ipPolicy:       ipPolicy,
		accountRepo:    accountRepo,
		userRepo:       userRepo,
		walletRepo:     walletRepo,
		accountIPRepo:  accountIPRepo,
		grants:         grants,
		settlement:     settlement,
		auditor:        auditor,
		statusCache:    statusCache,
		currency:       cfg.Currency,
		funderWalletID: cfg.FunderWalletID,
	}
}

var accountIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// CheckedAccountID validates the raw account identifier syntactically
func CheckedAccountID(raw string) (types.AccountID, error) {
	if !accountIDPattern.MatchString(raw) {
		return "", errors.NewInvalidAccountIDError(raw)
	}
	return types.AccountID(raw), nil
}

// GrantReward runs the eligibility pipeline for one (account, reward) pair.
// Steps execute strictly in order and the first failure aborts; no side
// effect happens before the idempotent grant attempt. A duplicate claim is
// an idempotent success: the receipt is returned with AlreadyGranted set
// and settlement is never triggered a second time.
func (s *RewardService) GrantReward(ctx context.Context, rawAccountID string, rewardID types.RewardID) (*models.RewardReceipt, error) {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"accountId": rawAccountID,
		"rewardId":  string(rewardID),
	})

	accountID, err := CheckedAccountID(rawAccountID)
	if err != nil {
		return nil, err
	}

	amount, ok := s.catalog.Amount(rewardID)
	if !ok {
		return nil, errors.NewInvalidRewardIDError(rewardID)
	}

	funderWallet, funderAccount, err := s.resolveFunder(ctx)
	if err != nil {
		return nil, err
	}

	recipientAccount, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		if goerrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("ACCOUNT_NOT_FOUND", "account", string(accountID))
		}
		return nil, errors.NewRepositoryError("account lookup", err)
	}

	user, err := s.userRepo.GetByID(ctx, recipientAccount.UserID)
	if err != nil {
		if goerrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("USER_NOT_FOUND", "user", string(recipientAccount.UserID))
		}
		return nil, errors.NewRepositoryError("user lookup", err)
	}

	if err := s.checkPhone(ctx, accountID, rewardID, user.PhoneMetadata); err != nil {
		return nil, err
	}

	if err := s.checkIP(ctx, accountID, rewardID); err != nil {
		return nil, err
	}

	alreadyGranted, err := s.grants.TryGrant(ctx, accountID, rewardID, amount)
	if err != nil {
		return nil, errors.NewRepositoryError("grant", err)
	}
	if alreadyGranted {
		logger.Info("Reward already granted, skipping settlement")
		return &models.RewardReceipt{RewardID: rewardID, Amount: amount, AlreadyGranted: true}, nil
	}

	s.invalidateStatus(ctx, accountID)

	recipientWallet, err := s.findWalletForCurrency(ctx, accountID)
	if err != nil {
		return nil, err
	}

	_, err = s.settlement.Transfer(ctx, &adapter.TransferInput{
		SenderWalletID:    funderWallet.ID,
		RecipientWalletID: recipientWallet.ID,
		Amount:            amount,
		Memo:              string(rewardID),
		SenderAccountID:   funderAccount,
	}, adapter.IdempotencyKey(accountID, rewardID))
	if err != nil {
		// The grant is recorded but unpaid; reconciliation re-drives the
		// transfer with the same idempotency key. Never roll the grant back.
		logger.WithError(err).Error("Settlement failed after grant was recorded")
		return nil, errors.NewSettlementError(err, true)
	}

	if err := s.grants.MarkSettled(ctx, accountID, rewardID); err != nil {
		// The transfer went through; reconciliation retries are safe
		// because the idempotency key dedupes at the ledger.
		logger.WithError(err).Warn("Failed to mark grant settled")
	}

	logger.WithField("amount", amount).Info("Reward granted")
	return &models.RewardReceipt{RewardID: rewardID, Amount: amount}, nil
}

// resolveFunder resolves the configured system funding wallet. Failures
// here are deployment faults, not user ones.
func (s *RewardService) resolveFunder(ctx context.Context) (*models.Wallet, types.AccountID, error) {
	if s.funderWalletID == "" {
		return nil, "", errors.NewFunderMisconfiguredError("funder wallet id is not configured")
	}

	wallet, err := s.walletRepo.GetByID(ctx, s.funderWalletID)
	if err != nil {
		if goerrors.Is(err, storage.ErrNotFound) {
			return nil, "", errors.NewFunderMisconfiguredError("configured funder wallet does not exist")
		}
		return nil, "", errors.NewRepositoryError("funder wallet lookup", err)
	}

	if wallet.Currency != s.currency {
		return nil, "", errors.NewFunderMisconfiguredError("funder wallet currency does not match reward currency")
	}

	return wallet, wallet.AccountID, nil
}

func (s *RewardService) checkPhone(ctx context.Context, accountID types.AccountID, rewardID types.RewardID, meta *models.PhoneMetadata) error {
	sig := authz.PhoneSignal(meta)
	err := s.phonePolicy.Authorize(sig)
	s.audit(ctx, accountID, rewardID, types.SignalPhone, sig, err)
	if err != nil {
		return errors.NewInvalidPhoneForRewardError(err)
	}
	return nil
}

func (s *RewardService) checkIP(ctx context.Context, accountID types.AccountID, rewardID types.RewardID) error {
	accountIP, err := s.accountIPRepo.FindLastByAccount(ctx, accountID)
	if err != nil {
		if goerrors.Is(err, storage.ErrNotFound) {
			return errors.NewInvalidIPMetadataError(err)
		}
		return errors.NewRepositoryError("ip history lookup", err)
	}

	sig := authz.IPSignal(&accountIP.Metadata)
	err = s.ipPolicy.Authorize(sig)
	s.audit(ctx, accountID, rewardID, types.SignalIP, sig, err)
	if err == nil {
		return nil
	}

	if goerrors.Is(err, authz.ErrMissingMetadata) {
		return errors.NewInvalidIPMetadataError(err)
	}

	var denied *authz.DeniedError
	if goerrors.As(err, &denied) {
		return errors.NewPolicyDeniedError(types.SignalIP, denied.Rule, err)
	}

	return errors.NewRepositoryError("ip authorization", err)
}

func (s *RewardService) findWalletForCurrency(ctx context.Context, accountID types.AccountID) (*models.Wallet, error) {
	wallets, err := s.walletRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.NewRepositoryError("wallet lookup", err)
	}

	for _, wallet := range wallets {
		if wallet.Currency == s.currency {
			return wallet, nil
		}
	}

	return nil, errors.NewNoWalletForCurrencyError(accountID, s.currency)
}

// audit records one policy decision. Best-effort: audit failures are
// logged and never fail the claim.
func (s *RewardService) audit(ctx context.Context, accountID types.AccountID, rewardID types.RewardID, signal types.SignalType, sig *authz.Signal, authErr error) {
	if s.auditor == nil {
		return
	}

	event := &models.AuditEvent{
		AccountID: accountID,
		RewardID:  rewardID,
		Signal:    signal,
		Outcome:   types.OutcomeAuthorized,
	}
	if sig != nil {
		event.Country = sig.Country
		event.ASN = sig.ASN
	}

	if authErr != nil {
		var denied *authz.DeniedError
		switch {
		case goerrors.As(authErr, &denied):
			event.Outcome = types.OutcomeDenied
			event.Rule = denied.Rule
		default:
			event.Outcome = types.OutcomeMissing
		}
	}

	if err := s.auditor.RecordDecision(ctx, event); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to record audit event")
	}
}

// invalidateStatus drops the cached listing after a grant; best-effort
func (s *RewardService) invalidateStatus(ctx context.Context, accountID types.AccountID) {
	if s.statusCache == nil {
		return
	}
	if err := s.statusCache.Invalidate(ctx, accountID); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to invalidate status cache")
	}
}
