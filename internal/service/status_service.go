package service

import (
	"context"
	goerrors "errors"

	"github.com/reward-service/internal/catalog"
	"github.com/reward-service/internal/errors"
	"github.com/reward-service/internal/logging"
	"github.com/reward-service/internal/models"
	"github.com/reward-service/internal/storage"
	"github.com/reward-service/internal/types"
)

// StatusStore caches per-account reward status listings
type StatusStore interface {
	Get(ctx context.Context, accountID types.AccountID) (statuses []*models.RewardStatus, found bool, err error)
	Set(ctx context.Context, accountID types.AccountID, statuses []*models.RewardStatus) error
}

// StatusService lists every catalog reward with the account's completion
// state, the read side of the grant ledger.
type StatusService struct {
	catalog     *catalog.Catalog
	accountRepo AccountRepository
	grants      GrantLedger
	cache       StatusStore
}

// NewStatusService creates a new status service
func NewStatusService(rewardCatalog *catalog.Catalog, accountRepo AccountRepository, grants GrantLedger, cache StatusStore) *StatusService {
	return &StatusService{
		catalog:     rewardCatalog,
		accountRepo: accountRepo,
		grants:      grants,
		cache:       cache,
	}
}

// ListRewardStatus returns the full catalog annotated with the account's
// completed rewards, in stable catalog order.
func (s *StatusService) ListRewardStatus(ctx context.Context, rawAccountID string) ([]*models.RewardStatus, error) {
	accountID, err := CheckedAccountID(rawAccountID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		statuses, found, cacheErr := s.cache.Get(ctx, accountID)
		if cacheErr != nil {
			logging.FromContext(ctx).WithError(cacheErr).Warn("Failed to read status cache")
		} else if found {
			return statuses, nil
		}
	}

	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		if goerrors.Is(err, storage.ErrNotFound) {
			return nil, errors.NewNotFoundError("ACCOUNT_NOT_FOUND", "account", string(accountID))
		}
		return nil, errors.NewRepositoryError("account lookup", err)
	}

	grants, err := s.grants.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, errors.NewRepositoryError("grant listing", err)
	}

	completed := make(map[types.RewardID]struct{}, len(grants))
	for _, grant := range grants {
		completed[grant.RewardID] = struct{}{}
	}

	statuses := make([]*models.RewardStatus, 0, s.catalog.Len())
	for _, id := range s.catalog.IDs() {
		amount, _ := s.catalog.Amount(id)
		_, done := completed[id]
		statuses = append(statuses, &models.RewardStatus{
			RewardID:  id,
			Amount:    amount,
			Completed: done,
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, accountID, statuses); err != nil {
			logging.FromContext(ctx).WithError(err).Warn("Failed to write status cache")
		}
	}

	return statuses, nil
}
