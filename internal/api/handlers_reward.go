package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/reward-service/internal/types"
)

// ClaimRewardRequest is the claim endpoint request body
type ClaimRewardRequest struct {
	AccountID string `json:"accountId"`
	RewardID  string `json:"rewardId"`
}

// handleClaimReward handles POST /api/rewards/claim
func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	var req ClaimRewardRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid request body", nil)
		return
	}

	if req.AccountID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "accountId is required", nil)
		return
	}
	if req.RewardID == "" {
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", "rewardId is required", nil)
		return
	}

	if !s.claimLimiter.Allow(req.AccountID) {
		respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many claim attempts. Please try again later.", nil)
		return
	}

	receipt, err := s.rewardService.GrantReward(r.Context(), req.AccountID, types.RewardID(req.RewardID))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, receipt)
}

// handleListRewards handles GET /api/accounts/{accountId}/rewards
func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	accountID := vars["accountId"]

	statuses, err := s.statusService.ListRewardStatus(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"rewards": statuses,
	})
}
