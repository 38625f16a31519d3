// Package adapter provides clients for external collaborators of the
// reward service.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/reward-service/internal/circuitbreaker"
	"github.com/reward-service/internal/config"
	"github.com/reward-service/internal/retry"
	"github.com/reward-service/internal/types"
)

// idempotencyNamespace seeds the deterministic transfer keys. Fixed so the
// same (account, reward) pair always produces the same key across processes
// and restarts.
var idempotencyNamespace = uuid.MustParse("7f0b3e5a-9c41-4d8a-b1e6-2f8d94c7a013")

// TransferInput describes one intraledger payout
type TransferInput struct {
	SenderWalletID    types.WalletID  `json:"senderWalletId"`
	RecipientWalletID types.WalletID  `json:"recipientWalletId"`
	Amount            int64           `json:"amount"`
	Memo              string          `json:"memo"`
	SenderAccountID   types.AccountID `json:"senderAccountId"`
}

// TransferReceipt is returned by the ledger service on success
type TransferReceipt struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// ledgerError is the ledger service's error envelope
type ledgerError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// LedgerClient calls the external intraledger payment service. Transfers
// carry a deterministic idempotency key derived from (account, reward) so
// retries and reconciliation re-drives can never double-pay.
type LedgerClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
	retry   *retry.Config
}

// NewLedgerClient creates a new ledger client
func NewLedgerClient(cfg *config.LedgerConfig) *LedgerClient {
	return &LedgerClient{
		baseURL: cfg.BaseURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("ledger")),
		retry:   retry.DefaultConfig(),
	}
}

// IdempotencyKey returns the deterministic transfer key for a grant
func IdempotencyKey(accountID types.AccountID, rewardID types.RewardID) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("%s:%s", accountID, rewardID))).String()
}

// Transfer moves the payout amount between wallets. Transport failures are
// retried with backoff; ledger rejections (4xx) are permanent and returned
// as-is on the first attempt.
func (c *LedgerClient) Transfer(ctx context.Context, input *TransferInput, idempotencyKey string) (*TransferReceipt, error) {
	var receipt *TransferReceipt

	err := retry.Do(ctx, c.retry, func(ctx context.Context, attempt int) (bool, error) {
		return c.transferOnce(ctx, input, idempotencyKey, &receipt)
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (c *LedgerClient) transferOnce(ctx context.Context, input *TransferInput, idempotencyKey string, receipt **TransferReceipt) (permanent bool, err error) {
	err = c.breaker.Execute(ctx, func() error {
		body, marshalErr := json.Marshal(input)
		if marshalErr != nil {
			permanent = true
			return fmt.Errorf("failed to marshal transfer: %w", marshalErr)
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/intraledger", bytes.NewReader(body))
		if reqErr != nil {
			permanent = true
			return fmt.Errorf("failed to build transfer request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", idempotencyKey)

		resp, doErr := c.client.Do(req)
		if doErr != nil {
			return fmt.Errorf("transfer request failed: %w", doErr)
		}
		defer func() {
			_, _ = io.Copy(io.Discard, resp.Body) // nolint:errcheck // drain for connection reuse
			_ = resp.Body.Close()
		}()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			var r TransferReceipt
			if decodeErr := json.NewDecoder(resp.Body).Decode(&r); decodeErr != nil {
				permanent = true
				return fmt.Errorf("failed to decode transfer receipt: %w", decodeErr)
			}
			*receipt = &r
			return nil

		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			// The ledger rejected the transfer; retrying cannot help
			permanent = true
			var lerr ledgerError
			if decodeErr := json.NewDecoder(resp.Body).Decode(&lerr); decodeErr == nil && lerr.Error.Code != "" {
				return fmt.Errorf("ledger rejected transfer: %s: %s", lerr.Error.Code, lerr.Error.Message)
			}
			return fmt.Errorf("ledger rejected transfer: status %d", resp.StatusCode)

		default:
			return fmt.Errorf("ledger transfer failed: status %d", resp.StatusCode)
		}
	})

	return permanent, err
}

// Ping checks if the ledger service is reachable
func (c *LedgerClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ledger health check failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ledger health check failed: status %d", resp.StatusCode)
	}

	return nil
}
