package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reward-service/internal/config"
	"github.com/reward-service/internal/retry"
)

func newTestLedgerClient(t *testing.T, handler http.HandlerFunc) *LedgerClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewLedgerClient(&config.LedgerConfig{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
	})
	// Fast retries so failure paths do not slow the suite down
	client.retry = &retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
	return client
}

func TestIdempotencyKey_Deterministic(t *testing.T) {
	key1 := IdempotencyKey("acct1", "quizA")
	key2 := IdempotencyKey("acct1", "quizA")
	key3 := IdempotencyKey("acct1", "quizB")

	assert.Equal(t, key1, key2)
	assert.NotEqual(t, key1, key3)
}

func TestTransfer_Success(t *testing.T) {
	var gotKey string
	var gotInput TransferInput

	client := newTestLedgerClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/intraledger", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotInput))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(TransferReceipt{TransactionID: "tx-1", Status: "settled"})
	})

	receipt, err := client.Transfer(context.Background(), &TransferInput{
		SenderWalletID:    "funder-wallet",
		RecipientWalletID: "recipient-wallet",
		Amount:            500,
		Memo:              "quizA",
		SenderAccountID:   "funder-acct",
	}, IdempotencyKey("acct1", "quizA"))

	require.NoError(t, err)
	assert.Equal(t, "tx-1", receipt.TransactionID)
	assert.Equal(t, IdempotencyKey("acct1", "quizA"), gotKey)
	assert.Equal(t, int64(500), gotInput.Amount)
	assert.Equal(t, "quizA", gotInput.Memo)
}

func TestTransfer_RejectionIsNotRetried(t *testing.T) {
	var calls int64

	client := newTestLedgerClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"INSUFFICIENT_BALANCE","message":"funder is empty"}}`))
	})

	_, err := client.Transfer(context.Background(), &TransferInput{Amount: 500}, "key")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSUFFICIENT_BALANCE")
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestTransfer_ServerErrorIsRetried(t *testing.T) {
	var calls int64

	client := newTestLedgerClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(TransferReceipt{TransactionID: "tx-2", Status: "settled"})
	})

	receipt, err := client.Transfer(context.Background(), &TransferInput{Amount: 1}, "key")

	require.NoError(t, err)
	assert.Equal(t, "tx-2", receipt.TransactionID)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestTransfer_ExhaustsRetries(t *testing.T) {
	var calls int64

	client := newTestLedgerClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Transfer(context.Background(), &TransferInput{Amount: 1}, "key")

	require.Error(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}
