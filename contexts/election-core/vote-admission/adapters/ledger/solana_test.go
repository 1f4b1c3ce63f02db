package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"
)

func testIntent() ports.VoteIntent {
	return ports.VoteIntent{
		CandidateID: "Alice",
		VoterHash:   "hash-1",
		Timestamp:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestClient(url string) *Client {
	client := NewClient(url, nil)
	client.BackoffBase = time.Millisecond
	return client
}

func rpcResult(w http.ResponseWriter, result any) {
	payload, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"result":  json.RawMessage(payload),
	})
}

func rpcFailure(w http.ResponseWriter, code int, message string) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"error":   map[string]any{"code": code, "message": message},
	})
}

func decodeMethod(t *testing.T, r *http.Request) string {
	t.Helper()
	var req struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode rpc request failed: %v", err)
	}
	return req.Method
}

func TestSubmitConfirmsTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch decodeMethod(t, r) {
		case "sendTransaction":
			rpcResult(w, "sig-123")
		case "confirmTransaction":
			rpcResult(w, map[string]any{"confirmed": true, "slot": 42})
		default:
			t.Error("unexpected rpc method")
		}
	}))
	defer server.Close()

	receipt, err := newTestClient(server.URL).Submit(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if receipt.Signature != "sig-123" || receipt.Slot != 42 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestSubmitRetriesTransientServerError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		switch decodeMethod(t, r) {
		case "sendTransaction":
			rpcResult(w, "sig-retry")
		case "confirmTransaction":
			rpcResult(w, map[string]any{"confirmed": true, "slot": 7})
		}
	}))
	defer server.Close()

	receipt, err := newTestClient(server.URL).Submit(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("submit after transient failure should succeed: %v", err)
	}
	if receipt.Signature != "sig-retry" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestSubmitRejectionIsTerminal(t *testing.T) {
	var sends atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if decodeMethod(t, r) == "sendTransaction" {
			sends.Add(1)
		}
		rpcFailure(w, -32602, "invalid transaction")
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), testIntent())
	if !errors.Is(err, domainerrors.ErrLedgerRejected) {
		t.Fatalf("expected ErrLedgerRejected, got %v", err)
	}
	if sends.Load() != 1 {
		t.Fatalf("terminal rejection must not be retried, got %d sends", sends.Load())
	}
}

func TestSubmitExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Submit(context.Background(), testIntent())
	if !errors.Is(err, domainerrors.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if calls.Load() != defaultMaxAttempts {
		t.Fatalf("expected %d attempts, got %d", defaultMaxAttempts, calls.Load())
	}
}

func TestSubmitRetriesUnhealthyNodeCode(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := decodeMethod(t, r)
		if calls.Add(1) == 1 {
			rpcFailure(w, rpcNodeUnhealthy, "node is unhealthy")
			return
		}
		switch method {
		case "sendTransaction":
			rpcResult(w, "sig-healthy")
		case "confirmTransaction":
			rpcResult(w, map[string]any{"confirmed": true, "slot": 9})
		}
	}))
	defer server.Close()

	receipt, err := newTestClient(server.URL).Submit(context.Background(), testIntent())
	if err != nil {
		t.Fatalf("submit after unhealthy node should succeed: %v", err)
	}
	if receipt.Signature != "sig-healthy" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestSubmitHonoursContextDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.BackoffBase = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Submit(ctx, testIntent())
	if !errors.Is(err, domainerrors.ErrLedgerUnavailable) {
		t.Fatalf("expected ErrLedgerUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("submit should stop at context expiry, took %s", elapsed)
	}
}
