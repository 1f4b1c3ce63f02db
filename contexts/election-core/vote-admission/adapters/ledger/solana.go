package ledger

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	domainerrors "electra/contexts/election-core/vote-admission/domain/errors"
	"electra/contexts/election-core/vote-admission/ports"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 200 * time.Millisecond
)

// Solana RPC error codes treated as transient node conditions.
const (
	rpcNodeUnhealthy    = -32005
	rpcNodeBehind       = -32004
	rpcBlockNotAvailble = -32007
)

// Client submits vote intents to a Solana-style JSON-RPC node and waits for
// confirmation. Transient faults (network errors, 5xx, unhealthy-node RPC
// codes) are retried up to MaxAttempts with exponential backoff; an RPC-level
// rejection is terminal and never retried, because the node has given the
// final word on the transaction.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	MaxAttempts int
	BackoffBase time.Duration
	Logger      *slog.Logger
}

func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		MaxAttempts: defaultMaxAttempts,
		BackoffBase: defaultBackoffBase,
		Logger:      logger,
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type confirmResult struct {
	Confirmed bool   `json:"confirmed"`
	Slot      uint64 `json:"slot"`
}

// transientError marks retryable faults so the retry loop can classify
// without string matching.
type transientError struct {
	cause error
}

func (e transientError) Error() string { return e.cause.Error() }
func (e transientError) Unwrap() error { return e.cause }

// Submit sends the intent and blocks until the node confirms inclusion or
// the retry budget is exhausted. No lock is held here; callers rely on the
// registry reservation, not this client, to serialize per-voter submission.
func (c *Client) Submit(ctx context.Context, intent ports.VoteIntent) (ports.LedgerReceipt, error) {
	payload, err := json.Marshal(map[string]any{
		"candidate_id": string(intent.CandidateID),
		"voter_hash":   intent.VoterHash,
		"timestamp":    intent.Timestamp.UTC().Unix(),
	})
	if err != nil {
		return ports.LedgerReceipt{}, fmt.Errorf("%w: encode intent: %v", domainerrors.ErrLedgerRejected, err)
	}
	encoded := base64.StdEncoding.EncodeToString(payload)

	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	backoff := c.BackoffBase
	if backoff <= 0 {
		backoff = defaultBackoffBase
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		receipt, err := c.submitOnce(ctx, encoded)
		if err == nil {
			return receipt, nil
		}

		var transient transientError
		if !errors.As(err, &transient) {
			return ports.LedgerReceipt{}, fmt.Errorf("%w: %v", domainerrors.ErrLedgerRejected, err)
		}
		lastErr = err
		if c.Logger != nil {
			c.Logger.Warn("ledger submission attempt failed",
				"event", "ledger_submit_attempt_failed",
				"module", "election-core/vote-admission",
				"layer", "adapter",
				"attempt", attempt,
				"max_attempts", maxAttempts,
				"error", err.Error(),
			)
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ports.LedgerReceipt{}, fmt.Errorf("%w: %v", domainerrors.ErrLedgerUnavailable, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return ports.LedgerReceipt{}, fmt.Errorf("%w: %v", domainerrors.ErrLedgerUnavailable, lastErr)
}

func (c *Client) submitOnce(ctx context.Context, encodedTx string) (ports.LedgerReceipt, error) {
	var signature string
	if err := c.call(ctx, "sendTransaction", []any{encodedTx}, &signature); err != nil {
		return ports.LedgerReceipt{}, err
	}

	var confirmation confirmResult
	if err := c.call(ctx, "confirmTransaction", []any{signature}, &confirmation); err != nil {
		return ports.LedgerReceipt{}, err
	}
	if !confirmation.Confirmed {
		return ports.LedgerReceipt{}, transientError{cause: fmt.Errorf("transaction %s not yet confirmed", signature)}
	}
	return ports.LedgerReceipt{
		Signature:   signature,
		Slot:        confirmation.Slot,
		ConfirmedAt: time.Now().UTC(),
	}, nil
}

func (c *Client) call(ctx context.Context, method string, params []any, result any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return transientError{cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return transientError{cause: fmt.Errorf("rpc node returned status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rpc node returned status %d", resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return transientError{cause: fmt.Errorf("decode rpc response: %v", err)}
	}
	if rpcResp.Error != nil {
		rpcErr := fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
		switch rpcResp.Error.Code {
		case rpcNodeUnhealthy, rpcNodeBehind, rpcBlockNotAvailble:
			return transientError{cause: rpcErr}
		default:
			return rpcErr
		}
	}
	return json.Unmarshal(rpcResp.Result, result)
}

var _ ports.Ledger = (*Client)(nil)
