package rpc

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

// ErrConfirmationTimeout is returned when a signature has not reached the
// requested commitment before the deadline. The transaction may still land.
var ErrConfirmationTimeout = errors.New("confirmation timeout")

// TransactionFailedError means the transaction landed but the program returned an error.
type TransactionFailedError struct {
	Signature string
	Err       any
}

func (e *TransactionFailedError) Error() string {
	return fmt.Sprintf("transaction %s failed: %v", e.Signature, e.Err)
}

// SendOptions configures transaction sending behavior
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          *int
}

// DefaultSendOptions returns recommended send settings
func DefaultSendOptions() SendOptions {
	maxRetries := 3
	return SendOptions{
		SkipPreflight:       false,
		PreflightCommitment: "confirmed",
		MaxRetries:          &maxRetries,
	}
}

// GetLatestBlockhash fetches the most recent blockhash with commitment level
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error) {
	if commitment == "" {
		commitment = "confirmed"
	}

	var resp struct {
		Result struct {
			Value struct {
				Blockhash            string `json:"blockhash"`
				LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		map[string]any{"commitment": commitment},
	}

	if err := c.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}
	if resp.Error != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: %w", resp.Error)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}
	return hash, nil
}

// SendTransaction submits a signed transaction. A node rejection is returned
// as *RPCError so callers can read preflight logs.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction, opts *SendOptions) (string, error) {
	if opts == nil {
		defaultOpts := DefaultSendOptions()
		opts = &defaultOpts
	}

	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to serialize transaction: %w", err)
	}

	cfg := map[string]any{
		"encoding":            "base64",
		"skipPreflight":       opts.SkipPreflight,
		"preflightCommitment": opts.PreflightCommitment,
	}
	if opts.MaxRetries != nil {
		cfg["maxRetries"] = *opts.MaxRetries
	}
	params := []any{base64.StdEncoding.EncodeToString(txBytes), cfg}

	var resp struct {
		Result string    `json:"result"`
		Error  *RPCError `json:"error"`
	}
	if err := c.Call(ctx, "sendTransaction", params, &resp); err != nil {
		return "", fmt.Errorf("sendTransaction RPC failed: %w", err)
	}
	if resp.Error != nil {
		return "", resp.Error
	}
	return resp.Result, nil
}

// GetSignatureStatus returns nil when the node has not seen the signature yet.
func (c *Client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var resp struct {
		Result struct {
			Value []*SignatureStatus `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		[]string{signature},
		map[string]any{"searchTransactionHistory": true},
	}

	if err := c.Call(ctx, "getSignatureStatuses", params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getSignatureStatuses: %w", resp.Error)
	}
	if len(resp.Result.Value) == 0 {
		return nil, nil
	}
	return resp.Result.Value[0], nil
}

// ConfirmTransaction polls for transaction confirmation until the commitment
// level is met, the transaction fails, or timeout elapses.
func (c *Client) ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	backoff := 500 * time.Millisecond
	maxBackoff := 4 * time.Second

	for time.Now().Before(deadline) {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil {
			return fmt.Errorf("failed to check signature: %w", err)
		}
		if status != nil {
			if status.Err != nil {
				return &TransactionFailedError{Signature: signature, Err: status.Err}
			}
			if commitmentReached(status.ConfirmationStatus, commitment) {
				return nil
			}
		}

		wait := backoff
		if remaining := time.Until(deadline); remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}

	c.logger.WithFields(logrus.Fields{
		"signature": signature,
		"timeout":   timeout,
	}).Warn("confirmation wait exceeded")

	return fmt.Errorf("%w after %v", ErrConfirmationTimeout, timeout)
}

func commitmentReached(status, want string) bool {
	switch want {
	case "processed":
		return status != ""
	case "confirmed":
		return status == "confirmed" || status == "finalized"
	case "finalized":
		return status == "finalized"
	default:
		return status != ""
	}
}

// GetAccountInfo returns nil, nil when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*AccountInfo, error) {
	var resp struct {
		Result struct {
			Value *struct {
				Owner      string   `json:"owner"`
				Lamports   uint64   `json:"lamports"`
				Executable bool     `json:"executable"`
				Data       []string `json:"data"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		pubkey.String(),
		map[string]any{
			"encoding":   "base64",
			"commitment": "confirmed",
		},
	}

	if err := c.Call(ctx, "getAccountInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("getAccountInfo RPC failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getAccountInfo: %w", resp.Error)
	}
	v := resp.Result.Value
	if v == nil {
		return nil, nil
	}

	owner, err := solana.PublicKeyFromBase58(v.Owner)
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo: invalid owner: %w", err)
	}
	info := &AccountInfo{Owner: owner, Lamports: v.Lamports, Executable: v.Executable}
	if len(v.Data) > 0 && v.Data[0] != "" {
		data, err := base64.StdEncoding.DecodeString(v.Data[0])
		if err != nil {
			return nil, fmt.Errorf("getAccountInfo: decode data: %w", err)
		}
		info.Data = data
	}
	return info, nil
}

// AccountExists checks if an account exists on-chain (getAccountInfo != nil).
func (c *Client) AccountExists(ctx context.Context, pubkey solana.PublicKey) (bool, error) {
	info, err := c.GetAccountInfo(ctx, pubkey)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// GetTransactionLogs fetches the log messages of a landed transaction.
func (c *Client) GetTransactionLogs(ctx context.Context, signature string) ([]string, error) {
	var resp struct {
		Result *struct {
			Meta *struct {
				Err         any      `json:"err"`
				LogMessages []string `json:"logMessages"`
			} `json:"meta"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		signature,
		map[string]any{
			"encoding":                       "json",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}

	if err := c.Call(ctx, "getTransaction", params, &resp); err != nil {
		return nil, fmt.Errorf("getTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("getTransaction: %w", resp.Error)
	}
	if resp.Result == nil || resp.Result.Meta == nil {
		return nil, fmt.Errorf("getTransaction: transaction %s not found", signature)
	}
	return resp.Result.Meta.LogMessages, nil
}

// SimulateTransaction simulates a signed transaction and returns its logs. A
// failing simulation is not an error; check Success.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error) {
	txBytes, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	var resp struct {
		Result struct {
			Value struct {
				Err           any      `json:"err"`
				Logs          []string `json:"logs"`
				UnitsConsumed uint64   `json:"unitsConsumed,omitempty"`
			} `json:"value"`
		} `json:"result"`
		Error *RPCError `json:"error"`
	}

	params := []any{
		base64.StdEncoding.EncodeToString(txBytes),
		map[string]any{
			"encoding":   "base64",
			"commitment": "processed",
		},
	}

	if err := c.Call(ctx, "simulateTransaction", params, &resp); err != nil {
		return nil, fmt.Errorf("simulateTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("simulateTransaction: %w", resp.Error)
	}

	result := &SimulationResult{
		Success:       resp.Result.Value.Err == nil,
		Logs:          resp.Result.Value.Logs,
		UnitsConsumed: resp.Result.Value.UnitsConsumed,
	}
	if !result.Success {
		result.Error = fmt.Sprintf("%v", resp.Result.Value.Err)
	}
	return result, nil
}
