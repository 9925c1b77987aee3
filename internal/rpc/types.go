package rpc

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// RPCError represents a JSON-RPC error response. Data carries the preflight
// simulation result when sendTransaction is rejected.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type preflightData struct {
	Err  any      `json:"err"`
	Logs []string `json:"logs"`
}

// Logs returns the program logs attached to a preflight failure, if any.
func (e *RPCError) Logs() []string {
	if e == nil || len(e.Data) == 0 {
		return nil
	}
	var d preflightData
	if err := json.Unmarshal(e.Data, &d); err != nil {
		return nil
	}
	return d.Logs
}

// IsBlockhashNotFound reports whether the node rejected the transaction because
// its recent blockhash is unknown or expired.
func (e *RPCError) IsBlockhashNotFound() bool {
	if e == nil {
		return false
	}
	if strings.Contains(strings.ToLower(e.Message), "blockhash not found") {
		return true
	}
	var d preflightData
	if len(e.Data) > 0 && json.Unmarshal(e.Data, &d) == nil {
		if s, ok := d.Err.(string); ok && s == "BlockhashNotFound" {
			return true
		}
	}
	return false
}

// AccountInfo is the subset of getAccountInfo this module reads.
type AccountInfo struct {
	Owner      solana.PublicKey
	Lamports   uint64
	Executable bool
	Data       []byte
}

// SignatureStatus mirrors one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64 `json:"slot"`
	Confirmations      *int   `json:"confirmations"`
	Err                any    `json:"err"`
	ConfirmationStatus string `json:"confirmationStatus"`
}

// SimulationResult contains simulation output
type SimulationResult struct {
	Success       bool
	Error         string
	Logs          []string
	UnitsConsumed uint64
}
