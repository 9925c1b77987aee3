// Package stream follows on-chain account changes, over a websocket
// subscription or by polling.
package stream

import (
	"context"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Change is one observed state of a watched account.
type Change struct {
	Account solana.PublicKey
	Slot    uint64 // zero when polled
	Data    []byte
	Deleted bool
}

// Watcher calls fn for every change of account until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, account solana.PublicKey, fn func(Change)) error
}

// WebsocketURL derives the pubsub endpoint from an HTTP RPC URL.
func WebsocketURL(rpcURL string) string {
	switch {
	case strings.HasPrefix(rpcURL, "https://"):
		return "wss://" + strings.TrimPrefix(rpcURL, "https://")
	case strings.HasPrefix(rpcURL, "http://"):
		return "ws://" + strings.TrimPrefix(rpcURL, "http://")
	default:
		return rpcURL
	}
}
