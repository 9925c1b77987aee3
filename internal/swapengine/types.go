package swapengine

import (
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
)

// SwapRequest is an exact-in swap against the session's pool
type SwapRequest struct {
	AmountIn *big.Int
	AToB     bool
}

// TransferRequest moves a confidential amount of mint to recipient's token account
type TransferRequest struct {
	Mint      solana.PublicKey
	Recipient solana.PublicKey
	Amount    *big.Int
}

// Reserves is a decrypted view of the pool, visible only to the requesting wallet
type Reserves struct {
	Pool     solana.PublicKey
	ReserveA *big.Int
	ReserveB *big.Int
	FeeBps   uint16
}

// EncryptedQuote is what goes on chain: every amount as a ciphertext
type EncryptedQuote struct {
	NetIn     confidential.Ciphertext `json:"amountInCiphertext"`
	AmountOut confidential.Ciphertext `json:"amountOutCiphertext"`
	Fee       confidential.Ciphertext `json:"feeAmountCiphertext"`
	AToB      bool                    `json:"aToB"`
}

// Quote pairs the plaintext estimate shown to the wallet owner with its
// encrypted form.
type Quote struct {
	AmountIn    *big.Int        `json:"amountIn"`
	Estimate    quote.Result    `json:"estimate"`
	PriceImpact float64         `json:"priceImpact"`
	FeeBps      uint16          `json:"feeBps"`
	Encrypted   *EncryptedQuote `json:"encrypted"`
	QuotedAt    time.Time       `json:"quotedAt"`
}

// Execution records one submitted flow
type Execution struct {
	ID          string             `json:"id"`
	Kind        string             `json:"kind"`
	Receipt     *submit.Receipt    `json:"receipt,omitempty"`
	Quote       *Quote             `json:"quote,omitempty"`
	Compliance  *compliance.Result `json:"compliance,omitempty"`
	Venue       bool               `json:"venue"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt time.Time          `json:"completedAt"`
	Error       string             `json:"error,omitempty"`
}

// Execution kinds
const (
	KindSwap            = "swap"
	KindRemoveLiquidity = "remove_liquidity"
	KindTransfer        = "transfer"
)
