package swapengine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/program"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
)

var ErrPoolNotFound = errors.New("pool account not found")

// Quoter prices swaps over decrypted reserves and encrypts the result.
type Quoter struct {
	codec  confidential.Codec
	logger *logrus.Logger
}

func NewQuoter(codec confidential.Codec, logger *logrus.Logger) *Quoter {
	if logger == nil {
		logger = logrus.New()
	}
	return &Quoter{codec: codec, logger: logger}
}

// Reserves reads the pool account and decrypts both reserves in one request.
func (q *Quoter) Reserves(ctx context.Context, accounts permission.AccountReader, pool solana.PublicKey, auth confidential.Authorizer) (*Reserves, error) {
	info, err := accounts.GetAccountInfo(ctx, pool)
	if err != nil {
		return nil, fmt.Errorf("fetch pool: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrPoolNotFound, pool)
	}

	state, err := program.DecodePoolState(info.Data)
	if err != nil {
		return nil, err
	}

	a, b, err := confidential.DecryptPair(ctx, q.codec, state.ReserveA, state.ReserveB, auth)
	if err != nil {
		return nil, fmt.Errorf("decrypt reserves: %w", err)
	}
	return &Reserves{Pool: pool, ReserveA: a, ReserveB: b, FeeBps: state.FeeBps}, nil
}

// Quote computes an exact-in quote and encrypts netIn, amountOut and fee
// concurrently. A degenerate quote is returned as-is with zero amounts.
func (q *Quoter) Quote(ctx context.Context, accounts permission.AccountReader, pool solana.PublicKey, auth confidential.Authorizer, amountIn *big.Int, aToB bool) (*Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", quote.ErrInvalidAmount)
	}

	r, err := q.Reserves(ctx, accounts, pool, auth)
	if err != nil {
		return nil, err
	}

	reserveIn, reserveOut := quote.Reserves(aToB, r.ReserveA, r.ReserveB)
	est := quote.Compute(amountIn, reserveIn, reserveOut, r.FeeBps)

	cts, err := confidential.EncryptAll(ctx, q.codec, est.NetIn, est.AmountOut, est.FeeAmount)
	if err != nil {
		return nil, fmt.Errorf("encrypt quote: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"pool": pool.String(),
		"aToB": aToB,
	}).Debug("quote computed")

	return &Quote{
		AmountIn:    new(big.Int).Set(amountIn),
		Estimate:    est,
		PriceImpact: quote.PriceImpact(amountIn, reserveIn, reserveOut, est.AmountOut),
		FeeBps:      r.FeeBps,
		Encrypted: &EncryptedQuote{
			NetIn:     cts[0],
			AmountOut: cts[1],
			Fee:       cts[2],
			AToB:      aToB,
		},
		QuotedAt: time.Now().UTC(),
	}, nil
}
