// Package swapengine runs the trading flows against a ready pool: quotes,
// confidential swaps, liquidity removal and transfers.
package swapengine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/cache"
	"github.com/aman-zulfiqar/private-swap/internal/compliance"
	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/mints"
	"github.com/aman-zulfiqar/private-swap/internal/permission"
	"github.com/aman-zulfiqar/private-swap/internal/program"
	"github.com/aman-zulfiqar/private-swap/internal/quote"
	"github.com/aman-zulfiqar/private-swap/internal/session"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

// ErrZeroQuote means the pool cannot fill the swap (empty reserves or the
// whole input consumed by the fee).
var ErrZeroQuote = errors.New("swap quote is zero")

type Config struct {
	Chain          permission.Conn
	Router         *permission.Router
	Codec          confidential.Codec
	Compliance     *compliance.Client
	Risk           *RiskManager
	Events         cache.Sink
	QuoteDebounce  time.Duration
	ConfirmTimeout time.Duration
	Logger         *logrus.Logger
}

// Engine is the entry point for trading flows. Reads and writes go through
// the venue connection whenever the session has the venue enabled.
type Engine struct {
	chain          permission.Conn
	router         *permission.Router
	codec          confidential.Codec
	quoter         *Quoter
	compliance     *compliance.Client
	risk           *RiskManager
	events         cache.Sink
	quoteDebounce  time.Duration
	confirmTimeout time.Duration
	logger         *logrus.Logger

	trackers sync.Map // session id -> *QuoteTracker
}

func NewEngine(cfg Config) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.QuoteDebounce == 0 {
		cfg.QuoteDebounce = constants.QuoteDebounce
	}
	return &Engine{
		chain:          cfg.Chain,
		router:         cfg.Router,
		codec:          cfg.Codec,
		quoter:         NewQuoter(cfg.Codec, cfg.Logger),
		compliance:     cfg.Compliance,
		risk:           cfg.Risk,
		events:         cfg.Events,
		quoteDebounce:  cfg.QuoteDebounce,
		confirmTimeout: cfg.ConfirmTimeout,
		logger:         cfg.Logger,
	}
}

func (e *Engine) accounts(sess *session.Session) (*wallet.Wallet, *mints.Config, *derive.Accounts, error) {
	w := sess.Wallet()
	if w == nil {
		return nil, nil, nil, wallet.ErrMissingSigner
	}
	m, ok := sess.Mints()
	if !ok {
		return nil, nil, nil, mints.ErrNotFound
	}
	accts, err := derive.SwapAccounts(w.PublicKey(), m.MintA, m.MintB)
	if err != nil {
		return nil, nil, nil, err
	}
	return w, &m, accts, nil
}

func (e *Engine) conn(ctx context.Context, sess *session.Session) (permission.Conn, error) {
	return e.router.Conn(ctx, sess, e.chain)
}

// Reserves returns the decrypted pool reserves for the session's wallet.
func (e *Engine) Reserves(ctx context.Context, sess *session.Session) (*Reserves, error) {
	w, _, accts, err := e.accounts(sess)
	if err != nil {
		return nil, err
	}
	conn, err := e.conn(ctx, sess)
	if err != nil {
		return nil, err
	}
	return e.quoter.Reserves(ctx, conn, accts.Pool, w)
}

// Quote prices amountIn immediately.
func (e *Engine) Quote(ctx context.Context, sess *session.Session, amountIn *big.Int, aToB bool) (*Quote, error) {
	w, _, accts, err := e.accounts(sess)
	if err != nil {
		return nil, err
	}
	conn, err := e.conn(ctx, sess)
	if err != nil {
		return nil, err
	}
	return e.quoter.Quote(ctx, conn, accts.Pool, w, amountIn, aToB)
}

// RequestQuote is Quote behind the session's debounce. A request replaced by
// a newer one from the same session returns ErrSuperseded.
func (e *Engine) RequestQuote(ctx context.Context, sess *session.Session, amountIn *big.Int, aToB bool) (*Quote, error) {
	return e.Tracker(sess).Request(ctx, func(ctx context.Context) (*Quote, error) {
		return e.Quote(ctx, sess, amountIn, aToB)
	})
}

// Tracker returns the session's quote tracker.
func (e *Engine) Tracker(sess *session.Session) *QuoteTracker {
	t, _ := e.trackers.LoadOrStore(sess.ID, NewQuoteTracker(e.quoteDebounce))
	return t.(*QuoteTracker)
}

// Forget drops per-session state when a session ends.
func (e *Engine) Forget(sess *session.Session) {
	if t, ok := e.trackers.LoadAndDelete(sess.ID); ok {
		t.(*QuoteTracker).Cancel()
	}
}

// ReservesChanged records that the pool account moved: the session's last
// quote is dropped and a reserves event published.
func (e *Engine) ReservesChanged(ctx context.Context, sess *session.Session, pool solana.PublicKey, slot uint64) {
	e.Tracker(sess).Invalidate()

	e.logger.WithFields(logrus.Fields{
		"pool": pool.String(),
		"slot": slot,
	}).Debug("pool reserves changed")
	if e.events == nil {
		return
	}
	ev := cache.NewEvent(sess.ID, cache.KindReserves, "changed")
	ev.Pool = pool.String()
	if err := e.events.Publish(ctx, ev); err != nil {
		e.logger.WithError(err).Debug("event publish failed")
	}
}

// Swap screens the wallet, quotes, checks risk limits and submits a
// swap_exact_in carrying only ciphertexts.
func (e *Engine) Swap(ctx context.Context, sess *session.Session, req SwapRequest) (*Execution, error) {
	exec := newExecution(KindSwap)
	w, _, accts, err := e.accounts(sess)
	if err != nil {
		return exec.fail(err)
	}

	if exec.Compliance, err = e.screen(ctx, w.PublicKey()); err != nil {
		exec.fail(err)
		e.publish(ctx, sess, exec, accts.Pool)
		return exec, err
	}

	conn, err := e.conn(ctx, sess)
	if err != nil {
		return exec.fail(err)
	}
	exec.Venue = e.router.Active(sess)

	q, err := e.quoter.Quote(ctx, conn, accts.Pool, w, req.AmountIn, req.AToB)
	if err != nil {
		return exec.fail(err)
	}
	exec.Quote = q
	if q.Estimate.IsZero() {
		return exec.fail(ErrZeroQuote)
	}
	if err := e.risk.CheckSwap(w.Address(), q); err != nil {
		return exec.fail(err)
	}

	ix := program.NewSwapExactIn(w.PublicKey(), accts, q.Encrypted.NetIn, q.Encrypted.AmountOut, q.Encrypted.Fee, q.Encrypted.AToB)
	if err := e.execute(ctx, sess, conn, exec, accts.Pool, "swap", ix); err != nil {
		return exec, err
	}

	e.risk.RecordSwap(w.Address(), req.AmountIn)
	return exec, nil
}

// RemoveLiquidity withdraws encrypted amounts of both tokens from the pool.
func (e *Engine) RemoveLiquidity(ctx context.Context, sess *session.Session, amountA, amountB *big.Int) (*Execution, error) {
	exec := newExecution(KindRemoveLiquidity)
	w, _, accts, err := e.accounts(sess)
	if err != nil {
		return exec.fail(err)
	}
	if amountA == nil || amountB == nil || amountA.Sign() < 0 || amountB.Sign() < 0 || (amountA.Sign() == 0 && amountB.Sign() == 0) {
		return exec.fail(fmt.Errorf("%w: nothing to remove", quote.ErrInvalidAmount))
	}

	conn, err := e.conn(ctx, sess)
	if err != nil {
		return exec.fail(err)
	}
	exec.Venue = e.router.Active(sess)

	cts, err := confidential.EncryptAll(ctx, e.codec, amountA, amountB)
	if err != nil {
		return exec.fail(fmt.Errorf("encrypt amounts: %w", err))
	}

	ix := program.NewRemoveLiquidity(w.PublicKey(), accts, cts[0], cts[1])
	return exec, e.execute(ctx, sess, conn, exec, accts.Pool, "remove liquidity", ix)
}

// Transfer sends an encrypted amount of one of the session's mints to
// another wallet's confidential token account. Both parties are screened.
func (e *Engine) Transfer(ctx context.Context, sess *session.Session, req TransferRequest) (*Execution, error) {
	exec := newExecution(KindTransfer)
	w, m, accts, err := e.accounts(sess)
	if err != nil {
		return exec.fail(err)
	}
	if !req.Mint.Equals(m.MintA) && !req.Mint.Equals(m.MintB) {
		return exec.fail(fmt.Errorf("%w: mint %s is not part of the pool", derive.ErrInvalidAddress, req.Mint))
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return exec.fail(fmt.Errorf("%w: amount must be positive", quote.ErrInvalidAmount))
	}

	for _, addr := range []solana.PublicKey{w.PublicKey(), req.Recipient} {
		if exec.Compliance, err = e.screen(ctx, addr); err != nil {
			exec.fail(err)
			e.publish(ctx, sess, exec, accts.Pool)
			return exec, err
		}
	}

	source, _, err := derive.FindTokenAccount(w.PublicKey(), req.Mint)
	if err != nil {
		return exec.fail(err)
	}
	dest, _, err := derive.FindTokenAccount(req.Recipient, req.Mint)
	if err != nil {
		return exec.fail(err)
	}

	conn, err := e.conn(ctx, sess)
	if err != nil {
		return exec.fail(err)
	}
	exec.Venue = e.router.Active(sess)

	cts, err := confidential.EncryptAll(ctx, e.codec, req.Amount)
	if err != nil {
		return exec.fail(fmt.Errorf("encrypt amount: %w", err))
	}

	ix := program.NewTransfer(source, dest, w.PublicKey(), cts[0])
	return exec, e.execute(ctx, sess, conn, exec, accts.Pool, "transfer", ix)
}

func (e *Engine) screen(ctx context.Context, addr solana.PublicKey) (*compliance.Result, error) {
	if e.compliance == nil {
		return nil, nil
	}
	return e.compliance.Gate(ctx, addr.String())
}
