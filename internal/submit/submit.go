// Package submit signs, sends and confirms transactions one at a time and
// turns failures into readable diagnostics.
package submit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/rpc"
	"github.com/aman-zulfiqar/private-swap/internal/wallet"
)

var (
	// ErrStaleBlockhash is returned when the node still rejects the
	// blockhash after one refresh.
	ErrStaleBlockhash = errors.New("blockhash not found")

	// ErrConfirmationPending means the transaction was sent but did not
	// confirm in time. It may still land; the caller must not resend blindly.
	ErrConfirmationPending = errors.New("confirmation pending")
)

// Ledger is the chain access a Submitter needs. *rpc.Client implements it.
type Ledger interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.SendOptions) (string, error)
	ConfirmTransaction(ctx context.Context, signature string, commitment string, timeout time.Duration) error
	GetTransactionLogs(ctx context.Context, signature string) ([]string, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*rpc.SimulationResult, error)
}

// TxSigner builds and signs transactions as fee payer. *wallet.Wallet implements it.
type TxSigner interface {
	PublicKey() solana.PublicKey
	BuildTransaction(instructions []solana.Instruction, blockhash solana.Hash) (*solana.Transaction, error)
	SignTx(tx *solana.Transaction, aux ...solana.PrivateKey) error
}

// Operation is one transaction worth of instructions. Signers are one-time
// keypairs (fresh mint accounts) that must co-sign with the wallet.
type Operation struct {
	Label        string
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

// Receipt describes a submitted transaction.
type Receipt struct {
	Label     string        `json:"label"`
	Signature string        `json:"signature"`
	Attempts  int           `json:"attempts"`
	Pending   bool          `json:"pending,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// SubmitError carries the best diagnostic available for a failed operation.
type SubmitError struct {
	Label      string
	Signature  string
	Diagnostic string
	Err        error
}

func (e *SubmitError) Error() string {
	if e.Signature != "" {
		return fmt.Sprintf("%s failed (%s): %s", e.Label, e.Signature, e.Diagnostic)
	}
	return fmt.Sprintf("%s failed: %s", e.Label, e.Diagnostic)
}

func (e *SubmitError) Unwrap() error { return e.Err }

type Config struct {
	Ledger         Ledger
	Signer         TxSigner
	ConfirmTimeout time.Duration
	Commitment     string
	Diagnostics    []Diagnostic
	Logger         *logrus.Logger
}

type Submitter struct {
	ledger         Ledger
	signer         TxSigner
	confirmTimeout time.Duration
	commitment     string
	diagnostics    []Diagnostic
	logger         *logrus.Logger
}

func NewSubmitter(cfg Config) *Submitter {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = constants.DefaultConfirmTimeout
	}
	if cfg.Commitment == "" {
		cfg.Commitment = constants.CommitmentConfirmed
	}
	if cfg.Diagnostics == nil {
		cfg.Diagnostics = DefaultDiagnostics()
	}
	return &Submitter{
		ledger:         cfg.Ledger,
		signer:         cfg.Signer,
		confirmTimeout: cfg.ConfirmTimeout,
		commitment:     cfg.Commitment,
		diagnostics:    cfg.Diagnostics,
		logger:         cfg.Logger,
	}
}

// WithLedger returns a submitter with the same signer and settings that sends
// through another ledger, e.g. the venue endpoint.
func (s *Submitter) WithLedger(l Ledger) *Submitter {
	c := *s
	c.ledger = l
	return &c
}

// Signer returns the fee payer the submitter signs with.
func (s *Submitter) Signer() TxSigner { return s.signer }

// Submit runs one operation to confirmation. A blockhash-not-found rejection
// is retried exactly once with a fresh blockhash.
func (s *Submitter) Submit(ctx context.Context, op Operation) (*Receipt, error) {
	if s.signer == nil {
		return nil, &SubmitError{Label: op.Label, Diagnostic: wallet.ErrMissingSigner.Error(), Err: wallet.ErrMissingSigner}
	}

	start := time.Now()
	log := s.logger.WithField("label", op.Label)

	const maxAttempts = 2
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		blockhash, err := s.ledger.GetLatestBlockhash(ctx, s.commitment)
		if err != nil {
			return nil, s.fail(ctx, &Failure{Label: op.Label, Err: err})
		}

		tx, err := s.signer.BuildTransaction(op.Instructions, blockhash)
		if err != nil {
			return nil, s.fail(ctx, &Failure{Label: op.Label, Err: err})
		}
		if err := s.signer.SignTx(tx, op.Signers...); err != nil {
			return nil, s.fail(ctx, &Failure{Label: op.Label, Err: err})
		}

		sig, err := s.ledger.SendTransaction(ctx, tx, nil)
		if err != nil {
			var rpcErr *rpc.RPCError
			if errors.As(err, &rpcErr) && rpcErr.IsBlockhashNotFound() {
				if attempt < maxAttempts {
					log.WithField("attempt", attempt).Warn("blockhash not found, refreshing")
					continue
				}
				err = fmt.Errorf("%w: %w", ErrStaleBlockhash, err)
			}
			return nil, s.fail(ctx, &Failure{Label: op.Label, Tx: tx, Err: err})
		}

		log = log.WithField("signature", sig)
		log.Debug("transaction sent")

		receipt := &Receipt{Label: op.Label, Signature: sig, Attempts: attempt}
		err = s.ledger.ConfirmTransaction(ctx, sig, s.commitment, s.confirmTimeout)
		receipt.Duration = time.Since(start)

		if errors.Is(err, rpc.ErrConfirmationTimeout) {
			receipt.Pending = true
			log.Warn("confirmation pending")
			return receipt, &SubmitError{
				Label:      op.Label,
				Signature:  sig,
				Diagnostic: fmt.Sprintf("not confirmed within %v; check signature %s before retrying", s.confirmTimeout, sig),
				Err:        fmt.Errorf("%w: %w", ErrConfirmationPending, err),
			}
		}
		if err != nil {
			return nil, s.fail(ctx, &Failure{Label: op.Label, Signature: sig, Tx: tx, Err: err})
		}

		log.WithField("duration", receipt.Duration).Info("transaction confirmed")
		return receipt, nil
	}

	return nil, &SubmitError{Label: op.Label, Diagnostic: ErrStaleBlockhash.Error(), Err: ErrStaleBlockhash}
}

// SubmitAll submits operations in order, stopping at the first failure.
func (s *Submitter) SubmitAll(ctx context.Context, ops ...Operation) ([]*Receipt, error) {
	receipts := make([]*Receipt, 0, len(ops))
	for _, op := range ops {
		r, err := s.Submit(ctx, op)
		if err != nil {
			return receipts, err
		}
		receipts = append(receipts, r)
	}
	return receipts, nil
}

func (s *Submitter) fail(ctx context.Context, f *Failure) *SubmitError {
	diag := Diagnose(ctx, s.ledger, f, s.diagnostics)
	s.logger.WithFields(logrus.Fields{
		"label":     f.Label,
		"signature": f.Signature,
	}).WithError(f.Err).Error("transaction failed")

	return &SubmitError{
		Label:      f.Label,
		Signature:  f.Signature,
		Diagnostic: diag,
		Err:        f.Err,
	}
}
