package permission

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
	"github.com/aman-zulfiqar/private-swap/internal/rpc"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
)

// AccountReader looks up account owners. *rpc.Client implements it.
type AccountReader interface {
	GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*rpc.AccountInfo, error)
}

// Check reports whether an operation's effect is already on chain.
type Check func(ctx context.Context, accounts AccountReader) (bool, error)

// Target is one account to delegate and the operations that do it. Checks
// runs parallel to Ops; an operation whose check passes is not sent, and a
// missing or nil check means the operation always runs.
type Target struct {
	Label   string
	Account solana.PublicKey
	Ops     []submit.Operation
	Checks  []Check
}

// NewTarget pairs a create permission / delegate permission / delegate
// account triple with the on-chain state each step leaves behind: the
// permission account exists, the permission account is delegated, the
// account itself is delegated.
func NewTarget(label string, account solana.PublicKey, ops []submit.Operation) (Target, error) {
	if len(ops) != 3 {
		return Target{}, fmt.Errorf("%s: expected 3 delegation operations, got %d", label, len(ops))
	}
	perm, _, err := derive.FindPermissionAddress(account)
	if err != nil {
		return Target{}, fmt.Errorf("%s permission address: %w", label, err)
	}
	return Target{
		Label:   label,
		Account: account,
		Ops:     ops,
		Checks: []Check{
			Exists(perm),
			OwnedBy(perm, constants.DelegationProgramID),
			OwnedBy(account, constants.DelegationProgramID),
		},
	}, nil
}

// Exists passes once account has been created.
func Exists(account solana.PublicKey) Check {
	return func(ctx context.Context, accounts AccountReader) (bool, error) {
		info, err := accounts.GetAccountInfo(ctx, account)
		if err != nil {
			return false, err
		}
		return info != nil, nil
	}
}

// OwnedBy passes once account is owned by owner.
func OwnedBy(account, owner solana.PublicKey) Check {
	return func(ctx context.Context, accounts AccountReader) (bool, error) {
		info, err := accounts.GetAccountInfo(ctx, account)
		if err != nil {
			return false, err
		}
		return info != nil && info.Owner.Equals(owner), nil
	}
}

// Result lists what Delegate did per target.
type Result struct {
	Delegated  []string          `json:"delegated"`
	Skipped    []string          `json:"skipped"`
	SkippedOps []string          `json:"skippedOps,omitempty"`
	Receipts   []*submit.Receipt `json:"receipts"`
}

type Sequencer struct {
	submitter *submit.Submitter
	accounts  AccountReader
	logger    *logrus.Logger
}

func NewSequencer(submitter *submit.Submitter, accounts AccountReader, logger *logrus.Logger) *Sequencer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Sequencer{submitter: submitter, accounts: accounts, logger: logger}
}

// Delegated reports whether account is already owned by the delegation program.
func Delegated(ctx context.Context, accounts AccountReader, account solana.PublicKey) (bool, error) {
	info, err := accounts.GetAccountInfo(ctx, account)
	if err != nil {
		return false, err
	}
	return info != nil && info.Owner.Equals(constants.DelegationProgramID), nil
}

// Delegate submits every target's operations one transaction at a time, in
// order. Targets already delegated are skipped, as are single operations
// whose check passes, so a run interrupted anywhere can be resumed. The first
// failure stops the run.
func (s *Sequencer) Delegate(ctx context.Context, targets []Target) (*Result, error) {
	res := &Result{}
	for _, t := range targets {
		log := s.logger.WithFields(logrus.Fields{"target": t.Label, "account": t.Account.String()})

		done, err := Delegated(ctx, s.accounts, t.Account)
		if err != nil {
			return res, fmt.Errorf("check %s delegation: %w", t.Label, err)
		}
		if done {
			log.Info("already delegated, skipping")
			res.Skipped = append(res.Skipped, t.Label)
			continue
		}

		for i, op := range t.Ops {
			if i < len(t.Checks) && t.Checks[i] != nil {
				done, err := t.Checks[i](ctx, s.accounts)
				if err != nil {
					return res, fmt.Errorf("check %s: %w", op.Label, err)
				}
				if done {
					log.WithField("op", op.Label).Info("already on chain, skipping")
					res.SkippedOps = append(res.SkippedOps, op.Label)
					continue
				}
			}
			r, err := s.submitter.Submit(ctx, op)
			if r != nil {
				res.Receipts = append(res.Receipts, r)
			}
			if err != nil {
				return res, fmt.Errorf("delegate %s: %w", t.Label, err)
			}
		}
		log.Info("delegated")
		res.Delegated = append(res.Delegated, t.Label)
	}
	return res, nil
}
