// Package derive computes the program-derived addresses used by the confidential
// swap pool. Nothing here touches the network.
package derive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/gagliardetto/solana-go"
)

var ErrInvalidAddress = errors.New("invalid address")

// Accounts is the full set of addresses a (wallet, mintA, mintB) swap touches.
// Mint order is taken as given: swapping A and B yields a different pool.
type Accounts struct {
	Pool       solana.PublicKey `json:"pool"`
	UserTokenA solana.PublicKey `json:"user_token_a"`
	UserTokenB solana.PublicKey `json:"user_token_b"`
	PoolTokenA solana.PublicKey `json:"pool_token_a"`
	PoolTokenB solana.PublicKey `json:"pool_token_b"`
}

// TokenAccounts returns the four confidential token accounts in setup order:
// user A, user B, pool A, pool B.
func (a *Accounts) TokenAccounts() []solana.PublicKey {
	return []solana.PublicKey{a.UserTokenA, a.UserTokenB, a.PoolTokenA, a.PoolTokenB}
}

// ParseAddress validates a base58 address at an input boundary.
func ParseAddress(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return pk, nil
}

// FindPoolAddress derives the pool PDA: ["pool", mintA, mintB] under the swap program.
func FindPoolAddress(mintA, mintB solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			constants.PoolSeed,
			mintA.Bytes(),
			mintB.Bytes(),
		},
		constants.PrivateSwapProgramID,
	)
}

// FindTokenAccount derives the confidential token account owned by owner for mint.
// Same seed layout as an associated token account, under the Inco token program.
func FindTokenAccount(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			constants.IncoTokenProgramID.Bytes(),
			mint.Bytes(),
		},
		constants.IncoTokenProgramID,
	)
}

// FindPermissionAddress derives the permission record governing account.
func FindPermissionAddress(account solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{
			constants.PermissionSeed,
			account.Bytes(),
		},
		constants.PermissionProgramID,
	)
}

// FindDelegationBuffer derives the buffer the delegation program copies account data into.
// The buffer lives under the program that owns the delegated account.
func FindDelegationBuffer(account, ownerProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{constants.DelegationBufferSeed, account.Bytes()},
		ownerProgram,
	)
}

func FindDelegationRecord(account solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{constants.DelegationRecordSeed, account.Bytes()},
		constants.DelegationProgramID,
	)
}

func FindDelegationMetadata(account solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{constants.DelegationMetadataSeed, account.Bytes()},
		constants.DelegationProgramID,
	)
}

// SwapAccounts derives the pool and the four token accounts for owner.
func SwapAccounts(owner, mintA, mintB solana.PublicKey) (*Accounts, error) {
	if mintA.Equals(mintB) {
		return nil, fmt.Errorf("%w: mint A and mint B are the same", ErrInvalidAddress)
	}

	pool, _, err := FindPoolAddress(mintA, mintB)
	if err != nil {
		return nil, fmt.Errorf("derive pool: %w", err)
	}

	out := &Accounts{Pool: pool}
	targets := []struct {
		dst   *solana.PublicKey
		owner solana.PublicKey
		mint  solana.PublicKey
	}{
		{&out.UserTokenA, owner, mintA},
		{&out.UserTokenB, owner, mintB},
		{&out.PoolTokenA, pool, mintA},
		{&out.PoolTokenB, pool, mintB},
	}
	for _, t := range targets {
		addr, _, err := FindTokenAccount(t.owner, t.mint)
		if err != nil {
			return nil, fmt.Errorf("derive token account for %s: %w", t.mint, err)
		}
		*t.dst = addr
	}

	return out, nil
}
