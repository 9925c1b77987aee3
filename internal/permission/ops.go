// Package permission builds and sequences the operations that hand the pool
// and its token accounts over to the off-chain execution venue.
package permission

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/program"
	"github.com/aman-zulfiqar/private-swap/internal/submit"
)

// Members returns the permission member list in its fixed order: authority,
// pool, validator, program. Every member gets the default flags.
func Members(authority, pool, validator, programID solana.PublicKey) []program.Member {
	return []program.Member{
		{Flags: constants.DefaultPermissionFlags, Pubkey: authority},
		{Flags: constants.DefaultPermissionFlags, Pubkey: pool},
		{Flags: constants.DefaultPermissionFlags, Pubkey: validator},
		{Flags: constants.DefaultPermissionFlags, Pubkey: programID},
	}
}

// PoolOps returns create permission, delegate permission and delegate pool,
// in that order.
func PoolOps(payer, validator, pool, mintA, mintB solana.PublicKey, members []program.Member) ([]submit.Operation, error) {
	scope := program.PoolScope(mintA, mintB)

	create, err := program.NewCreatePermission(pool, payer, scope, members)
	if err != nil {
		return nil, fmt.Errorf("build pool permission: %w", err)
	}
	delegatePerm, err := program.NewDelegatePermission(payer, payer, pool, validator)
	if err != nil {
		return nil, fmt.Errorf("build pool permission delegation: %w", err)
	}
	delegate, err := program.NewDelegatePda(payer, validator, pool, scope)
	if err != nil {
		return nil, fmt.Errorf("build pool delegation: %w", err)
	}

	return []submit.Operation{
		single("create pool permission", create),
		single("delegate pool permission", delegatePerm),
		single("delegate pool", delegate),
	}, nil
}

// TokenAccountOps is the token-account counterpart of PoolOps.
func TokenAccountOps(label string, payer, validator, owner, mint, account solana.PublicKey, members []program.Member) ([]submit.Operation, error) {
	create, err := program.NewCreatePermissionForIncoAccount(account, payer, owner, mint, members)
	if err != nil {
		return nil, fmt.Errorf("build %s permission: %w", label, err)
	}
	delegatePerm, err := program.NewDelegatePermission(payer, payer, account, validator)
	if err != nil {
		return nil, fmt.Errorf("build %s permission delegation: %w", label, err)
	}
	delegate, err := program.NewDelegateIncoAccount(payer, owner, mint, account, validator)
	if err != nil {
		return nil, fmt.Errorf("build %s delegation: %w", label, err)
	}

	return []submit.Operation{
		single("create "+label+" permission", create),
		single("delegate "+label+" permission", delegatePerm),
		single("delegate "+label, delegate),
	}, nil
}

func single(label string, ix solana.Instruction) submit.Operation {
	return submit.Operation{Label: label, Instructions: []solana.Instruction{ix}}
}
