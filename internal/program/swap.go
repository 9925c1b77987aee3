package program

import (
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
)

// Scope identifies the swap-program account a permission or delegation
// applies to. Only the pool variant exists.
type Scope struct {
	MintA solana.PublicKey
	MintB solana.PublicKey
}

const scopePool uint8 = 0

func PoolScope(mintA, mintB solana.PublicKey) Scope {
	return Scope{MintA: mintA, MintB: mintB}
}

func (s Scope) encode(enc *bin.Encoder) error {
	if err := enc.WriteUint8(scopePool); err != nil {
		return err
	}
	if err := writePubkey(enc, s.MintA); err != nil {
		return err
	}
	return writePubkey(enc, s.MintB)
}

type InitializePool struct {
	anchorInstruction
	FeeBps uint16
}

func NewInitializePool(authority, mintA, mintB, pool solana.PublicKey, feeBps uint16) *InitializePool {
	return &InitializePool{
		anchorInstruction: newAnchor(constants.PrivateSwapProgramID, "initialize_pool",
			signer(authority),
			readonly(mintA),
			readonly(mintB),
			writable(pool),
			readonly(constants.SystemProgramID),
			readonly(constants.IncoLightningProgramID),
		),
		FeeBps: feeBps,
	}
}

func (inst *InitializePool) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		return enc.WriteUint16(inst.FeeBps, binary.LittleEndian)
	})
}

// liquidityMetas is the account list shared by the liquidity and swap
// instructions.
func liquidityMetas(authority solana.PublicKey, accts *derive.Accounts) []*solana.AccountMeta {
	return []*solana.AccountMeta{
		signer(authority),
		writable(accts.Pool),
		writable(accts.UserTokenA),
		writable(accts.UserTokenB),
		writable(accts.PoolTokenA),
		writable(accts.PoolTokenB),
		readonly(constants.SystemProgramID),
		readonly(constants.IncoLightningProgramID),
		readonly(constants.IncoTokenProgramID),
	}
}

// Liquidity is add_liquidity or remove_liquidity; both carry one encrypted
// amount per side.
type Liquidity struct {
	anchorInstruction
	AmountA   confidential.Ciphertext
	AmountB   confidential.Ciphertext
	InputType uint8
}

func NewAddLiquidity(authority solana.PublicKey, accts *derive.Accounts, amountA, amountB confidential.Ciphertext) *Liquidity {
	return newLiquidity("add_liquidity", authority, accts, amountA, amountB)
}

func NewRemoveLiquidity(authority solana.PublicKey, accts *derive.Accounts, amountA, amountB confidential.Ciphertext) *Liquidity {
	return newLiquidity("remove_liquidity", authority, accts, amountA, amountB)
}

func newLiquidity(name string, authority solana.PublicKey, accts *derive.Accounts, amountA, amountB confidential.Ciphertext) *Liquidity {
	return &Liquidity{
		anchorInstruction: newAnchor(constants.PrivateSwapProgramID, name, liquidityMetas(authority, accts)...),
		AmountA:           amountA,
		AmountB:           amountB,
		InputType:         constants.InputType,
	}
}

func (inst *Liquidity) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		if err := writeCiphertexts(enc, inst.AmountA, inst.AmountB); err != nil {
			return err
		}
		return enc.WriteUint8(inst.InputType)
	})
}

// SwapExactIn swaps an encrypted input amount. The expected output and fee
// travel encrypted as well.
type SwapExactIn struct {
	anchorInstruction
	AmountIn  confidential.Ciphertext
	AmountOut confidential.Ciphertext
	Fee       confidential.Ciphertext
	InputType uint8
	AToB      bool
}

func NewSwapExactIn(authority solana.PublicKey, accts *derive.Accounts, in, out, fee confidential.Ciphertext, aToB bool) *SwapExactIn {
	return &SwapExactIn{
		anchorInstruction: newAnchor(constants.PrivateSwapProgramID, "swap_exact_in", liquidityMetas(authority, accts)...),
		AmountIn:          in,
		AmountOut:         out,
		Fee:               fee,
		InputType:         constants.InputType,
		AToB:              aToB,
	}
}

func (inst *SwapExactIn) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		if err := writeCiphertexts(enc, inst.AmountIn, inst.AmountOut, inst.Fee); err != nil {
			return err
		}
		if err := enc.WriteUint8(inst.InputType); err != nil {
			return err
		}
		return enc.WriteBool(inst.AToB)
	})
}

// CreatePermission opens the permission record over the pool account.
type CreatePermission struct {
	anchorInstruction
	Scope   Scope
	Members []Member
}

func NewCreatePermission(pool, payer solana.PublicKey, scope Scope, members []Member) (*CreatePermission, error) {
	permission, _, err := derive.FindPermissionAddress(pool)
	if err != nil {
		return nil, err
	}
	return &CreatePermission{
		anchorInstruction: newAnchor(constants.PrivateSwapProgramID, "create_permission",
			writable(pool),
			writable(permission),
			signer(payer),
			readonly(constants.PermissionProgramID),
			readonly(constants.SystemProgramID),
		),
		Scope:   scope,
		Members: members,
	}, nil
}

func (inst *CreatePermission) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		if err := inst.Scope.encode(enc); err != nil {
			return err
		}
		return writeMembers(enc, inst.Members)
	})
}

// DelegatePda delegates the pool account to the venue validator.
type DelegatePda struct {
	anchorInstruction
	Scope Scope
}

func NewDelegatePda(payer, validator, pda solana.PublicKey, scope Scope) (*DelegatePda, error) {
	metas, err := delegationMetas(pda, constants.PrivateSwapProgramID)
	if err != nil {
		return nil, err
	}
	return &DelegatePda{
		anchorInstruction: newAnchor(constants.PrivateSwapProgramID, "delegate_pda",
			append([]*solana.AccountMeta{
				signer(payer),
				readonly(validator),
				writable(pda),
			}, metas...)...,
		),
		Scope: scope,
	}, nil
}

func (inst *DelegatePda) Data() ([]byte, error) {
	return inst.encode(inst.Scope.encode)
}
