package program

import (
	"encoding/binary"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/confidential"
	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
)

// InitializeMint creates a confidential mint. The mint account is a fresh
// keypair that must co-sign the transaction.
type InitializeMint struct {
	anchorInstruction
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

func NewInitializeMint(mint, payer, mintAuthority solana.PublicKey, freezeAuthority *solana.PublicKey) *InitializeMint {
	return &InitializeMint{
		anchorInstruction: newAnchor(constants.IncoTokenProgramID, "initialize_mint",
			signer(mint),
			signer(payer),
			readonly(constants.SystemProgramID),
			readonly(constants.IncoLightningProgramID),
		),
		Decimals:        constants.ConfidentialDecimals,
		MintAuthority:   mintAuthority,
		FreezeAuthority: freezeAuthority,
	}
}

func (inst *InitializeMint) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(inst.Decimals); err != nil {
			return err
		}
		if err := writePubkey(enc, inst.MintAuthority); err != nil {
			return err
		}
		if inst.FreezeAuthority == nil {
			return enc.WriteBool(false)
		}
		if err := enc.WriteBool(true); err != nil {
			return err
		}
		return writePubkey(enc, *inst.FreezeAuthority)
	})
}

// CreateIdempotent creates the confidential token account of (owner, mint)
// at its derived address, succeeding when it already exists.
type CreateIdempotent struct {
	anchorInstruction
}

func NewCreateIdempotent(payer, account, mint, owner solana.PublicKey) *CreateIdempotent {
	return &CreateIdempotent{
		anchorInstruction: newAnchor(constants.IncoTokenProgramID, "create_idempotent",
			signer(payer),
			writable(account),
			readonly(mint),
			readonly(owner),
			readonly(constants.SystemProgramID),
			readonly(constants.IncoLightningProgramID),
		),
	}
}

func (inst *CreateIdempotent) Data() ([]byte, error) {
	return inst.encode(nil)
}

// MintTo mints an encrypted amount into account.
type MintTo struct {
	anchorInstruction
	Amount    confidential.Ciphertext
	InputType uint8
}

func NewMintTo(mint, account, mintAuthority solana.PublicKey, amount confidential.Ciphertext) *MintTo {
	return &MintTo{
		anchorInstruction: newAnchor(constants.IncoTokenProgramID, "mint_to",
			writable(mint),
			writable(account),
			signer(mintAuthority),
			readonly(constants.IncoLightningProgramID),
			readonly(constants.SystemProgramID),
		),
		Amount:    amount,
		InputType: constants.InputType,
	}
}

func (inst *MintTo) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		if err := writeCiphertexts(enc, inst.Amount); err != nil {
			return err
		}
		return enc.WriteUint8(inst.InputType)
	})
}

// Transfer moves an encrypted amount between two token accounts of the same mint.
type Transfer struct {
	anchorInstruction
	Amount    confidential.Ciphertext
	InputType uint8
}

func NewTransfer(source, destination, authority solana.PublicKey, amount confidential.Ciphertext) *Transfer {
	return &Transfer{
		anchorInstruction: newAnchor(constants.IncoTokenProgramID, "transfer",
			writable(source),
			writable(destination),
			signer(authority),
			readonly(constants.IncoLightningProgramID),
			readonly(constants.SystemProgramID),
		),
		Amount:    amount,
		InputType: constants.InputType,
	}
}

func (inst *Transfer) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		if err := writeCiphertexts(enc, inst.Amount); err != nil {
			return err
		}
		return enc.WriteUint8(inst.InputType)
	})
}

// CreatePermissionForIncoAccount opens a permission record over a token account.
type CreatePermissionForIncoAccount struct {
	anchorInstruction
	Members []Member
}

func NewCreatePermissionForIncoAccount(account, payer, owner, mint solana.PublicKey, members []Member) (*CreatePermissionForIncoAccount, error) {
	permission, _, err := derive.FindPermissionAddress(account)
	if err != nil {
		return nil, err
	}
	return &CreatePermissionForIncoAccount{
		anchorInstruction: newAnchor(constants.IncoTokenProgramID, "create_permission_for_inco_account",
			writable(account),
			writable(permission),
			signer(payer),
			readonly(owner),
			readonly(mint),
			readonly(constants.PermissionProgramID),
			readonly(constants.SystemProgramID),
		),
		Members: members,
	}, nil
}

func (inst *CreatePermissionForIncoAccount) Data() ([]byte, error) {
	return inst.encode(func(enc *bin.Encoder) error {
		return writeMembers(enc, inst.Members)
	})
}

// DelegateIncoAccount hands a token account over to the delegation program
// so the venue validator can execute against it.
type DelegateIncoAccount struct {
	anchorInstruction
}

func NewDelegateIncoAccount(payer, owner, mint, account, validator solana.PublicKey) (*DelegateIncoAccount, error) {
	metas, err := delegationMetas(account, constants.IncoTokenProgramID)
	if err != nil {
		return nil, err
	}
	return &DelegateIncoAccount{
		anchorInstruction: newAnchor(constants.IncoTokenProgramID, "delegate_inco_account",
			append([]*solana.AccountMeta{
				signer(payer),
				readonly(owner),
				readonly(mint),
				writable(account),
				readonly(validator),
			}, metas...)...,
		),
	}, nil
}

func (inst *DelegateIncoAccount) Data() ([]byte, error) {
	return inst.encode(nil)
}

// delegationMetas lists the accounts the delegation program needs for pda:
// buffer, record, metadata, owner program, delegation program, system program.
func delegationMetas(pda, ownerProgram solana.PublicKey) ([]*solana.AccountMeta, error) {
	buffer, _, err := derive.FindDelegationBuffer(pda, ownerProgram)
	if err != nil {
		return nil, err
	}
	record, _, err := derive.FindDelegationRecord(pda)
	if err != nil {
		return nil, err
	}
	metadata, _, err := derive.FindDelegationMetadata(pda)
	if err != nil {
		return nil, err
	}
	return []*solana.AccountMeta{
		writable(buffer),
		writable(record),
		writable(metadata),
		readonly(ownerProgram),
		readonly(constants.DelegationProgramID),
		readonly(constants.SystemProgramID),
	}, nil
}

// Member is one entry of a permission record.
type Member struct {
	Flags  uint8
	Pubkey solana.PublicKey
}

func writeMembers(enc *bin.Encoder, members []Member) error {
	if err := enc.WriteUint32(uint32(len(members)), binary.LittleEndian); err != nil {
		return err
	}
	for _, m := range members {
		if err := enc.WriteUint8(m.Flags); err != nil {
			return err
		}
		if err := writePubkey(enc, m.Pubkey); err != nil {
			return err
		}
	}
	return nil
}
