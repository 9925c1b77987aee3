package program

import (
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/aman-zulfiqar/private-swap/internal/derive"
)

// DelegatePermission moves the permission record of a permissioned account
// to the venue validator. It is owned by the permission program itself.
type DelegatePermission struct {
	anchorInstruction
}

func NewDelegatePermission(payer, authority, permissionedAccount, validator solana.PublicKey) (*DelegatePermission, error) {
	permission, _, err := derive.FindPermissionAddress(permissionedAccount)
	if err != nil {
		return nil, err
	}
	metas, err := delegationMetas(permission, constants.PermissionProgramID)
	if err != nil {
		return nil, err
	}

	accounts := []*solana.AccountMeta{
		signer(payer),
		readonlySigner(authority),
		readonly(permissionedAccount),
		writable(permission),
	}
	accounts = append(accounts, metas...)
	accounts = append(accounts, readonly(validator))

	return &DelegatePermission{
		anchorInstruction: newAnchor(constants.PermissionProgramID, "delegate_permission", accounts...),
	}, nil
}

func (inst *DelegatePermission) Data() ([]byte, error) {
	return inst.encode(nil)
}
