// Package program builds the instructions understood by the confidential
// swap, token and permission programs and decodes their accounts.
package program

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/private-swap/internal/confidential"
)

// Discriminator returns the 8-byte Anchor instruction selector for name.
func Discriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// anchorInstruction carries what every builder here shares. Concrete
// instruction types embed it and add their own Data method.
type anchorInstruction struct {
	program                 solana.PublicKey
	name                    string
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

func (inst *anchorInstruction) ProgramID() solana.PublicKey {
	return inst.program
}

func (inst *anchorInstruction) Accounts() (out []*solana.AccountMeta) {
	return inst.AccountMetaSlice
}

// Name is the instruction's Anchor method name.
func (inst *anchorInstruction) Name() string {
	return inst.name
}

// encode writes the discriminator followed by whatever args writes.
func (inst *anchorInstruction) encode(args func(enc *bin.Encoder) error) ([]byte, error) {
	buf := new(bytes.Buffer)
	if _, err := buf.Write(Discriminator(inst.name)); err != nil {
		return nil, fmt.Errorf("failed to write discriminator: %w", err)
	}
	if args != nil {
		if err := args(bin.NewBorshEncoder(buf)); err != nil {
			return nil, fmt.Errorf("failed to encode %s args: %w", inst.name, err)
		}
	}
	return buf.Bytes(), nil
}

func newAnchor(program solana.PublicKey, name string, metas ...*solana.AccountMeta) anchorInstruction {
	return anchorInstruction{program: program, name: name, AccountMetaSlice: metas}
}

// Borsh helpers

func writePubkey(enc *bin.Encoder, pk solana.PublicKey) error {
	return enc.WriteBytes(pk[:], false)
}

func writeVecU8(enc *bin.Encoder, b []byte) error {
	if err := enc.WriteUint32(uint32(len(b)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes(b, false)
}

func writeCiphertexts(enc *bin.Encoder, cts ...confidential.Ciphertext) error {
	for _, ct := range cts {
		if err := writeVecU8(enc, ct); err != nil {
			return err
		}
	}
	return nil
}

func readonly(pk solana.PublicKey) *solana.AccountMeta       { return solana.NewAccountMeta(pk, false, false) }
func writable(pk solana.PublicKey) *solana.AccountMeta       { return solana.NewAccountMeta(pk, true, false) }
func signer(pk solana.PublicKey) *solana.AccountMeta         { return solana.NewAccountMeta(pk, true, true) }
func readonlySigner(pk solana.PublicKey) *solana.AccountMeta { return solana.NewAccountMeta(pk, false, true) }
