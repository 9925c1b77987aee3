package program

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"github.com/aman-zulfiqar/private-swap/internal/confidential"
)

// PoolStateSize is the serialized size of a pool account:
// discriminator, authority, mintA, mintB, reserveA, reserveB, feeBps, bump.
const PoolStateSize = 8 + 32 + 32 + 32 + 16 + 16 + 2 + 1

var ErrInvalidPoolAccount = errors.New("invalid pool account")

// PoolAccountDiscriminator prefixes every pool account.
var PoolAccountDiscriminator = accountDiscriminator("Pool")

// PoolState is the decoded swap pool. Reserves are ciphertext handles.
type PoolState struct {
	Authority solana.PublicKey    `json:"authority"`
	MintA     solana.PublicKey    `json:"mintA"`
	MintB     solana.PublicKey    `json:"mintB"`
	ReserveA  confidential.Handle `json:"reserveA"`
	ReserveB  confidential.Handle `json:"reserveB"`
	FeeBps    uint16              `json:"feeBps"`
	Bump      uint8               `json:"bump"`
}

// DecodePoolState parses raw pool account data.
func DecodePoolState(data []byte) (*PoolState, error) {
	if len(data) < PoolStateSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidPoolAccount, PoolStateSize, len(data))
	}
	if !bytes.Equal(data[:8], PoolAccountDiscriminator) {
		return nil, fmt.Errorf("%w: discriminator mismatch", ErrInvalidPoolAccount)
	}

	state := &PoolState{
		Authority: solana.PublicKeyFromBytes(data[8:40]),
		MintA:     solana.PublicKeyFromBytes(data[40:72]),
		MintB:     solana.PublicKeyFromBytes(data[72:104]),
		ReserveA:  confidential.HandleFromUint128(uint128.FromBytes(data[104:120])),
		ReserveB:  confidential.HandleFromUint128(uint128.FromBytes(data[120:136])),
	}

	decoder := bin.NewBinDecoder(data[136:138])
	if err := decoder.Decode(&state.FeeBps); err != nil {
		return nil, fmt.Errorf("%w: fee: %v", ErrInvalidPoolAccount, err)
	}
	state.Bump = data[138]
	return state, nil
}

// Encode serializes the state in account layout.
func (p *PoolState) Encode() []byte {
	out := make([]byte, 0, PoolStateSize)
	out = append(out, PoolAccountDiscriminator...)
	out = append(out, p.Authority[:]...)
	out = append(out, p.MintA[:]...)
	out = append(out, p.MintB[:]...)
	out = append(out, p.ReserveA.Bytes()...)
	out = append(out, p.ReserveB.Bytes()...)
	out = binary.LittleEndian.AppendUint16(out, p.FeeBps)
	return append(out, p.Bump)
}
