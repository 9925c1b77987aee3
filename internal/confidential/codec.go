// Package confidential is the boundary to the encrypted-value service: encrypt
// plaintexts for instructions and attested-decrypt on-chain handles.
package confidential

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/aman-zulfiqar/private-swap/internal/wallet"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/sync/errgroup"
)

// ErrDecryptionDenied means the requesting identity has no read rights on at
// least one handle. No plaintexts are returned in that case.
var ErrDecryptionDenied = errors.New("decryption denied")

// Authorizer proves control of the identity a decrypt is requested for.
type Authorizer interface {
	PublicKey() solana.PublicKey
	SignMessage(msg []byte) ([]byte, error)
}

type Codec interface {
	Encrypt(ctx context.Context, plaintext *big.Int) (Ciphertext, error)
	// Decrypt is order preserving: out[i] is the plaintext of handles[i].
	Decrypt(ctx context.Context, handles []Handle, auth Authorizer) ([]*big.Int, error)
}

// EncryptAll encrypts independent values concurrently, keeping input order.
func EncryptAll(ctx context.Context, codec Codec, values ...*big.Int) ([]Ciphertext, error) {
	out := make([]Ciphertext, len(values))
	g, gctx := errgroup.WithContext(ctx)
	for i, v := range values {
		g.Go(func() error {
			ct, err := codec.Encrypt(gctx, v)
			if err != nil {
				return fmt.Errorf("encrypt value %d: %w", i, err)
			}
			out[i] = ct
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// DecryptPair decrypts two handles in a single request so both plaintexts come
// from the same authorization.
func DecryptPair(ctx context.Context, codec Codec, a, b Handle, auth Authorizer) (*big.Int, *big.Int, error) {
	if auth == nil {
		return nil, nil, wallet.ErrMissingSigner
	}
	plain, err := codec.Decrypt(ctx, []Handle{a, b}, auth)
	if err != nil {
		return nil, nil, err
	}
	if len(plain) != 2 {
		return nil, nil, fmt.Errorf("decrypt pair: expected 2 plaintexts, got %d", len(plain))
	}
	return plain[0], plain[1], nil
}
