package wallet

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// SignTx signs tx as fee payer together with any one-time auxiliary signers
// (e.g. a fresh mint keypair). Every required signer must be supplied.
func (w *Wallet) SignTx(tx *solana.Transaction, aux ...solana.PrivateKey) error {
	if w == nil {
		return ErrMissingSigner
	}

	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.pub) {
			return &w.priv
		}
		for i := range aux {
			if key.Equals(aux[i].PublicKey()) {
				return &aux[i]
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}

// SignMessage produces a detached ed25519 signature over msg.
func (w *Wallet) SignMessage(msg []byte) ([]byte, error) {
	if w == nil {
		return nil, ErrMissingSigner
	}
	sig, err := w.priv.Sign(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig[:], nil
}

// BuildTransaction assembles an unsigned transaction paid for by the wallet.
func (w *Wallet) BuildTransaction(instructions []solana.Instruction, blockhash solana.Hash) (*solana.Transaction, error) {
	if w == nil {
		return nil, ErrMissingSigner
	}

	tx, err := solana.NewTransaction(
		instructions,
		blockhash,
		solana.TransactionPayer(w.pub),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}
