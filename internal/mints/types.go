package mints

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

var ErrNotFound = errors.New("mint configuration not found")

// Source records where a mint pair came from.
type Source string

const (
	// SourceExternal mints are configured by the operator; the wallet is not
	// their authority.
	SourceExternal Source = "external"
	// SourceLocal mints were created by this wallet, which can mint into them.
	SourceLocal Source = "local"
)

// Config is the mint pair a pool is built on, in caller order.
type Config struct {
	MintA  solana.PublicKey `json:"mintA"`
	MintB  solana.PublicKey `json:"mintB"`
	Source Source           `json:"source"`
}

func (c *Config) CanMint() bool {
	return c != nil && c.Source == SourceLocal
}
