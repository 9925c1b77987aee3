package constants

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Program addresses
var (
	PrivateSwapProgramID   = solana.MustPublicKeyFromBase58("6L8awnTc179Atp7sMharQ8uuBjiKjWxzfEns6qW4fkyF")
	IncoTokenProgramID     = solana.MustPublicKeyFromBase58("HmBw1FN2fXbgqyGpjB268vggBEEymNx98cuPpZQPYDZc")
	IncoLightningProgramID = solana.MustPublicKeyFromBase58("5sjEbPiqgZrYwR31ahR6Uk9wf5awoX61YGg7jExQSwaj")
	PermissionProgramID    = solana.MustPublicKeyFromBase58("ACLseoPoyC3cBqoUtkbjZ4aDrkurZW86v19pXz2XQnp1")
	DelegationProgramID    = solana.MustPublicKeyFromBase58("DELeGGvXpWV2fqJUhqcF5ZSYMS4JTLjteaAMARRSaeSh")
	DefaultValidator       = solana.MustPublicKeyFromBase58("FnE6VJT5QNZdedZPnCoLsARgBwoE6DeJNjBs2H1gySXA")
	DevnetUSDCMint         = solana.MustPublicKeyFromBase58("4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU")
	SystemProgramID        = solana.SystemProgramID
)

// PDA seeds
var (
	PoolSeed               = []byte("pool")
	PermissionSeed         = []byte("permission:")
	DelegationBufferSeed   = []byte("buffer")
	DelegationRecordSeed   = []byte("delegation")
	DelegationMetadataSeed = []byte("delegation-metadata")
)

// Confidential token parameters
const (
	InputType            uint8  = 0
	ConfidentialDecimals uint8  = 9
	DefaultPoolFeeBps    uint16 = 30
	MaxFeeBps            uint16 = 10_000
)

// Liquidity seeded into a freshly created pool
const (
	LiquiditySeedA uint64 = 1_000_000_000
	LiquiditySeedB uint64 = 2_000_000_000
)

// Permission capability flags
const (
	AuthorityFlag         uint8 = 1 << 0
	TxLogsFlag            uint8 = 1 << 1
	TxBalancesFlag        uint8 = 1 << 2
	TxMessageFlag         uint8 = 1 << 3
	AccountSignaturesFlag uint8 = 1 << 4

	DefaultPermissionFlags = AuthorityFlag | TxLogsFlag | TxBalancesFlag | TxMessageFlag | AccountSignaturesFlag
)

// Redis keys
const (
	RedisKeyMintA = "velvet.confidentialMintA"
	RedisKeyMintB = "velvet.confidentialMintB"
)

// Redis Pub/Sub channels
const (
	PubSubChannelStatus = "velvet:status"
)

// Compliance
const (
	RangeRiskURL  = "https://api.range.org/v1/risk/address"
	RiskThreshold = 5
)

// Timing
const (
	QuoteDebounce         = 500 * time.Millisecond
	DefaultConfirmTimeout = 60 * time.Second
)

// Commitment levels
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)
