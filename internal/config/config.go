package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
	"github.com/gagliardetto/solana-go"
)

// ErrInvalidConfiguration is returned when an address or numeric setting is malformed.
var ErrInvalidConfiguration = errors.New("invalid configuration")

type Config struct {
	// RPC settings
	RPCUrl         string
	RPCWSUrl       string
	RPCRateLimit   float64
	ConfirmTimeout time.Duration

	// Execution venue
	VenueURL       string
	VenueEnabled   bool
	VenueValidator string

	// Wallet
	WalletPrivateKey string

	// Pool
	MintA          string
	MintB          string
	PoolFeeBps     int
	LiquiditySeedA uint64
	LiquiditySeedB uint64

	// Pool watching: "ws", "poll" or "off"
	PoolWatch        string
	PoolPollInterval time.Duration

	// Confidential value service
	CovalidatorURL string

	// Compliance
	RangeAPIKey          string
	ComplianceFailClosed bool
	ComplianceCacheTTL   time.Duration

	// Quotes and swap limits, amounts in base units
	QuoteDebounce         time.Duration
	RiskMaxAmountIn       string
	RiskDailyLimit        string
	RiskMaxPriceImpactBps int

	// Redis settings
	RedisAddr string

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// HTTP client settings
	HTTPTimeout  time.Duration
	MaxRetries   int
	RetryBackoff time.Duration

	// API server
	APIAddr   string
	APIKey    string
	APITxRate float64
	TxTimeout time.Duration
	DevMode   bool
}

func Load() *Config {
	venueURL := strings.TrimRight(getEnv("EPHEMERAL_RPC_URL", ""), "/")

	return &Config{
		// RPC
		RPCUrl:         getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		RPCWSUrl:       getEnv("SOLANA_WS_URL", ""),
		RPCRateLimit:   getFloatEnv("RPC_RATE_LIMIT", 10),
		ConfirmTimeout: getDurationEnv("CONFIRM_TIMEOUT", constants.DefaultConfirmTimeout),

		// Venue
		VenueURL:       venueURL,
		VenueEnabled:   getBoolEnv("VENUE_ENABLED", venueURL != ""),
		VenueValidator: getEnv("VENUE_VALIDATOR", constants.DefaultValidator.String()),

		// Wallet
		WalletPrivateKey: getEnv("WALLET_PRIVATE_KEY", ""),

		// Pool
		MintA:          getEnv("CONFIDENTIAL_MINT_A", ""),
		MintB:          getEnv("CONFIDENTIAL_MINT_B", ""),
		PoolFeeBps:     getIntEnv("POOL_FEE_BPS", int(constants.DefaultPoolFeeBps)),
		LiquiditySeedA: getUintEnv("LIQUIDITY_SEED_A", constants.LiquiditySeedA),
		LiquiditySeedB: getUintEnv("LIQUIDITY_SEED_B", constants.LiquiditySeedB),

		PoolWatch:        getEnv("POOL_WATCH", "ws"),
		PoolPollInterval: getDurationEnv("POOL_POLL_INTERVAL", 5*time.Second),

		CovalidatorURL: getEnv("COVALIDATOR_URL", "https://grpc.lightning.devnet.inco.org"),

		// Compliance
		RangeAPIKey:          getEnv("RANGE_API_KEY", ""),
		ComplianceFailClosed: getBoolEnv("COMPLIANCE_FAIL_CLOSED", false),
		ComplianceCacheTTL:   getDurationEnv("COMPLIANCE_CACHE_TTL", 10*time.Minute),

		QuoteDebounce:         getDurationEnv("QUOTE_DEBOUNCE", constants.QuoteDebounce),
		RiskMaxAmountIn:       getEnv("RISK_MAX_AMOUNT_IN", ""),
		RiskDailyLimit:        getEnv("RISK_DAILY_LIMIT", ""),
		RiskMaxPriceImpactBps: getIntEnv("RISK_MAX_PRICE_IMPACT_BPS", 0),

		// Redis
		RedisAddr: getEnv("REDIS_ADDR", "localhost:6379"),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "velvet"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// HTTP
		HTTPTimeout:  getDurationEnv("HTTP_TIMEOUT", 30*time.Second),
		MaxRetries:   getIntEnv("MAX_RETRIES", 3),
		RetryBackoff: getDurationEnv("RETRY_BACKOFF", 1*time.Second),

		// API
		APIAddr:   getEnv("API_ADDR", ":8090"),
		APIKey:    getEnv("API_KEY", ""),
		APITxRate: getFloatEnv("API_TX_RATE", 1),
		TxTimeout: getDurationEnv("TX_TIMEOUT", 5*time.Minute),
		DevMode:   getBoolEnv("DEV_MODE", false),
	}
}

// Validate checks settings that would otherwise fail deep inside a flow.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCUrl) == "" {
		return fmt.Errorf("%w: SOLANA_RPC_URL is required", ErrInvalidConfiguration)
	}
	if c.PoolFeeBps < 0 || c.PoolFeeBps > int(constants.MaxFeeBps) {
		return fmt.Errorf("%w: POOL_FEE_BPS must be within 0..%d, got %d", ErrInvalidConfiguration, constants.MaxFeeBps, c.PoolFeeBps)
	}
	if c.VenueEnabled && c.VenueURL == "" {
		return fmt.Errorf("%w: VENUE_ENABLED requires EPHEMERAL_RPC_URL", ErrInvalidConfiguration)
	}
	if _, err := solana.PublicKeyFromBase58(c.VenueValidator); err != nil {
		return fmt.Errorf("%w: VENUE_VALIDATOR: %v", ErrInvalidConfiguration, err)
	}
	switch c.PoolWatch {
	case "ws", "poll", "off":
	default:
		return fmt.Errorf("%w: POOL_WATCH must be ws, poll or off, got %q", ErrInvalidConfiguration, c.PoolWatch)
	}
	if c.RiskMaxPriceImpactBps < 0 || c.RiskMaxPriceImpactBps > int(constants.MaxFeeBps) {
		return fmt.Errorf("%w: RISK_MAX_PRICE_IMPACT_BPS must be within 0..%d", ErrInvalidConfiguration, constants.MaxFeeBps)
	}
	for name, v := range map[string]string{"RISK_MAX_AMOUNT_IN": c.RiskMaxAmountIn, "RISK_DAILY_LIMIT": c.RiskDailyLimit} {
		if v == "" {
			continue
		}
		if n, ok := new(big.Int).SetString(v, 10); !ok || n.Sign() < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer", ErrInvalidConfiguration, name)
		}
	}
	if c.RPCRateLimit < 0 {
		return fmt.Errorf("%w: RPC_RATE_LIMIT must not be negative", ErrInvalidConfiguration)
	}
	return nil
}

// ConfiguredMints parses the externally configured mint pair. ok is false when
// neither variable is set; an error wraps ErrInvalidConfiguration.
func (c *Config) ConfiguredMints() (mintA, mintB solana.PublicKey, ok bool, err error) {
	if c.MintA == "" && c.MintB == "" {
		return solana.PublicKey{}, solana.PublicKey{}, false, nil
	}
	if c.MintA == "" || c.MintB == "" {
		return solana.PublicKey{}, solana.PublicKey{}, false,
			fmt.Errorf("%w: CONFIDENTIAL_MINT_A and CONFIDENTIAL_MINT_B must be set together", ErrInvalidConfiguration)
	}
	mintA, err = solana.PublicKeyFromBase58(c.MintA)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, false, fmt.Errorf("%w: CONFIDENTIAL_MINT_A: %v", ErrInvalidConfiguration, err)
	}
	mintB, err = solana.PublicKeyFromBase58(c.MintB)
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, false, fmt.Errorf("%w: CONFIDENTIAL_MINT_B: %v", ErrInvalidConfiguration, err)
	}
	return mintA, mintB, true, nil
}

// RiskBounds returns the per-swap and daily input limits; nil means unlimited.
// Call after Validate.
func (c *Config) RiskBounds() (maxAmountIn, dailyLimit *big.Int) {
	parse := func(v string) *big.Int {
		if n, ok := new(big.Int).SetString(v, 10); ok && n.Sign() > 0 {
			return n
		}
		return nil
	}
	return parse(c.RiskMaxAmountIn), parse(c.RiskDailyLimit)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getUintEnv(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(key); val != "" {
		if u, err := strconv.ParseUint(val, 10, 64); err == nil {
			return u
		}
	}
	return defaultVal
}

func getFloatEnv(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
