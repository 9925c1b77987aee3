package swapengine

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var ErrRiskLimit = errors.New("risk limit exceeded")

// RiskConfig bounds what a single wallet may swap. Zero values disable a check.
type RiskConfig struct {
	MaxAmountIn       *big.Int // raw units per swap
	DailyLimit        *big.Int // raw units of input per rolling 24h
	MaxPriceImpactBps uint16
}

// RiskManager enforces RiskConfig per wallet
type RiskManager struct {
	config RiskConfig

	mu     sync.Mutex
	usage  map[string][]usageRecord
	window time.Duration
	now    func() time.Time
}

type usageRecord struct {
	at     time.Time
	amount *big.Int
}

func NewRiskManager(config RiskConfig) *RiskManager {
	return &RiskManager{
		config: config,
		usage:  make(map[string][]usageRecord),
		window: 24 * time.Hour,
		now:    time.Now,
	}
}

// CheckSwap validates a quote against the per-swap, daily and price impact limits.
func (rm *RiskManager) CheckSwap(wallet string, q *Quote) error {
	if rm == nil {
		return nil
	}

	if ceiling := rm.config.MaxAmountIn; ceiling != nil && ceiling.Sign() > 0 && q.AmountIn.Cmp(ceiling) > 0 {
		return fmt.Errorf("%w: amount %s exceeds max %s per swap", ErrRiskLimit, q.AmountIn, ceiling)
	}

	if limit := rm.config.DailyLimit; limit != nil && limit.Sign() > 0 {
		used := rm.DailyUsage(wallet)
		if new(big.Int).Add(used, q.AmountIn).Cmp(limit) > 0 {
			return fmt.Errorf("%w: daily limit %s reached (used %s)", ErrRiskLimit, limit, used)
		}
	}

	if bps := rm.config.MaxPriceImpactBps; bps > 0 && q.PriceImpact*10000 > float64(bps) {
		return fmt.Errorf("%w: price impact %.2f%% exceeds max %.2f%%",
			ErrRiskLimit, q.PriceImpact*100, float64(bps)/100)
	}
	return nil
}

// RecordSwap counts a confirmed swap towards the wallet's daily usage.
func (rm *RiskManager) RecordSwap(wallet string, amountIn *big.Int) {
	if rm == nil {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.usage[wallet] = append(rm.cleanup(wallet), usageRecord{at: rm.now(), amount: new(big.Int).Set(amountIn)})
}

// DailyUsage sums the wallet's input over the rolling window.
func (rm *RiskManager) DailyUsage(wallet string) *big.Int {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	total := new(big.Int)
	for _, r := range rm.cleanup(wallet) {
		total.Add(total, r.amount)
	}
	return total
}

// cleanup drops records older than the window. Callers hold mu.
func (rm *RiskManager) cleanup(wallet string) []usageRecord {
	cutoff := rm.now().Add(-rm.window)
	kept := rm.usage[wallet][:0]
	for _, r := range rm.usage[wallet] {
		if r.at.After(cutoff) {
			kept = append(kept, r)
		}
	}
	rm.usage[wallet] = kept
	return kept
}
