// Package quote implements constant-product (x*y=k) pricing over plaintext
// reserves. All arithmetic is on math/big so intermediate products never wrap.
package quote

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

const bpsDenominator = 10_000

var ErrInvalidAmount = errors.New("invalid amount")

// Result is a single quote. A degenerate quote (empty pool or input fully
// consumed by the fee) is all zeros rather than an error.
type Result struct {
	NetIn     *big.Int
	AmountOut *big.Int
	FeeAmount *big.Int
}

// IsZero reports whether the quote is degenerate.
func (r Result) IsZero() bool {
	return r.NetIn.Sign() == 0 && r.AmountOut.Sign() == 0 && r.FeeAmount.Sign() == 0
}

func zero() Result {
	return Result{NetIn: new(big.Int), AmountOut: new(big.Int), FeeAmount: new(big.Int)}
}

// Compute quotes a swap of amountIn against (reserveIn, reserveOut) at feeBps.
//
//	fee    = floor(amountIn * feeBps / 10000)
//	netIn  = amountIn - fee
//	out    = floor(netIn * reserveOut / (reserveIn + netIn))
func Compute(amountIn, reserveIn, reserveOut *big.Int, feeBps uint16) Result {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return zero()
	}

	fee := new(big.Int).Mul(amountIn, big.NewInt(int64(feeBps)))
	fee.Quo(fee, big.NewInt(bpsDenominator))

	netIn := new(big.Int).Sub(amountIn, fee)
	if netIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return zero()
	}

	numerator := new(big.Int).Mul(netIn, reserveOut)
	denominator := new(big.Int).Add(reserveIn, netIn)
	out := new(big.Int).Quo(numerator, denominator)

	return Result{NetIn: netIn, AmountOut: out, FeeAmount: fee}
}

// Reserves orders the pool reserves for a trade direction.
func Reserves(aToB bool, reserveA, reserveB *big.Int) (in, out *big.Int) {
	if aToB {
		return reserveA, reserveB
	}
	return reserveB, reserveA
}

// PriceImpact is 1 - executionRate/idealRate, clamped at 0. It is a display
// figure only and uses float64.
func PriceImpact(amountIn, reserveIn, reserveOut, amountOut *big.Int) float64 {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return 0
	}
	ideal, _ := new(big.Rat).SetFrac(reserveOut, reserveIn).Float64()
	exec, _ := new(big.Rat).SetFrac(amountOut, amountIn).Float64()
	if ideal <= 0 {
		return 0
	}
	return math.Max(0, 1-(exec/ideal))
}

// ParseAmount parses a non-negative base-unit integer.
func ParseAmount(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidAmount, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	return v, nil
}

// ParseUIAmount converts a decimal string in whole tokens ("1.5") into base
// units at the given decimals, truncating any extra precision.
func ParseUIAmount(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, s)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))
	return new(big.Int).Quo(r.Num(), r.Denom()), nil
}

// FormatUIAmount renders base units as a decimal string in whole tokens,
// trimming trailing zeros ("1500000", 6 -> "1.5").
func FormatUIAmount(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	neg := v.Sign() < 0
	digits := new(big.Int).Abs(v).String()
	if d := int(decimals); d > 0 {
		if len(digits) <= d {
			digits = strings.Repeat("0", d-len(digits)+1) + digits
		}
		whole, frac := digits[:len(digits)-d], strings.TrimRight(digits[len(digits)-d:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}
