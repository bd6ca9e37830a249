// Package numeric provides the arbitrary-precision and fixed-point primitives
// shared by the AMM models, the route search and the plan compiler.
package numeric

import (
	"math/big"

	"github.com/halcyontrade/swap-engine/internal/common"
)

const (
	// MinTick and MaxTick bound the concentrated-liquidity price grid.
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

var (
	// MinSqrtRatio is sqrtPriceAtTick(MinTick); MaxSqrtRatio is
	// sqrtPriceAtTick(MaxTick). Both are Q64.96.
	MinSqrtRatio = big.NewInt(4295128739)
	MaxSqrtRatio, _ = new(big.Int).SetString("1461446703485210103287273052203988822378723970342", 10)

	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

	// Per-bit ratio constants: floor(2^128 / sqrt(1.0001)^(2^i)) for bit i of |tick|.
	tickRatios = mustRatios([]string{
		"fffcb933bd6fad37aa2d162d1a594001",
		"fff97272373d413259a46990580e213a",
		"fff2e50f5f656932ef12357cf3c7fdcc",
		"ffe5caca7e10e4e61c3624eaa0941cd0",
		"ffcb9843d60f6159c9db58835c926644",
		"ff973b41fa98c081472e6896dfb254c0",
		"ff2ea16466c96a3843ec78b326b52861",
		"fe5dee046a99a2a811c461f1969c3053",
		"fcbe86c7900a88aedcffc83b479aa3a4",
		"f987a7253ac413176f2b074cf7815e54",
		"f3392b0822b70005940c7a398e4b70f3",
		"e7159475a2c29b7443b29c7fa6e889d9",
		"d097f3bdfd2022b8845ad8f792aa5825",
		"a9f746462d870fdf8a65dc1f90e061e5",
		"70d869a156d2a1b890bb3df62baf32f7",
		"31be135f97d08fd981231505542fcfa6",
		"9aa508b5b7a84e1c677de54f3e99bc9",
		"5d6af8dedb81196699c329225ee604",
		"2216e584f5fa1ea926041bedfe98",
		"48a170391f7dc42444e8fa2",
	})

	q128 = new(big.Int).Lsh(big.NewInt(1), 128)

	u32Mask = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 32), big.NewInt(1))
)

func mustRatios(hexes []string) []*big.Int {
	out := make([]*big.Int, len(hexes))
	for i, h := range hexes {
		v, ok := new(big.Int).SetString(h, 16)
		if !ok {
			panic("numeric: bad tick ratio constant " + h)
		}
		out[i] = v
	}
	return out
}

// SqrtPriceAtTick computes the Q64.96 representation of 1.0001^(tick/2).
// The walk multiplies a Q128 accumulator by one tabulated constant per set
// bit of |tick|, inverts for positive ticks, then rounds half-up into Q64.96.
func SqrtPriceAtTick(tick int32) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, common.NewError(common.KindInvalidTick, "tick out of range")
	}

	absTick := uint32(tick)
	if tick < 0 {
		absTick = uint32(-tick)
	}

	ratio := new(big.Int).Set(q128)
	if absTick&1 != 0 {
		ratio.Set(tickRatios[0])
	}
	for i := 1; i < len(tickRatios); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, tickRatios[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(maxUint256, ratio)
	}

	// Q128 -> Q96, rounding up so the result round-trips against the
	// on-chain reference at both range extremes.
	rem := new(big.Int).And(ratio, u32Mask)
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// TickAtSqrtPrice returns the largest tick whose sqrt price is <= sqrt.
// Binary search over SqrtPriceAtTick keeps the round-trip law exact.
func TickAtSqrtPrice(sqrt *big.Int) (int32, error) {
	if sqrt == nil || sqrt.Cmp(MinSqrtRatio) < 0 || sqrt.Cmp(MaxSqrtRatio) > 0 {
		return 0, common.NewError(common.KindInvalidSqrtRatio, "sqrt ratio out of range")
	}

	lo, hi := MinTick, MaxTick
	for lo < hi {
		// Bias the midpoint up so the loop converges onto the largest tick.
		mid := lo + (hi-lo+1)/2
		price, err := SqrtPriceAtTick(mid)
		if err != nil {
			return 0, err
		}
		if price.Cmp(sqrt) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo, nil
}
