package amm

import (
	"math/big"
	"sort"

	"github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

// SwapResult reports an AMM evaluation.
type SwapResult struct {
	AmountIn  *big.Int
	AmountOut *big.Int
	FeeAmount *big.Int
}

// ConcentratedOutput walks the pool's tick list in the trade direction,
// consuming amountIn sub-step by sub-step and crossing initialized ticks
// as liquidity changes. The walk mirrors the on-chain swap loop so that
// tick-aligned inputs reproduce the reference output exactly.
func ConcentratedOutput(amountIn *big.Int, pool *domain.Pool, zeroForOne bool) (*SwapResult, error) {
	if pool == nil || pool.Concentrated == nil {
		return nil, common.NewError(common.KindInsufficientRouteData, "not a concentrated pool")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, common.NewError(common.KindInvalidAmount, "amountIn must be positive")
	}

	cd := pool.Concentrated
	sqrtPrice := new(big.Int).Set(cd.SqrtPriceX96)
	liquidity := new(big.Int).Set(cd.Liquidity)
	amountRemaining := new(big.Int).Set(amountIn)

	totalIn := new(big.Int)
	totalOut := new(big.Int)
	totalFee := new(big.Int)

	// Index of the next initialized tick in the walk direction.
	// cd.Ticks is sorted ascending after sanitization.
	var nextIdx int
	if zeroForOne {
		nextIdx = sort.Search(len(cd.Ticks), func(i int) bool {
			return cd.Ticks[i].Index > cd.Tick
		}) - 1
	} else {
		nextIdx = sort.Search(len(cd.Ticks), func(i int) bool {
			return cd.Ticks[i].Index > cd.Tick
		})
	}

	for amountRemaining.Sign() > 0 {
		// Past the last initialized tick the walk targets the price grid
		// bound itself: the active range still fills orders until the price
		// pins at MIN/MAX tick, matching the on-chain swap.
		atBound := nextIdx < 0 || nextIdx >= len(cd.Ticks)
		if atBound && liquidity.Sign() <= 0 {
			return nil, common.NewError(common.KindInsufficientLiquidity,
				"tick list exhausted before input consumed")
		}

		targetTick := numeric.MinTick
		if !zeroForOne {
			targetTick = numeric.MaxTick
		}
		if !atBound {
			targetTick = cd.Ticks[nextIdx].Index
		}
		target, err := numeric.SqrtPriceAtTick(targetTick)
		if err != nil {
			return nil, err
		}

		if liquidity.Sign() <= 0 {
			// No active liquidity in this range: jump to the next tick.
			sqrtPrice = target
			liquidity, nextIdx = crossTick(cd, liquidity, nextIdx, zeroForOne)
			continue
		}

		sqrtNext, stepIn, stepOut, stepFee := computeSwapStep(
			sqrtPrice, target, liquidity, amountRemaining, cd.FeePips)

		consumed := new(big.Int).Add(stepIn, stepFee)
		amountRemaining.Sub(amountRemaining, consumed)
		totalIn.Add(totalIn, consumed)
		totalOut.Add(totalOut, stepOut)
		totalFee.Add(totalFee, stepFee)
		sqrtPrice = sqrtNext

		if sqrtPrice.Cmp(target) == 0 {
			if atBound {
				if amountRemaining.Sign() > 0 {
					return nil, common.NewError(common.KindInsufficientLiquidity,
						"price pinned at tick range bound before input consumed")
				}
				break
			}
			liquidity, nextIdx = crossTick(cd, liquidity, nextIdx, zeroForOne)
		} else if amountRemaining.Sign() > 0 {
			// Rounding left a residual smaller than one price quantum; stop.
			break
		}
	}

	return &SwapResult{AmountIn: totalIn, AmountOut: totalOut, FeeAmount: totalFee}, nil
}

// crossTick applies liquidityNet at cd.Ticks[idx] (sign flipped when moving
// down) and advances the walk index.
func crossTick(cd *domain.ConcentratedData, liquidity *big.Int, idx int, zeroForOne bool) (*big.Int, int) {
	net := cd.Ticks[idx].LiquidityNet
	out := new(big.Int).Set(liquidity)
	if zeroForOne {
		out.Sub(out, net)
		return out, idx - 1
	}
	out.Add(out, net)
	return out, idx + 1
}
