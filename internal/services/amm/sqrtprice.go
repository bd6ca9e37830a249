// Package amm holds the pure output functions for every pool variant.
// The route search and the splitter call the same functions.
package amm

import (
	"math/big"

	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

// getAmount0Delta returns the token0 amount moved between two sqrt prices
// for the given liquidity. sqrtA must be <= sqrtB on entry (callers swap).
func getAmount0Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	numerator1 := new(big.Int).Lsh(liquidity, 96)
	numerator2 := new(big.Int).Sub(sqrtB, sqrtA)

	if roundUp {
		return numeric.DivRoundingUp(
			numeric.MulDivRoundingUp(numerator1, numerator2, sqrtB),
			sqrtA,
		)
	}
	out := numeric.MulDiv(numerator1, numerator2, sqrtB)
	return out.Div(out, sqrtA)
}

// getAmount1Delta returns the token1 amount moved between two sqrt prices.
func getAmount1Delta(sqrtA, sqrtB, liquidity *big.Int, roundUp bool) *big.Int {
	if sqrtA.Cmp(sqrtB) > 0 {
		sqrtA, sqrtB = sqrtB, sqrtA
	}
	diff := new(big.Int).Sub(sqrtB, sqrtA)
	if roundUp {
		return numeric.MulDivRoundingUp(liquidity, diff, numeric.Q96)
	}
	return numeric.MulDiv(liquidity, diff, numeric.Q96)
}

// getNextSqrtPriceFromInput computes the price after consuming amountIn,
// rounding so the pool never underpays.
func getNextSqrtPriceFromInput(sqrtPrice, liquidity, amountIn *big.Int, zeroForOne bool) *big.Int {
	if zeroForOne {
		// sqrtNext = ceil(L*Q96*sqrt / (L*Q96 + amountIn*sqrt))
		numerator := new(big.Int).Lsh(liquidity, 96)
		product := new(big.Int).Mul(amountIn, sqrtPrice)
		denominator := new(big.Int).Add(numerator, product)
		return numeric.MulDivRoundingUp(numerator, sqrtPrice, denominator)
	}
	// sqrtNext = sqrt + floor(amountIn*Q96/L)
	quotient := numeric.MulDiv(amountIn, numeric.Q96, liquidity)
	return new(big.Int).Add(sqrtPrice, quotient)
}

// computeSwapStep advances the price toward sqrtTarget, consuming up to
// amountRemaining of input. Returns the price reached, the input consumed
// (fee excluded), the output produced, and the fee taken.
func computeSwapStep(
	sqrtCurrent, sqrtTarget, liquidity, amountRemaining *big.Int,
	feePips uint32,
) (sqrtNext, amountIn, amountOut, feeAmount *big.Int) {
	zeroForOne := sqrtCurrent.Cmp(sqrtTarget) >= 0

	feeDenom := big.NewInt(1_000_000)
	feeBig := big.NewInt(int64(feePips))
	lessFee := new(big.Int).Sub(feeDenom, feeBig)
	amountRemainingLessFee := numeric.MulDiv(amountRemaining, lessFee, feeDenom)

	if zeroForOne {
		amountIn = getAmount0Delta(sqrtTarget, sqrtCurrent, liquidity, true)
	} else {
		amountIn = getAmount1Delta(sqrtCurrent, sqrtTarget, liquidity, true)
	}

	if amountRemainingLessFee.Cmp(amountIn) >= 0 {
		sqrtNext = new(big.Int).Set(sqrtTarget)
	} else {
		sqrtNext = getNextSqrtPriceFromInput(sqrtCurrent, liquidity, amountRemainingLessFee, zeroForOne)
	}

	reachedTarget := sqrtNext.Cmp(sqrtTarget) == 0

	if zeroForOne {
		if !reachedTarget {
			amountIn = getAmount0Delta(sqrtNext, sqrtCurrent, liquidity, true)
		}
		amountOut = getAmount1Delta(sqrtNext, sqrtCurrent, liquidity, false)
	} else {
		if !reachedTarget {
			amountIn = getAmount1Delta(sqrtCurrent, sqrtNext, liquidity, true)
		}
		amountOut = getAmount0Delta(sqrtCurrent, sqrtNext, liquidity, false)
	}

	if !reachedTarget {
		// Did not reach the target: the fee is whatever input was left over.
		feeAmount = new(big.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount = numeric.MulDivRoundingUp(amountIn, feeBig, lessFee)
	}
	return sqrtNext, amountIn, amountOut, feeAmount
}
