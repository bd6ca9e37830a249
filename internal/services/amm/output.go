package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/holiman/uint256"
)

// Output dispatches over the closed pool-variant set.
func Output(amountIn *big.Int, pool *domain.Pool, tokenIn, tokenOut common.Address) (*SwapResult, error) {
	switch pool.Type {
	case domain.PoolTypeConcentrated:
		return ConcentratedOutput(amountIn, pool, pool.ZeroForOne(tokenIn))
	case domain.PoolTypeWeighted:
		return WeightedOutput(amountIn, pool, tokenIn, tokenOut)
	case domain.PoolTypeStable:
		return StableOutput(amountIn, pool, tokenIn, tokenOut)
	default:
		return nil, swaperrors.NewError(swaperrors.KindUnknownRouteType, "unsupported pool type")
	}
}

// PriceImpactBps estimates execution impact in basis points from the pool's
// marginal price versus the realized price. Fixed-width u256 math keeps this
// allocation-light on the search hot path.
func PriceImpactBps(amountIn, amountOut *big.Int, sqrtPriceX96 *big.Int, zeroForOne bool) uint16 {
	if amountIn == nil || amountOut == nil || amountIn.Sign() == 0 || amountOut.Sign() == 0 {
		return 0
	}
	sqrtP, overflow := uint256.FromBig(sqrtPriceX96)
	if overflow || sqrtP.IsZero() {
		return 0
	}

	in, inOv := uint256.FromBig(amountIn)
	out, outOv := uint256.FromBig(amountOut)
	if inOv || outOv {
		return 0
	}

	// Spot output at the pre-trade marginal price.
	// zeroForOne: spotOut = in * (sqrtP/Q96)^2; else the inverse.
	var spot uint256.Int
	if zeroForOne {
		spot.Mul(in, sqrtP)
		spot.Rsh(&spot, 96)
		spot.Mul(&spot, sqrtP)
		spot.Rsh(&spot, 96)
	} else {
		spot.Lsh(in, 96)
		spot.Div(&spot, sqrtP)
		spot.Lsh(&spot, 96)
		spot.Div(&spot, sqrtP)
	}
	if spot.IsZero() || spot.Cmp(out) <= 0 {
		return 0
	}

	var diff uint256.Int
	diff.Sub(&spot, out)
	diff.Mul(&diff, uint256.NewInt(10000))
	diff.Div(&diff, &spot)
	if !diff.IsUint64() || diff.Uint64() > 10000 {
		return 10000
	}
	return uint16(diff.Uint64())
}
