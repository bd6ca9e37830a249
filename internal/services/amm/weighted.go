package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

// WeightedOutput evaluates the weighted-constant-product formula:
//
//	out = B_out * (1 - (B_in / (B_in + in*(1-fee)))^(W_in/W_out))
//
// The fractional exponent runs through the 1e18 fixed-point pow.
func WeightedOutput(amountIn *big.Int, pool *domain.Pool, tokenIn, tokenOut common.Address) (*SwapResult, error) {
	if pool == nil || pool.Weighted == nil {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "not a weighted pool")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, swaperrors.NewError(swaperrors.KindInvalidAmount, "amountIn must be positive")
	}

	var in, out *domain.WeightedTokenState
	for i := range pool.Weighted.Tokens {
		st := &pool.Weighted.Tokens[i]
		switch st.Token.Address {
		case tokenIn:
			in = st
		case tokenOut:
			out = st
		}
	}
	if in == nil || out == nil {
		return nil, swaperrors.NewError(swaperrors.KindMissingPoolIdentifier, "token not in pool")
	}

	fee := pool.SwapFeeE18
	lessFee := new(big.Int).Sub(numeric.OneE18, fee)
	amountInAfterFee := numeric.MulDiv(amountIn, lessFee, numeric.OneE18)
	feeAmount := new(big.Int).Sub(amountIn, amountInAfterFee)

	// base = B_in / (B_in + x) in 1e18 scale
	denom := new(big.Int).Add(in.Balance, amountInAfterFee)
	base := numeric.MulDiv(in.Balance, numeric.OneE18, denom)

	// exponent = W_in / W_out in 1e18 scale
	exp := numeric.MulDiv(in.WeightE18, numeric.OneE18, out.WeightE18)

	power := numeric.PowE18(base, exp)
	complement := new(big.Int).Sub(numeric.OneE18, power)
	if complement.Sign() < 0 {
		complement.SetInt64(0)
	}
	amountOut := numeric.MulDiv(out.Balance, complement, numeric.OneE18)

	if amountOut.Cmp(out.Balance) >= 0 {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientLiquidity,
			"output exceeds pool balance")
	}

	return &SwapResult{
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amountOut,
		FeeAmount: feeAmount,
	}, nil
}
