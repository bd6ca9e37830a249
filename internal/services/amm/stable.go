package amm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

const stableMaxIterations = 255

// stableInvariant solves the StableSwap invariant D by Newton's method
// over the pool balances. Converges in a handful of iterations; the
// iteration count is bounded so degenerate inputs cannot spin.
func stableInvariant(amp uint64, balances []*big.Int) *big.Int {
	n := int64(len(balances))
	sum := new(big.Int)
	for _, b := range balances {
		sum.Add(sum, b)
	}
	if sum.Sign() == 0 {
		return big.NewInt(0)
	}

	// Ann = A * n^n
	ann := new(big.Int).SetUint64(amp)
	nPowN := new(big.Int).Exp(big.NewInt(n), big.NewInt(n), nil)
	ann.Mul(ann, nPowN)

	d := new(big.Int).Set(sum)
	nBig := big.NewInt(n)
	for i := 0; i < stableMaxIterations; i++ {
		// dP = D^(n+1) / (n^n * prod(balances))
		dP := new(big.Int).Set(d)
		for _, b := range balances {
			dP = numeric.MulDiv(dP, d, new(big.Int).Mul(b, nBig))
		}

		prev := new(big.Int).Set(d)

		// D = (Ann*S + n*dP) * D / ((Ann-1)*D + (n+1)*dP)
		num := new(big.Int).Mul(ann, sum)
		num.Add(num, new(big.Int).Mul(dP, nBig))
		num.Mul(num, d)

		den := new(big.Int).Mul(new(big.Int).Sub(ann, big.NewInt(1)), d)
		den.Add(den, new(big.Int).Mul(new(big.Int).Add(nBig, big.NewInt(1)), dP))

		d = num.Div(num, den)

		diff := new(big.Int).Sub(d, prev)
		if diff.CmpAbs(big.NewInt(1)) <= 0 {
			break
		}
	}
	return d
}

// stableY solves for the post-swap out-balance given the invariant and the
// updated in-balance, again by bounded Newton iteration.
func stableY(amp uint64, balances []*big.Int, outIdx int, d *big.Int) *big.Int {
	n := int64(len(balances))
	nBig := big.NewInt(n)
	ann := new(big.Int).SetUint64(amp)
	ann.Mul(ann, new(big.Int).Exp(nBig, nBig, nil))

	c := new(big.Int).Set(d)
	s := new(big.Int)
	for i, b := range balances {
		if i == outIdx {
			continue
		}
		s.Add(s, b)
		c = numeric.MulDiv(c, d, new(big.Int).Mul(b, nBig))
	}
	c = numeric.MulDiv(c, d, new(big.Int).Mul(ann, nBig))

	b := new(big.Int).Add(s, new(big.Int).Div(d, ann))

	y := new(big.Int).Set(d)
	for i := 0; i < stableMaxIterations; i++ {
		prev := new(big.Int).Set(y)

		// y = (y^2 + c) / (2y + b - D)
		num := new(big.Int).Mul(y, y)
		num.Add(num, c)
		den := new(big.Int).Lsh(y, 1)
		den.Add(den, b)
		den.Sub(den, d)
		y = num.Div(num, den)

		diff := new(big.Int).Sub(y, prev)
		if diff.CmpAbs(big.NewInt(1)) <= 0 {
			break
		}
	}
	return y
}

// StableOutput evaluates the two-token StableSwap model: the invariant is
// held fixed while the in-balance grows by amountIn less fee, and the
// decrease of the out-balance is the output.
func StableOutput(amountIn *big.Int, pool *domain.Pool, tokenIn, tokenOut common.Address) (*SwapResult, error) {
	if pool == nil || pool.Stable == nil {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "not a stable pool")
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, swaperrors.NewError(swaperrors.KindInvalidAmount, "amountIn must be positive")
	}

	inIdx, outIdx := -1, -1
	balances := make([]*big.Int, len(pool.Stable.Tokens))
	for i := range pool.Stable.Tokens {
		st := &pool.Stable.Tokens[i]
		balances[i] = new(big.Int).Set(st.Balance)
		switch st.Token.Address {
		case tokenIn:
			inIdx = i
		case tokenOut:
			outIdx = i
		}
	}
	if inIdx < 0 || outIdx < 0 {
		return nil, swaperrors.NewError(swaperrors.KindMissingPoolIdentifier, "token not in pool")
	}

	lessFee := new(big.Int).Sub(numeric.OneE18, pool.SwapFeeE18)
	amountInAfterFee := numeric.MulDiv(amountIn, lessFee, numeric.OneE18)
	feeAmount := new(big.Int).Sub(amountIn, amountInAfterFee)

	d := stableInvariant(pool.Stable.Amplification, balances)
	balances[inIdx].Add(balances[inIdx], amountInAfterFee)

	newOut := stableY(pool.Stable.Amplification, balances, outIdx, d)
	amountOut := new(big.Int).Sub(pool.Stable.Tokens[outIdx].Balance, newOut)
	amountOut.Sub(amountOut, big.NewInt(1)) // round against the trader
	if amountOut.Sign() <= 0 {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientLiquidity, "no output at this size")
	}

	return &SwapResult{
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amountOut,
		FeeAmount: feeAmount,
	}, nil
}
