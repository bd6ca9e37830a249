package numeric

import (
	"math/big"

	"github.com/holiman/uint256"
)

var (
	// Q96 is the 2^96 fixed-point scale of concentrated-pool sqrt prices.
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)

	// OneE18 is the 1e18 scale used by fraction and weight arithmetic.
	OneE18 = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	// MaxUint256 is the use-all-balance sentinel on the wire.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// MulDiv computes floor(a*b/denom) without intermediate overflow.
func MulDiv(a, b, denom *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Div(out, denom)
}

// MulDivRoundingUp computes ceil(a*b/denom).
func MulDivRoundingUp(a, b, denom *big.Int) *big.Int {
	prod := new(big.Int).Mul(a, b)
	out, rem := new(big.Int).DivMod(prod, denom, new(big.Int))
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// DivRoundingUp computes ceil(a/denom).
func DivRoundingUp(a, denom *big.Int) *big.Int {
	out, rem := new(big.Int).DivMod(a, denom, new(big.Int))
	if rem.Sign() != 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// U256 converts a non-negative big.Int into a uint256.Int, clamping at max.
func U256(v *big.Int) *uint256.Int {
	out, overflow := uint256.FromBig(v)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return out
}

const lnIterations = 40

// lnE18 computes ln(x) for x scaled by 1e18 using atanh series:
// ln(x) = 2*artanh((x-1)/(x+1)). Converges fast after range reduction
// by powers of 2 (ln 2 added back per halving).
func lnE18(x *big.Int) *big.Int {
	if x.Sign() <= 0 {
		return new(big.Int).Set(minInt64Big)
	}

	ln2, _ := new(big.Int).SetString("693147180559945309", 10) // ln(2) * 1e18

	// Range-reduce into [1, 2).
	k := int64(0)
	v := new(big.Int).Set(x)
	two := new(big.Int).Lsh(OneE18, 1)
	for v.Cmp(two) >= 0 {
		v.Rsh(v, 1)
		k++
	}
	for v.Cmp(OneE18) < 0 {
		v.Lsh(v, 1)
		k--
	}

	// z = (v-1)/(v+1) in 1e18 scale.
	num := new(big.Int).Sub(v, OneE18)
	den := new(big.Int).Add(v, OneE18)
	z := MulDiv(num, OneE18, den)

	zsq := MulDiv(z, z, OneE18)
	term := new(big.Int).Set(z)
	sum := new(big.Int).Set(z)
	for i := int64(1); i < lnIterations; i++ {
		term = MulDiv(term, zsq, OneE18)
		sum.Add(sum, new(big.Int).Div(term, big.NewInt(2*i+1)))
		if term.Sign() == 0 {
			break
		}
	}
	sum.Lsh(sum, 1)

	sum.Add(sum, new(big.Int).Mul(ln2, big.NewInt(k)))
	return sum
}

var minInt64Big = big.NewInt(-(1 << 62))

const expIterations = 64

// expE18 computes e^x for x scaled by 1e18 via the Taylor series, with
// range reduction by halving so the series stays inside convergence radius.
func expE18(x *big.Int) *big.Int {
	neg := x.Sign() < 0
	v := new(big.Int).Abs(x)

	// Halve until v < 1e18, square the result back up.
	halvings := 0
	for v.Cmp(OneE18) >= 0 {
		v.Rsh(v, 1)
		halvings++
	}

	term := new(big.Int).Set(OneE18)
	sum := new(big.Int).Set(OneE18)
	for i := int64(1); i < expIterations; i++ {
		term = MulDiv(term, v, OneE18)
		term.Div(term, big.NewInt(i))
		if term.Sign() == 0 {
			break
		}
		sum.Add(sum, term)
	}

	for i := 0; i < halvings; i++ {
		sum = MulDiv(sum, sum, OneE18)
	}

	if neg {
		return MulDiv(OneE18, OneE18, sum)
	}
	return sum
}

// PowE18 computes base^exp with both operands scaled by 1e18, via
// exp(exp * ln(base)). Relative error stays well below 1e-9 for the
// balance ratios the weighted model feeds it.
func PowE18(base, exp *big.Int) *big.Int {
	if base.Sign() <= 0 {
		return big.NewInt(0)
	}
	if exp.Sign() == 0 {
		return new(big.Int).Set(OneE18)
	}
	lnBase := lnE18(base)
	arg := MulDiv(exp, lnBase, OneE18)
	return expE18(arg)
}
