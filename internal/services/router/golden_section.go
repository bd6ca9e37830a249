package router

import (
	"math/big"

	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
)

const (
	GoldenRatio     = 1.6180339887498948482
	GoldenTolerance = 1e-5 // terminate when the interval width drops below this

	// ratioPrecision is the fixed-point scale for fraction-to-amount
	// conversion (6 decimal places).
	ratioPrecision = 1_000_000
)

// mulRatio multiplies an amount by a float ratio via 1e6 fixed-point,
// rounding toward zero. Floating point never touches the amount itself.
func mulRatio(amount *big.Int, ratio float64) *big.Int {
	if ratio <= 0 {
		return big.NewInt(0)
	}
	if ratio >= 1 {
		return new(big.Int).Set(amount)
	}
	fixed := big.NewInt(int64(ratio * ratioPrecision))
	out := new(big.Int).Mul(amount, fixed)
	return out.Div(out, big.NewInt(ratioPrecision))
}

// evalSplit evaluates the total output of allocating fractions[i]*amountIn
// to paths[i]. Returns nil routes and zero total when any leg fails.
func evalSplit(paths []Path, from domain.Token, amountIn *big.Int, fractions []float64) ([]*domain.Route, *big.Int) {
	routes := make([]*domain.Route, len(paths))
	total := new(big.Int)
	remaining := new(big.Int).Set(amountIn)

	for i, path := range paths {
		var amt *big.Int
		if i == len(paths)-1 {
			amt = remaining // last leg absorbs rounding residue
		} else {
			amt = mulRatio(amountIn, fractions[i])
			remaining = new(big.Int).Sub(remaining, amt)
		}
		if amt.Sign() <= 0 {
			return nil, big.NewInt(0)
		}
		route, err := EvaluatePath(path, from, amt)
		if err != nil {
			return nil, big.NewInt(0)
		}
		routes[i] = route
		total.Add(total, route.AmountOut)
	}
	return routes, total
}

// goldenSection maximizes f over [a, b] down to GoldenTolerance width and
// returns the best coordinate found.
func goldenSection(a, b float64, f func(float64) *big.Int) float64 {
	c := b - (b-a)/GoldenRatio
	d := a + (b-a)/GoldenRatio
	fc := f(c)
	fd := f(d)

	bestX, bestV := c, fc
	if fd.Cmp(fc) > 0 {
		bestX, bestV = d, fd
	}

	for b-a > GoldenTolerance {
		if fc.Cmp(fd) > 0 {
			b = d
			d = c
			fd = fc
			c = b - (b-a)/GoldenRatio
			fc = f(c)
			if fc.Cmp(bestV) > 0 {
				bestX, bestV = c, fc
			}
		} else {
			a = c
			c = d
			fc = fd
			d = a + (b-a)/GoldenRatio
			fd = f(d)
			if fd.Cmp(bestV) > 0 {
				bestX, bestV = d, fd
			}
		}
	}
	return bestX
}

// FindOptimalSplit optimizes allocation fractions across 2-4 pool-disjoint
// paths: golden-section for two, nested golden-section for three, equal
// split for four (a full n-dimensional search is future work).
func FindOptimalSplit(paths []Path, from domain.Token, amountIn *big.Int) (*domain.SplitRoute, error) {
	switch {
	case len(paths) < 2:
		return nil, swapcommon.NewError(swapcommon.KindNoRoute, "split needs at least two paths")
	case len(paths) > 4:
		paths = paths[:4]
	}

	var fractions []float64
	switch len(paths) {
	case 2:
		f1 := goldenSection(0, 1, func(x float64) *big.Int {
			_, total := evalSplit(paths, from, amountIn, []float64{x, 1 - x})
			return total
		})
		fractions = []float64{f1, 1 - f1}

	case 3:
		// Outer coordinate allocates to path 0; the inner search splits the
		// remainder between paths 1 and 2.
		innerBest := func(outer float64) float64 {
			return goldenSection(0, 1, func(y float64) *big.Int {
				rest := 1 - outer
				_, total := evalSplit(paths, from, amountIn, []float64{outer, rest * y, rest * (1 - y)})
				return total
			})
		}
		f1 := goldenSection(0, 1, func(x float64) *big.Int {
			y := innerBest(x)
			rest := 1 - x
			_, total := evalSplit(paths, from, amountIn, []float64{x, rest * y, rest * (1 - y)})
			return total
		})
		y := innerBest(f1)
		rest := 1 - f1
		fractions = []float64{f1, rest * y, rest * (1 - y)}

	case 4:
		fractions = []float64{0.25, 0.25, 0.25, 0.25}
	}

	routes, total := evalSplit(paths, from, amountIn, fractions)
	if routes == nil || total.Sign() <= 0 {
		return nil, swapcommon.NewError(swapcommon.KindNoRoute, "split evaluation failed")
	}

	return &domain.SplitRoute{
		Routes:    routes,
		Fractions: fractions,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: total,
	}, nil
}
