package router

import (
	"math/big"

	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/amm"
)

// ImpactSeverity buckets a price impact for display.
type ImpactSeverity string

const (
	ImpactNone     ImpactSeverity = "none"     // < 1%
	ImpactLow      ImpactSeverity = "low"      // 1-3%
	ImpactModerate ImpactSeverity = "moderate" // 3-5%
	ImpactHigh     ImpactSeverity = "high"     // 5-10%
	ImpactExtreme  ImpactSeverity = "extreme"  // > 10%
)

const (
	impactLowBps      uint16 = 100
	impactModerateBps uint16 = 300
	impactHighBps     uint16 = 500
	impactExtremeBps  uint16 = 1000
)

// SeverityFor classifies a basis-point impact.
func SeverityFor(bps uint16) ImpactSeverity {
	switch {
	case bps < impactLowBps:
		return ImpactNone
	case bps < impactModerateBps:
		return ImpactLow
	case bps < impactHighBps:
		return ImpactModerate
	case bps < impactExtremeBps:
		return ImpactHigh
	default:
		return ImpactExtreme
	}
}

// ImpactWarning returns the display warning for a basis-point impact, empty
// when the impact is negligible.
func ImpactWarning(bps uint16) string {
	switch SeverityFor(bps) {
	case ImpactLow:
		return "Low price impact"
	case ImpactModerate:
		return "Moderate price impact - consider reducing trade size"
	case ImpactHigh:
		return "High price impact - you may receive significantly less tokens"
	case ImpactExtreme:
		return "EXTREME price impact - this trade will severely move the pool price"
	default:
		return ""
	}
}

// legImpactBps estimates one leg's impact from the pool's pre-trade marginal
// price versus the realized price.
func legImpactBps(leg domain.Leg) uint16 {
	pool := leg.Pool
	if pool == nil || leg.InputAmount == nil || leg.ExpectedOutput == nil {
		return 0
	}
	if leg.InputAmount.Sign() <= 0 || leg.ExpectedOutput.Sign() <= 0 {
		return 0
	}

	switch pool.Type {
	case domain.PoolTypeConcentrated:
		if pool.Concentrated == nil {
			return 0
		}
		return amm.PriceImpactBps(leg.InputAmount, leg.ExpectedOutput,
			pool.Concentrated.SqrtPriceX96, pool.ZeroForOne(leg.InputToken.Address))

	case domain.PoolTypeWeighted:
		if pool.Weighted == nil {
			return 0
		}
		var in, out *domain.WeightedTokenState
		for i := range pool.Weighted.Tokens {
			st := &pool.Weighted.Tokens[i]
			if st.Token.Address == leg.InputToken.Address {
				in = st
			}
			if st.Token.Address == leg.OutputToken.Address {
				out = st
			}
		}
		if in == nil || out == nil {
			return 0
		}
		// Spot output per input unit at the pre-trade balances:
		// (balOut / wOut) / (balIn / wIn).
		spot := new(big.Int).Mul(leg.InputAmount, out.Balance)
		spot.Mul(spot, in.WeightE18)
		den := new(big.Int).Mul(in.Balance, out.WeightE18)
		if den.Sign() <= 0 {
			return 0
		}
		spot.Div(spot, den)
		return ratioImpactBps(spot, leg.ExpectedOutput)

	case domain.PoolTypeStable:
		// Stable pools trade near parity; compare against the
		// decimal-adjusted 1:1 price.
		spot := new(big.Int).Mul(leg.InputAmount, leg.OutputToken.OneUnit())
		spot.Div(spot, leg.InputToken.OneUnit())
		return ratioImpactBps(spot, leg.ExpectedOutput)
	}
	return 0
}

// ratioImpactBps is (spot-realized)/spot in bps, zero on positive slippage.
func ratioImpactBps(spot, realized *big.Int) uint16 {
	if spot.Sign() <= 0 || realized.Cmp(spot) >= 0 {
		return 0
	}
	diff := new(big.Int).Sub(spot, realized)
	diff.Mul(diff, big.NewInt(10_000))
	diff.Div(diff, spot)
	if !diff.IsUint64() || diff.Uint64() > 10_000 {
		return 10_000
	}
	return uint16(diff.Uint64())
}

// RouteImpactBps sums per-leg impacts over a route, capped at 100%.
func RouteImpactBps(route *domain.Route) uint16 {
	if route == nil {
		return 0
	}
	var total uint32
	for _, leg := range route.Legs {
		total += uint32(legImpactBps(leg))
	}
	if total > 10_000 {
		return 10_000
	}
	return uint16(total)
}

// QuoteImpactBps reports the worst route's impact for a quote. Vendor quotes
// without route evidence report zero.
func QuoteImpactBps(q *domain.Quote) uint16 {
	if q == nil {
		return 0
	}
	if q.Split != nil {
		var worst uint16
		for _, r := range q.Split.Routes {
			if bps := RouteImpactBps(r); bps > worst {
				worst = bps
			}
		}
		return worst
	}
	return RouteImpactBps(q.Route)
}
