// Package compiler turns a chosen route into the ordered, binary-encoded
// step list consumed by the user's bundler contract.
package compiler

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/metrics"
)

// TradeContext carries the user-side facts the route itself does not know:
// what the user actually sends and receives, and the slippage tolerance.
type TradeContext struct {
	FromToken   domain.Token
	ToToken     domain.Token
	AmountIn    *big.Int
	SlippageBps uint16
}

// Compiler binds the two on-chain encoder addresses. Stable-pool steps go
// through the weighted encoder, which addresses pools directly.
type Compiler struct {
	ConcentratedEncoder common.Address
	WeightedEncoder     common.Address
}

func New(concentratedEncoder, weightedEncoder common.Address) *Compiler {
	return &Compiler{
		ConcentratedEncoder: concentratedEncoder,
		WeightedEncoder:     weightedEncoder,
	}
}

// Normalize flattens a quote's route into the leveled step structure:
// level 0 consumes the user's input token, level k consumes what level k-1
// produced. Split legs land their first hop at level 0. Normalizing an
// already normalized plan is a no-op.
func (c *Compiler) Normalize(quote *domain.Quote, trade TradeContext) (*domain.ExecutionPlan, error) {
	if quote == nil {
		return nil, swapcommon.NewError(swapcommon.KindUnknownRouteType, "no quote to compile")
	}

	var steps []domain.Step
	switch {
	case quote.Split != nil:
		for _, route := range quote.Split.Routes {
			routeSteps, err := stepsFromRoute(route, trade)
			if err != nil {
				return nil, err
			}
			steps = append(steps, routeSteps...)
		}
	case quote.Route != nil:
		routeSteps, err := stepsFromRoute(quote.Route, trade)
		if err != nil {
			return nil, err
		}
		steps = routeSteps
	case quote.Protocol == domain.ProtocolOdos || quote.Protocol == domain.ProtocolOneInch:
		return nil, swapcommon.NewError(swapcommon.KindInsufficientRouteData,
			"vendor quote carries no reconstructible leg list")
	default:
		return nil, swapcommon.NewError(swapcommon.KindUnknownRouteType,
			"quote carries neither a route nor a recognizable type tag")
	}

	assignWrapOps(steps, trade)
	adjustWrappedAddresses(steps)
	sortAndMark(steps)

	return &domain.ExecutionPlan{Steps: steps}, nil
}

// stepsFromRoute converts one route's legs into steps, resolving missing
// token objects from the neighbors and the trade endpoints.
func stepsFromRoute(route *domain.Route, trade TradeContext) ([]domain.Step, error) {
	steps := make([]domain.Step, 0, len(route.Legs))
	for i, leg := range route.Legs {
		var poolAddr common.Address
		if leg.Pool != nil {
			poolAddr = leg.Pool.Address
		}
		if poolAddr == (common.Address{}) {
			return nil, swapcommon.NewError(swapcommon.KindMissingPoolIdentifier,
				"leg has no addressable pool")
		}

		in := leg.InputToken
		if in.Symbol == "" && in.Address == (common.Address{}) {
			if i > 0 {
				in = route.Legs[i-1].OutputToken
			} else {
				in = trade.FromToken
			}
		}
		out := leg.OutputToken
		if out.Symbol == "" && out.Address == (common.Address{}) {
			if i < len(route.Legs)-1 {
				out = route.Legs[i+1].InputToken
			} else {
				out = trade.ToToken
			}
		}

		steps = append(steps, domain.Step{
			Level:          i,
			Protocol:       leg.Protocol,
			Pool:           leg.Pool,
			PoolAddress:    poolAddr,
			InputToken:     in,
			OutputToken:    out,
			InputAmount:    leg.InputAmount,
			ExpectedOutput: leg.ExpectedOutput,
		})
	}
	return steps, nil
}

// assignWrapOps sets the wrap operation per step. Level 0 compares the
// user's sent token against the pool's expected input; higher levels bridge
// native/wrapped mismatches between consecutive levels with an after-swap op
// on the producing step.
func assignWrapOps(steps []domain.Step, trade TradeContext) {
	for i := range steps {
		step := &steps[i]
		if step.Level == 0 {
			switch {
			case trade.FromToken.IsNative() && swapcommon.IsWrappedNative(step.InputToken.Address):
				step.WrapOperation = domain.WrapBeforeSwap
			case swapcommon.IsWrappedNative(trade.FromToken.Address) && step.InputToken.IsNative():
				step.WrapOperation = domain.UnwrapBeforeSwap
			default:
				step.WrapOperation = domain.WrapNone
			}
			continue
		}
		step.WrapOperation = domain.WrapNone
	}

	// After-swap bridging between levels.
	for i := range steps {
		step := &steps[i]
		next := nextLevelInput(steps, step.Level)
		if next == nil {
			continue
		}
		switch {
		case step.OutputToken.IsNative() && swapcommon.IsWrappedNative(next.Address):
			step.WrapOperation = domain.WrapAfterSwap
		case swapcommon.IsWrappedNative(step.OutputToken.Address) && next.IsNative():
			step.WrapOperation = domain.UnwrapAfterSwap
		}
	}
}

func nextLevelInput(steps []domain.Step, level int) *domain.Token {
	for i := range steps {
		if steps[i].Level == level+1 {
			return &steps[i].InputToken
		}
	}
	return nil
}

// adjustWrappedAddresses rewrites the encoded input token after a pre-swap
// wrap op: op 1 swaps in the wrapped address, op 3 the native sentinel.
func adjustWrappedAddresses(steps []domain.Step) {
	for i := range steps {
		switch steps[i].WrapOperation {
		case domain.WrapBeforeSwap:
			if !swapcommon.IsWrappedNative(steps[i].InputToken.Address) {
				steps[i].InputToken = domain.Token{
					Address:  swapcommon.WrappedNative,
					Symbol:   "WETH",
					Decimals: 18,
				}
			}
		case domain.UnwrapBeforeSwap:
			if !steps[i].InputToken.IsNative() {
				steps[i].InputToken = domain.Token{
					Address:  swapcommon.NativeToken,
					Symbol:   "ETH",
					Decimals: 18,
				}
			}
		}
	}
}

// sortAndMark orders steps by (level, input token, amount ascending) and
// flags the largest step of each (level, input token) group to consume the
// full balance. Idempotent.
func sortAndMark(steps []domain.Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Level != steps[j].Level {
			return steps[i].Level < steps[j].Level
		}
		ki, kj := steps[i].InputToken.Key(), steps[j].InputToken.Key()
		if ki != kj {
			return ki < kj
		}
		return steps[i].InputAmount.Cmp(steps[j].InputAmount) < 0
	})

	for i := range steps {
		steps[i].UseAllBalance = i == len(steps)-1 ||
			steps[i+1].Level != steps[i].Level ||
			steps[i+1].InputToken.Key() != steps[i].InputToken.Key()
	}
}

// minAmountOut applies the slippage tolerance in integer bps math; steps
// without an expected output get zero, downstream consumes all balance.
func minAmountOut(expected *big.Int, slippageBps uint16) *big.Int {
	if expected == nil {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(expected, big.NewInt(int64(swapcommon.SlippageDenominator-int(slippageBps))))
	return out.Div(out, big.NewInt(swapcommon.SlippageDenominator))
}

// Compile normalizes the quote and encodes every step, returning the plan
// and the bundler-ready call tuple.
func (c *Compiler) Compile(quote *domain.Quote, trade TradeContext) (*domain.ExecutionPlan, *domain.CompiledCall, error) {
	plan, err := c.Normalize(quote, trade)
	if err != nil {
		metrics.PlanCompilations.WithLabelValues("error").Inc()
		return nil, nil, err
	}

	call := &domain.CompiledCall{
		FromToken:       trade.FromToken.Address,
		ToToken:         trade.ToToken.Address,
		EncoderTargets:  make([]common.Address, 0, len(plan.Steps)),
		EncoderCalldata: make([][]byte, 0, len(plan.Steps)),
		WrapOperations:  make([]domain.WrapOp, 0, len(plan.Steps)),
	}

	fromAmount := new(big.Int)
	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Level == 0 {
			fromAmount.Add(fromAmount, step.InputAmount)
		}

		minOut := minAmountOut(step.ExpectedOutput, trade.SlippageBps)

		var (
			target   common.Address
			calldata []byte
		)
		switch step.Protocol {
		case domain.ProtocolConcentrated:
			target = c.ConcentratedEncoder
			calldata, err = encodeConcentratedStep(step, minOut)
		case domain.ProtocolWeighted, domain.ProtocolStable:
			target = c.WeightedEncoder
			calldata, err = encodeWeightedStep(step, minOut)
		default:
			err = swapcommon.NewError(swapcommon.KindUnknownRouteType,
				"no encoder for protocol "+string(step.Protocol))
		}
		if err != nil {
			metrics.PlanCompilations.WithLabelValues("error").Inc()
			return nil, nil, err
		}

		call.EncoderTargets = append(call.EncoderTargets, target)
		call.EncoderCalldata = append(call.EncoderCalldata, calldata)
		call.WrapOperations = append(call.WrapOperations, step.WrapOperation)
	}

	if fromAmount.Sign() == 0 && trade.AmountIn != nil {
		fromAmount.Set(trade.AmountIn)
	}
	call.FromAmount = fromAmount

	metrics.PlanCompilations.WithLabelValues("ok").Inc()
	return plan, call, nil
}
