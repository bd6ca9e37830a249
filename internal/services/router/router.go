package router

import (
	"math/big"
	"sort"

	"github.com/rs/zerolog/log"

	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/metrics"
	"github.com/halcyontrade/swap-engine/internal/services/amm"
)

const (
	// splitCandidateFactor: a split is attempted when the runner-up path's
	// output is within this factor of the best path's output.
	splitCandidateFactor = 3

	// maxNonConflicting caps the pool-disjoint candidate frontier.
	maxNonConflicting = 4
)

// Router searches the pool graph for the best execution route.
type Router struct {
	MaxHops           int
	LiquidityFloorUSD float64
}

// NewRouter returns a router with the given hop bound (clamped to 1..3).
func NewRouter(maxHops int, liquidityFloorUSD float64) *Router {
	if maxHops < 1 {
		maxHops = 1
	}
	if maxHops > 3 {
		maxHops = 3
	}
	return &Router{MaxHops: maxHops, LiquidityFloorUSD: liquidityFloorUSD}
}

// candidate pairs an enumerated path with its evaluated route.
type candidate struct {
	path  Path
	route *domain.Route
}

// EvaluatePath composes the per-pool AMM functions along a path.
func EvaluatePath(path Path, from domain.Token, amountIn *big.Int) (*domain.Route, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, swapcommon.NewError(swapcommon.KindInvalidAmount, "amountIn must be positive")
	}

	legs := make([]domain.Leg, 0, len(path))
	tokenIn := from
	amount := new(big.Int).Set(amountIn)

	for _, pool := range path {
		tokenOut, ok := pool.Other(tokenIn.Address)
		if !ok {
			return nil, swapcommon.NewError(swapcommon.KindNoRoute, "path discontinuity at "+pool.Address.Hex())
		}
		res, err := amm.Output(amount, pool, tokenIn.Address, tokenOut.Address)
		if err != nil {
			return nil, err
		}
		legs = append(legs, domain.Leg{
			Protocol:       protocolOf(pool),
			Pool:           pool,
			InputToken:     tokenIn,
			OutputToken:    tokenOut,
			InputAmount:    amount,
			ExpectedOutput: res.AmountOut,
		})
		tokenIn = tokenOut
		amount = res.AmountOut
	}

	return &domain.Route{
		Legs:      legs,
		AmountIn:  new(big.Int).Set(amountIn),
		AmountOut: amount,
	}, nil
}

func protocolOf(pool *domain.Pool) domain.Protocol {
	switch pool.Type {
	case domain.PoolTypeWeighted:
		return domain.ProtocolWeighted
	case domain.PoolTypeStable:
		return domain.ProtocolStable
	default:
		return domain.ProtocolConcentrated
	}
}

// Search enumerates candidate paths, picks the best single path, and
// attempts a split when a comparable pool-disjoint runner-up exists.
// Returns the best route (possibly split) or a NoRoute error.
func (r *Router) Search(pools []*domain.Pool, from, to domain.Token, amountIn *big.Int) (*domain.Route, *domain.SplitRoute, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, nil, swapcommon.NewError(swapcommon.KindInvalidAmount, "amountIn must be positive")
	}

	timer := metrics.RouteSearchDuration.Start()
	defer timer.Observe()

	graph := BuildGraph(pools, r.LiquidityFloorUSD)
	paths := graph.EnumeratePaths(from.Address, to.Address, r.MaxHops)
	if len(paths) == 0 {
		return nil, nil, swapcommon.NewError(swapcommon.KindNoRoute, "no path between tokens")
	}

	metrics.PathsEvaluated.Observe(float64(len(paths)))

	candidates := make([]candidate, 0, len(paths))
	for _, path := range paths {
		route, err := EvaluatePath(path, from, amountIn)
		if err != nil {
			// InsufficientLiquidity along an intermediate step prunes the path.
			continue
		}
		candidates = append(candidates, candidate{path: path, route: route})
	}
	if len(candidates) == 0 {
		return nil, nil, swapcommon.NewError(swapcommon.KindNoRoute, "no viable path at this size")
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].route.AmountOut.Cmp(candidates[j].route.AmountOut) > 0
	})

	// Keep a pool-disjoint frontier: a pool appears in at most one kept
	// candidate.
	kept := []candidate{candidates[0]}
	for _, c := range candidates[1:] {
		if len(kept) >= maxNonConflicting {
			break
		}
		conflicts := false
		for _, k := range kept {
			if c.path.Conflicts(k.path) {
				conflicts = true
				break
			}
		}
		if !conflicts {
			kept = append(kept, c)
		}
	}

	best := kept[0].route
	if len(kept) < 2 {
		return best, nil, nil
	}

	// Attempt a split when the runner-up is plausible: within
	// splitCandidateFactor of the best output.
	threshold := new(big.Int).Mul(kept[1].route.AmountOut, big.NewInt(splitCandidateFactor))
	if threshold.Cmp(best.AmountOut) < 0 {
		return best, nil, nil
	}

	metrics.SplitAttempts.Inc()
	routes := make([]Path, 0, len(kept))
	for _, k := range kept {
		routes = append(routes, k.path)
	}
	split, err := FindOptimalSplit(routes, from, amountIn)
	if err != nil || split == nil {
		return best, nil, nil
	}
	if split.AmountOut.Cmp(best.AmountOut) <= 0 {
		// The split must improve on the best single path or be discarded.
		return best, nil, nil
	}

	metrics.SplitImprovements.Inc()
	log.Debug().Str("out_single", best.AmountOut.String()).
		Str("out_split", split.AmountOut.String()).
		Int("legs", len(split.Routes)).
		Msg("[router] split route beats single path")
	return nil, split, nil
}
