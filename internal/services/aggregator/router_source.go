package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/metrics"
	"github.com/halcyontrade/swap-engine/internal/services/router"
	"github.com/halcyontrade/swap-engine/internal/services/sources"
)

// Per-leg gas estimates by pool variant, plus the fixed transaction
// overhead. Calibrated against observed executions, not exact.
const (
	routeBaseGas         = 90_000
	concentratedLegGas   = 120_000
	weightedLegGas       = 140_000
	stableLegGas         = 110_000
)

// RouterSource exposes the internal route search through the same Source
// contract as the vendor adapters. It merges pools from the on-chain pool
// sources and searches them for the best single or split route.
type RouterSource struct {
	poolSources []sources.Source
	router      *router.Router
}

func NewRouterSource(poolSources []sources.Source, r *router.Router) *RouterSource {
	return &RouterSource{poolSources: poolSources, router: r}
}

func (s *RouterSource) Protocol() domain.Protocol {
	return domain.ProtocolRouter
}

// FetchPools gathers pools from every pool source in parallel. A failing
// source contributes nothing; the search proceeds on what arrived.
func (s *RouterSource) FetchPools(ctx context.Context, from, to domain.Token) ([]*domain.Pool, error) {
	results := make([][]*domain.Pool, len(s.poolSources))

	var wg sync.WaitGroup
	for i, src := range s.poolSources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			tag := string(src.Protocol())
			began := time.Now()
			pools, err := src.FetchPools(ctx, from, to)
			metrics.PoolFetchDuration.WithLabelValues(tag).Observe(time.Since(began).Seconds())
			if err != nil {
				log.Warn().Err(err).Str("source", tag).
					Msg("[routerSource] pool fetch failed")
				metrics.PoolsSkipped.WithLabelValues(tag, "fetch_error").Inc()
				return
			}
			metrics.PoolCount.WithLabelValues(tag).Set(float64(len(pools)))
			results[i] = pools
		}(i, src)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []*domain.Pool
	for _, pools := range results {
		for _, p := range pools {
			key := p.Address.Hex()
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, p)
		}
	}
	return merged, nil
}

// Quote fetches the pool set and runs the route search. Unlike the vendor
// adapters this source's errors are meaningful to the caller: the aggregator
// propagates them instead of degrading to a missing quote.
func (s *RouterSource) Quote(ctx context.Context, req sources.QuoteRequest) (*domain.Quote, error) {
	pools, err := s.FetchPools(ctx, req.FromToken, req.ToToken)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	route, split, err := s.router.Search(pools, req.FromToken, req.ToToken, req.AmountIn)
	if err != nil {
		return nil, err
	}

	if split != nil {
		gas := uint64(routeBaseGas)
		for _, r := range split.Routes {
			for _, leg := range r.Legs {
				gas += legGas(leg.Pool)
			}
		}
		return &domain.Quote{
			Protocol:     domain.ProtocolRouter,
			OutputAmount: split.AmountOut,
			GasEstimate:  gas,
			Split:        split,
		}, nil
	}

	gas := uint64(routeBaseGas)
	for _, leg := range route.Legs {
		gas += legGas(leg.Pool)
	}
	return &domain.Quote{
		Protocol:     domain.ProtocolRouter,
		OutputAmount: route.AmountOut,
		GasEstimate:  gas,
		Route:        route,
	}, nil
}

func legGas(pool *domain.Pool) uint64 {
	if pool == nil {
		return concentratedLegGas
	}
	switch pool.Type {
	case domain.PoolTypeWeighted:
		return weightedLegGas
	case domain.PoolTypeStable:
		return stableLegGas
	default:
		return concentratedLegGas
	}
}
