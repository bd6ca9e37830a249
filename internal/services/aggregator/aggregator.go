// Package aggregator fans quote requests out to the configured sources,
// normalizes the answers by gas cost and returns the best net quote.
package aggregator

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/halcyontrade/swap-engine/internal/chain"
	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/metrics"
	"github.com/halcyontrade/swap-engine/internal/services/sources"
)

const (
	// DefaultSourceTimeout bounds every external vendor call. A timed-out
	// vendor simply contributes no quote.
	DefaultSourceTimeout = 10 * time.Second

	// RouterSourceTimeout bounds the internal route search, whose first pool
	// fetch is expensive. Unlike vendor timeouts this one fails the request.
	RouterSourceTimeout = 30 * time.Second
)

// Aggregator dispatches the allowed sources concurrently and ranks their
// quotes by output net of gas.
type Aggregator struct {
	sources       []sources.Source
	gas           *chain.GasState
	sourceTimeout time.Duration
	routerTimeout time.Duration
}

// New builds an aggregator over the given sources, kept in the order of the
// allowed tag list. Sources whose tag is not allowed are dropped.
func New(all []sources.Source, allowed []domain.Protocol, gas *chain.GasState) *Aggregator {
	ordered := make([]sources.Source, 0, len(all))
	for _, tag := range allowed {
		for _, src := range all {
			if src.Protocol() == tag {
				ordered = append(ordered, src)
				break
			}
		}
	}
	return &Aggregator{
		sources:       ordered,
		gas:           gas,
		sourceTimeout: DefaultSourceTimeout,
		routerTimeout: RouterSourceTimeout,
	}
}

// GetAllQuotes runs every source under its timeout and returns the responses
// positionally aligned with the source list. Entries are nil where a source
// failed or timed out. A router-source failure is the one hard error.
func (a *Aggregator) GetAllQuotes(ctx context.Context, req sources.QuoteRequest) ([]*domain.Quote, error) {
	results := make([]*domain.Quote, len(a.sources))
	errs := make([]error, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()

			timeout := a.sourceTimeout
			if src.Protocol() == domain.ProtocolRouter {
				timeout = a.routerTimeout
			}
			srcCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			began := time.Now()
			quote, err := src.Quote(srcCtx, req)
			metrics.QuoteDuration.WithLabelValues(string(src.Protocol())).
				Observe(time.Since(began).Seconds())

			if err != nil {
				metrics.QuoteFailures.WithLabelValues(string(src.Protocol()), string(swaperrors.KindOf(err))).Inc()
				if src.Protocol() == domain.ProtocolRouter {
					errs[i] = err
					return
				}
				// Vendor failures degrade to a missing quote.
				log.Warn().Err(err).Str("source", string(src.Protocol())).
					Msg("[aggregator] source failed, skipping")
				return
			}
			results[i] = quote
		}(i, src)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// BestQuote returns the highest net-output quote, or nil when every source
// came back empty.
func (a *Aggregator) BestQuote(ctx context.Context, req sources.QuoteRequest) (*domain.RankedQuote, error) {
	quotes, err := a.GetAllQuotes(ctx, req)
	if err != nil {
		metrics.QuoteRequests.WithLabelValues("error").Inc()
		return nil, err
	}

	ranked := a.Rank(quotes, req.ToToken)
	if len(ranked) == 0 {
		metrics.QuoteRequests.WithLabelValues("empty").Inc()
		return nil, nil
	}

	best := &ranked[0]
	metrics.QuoteRequests.WithLabelValues("ok").Inc()
	metrics.AggregatorWins.WithLabelValues(string(best.Quote.Protocol)).Inc()
	log.Debug().Str("protocol", string(best.Quote.Protocol)).
		Str("output", best.Quote.OutputAmount.String()).
		Str("net", best.NetOutput.String()).
		Msg("[aggregator] best quote selected")
	return best, nil
}

// Rank orders the non-nil quotes by output net of gas cost, highest first.
// When everything is unprofitable the smallest deficit wins.
func (a *Aggregator) Rank(quotes []*domain.Quote, outToken domain.Token) []domain.RankedQuote {
	gasPrice := a.gas.GasPriceWei()
	nativePrice := a.gas.NativePriceE8()
	outPrice, havePrice := a.gas.TokenPriceE8(outToken.Address)

	type scored struct {
		ranked domain.RankedQuote
		margin *big.Int // outputAmount - gasCost, sign preserved for ordering
	}
	list := make([]scored, 0, len(quotes))

	for _, q := range quotes {
		if q == nil || q.OutputAmount == nil || q.OutputAmount.Sign() <= 0 {
			continue
		}
		cost := big.NewInt(0)
		if havePrice {
			cost = GasCostInOutputUnits(q.GasEstimate, gasPrice, nativePrice, outPrice, outToken.Decimals)
		}
		margin := new(big.Int).Sub(q.OutputAmount, cost)
		net := new(big.Int).Set(margin)
		if net.Sign() < 0 {
			net.SetInt64(0)
		}
		list = append(list, scored{
			ranked: domain.RankedQuote{Quote: q, GasCostOutUnit: cost, NetOutput: net},
			margin: margin,
		})
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].margin.Cmp(list[j].margin) > 0
	})

	out := make([]domain.RankedQuote, len(list))
	for i, s := range list {
		out[i] = s.ranked
	}
	return out
}
