package sources

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/amm"
)

// poolTicksLimit bounds the tick window fetched per pool.
const poolTicksLimit = 1000

// ConcentratedSource reads concentrated-liquidity pools and their tick lists
// from a GraphQL indexer.
type ConcentratedSource struct {
	endpoint      string
	httpClient    *http.Client
	intermediates []domain.Token
	liquidityFloorUSD float64
	registry      domain.TokenRegistry
}

// NewConcentratedSource builds the adapter. intermediates is the known
// routing-token set used to widen pair discovery.
func NewConcentratedSource(endpoint string, intermediates []domain.Token, liquidityFloorUSD float64, registry domain.TokenRegistry) *ConcentratedSource {
	return &ConcentratedSource{
		endpoint:          endpoint,
		httpClient:        &http.Client{},
		intermediates:     intermediates,
		liquidityFloorUSD: liquidityFloorUSD,
		registry:          registry,
	}
}

func (s *ConcentratedSource) Protocol() domain.Protocol {
	return domain.ProtocolConcentrated
}

// graphql wire shapes

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlTokenBlock struct {
	ID       string `json:"id"`
	Decimals string `json:"decimals"`
	Symbol   string `json:"symbol"`
}

type gqlTick struct {
	TickIdx        string `json:"tickIdx"`
	LiquidityNet   string `json:"liquidityNet"`
	LiquidityGross string `json:"liquidityGross"`
}

type gqlPool struct {
	ID                  string        `json:"id"`
	FeeTier             string        `json:"feeTier"`
	SqrtPrice           string        `json:"sqrtPrice"`
	Hooks               string        `json:"hooks"`
	Tick                string        `json:"tick"`
	TickSpacing         string        `json:"tickSpacing"`
	Liquidity           string        `json:"liquidity"`
	TotalValueLockedUSD string        `json:"totalValueLockedUSD"`
	Token0              gqlTokenBlock `json:"token0"`
	Token1              gqlTokenBlock `json:"token1"`
	Ticks               []gqlTick     `json:"ticks"`
}

type gqlPoolsResponse struct {
	Data struct {
		Pools []gqlPool `json:"pools"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

const poolFields = `
  id
  feeTier
  sqrtPrice
  hooks
  tick
  tickSpacing
  liquidity
  totalValueLockedUSD
  token0 { id decimals symbol }
  token1 { id decimals symbol }
  ticks(first: 1000, where: { liquidityGross_gt: "0" }, orderBy: tickIdx) {
    tickIdx
    liquidityNet
    liquidityGross
  }`

// FetchPools issues three indexer queries in parallel: direct-set pools,
// pools bridging from/to into the intermediate set, and two-hop candidates.
// Results are unioned by pool id, floored by liquidity and hook-filtered.
func (s *ConcentratedSource) FetchPools(ctx context.Context, from, to domain.Token) ([]*domain.Pool, error) {
	tokenSet := []string{from.Key(), to.Key()}
	var intermediateSet []string
	for _, t := range s.intermediates {
		if !t.Equal(from) && !t.Equal(to) {
			intermediateSet = append(intermediateSet, t.Key())
		}
	}

	queries := []gqlRequest{
		{
			Query: `query DirectPools($tokens: [String!]) { pools(where: { token0_in: $tokens, token1_in: $tokens }) {` + poolFields + `} }`,
			Variables: map[string]any{"tokens": append(append([]string{}, tokenSet...), intermediateSet...)},
		},
		{
			Query: `query BridgePools($pair: [String!], $mids: [String!]) { pools(where: { token0_in: $pair, token1_in: $mids }) {` + poolFields + `} }`,
			Variables: map[string]any{"pair": tokenSet, "mids": intermediateSet},
		},
		{
			Query: `query TwoHopPools($pair: [String!], $mids: [String!]) { pools(where: { token0_in: $mids, token1_in: $pair }) {` + poolFields + `} }`,
			Variables: map[string]any{"pair": tokenSet, "mids": intermediateSet},
		},
	}

	type result struct {
		pools []gqlPool
		err   error
	}
	results := make([]result, len(queries))
	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q gqlRequest) {
			defer wg.Done()
			pools, err := s.runQuery(ctx, q)
			results[i] = result{pools: pools, err: err}
		}(i, q)
	}
	wg.Wait()

	byID := make(map[string]gqlPool)
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		for _, p := range r.pools {
			byID[strings.ToLower(p.ID)] = p
		}
	}
	if len(byID) == 0 && firstErr != nil {
		return nil, firstErr
	}

	out := make([]*domain.Pool, 0, len(byID))
	for _, gp := range byID {
		pool, err := s.toPool(gp)
		if err != nil {
			log.Debug().Str("pool", gp.ID).Err(err).Msg("[clpool] dropping malformed pool")
			continue
		}
		if pool == nil {
			continue
		}
		out = append(out, pool)
	}
	return out, nil
}

func (s *ConcentratedSource) runQuery(ctx context.Context, q gqlRequest) ([]gqlPool, error) {
	body, err := sonic.Marshal(q)
	if err != nil {
		return nil, err
	}

	var pools []gqlPool
	err = withBackoff(ctx, "clpool", func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, err
		}
		var parsed gqlPoolsResponse
		if err := sonic.Unmarshal(raw, &parsed); err != nil {
			return 0, err
		}
		if len(parsed.Errors) > 0 {
			return 0, swaperrors.NewError(swaperrors.KindTransport, "indexer: "+parsed.Errors[0].Message)
		}
		pools = parsed.Data.Pools
		return resp.StatusCode, nil
	})
	return pools, err
}

// toPool converts an indexer record, returning (nil, nil) for pools filtered
// out by the liquidity floor or a non-neutral hooks address.
func (s *ConcentratedSource) toPool(gp gqlPool) (*domain.Pool, error) {
	tvl, _ := strconv.ParseFloat(gp.TotalValueLockedUSD, 64)
	if tvl < s.liquidityFloorUSD {
		return nil, nil
	}
	if gp.Hooks != "" && ethcommon.HexToAddress(gp.Hooks) != (ethcommon.Address{}) {
		return nil, nil
	}

	sqrtPrice, ok := new(big.Int).SetString(gp.SqrtPrice, 10)
	if !ok {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "bad sqrtPrice")
	}
	liquidity, ok := new(big.Int).SetString(gp.Liquidity, 10)
	if !ok {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "bad liquidity")
	}
	tick, err := strconv.ParseInt(gp.Tick, 10, 32)
	if err != nil {
		return nil, err
	}
	tickSpacing, err := strconv.ParseInt(gp.TickSpacing, 10, 32)
	if err != nil {
		return nil, err
	}
	feeTier, err := strconv.ParseUint(gp.FeeTier, 10, 32)
	if err != nil {
		return nil, err
	}

	ticks := make([]domain.Tick, 0, len(gp.Ticks))
	for _, gt := range gp.Ticks {
		idx, err := strconv.ParseInt(gt.TickIdx, 10, 32)
		if err != nil {
			continue
		}
		net, ok := new(big.Int).SetString(gt.LiquidityNet, 10)
		if !ok {
			continue
		}
		gross, ok := new(big.Int).SetString(gt.LiquidityGross, 10)
		if !ok {
			continue
		}
		ticks = append(ticks, domain.Tick{Index: int32(idx), LiquidityNet: net, LiquidityGross: gross})
	}

	token0 := s.resolveToken(gp.Token0)
	token1 := s.resolveToken(gp.Token1)

	// feeTier is in hundredths of a bip; SwapFeeE18 = feeTier/1e6 scaled by 1e18.
	swapFee := new(big.Int).Mul(new(big.Int).SetUint64(feeTier), big.NewInt(1e12))

	return &domain.Pool{
		Address:      ethcommon.HexToAddress(gp.ID),
		Type:         domain.PoolTypeConcentrated,
		Token0:       token0,
		Token1:       token1,
		SwapFeeE18:   swapFee,
		LiquidityUSD: tvl,
		Concentrated: &domain.ConcentratedData{
			SqrtPriceX96: sqrtPrice,
			Tick:         int32(tick),
			TickSpacing:  int32(tickSpacing),
			FeePips:      uint32(feeTier),
			Hooks:        ethcommon.HexToAddress(gp.Hooks),
			Liquidity:    liquidity,
			Ticks:        SanitizeTicks(ticks, int32(tickSpacing)),
		},
	}, nil
}

func (s *ConcentratedSource) resolveToken(tb gqlTokenBlock) domain.Token {
	addr := ethcommon.HexToAddress(tb.ID)
	if known, ok := s.registry[addr]; ok {
		return known
	}
	decimals, _ := strconv.ParseUint(tb.Decimals, 10, 8)
	return domain.Token{Address: addr, Symbol: tb.Symbol, Decimals: uint8(decimals)}
}

// Quote evaluates the best direct pool only; multi-hop quoting over this
// source's pools is the router's job.
func (s *ConcentratedSource) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	pools, err := s.FetchPools(ctx, req.FromToken, req.ToToken)
	if err != nil {
		return nil, err
	}

	var best *domain.Quote
	for _, pool := range pools {
		if !pool.Involves(req.FromToken.Address) || !pool.Involves(req.ToToken.Address) {
			continue
		}
		res, err := amm.ConcentratedOutput(req.AmountIn, pool, pool.ZeroForOne(req.FromToken.Address))
		if err != nil {
			continue
		}
		if best == nil || res.AmountOut.Cmp(best.OutputAmount) > 0 {
			best = &domain.Quote{
				Protocol:     domain.ProtocolConcentrated,
				OutputAmount: res.AmountOut,
				GasEstimate:  180_000,
				Route: &domain.Route{
					Legs: []domain.Leg{{
						Protocol:       domain.ProtocolConcentrated,
						Pool:           pool,
						InputToken:     req.FromToken,
						OutputToken:    req.ToToken,
						InputAmount:    new(big.Int).Set(req.AmountIn),
						ExpectedOutput: res.AmountOut,
					}},
					AmountIn:  new(big.Int).Set(req.AmountIn),
					AmountOut: res.AmountOut,
				},
			}
		}
	}
	return best, nil
}
