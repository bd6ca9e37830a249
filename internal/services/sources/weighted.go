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
	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/amm"
	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

// ChainCaller is the read-only chain surface the weighted adapter needs.
type ChainCaller interface {
	CallContract(ctx context.Context, to ethcommon.Address, data []byte) ([]byte, error)
}

const vaultABIJSON = `[{"name":"getPoolTokens","type":"function","stateMutability":"view","inputs":[{"name":"poolId","type":"bytes32"}],"outputs":[{"name":"tokens","type":"address[]"},{"name":"balances","type":"uint256[]"},{"name":"lastChangeBlock","type":"uint256"}]}]`

// WeightedSource reads weighted-pool metadata from its indexer and refreshes
// live token balances from chain on every quote.
type WeightedSource struct {
	endpoint   string
	httpClient *http.Client
	caller     ChainCaller
	vault      ethcommon.Address
	vaultABI   abi.ABI
	registry   domain.TokenRegistry
	liquidityFloorUSD float64

	// Process-lifetime pool cache keyed by pool id; balances refreshed per quote.
	mu    sync.Mutex
	cache map[string]*domain.Pool
}

// NewWeightedSource builds the adapter around the vault contract.
func NewWeightedSource(endpoint string, caller ChainCaller, vault ethcommon.Address, liquidityFloorUSD float64, registry domain.TokenRegistry) (*WeightedSource, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultABIJSON))
	if err != nil {
		return nil, err
	}
	return &WeightedSource{
		endpoint:          endpoint,
		httpClient:        &http.Client{},
		caller:            caller,
		vault:             vault,
		vaultABI:          parsed,
		registry:          registry,
		liquidityFloorUSD: liquidityFloorUSD,
		cache:             make(map[string]*domain.Pool),
	}, nil
}

func (s *WeightedSource) Protocol() domain.Protocol {
	return domain.ProtocolWeighted
}

type gqlWeightedToken struct {
	Address  string `json:"address"`
	Decimals string `json:"decimals"`
	Symbol   string `json:"symbol"`
	Weight   string `json:"weight"`
}

type gqlWeightedPool struct {
	ID             string             `json:"id"`
	Address        string             `json:"address"`
	SwapFee        string             `json:"swapFee"`
	TotalLiquidity string             `json:"totalLiquidity"`
	Tokens         []gqlWeightedToken `json:"tokens"`
}

type gqlWeightedResponse struct {
	Data struct {
		Pools []gqlWeightedPool `json:"pools"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// FetchPools returns weighted pools containing both sides of the pair (or a
// side plus a routing intermediate), with balances read live from the vault.
func (s *WeightedSource) FetchPools(ctx context.Context, from, to domain.Token) ([]*domain.Pool, error) {
	q := gqlRequest{
		Query: `query WeightedPools($tokens: [String!]) {
  pools(where: { poolType: "Weighted", tokensList_contains: $tokens }) {
    id address swapFee totalLiquidity
    tokens { address decimals symbol weight }
  }
}`,
		Variables: map[string]any{"tokens": []string{from.Key()}},
	}

	var records []gqlWeightedPool
	for _, key := range []string{from.Key(), to.Key()} {
		q.Variables = map[string]any{"tokens": []string{key}}
		page, err := s.runQuery(ctx, q)
		if err != nil {
			return nil, err
		}
		records = append(records, page...)
	}

	byID := make(map[string]gqlWeightedPool, len(records))
	for _, r := range records {
		byID[strings.ToLower(r.ID)] = r
	}

	out := make([]*domain.Pool, 0, len(byID))
	for id, rec := range byID {
		pool, err := s.materialize(ctx, id, rec)
		if err != nil {
			log.Debug().Str("pool", id).Err(err).Msg("[weighted] dropping pool")
			continue
		}
		if pool != nil {
			out = append(out, pool)
		}
	}
	return out, nil
}

func (s *WeightedSource) runQuery(ctx context.Context, q gqlRequest) ([]gqlWeightedPool, error) {
	body, err := sonic.Marshal(q)
	if err != nil {
		return nil, err
	}

	var pools []gqlWeightedPool
	err = withBackoff(ctx, "weighted", func() (int, error) {
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
		var parsed gqlWeightedResponse
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

// materialize turns an indexer record into a pool with live balances,
// reusing the cached skeleton when the pool id is known.
func (s *WeightedSource) materialize(ctx context.Context, id string, rec gqlWeightedPool) (*domain.Pool, error) {
	liq, _ := strconv.ParseFloat(rec.TotalLiquidity, 64)
	if liq < s.liquidityFloorUSD {
		return nil, nil
	}

	s.mu.Lock()
	pool, cached := s.cache[id]
	s.mu.Unlock()

	if !cached {
		built, err := s.buildPool(id, rec)
		if err != nil {
			return nil, err
		}
		pool = built
		s.mu.Lock()
		s.cache[id] = pool
		s.mu.Unlock()
	}
	pool.LiquidityUSD = liq

	if err := s.RefreshBalances(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (s *WeightedSource) buildPool(id string, rec gqlWeightedPool) (*domain.Pool, error) {
	if len(rec.Tokens) < 2 {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "weighted pool needs two tokens")
	}

	var poolID [32]byte
	idBytes := ethcommon.FromHex(rec.ID)
	copy(poolID[:], idBytes)

	states := make([]domain.WeightedTokenState, 0, len(rec.Tokens))
	for _, tok := range rec.Tokens {
		addr := ethcommon.HexToAddress(tok.Address)
		decimals, _ := strconv.ParseUint(tok.Decimals, 10, 8)
		weight, ok := parseDecimalE18(tok.Weight)
		if !ok {
			return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "bad weight "+tok.Weight)
		}
		token := domain.Token{Address: addr, Symbol: tok.Symbol, Decimals: uint8(decimals)}
		if known, ok := s.registry[addr]; ok {
			token = known
		}
		states = append(states, domain.WeightedTokenState{
			Token:    token,
			Balance:  big.NewInt(0),
			WeightE18: weight,
		})
	}

	swapFee, ok := parseDecimalE18(rec.SwapFee)
	if !ok {
		return nil, swaperrors.NewError(swaperrors.KindInsufficientRouteData, "bad swapFee "+rec.SwapFee)
	}

	token0, token1 := states[0].Token, states[1].Token
	if bytes.Compare(token0.Address.Bytes(), token1.Address.Bytes()) > 0 {
		token0, token1 = token1, token0
	}

	return &domain.Pool{
		Address:    ethcommon.HexToAddress(rec.Address),
		Type:       domain.PoolTypeWeighted,
		Token0:     token0,
		Token1:     token1,
		SwapFeeE18: swapFee,
		Weighted: &domain.WeightedData{
			PoolID: poolID,
			Tokens: states,
		},
	}, nil
}

// RefreshBalances reads live token balances via getPoolTokens(poolId).
func (s *WeightedSource) RefreshBalances(ctx context.Context, pool *domain.Pool) error {
	if pool.Weighted == nil {
		return swaperrors.NewError(swaperrors.KindInsufficientRouteData, "not a weighted pool")
	}

	data, err := s.vaultABI.Pack("getPoolTokens", pool.Weighted.PoolID)
	if err != nil {
		return err
	}
	raw, err := s.caller.CallContract(ctx, s.vault, data)
	if err != nil {
		return swaperrors.WrapError(swaperrors.KindTransport, "getPoolTokens", err)
	}

	decoded, err := s.vaultABI.Unpack("getPoolTokens", raw)
	if err != nil {
		return err
	}
	tokens := decoded[0].([]ethcommon.Address)
	balances := decoded[1].([]*big.Int)

	for i, addr := range tokens {
		for j := range pool.Weighted.Tokens {
			if pool.Weighted.Tokens[j].Token.Address == addr {
				pool.Weighted.Tokens[j].Balance = balances[i]
			}
		}
	}
	return nil
}

// Quote evaluates the best direct weighted pool for the pair.
func (s *WeightedSource) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	pools, err := s.FetchPools(ctx, req.FromToken, req.ToToken)
	if err != nil {
		return nil, err
	}

	var best *domain.Quote
	for _, pool := range pools {
		res, err := amm.WeightedOutput(req.AmountIn, pool, req.FromToken.Address, req.ToToken.Address)
		if err != nil {
			continue
		}
		if best == nil || res.AmountOut.Cmp(best.OutputAmount) > 0 {
			best = &domain.Quote{
				Protocol:     domain.ProtocolWeighted,
				OutputAmount: res.AmountOut,
				GasEstimate:  140_000,
				Route: &domain.Route{
					Legs: []domain.Leg{{
						Protocol:       domain.ProtocolWeighted,
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

// parseDecimalE18 parses a decimal string ("0.003") into a 1e18-scaled int.
func parseDecimalE18(s string) (*big.Int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 18 {
		frac = frac[:18]
	}
	frac += strings.Repeat("0", 18-len(frac))

	w, ok := new(big.Int).SetString(whole, 10)
	if !ok {
		return nil, false
	}
	f, ok := new(big.Int).SetString(frac, 10)
	if !ok {
		return nil, false
	}
	out := new(big.Int).Mul(w, numeric.OneE18)
	out.Add(out, f)
	return out, true
}
