package aggregator

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyontrade/swap-engine/internal/chain"
	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/services/sources"
)

var (
	aggWETH = domain.Token{Address: common.HexToAddress("0x1000000000000000000000000000000000000001"), Symbol: "WETH", Decimals: 18}
	aggUSDC = domain.Token{Address: common.HexToAddress("0x2000000000000000000000000000000000000002"), Symbol: "USDC", Decimals: 6}
)

// stubSource answers with a fixed quote after an optional delay.
type stubSource struct {
	protocol domain.Protocol
	quote    *domain.Quote
	err      error
	delay    time.Duration
}

func (s *stubSource) Protocol() domain.Protocol { return s.protocol }

func (s *stubSource) FetchPools(ctx context.Context, from, to domain.Token) ([]*domain.Pool, error) {
	return nil, nil
}

func (s *stubSource) Quote(ctx context.Context, req sources.QuoteRequest) (*domain.Quote, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, swaperrors.WrapError(swaperrors.KindTimeout, string(s.protocol), ctx.Err())
		}
	}
	return s.quote, s.err
}

func quoteOf(p domain.Protocol, out int64, gas uint64) *domain.Quote {
	return &domain.Quote{Protocol: p, OutputAmount: big.NewInt(out), GasEstimate: gas}
}

func testRequest() sources.QuoteRequest {
	return sources.QuoteRequest{
		FromToken: aggWETH,
		ToToken:   aggUSDC,
		AmountIn:  big.NewInt(1e18),
	}
}

func TestNewOrdersAndFiltersSources(t *testing.T) {
	odos := &stubSource{protocol: domain.ProtocolOdos}
	oneinch := &stubSource{protocol: domain.ProtocolOneInch}
	rt := &stubSource{protocol: domain.ProtocolRouter}

	a := New([]sources.Source{rt, oneinch, odos},
		[]domain.Protocol{domain.ProtocolOdos, domain.ProtocolRouter}, chain.NewGasState())
	if len(a.sources) != 2 {
		t.Fatalf("kept %d sources, want 2", len(a.sources))
	}
	if a.sources[0].Protocol() != domain.ProtocolOdos || a.sources[1].Protocol() != domain.ProtocolRouter {
		t.Fatal("sources not kept in allowed order")
	}
}

func TestGetAllQuotesPositional(t *testing.T) {
	srcs := []sources.Source{
		&stubSource{protocol: domain.ProtocolOdos, quote: quoteOf(domain.ProtocolOdos, 100, 0)},
		&stubSource{protocol: domain.ProtocolOneInch, err: swaperrors.NewError(swaperrors.KindTransport, "down")},
	}
	a := New(srcs, []domain.Protocol{domain.ProtocolOdos, domain.ProtocolOneInch}, chain.NewGasState())

	quotes, err := a.GetAllQuotes(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("GetAllQuotes: %v", err)
	}
	if len(quotes) != 2 {
		t.Fatalf("got %d slots, want 2", len(quotes))
	}
	if quotes[0] == nil || quotes[0].Protocol != domain.ProtocolOdos {
		t.Fatal("slot 0 must hold the odos quote")
	}
	if quotes[1] != nil {
		t.Fatal("failed vendor must leave a nil slot")
	}
}

func TestVendorTimeoutDegradesToMissingQuote(t *testing.T) {
	slow := &stubSource{protocol: domain.ProtocolOdos, delay: 500 * time.Millisecond,
		quote: quoteOf(domain.ProtocolOdos, 999, 0)}
	fast := &stubSource{protocol: domain.ProtocolOneInch, quote: quoteOf(domain.ProtocolOneInch, 100, 0)}

	a := New([]sources.Source{slow, fast},
		[]domain.Protocol{domain.ProtocolOdos, domain.ProtocolOneInch}, chain.NewGasState())
	a.sourceTimeout = 20 * time.Millisecond

	best, err := a.BestQuote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("BestQuote: %v", err)
	}
	if best == nil || best.Quote.Protocol != domain.ProtocolOneInch {
		t.Fatal("expected the surviving vendor's quote")
	}
}

func TestRouterTimeoutPropagates(t *testing.T) {
	rt := &stubSource{protocol: domain.ProtocolRouter, delay: 500 * time.Millisecond,
		quote: quoteOf(domain.ProtocolRouter, 999, 0)}

	a := New([]sources.Source{rt}, []domain.Protocol{domain.ProtocolRouter}, chain.NewGasState())
	a.routerTimeout = 20 * time.Millisecond

	if _, err := a.BestQuote(context.Background(), testRequest()); err == nil {
		t.Fatal("router timeout must fail the request")
	}
}

func TestBestQuoteAllSourcesEmpty(t *testing.T) {
	down := &stubSource{protocol: domain.ProtocolOdos,
		err: swaperrors.NewError(swaperrors.KindTransport, "down")}
	a := New([]sources.Source{down}, []domain.Protocol{domain.ProtocolOdos}, chain.NewGasState())

	best, err := a.BestQuote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("BestQuote: %v", err)
	}
	if best != nil {
		t.Fatal("expected nil best when every source failed")
	}
}

func TestGasCostInOutputUnits(t *testing.T) {
	// 100k gas at 50 gwei = 0.005 native, native at $2000 = $10,
	// out token at $1 with 6 decimals = 10_000_000 units.
	got := GasCostInOutputUnits(
		100_000,
		big.NewInt(50_000_000_000),          // 50 gwei
		big.NewInt(2000*1e8),                // $2000
		big.NewInt(1e8),                     // $1
		6,
	)
	if got.Int64() != 10_000_000 {
		t.Fatalf("gas cost = %s, want 10000000", got)
	}

	if GasCostInOutputUnits(100_000, nil, big.NewInt(1), big.NewInt(1), 6).Sign() != 0 {
		t.Fatal("missing gas price must cost zero")
	}
	if GasCostInOutputUnits(100_000, big.NewInt(1), big.NewInt(1), big.NewInt(0), 6).Sign() != 0 {
		t.Fatal("zero out-token price must cost zero")
	}
}

func TestRankNetOfGas(t *testing.T) {
	gas := chain.NewGasState()
	gas.SetGasPrice(big.NewInt(50_000_000_000))
	gas.SetNativePrice(big.NewInt(2000 * 1e8))
	gas.SetTokenPrice(aggUSDC.Address, big.NewInt(1e8))

	a := New(nil, nil, gas)

	// Cheap route: 200 USDC out, 100k gas ($10). Rich route: 205 USDC out,
	// 400k gas ($40). Net: 190 vs 165, cheap route wins despite lower gross.
	cheap := quoteOf(domain.ProtocolRouter, 200_000_000, 100_000)
	rich := quoteOf(domain.ProtocolOdos, 205_000_000, 400_000)

	ranked := a.Rank([]*domain.Quote{rich, cheap}, aggUSDC)
	if len(ranked) != 2 {
		t.Fatalf("ranked %d quotes, want 2", len(ranked))
	}
	if ranked[0].Quote.Protocol != domain.ProtocolRouter {
		t.Fatal("net-of-gas ranking must prefer the cheap route")
	}
	if ranked[0].NetOutput.Int64() != 190_000_000 {
		t.Fatalf("net output = %s, want 190000000", ranked[0].NetOutput)
	}
	if ranked[0].GasCostOutUnit.Int64() != 10_000_000 {
		t.Fatalf("gas cost = %s, want 10000000", ranked[0].GasCostOutUnit)
	}
}

func TestRankUnprofitableTieBreak(t *testing.T) {
	gas := chain.NewGasState()
	gas.SetGasPrice(big.NewInt(50_000_000_000))
	gas.SetNativePrice(big.NewInt(2000 * 1e8))
	gas.SetTokenPrice(aggUSDC.Address, big.NewInt(1e8))

	a := New(nil, nil, gas)

	// Both under water ($10 gas): deficit 9 USDC vs 5 USDC.
	worse := quoteOf(domain.ProtocolOdos, 1_000_000, 100_000)
	better := quoteOf(domain.ProtocolOneInch, 5_000_000, 100_000)

	ranked := a.Rank([]*domain.Quote{worse, better}, aggUSDC)
	if ranked[0].Quote.Protocol != domain.ProtocolOneInch {
		t.Fatal("smallest deficit must rank first")
	}
	for _, r := range ranked {
		if r.NetOutput.Sign() != 0 {
			t.Fatalf("unprofitable quote must clamp net to zero, got %s", r.NetOutput)
		}
	}
}

func TestRankSkipsNilAndEmptyQuotes(t *testing.T) {
	a := New(nil, nil, chain.NewGasState())
	ranked := a.Rank([]*domain.Quote{
		nil,
		{Protocol: domain.ProtocolOdos, OutputAmount: big.NewInt(0)},
		quoteOf(domain.ProtocolOneInch, 42, 0),
	}, aggUSDC)
	if len(ranked) != 1 || ranked[0].Quote.OutputAmount.Int64() != 42 {
		t.Fatalf("expected only the valid quote, got %d", len(ranked))
	}
}
