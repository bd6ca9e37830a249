package router

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyontrade/swap-engine/internal/domain"
)

var (
	tokWETH = domain.Token{Address: common.HexToAddress("0x1000000000000000000000000000000000000001"), Symbol: "WETH", Decimals: 18}
	tokUSDC = domain.Token{Address: common.HexToAddress("0x2000000000000000000000000000000000000002"), Symbol: "USDC", Decimals: 6}
	tokDAI  = domain.Token{Address: common.HexToAddress("0x3000000000000000000000000000000000000003"), Symbol: "DAI", Decimals: 18}
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

// weightedPool builds an equal-weight zero-fee pool, which behaves as a plain
// constant-product pool. Deterministic and easy to reason about in tests.
func weightedPool(addr string, a, b domain.Token, balA, balB *big.Int, liqUSD float64) *domain.Pool {
	half := new(big.Int).Exp(big.NewInt(10), big.NewInt(17), nil)
	half.Mul(half, big.NewInt(5)) // 0.5e18
	return &domain.Pool{
		Address:      common.HexToAddress(addr),
		Type:         domain.PoolTypeWeighted,
		Token0:       a,
		Token1:       b,
		SwapFeeE18:   big.NewInt(0),
		LiquidityUSD: liqUSD,
		Weighted: &domain.WeightedData{
			Tokens: []domain.WeightedTokenState{
				{Token: a, Balance: balA, WeightE18: new(big.Int).Set(half)},
				{Token: b, Balance: balB, WeightE18: new(big.Int).Set(half)},
			},
		},
	}
}

func TestBuildGraphLiquidityFloor(t *testing.T) {
	pools := []*domain.Pool{
		weightedPool("0xa1", tokWETH, tokUSDC, e18(100), e18(200_000), 500_000),
		weightedPool("0xa2", tokWETH, tokUSDC, e18(1), e18(2_000), 900),
	}
	g := BuildGraph(pools, 1_000)
	if got := g.PoolCount(); got != 1 {
		t.Fatalf("PoolCount = %d, want 1", got)
	}
	if got := len(g.PoolsFor(tokWETH.Address)); got != 1 {
		t.Fatalf("PoolsFor(WETH) = %d pools, want 1", got)
	}
}

func TestBuildGraphPairCap(t *testing.T) {
	var pools []*domain.Pool
	for i := 0; i < MaxPoolsPerPair+3; i++ {
		addr := common.BigToAddress(big.NewInt(int64(0xb0 + i))).Hex()
		pools = append(pools, weightedPool(addr, tokWETH, tokUSDC, e18(100), e18(200_000), 1_000_000))
	}
	g := BuildGraph(pools, 0)
	if got := g.PoolCount(); got != MaxPoolsPerPair {
		t.Fatalf("PoolCount = %d, want %d", got, MaxPoolsPerPair)
	}
}

func TestEnumeratePaths(t *testing.T) {
	direct := weightedPool("0xc1", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	legA := weightedPool("0xc2", tokWETH, tokDAI, e18(100), e18(200_000), 1e6)
	legB := weightedPool("0xc3", tokDAI, tokUSDC, e18(200_000), e18(200_000), 1e6)
	g := BuildGraph([]*domain.Pool{direct, legA, legB}, 0)

	paths := g.EnumeratePaths(tokWETH.Address, tokUSDC.Address, 2)
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2 (direct + via DAI)", len(paths))
	}

	// With hop bound 1 only the direct pool qualifies.
	paths = g.EnumeratePaths(tokWETH.Address, tokUSDC.Address, 1)
	if len(paths) != 1 || paths[0][0].Address != direct.Address {
		t.Fatalf("maxHops=1: got %d paths, want only the direct pool", len(paths))
	}
}

func TestEnumeratePathsNoTokenRevisit(t *testing.T) {
	// WETH-DAI, DAI-WETH (second pool), DAI-USDC. A simple path must not
	// bounce back through WETH.
	p1 := weightedPool("0xd1", tokWETH, tokDAI, e18(100), e18(200_000), 1e6)
	p2 := weightedPool("0xd2", tokWETH, tokDAI, e18(50), e18(100_000), 1e6)
	p3 := weightedPool("0xd3", tokDAI, tokUSDC, e18(200_000), e18(200_000), 1e6)
	g := BuildGraph([]*domain.Pool{p1, p2, p3}, 0)

	paths := g.EnumeratePaths(tokWETH.Address, tokUSDC.Address, 3)
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2 (one per WETH-DAI pool)", len(paths))
	}
	for _, path := range paths {
		if len(path) != 2 {
			t.Fatalf("path length = %d, want 2", len(path))
		}
	}
}

func TestPathConflicts(t *testing.T) {
	shared := weightedPool("0xe1", tokWETH, tokDAI, e18(1), e18(1), 1e6)
	other := weightedPool("0xe2", tokDAI, tokUSDC, e18(1), e18(1), 1e6)
	third := weightedPool("0xe3", tokWETH, tokUSDC, e18(1), e18(1), 1e6)

	a := Path{shared, other}
	b := Path{shared}
	c := Path{third}
	if !a.Conflicts(b) {
		t.Fatal("paths sharing a pool must conflict")
	}
	if a.Conflicts(c) {
		t.Fatal("pool-disjoint paths must not conflict")
	}
}

func TestEvaluatePathComposition(t *testing.T) {
	legA := weightedPool("0xf1", tokWETH, tokDAI, e18(100), e18(200_000), 1e6)
	legB := weightedPool("0xf2", tokDAI, tokUSDC, e18(200_000), e18(200_000), 1e6)

	amountIn := e18(1)
	route, err := EvaluatePath(Path{legA, legB}, tokWETH, amountIn)
	if err != nil {
		t.Fatalf("EvaluatePath: %v", err)
	}
	if route.Hops() != 2 {
		t.Fatalf("Hops = %d, want 2", route.Hops())
	}
	if route.InputToken().Address != tokWETH.Address || route.OutputToken().Address != tokUSDC.Address {
		t.Fatalf("route endpoints wrong: %s -> %s", route.InputToken().Symbol, route.OutputToken().Symbol)
	}
	// Second leg consumes the first leg's output.
	if route.Legs[1].InputAmount.Cmp(route.Legs[0].ExpectedOutput) != 0 {
		t.Fatalf("leg 2 input %s != leg 1 output %s",
			route.Legs[1].InputAmount, route.Legs[0].ExpectedOutput)
	}
	if route.AmountOut.Cmp(route.Legs[1].ExpectedOutput) != 0 {
		t.Fatal("route output must equal final leg output")
	}
	if route.AmountOut.Sign() <= 0 {
		t.Fatal("route output must be positive")
	}
}

func TestEvaluatePathDiscontinuity(t *testing.T) {
	legA := weightedPool("0xf3", tokWETH, tokDAI, e18(100), e18(200_000), 1e6)
	legB := weightedPool("0xf4", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)

	// legB does not trade DAI, so the path is broken after legA.
	if _, err := EvaluatePath(Path{legA, legB}, tokWETH, e18(1)); err == nil {
		t.Fatal("expected discontinuity error")
	}
}

func TestSearchNoRoute(t *testing.T) {
	r := NewRouter(3, 0)
	pool := weightedPool("0xf5", tokWETH, tokDAI, e18(100), e18(200_000), 1e6)
	_, _, err := r.Search([]*domain.Pool{pool}, tokWETH, tokUSDC, e18(1))
	if err == nil {
		t.Fatal("expected no-route error")
	}
}

func TestSearchInvalidAmount(t *testing.T) {
	r := NewRouter(3, 0)
	pool := weightedPool("0xf6", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	if _, _, err := r.Search([]*domain.Pool{pool}, tokWETH, tokUSDC, big.NewInt(0)); err == nil {
		t.Fatal("expected error for zero amountIn")
	}
	if _, _, err := r.Search([]*domain.Pool{pool}, tokWETH, tokUSDC, nil); err == nil {
		t.Fatal("expected error for nil amountIn")
	}
}

func TestSearchSinglePool(t *testing.T) {
	r := NewRouter(3, 0)
	pool := weightedPool("0xf7", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	best, split, err := r.Search([]*domain.Pool{pool}, tokWETH, tokUSDC, e18(1))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if split != nil {
		t.Fatal("single pool cannot split")
	}
	if best == nil || best.Hops() != 1 {
		t.Fatal("expected a one-hop route")
	}
}

func TestSearchSplitsAcrossEqualPools(t *testing.T) {
	// Two identical constant-product pools: splitting the trade halves the
	// price impact, so the split must beat either single pool.
	p1 := weightedPool("0xf8", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	p2 := weightedPool("0xf9", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)

	amountIn := e18(10) // 10% of one pool's reserve: real impact
	single, err := EvaluatePath(Path{p1}, tokWETH, amountIn)
	if err != nil {
		t.Fatalf("EvaluatePath: %v", err)
	}

	r := NewRouter(3, 0)
	best, split, err := r.Search([]*domain.Pool{p1, p2}, tokWETH, tokUSDC, amountIn)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if split == nil {
		t.Fatalf("expected a split route; got single with output %s", best.AmountOut)
	}
	if split.AmountOut.Cmp(single.AmountOut) <= 0 {
		t.Fatalf("split output %s must beat single-pool output %s",
			split.AmountOut, single.AmountOut)
	}
	if len(split.Routes) != 2 || len(split.Fractions) != 2 {
		t.Fatalf("expected 2 split legs, got %d", len(split.Routes))
	}
	sum := split.Fractions[0] + split.Fractions[1]
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("fractions sum to %f, want ~1", sum)
	}
	// Identical pools: allocation should end up near even.
	if split.Fractions[0] < 0.45 || split.Fractions[0] > 0.55 {
		t.Fatalf("fraction[0] = %f, want ~0.5 for identical pools", split.Fractions[0])
	}
}

func TestFindOptimalSplitAmountConservation(t *testing.T) {
	p1 := weightedPool("0xfa", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	p2 := weightedPool("0xfb", tokWETH, tokUSDC, e18(300), e18(600_000), 1e6)

	amountIn := e18(7)
	split, err := FindOptimalSplit([]Path{{p1}, {p2}}, tokWETH, amountIn)
	if err != nil {
		t.Fatalf("FindOptimalSplit: %v", err)
	}

	total := new(big.Int)
	for _, route := range split.Routes {
		total.Add(total, route.AmountIn)
	}
	if total.Cmp(amountIn) != 0 {
		t.Fatalf("split inputs sum to %s, want %s", total, amountIn)
	}
	// The deeper pool should carry the larger share.
	if split.Fractions[1] <= split.Fractions[0] {
		t.Fatalf("deeper pool got fraction %f <= %f", split.Fractions[1], split.Fractions[0])
	}
}

func TestFindOptimalSplitThreeWay(t *testing.T) {
	// Three identical pools: the nested search should land near an even
	// three-way allocation and beat any single leg.
	p1 := weightedPool("0xd1", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	p2 := weightedPool("0xd2", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	p3 := weightedPool("0xd3", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)

	amountIn := e18(12)
	single, err := EvaluatePath(Path{p1}, tokWETH, amountIn)
	if err != nil {
		t.Fatalf("EvaluatePath: %v", err)
	}

	split, err := FindOptimalSplit([]Path{{p1}, {p2}, {p3}}, tokWETH, amountIn)
	if err != nil {
		t.Fatalf("FindOptimalSplit: %v", err)
	}
	if len(split.Routes) != 3 || len(split.Fractions) != 3 {
		t.Fatalf("expected 3 split legs, got %d", len(split.Routes))
	}

	sum := 0.0
	for i, f := range split.Fractions {
		sum += f
		if f < 0.28 || f > 0.39 {
			t.Errorf("fraction[%d] = %f, want ~1/3 for identical pools", i, f)
		}
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("fractions sum to %f, want ~1", sum)
	}

	total := new(big.Int)
	for _, route := range split.Routes {
		total.Add(total, route.AmountIn)
	}
	if total.Cmp(amountIn) != 0 {
		t.Fatalf("split inputs sum to %s, want %s", total, amountIn)
	}
	if split.AmountOut.Cmp(single.AmountOut) <= 0 {
		t.Fatalf("three-way output %s must beat single-pool output %s",
			split.AmountOut, single.AmountOut)
	}
}

func TestFindOptimalSplitFourWayEqual(t *testing.T) {
	pools := []*domain.Pool{
		weightedPool("0xd4", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6),
		weightedPool("0xd5", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6),
		weightedPool("0xd6", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6),
		weightedPool("0xd7", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6),
	}
	paths := []Path{{pools[0]}, {pools[1]}, {pools[2]}, {pools[3]}}

	amountIn := e18(13) // not divisible by four: last leg absorbs the residue
	single, err := EvaluatePath(paths[0], tokWETH, amountIn)
	if err != nil {
		t.Fatalf("EvaluatePath: %v", err)
	}

	split, err := FindOptimalSplit(paths, tokWETH, amountIn)
	if err != nil {
		t.Fatalf("FindOptimalSplit: %v", err)
	}
	if len(split.Routes) != 4 || len(split.Fractions) != 4 {
		t.Fatalf("expected 4 split legs, got %d", len(split.Routes))
	}
	for i, f := range split.Fractions {
		if f != 0.25 {
			t.Errorf("fraction[%d] = %f, want the even 0.25 fallback", i, f)
		}
	}

	total := new(big.Int)
	for _, route := range split.Routes {
		total.Add(total, route.AmountIn)
	}
	if total.Cmp(amountIn) != 0 {
		t.Fatalf("split inputs sum to %s, want %s", total, amountIn)
	}
	if split.AmountOut.Cmp(single.AmountOut) <= 0 {
		t.Fatalf("four-way output %s must beat single-pool output %s",
			split.AmountOut, single.AmountOut)
	}
}

func TestFindOptimalSplitTooFewPaths(t *testing.T) {
	p := weightedPool("0xfc", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	if _, err := FindOptimalSplit([]Path{{p}}, tokWETH, e18(1)); err == nil {
		t.Fatal("expected error for single-path split")
	}
}

func TestMulRatio(t *testing.T) {
	amount := big.NewInt(1_000_000_000)
	cases := []struct {
		ratio float64
		want  int64
	}{
		{0, 0},
		{-0.5, 0},
		{0.5, 500_000_000},
		{0.25, 250_000_000},
		{1, 1_000_000_000},
		{1.5, 1_000_000_000}, // clamped
	}
	for _, tc := range cases {
		got := mulRatio(amount, tc.ratio)
		if got.Int64() != tc.want {
			t.Errorf("mulRatio(%s, %f) = %s, want %d", amount, tc.ratio, got, tc.want)
		}
	}
}

func BenchmarkSearchTwoPools(b *testing.B) {
	p1 := weightedPool("0xfd", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	p2 := weightedPool("0xfe", tokWETH, tokUSDC, e18(100), e18(200_000), 1e6)
	r := NewRouter(3, 0)
	amountIn := e18(10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := r.Search([]*domain.Pool{p1, p2}, tokWETH, tokUSDC, amountIn); err != nil {
			b.Fatal(err)
		}
	}
}
