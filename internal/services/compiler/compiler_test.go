package compiler

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
)

var (
	nativeETH = domain.Token{Address: common.Address{}, Symbol: "ETH", Decimals: 18}
	wethToken = domain.Token{Address: swapcommon.WrappedNative, Symbol: "WETH", Decimals: 18}
	usdcToken = domain.Token{Address: common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), Symbol: "USDC", Decimals: 6}
	aaveToken = domain.Token{Address: common.HexToAddress("0x7Fc66500c84A76Ad7e9c93437bFc5Ac33E2DDaE9"), Symbol: "AAVE", Decimals: 18}

	encoderCL       = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	encoderWeighted = common.HexToAddress("0x00000000000000000000000000000000000000C2")
)

func testCompiler() *Compiler {
	return New(encoderCL, encoderWeighted)
}

func weightedTestPool(addr string, t0, t1 domain.Token) *domain.Pool {
	return &domain.Pool{
		Address:    common.HexToAddress(addr),
		Type:       domain.PoolTypeWeighted,
		Token0:     t0,
		Token1:     t1,
		SwapFeeE18: big.NewInt(0),
		Weighted:   &domain.WeightedData{},
	}
}

func concentratedTestPool(addr string, t0, t1 domain.Token, feePips uint32, spacing int32) *domain.Pool {
	return &domain.Pool{
		Address:    addr0x(addr),
		Type:       domain.PoolTypeConcentrated,
		Token0:     t0,
		Token1:     t1,
		SwapFeeE18: big.NewInt(0),
		Concentrated: &domain.ConcentratedData{
			FeePips:     feePips,
			TickSpacing: spacing,
			Hooks:       common.Address{},
		},
	}
}

func addr0x(s string) common.Address { return common.HexToAddress(s) }

func leg(pool *domain.Pool, in, out domain.Token, amountIn, expectedOut *big.Int) domain.Leg {
	proto := domain.ProtocolWeighted
	if pool != nil && pool.Type == domain.PoolTypeConcentrated {
		proto = domain.ProtocolConcentrated
	}
	return domain.Leg{
		Protocol:       proto,
		Pool:           pool,
		InputToken:     in,
		OutputToken:    out,
		InputAmount:    amountIn,
		ExpectedOutput: expectedOut,
	}
}

func word(calldata []byte, i int) []byte {
	return calldata[4+32*i : 4+32*(i+1)]
}

func TestSelectorBytes(t *testing.T) {
	cases := []struct {
		sig string
		got [4]byte
	}{
		{"encodeSingleSwap(address,address,address,uint256,uint256)", selWeightedSingle},
		{"encodeUseAllBalanceSwap(address,address,address,uint256,uint8)", selWeightedUseAll},
		{"encodeSingleSwap(((address,address,uint24,int24,address),bool,uint256,uint256,address))", selConcSingle},
		{"encodeUseAllBalanceSwap(((address,address,uint24,int24,address),bool,uint256,uint8,address))", selConcUseAll},
		{"encodeAndExecuteaaaaaYops(address,uint256,address,address[],bytes[],uint8[])", selBundlerExecute},
	}
	for _, tc := range cases {
		want := crypto.Keccak256([]byte(tc.sig))[:4]
		if !bytes.Equal(tc.got[:], want) {
			t.Errorf("selector for %q = %x, want %x", tc.sig, tc.got, want)
		}
	}
}

func TestCompileNativeInWithWrap(t *testing.T) {
	// Native in, one weighted hop: the bundler must wrap first and the
	// encoded step must spend the wrapped token.
	pool := weightedTestPool("0xb1", usdcToken, wethToken)
	amountIn := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
	route := &domain.Route{
		Legs:      []domain.Leg{leg(pool, wethToken, usdcToken, amountIn, big.NewInt(3000_000_000))},
		AmountIn:  amountIn,
		AmountOut: big.NewInt(3000_000_000),
	}
	quote := &domain.Quote{Protocol: domain.ProtocolRouter, OutputAmount: route.AmountOut, Route: route}

	plan, call, err := testCompiler().Compile(quote, TradeContext{
		FromToken: nativeETH, ToToken: usdcToken, AmountIn: amountIn, SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Steps) != 1 {
		t.Fatalf("got %d steps, want 1", len(plan.Steps))
	}
	step := plan.Steps[0]
	if step.WrapOperation != domain.WrapBeforeSwap {
		t.Fatalf("wrap op = %d, want 1", step.WrapOperation)
	}
	if !step.UseAllBalance {
		t.Fatal("sole step of its group must consume the full balance")
	}
	if step.InputToken.Address != swapcommon.WrappedNative {
		t.Fatal("encoded input token must be the wrapped-native address")
	}
	if call.FromToken != (common.Address{}) {
		t.Fatal("fromToken must stay the native zero address")
	}
	if call.FromAmount.Cmp(amountIn) != 0 {
		t.Fatalf("fromAmount = %s, want %s", call.FromAmount, amountIn)
	}
	if call.Value().Cmp(amountIn) != 0 {
		t.Fatal("native trade must attach fromAmount as value")
	}
	if call.EncoderTargets[0] != encoderWeighted {
		t.Fatal("weighted step must target the weighted encoder")
	}
	if !bytes.Equal(call.EncoderCalldata[0][:4], selWeightedUseAll[:]) {
		t.Fatal("use-all-balance step must use the use-all selector")
	}
}

func TestCompileTwoHopConcentrated(t *testing.T) {
	// USDC -> WETH -> AAVE over two concentrated pools.
	p1 := concentratedTestPool("0xc1", usdcToken, wethToken, 500, 10)
	p2 := concentratedTestPool("0xc2", aaveToken, wethToken, 3000, 60)

	amountIn := big.NewInt(100_000_000) // 100 USDC
	mid := big.NewInt(30_000_000_000_000_000)
	route := &domain.Route{
		Legs: []domain.Leg{
			leg(p1, usdcToken, wethToken, amountIn, mid),
			leg(p2, wethToken, aaveToken, mid, big.NewInt(1e18)),
		},
		AmountIn:  amountIn,
		AmountOut: big.NewInt(1e18),
	}
	quote := &domain.Quote{Protocol: domain.ProtocolRouter, OutputAmount: route.AmountOut, Route: route}

	plan, call, err := testCompiler().Compile(quote, TradeContext{
		FromToken: usdcToken, ToToken: aaveToken, AmountIn: amountIn, SlippageBps: 100,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(plan.Steps))
	}
	if plan.Steps[0].Level != 0 || plan.Steps[1].Level != 1 {
		t.Fatal("steps must sit at levels 0 and 1")
	}
	if plan.Steps[0].InputAmount.Cmp(amountIn) != 0 {
		t.Fatalf("step 0 input = %s, want %s", plan.Steps[0].InputAmount, amountIn)
	}
	if !plan.Steps[1].UseAllBalance {
		t.Fatal("level-1 step must consume the full intermediate balance")
	}
	if call.FromAmount.Cmp(amountIn) != 0 {
		t.Fatalf("fromAmount = %s, want level-0 sum %s", call.FromAmount, amountIn)
	}
	for i, cd := range call.EncoderCalldata {
		if call.EncoderTargets[i] != encoderCL {
			t.Fatalf("step %d must target the concentrated encoder", i)
		}
		if !bytes.Equal(cd[:4], selConcSingle[:]) && !bytes.Equal(cd[:4], selConcUseAll[:]) {
			t.Fatalf("step %d selector is not a concentrated form", i)
		}
	}

	// Step 0 spends USDC = pool currency0, so zeroForOne is true: the
	// boolean is the sixth word of the struct (after the 5 PoolKey words).
	cd := call.EncoderCalldata[0]
	if cd[4+32*5+31] != 1 {
		t.Fatal("zeroForOne must be set when input token equals currency0")
	}
	// Step 1 spends WETH = pool currency1 of p2, zeroForOne false.
	cd = call.EncoderCalldata[1]
	if cd[4+32*5+31] != 0 {
		t.Fatal("zeroForOne must be clear when input token equals currency1")
	}
	// PoolKey.fee of step 0 occupies the third word.
	if new(big.Int).SetBytes(word(call.EncoderCalldata[0], 2)).Int64() != 500 {
		t.Fatal("PoolKey.fee must carry the pool's fee in pips")
	}
}

func TestCompileSplitFirstHop(t *testing.T) {
	p1 := concentratedTestPool("0xd1", wethToken, usdcToken, 500, 10)
	p2 := concentratedTestPool("0xd2", wethToken, usdcToken, 3000, 60)

	ten := new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18))
	two := new(big.Int).Mul(big.NewInt(2), big.NewInt(1e18))
	eight := new(big.Int).Mul(big.NewInt(8), big.NewInt(1e18))

	split := &domain.SplitRoute{
		Routes: []*domain.Route{
			{Legs: []domain.Leg{leg(p2, wethToken, usdcToken, eight, big.NewInt(24_000_000_000))},
				AmountIn: eight, AmountOut: big.NewInt(24_000_000_000)},
			{Legs: []domain.Leg{leg(p1, wethToken, usdcToken, two, big.NewInt(6_000_000_000))},
				AmountIn: two, AmountOut: big.NewInt(6_000_000_000)},
		},
		Fractions: []float64{0.8, 0.2},
		AmountIn:  ten,
		AmountOut: big.NewInt(30_000_000_000),
	}
	quote := &domain.Quote{Protocol: domain.ProtocolRouter, OutputAmount: split.AmountOut, Split: split}

	plan, call, err := testCompiler().Compile(quote, TradeContext{
		FromToken: wethToken, ToToken: usdcToken, AmountIn: ten, SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(plan.Steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(plan.Steps))
	}
	// Sorted ascending by amount: the 0.2 leg first, the 0.8 leg last and
	// consuming the remaining balance.
	if plan.Steps[0].InputAmount.Cmp(two) != 0 || plan.Steps[1].InputAmount.Cmp(eight) != 0 {
		t.Fatal("level-0 steps must sort ascending by input amount")
	}
	if plan.Steps[0].UseAllBalance || !plan.Steps[1].UseAllBalance {
		t.Fatal("only the largest step of the group consumes the full balance")
	}
	if !bytes.Equal(call.EncoderCalldata[1][:4], selConcUseAll[:]) {
		t.Fatal("the full-balance leg must encode with the use-all selector")
	}
	if call.FromAmount.Cmp(ten) != 0 {
		t.Fatalf("fromAmount = %s, want %s", call.FromAmount, ten)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	p1 := weightedTestPool("0xe1", usdcToken, wethToken)
	p2 := weightedTestPool("0xe2", usdcToken, wethToken)
	quote := &domain.Quote{
		Protocol: domain.ProtocolRouter,
		Split: &domain.SplitRoute{
			Routes: []*domain.Route{
				{Legs: []domain.Leg{leg(p1, wethToken, usdcToken, big.NewInt(7), big.NewInt(70))},
					AmountIn: big.NewInt(7), AmountOut: big.NewInt(70)},
				{Legs: []domain.Leg{leg(p2, wethToken, usdcToken, big.NewInt(3), big.NewInt(30))},
					AmountIn: big.NewInt(3), AmountOut: big.NewInt(30)},
			},
			Fractions: []float64{0.7, 0.3},
			AmountIn:  big.NewInt(10),
			AmountOut: big.NewInt(100),
		},
	}
	trade := TradeContext{FromToken: wethToken, ToToken: usdcToken, AmountIn: big.NewInt(10)}

	c := testCompiler()
	plan, err := c.Normalize(quote, trade)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	steps := append([]domain.Step(nil), plan.Steps...)
	sortAndMark(plan.Steps)
	for i := range steps {
		if steps[i] != plan.Steps[i] {
			t.Fatal("re-normalizing a normalized plan must not change it")
		}
	}
}

func TestCompileErrorTaxonomy(t *testing.T) {
	c := testCompiler()
	trade := TradeContext{FromToken: wethToken, ToToken: usdcToken, AmountIn: big.NewInt(1)}

	_, _, err := c.Compile(nil, trade)
	if !swapcommon.IsKind(err, swapcommon.KindUnknownRouteType) {
		t.Fatalf("nil quote: got %v, want UnknownRouteType", err)
	}

	_, _, err = c.Compile(&domain.Quote{Protocol: domain.ProtocolOdos, OutputAmount: big.NewInt(1)}, trade)
	if !swapcommon.IsKind(err, swapcommon.KindInsufficientRouteData) {
		t.Fatalf("vendor quote without legs: got %v, want InsufficientRouteData", err)
	}

	_, _, err = c.Compile(&domain.Quote{Protocol: domain.ProtocolConcentrated, OutputAmount: big.NewInt(1)}, trade)
	if !swapcommon.IsKind(err, swapcommon.KindUnknownRouteType) {
		t.Fatalf("quote without route: got %v, want UnknownRouteType", err)
	}

	noPool := &domain.Quote{
		Protocol: domain.ProtocolRouter,
		Route: &domain.Route{
			Legs:      []domain.Leg{leg(nil, wethToken, usdcToken, big.NewInt(1), big.NewInt(1))},
			AmountIn:  big.NewInt(1),
			AmountOut: big.NewInt(1),
		},
	}
	_, _, err = c.Compile(noPool, trade)
	if !swapcommon.IsKind(err, swapcommon.KindMissingPoolIdentifier) {
		t.Fatalf("leg without pool: got %v, want MissingPoolIdentifier", err)
	}
}

func TestMinAmountOut(t *testing.T) {
	cases := []struct {
		expected *big.Int
		bps      uint16
		want     int64
	}{
		{big.NewInt(10_000), 0, 10_000},
		{big.NewInt(10_000), 50, 9_950},
		{big.NewInt(10_000), 10_000, 0},
		{nil, 50, 0},
		{big.NewInt(3), 1, 2}, // truncating division
	}
	for _, tc := range cases {
		if got := minAmountOut(tc.expected, tc.bps); got.Int64() != tc.want {
			t.Errorf("minAmountOut(%v, %d) = %s, want %d", tc.expected, tc.bps, got, tc.want)
		}
	}
}

func TestEncodeBundlerCall(t *testing.T) {
	pool := weightedTestPool("0xf1", usdcToken, wethToken)
	amountIn := big.NewInt(1e18)
	quote := &domain.Quote{
		Protocol: domain.ProtocolRouter,
		Route: &domain.Route{
			Legs:      []domain.Leg{leg(pool, wethToken, usdcToken, amountIn, big.NewInt(3000_000_000))},
			AmountIn:  amountIn,
			AmountOut: big.NewInt(3000_000_000),
		},
	}
	_, call, err := testCompiler().Compile(quote, TradeContext{
		FromToken: wethToken, ToToken: usdcToken, AmountIn: amountIn, SlippageBps: 50,
	})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data, err := EncodeBundlerCall(call)
	if err != nil {
		t.Fatalf("EncodeBundlerCall: %v", err)
	}
	if !bytes.Equal(data[:4], selBundlerExecute[:]) {
		t.Fatal("bundler calldata must start with the execute selector")
	}
	// First static word is fromToken, second fromAmount.
	if !bytes.Equal(word(data, 0)[12:], call.FromToken[:]) {
		t.Fatal("word 0 must be fromToken")
	}
	if new(big.Int).SetBytes(word(data, 1)).Cmp(call.FromAmount) != 0 {
		t.Fatal("word 1 must be fromAmount")
	}
}
