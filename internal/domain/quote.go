package domain

import (
	"math/big"
)

// Protocol tags a liquidity source / execution venue.
type Protocol string

const (
	ProtocolConcentrated Protocol = "concentrated"
	ProtocolWeighted     Protocol = "weighted"
	ProtocolStable       Protocol = "stable"
	ProtocolOdos         Protocol = "odos"
	ProtocolOneInch      Protocol = "oneinch"

	// ProtocolRouter tags quotes produced by the internal route search over
	// the concentrated and weighted pool sets.
	ProtocolRouter Protocol = "router"
)

// Leg is one pool swap within a route.
type Leg struct {
	Protocol       Protocol `json:"protocol"`
	Pool           *Pool    `json:"-"`
	InputToken     Token    `json:"inputToken"`
	OutputToken    Token    `json:"outputToken"`
	InputAmount    *big.Int `json:"inputAmount"`
	ExpectedOutput *big.Int `json:"expectedOutput"`
}

// Route is an ordered list of legs: leg k+1 consumes leg k's output token.
type Route struct {
	Legs      []Leg    `json:"legs"`
	AmountIn  *big.Int `json:"amountIn"`
	AmountOut *big.Int `json:"amountOut"`
}

// InputToken returns the route's entry token.
func (r *Route) InputToken() Token {
	if len(r.Legs) == 0 {
		return Token{}
	}
	return r.Legs[0].InputToken
}

// OutputToken returns the route's exit token.
func (r *Route) OutputToken() Token {
	if len(r.Legs) == 0 {
		return Token{}
	}
	return r.Legs[len(r.Legs)-1].OutputToken
}

// Hops returns the number of pool swaps on the route.
func (r *Route) Hops() int {
	return len(r.Legs)
}

// SplitRoute is a set of parallel routes sharing input and output, with
// allocation fractions summing to 1.
type SplitRoute struct {
	Routes    []*Route  `json:"routes"`
	Fractions []float64 `json:"fractions"`
	AmountIn  *big.Int  `json:"amountIn"`
	AmountOut *big.Int  `json:"amountOut"`
}

// Quote is the uniform adapter response fed into ranking.
type Quote struct {
	Protocol     Protocol `json:"protocol"`
	OutputAmount *big.Int `json:"outputAmount"`
	GasEstimate  uint64   `json:"gasEstimate"`

	// Route carries the resolved route for sources that expose one.
	Route *Route `json:"route,omitempty"`

	// Split carries the resolved split route, when the router split the trade.
	Split *SplitRoute `json:"split,omitempty"`

	// TradeData is adapter-specific evidence consumed by the plan compiler.
	TradeData map[string]any `json:"tradeData,omitempty"`

	// Raw is the untouched vendor response, kept for diagnostics.
	Raw []byte `json:"-"`
}

// NetOutput is the output net of gas cost denominated in output-token units.
// Never negative.
type RankedQuote struct {
	Quote          *Quote   `json:"quote"`
	GasCostOutUnit *big.Int `json:"gasCostOutUnit"`
	NetOutput      *big.Int `json:"netOutput"`
}
