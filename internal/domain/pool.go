package domain

import (
	"bytes"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PoolType is the closed set of supported pool variants.
type PoolType uint8

const (
	PoolTypeConcentrated PoolType = iota
	PoolTypeWeighted
	PoolTypeStable
)

func (p PoolType) String() string {
	switch p {
	case PoolTypeConcentrated:
		return "Concentrated"
	case PoolTypeWeighted:
		return "Weighted"
	case PoolTypeStable:
		return "Stable"
	default:
		return "UNKNOWN"
	}
}

// Tick is one initialized tick record of a concentrated pool.
type Tick struct {
	Index          int32    `json:"index"`
	LiquidityNet   *big.Int `json:"liquidityNet"`
	LiquidityGross *big.Int `json:"liquidityGross"`
}

// ConcentratedData carries the variant-specific state of a concentrated pool.
type ConcentratedData struct {
	SqrtPriceX96 *big.Int       `json:"sqrtPriceX96"`
	Tick         int32          `json:"tick"`
	TickSpacing  int32          `json:"tickSpacing"`
	FeePips      uint32         `json:"feePips"` // fee in hundredths of a bip (ppm of 1e6)
	Hooks        common.Address `json:"hooks"`
	Liquidity    *big.Int       `json:"liquidity"`
	Ticks        []Tick         `json:"ticks"`
}

// WeightedTokenState is one token's balance and normalized weight in a weighted pool.
type WeightedTokenState struct {
	Token    Token    `json:"token"`
	Balance  *big.Int `json:"balance"`
	WeightE18 *big.Int `json:"weightE18"` // weight scaled by 1e18; weights sum to 1e18
}

// WeightedData carries the variant-specific state of a weighted pool.
type WeightedData struct {
	PoolID [32]byte             `json:"-"`
	Tokens []WeightedTokenState `json:"tokens"`
}

// StableTokenState is one token's balance in a stable pool.
type StableTokenState struct {
	Token   Token    `json:"token"`
	Balance *big.Int `json:"balance"`
}

// StableData carries the variant-specific state of a stable pool.
type StableData struct {
	Amplification uint64            `json:"amplification"`
	Tokens        []StableTokenState `json:"tokens"`
}

// Pool is a pair-specific liquidity reserve, the unit of routing granularity.
// Exactly one of Concentrated/Weighted/Stable is non-nil, matching Type.
type Pool struct {
	Address common.Address `json:"address"`
	Type    PoolType       `json:"type"`

	// Token0 sorts strictly below Token1 by address bytes.
	Token0 Token `json:"token0"`
	Token1 Token `json:"token1"`

	// SwapFeeE18 is the swap fee as a fraction of 1e18.
	SwapFeeE18 *big.Int `json:"swapFeeE18"`

	// LiquidityUSD is the filtering scalar reported by the source.
	LiquidityUSD float64 `json:"liquidityUSD"`

	Concentrated *ConcentratedData `json:"concentrated,omitempty"`
	Weighted     *WeightedData     `json:"weighted,omitempty"`
	Stable       *StableData       `json:"stable,omitempty"`
}

// OrderedTokens reports whether token0 sorts below token1 byte-wise.
func (p *Pool) OrderedTokens() bool {
	return bytes.Compare(p.Token0.Address.Bytes(), p.Token1.Address.Bytes()) < 0
}

// Involves reports whether the pool trades the given token on either side.
func (p *Pool) Involves(addr common.Address) bool {
	return p.Token0.Address == addr || p.Token1.Address == addr
}

// Other returns the counterpart token for addr, and ok=false when addr is
// on neither side.
func (p *Pool) Other(addr common.Address) (Token, bool) {
	switch addr {
	case p.Token0.Address:
		return p.Token1, true
	case p.Token1.Address:
		return p.Token0, true
	}
	return Token{}, false
}

// ZeroForOne reports whether a swap from tokenIn trades token0 into token1.
func (p *Pool) ZeroForOne(tokenIn common.Address) bool {
	return tokenIn == p.Token0.Address
}
