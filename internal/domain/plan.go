package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// WrapOp is a native/wrapped-native conversion instruction attached to a step.
type WrapOp uint8

const (
	WrapNone         WrapOp = 0
	WrapBeforeSwap   WrapOp = 1
	WrapAfterSwap    WrapOp = 2
	UnwrapBeforeSwap WrapOp = 3
	UnwrapAfterSwap  WrapOp = 4
)

// Step is one executable unit of a compiled plan. Steps sharing a level
// consume from the same logical token balance.
type Step struct {
	Level          int      `json:"level"`
	Protocol       Protocol `json:"protocol"`
	Pool           *Pool    `json:"-"`
	PoolAddress    common.Address `json:"poolAddress"`
	InputToken     Token    `json:"inputToken"`
	OutputToken    Token    `json:"outputToken"`
	InputAmount    *big.Int `json:"inputAmount"`
	ExpectedOutput *big.Int `json:"expectedOutput"`
	WrapOperation  WrapOp   `json:"wrapOperation"`
	UseAllBalance  bool     `json:"useAllBalance"`
}

// ExecutionPlan is the level-ordered step list produced by the compiler.
type ExecutionPlan struct {
	Steps []Step `json:"steps"`
}

// CompiledCall is the plan after binary encoding: the three arrays share
// length and positional correspondence, ready for the bundler multicall.
type CompiledCall struct {
	FromToken       common.Address   `json:"fromToken"`
	FromAmount      *big.Int         `json:"fromAmount"`
	ToToken         common.Address   `json:"toToken"`
	EncoderTargets  []common.Address `json:"encoderTargets"`
	EncoderCalldata [][]byte         `json:"encoderCalldata"`
	WrapOperations  []WrapOp         `json:"wrapOperations"`
}

// Value returns the native value to attach: fromAmount iff fromToken is native.
func (c *CompiledCall) Value() *big.Int {
	if c.FromToken == (common.Address{}) {
		return new(big.Int).Set(c.FromAmount)
	}
	return big.NewInt(0)
}

// TradeSummary is the record persisted after a successful submission.
type TradeSummary struct {
	TxHash       string   `json:"txHash"`
	FromToken    Token    `json:"fromToken"`
	ToToken      Token    `json:"toToken"`
	AmountIn     string   `json:"amountIn"`
	ExpectedOut  string   `json:"expectedOut"`
	Protocol     Protocol `json:"protocol"`
	SlippageBps  uint16   `json:"slippageBps"`
	SubmittedAt  int64    `json:"submittedAt"`
	GasPriceGwei float64  `json:"gasPriceGwei"`
}

// SubmitResult is the structured outcome of a submission attempt.
type SubmitResult struct {
	Success  bool     `json:"success"`
	TxHash   string   `json:"txHash,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
