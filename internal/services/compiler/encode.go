package compiler

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
)

// Canonical encoder signatures. The concentrated variants take a single
// struct parameter, hence the doubled parentheses; the selector is keccak of
// the string exactly as written.
const (
	sigWeightedSingle = "encodeSingleSwap(address,address,address,uint256,uint256)"
	sigWeightedUseAll = "encodeUseAllBalanceSwap(address,address,address,uint256,uint8)"
	sigConcSingle     = "encodeSingleSwap(((address,address,uint24,int24,address),bool,uint256,uint256,address))"
	sigConcUseAll     = "encodeUseAllBalanceSwap(((address,address,uint24,int24,address),bool,uint256,uint8,address))"

	sigBundlerExecute = "encodeAndExecuteaaaaaYops(address,uint256,address,address[],bytes[],uint8[])"
)

func selector(sig string) [4]byte {
	var out [4]byte
	copy(out[:], crypto.Keccak256([]byte(sig))[:4])
	return out
}

var (
	selWeightedSingle = selector(sigWeightedSingle)
	selWeightedUseAll = selector(sigWeightedUseAll)
	selConcSingle     = selector(sigConcSingle)
	selConcUseAll     = selector(sigConcUseAll)
	selBundlerExecute = selector(sigBundlerExecute)
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(err)
	}
	return typ
}

var (
	typAddress = mustType("address", nil)
	typUint256 = mustType("uint256", nil)
	typUint8   = mustType("uint8", nil)

	poolKeyComponents = []abi.ArgumentMarshaling{
		{Name: "currency0", Type: "address"},
		{Name: "currency1", Type: "address"},
		{Name: "fee", Type: "uint24"},
		{Name: "tickSpacing", Type: "int24"},
		{Name: "hooks", Type: "address"},
	}

	typConcSingleParam = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "poolKey", Type: "tuple", Components: poolKeyComponents},
		{Name: "zeroForOne", Type: "bool"},
		{Name: "amountIn", Type: "uint256"},
		{Name: "minAmountOut", Type: "uint256"},
		{Name: "actualInputToken", Type: "address"},
	})

	typConcUseAllParam = mustType("tuple", []abi.ArgumentMarshaling{
		{Name: "poolKey", Type: "tuple", Components: poolKeyComponents},
		{Name: "zeroForOne", Type: "bool"},
		{Name: "minAmountOut", Type: "uint256"},
		{Name: "wrapOperation", Type: "uint8"},
		{Name: "actualInputToken", Type: "address"},
	})

	argsWeightedSingle = abi.Arguments{
		{Type: typAddress}, {Type: typAddress}, {Type: typAddress},
		{Type: typUint256}, {Type: typUint256},
	}
	argsWeightedUseAll = abi.Arguments{
		{Type: typAddress}, {Type: typAddress}, {Type: typAddress},
		{Type: typUint256}, {Type: typUint8},
	}
	argsConcSingle = abi.Arguments{{Type: typConcSingleParam}}
	argsConcUseAll = abi.Arguments{{Type: typConcUseAllParam}}

	argsBundler = abi.Arguments{
		{Type: typAddress},
		{Type: typUint256},
		{Type: typAddress},
		{Type: mustType("address[]", nil)},
		{Type: mustType("bytes[]", nil)},
		{Type: mustType("uint8[]", nil)},
	}
)

// poolKey mirrors the on-chain PoolKey struct for abi packing.
type poolKey struct {
	Currency0   common.Address
	Currency1   common.Address
	Fee         *big.Int
	TickSpacing *big.Int
	Hooks       common.Address
}

type concSingleParam struct {
	PoolKey          poolKey
	ZeroForOne       bool
	AmountIn         *big.Int
	MinAmountOut     *big.Int
	ActualInputToken common.Address
}

type concUseAllParam struct {
	PoolKey          poolKey
	ZeroForOne       bool
	MinAmountOut     *big.Int
	WrapOperation    uint8
	ActualInputToken common.Address
}

func withSelector(sel [4]byte, packed []byte) []byte {
	out := make([]byte, 0, 4+len(packed))
	out = append(out, sel[:]...)
	return append(out, packed...)
}

func poolKeyOf(step *domain.Step) (poolKey, error) {
	pool := step.Pool
	if pool == nil || pool.Concentrated == nil {
		return poolKey{}, swaperrors.NewError(swaperrors.KindInsufficientRouteData,
			"step lacks concentrated pool state")
	}
	return poolKey{
		Currency0:   pool.Token0.Address,
		Currency1:   pool.Token1.Address,
		Fee:         big.NewInt(int64(pool.Concentrated.FeePips)),
		TickSpacing: big.NewInt(int64(pool.Concentrated.TickSpacing)),
		Hooks:       pool.Concentrated.Hooks,
	}, nil
}

// encodeConcentratedStep emits the struct-parameter payload for the
// concentrated encoder. zeroForOne derives from PoolKey.currency0.
func encodeConcentratedStep(step *domain.Step, minOut *big.Int) ([]byte, error) {
	key, err := poolKeyOf(step)
	if err != nil {
		return nil, err
	}
	zeroForOne := step.InputToken.Address == key.Currency0

	if step.UseAllBalance {
		packed, err := argsConcUseAll.Pack(concUseAllParam{
			PoolKey:          key,
			ZeroForOne:       zeroForOne,
			MinAmountOut:     minOut,
			WrapOperation:    uint8(step.WrapOperation),
			ActualInputToken: step.InputToken.Address,
		})
		if err != nil {
			return nil, swaperrors.WrapError(swaperrors.KindInsufficientRouteData, "abi pack", err)
		}
		return withSelector(selConcUseAll, packed), nil
	}

	packed, err := argsConcSingle.Pack(concSingleParam{
		PoolKey:          key,
		ZeroForOne:       zeroForOne,
		AmountIn:         step.InputAmount,
		MinAmountOut:     minOut,
		ActualInputToken: step.InputToken.Address,
	})
	if err != nil {
		return nil, swaperrors.WrapError(swaperrors.KindInsufficientRouteData, "abi pack", err)
	}
	return withSelector(selConcSingle, packed), nil
}

// encodeWeightedStep emits the address-based payload shared by the weighted
// and stable pool encoder.
func encodeWeightedStep(step *domain.Step, minOut *big.Int) ([]byte, error) {
	if step.PoolAddress == (common.Address{}) {
		return nil, swaperrors.NewError(swaperrors.KindMissingPoolIdentifier,
			"step lacks a pool address")
	}

	if step.UseAllBalance {
		packed, err := argsWeightedUseAll.Pack(
			step.PoolAddress,
			step.InputToken.Address,
			step.OutputToken.Address,
			minOut,
			uint8(step.WrapOperation),
		)
		if err != nil {
			return nil, swaperrors.WrapError(swaperrors.KindInsufficientRouteData, "abi pack", err)
		}
		return withSelector(selWeightedUseAll, packed), nil
	}

	packed, err := argsWeightedSingle.Pack(
		step.PoolAddress,
		step.InputToken.Address,
		step.OutputToken.Address,
		step.InputAmount,
		minOut,
	)
	if err != nil {
		return nil, swaperrors.WrapError(swaperrors.KindInsufficientRouteData, "abi pack", err)
	}
	return withSelector(selWeightedSingle, packed), nil
}

// EncodeBundlerCall packs the compiled call into the bundler entry point's
// calldata.
func EncodeBundlerCall(call *domain.CompiledCall) ([]byte, error) {
	wrapOps := make([]uint8, len(call.WrapOperations))
	for i, op := range call.WrapOperations {
		wrapOps[i] = uint8(op)
	}
	packed, err := argsBundler.Pack(
		call.FromToken,
		call.FromAmount,
		call.ToToken,
		call.EncoderTargets,
		call.EncoderCalldata,
		wrapOps,
	)
	if err != nil {
		return nil, swaperrors.WrapError(swaperrors.KindInsufficientRouteData, "bundler abi pack", err)
	}
	return withSelector(selBundlerExecute, packed), nil
}
