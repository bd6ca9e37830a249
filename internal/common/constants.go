// Package common contains common constants and variables used across services
package common

import "github.com/ethereum/go-ethereum/common"

var (
	// NativeToken is the zero-address sentinel for the chain's native currency.
	NativeToken = common.Address{}

	// WrappedNative is the canonical WETH address on mainnet.
	WrappedNative = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")

	// ZeroHooks is the only hooks address accepted on concentrated pools.
	ZeroHooks = common.Address{}

	// WeightedVault holds the balances of every weighted and stable pool.
	WeightedVault = common.HexToAddress("0xBA12222222228d8Ba445958a75a0704d566BF2C8")
)

const (
	// ChainID is fixed: the engine targets mainnet only.
	ChainID = 1

	// ChainName as reported by the provider layer.
	ChainName = "homestead"

	// SlippageDenominator for bps math.
	SlippageDenominator = 10000
)

// IsNative reports whether addr is the native-currency sentinel.
func IsNative(addr common.Address) bool {
	return addr == NativeToken
}

// IsWrappedNative reports whether addr is the wrapped-native token.
func IsWrappedNative(addr common.Address) bool {
	return addr == WrappedNative
}
