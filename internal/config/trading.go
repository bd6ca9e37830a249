package config

import (
	"errors"
	"os"

	"github.com/ethereum/go-ethereum/common"
)

// TradingConfig binds the on-chain execution surface: the user's bundler
// contract, the two encoder contracts and the submission defaults.
type TradingConfig struct {
	BundlerAddress      common.Address
	ConcentratedEncoder common.Address
	WeightedEncoder     common.Address

	DefaultSlippageBps int
	GasLimit            int

	// DBPath is the bbolt file backing trade history.
	DBPath string

	// SignerPrivateKey is the hex key used to sign submissions. When empty
	// the engine runs quote-only.
	SignerPrivateKey string
}

func (c *TradingConfig) Load() error {
	c.BundlerAddress = common.HexToAddress(os.Getenv("BUNDLER_ADDRESS"))
	c.ConcentratedEncoder = common.HexToAddress(os.Getenv("CL_ENCODER_ADDRESS"))
	c.WeightedEncoder = common.HexToAddress(os.Getenv("WEIGHTED_ENCODER_ADDRESS"))
	c.DefaultSlippageBps = getEnvOrDefaultInt("DEFAULT_SLIPPAGE_BPS", 50)
	c.GasLimit = getEnvOrDefaultInt("GAS_LIMIT", 1_200_000)
	c.DBPath = getEnvOrDefault("TRADES_DB_PATH", "./data/swap-engine.db")
	c.SignerPrivateKey = os.Getenv("SIGNER_PRIVATE_KEY")
	return c.Validate()
}

func (c *TradingConfig) Validate() error {
	if c.BundlerAddress == (common.Address{}) {
		return errors.New("invalid trading config: BUNDLER_ADDRESS is required")
	}
	if c.DefaultSlippageBps < 0 || c.DefaultSlippageBps >= 10_000 {
		return errors.New("invalid trading config: DEFAULT_SLIPPAGE_BPS out of range")
	}
	return nil
}
