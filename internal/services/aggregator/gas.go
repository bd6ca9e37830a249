package aggregator

import (
	"math/big"

	"github.com/halcyontrade/swap-engine/internal/services/numeric"
)

// GasCostInOutputUnits converts a gas estimate into output-token smallest
// units:
//
//	cost = gasEstimate * gasPriceWei * nativePriceE8 * 10^outDecimals
//	       / (1e18 * outPriceE8)
//
// All intermediate products stay in big.Int so nothing rounds until the
// final division. Returns zero when any price input is missing.
func GasCostInOutputUnits(gasEstimate uint64, gasPriceWei, nativePriceE8, outPriceE8 *big.Int, outDecimals uint8) *big.Int {
	if gasPriceWei == nil || nativePriceE8 == nil || outPriceE8 == nil ||
		gasPriceWei.Sign() <= 0 || nativePriceE8.Sign() <= 0 || outPriceE8.Sign() <= 0 {
		return big.NewInt(0)
	}

	num := new(big.Int).SetUint64(gasEstimate)
	num.Mul(num, gasPriceWei)
	num.Mul(num, nativePriceE8)
	num.Mul(num, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(outDecimals)), nil))

	den := new(big.Int).Mul(numeric.OneE18, outPriceE8)
	return num.Div(num, den)
}
