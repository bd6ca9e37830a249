package http

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/halcyontrade/swap-engine/internal/chain"
	"github.com/halcyontrade/swap-engine/internal/http/httputil"
)

// PricesHandler feeds the reference prices used for gas-cost normalization.
// Prices arrive from the embedding application, not from an on-chain oracle.
type PricesHandler struct {
	gas *chain.GasState
}

func NewPricesHandler(gas *chain.GasState) *PricesHandler {
	return &PricesHandler{gas: gas}
}

func (h *PricesHandler) Root() string {
	return "prices"
}

func (h *PricesHandler) SetRoutes(pub, priv, admin *gin.RouterGroup) {
	admin.GET("", h.GetPrices)
	admin.POST("", h.SetPrices)
}

type priceUpdate struct {
	// NativePriceE8 is the native currency's USD price scaled by 1e8.
	NativePriceE8 string `json:"nativePriceE8"`
	// TokenPricesE8 maps token address to USD price scaled by 1e8.
	TokenPricesE8 map[string]string `json:"tokenPricesE8"`
}

func (h *PricesHandler) GetPrices(c *gin.Context) {
	httputil.Success(c, gin.H{
		"gasPriceWei":   h.gas.GasPriceWei().String(),
		"nativePriceE8": h.gas.NativePriceE8().String(),
	})
}

func (h *PricesHandler) SetPrices(c *gin.Context) {
	var body priceUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.BadRequest(c, "invalid JSON body: "+err.Error())
		return
	}

	if body.NativePriceE8 != "" {
		price, ok := new(big.Int).SetString(body.NativePriceE8, 10)
		if !ok || price.Sign() < 0 {
			httputil.BadRequest(c, "nativePriceE8 must be a non-negative integer string")
			return
		}
		h.gas.SetNativePrice(price)
	}

	for addr, raw := range body.TokenPricesE8 {
		price, ok := new(big.Int).SetString(raw, 10)
		if !ok || price.Sign() < 0 {
			httputil.BadRequest(c, "token price for "+addr+" must be a non-negative integer string")
			return
		}
		h.gas.SetTokenPrice(common.HexToAddress(addr), price)
	}

	httputil.Success(c, gin.H{"updated": true})
}
