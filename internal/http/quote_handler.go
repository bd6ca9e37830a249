package http

import (
	"math/big"
	gohttp "net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/http/httputil"
	"github.com/halcyontrade/swap-engine/internal/metrics"
	"github.com/halcyontrade/swap-engine/internal/services/aggregator"
	"github.com/halcyontrade/swap-engine/internal/services/router"
	"github.com/halcyontrade/swap-engine/internal/services/sources"
)

type QuoteHandler struct {
	aggregator *aggregator.Aggregator
	registry   domain.TokenRegistry
	slippage   uint16
}

func NewQuoteHandler(agg *aggregator.Aggregator, registry domain.TokenRegistry, defaultSlippageBps uint16) *QuoteHandler {
	return &QuoteHandler{aggregator: agg, registry: registry, slippage: defaultSlippageBps}
}

func (h *QuoteHandler) Root() string {
	return "quote"
}

func (h *QuoteHandler) SetRoutes(pub, priv, admin *gin.RouterGroup) {
	pub.POST("", h.GetQuote)
}

type quoteRequest struct {
	FromToken   string `json:"fromToken" binding:"required"`
	ToToken     string `json:"toToken" binding:"required"`
	AmountIn    string `json:"amountIn" binding:"required"`
	UserAddress string `json:"userAddress"`
	SlippageBps uint16 `json:"slippageBps"`
}

type quoteResponse struct {
	Protocol       domain.Protocol `json:"protocol"`
	OutputAmount   string          `json:"outputAmount"`
	GasEstimate    uint64          `json:"gasEstimate"`
	GasCostOutUnit string          `json:"gasCostOutUnit"`
	NetOutput      string          `json:"netOutput"`
	Route          *domain.Route   `json:"route,omitempty"`
	Split          *domain.SplitRoute `json:"split,omitempty"`

	PriceImpactBps    uint16                `json:"priceImpactBps"`
	ImpactSeverity    router.ImpactSeverity `json:"impactSeverity"`
	PriceImpactNotice string                `json:"priceImpactNotice,omitempty"`
}

// parseQuoteRequest validates the JSON body into a source request. Zero or
// malformed amounts are rejected before any I/O happens.
func (h *QuoteHandler) parseQuoteRequest(c *gin.Context) (sources.QuoteRequest, bool) {
	var body quoteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return sources.QuoteRequest{}, false
	}

	amount, ok := new(big.Int).SetString(body.AmountIn, 10)
	if !ok || amount.Sign() <= 0 {
		httputil.BadRequest(c, "amountIn must be a positive decimal integer")
		return sources.QuoteRequest{}, false
	}

	slippage := body.SlippageBps
	if slippage == 0 {
		slippage = h.slippage
	}

	return sources.QuoteRequest{
		FromToken:   h.registry.Lookup(common.HexToAddress(body.FromToken)),
		ToToken:     h.registry.Lookup(common.HexToAddress(body.ToToken)),
		AmountIn:    amount,
		UserAddress: common.HexToAddress(body.UserAddress),
		SlippageBps: slippage,
	}, true
}

// GetQuote fans the request out to the allowed sources and returns the best
// net-of-gas quote, or 404 when every source came back empty.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	req, ok := h.parseQuoteRequest(c)
	if !ok {
		return
	}

	best, err := h.aggregator.BestQuote(c.Request.Context(), req)
	if err != nil {
		log.Error().Err(err).
			Str("from", req.FromToken.Address.Hex()).
			Str("to", req.ToToken.Address.Hex()).
			Msg("[http] quote failed")
		if swaperrors.IsKind(err, swaperrors.KindTimeout) {
			httputil.Error(c, gohttp.StatusGatewayTimeout, err.Error())
			return
		}
		httputil.InternalError(c, err.Error())
		return
	}
	if best == nil {
		httputil.NotFound(c, "no source produced a quote")
		return
	}

	impact := router.QuoteImpactBps(best.Quote)
	metrics.PriceImpact.Observe(float64(impact))

	httputil.Success(c, quoteResponse{
		Protocol:       best.Quote.Protocol,
		OutputAmount:   best.Quote.OutputAmount.String(),
		GasEstimate:    best.Quote.GasEstimate,
		GasCostOutUnit: best.GasCostOutUnit.String(),
		NetOutput:      best.NetOutput.String(),
		Route:          best.Quote.Route,
		Split:          best.Quote.Split,

		PriceImpactBps:    impact,
		ImpactSeverity:    router.SeverityFor(impact),
		PriceImpactNotice: router.ImpactWarning(impact),
	})
}
