package http

import (
	gohttp "net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/http/httputil"
	"github.com/halcyontrade/swap-engine/internal/services/compiler"
	"github.com/halcyontrade/swap-engine/internal/services/submitter"
)

type SwapHandler struct {
	quotes    *QuoteHandler
	compiler  *compiler.Compiler
	submitter *submitter.Submitter
	gasLimit  uint64
}

func NewSwapHandler(quotes *QuoteHandler, comp *compiler.Compiler, sub *submitter.Submitter, gasLimit uint64) *SwapHandler {
	return &SwapHandler{quotes: quotes, compiler: comp, submitter: sub, gasLimit: gasLimit}
}

func (h *SwapHandler) Root() string {
	return "swap"
}

func (h *SwapHandler) SetRoutes(pub, priv, admin *gin.RouterGroup) {
	priv.POST("", h.ExecuteSwap)
	priv.POST("/plan", h.CompilePlan)
}

type planResponse struct {
	Plan *domain.ExecutionPlan `json:"plan"`
	Call *domain.CompiledCall  `json:"call"`
}

func (h *SwapHandler) compileBest(c *gin.Context) (*planResponse, compiler.TradeContext, *domain.RankedQuote, bool) {
	req, ok := h.quotes.parseQuoteRequest(c)
	if !ok {
		return nil, compiler.TradeContext{}, nil, false
	}

	best, err := h.quotes.aggregator.BestQuote(c.Request.Context(), req)
	if err != nil {
		httputil.InternalError(c, err.Error())
		return nil, compiler.TradeContext{}, nil, false
	}
	if best == nil {
		httputil.NotFound(c, "no source produced a quote")
		return nil, compiler.TradeContext{}, nil, false
	}

	trade := compiler.TradeContext{
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		AmountIn:    req.AmountIn,
		SlippageBps: req.SlippageBps,
	}
	plan, call, err := h.compiler.Compile(best.Quote, trade)
	if err != nil {
		// Compiler errors are fatal for the trade, no retry.
		log.Error().Err(err).Str("protocol", string(best.Quote.Protocol)).
			Msg("[http] plan compilation failed")
		httputil.Error(c, gohttp.StatusUnprocessableEntity, err.Error())
		return nil, compiler.TradeContext{}, nil, false
	}
	return &planResponse{Plan: plan, Call: call}, trade, best, true
}

// CompilePlan returns the compiled plan without broadcasting, for preview.
func (h *SwapHandler) CompilePlan(c *gin.Context) {
	resp, _, _, ok := h.compileBest(c)
	if !ok {
		return
	}
	httputil.Success(c, resp)
}

// ExecuteSwap runs the full pipeline: best quote, plan compilation,
// submission. The submission outcome is a structured value either way.
func (h *SwapHandler) ExecuteSwap(c *gin.Context) {
	sender := common.HexToAddress(c.GetHeader("X-Wallet-Address"))
	if sender == (common.Address{}) {
		httputil.BadRequest(c, "X-Wallet-Address header is required")
		return
	}

	resp, trade, best, ok := h.compileBest(c)
	if !ok {
		return
	}

	result := h.submitter.Submit(c.Request.Context(), submitter.SubmitRequest{
		From:     sender,
		Call:     resp.Call,
		GasLimit: h.gasLimit,
		Summary: domain.TradeSummary{
			FromToken:   trade.FromToken,
			ToToken:     trade.ToToken,
			AmountIn:    trade.AmountIn.String(),
			ExpectedOut: best.Quote.OutputAmount.String(),
			Protocol:    best.Quote.Protocol,
			SlippageBps: trade.SlippageBps,
		},
	})
	httputil.Success(c, result)
}
