package http

import (
	"github.com/gin-gonic/gin"

	"github.com/halcyontrade/swap-engine/internal/adapters/persistence"
	"github.com/halcyontrade/swap-engine/internal/http/httputil"
)

// TradesHandler exposes the local trade history kept by the submitter.
type TradesHandler struct {
	store *persistence.Storage
}

func NewTradesHandler(store *persistence.Storage) *TradesHandler {
	return &TradesHandler{store: store}
}

func (h *TradesHandler) Root() string {
	return "trades"
}

func (h *TradesHandler) SetRoutes(pub, priv, admin *gin.RouterGroup) {
	pub.GET("", h.ListTrades)
	pub.GET("/:hash", h.GetTrade)
}

func (h *TradesHandler) ListTrades(c *gin.Context) {
	trades, err := h.store.ListTrades()
	if err != nil {
		httputil.InternalError(c, err.Error())
		return
	}
	httputil.Success(c, gin.H{"count": len(trades), "trades": trades})
}

func (h *TradesHandler) GetTrade(c *gin.Context) {
	summary, found, err := h.store.GetTrade(c.Param("hash"))
	if err != nil {
		httputil.InternalError(c, err.Error())
		return
	}
	if !found {
		httputil.NotFound(c, "no trade recorded for that hash")
		return
	}
	httputil.Success(c, summary)
}
