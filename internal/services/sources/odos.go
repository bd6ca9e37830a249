package sources

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
)

const (
	// odosMinInterval is the vendor's global per-key rate limit.
	odosMinInterval = 1100 * time.Millisecond

	// odosFeeBps is the vendor's protocol fee, deducted from the reported
	// output before the quote is returned.
	odosFeeBps = 15 // 0.15%
)

// OdosSource quotes through the first aggregator vendor's HTTP API.
type OdosSource struct {
	endpoint   string
	httpClient *http.Client
	gate       *rateGate
}

func NewOdosSource(endpoint string) *OdosSource {
	return &OdosSource{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		gate:       newRateGate(odosMinInterval),
	}
}

func (s *OdosSource) Protocol() domain.Protocol {
	return domain.ProtocolOdos
}

// FetchPools is not supported by aggregator vendors; they quote end-to-end.
func (s *OdosSource) FetchPools(ctx context.Context, from, to domain.Token) ([]*domain.Pool, error) {
	return nil, nil
}

type odosInputToken struct {
	TokenAddress string `json:"tokenAddress"`
	Amount       string `json:"amount"`
}

type odosOutputToken struct {
	TokenAddress string  `json:"tokenAddress"`
	Proportion   float64 `json:"proportion"`
}

type odosQuoteBody struct {
	ChainID              int               `json:"chainId"`
	InputTokens          []odosInputToken  `json:"inputTokens"`
	OutputTokens         []odosOutputToken `json:"outputTokens"`
	SlippageLimitPercent float64           `json:"slippageLimitPercent"`
	UserAddr             string            `json:"userAddr"`
	ReferralCode         int               `json:"referralCode"`
	DisableRFQs          bool              `json:"disableRFQs"`
	Compact              bool              `json:"compact"`
}

type odosQuoteResponse struct {
	OutAmounts []string `json:"outAmounts"`
	GasEstimate float64 `json:"gasEstimate"`
	PathID     string   `json:"pathId"`
}

// Quote posts the standardized quote body and normalizes the response,
// deducting the vendor's fixed fee from the reported output.
func (s *OdosSource) Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	if err := s.gate.wait(ctx); err != nil {
		return nil, swapcommon.WrapError(swapcommon.KindTimeout, "odos rate gate", err)
	}

	body := odosQuoteBody{
		ChainID: swapcommon.ChainID,
		InputTokens: []odosInputToken{{
			TokenAddress: req.FromToken.Address.Hex(),
			Amount:       req.AmountIn.String(),
		}},
		OutputTokens: []odosOutputToken{{
			TokenAddress: req.ToToken.Address.Hex(),
			Proportion:   1,
		}},
		SlippageLimitPercent: float64(req.SlippageBps) / 100,
		UserAddr:             req.UserAddress.Hex(),
		DisableRFQs:          true,
		Compact:              true,
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return nil, err
	}

	var raw []byte
	err = withBackoff(ctx, "odos", func() (int, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
		if err != nil {
			return 0, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(httpReq)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return resp.StatusCode, nil
		}
		raw, err = io.ReadAll(resp.Body)
		return resp.StatusCode, err
	})
	if err != nil {
		return nil, err
	}

	var parsed odosQuoteResponse
	if err := sonic.Unmarshal(raw, &parsed); err != nil {
		return nil, swapcommon.WrapError(swapcommon.KindTransport, "odos response", err)
	}
	if len(parsed.OutAmounts) == 0 {
		return nil, swapcommon.NewError(swapcommon.KindTransport, "odos: empty outAmounts")
	}
	outAmount, ok := new(big.Int).SetString(parsed.OutAmounts[0], 10)
	if !ok {
		return nil, swapcommon.NewError(swapcommon.KindTransport, "odos: bad outAmount")
	}

	// Deduct the vendor's protocol fee before reporting.
	fee := new(big.Int).Mul(outAmount, big.NewInt(odosFeeBps))
	fee.Div(fee, big.NewInt(swapcommon.SlippageDenominator))
	outAmount.Sub(outAmount, fee)

	log.Debug().Str("pathId", parsed.PathID).Str("out", outAmount.String()).
		Msg("[odos] quote")

	return &domain.Quote{
		Protocol:     domain.ProtocolOdos,
		OutputAmount: outAmount,
		GasEstimate:  uint64(parsed.GasEstimate),
		TradeData:    map[string]any{"pathId": parsed.PathID},
		Raw:          raw,
	}, nil
}
