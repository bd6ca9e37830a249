// Package sources contains one adapter per external quote source. Every
// adapter exposes the same contract: fetch pools for a pair, or produce a
// normalized Quote for an amount.
package sources

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
)

// QuoteRequest is the uniform input to every adapter.
type QuoteRequest struct {
	FromToken   domain.Token
	ToToken     domain.Token
	AmountIn    *big.Int
	UserAddress common.Address
	SlippageBps uint16
}

// Source is the uniform adapter contract. Quote returns (nil, nil) when the
// source has no answer after local recovery; hard errors are reserved for
// callers that asked for this source explicitly.
type Source interface {
	Protocol() domain.Protocol
	FetchPools(ctx context.Context, from, to domain.Token) ([]*domain.Pool, error)
	Quote(ctx context.Context, req QuoteRequest) (*domain.Quote, error)
}
