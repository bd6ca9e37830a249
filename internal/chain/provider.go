// Package chain wraps go-ethereum RPC access behind a process-wide handle
// that rotates over a list of endpoints on transport failure.
package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/metrics"
)

// Provider is a fallback-capable RPC handle. Reads are idempotent and retried
// on the next endpoint; writes go through once per call.
type Provider struct {
	mu        sync.Mutex
	endpoints []string
	current   int
	client    *ethclient.Client
	rawClient *rpc.Client
}

// NewProvider dials the first reachable endpoint of the list.
func NewProvider(ctx context.Context, endpoints []string) (*Provider, error) {
	if len(endpoints) == 0 {
		return nil, swaperrors.NewError(swaperrors.KindTransport, "no RPC endpoints configured")
	}
	p := &Provider{endpoints: endpoints}
	if err := p.dial(ctx, 0); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Provider) dial(ctx context.Context, idx int) error {
	raw, err := rpc.DialContext(ctx, p.endpoints[idx])
	if err != nil {
		return swaperrors.WrapError(swaperrors.KindTransport, "dial "+p.endpoints[idx], err)
	}
	if p.rawClient != nil {
		p.rawClient.Close()
	}
	p.rawClient = raw
	p.client = ethclient.NewClient(raw)
	p.current = idx
	log.Info().Str("endpoint", p.endpoints[idx]).Msg("[chain] provider connected")
	return nil
}

// rotate advances to the next endpoint. Called after a transport failure.
func (p *Provider) rotate(ctx context.Context) error {
	metrics.ProviderRotations.Inc()
	next := (p.current + 1) % len(p.endpoints)
	log.Warn().Str("from", p.endpoints[p.current]).Str("to", p.endpoints[next]).
		Msg("[chain] rotating RPC endpoint")
	return p.dial(ctx, next)
}

// Close releases the underlying client.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rawClient != nil {
		p.rawClient.Close()
	}
}

// withRetry runs an idempotent read, rotating endpoints once on failure.
func (p *Provider) withRetry(ctx context.Context, op func(*ethclient.Client) error) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	err := op(client)
	if err == nil || ctx.Err() != nil {
		return err
	}

	p.mu.Lock()
	if rerr := p.rotate(ctx); rerr != nil {
		p.mu.Unlock()
		return err
	}
	client = p.client
	p.mu.Unlock()

	return op(client)
}

// PendingNonce returns eth_getTransactionCount(addr, "pending").
func (p *Provider) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var out uint64
	err := p.withRetry(ctx, func(c *ethclient.Client) error {
		n, err := c.PendingNonceAt(ctx, addr)
		out = n
		return err
	})
	return out, err
}

// LatestNonce returns eth_getTransactionCount(addr, "latest").
func (p *Provider) LatestNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var out uint64
	err := p.withRetry(ctx, func(c *ethclient.Client) error {
		n, err := c.NonceAt(ctx, addr, nil)
		out = n
		return err
	})
	return out, err
}

// Balance returns eth_getBalance(addr, "latest").
func (p *Provider) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := p.withRetry(ctx, func(c *ethclient.Client) error {
		b, err := c.BalanceAt(ctx, addr, nil)
		out = b
		return err
	})
	return out, err
}

// CallContract performs an eth_call against the latest block.
func (p *Provider) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	var out []byte
	err := p.withRetry(ctx, func(c *ethclient.Client) error {
		res, err := c.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
		out = res
		return err
	})
	return out, err
}

// SendTransaction broadcasts a signed transaction. Not retried: the nonce
// manager owns recovery for writes.
func (p *Provider) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()
	return client.SendTransaction(ctx, tx)
}

// SuggestGasPrice returns the node's eth_gasPrice suggestion.
func (p *Provider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := p.withRetry(ctx, func(c *ethclient.Client) error {
		price, err := c.SuggestGasPrice(ctx)
		out = price
		return err
	})
	return out, err
}

// ChainID reports the connected chain id.
func (p *Provider) ChainID(ctx context.Context) (*big.Int, error) {
	var out *big.Int
	err := p.withRetry(ctx, func(c *ethclient.Client) error {
		id, err := c.ChainID(ctx)
		out = id
		return err
	})
	return out, err
}
