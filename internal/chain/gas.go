package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
)

// GasState carries the externally refreshed gas price and the reference
// prices used to express gas cost in output-token units. An oracle poller
// writes it; quote ranking reads it. All methods are safe for concurrent use.
type GasState struct {
	mu            sync.RWMutex
	gasPriceWei   *big.Int
	nativePriceE8 *big.Int
	tokenPricesE8 map[common.Address]*big.Int
}

func NewGasState() *GasState {
	return &GasState{
		gasPriceWei:   big.NewInt(0),
		nativePriceE8: big.NewInt(0),
		tokenPricesE8: make(map[common.Address]*big.Int),
	}
}

func (s *GasState) SetGasPrice(wei *big.Int) {
	s.mu.Lock()
	s.gasPriceWei = new(big.Int).Set(wei)
	s.mu.Unlock()
}

func (s *GasState) GasPriceWei() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.gasPriceWei)
}

// SetNativePrice records the native currency's USD price scaled by 1e8.
func (s *GasState) SetNativePrice(priceE8 *big.Int) {
	s.mu.Lock()
	s.nativePriceE8 = new(big.Int).Set(priceE8)
	s.mu.Unlock()
}

func (s *GasState) NativePriceE8() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return new(big.Int).Set(s.nativePriceE8)
}

// SetTokenPrice records a token's USD price scaled by 1e8.
func (s *GasState) SetTokenPrice(token common.Address, priceE8 *big.Int) {
	s.mu.Lock()
	s.tokenPricesE8[token] = new(big.Int).Set(priceE8)
	s.mu.Unlock()
}

// TokenPriceE8 returns the recorded price for token, ok=false when the
// oracle has not priced it.
func (s *GasState) TokenPriceE8(token common.Address) (*big.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.tokenPricesE8[token]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(p), true
}

// GasPriceSource is the single RPC read the watch loop needs.
type GasPriceSource interface {
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// WatchGasPrice refreshes the gas price from src every interval until ctx is
// cancelled. A failed poll keeps the last known value.
func (s *GasState) WatchGasPrice(ctx context.Context, src GasPriceSource, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		price, err := src.SuggestGasPrice(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("[chain] gas price poll failed")
		} else {
			s.SetGasPrice(price)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
