package domain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Token is a chain asset. The zero address denotes the native currency.
type Token struct {
	Address  common.Address `json:"address"`
	Symbol   string         `json:"symbol"`
	Decimals uint8          `json:"decimals"`
}

// Key returns the canonical lowercase-hex comparison key for the token.
func (t Token) Key() string {
	return strings.ToLower(t.Address.Hex())
}

// IsNative reports whether the token is the native-currency sentinel.
func (t Token) IsNative() bool {
	return t.Address == (common.Address{})
}

// Equal compares tokens by address, case-insensitively.
func (t Token) Equal(other Token) bool {
	return t.Address == other.Address
}

// OneUnit returns 10^decimals as a big.Int.
func (t Token) OneUnit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(t.Decimals)), nil)
}

// TokenRegistry resolves tokens by address key. Populated at startup, read-only after.
type TokenRegistry map[common.Address]Token

// Lookup returns the registered token for addr, or a bare token carrying only
// the address when unknown.
func (r TokenRegistry) Lookup(addr common.Address) Token {
	if t, ok := r[addr]; ok {
		return t
	}
	return Token{Address: addr, Decimals: 18}
}
