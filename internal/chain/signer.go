package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	swaperrors "github.com/halcyontrade/swap-engine/internal/common"
)

// KeySigner signs transactions with a locally held private key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewKeySigner parses a hex-encoded private key. A 0x prefix is accepted.
func NewKeySigner(hexKey string, chainID *big.Int) (*KeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, swaperrors.WrapError(swaperrors.KindInvalidSigner, "parse signer key", err)
	}
	return &KeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
	}, nil
}

// Address returns the account the key controls.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignTx signs tx for from. Signing for any other account is refused.
func (s *KeySigner) SignTx(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error) {
	if from != s.address {
		return nil, swaperrors.NewError(swaperrors.KindInvalidSigner, "signer does not hold the key for "+from.Hex())
	}
	return types.SignTx(tx, s.signer, s.key)
}
