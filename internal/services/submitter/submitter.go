package submitter

import (
	"context"
	"math"
	"math/big"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/halcyontrade/swap-engine/internal/chain"
	swapcommon "github.com/halcyontrade/swap-engine/internal/common"
	"github.com/halcyontrade/swap-engine/internal/domain"
	"github.com/halcyontrade/swap-engine/internal/metrics"
	"github.com/halcyontrade/swap-engine/internal/services/compiler"
)

const (
	// balanceFloorWei is the hard minimum native balance to attempt a send.
	balanceFloorWei = 5e14

	// balanceWarnWei triggers a low-balance warning in the result.
	balanceWarnWei = 1e16

	defaultGasLimit = 1_200_000
)

// Backend is the chain-side surface the submitter depends on.
type Backend interface {
	NonceReader
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxSigner signs on behalf of the external key store.
type TxSigner interface {
	SignTx(ctx context.Context, from common.Address, tx *types.Transaction) (*types.Transaction, error)
}

// TradeStore is the history sink's insert primitive.
type TradeStore interface {
	SaveTrade(summary domain.TradeSummary) error
}

// SubmitRequest is one compiled trade ready for broadcast.
type SubmitRequest struct {
	From     common.Address
	Call     *domain.CompiledCall
	GasLimit uint64

	// ExplicitNonce overrides the manager for chained multi-step flows.
	ExplicitNonce *uint64

	Summary domain.TradeSummary
}

// Submitter broadcasts compiled trades with gas overrides derived from the
// shared gas state.
type Submitter struct {
	backend Backend
	signer  TxSigner
	nonces  *NonceManager
	gas     *chain.GasState
	store   TradeStore
	bundler common.Address
	chainID *big.Int

	sleep func(ctx context.Context, d time.Duration) error
}

func New(backend Backend, signer TxSigner, nonces *NonceManager, gas *chain.GasState, store TradeStore, bundler common.Address) *Submitter {
	return &Submitter{
		backend: backend,
		signer:  signer,
		nonces:  nonces,
		gas:     gas,
		store:   store,
		bundler: bundler,
		chainID: big.NewInt(swapcommon.ChainID),
		sleep:   sleepCtx,
	}
}

// gasOverrides derives the fee fields from the shared gas price:
// maxFee = gasPrice * 1.85, maxPriority = jitter(0.01..0.06) + gasPrice/40
// gwei rounded to 3 decimals.
func (s *Submitter) gasOverrides() (maxFee, maxPriority *big.Int) {
	gasPrice := s.gas.GasPriceWei()

	maxFee = new(big.Int).Mul(gasPrice, big.NewInt(185))
	maxFee.Div(maxFee, big.NewInt(100))

	gwei := new(big.Float).Quo(new(big.Float).SetInt(gasPrice), big.NewFloat(1e9))
	g, _ := gwei.Float64()
	priorityGwei := 0.01 + rand.Float64()*0.05 + g/40
	priorityGwei = math.Round(priorityGwei*1000) / 1000

	maxPriority = new(big.Int).SetInt64(int64(priorityGwei * 1e9))
	if maxPriority.Cmp(maxFee) > 0 {
		maxPriority = new(big.Int).Set(maxFee)
	}
	return maxFee, maxPriority
}

func failure(err error, warnings []string) *domain.SubmitResult {
	return &domain.SubmitResult{Success: false, Error: err.Error(), Warnings: warnings}
}

// Submit validates balance, acquires a nonce, composes the bundler
// transaction and broadcasts it. Submissions from the same sender run one
// at a time. Failures come back as a structured result,
// never a panic; the one automatic recovery is the nonce refresh performed
// by HandleTransactionError for the next attempt.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) *domain.SubmitResult {
	began := time.Now()
	defer func() {
		metrics.SubmissionDuration.Observe(time.Since(began).Seconds())
	}()

	var warnings []string

	balance, err := s.backend.Balance(ctx, req.From)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return failure(swapcommon.WrapError(swapcommon.KindTransport, "balance check", err), nil)
	}
	if balance.Cmp(big.NewInt(balanceFloorWei)) < 0 {
		metrics.Submissions.WithLabelValues("rejected").Inc()
		return failure(swapcommon.NewError(swapcommon.KindInsufficientNativeBalance,
			"native balance below submission floor"), nil)
	}
	if balance.Cmp(big.NewInt(balanceWarnWei)) < 0 {
		warnings = append(warnings, "native balance low, trade may fail on gas")
	}

	// One in-flight broadcast per sender: the lock spans nonce acquisition
	// through increment so a second request never sees a stale local nonce.
	unlock := s.nonces.LockSender(req.From)
	defer unlock()

	var nonce uint64
	if req.ExplicitNonce != nil {
		if err := s.sleep(ctx, explicitNoncePreDelay); err != nil {
			metrics.Submissions.WithLabelValues("error").Inc()
			return failure(swapcommon.WrapError(swapcommon.KindTimeout, "pre-send delay", err), warnings)
		}
		nonce = *req.ExplicitNonce
		s.nonces.SyncNonce(req.From, nonce)
	} else {
		nonce, err = s.nonces.GetNonce(ctx, req.From)
		if err != nil {
			metrics.Submissions.WithLabelValues("error").Inc()
			return failure(err, warnings)
		}
	}

	data, err := compiler.EncodeBundlerCall(req.Call)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return failure(err, warnings)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit = defaultGasLimit
	}
	maxFee, maxPriority := s.gasOverrides()

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainID,
		Nonce:     nonce,
		To:        &s.bundler,
		Value:     req.Call.Value(),
		Gas:       gasLimit,
		GasFeeCap: maxFee,
		GasTipCap: maxPriority,
		Data:      data,
	})

	signed, err := s.signer.SignTx(ctx, req.From, tx)
	if err != nil {
		metrics.Submissions.WithLabelValues("error").Inc()
		return failure(swapcommon.WrapError(swapcommon.KindTransport, "sign", err), warnings)
	}

	if err := s.backend.SendTransaction(ctx, signed); err != nil {
		s.nonces.HandleTransactionError(ctx, req.From, err)
		metrics.Submissions.WithLabelValues("failed").Inc()
		if nonceConflict(err) {
			return failure(swapcommon.WrapError(swapcommon.KindNonceConflict, "broadcast", err), warnings)
		}
		return failure(swapcommon.WrapError(swapcommon.KindTransport, "broadcast", err), warnings)
	}

	s.nonces.IncrementNonce(req.From)
	txHash := signed.Hash().Hex()

	summary := req.Summary
	summary.TxHash = txHash
	summary.SubmittedAt = time.Now().Unix()
	if s.store != nil {
		if err := s.store.SaveTrade(summary); err != nil {
			log.Warn().Err(err).Str("txHash", txHash).
				Msg("[submitter] trade record not persisted")
			warnings = append(warnings, "trade history not persisted")
		}
	}

	metrics.Submissions.WithLabelValues("ok").Inc()
	log.Info().Str("txHash", txHash).Uint64("nonce", nonce).
		Str("value", req.Call.Value().String()).
		Msg("[submitter] transaction broadcast")
	return &domain.SubmitResult{Success: true, TxHash: txHash, Warnings: warnings}
}
