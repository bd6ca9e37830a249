// Package submitter owns the write path: per-address nonce management, gas
// overrides and transaction broadcast.
package submitter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/halcyontrade/swap-engine/internal/metrics"
)

const (
	// nonceStaleAfter forces a chain refresh when the local record has not
	// been touched for this long.
	nonceStaleAfter = 60 * time.Second

	// postTxDelay is the minimum gap after a broadcast before the next nonce
	// is handed out. One class of submission endpoint rejects faster resends.
	postTxDelay = 3000 * time.Millisecond

	// explicitNoncePreDelay throttles chained multi-step flows that supply
	// their own nonce.
	explicitNoncePreDelay = 900 * time.Millisecond

	cleanupInterval = 5 * time.Minute
	recordIdleEvict = 10 * time.Minute
)

// NonceReader is the chain-side dependency: both nonce views read in
// parallel on refresh.
type NonceReader interface {
	PendingNonce(ctx context.Context, addr common.Address) (uint64, error)
	LatestNonce(ctx context.Context, addr common.Address) (uint64, error)
}

type nonceRecord struct {
	localNonce uint64
	lastUsed   time.Time
	lastTx     time.Time
}

// NonceManager tracks one local nonce per sender. All methods are safe for
// concurrent use; per-address serialization happens under one manager lock
// since critical sections are short.
type NonceManager struct {
	mu      sync.Mutex
	records map[common.Address]*nonceRecord
	locks   map[common.Address]*sync.Mutex
	reader  NonceReader

	// now and sleep are swapped out by tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	stop chan struct{}
	once sync.Once
}

func NewNonceManager(reader NonceReader) *NonceManager {
	m := &NonceManager{
		records: make(map[common.Address]*nonceRecord),
		locks:   make(map[common.Address]*sync.Mutex),
		reader:  reader,
		now:     time.Now,
		sleep:   sleepCtx,
		stop:    make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh reads pending and latest nonces concurrently and re-seeds the
// record with max(pending, latest, previous local).
func (m *NonceManager) refresh(ctx context.Context, addr common.Address, rec *nonceRecord) error {
	var (
		wg               sync.WaitGroup
		pending, latest  uint64
		pendErr, lateErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		pending, pendErr = m.reader.PendingNonce(ctx, addr)
	}()
	go func() {
		defer wg.Done()
		latest, lateErr = m.reader.LatestNonce(ctx, addr)
	}()
	wg.Wait()

	if pendErr != nil {
		return pendErr
	}
	if lateErr != nil {
		return lateErr
	}

	next := rec.localNonce
	if pending > next {
		next = pending
	}
	if latest > next {
		next = latest
	}
	rec.localNonce = next
	rec.lastUsed = m.now()
	metrics.NonceRefreshes.Inc()
	return nil
}

// LockSender serializes one sender's acquire, broadcast, increment sequence.
// Without it two concurrent submissions from the same address read the same
// local nonce and one broadcast is rejected. Sender locks are never evicted;
// the sender set stays small.
func (m *NonceManager) LockSender(addr common.Address) (unlock func()) {
	m.mu.Lock()
	l, ok := m.locks[addr]
	if !ok {
		l = &sync.Mutex{}
		m.locks[addr] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// GetNonce returns the nonce for the next transaction from addr, refreshing
// from chain when the record is missing or stale, and honoring the post-tx
// delay window.
func (m *NonceManager) GetNonce(ctx context.Context, addr common.Address) (uint64, error) {
	m.mu.Lock()
	rec, ok := m.records[addr]
	if !ok {
		rec = &nonceRecord{}
		m.records[addr] = rec
		metrics.TrackedAccounts.Set(float64(len(m.records)))
	}

	stale := !ok || m.now().Sub(rec.lastUsed) > nonceStaleAfter
	var wait time.Duration
	if !rec.lastTx.IsZero() {
		if since := m.now().Sub(rec.lastTx); since < postTxDelay {
			wait = postTxDelay - since
		}
	}
	m.mu.Unlock()

	if stale {
		m.mu.Lock()
		err := m.refresh(ctx, addr, rec)
		m.mu.Unlock()
		if err != nil {
			return 0, err
		}
	}

	if wait > 0 {
		if err := m.sleep(ctx, wait); err != nil {
			return 0, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec.lastUsed = m.now()
	return rec.localNonce, nil
}

// IncrementNonce advances the local nonce after a successful broadcast.
func (m *NonceManager) IncrementNonce(addr common.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[addr]
	if !ok {
		return
	}
	rec.localNonce++
	now := m.now()
	rec.lastUsed = now
	rec.lastTx = now
}

// SyncNonce adopts an externally chosen nonce (chained multi-step flows).
func (m *NonceManager) SyncNonce(addr common.Address, nonce uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[addr]
	if !ok {
		rec = &nonceRecord{}
		m.records[addr] = rec
	}
	if nonce > rec.localNonce {
		rec.localNonce = nonce
	}
	rec.lastUsed = m.now()
}

// nonceConflict classifies provider rejections that mean the nonce was
// reused or outpaced.
func nonceConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "nonce") ||
		strings.Contains(msg, "replacement transaction") ||
		strings.Contains(msg, "-32000") ||
		strings.Contains(msg, "nonce_expired")
}

// pendingBlockReverted matches the MEV-protected endpoint's transient
// rejection, which needs an extra send delay rather than a refresh alone.
func pendingBlockReverted(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "pending block reverted")
}

// HandleTransactionError reacts to a failed broadcast: nonce conflicts force
// a chain refresh so the next GetNonce starts clean.
func (m *NonceManager) HandleTransactionError(ctx context.Context, addr common.Address, sendErr error) {
	if sendErr == nil {
		return
	}

	if pendingBlockReverted(sendErr) {
		m.mu.Lock()
		if rec, ok := m.records[addr]; ok {
			rec.lastTx = m.now()
		}
		m.mu.Unlock()
	}

	if !nonceConflict(sendErr) {
		return
	}
	metrics.NonceConflicts.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[addr]
	if !ok {
		return
	}
	if err := m.refresh(ctx, addr, rec); err != nil {
		log.Warn().Err(err).Str("address", addr.Hex()).
			Msg("[nonce] refresh after conflict failed")
	}
}

func (m *NonceManager) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanupStale()
		case <-m.stop:
			return
		}
	}
}

// cleanupStale evicts records idle longer than the eviction window.
func (m *NonceManager) cleanupStale() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-recordIdleEvict)
	for addr, rec := range m.records {
		if rec.lastUsed.Before(cutoff) {
			delete(m.records, addr)
		}
	}
	metrics.TrackedAccounts.Set(float64(len(m.records)))
}

// Close stops the background cleanup.
func (m *NonceManager) Close() {
	m.once.Do(func() { close(m.stop) })
}
