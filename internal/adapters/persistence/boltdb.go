// Package persistence is the trade-history sink: a local bbolt key-value
// store keyed by transaction hash.
package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"

	"github.com/halcyontrade/swap-engine/internal/domain"
)

const (
	TradesBucket = "trades"

	DefaultDBPath = "./data/swap-engine.db"
)

type Storage struct {
	db     *bolt.DB
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dbPath, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(TradesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create trades bucket: %w", err)
	}

	log.Info().Str("path", dbPath).Msg("[tradeStorage] opened database")
	return &Storage{db: db, dbPath: dbPath}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveTrade inserts a trade record under its transaction hash. Re-saving the
// same hash overwrites, which keeps the call idempotent for retried writes.
func (s *Storage) SaveTrade(summary domain.TradeSummary) error {
	if summary.TxHash == "" {
		return fmt.Errorf("trade summary has no tx hash")
	}
	data, err := sonic.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal trade: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(TradesBucket)).Put([]byte(summary.TxHash), data)
	})
}

// GetTrade looks up one trade by tx hash; ok=false when absent.
func (s *Storage) GetTrade(txHash string) (domain.TradeSummary, bool, error) {
	var (
		summary domain.TradeSummary
		found   bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		value := tx.Bucket([]byte(TradesBucket)).Get([]byte(txHash))
		if value == nil {
			return nil
		}
		found = true
		return sonic.Unmarshal(value, &summary)
	})
	if err != nil {
		return domain.TradeSummary{}, false, fmt.Errorf("failed to read trade %s: %w", txHash, err)
	}
	return summary, found, nil
}

// ListTrades returns every stored trade, newest first. Records that fail to
// decode are skipped, not fatal.
func (s *Storage) ListTrades() ([]domain.TradeSummary, error) {
	var trades []domain.TradeSummary
	skipped := 0

	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(TradesBucket)).ForEach(func(k, v []byte) error {
			var summary domain.TradeSummary
			if err := sonic.Unmarshal(v, &summary); err != nil {
				log.Warn().Str("txHash", string(k)).Err(err).
					Msg("[tradeStorage] failed to unmarshal trade, skipping")
				skipped++
				return nil
			}
			trades = append(trades, summary)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}

	sort.Slice(trades, func(i, j int) bool {
		return trades[i].SubmittedAt > trades[j].SubmittedAt
	})

	if skipped > 0 {
		log.Warn().Int("skipped", skipped).Int("loaded", len(trades)).
			Msg("[tradeStorage] trade listing completed with errors")
	}
	return trades, nil
}

// TradeCount reports the number of stored records.
func (s *Storage) TradeCount() (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket([]byte(TradesBucket)).Stats().KeyN
		return nil
	})
	return count, err
}
