package persistence

import (
	"fmt"
	"os"
	"path/filepath"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/arb-engine/internal/domain"
)

const (
	MarketsBucket = "markets"

	DefaultDBPath = "./data/markets.db"
)

// Storage keeps the last known state of every market. Removed markets are
// written as tombstones and skipped on load.
type Storage struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func NewStorage(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Info().Str("path", dbPath).Msg("[marketStorage] opened database")

	return &Storage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Storage) SaveMarket(m *domain.Market) error {
	stored, err := MarketToStored(m)
	if err != nil {
		return err
	}
	data, err := sonic.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal market: %w", err)
	}
	return s.db.Set(MarketsBucket, []byte(stored.Address), data)
}

// SaveBatch writes markets and tombstones for removed addresses in one
// transaction.
func (s *Storage) SaveBatch(markets []*domain.Market, removed []string) error {
	if len(markets) == 0 && len(removed) == 0 {
		return nil
	}

	batch := s.db.NewBatch()
	add := func(key string, stored *StoredMarket) error {
		data, err := sonic.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to marshal market %s: %w", key, err)
		}
		value := data
		op := &boltdb.WriteOperation{
			Bucket: []byte(MarketsBucket),
			Key:    []byte(key),
			Value:  &value,
			Op:     boltdb.OpSet,
		}
		if err := batch.Add(op); err != nil {
			return fmt.Errorf("failed to add market %s to batch: %w", key, err)
		}
		return nil
	}

	for _, m := range markets {
		stored, err := MarketToStored(m)
		if err != nil {
			return err
		}
		if err := add(stored.Address, stored); err != nil {
			return err
		}
	}
	for _, address := range removed {
		if err := add(address, &StoredMarket{Address: address, Removed: true}); err != nil {
			return err
		}
	}

	if err := batch.Execute(); err != nil {
		log.Error().Err(err).Int("count", len(markets)).Int("removed", len(removed)).Msg("[marketStorage] FAILED to execute batch")
		return err
	}

	log.Debug().Int("count", len(markets)).Int("removed", len(removed)).Msg("[marketStorage] saved market batch")
	return nil
}

func (s *Storage) LoadAllMarkets() ([]*domain.Market, error) {
	data, err := s.db.List(MarketsBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}

	markets := make([]*domain.Market, 0, len(data))
	unmarshalFailed := 0
	conversionFailed := 0

	for address, value := range data {
		var stored StoredMarket
		if err := sonic.Unmarshal(value, &stored); err != nil {
			log.Error().Str("address", address).Err(err).Msg("[marketStorage] failed to unmarshal market, skipping")
			unmarshalFailed++
			continue
		}
		if stored.Removed {
			continue
		}

		m, err := StoredToMarket(&stored)
		if err != nil {
			log.Error().Str("address", address).Err(err).Msg("[marketStorage] failed to convert stored market, skipping")
			conversionFailed++
			continue
		}
		markets = append(markets, m)
	}

	if unmarshalFailed > 0 || conversionFailed > 0 {
		log.Error().
			Int("total_in_db", len(data)).
			Int("loaded", len(markets)).
			Int("unmarshal_failed", unmarshalFailed).
			Int("conversion_failed", conversionFailed).
			Msg("[marketStorage] market loading completed with errors")
	} else {
		log.Info().
			Int("total_in_db", len(data)).
			Int("loaded", len(markets)).
			Msg("[marketStorage] market loading completed successfully")
	}

	return markets, nil
}
