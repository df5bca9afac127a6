// Package snapshot owns the live market table and publishes immutable,
// deterministically ordered edge snapshots for scans to read without locks.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/arb-engine/internal/adapters/persistence"
	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/metrics"
	"github.com/hxuan190/arb-engine/internal/services/market"
)

const SNAPSHOT_SERVICE = "snapshot.Service"

const refreshInterval = 100 * time.Millisecond

// ReadyChecker decides which markets become edges.
type ReadyChecker interface {
	IsMarketReady(m *domain.Market) bool
}

// Snapshot is immutable once published.
type Snapshot struct {
	Version uint64
	BuiltAt time.Time
	// Markets holds the ready markets ordered by address.
	Markets []*domain.Market
	Edges   []domain.Edge
	Total   int
}

type Service struct {
	container.BaseDIInstance

	conf    *config.SnapshotConfig
	ready   ReadyChecker
	storage *persistence.Storage

	markets  *ShardedMarketMap
	snapshot atomic.Pointer[Snapshot]
	version  atomic.Uint64
	dirty    atomic.Bool
	rebuild  sync.Mutex

	// addresses changed since the last flush
	pendingMu      sync.Mutex
	pendingSaved   map[solana.PublicKey]struct{}
	pendingRemoved map[solana.PublicKey]struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(ready ReadyChecker) *Service {
	s := &Service{}
	s.init(ready)
	return s
}

func (s *Service) init(ready ReadyChecker) {
	s.ready = ready
	s.markets = NewShardedMarketMap()
	s.pendingSaved = make(map[solana.PublicKey]struct{})
	s.pendingRemoved = make(map[solana.PublicKey]struct{})
	s.stop = make(chan struct{})
	s.Rebuild()
}

func (s *Service) ID() string {
	return SNAPSHOT_SERVICE
}

func (s *Service) Configure(c container.IContainer) error {
	s.conf = c.GetConfig(config.SNAPSHOT_CONFIG_KEY).(*config.SnapshotConfig)
	registry := c.Instance(market.MARKET_REGISTRY).(*market.Registry)
	s.init(registry)
	return nil
}

func (s *Service) Start() error {
	if s.conf != nil && s.conf.PersistenceEnabled {
		storage, err := persistence.NewStorage(s.conf.DBPath)
		if err != nil {
			return err
		}
		s.storage = storage

		stored, err := storage.LoadAllMarkets()
		if err != nil {
			return err
		}
		s.load(stored)
	}

	if s.conf != nil && s.conf.SeedFile != "" {
		seeded, err := persistence.LoadSeedFile(s.conf.SeedFile)
		if err != nil {
			return fmt.Errorf("load seed file %s: %w", s.conf.SeedFile, err)
		}
		applied, err := s.Upsert(seeded...)
		if err != nil {
			return err
		}
		log.Info().Str("file", s.conf.SeedFile).Int("markets", applied).Msg("[snapshot] seeded markets")
	}

	snap := s.Rebuild()
	log.Info().Int("markets", snap.Total).Int("ready", len(snap.Markets)).Int("edges", len(snap.Edges)).Msg("[snapshot] initial snapshot built")

	s.wg.Add(1)
	go s.refresher()
	if s.storage != nil {
		s.wg.Add(1)
		go s.flusher(time.Duration(max(s.conf.PersistInterval, 1)) * time.Second)
	}
	return nil
}

func (s *Service) Stop() error {
	close(s.stop)
	s.wg.Wait()
	if s.storage == nil {
		return nil
	}
	flushErr := s.Flush()
	return errors.Join(flushErr, s.storage.Close())
}

// load fills the table from storage without scheduling a write back.
func (s *Service) load(markets []*domain.Market) {
	for _, m := range markets {
		s.markets.SetIfNewer(m)
	}
	s.dirty.Store(true)
}

// Upsert validates and stores copies of markets, so callers may keep
// mutating what they passed in. An update carrying an older slot than the
// stored market is ignored. It returns how many markets were applied.
func (s *Service) Upsert(markets ...*domain.Market) (int, error) {
	for _, m := range markets {
		if m == nil {
			return 0, errors.New("nil market")
		}
		if err := m.Validate(); err != nil {
			return 0, fmt.Errorf("market %s: %w", m.Address, err)
		}
	}

	applied := 0
	s.pendingMu.Lock()
	for _, m := range markets {
		if !s.markets.SetIfNewer(m.Clone()) {
			continue
		}
		applied++
		s.pendingSaved[m.Address] = struct{}{}
		delete(s.pendingRemoved, m.Address)
	}
	s.pendingMu.Unlock()

	if applied > 0 {
		metrics.MarketUpdates.WithLabelValues("upsert").Add(float64(applied))
		s.dirty.Store(true)
	}
	return applied, nil
}

func (s *Service) Remove(address solana.PublicKey) bool {
	if !s.markets.Delete(address) {
		return false
	}
	s.pendingMu.Lock()
	delete(s.pendingSaved, address)
	s.pendingRemoved[address] = struct{}{}
	s.pendingMu.Unlock()

	metrics.MarketUpdates.WithLabelValues("remove").Inc()
	s.dirty.Store(true)
	return true
}

// Get returns the stored market. Published snapshots share it, so callers
// must not mutate it.
func (s *Service) Get(address solana.PublicKey) (*domain.Market, bool) {
	return s.markets.Get(address)
}

// Current returns the latest published snapshot.
func (s *Service) Current() *Snapshot {
	return s.snapshot.Load()
}

// Rebuild publishes a fresh snapshot from the market table.
func (s *Service) Rebuild() *Snapshot {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()
	s.dirty.Store(false)

	all := s.markets.GetAll()
	ready := make([]*domain.Market, 0, len(all))
	for _, m := range all {
		if s.ready == nil || s.ready.IsMarketReady(m) {
			ready = append(ready, m)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		return bytes.Compare(ready[i].Address[:], ready[j].Address[:]) < 0
	})

	snap := &Snapshot{
		Version: s.version.Add(1),
		BuiltAt: time.Now(),
		Markets: ready,
		Edges:   domain.EdgesOf(ready),
		Total:   len(all),
	}
	s.snapshot.Store(snap)

	metrics.SnapshotRebuilds.Inc()
	metrics.MarketCount.Set(float64(snap.Total))
	metrics.ReadyMarketCount.Set(float64(len(ready)))
	metrics.EdgeCount.Set(float64(len(snap.Edges)))
	return snap
}

func (s *Service) refresher() {
	defer s.wg.Done()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if s.dirty.Load() {
				s.Rebuild()
			}
		}
	}
}

func (s *Service) flusher(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				log.Error().Err(err).Msg("[snapshot] failed to persist markets")
			}
		}
	}
}

// Flush writes markets changed since the last flush.
func (s *Service) Flush() error {
	if s.storage == nil {
		return nil
	}

	s.pendingMu.Lock()
	saved, removed := s.pendingSaved, s.pendingRemoved
	s.pendingSaved = make(map[solana.PublicKey]struct{})
	s.pendingRemoved = make(map[solana.PublicKey]struct{})
	s.pendingMu.Unlock()

	markets := make([]*domain.Market, 0, len(saved))
	for addr := range saved {
		if m, ok := s.markets.Get(addr); ok {
			markets = append(markets, m)
		}
	}
	tombstones := make([]string, 0, len(removed))
	for addr := range removed {
		tombstones = append(tombstones, addr.String())
	}

	if err := s.storage.SaveBatch(markets, tombstones); err != nil {
		metrics.SnapshotFlushes.WithLabelValues("error").Inc()
		s.requeue(saved, removed)
		return err
	}
	metrics.SnapshotFlushes.WithLabelValues("ok").Inc()
	return nil
}

// requeue puts back changes a failed flush did not write, unless they were
// superseded meanwhile.
func (s *Service) requeue(saved, removed map[solana.PublicKey]struct{}) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for addr := range saved {
		if _, gone := s.pendingRemoved[addr]; !gone {
			s.pendingSaved[addr] = struct{}{}
		}
	}
	for addr := range removed {
		if _, back := s.pendingSaved[addr]; !back {
			s.pendingRemoved[addr] = struct{}{}
		}
	}
}
