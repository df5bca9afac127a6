package snapshot

import (
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/domain"
)

const numShards = 16

// ShardedMarketMap is the mutable market table, sharded by address to keep
// stream writers from contending.
type ShardedMarketMap struct {
	shards [numShards]marketShard
}

type marketShard struct {
	mu      sync.RWMutex
	markets map[solana.PublicKey]*domain.Market
}

func NewShardedMarketMap() *ShardedMarketMap {
	m := &ShardedMarketMap{}
	for i := 0; i < numShards; i++ {
		m.shards[i].markets = make(map[solana.PublicKey]*domain.Market)
	}
	return m
}

func (m *ShardedMarketMap) getShard(key solana.PublicKey) *marketShard {
	return &m.shards[key[0]%numShards]
}

func (m *ShardedMarketMap) Get(key solana.PublicKey) (*domain.Market, bool) {
	shard := m.getShard(key)
	shard.mu.RLock()
	market, ok := shard.markets[key]
	shard.mu.RUnlock()
	return market, ok
}

// SetIfNewer stores market unless the table already holds a later slot for
// the same address.
func (m *ShardedMarketMap) SetIfNewer(market *domain.Market) bool {
	shard := m.getShard(market.Address)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if old, ok := shard.markets[market.Address]; ok && old.LastUpdatedSlot > market.LastUpdatedSlot {
		return false
	}
	shard.markets[market.Address] = market
	return true
}

func (m *ShardedMarketMap) Delete(key solana.PublicKey) bool {
	shard := m.getShard(key)
	shard.mu.Lock()
	_, ok := shard.markets[key]
	delete(shard.markets, key)
	shard.mu.Unlock()
	return ok
}

func (m *ShardedMarketMap) Len() int {
	total := 0
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		total += len(m.shards[i].markets)
		m.shards[i].mu.RUnlock()
	}
	return total
}

// GetAll returns every market, in no particular order.
func (m *ShardedMarketMap) GetAll() []*domain.Market {
	result := make([]*domain.Market, 0, m.Len())
	for i := 0; i < numShards; i++ {
		m.shards[i].mu.RLock()
		for _, market := range m.shards[i].markets {
			result = append(result, market)
		}
		m.shards[i].mu.RUnlock()
	}
	return result
}
