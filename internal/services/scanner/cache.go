package scanner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/metrics"
)

const (
	resultCacheTTL     = 300 * time.Millisecond
	resultCacheMaxSize = 1024
	resultCacheShards  = 16
)

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

type cacheEntry struct {
	key    uint64
	result *Result
	expiry int64
	used   uint32
}

type cacheShard struct {
	mu      sync.RWMutex
	entries []cacheEntry
	size    int
	hand    int
}

// ResultCache is a sharded clock cache of on-demand search results. Keys
// include the snapshot version and slot, so a new snapshot or clock never
// serves an older answer.
type ResultCache struct {
	shards   [resultCacheShards]cacheShard
	ttl      time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewResultCache(ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = resultCacheTTL
	}
	rc := &ResultCache{ttl: ttl, stopChan: make(chan struct{})}
	perShard := resultCacheMaxSize / resultCacheShards
	for i := range rc.shards {
		rc.shards[i].entries = make([]cacheEntry, perShard)
	}
	go rc.cleanupLoop()
	return rc
}

func (rc *ResultCache) Stop() {
	rc.stopOnce.Do(func() { close(rc.stopChan) })
}

func mix(h uint64, b byte) uint64 {
	h ^= uint64(b)
	return h * fnvPrime64
}

func mixU64(h, v uint64) uint64 {
	for i := 0; i < 8; i++ {
		h = mix(h, byte(v>>(i*8)))
	}
	return h
}

// requestKey hashes everything that determines a result.
func requestKey(req Request, version uint64, clock domain.Clock) uint64 {
	h := uint64(fnvOffset64)
	if req.StartToken != nil {
		for _, b := range req.StartToken {
			h = mix(h, b)
		}
	} else {
		h = mix(h, 0xff)
	}
	h = mixU64(h, req.StartAmount)
	if req.MinProfit != nil {
		for _, b := range req.MinProfit.Bytes() {
			h = mix(h, b)
		}
		h = mix(h, byte(req.MinProfit.Sign()+1))
	}
	h = mix(h, byte(req.Strategy))
	h = mixU64(h, version)
	h = mixU64(h, clock.Slot)
	h = mixU64(h, uint64(clock.UnixTimestamp))
	return h
}

func (rc *ResultCache) shard(key uint64) *cacheShard {
	return &rc.shards[key%resultCacheShards]
}

func (rc *ResultCache) Get(key uint64) *Result {
	now := time.Now().UnixNano()
	s := rc.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < s.size; i++ {
		e := &s.entries[i]
		if e.key == key && now <= e.expiry {
			atomic.StoreUint32(&e.used, 1)
			return e.result
		}
	}
	return nil
}

func (rc *ResultCache) Set(key uint64, result *Result) {
	expiry := time.Now().Add(rc.ttl).UnixNano()
	s := rc.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.size; i++ {
		e := &s.entries[i]
		if e.key == key {
			e.result, e.expiry = result, expiry
			atomic.StoreUint32(&e.used, 1)
			return
		}
	}

	n := len(s.entries)
	if s.size < n {
		s.entries[s.size] = cacheEntry{key: key, result: result, expiry: expiry, used: 1}
		s.size++
		return
	}

	// second-chance eviction
	now := time.Now().UnixNano()
	for attempts := 0; attempts < n*2; attempts++ {
		e := &s.entries[s.hand]
		s.hand = (s.hand + 1) % n
		if atomic.LoadUint32(&e.used) == 0 || now > e.expiry {
			*e = cacheEntry{key: key, result: result, expiry: expiry, used: 1}
			return
		}
		atomic.StoreUint32(&e.used, 0)
	}
	s.entries[s.hand] = cacheEntry{key: key, result: result, expiry: expiry, used: 1}
	s.hand = (s.hand + 1) % n
}

func (rc *ResultCache) evictExpired() {
	now := time.Now().UnixNano()
	for i := range rc.shards {
		s := &rc.shards[i]
		s.mu.Lock()
		for j := 0; j < s.size; j++ {
			if now > s.entries[j].expiry {
				atomic.StoreUint32(&s.entries[j].used, 0)
			}
		}
		s.mu.Unlock()
	}
}

func (rc *ResultCache) Size() int {
	total := 0
	for i := range rc.shards {
		s := &rc.shards[i]
		s.mu.RLock()
		total += s.size
		s.mu.RUnlock()
	}
	return total
}

func (rc *ResultCache) cleanupLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-rc.stopChan:
			return
		case <-ticker.C:
			rc.evictExpired()
			metrics.OpportunityCacheSize.Set(float64(rc.Size()))
		}
	}
}
