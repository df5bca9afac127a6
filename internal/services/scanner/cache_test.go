package scanner

import (
	"math/big"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"

	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/services/arbitrage"
)

func TestRequestKeyDistinguishesInputs(t *testing.T) {
	mint := solana.NewWallet().PublicKey()
	clock := domain.Clock{Slot: 1}
	base := Request{StartToken: &mint, StartAmount: 100, MinProfit: big.NewInt(5)}

	variants := []Request{
		{StartAmount: 100, MinProfit: big.NewInt(5)},
		{StartToken: &mint, StartAmount: 101, MinProfit: big.NewInt(5)},
		{StartToken: &mint, StartAmount: 100, MinProfit: big.NewInt(-5)},
		{StartToken: &mint, StartAmount: 100, MinProfit: big.NewInt(5), Strategy: arbitrage.StrategyBoth},
	}
	k := requestKey(base, 1, clock)
	assert.Equal(t, k, requestKey(base, 1, clock))
	for _, v := range variants {
		assert.NotEqual(t, k, requestKey(v, 1, clock))
	}
	assert.NotEqual(t, k, requestKey(base, 2, clock))
	assert.NotEqual(t, k, requestKey(base, 1, domain.Clock{Slot: 2}))
}

func TestResultCacheExpires(t *testing.T) {
	rc := NewResultCache(20 * time.Millisecond)
	defer rc.Stop()

	res := &Result{SnapshotVersion: 3}
	rc.Set(42, res)
	assert.Same(t, res, rc.Get(42))
	assert.Nil(t, rc.Get(43))

	time.Sleep(40 * time.Millisecond)
	assert.Nil(t, rc.Get(42))
}

func TestResultCacheEvictsWhenFull(t *testing.T) {
	rc := NewResultCache(time.Minute)
	defer rc.Stop()

	for k := uint64(0); k < resultCacheMaxSize*2; k++ {
		rc.Set(k, &Result{SnapshotVersion: k})
	}
	assert.Equal(t, resultCacheMaxSize, rc.Size())

	last := uint64(resultCacheMaxSize*2 - 1)
	got := rc.Get(last)
	if assert.NotNil(t, got) {
		assert.Equal(t, last, got.SnapshotVersion)
	}
}
