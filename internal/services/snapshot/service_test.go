package snapshot

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/arb-engine/internal/adapters/persistence"
	"github.com/hxuan190/arb-engine/internal/amm/cpmm"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/services/market"
)

var venue = market.Venue{ID: solana.NewWallet().PublicKey(), Name: "cp", CPFees: cpmm.DefaultFees()}

func newService(t *testing.T) *Service {
	reg, err := market.NewRegistry(venue)
	require.NoError(t, err)
	return New(reg)
}

func cpMarket(slot uint64, reserve uint64) *domain.Market {
	return &domain.Market{
		Address:         solana.NewWallet().PublicKey(),
		Venue:           venue.ID,
		Left:            domain.Pool{Mint: solana.NewWallet().PublicKey(), Amount: reserve},
		Right:           domain.Pool{Mint: solana.NewWallet().PublicKey(), Amount: reserve},
		Active:          true,
		LastUpdatedSlot: slot,
	}
}

func TestNewServiceHasEmptySnapshot(t *testing.T) {
	s := newService(t)
	snap := s.Current()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Edges)
	assert.Equal(t, uint64(1), snap.Version)
}

func TestRebuildKeepsReadyMarketsInAddressOrder(t *testing.T) {
	s := newService(t)
	markets := []*domain.Market{cpMarket(1, 100), cpMarket(1, 100), cpMarket(1, 100), cpMarket(1, 0)}
	applied, err := s.Upsert(markets...)
	require.NoError(t, err)
	assert.Equal(t, 4, applied)

	snap := s.Rebuild()
	assert.Equal(t, 4, snap.Total)
	require.Len(t, snap.Markets, 3, "the empty pool is not ready")
	assert.Len(t, snap.Edges, 6)
	for i := 1; i < len(snap.Markets); i++ {
		assert.Negative(t, bytes.Compare(snap.Markets[i-1].Address[:], snap.Markets[i].Address[:]))
	}
	assert.Equal(t, snap.Markets[0], snap.Edges[0].Market)
	assert.Equal(t, snap.Markets[0], snap.Edges[1].Market)
}

func TestOlderUpdatesAreIgnored(t *testing.T) {
	s := newService(t)
	m := cpMarket(10, 100)
	_, err := s.Upsert(m)
	require.NoError(t, err)

	stale := *m
	stale.LastUpdatedSlot = 9
	stale.Left.Amount = 1
	applied, err := s.Upsert(&stale)
	require.NoError(t, err)
	assert.Zero(t, applied)

	got, ok := s.Get(m.Address)
	require.True(t, ok)
	assert.Equal(t, uint64(100), got.Left.Amount)

	fresh := *m
	fresh.LastUpdatedSlot = 11
	fresh.Left.Amount = 5
	applied, err = s.Upsert(&fresh)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
}

func TestUpsertRejectsInvalidMarkets(t *testing.T) {
	s := newService(t)
	bad := cpMarket(1, 100)
	bad.Right.Mint = bad.Left.Mint
	_, err := s.Upsert(cpMarket(1, 100), bad)
	assert.ErrorIs(t, err, common.ErrInvalidAccountData)
	assert.Zero(t, s.markets.Len(), "a bad batch applies nothing")

	_, err = s.Upsert(nil)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	s := newService(t)
	m := cpMarket(1, 100)
	_, err := s.Upsert(m)
	require.NoError(t, err)

	assert.True(t, s.Remove(m.Address))
	assert.False(t, s.Remove(m.Address))
	assert.Empty(t, s.Rebuild().Markets)
}

func TestPublishedSnapshotIsStable(t *testing.T) {
	s := newService(t)
	_, err := s.Upsert(cpMarket(1, 100))
	require.NoError(t, err)
	before := s.Rebuild()

	_, err = s.Upsert(cpMarket(1, 100))
	require.NoError(t, err)
	assert.Len(t, before.Markets, 1)
	assert.Len(t, s.Rebuild().Markets, 2)
	assert.Greater(t, s.Current().Version, before.Version)
}

func TestUpsertStoresCopies(t *testing.T) {
	s := newService(t)
	m := cpMarket(1, 100)
	_, err := s.Upsert(m)
	require.NoError(t, err)
	snap := s.Rebuild()

	m.Left.Amount = 1
	m.Right.Amount = 0

	stored, ok := s.Get(m.Address)
	require.True(t, ok)
	assert.NotSame(t, m, stored)
	assert.Equal(t, uint64(100), stored.Left.Amount)
	assert.Equal(t, uint64(100), stored.Right.Amount)
	require.Len(t, snap.Markets, 1)
	assert.Equal(t, uint64(100), snap.Markets[0].Left.Amount)
	assert.Len(t, s.Rebuild().Markets, 1, "the emptied caller copy does not reach the table")
}

func TestFlushPersistsChanges(t *testing.T) {
	s := newService(t)
	storage, err := persistence.NewStorage(filepath.Join(t.TempDir(), "markets.db"))
	require.NoError(t, err)
	s.storage = storage

	kept, dropped := cpMarket(1, 100), cpMarket(1, 100)
	_, err = s.Upsert(kept, dropped)
	require.NoError(t, err)
	require.NoError(t, s.Flush())

	s.Remove(dropped.Address)
	require.NoError(t, s.Flush())

	loaded, err := storage.LoadAllMarkets()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, kept.Address, loaded[0].Address)
	require.NoError(t, storage.Close())
}
