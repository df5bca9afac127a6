package blockchain

import (
	"context"
	"testing"
	"time"

	pb "github.com/andrew-solarstorm/yellowstone-grpc-client-go/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockMeta(slot uint64, ts int64) *pb.SubscribeUpdate {
	return &pb.SubscribeUpdate{
		UpdateOneof: &pb.SubscribeUpdate_BlockMeta{
			BlockMeta: &pb.SubscribeUpdateBlockMeta{
				Slot:      slot,
				BlockTime: &pb.UnixTimestamp{Timestamp: ts},
			},
		},
	}
}

func TestEpochSchedule(t *testing.T) {
	s := epochSchedule{epoch: 800, firstSlot: 345_600_000, slotsInEpoch: 432_000}
	assert.Equal(t, uint64(800), s.epochOf(345_600_000))
	assert.Equal(t, uint64(800), s.epochOf(346_031_999))
	assert.Equal(t, uint64(801), s.epochOf(346_032_000))
	assert.Equal(t, uint64(799), s.epochOf(345_599_999))

	assert.Equal(t, uint64(2), epochSchedule{}.epochOf(900_000))
}

func TestBlockMetaUpdatesClock(t *testing.T) {
	svc := &ClockCacheService{schedule: epochSchedule{epoch: 10, firstSlot: 4_320_000, slotsInEpoch: 432_000}}

	require.NoError(t, svc.handleBlockMeta(blockMeta(4_320_005, 1_700_000_000)))
	clock, err := svc.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4_320_005), clock.Slot)
	assert.Equal(t, int64(1_700_000_000), clock.UnixTimestamp)
	assert.Equal(t, uint64(10), clock.Epoch)

	// older slots never move the clock back
	require.NoError(t, svc.handleBlockMeta(blockMeta(4_320_001, 1_699_999_999)))
	clock, err = svc.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(4_320_005), clock.Slot)

	// non block-meta updates are ignored
	require.NoError(t, svc.handleBlockMeta(&pb.SubscribeUpdate{}))
}

func TestStaleClockWithoutRPC(t *testing.T) {
	svc := &ClockCacheService{}
	_, err := svc.Now(context.Background())
	assert.ErrorIs(t, err, ErrNoClock)

	svc.store(42, 7)
	svc.current.updatedAt = time.Now().Add(-time.Minute)
	clock, err := svc.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), clock.Slot)
}
