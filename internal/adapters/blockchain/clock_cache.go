package blockchain

import (
	"context"
	"errors"
	"sync"
	"time"

	pb "github.com/andrew-solarstorm/yellowstone-grpc-client-go/proto"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"
	"github.com/thehyperflames/yellowstone"

	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/domain"
)

const CLOCK_CACHE_SERVICE = "cache-clock-svc"

const clockMaxAge = 2 * time.Second

var ErrNoClock = errors.New("no clock reading available")

type cachedClock struct {
	clock     domain.Clock
	updatedAt time.Time
}

// epochSchedule maps slots to epochs from one getEpochInfo reading.
type epochSchedule struct {
	epoch        uint64
	firstSlot    uint64
	slotsInEpoch uint64
}

func (s epochSchedule) epochOf(slot uint64) uint64 {
	if s.slotsInEpoch == 0 {
		return slot / common.SlotsPerEpoch
	}
	if slot < s.firstSlot {
		back := (s.firstSlot - slot + s.slotsInEpoch - 1) / s.slotsInEpoch
		if back > s.epoch {
			return 0
		}
		return s.epoch - back
	}
	return s.epoch + (slot-s.firstSlot)/s.slotsInEpoch
}

// ClockCacheService keeps the latest slot and block time from the block
// meta stream, falling back to RPC when the stream goes quiet.
type ClockCacheService struct {
	container.BaseDIInstance

	mu        sync.RWMutex
	current   *cachedClock
	schedule  epochSchedule
	ySvc      *yellowstone.Service
	rpcClient *rpc.Client
	subID     string
}

func (svc *ClockCacheService) ID() string {
	return CLOCK_CACHE_SERVICE
}

func (svc *ClockCacheService) Configure(c container.IContainer) error {
	svc.ySvc = c.Instance(yellowstone.YELLOWSTONE_SERVICE).(*yellowstone.Service)
	rpcConfig := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)

	svc.rpcClient = rpc.New(rpcConfig.RPCUrl)
	return nil
}

func (svc *ClockCacheService) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.fetchEpochSchedule(ctx); err != nil {
		log.Warn().Err(err).Msg("[ClockCacheService] failed to fetch epoch info, deriving epochs from slot")
	}
	if _, err := svc.fetchClock(ctx); err != nil {
		log.Warn().Err(err).Msg("[ClockCacheService] failed to fetch initial clock, will retry on first request")
	}

	subID, err := svc.ySvc.SubscribeBlockMeta(svc.handleBlockMeta)
	if err != nil {
		log.Error().Err(err).Msg("[ClockCacheService] failed to subscribe to block meta")
		return err
	}
	svc.subID = subID
	log.Info().Str("subID", subID).Msg("[ClockCacheService] subscribed to block meta for clock updates")

	return nil
}

func (svc *ClockCacheService) Stop() error {
	if svc.subID != "" {
		return svc.ySvc.Unsubscribe(svc.subID)
	}
	return nil
}

func (svc *ClockCacheService) fetchEpochSchedule(ctx context.Context) error {
	info, err := svc.rpcClient.GetEpochInfo(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return err
	}

	svc.mu.Lock()
	svc.schedule = epochSchedule{
		epoch:        info.Epoch,
		firstSlot:    info.AbsoluteSlot - info.SlotIndex,
		slotsInEpoch: info.SlotsInEpoch,
	}
	svc.mu.Unlock()

	log.Info().
		Uint64("epoch", info.Epoch).
		Uint64("slot", info.AbsoluteSlot).
		Msg("[ClockCacheService] loaded epoch schedule")
	return nil
}

func (svc *ClockCacheService) fetchClock(ctx context.Context) (domain.Clock, error) {
	slot, err := svc.rpcClient.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return domain.Clock{}, err
	}
	blockTime, err := svc.rpcClient.GetBlockTime(ctx, slot)
	if err != nil {
		return domain.Clock{}, err
	}

	var ts int64
	if blockTime != nil {
		ts = int64(*blockTime)
	}
	return svc.store(slot, ts), nil
}

func (svc *ClockCacheService) store(slot uint64, ts int64) domain.Clock {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	// the stream may deliver slots out of order
	if svc.current != nil && svc.current.clock.Slot > slot {
		return svc.current.clock
	}
	clock := domain.Clock{Slot: slot, UnixTimestamp: ts, Epoch: svc.schedule.epochOf(slot)}
	svc.current = &cachedClock{clock: clock, updatedAt: time.Now()}
	return clock
}

func (svc *ClockCacheService) handleBlockMeta(update *pb.SubscribeUpdate) error {
	blockMeta := update.GetBlockMeta()
	if blockMeta == nil {
		return nil
	}

	slot := blockMeta.GetSlot()
	if slot == 0 {
		return nil
	}
	var ts int64
	if bt := blockMeta.GetBlockTime(); bt != nil {
		ts = bt.GetTimestamp()
	}
	svc.store(slot, ts)
	return nil
}

// Now returns the cached clock while it is fresh, otherwise asks RPC. A
// failed RPC call falls back to the stale reading if there is one.
func (svc *ClockCacheService) Now(ctx context.Context) (domain.Clock, error) {
	svc.mu.RLock()
	cached := svc.current
	svc.mu.RUnlock()

	if cached != nil && time.Since(cached.updatedAt) < clockMaxAge {
		return cached.clock, nil
	}
	if svc.rpcClient == nil {
		if cached != nil {
			return cached.clock, nil
		}
		return domain.Clock{}, ErrNoClock
	}

	clock, err := svc.fetchClock(ctx)
	if err != nil {
		if cached != nil {
			log.Warn().Err(err).Uint64("slot", cached.clock.Slot).Msg("[ClockCacheService] RPC clock failed, using stale reading")
			return cached.clock, nil
		}
		return domain.Clock{}, err
	}
	return clock, nil
}
