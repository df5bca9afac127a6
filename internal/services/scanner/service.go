package scanner

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/arb-engine/internal/adapters/blockchain"
	"github.com/hxuan190/arb-engine/internal/adapters/publisher"
	"github.com/hxuan190/arb-engine/internal/adapters/simulation"
	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/services"
	"github.com/hxuan190/arb-engine/internal/services/arbitrage"
	"github.com/hxuan190/arb-engine/internal/services/executor"
	"github.com/hxuan190/arb-engine/internal/services/market"
	"github.com/hxuan190/arb-engine/internal/services/snapshot"
)

const SCANNER_SERVICE = "scanner.Service"

// Service runs a scan every ScanInterval until stopped.
type Service struct {
	container.BaseDIInstance

	scanner  *Scanner
	interval time.Duration
	logger   *services.ServiceLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func (svc *Service) ID() string {
	return SCANNER_SERVICE
}

func (svc *Service) Configure(c container.IContainer) error {
	arbConf := c.GetConfig(config.ARBITRAGE_CONFIG_KEY).(*config.ArbitrageConfig)
	rpcConf := c.GetConfig(config.RPC_CONFIG_KEY).(*config.RPCConfig)
	registry := c.Instance(market.MARKET_REGISTRY).(*market.Registry)
	snapshots := c.Instance(snapshot.SNAPSHOT_SERVICE).(*snapshot.Service)
	clock := c.Instance(blockchain.CLOCK_CACHE_SERVICE).(*blockchain.ClockCacheService)
	pub := c.Instance(publisher.OPPORTUNITY_PUBLISHER).(*publisher.RedisPublisher)

	strategy, err := arbitrage.ParseStrategy(arbConf.Strategy)
	if err != nil {
		return err
	}

	opts := Options{
		StartTokens: arbConf.StartTokens,
		StartAmount: arbConf.StartAmount,
		MinProfit:   big.NewInt(arbConf.MinProfit),
		Strategy:    strategy,
		MaxEdges:    arbConf.MaxEdges,
	}
	if arbConf.AutoExecute {
		if rpcConf.Payer.IsZero() {
			log.Warn().Msg("[scanner] ARB_AUTO_EXECUTE set without PAYER_ADDRESS, execution disabled")
		} else {
			registry.SetSwapper(rpcConf.Payer)
			opts.Execution = &executor.Collaborators{
				Payer:       rpcConf.Payer,
				Invoker:     simulation.NewInvoker(registry, clock),
				Balances:    blockchain.NewBalanceReader(rpcConf.RPCUrl),
				Clock:       clock,
				SlippageBps: arbConf.SlippageBps,
				Fees:        blockchain.NewPriorityFeeSampler(rpcConf.RPCUrl),
				Urgency:     executor.UrgencyHigh,
			}
		}
	}

	svc.logger = services.NewServiceLogger(svc).With("strategy", opts.Strategy.String())
	svc.scanner = NewScanner(registry, snapshots, clock, pub, opts)
	svc.interval = arbConf.ScanInterval
	return nil
}

func (svc *Service) Scanner() *Scanner {
	return svc.scanner
}

func (svc *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	svc.wg.Add(1)
	go svc.loop(ctx)

	svc.logger.Info().
		Dur("interval", svc.interval).
		Int("startTokens", len(svc.scanner.opts.StartTokens)).
		Bool("execute", svc.scanner.opts.Execution != nil).
		Msg("[scanner] started")
	return nil
}

func (svc *Service) Stop() error {
	if svc.cancel != nil {
		svc.cancel()
	}
	svc.wg.Wait()
	if svc.scanner != nil {
		svc.scanner.Close()
	}
	return nil
}

func (svc *Service) loop(ctx context.Context) {
	defer svc.wg.Done()
	ticker := time.NewTicker(svc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scanCtx, cancel := context.WithTimeout(ctx, svc.interval*4)
			started := time.Now()
			opps, err := svc.scanner.Scan(scanCtx)
			cancel()
			if err != nil {
				if ctx.Err() == nil {
					svc.logger.Error().Err(err).Msg("[scanner] scan failed")
				}
				continue
			}
			svc.logger.Debug().Int("found", len(opps)).Dur("elapsed", time.Since(started)).Msg("[scanner] scan done")
		}
	}
}
