// Package scanner runs cycle searches against the live snapshot, on a timer
// and on demand, and hands what it finds to subscribers.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/metrics"
	"github.com/hxuan190/arb-engine/internal/services/arbitrage"
	"github.com/hxuan190/arb-engine/internal/services/executor"
	"github.com/hxuan190/arb-engine/internal/services/market"
	"github.com/hxuan190/arb-engine/internal/services/snapshot"
)

const recentLimit = 100

type SnapshotSource interface {
	Current() *snapshot.Snapshot
}

type Publisher interface {
	Publish(ctx context.Context, opp *domain.Opportunity) error
}

// Options are the defaults every scan runs with.
type Options struct {
	// StartTokens are searched concurrently, one search each. Empty
	// searches from every token in a single pass.
	StartTokens []domain.TokenID
	StartAmount uint64
	MinProfit   *big.Int
	Strategy    arbitrage.Strategy
	MaxEdges    int
	// Execution enables dry-run execution of the best opportunity of each
	// scan. Nil leaves opportunities unexecuted.
	Execution *executor.Collaborators
}

// Request is an on-demand search. Zero fields take the scanner's defaults.
type Request struct {
	StartToken  *domain.TokenID
	StartAmount uint64
	MinProfit   *big.Int
	Strategy    arbitrage.Strategy
}

// Result of an on-demand search. Path is nil when nothing clears the floor.
type Result struct {
	Path            *domain.ArbitragePath `json:"path"`
	Stats           arbitrage.Stats       `json:"stats"`
	Clock           domain.Clock          `json:"clock"`
	SnapshotVersion uint64                `json:"snapshotVersion"`
	Cached          bool                  `json:"cached"`
}

type Scanner struct {
	registry  *market.Registry
	snapshots SnapshotSource
	clock     executor.ClockSource
	publisher Publisher
	cache     *ResultCache
	opts      Options

	mu     sync.RWMutex
	recent []*domain.Opportunity
}

func NewScanner(registry *market.Registry, snapshots SnapshotSource, clock executor.ClockSource, publisher Publisher, opts Options) *Scanner {
	if opts.MinProfit == nil {
		opts.MinProfit = new(big.Int).SetUint64(common.DefaultMinProfit)
	}
	return &Scanner{
		registry:  registry,
		snapshots: snapshots,
		clock:     clock,
		publisher: publisher,
		cache:     NewResultCache(resultCacheTTL),
		opts:      opts,
	}
}

func (s *Scanner) Close() {
	s.cache.Stop()
}

func (s *Scanner) withDefaults(req Request) Request {
	if req.StartAmount == 0 {
		req.StartAmount = s.opts.StartAmount
	}
	if req.MinProfit == nil {
		req.MinProfit = s.opts.MinProfit
	}
	if req.Strategy == arbitrage.StrategyAuto {
		req.Strategy = s.opts.Strategy
	}
	return req
}

func (s *Scanner) search(q arbitrage.Quoter, edges []domain.Edge, req Request) (*domain.ArbitragePath, arbitrage.Stats, error) {
	started := time.Now()
	path, stats, err := arbitrage.CheckArbitrage(q, edges, arbitrage.Params{
		StartAmount: req.StartAmount,
		StartToken:  req.StartToken,
		MinProfit:   req.MinProfit,
		Strategy:    req.Strategy,
		MaxEdges:    s.opts.MaxEdges,
	})

	result := "found"
	if err != nil {
		result = common.ErrorKind(err)
	}
	strategy := stats.Strategy.String()
	metrics.Scans.WithLabelValues(strategy, result).Inc()
	metrics.ScanDuration.WithLabelValues(strategy).Observe(time.Since(started).Seconds())
	metrics.ScanQuotes.Observe(float64(stats.Quotes))
	metrics.ScanMemoHits.Add(float64(stats.MemoHits))
	metrics.RecoverableQuoteFailures.Add(float64(stats.RecoverableFailures))
	if path != nil {
		profit, _ := new(big.Float).SetInt(path.Profit).Float64()
		metrics.OpportunityProfit.WithLabelValues(fmt.Sprint(len(path.Edges))).Observe(profit)
	}
	return path, stats, err
}

// Check runs one search against the current snapshot. Identical requests
// within the same snapshot version and slot are answered from cache.
func (s *Scanner) Check(ctx context.Context, req Request) (*Result, error) {
	req = s.withDefaults(req)
	snap := s.snapshots.Current()
	if snap == nil {
		return nil, fmt.Errorf("no snapshot published")
	}
	clock, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	key := requestKey(req, snap.Version, clock)
	if cached := s.cache.Get(key); cached != nil {
		metrics.OpportunityCacheHits.Inc()
		r := *cached
		r.Cached = true
		return &r, nil
	}
	metrics.OpportunityCacheMisses.Inc()

	path, stats, err := s.search(s.registry.Bind(clock), snap.Edges, req)
	if err != nil && !errors.Is(err, common.ErrNoProfitFound) {
		return nil, err
	}
	res := &Result{Path: path, Stats: stats, Clock: clock, SnapshotVersion: snap.Version}
	s.cache.Set(key, res)
	return res, nil
}

// Scan searches every configured start token concurrently against one
// snapshot and one clock reading, publishes what it finds and returns the
// opportunities ordered by profit, highest first.
func (s *Scanner) Scan(ctx context.Context) ([]*domain.Opportunity, error) {
	snap := s.snapshots.Current()
	if snap == nil || len(snap.Edges) == 0 {
		return nil, nil
	}
	clock, err := s.clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	q := s.registry.Bind(clock)
	scanID := uuid.NewString()
	detected := time.Now()

	roots := make([]*domain.TokenID, 0, max(len(s.opts.StartTokens), 1))
	for i := range s.opts.StartTokens {
		roots = append(roots, &s.opts.StartTokens[i])
	}
	if len(roots) == 0 {
		roots = append(roots, nil)
	}

	found := make([]*domain.Opportunity, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, root := range roots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			req := s.withDefaults(Request{StartToken: root})
			path, stats, err := s.search(q, snap.Edges, req)
			if errors.Is(err, common.ErrNoProfitFound) {
				return nil
			}
			if err != nil {
				if root != nil {
					return fmt.Errorf("search from %s: %w", root, err)
				}
				return err
			}
			found[i] = &domain.Opportunity{
				ID:         uuid.NewString(),
				ScanID:     scanID,
				DetectedAt: detected,
				Clock:      clock,
				Strategy:   stats.Strategy.String(),
				Tokens:     path.Tokens(),
				Path:       path,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	opps := found[:0]
	for _, o := range found {
		if o != nil {
			opps = append(opps, o)
		}
	}
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Path.Profit.Cmp(opps[j].Path.Profit) > 0
	})

	for _, o := range opps {
		log.Info().
			Str("scan", scanID).
			Str("id", o.ID).
			Str("strategy", o.Strategy).
			Int("hops", len(o.Path.Edges)).
			Str("profit", o.Path.Profit.String()).
			Uint64("slot", clock.Slot).
			Msg("[scanner] opportunity found")
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, o); err != nil {
				metrics.PublishFailures.Inc()
				log.Warn().Err(err).Str("id", o.ID).Msg("[scanner] publish failed")
			}
		}
	}
	s.remember(opps)

	if len(opps) > 0 && s.opts.Execution != nil {
		s.execute(ctx, opps[0])
	}
	return opps, nil
}

func (s *Scanner) execute(ctx context.Context, opp *domain.Opportunity) {
	started := time.Now()
	report, err := executor.Execute(ctx, opp.Path, s.registry, *s.opts.Execution)
	metrics.ExecutionDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		metrics.Executions.WithLabelValues(common.ErrorKind(err)).Inc()
		log.Warn().Err(err).Str("id", opp.ID).Msg("[scanner] execution aborted")
		return
	}
	metrics.Executions.WithLabelValues("success").Inc()
	profit, _ := new(big.Float).SetInt(report.Profit).Float64()
	metrics.RealisedProfit.Observe(profit)
	log.Info().
		Str("id", opp.ID).
		Str("report", report.ID).
		Uint64("final", report.FinalAmount).
		Str("profit", report.Profit.String()).
		Uint64("priorityFee", report.Budget.PriorityFee).
		Dur("elapsed", report.Elapsed).
		Msg("[scanner] execution finished")
}

func (s *Scanner) remember(opps []*domain.Opportunity) {
	if len(opps) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, opps...)
	if over := len(s.recent) - recentLimit; over > 0 {
		s.recent = append(s.recent[:0:0], s.recent[over:]...)
	}
}

// Recent returns up to limit of the latest opportunities, newest first.
func (s *Scanner) Recent(limit int) []*domain.Opportunity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.recent) {
		limit = len(s.recent)
	}
	out := make([]*domain.Opportunity, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.recent[i])
	}
	return out
}
