// Package arbitrage searches a market snapshot for profitable two- and
// three-hop cycles.
//
// The search is single-threaded and does no I/O: every quote goes through
// the caller's Quoter, which is expected to be bound to one clock reading.
// Given the same edges in the same order it returns the same path.
package arbitrage

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

type Strategy uint8

const (
	// StrategyAuto runs cross search with two or fewer tokens, triangular
	// otherwise.
	StrategyAuto Strategy = iota
	StrategyCross
	StrategyTriangular
	StrategyBoth
)

func (s Strategy) String() string {
	switch s {
	case StrategyAuto:
		return "auto"
	case StrategyCross:
		return "cross"
	case StrategyTriangular:
		return "triangular"
	case StrategyBoth:
		return "both"
	default:
		return "UNKNOWN"
	}
}

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return StrategyAuto, nil
	case "cross":
		return StrategyCross, nil
	case "triangular":
		return StrategyTriangular, nil
	case "both":
		return StrategyBoth, nil
	}
	return 0, fmt.Errorf("unknown strategy %q", s)
}

// Params of one search.
type Params struct {
	StartAmount uint64
	// StartToken restricts the roots to one mint. Nil searches from every
	// token with outgoing edges.
	StartToken *domain.TokenID
	// MinProfit defaults to common.DefaultMinProfit.
	MinProfit *big.Int
	Strategy  Strategy
	// MaxEdges defaults to common.DefaultMaxEdges.
	MaxEdges int
}

// Stats describes the work one search did.
type Stats struct {
	Edges               int
	UniqueTokens        int
	Roots               int
	Strategy            Strategy
	Quotes              int
	MemoHits            int
	RecoverableFailures int
	Candidates          int
}

type candidate struct {
	edges [3]int
	hops  int
	final uint64
}

type search struct {
	edges     []domain.Edge
	idx       *edgeIndex
	memo      *quoteMemo
	start     uint64
	minProfit uint256.Int
	stats     *Stats

	best       candidate
	bestProfit uint256.Int
	found      bool
}

// CheckArbitrage selects a strategy, enumerates cycles and returns the most
// profitable one that clears the minimum profit. Recoverable quote errors
// drop the edge attempt; any other error aborts the search.
func CheckArbitrage(q Quoter, edges []domain.Edge, p Params) (*domain.ArbitragePath, Stats, error) {
	stats := Stats{Edges: len(edges)}

	maxEdges := p.MaxEdges
	if maxEdges <= 0 {
		maxEdges = common.DefaultMaxEdges
	}
	if len(edges) > maxEdges {
		return nil, stats, fmt.Errorf("%w: %d edges, limit %d", common.ErrInputTooLarge, len(edges), maxEdges)
	}

	minProfit, err := signedU256(p.MinProfit)
	if err != nil {
		return nil, stats, err
	}

	idx, err := buildIndex(edges)
	if err != nil {
		return nil, stats, err
	}
	stats.UniqueTokens = idx.tokens.Size()

	s := &search{
		edges:     edges,
		idx:       idx,
		memo:      newQuoteMemo(q, edges, &stats),
		start:     p.StartAmount,
		minProfit: minProfit,
		stats:     &stats,
	}

	var roots []tokenID
	if p.StartToken != nil {
		if root, ok := idx.tokens.GetID(*p.StartToken); ok {
			roots = []tokenID{root}
		}
	} else {
		roots = idx.roots()
	}
	stats.Roots = len(roots)

	strategy := p.Strategy
	if strategy == StrategyAuto {
		strategy = StrategyTriangular
		if stats.UniqueTokens <= 2 {
			strategy = StrategyCross
		}
	}
	stats.Strategy = strategy

	if strategy == StrategyCross || strategy == StrategyBoth {
		if err := s.cross(roots); err != nil {
			return nil, stats, err
		}
	}
	if strategy == StrategyTriangular || strategy == StrategyBoth {
		if err := s.triangular(roots); err != nil {
			return nil, stats, err
		}
	}

	if !s.found {
		return nil, stats, common.ErrNoProfitFound
	}
	return s.path(), stats, nil
}

func (s *search) cross(roots []tokenID) error {
	for _, r := range roots {
		for _, i1 := range s.idx.outgoing(r) {
			b := s.idx.out[i1]
			amountB, ok, err := s.memo.quote(i1, s.start)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for _, i2 := range s.idx.pair[pairKey{b, r}] {
				if s.edges[i2].Venue.Equals(s.edges[i1].Venue) {
					continue
				}
				final, ok, err := s.memo.quote(i2, amountB)
				if err != nil {
					return err
				}
				if ok {
					s.consider(candidate{edges: [3]int{i1, i2}, hops: 2, final: final})
				}
			}
		}
	}
	return nil
}

func (s *search) triangular(roots []tokenID) error {
	for _, r := range roots {
		for _, i1 := range s.idx.outgoing(r) {
			b := s.idx.out[i1]
			amountB, ok, err := s.memo.quote(i1, s.start)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			for _, i2 := range s.idx.outgoing(b) {
				c := s.idx.out[i2]
				if c == r {
					continue
				}
				amountC, ok, err := s.memo.quote(i2, amountB)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				for _, i3 := range s.idx.pair[pairKey{c, r}] {
					final, ok, err := s.memo.quote(i3, amountC)
					if err != nil {
						return err
					}
					if ok {
						s.consider(candidate{edges: [3]int{i1, i2, i3}, hops: 3, final: final})
					}
				}
			}
		}
	}
	return nil
}

// consider keeps c if it clears the floor and strictly beats the incumbent.
func (s *search) consider(c candidate) {
	s.stats.Candidates++

	var final, start, profit uint256.Int
	final.SetUint64(c.final)
	start.SetUint64(s.start)
	profit.Sub(&final, &start)

	if profit.Slt(&s.minProfit) {
		return
	}
	if s.found && !profit.Sgt(&s.bestProfit) {
		return
	}
	s.best, s.bestProfit, s.found = c, profit, true
}

func (s *search) path() *domain.ArbitragePath {
	edges := make([]domain.Edge, s.best.hops)
	for i := range edges {
		edges[i] = s.edges[s.best.edges[i]]
	}
	return &domain.ArbitragePath{
		Edges:       edges,
		StartAmount: s.start,
		FinalAmount: s.best.final,
		Profit:      mathutil.SignedDiff(s.best.final, s.start),
	}
}

// signedU256 converts a minimum profit into two's complement.
func signedU256(v *big.Int) (uint256.Int, error) {
	var out uint256.Int
	if v == nil {
		out.SetUint64(common.DefaultMinProfit)
		return out, nil
	}
	abs, err := mathutil.FromBig(new(big.Int).Abs(v))
	if err != nil || abs.Sign() < 0 {
		return out, fmt.Errorf("%w: min profit %s", common.ErrMathOverflow, v)
	}
	out.Set(abs)
	if v.Sign() < 0 {
		out.Neg(&out)
	}
	return out, nil
}
