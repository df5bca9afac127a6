package arbitrage

import (
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

// Quoter is the clock-bound quote function of one scan: supply amountIn of
// edge.Left.Mint, receive edge.Right.Mint.
type Quoter interface {
	Quote(edge *domain.Edge, amountIn uint64) (uint64, error)
}

type memoKey struct {
	edge   int
	amount uint64
}

type memoEntry struct {
	out uint64
	ok  bool
}

// quoteMemo remembers every quote of one scan. Recoverable failures are
// remembered as unusable; anything else is returned to abort the scan.
type quoteMemo struct {
	q       Quoter
	edges   []domain.Edge
	entries map[memoKey]memoEntry
	stats   *Stats
}

func newQuoteMemo(q Quoter, edges []domain.Edge, stats *Stats) *quoteMemo {
	return &quoteMemo{q: q, edges: edges, entries: make(map[memoKey]memoEntry, len(edges)), stats: stats}
}

func (m *quoteMemo) quote(edge int, amount uint64) (uint64, bool, error) {
	k := memoKey{edge, amount}
	if e, hit := m.entries[k]; hit {
		m.stats.MemoHits++
		return e.out, e.ok, nil
	}
	m.stats.Quotes++
	out, err := m.q.Quote(&m.edges[edge], amount)
	if err != nil {
		if !common.IsRecoverableQuoteError(err) {
			return 0, false, err
		}
		m.stats.RecoverableFailures++
		m.entries[k] = memoEntry{}
		return 0, false, nil
	}
	m.entries[k] = memoEntry{out: out, ok: true}
	return out, true, nil
}
