package arbitrage

import (
	"fmt"

	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

// tokenID is a compact, scan-local identifier for a mint
type tokenID uint32

// TokenIndex maps mints to compact ids in first-seen order.
type TokenIndex struct {
	toID   map[domain.TokenID]tokenID
	toMint []domain.TokenID
}

func NewTokenIndex(capacity int) *TokenIndex {
	return &TokenIndex{
		toID:   make(map[domain.TokenID]tokenID, capacity),
		toMint: make([]domain.TokenID, 0, capacity),
	}
}

// GetOrCreate returns the id for a mint, assigning the next one if needed.
func (t *TokenIndex) GetOrCreate(mint domain.TokenID) tokenID {
	if id, ok := t.toID[mint]; ok {
		return id
	}
	id := tokenID(len(t.toMint))
	t.toID[mint] = id
	t.toMint = append(t.toMint, mint)
	return id
}

func (t *TokenIndex) GetID(mint domain.TokenID) (tokenID, bool) {
	id, ok := t.toID[mint]
	return id, ok
}

func (t *TokenIndex) Size() int {
	return len(t.toMint)
}

type pairKey struct {
	in, out tokenID
}

// edgeIndex holds the adjacency of one scan. Buckets are indexes into the
// scan's edge slice, in input order.
type edgeIndex struct {
	tokens *TokenIndex
	// per edge: compact ids of its endpoints
	in, out []tokenID
	// outgoing edges by source token
	adj [][]int
	// edges by (source, destination)
	pair map[pairKey][]int
}

func buildIndex(edges []domain.Edge) (*edgeIndex, error) {
	idx := &edgeIndex{
		tokens: NewTokenIndex(len(edges)),
		in:     make([]tokenID, len(edges)),
		out:    make([]tokenID, len(edges)),
		pair:   make(map[pairKey][]int, len(edges)),
	}
	for i := range edges {
		e := &edges[i]
		if e.Left.Mint.Equals(e.Right.Mint) {
			return nil, fmt.Errorf("%w: edge %d trades %s into itself", common.ErrInvalidAccountData, i, e.Left.Mint)
		}
		in := idx.tokens.GetOrCreate(e.Left.Mint)
		out := idx.tokens.GetOrCreate(e.Right.Mint)
		idx.in[i], idx.out[i] = in, out

		for int(max(in, out)) >= len(idx.adj) {
			idx.adj = append(idx.adj, nil)
		}
		idx.adj[in] = append(idx.adj[in], i)
		k := pairKey{in, out}
		idx.pair[k] = append(idx.pair[k], i)
	}
	return idx, nil
}

func (idx *edgeIndex) outgoing(t tokenID) []int {
	if int(t) >= len(idx.adj) {
		return nil
	}
	return idx.adj[t]
}

// roots returns every token with outgoing edges, in first-seen order.
func (idx *edgeIndex) roots() []tokenID {
	roots := make([]tokenID, 0, len(idx.adj))
	for t, bucket := range idx.adj {
		if len(bucket) > 0 {
			roots = append(roots, tokenID(t))
		}
	}
	return roots
}
