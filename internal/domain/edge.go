package domain

import (
	"fmt"
)

type Direction uint8

const (
	LeftToRight Direction = iota
	RightToLeft
)

func (d Direction) String() string {
	if d == LeftToRight {
		return "left_to_right"
	}
	return "right_to_left"
}

// Edge is one directed side of a market: supply Left.Mint, receive
// Right.Mint. PriceHint is for ordering and logs only.
type Edge struct {
	Venue     VenueID   `json:"venue"`
	Direction Direction `json:"direction"`
	Left      Pool      `json:"left"`
	Right     Pool      `json:"right"`
	Market    *Market   `json:"-"`
	PriceHint float64   `json:"priceHint"`
}

// Forward reports whether the edge trades the market's base side in.
func (e *Edge) Forward() bool {
	return e.Direction == LeftToRight
}

func (e *Edge) Key() EdgeKey {
	return EdgeKey{Venue: e.Venue, In: e.Left.Mint, Out: e.Right.Mint}
}

func (e *Edge) String() string {
	return fmt.Sprintf("%s:%s->%s", e.Venue.Short(4), e.Left.Mint.Short(4), e.Right.Mint.Short(4))
}

// EdgeKey is the identity of an edge. Direction is implied by the order of
// the two mints.
type EdgeKey struct {
	Venue VenueID
	In    TokenID
	Out   TokenID
}

// FNV-1a
const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// Hash is FNV-1a over the 96 key bytes.
func (k EdgeKey) Hash() uint64 {
	h := uint64(fnvOffset64)
	for _, b := range k.Venue {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	for _, b := range k.In {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	for _, b := range k.Out {
		h ^= uint64(b)
		h *= fnvPrime64
	}
	return h
}

// EdgesOf emits both directions of every market, in market order.
func EdgesOf(markets []*Market) []Edge {
	edges := make([]Edge, 0, 2*len(markets))
	for _, m := range markets {
		edges = append(edges,
			Edge{Venue: m.Venue, Direction: LeftToRight, Left: m.Left, Right: m.Right, Market: m, PriceHint: m.priceHint(true)},
			Edge{Venue: m.Venue, Direction: RightToLeft, Left: m.Right, Right: m.Left, Market: m, PriceHint: m.priceHint(false)},
		)
	}
	return edges
}
