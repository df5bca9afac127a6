package domain

import (
	"math/big"
)

// ArbitragePath is a closed cycle of two or three edges and the amounts it
// was evaluated with. Edges are copies of the scan's edges.
type ArbitragePath struct {
	Edges       []Edge   `json:"edges"`
	StartAmount uint64   `json:"startAmount"`
	FinalAmount uint64   `json:"finalAmount"`
	Profit      *big.Int `json:"profit"`
}

// StartToken is the mint the cycle starts and ends in.
func (p *ArbitragePath) StartToken() TokenID {
	if len(p.Edges) == 0 {
		return TokenID{}
	}
	return p.Edges[0].Left.Mint
}

// Closed reports whether the edges chain and return to the start mint.
func (p *ArbitragePath) Closed() bool {
	if len(p.Edges) == 0 {
		return false
	}
	for i := 0; i+1 < len(p.Edges); i++ {
		if !p.Edges[i].Right.Mint.Equals(p.Edges[i+1].Left.Mint) {
			return false
		}
	}
	return p.Edges[0].Left.Mint.Equals(p.Edges[len(p.Edges)-1].Right.Mint)
}

// Tokens lists the mints visited, start token first and last.
func (p *ArbitragePath) Tokens() []TokenID {
	if len(p.Edges) == 0 {
		return nil
	}
	out := make([]TokenID, 0, len(p.Edges)+1)
	out = append(out, p.Edges[0].Left.Mint)
	for _, e := range p.Edges {
		out = append(out, e.Right.Mint)
	}
	return out
}
