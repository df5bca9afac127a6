package domain

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/amm/clmm"
	"github.com/hxuan190/arb-engine/internal/amm/dlmm"
	"github.com/hxuan190/arb-engine/internal/amm/transferfee"
	"github.com/hxuan190/arb-engine/internal/common"
)

type CurveKind uint8

const (
	CurveConstantProduct CurveKind = iota
	CurveConcentrated
	CurveBinArray
)

func (k CurveKind) String() string {
	switch k {
	case CurveConstantProduct:
		return "constant_product"
	case CurveConcentrated:
		return "concentrated"
	case CurveBinArray:
		return "bin_array"
	default:
		return "UNKNOWN"
	}
}

func ParseCurveKind(s string) (CurveKind, error) {
	switch s {
	case "constant_product", "cpmm":
		return CurveConstantProduct, nil
	case "concentrated", "clmm":
		return CurveConcentrated, nil
	case "bin_array", "dlmm":
		return CurveBinArray, nil
	}
	return 0, fmt.Errorf("unknown curve family %q", s)
}

// Pool is one side of a market: a mint and the reserve held for it.
type Pool struct {
	Mint         TokenID             `json:"mint"`
	Amount       uint64              `json:"amount"`
	Vault        solana.PublicKey    `json:"vault,omitempty"`
	TokenProgram solana.PublicKey    `json:"tokenProgram,omitempty"`
	TransferFee  *transferfee.Config `json:"transferFee,omitempty"`
}

// MarketState carries the venue-specific state a quote needs. Constant
// product markets quote from the pool amounts alone.
type MarketState struct {
	Kind CurveKind  `json:"kind"`
	CL   *clmm.Pool `json:"-"`
	Bins *dlmm.Pool `json:"-"`
}

// Market is a pair of pools at one venue. Left is the base side.
type Market struct {
	Address         solana.PublicKey `json:"address"`
	Venue           VenueID          `json:"venue"`
	Left            Pool             `json:"left"`
	Right           Pool             `json:"right"`
	State           MarketState      `json:"state"`
	Active          bool             `json:"active"`
	LastUpdatedSlot uint64           `json:"lastUpdatedSlot"`
}

// Clone returns a deep copy of m. Mutating the copy never reaches m.
func (m *Market) Clone() *Market {
	cp := *m
	cp.Left = m.Left.clone()
	cp.Right = m.Right.clone()
	if m.State.CL != nil {
		cp.State.CL = m.State.CL.Clone()
	}
	if m.State.Bins != nil {
		cp.State.Bins = m.State.Bins.Clone()
	}
	return &cp
}

func (p Pool) clone() Pool {
	if p.TransferFee != nil {
		fee := *p.TransferFee
		p.TransferFee = &fee
	}
	return p
}

func (m *Market) Validate() error {
	if m.Left.Mint.Equals(m.Right.Mint) {
		return fmt.Errorf("%w: market %s trades %s against itself", common.ErrInvalidAccountData, m.Address, m.Left.Mint)
	}
	switch m.State.Kind {
	case CurveConstantProduct:
	case CurveConcentrated:
		if m.State.CL == nil {
			return fmt.Errorf("%w: market %s has no concentrated state", common.ErrInvalidAccountData, m.Address)
		}
		return m.State.CL.Validate()
	case CurveBinArray:
		if m.State.Bins == nil {
			return fmt.Errorf("%w: market %s has no bin state", common.ErrInvalidAccountData, m.Address)
		}
		return m.State.Bins.Validate()
	default:
		return fmt.Errorf("%w: market %s curve %d", common.ErrInvalidAccountData, m.Address, m.State.Kind)
	}
	return nil
}

// priceHint is the non-binding spot rate for supplying the left mint when
// forward is true.
func (m *Market) priceHint(forward bool) float64 {
	switch m.State.Kind {
	case CurveConcentrated:
		if m.State.CL != nil && m.State.CL.Validate() == nil {
			return m.State.CL.PriceHint(forward)
		}
		return 0
	case CurveBinArray:
		if m.State.Bins != nil {
			return m.State.Bins.PriceHint(forward)
		}
		return 0
	}
	in, out := m.Left.Amount, m.Right.Amount
	if !forward {
		in, out = out, in
	}
	if in == 0 {
		return 0
	}
	return float64(out) / float64(in)
}
