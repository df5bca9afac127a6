package market

import (
	"github.com/hxuan190/arb-engine/internal/amm/dlmm"
	"github.com/hxuan190/arb-engine/internal/domain"
)

// MarketValidator decides whether a market of one curve family has enough
// state loaded to be quoted.
type MarketValidator interface {
	IsReady(m *domain.Market) bool
	SupportsCurve(kind domain.CurveKind) bool
}

func defaultValidators() []MarketValidator {
	return []MarketValidator{constantProductValidator{}, concentratedValidator{}, binArrayValidator{}}
}

type constantProductValidator struct{}

func (constantProductValidator) IsReady(m *domain.Market) bool {
	return m.Left.Amount > 0 && m.Right.Amount > 0 && m.Validate() == nil
}

func (constantProductValidator) SupportsCurve(kind domain.CurveKind) bool {
	return kind == domain.CurveConstantProduct
}

type concentratedValidator struct{}

func (concentratedValidator) IsReady(m *domain.Market) bool {
	if m.Validate() != nil {
		return false
	}
	return !m.State.CL.Liquidity.IsZero()
}

func (concentratedValidator) SupportsCurve(kind domain.CurveKind) bool {
	return kind == domain.CurveConcentrated
}

type binArrayValidator struct{}

// IsReady needs at least the active bin's array.
func (binArrayValidator) IsReady(m *domain.Market) bool {
	if m.Validate() != nil {
		return false
	}
	bins := m.State.Bins
	_, ok := bins.BinArrays[dlmm.BinArrayIndex(bins.ActiveID)]
	return ok
}

func (binArrayValidator) SupportsCurve(kind domain.CurveKind) bool {
	return kind == domain.CurveBinArray
}
