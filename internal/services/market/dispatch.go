package market

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/amm/clmm"
	"github.com/hxuan190/arb-engine/internal/amm/cpmm"
	"github.com/hxuan190/arb-engine/internal/amm/dlmm"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

// dispatcher is a frozen view of the venue table at one clock reading.
type dispatcher struct {
	venues  map[domain.VenueID]*Venue
	clock   domain.Clock
	swapper solana.PublicKey
}

func (d *dispatcher) venueFor(edge *domain.Edge) (*Venue, error) {
	v, ok := d.venues[edge.Venue]
	if !ok {
		return nil, unknownVenue(edge.Venue)
	}
	m := edge.Market
	if m == nil {
		return nil, fmt.Errorf("%w: edge %s has no market", common.ErrInvalidAccountData, edge)
	}
	if m.State.Kind != v.Family {
		return nil, fmt.Errorf("%w: market %s is %s, venue %s is %s", common.ErrInvalidAccountData, m.Address, m.State.Kind, v.Name, v.Family)
	}
	switch {
	case v.Family == domain.CurveConcentrated && m.State.CL == nil,
		v.Family == domain.CurveBinArray && m.State.Bins == nil:
		return nil, fmt.Errorf("%w: market %s has no %s state", common.ErrInvalidAccountData, m.Address, v.Family)
	}
	return v, nil
}

func (d *dispatcher) exactIn(edge *domain.Edge, amountIn uint64) (EdgeQuote, error) {
	v, err := d.venueFor(edge)
	if err != nil {
		return EdgeQuote{}, err
	}
	if amountIn == 0 {
		return EdgeQuote{}, nil
	}

	net, feeIn, err := edge.Left.TransferFee.ExcludeFee(d.clock.Epoch, amountIn)
	if err != nil {
		return EdgeQuote{}, err
	}
	out, venueFee, partial, err := d.curveExactIn(v, edge.Market, edge.Forward(), net)
	if err != nil {
		return EdgeQuote{}, err
	}
	delivered, feeOut, err := edge.Right.TransferFee.ExcludeFee(d.clock.Epoch, out)
	if err != nil {
		return EdgeQuote{}, err
	}
	return EdgeQuote{
		AmountIn:       amountIn,
		AmountOut:      delivered,
		VenueFee:       venueFee,
		TransferFeeIn:  feeIn,
		TransferFeeOut: feeOut,
		PartialFill:    partial,
	}, nil
}

func (d *dispatcher) exactOut(edge *domain.Edge, amountOut uint64) (EdgeQuote, error) {
	v, err := d.venueFor(edge)
	if err != nil {
		return EdgeQuote{}, err
	}
	if amountOut == 0 {
		return EdgeQuote{}, nil
	}

	gross, feeOut, err := edge.Right.TransferFee.IncludeFee(d.clock.Epoch, amountOut)
	if err != nil {
		return EdgeQuote{}, err
	}
	in, venueFee, err := d.curveExactOut(v, edge.Market, edge.Forward(), gross)
	if err != nil {
		return EdgeQuote{}, err
	}
	supplied, feeIn, err := edge.Left.TransferFee.IncludeFee(d.clock.Epoch, in)
	if err != nil {
		return EdgeQuote{}, err
	}
	return EdgeQuote{
		AmountIn:       supplied,
		AmountOut:      amountOut,
		VenueFee:       venueFee,
		TransferFeeIn:  feeIn,
		TransferFeeOut: feeOut,
	}, nil
}

func (d *dispatcher) clmmContext() clmm.SwapContext {
	return clmm.SwapContext{Slot: d.clock.Slot, Timestamp: d.clock.UnixTimestamp, Swapper: d.swapper}
}

func (d *dispatcher) dlmmContext() dlmm.SwapContext {
	return dlmm.SwapContext{Slot: d.clock.Slot, Timestamp: d.clock.UnixTimestamp}
}

func (d *dispatcher) curveExactIn(v *Venue, m *domain.Market, forward bool, amountIn uint64) (out, fee uint64, partial bool, err error) {
	switch v.Family {
	case domain.CurveConstantProduct:
		p := cpmm.Pool{ReserveA: m.Left.Amount, ReserveB: m.Right.Amount, Fees: v.CPFees}
		q, err := p.SwapExactIn(amountIn, forward)
		return q.AmountOut, q.Fee, false, err
	case domain.CurveConcentrated:
		q, err := m.State.CL.SwapExactIn(d.clmmContext(), amountIn, forward)
		return q.AmountOut, q.Fee, false, err
	case domain.CurveBinArray:
		q, err := m.State.Bins.SwapExactIn(d.dlmmContext(), amountIn, forward)
		return q.AmountOut, q.Fee, q.PartialFill, err
	}
	return 0, 0, false, fmt.Errorf("%w: curve family %d", common.ErrInvalidAccountData, v.Family)
}

func (d *dispatcher) curveExactOut(v *Venue, m *domain.Market, forward bool, amountOut uint64) (in, fee uint64, err error) {
	switch v.Family {
	case domain.CurveConstantProduct:
		p := cpmm.Pool{ReserveA: m.Left.Amount, ReserveB: m.Right.Amount, Fees: v.CPFees}
		q, err := p.SwapExactOut(amountOut, forward)
		return q.AmountIn, q.Fee, err
	case domain.CurveConcentrated:
		q, err := m.State.CL.SwapExactOut(d.clmmContext(), amountOut, forward)
		return q.AmountIn, q.Fee, err
	case domain.CurveBinArray:
		q, err := m.State.Bins.SwapExactOut(d.dlmmContext(), amountOut, forward)
		return q.AmountIn, q.Fee, err
	}
	return 0, 0, fmt.Errorf("%w: curve family %d", common.ErrInvalidAccountData, v.Family)
}
