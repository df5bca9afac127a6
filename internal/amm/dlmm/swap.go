package dlmm

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
)

// PriceFromID returns (1 + binStep/10000)^id as Q64.64.
func PriceFromID(id int32, binStep uint16) (*uint256.Int, error) {
	base := new(uint256.Int).Lsh(uint256.NewInt(uint64(binStep)), 64)
	base.Div(base, mathutil.BpsDenom)
	base.Add(base, mathutil.Q64)

	exp := int64(id)
	if exp < 0 {
		exp = -exp
	}
	result := new(uint256.Int).Set(mathutil.Q64)
	for exp > 0 {
		if exp&1 == 1 {
			if _, overflow := result.MulOverflow(result, base); overflow {
				return nil, common.ErrMathOverflow
			}
			result.Rsh(result, 64)
		}
		exp >>= 1
		if exp > 0 {
			if _, overflow := base.MulOverflow(base, base); overflow {
				return nil, common.ErrMathOverflow
			}
			base.Rsh(base, 64)
		}
	}
	if id < 0 {
		if result.IsZero() {
			return nil, common.ErrMathOverflow
		}
		result = new(uint256.Int).Div(mathutil.Q128, result)
	}
	if result.IsZero() || result.Gt(mathutil.MaxU128) {
		return nil, common.ErrMathOverflow
	}
	return result, nil
}

// feeState tracks the volatility accumulator while a swap walks bins.
type feeState struct {
	params StaticParameters
	vars   VariableParameters
	step   uint16
}

func (p *Pool) newFeeState(now int64) *feeState {
	s := &feeState{params: p.Parameters, vars: p.Variables, step: p.BinStep}
	elapsed := now - s.vars.LastUpdateTimestamp
	if elapsed >= int64(s.params.FilterPeriod) {
		s.vars.IndexReference = p.ActiveID
		if elapsed < int64(s.params.DecayPeriod) {
			s.vars.VolatilityReference = uint32(uint64(s.vars.VolatilityAccumulator) * uint64(s.params.ReductionFactor) / BasisPointMax)
		} else {
			s.vars.VolatilityReference = 0
		}
	}
	return s
}

// cross updates the accumulator for the bin about to be swapped.
func (s *feeState) cross(activeID int32) {
	delta := int64(s.vars.IndexReference) - int64(activeID)
	if delta < 0 {
		delta = -delta
	}
	va := uint64(s.vars.VolatilityReference) + uint64(delta)*BasisPointMax
	s.vars.VolatilityAccumulator = uint32(min(va, uint64(s.params.MaxVolatilityAccumulator)))
}

func (s *feeState) baseFeeRate() uint64 {
	rate := uint64(s.params.BaseFactor) * uint64(s.step) * 10
	for i := uint8(0); i < s.params.BaseFeePowerFactor; i++ {
		rate *= 10
	}
	return rate
}

func (s *feeState) variableFeeRate() uint64 {
	if s.params.VariableFeeControl == 0 {
		return 0
	}
	v := new(uint256.Int).Mul(uint256.NewInt(uint64(s.vars.VolatilityAccumulator)), uint256.NewInt(uint64(s.step)))
	v.Mul(v, v)
	v.Mul(v, uint256.NewInt(uint64(s.params.VariableFeeControl)))
	scaled, err := mathutil.CeilDiv(v, uint256.NewInt(variableFeeScaling))
	if err != nil || !scaled.IsUint64() {
		return MaxFeeRate
	}
	return scaled.Uint64()
}

func (s *feeState) totalFeeRate() uint64 {
	return min(s.baseFeeRate()+s.variableFeeRate(), MaxFeeRate)
}

// feeOnTop is the fee owed on top of a net amount: ceil(net·r/(P-r)).
func feeOnTop(net, rate uint64) (uint64, error) {
	return mathutil.MulDivCeilU64(net, rate, FeePrecision-rate)
}

// feeFromAmount is the fee contained in a gross amount: ceil(gross·r/P).
func feeFromAmount(gross, rate uint64) (uint64, error) {
	return mathutil.MulDivCeilU64(gross, rate, FeePrecision)
}

// outForIn converts a net input at the bin price.
func outForIn(in uint64, price *uint256.Int, swapForY bool, roundUp bool) (uint64, error) {
	var z *uint256.Int
	var err error
	switch {
	case swapForY && roundUp:
		z, err = mathutil.MulDivCeil(uint256.NewInt(in), price, mathutil.Q64)
	case swapForY:
		z, err = mathutil.MulDiv(uint256.NewInt(in), price, mathutil.Q64)
	case roundUp:
		z, err = mathutil.MulDivCeil(uint256.NewInt(in), mathutil.Q64, price)
	default:
		z, err = mathutil.MulDiv(uint256.NewInt(in), mathutil.Q64, price)
	}
	if err != nil {
		return 0, err
	}
	return mathutil.ToU64(z)
}

// inForOut is the net input that buys out at the bin price, rounded up.
func inForOut(out uint64, price *uint256.Int, swapForY bool) (uint64, error) {
	return outForIn(out, price, !swapForY, true)
}

// swapExactIn trades up to amountIn against one bin.
func (b *Bin) swapExactIn(amountIn uint64, price *uint256.Int, swapForY bool, rate uint64) (in, out, fee uint64, err error) {
	maxOut := b.AmountX
	if swapForY {
		maxOut = b.AmountY
	}
	if maxOut == 0 || amountIn == 0 {
		return 0, 0, 0, nil
	}

	maxIn, err := inForOut(maxOut, price, swapForY)
	if err != nil {
		return 0, 0, 0, err
	}
	maxFee, err := feeOnTop(maxIn, rate)
	if err != nil {
		return 0, 0, 0, err
	}
	if maxIn <= ^uint64(0)-maxFee && amountIn >= maxIn+maxFee {
		return maxIn + maxFee, maxOut, maxFee, nil
	}

	fee, err = feeFromAmount(amountIn, rate)
	if err != nil {
		return 0, 0, 0, err
	}
	out, err = outForIn(amountIn-fee, price, swapForY, false)
	if err != nil {
		return 0, 0, 0, err
	}
	return amountIn, min(out, maxOut), fee, nil
}

// walk visits bins from the active id in the swap direction, moving across
// arrays through the bitmap. visit returns false to stop. Walking stops
// when the next array with liquidity is not part of the snapshot.
func (p *Pool) walk(swapForY bool, visit func(id int32, bin *Bin) (bool, error)) (int32, error) {
	activeID := p.ActiveID
	for activeID >= MinBinID && activeID <= MaxBinID {
		idx := BinArrayIndex(activeID)
		arr, ok := p.BinArrays[idx]
		if !ok {
			if p.hasLiquidity(idx) {
				return activeID, nil
			}
			next, ok := p.nearestLoaded(idx, swapForY)
			if !ok {
				return activeID, nil
			}
			// a marked array we did not load sits in between
			if marked, found := p.nextArrayWithLiquidity(idx, swapForY); found && nearer(marked, next, swapForY) {
				return activeID, nil
			}
			lower, upper := BinArrayBounds(next)
			if swapForY {
				activeID = upper
			} else {
				activeID = lower
			}
			continue
		}

		lower, upper := BinArrayBounds(idx)
		for activeID >= lower && activeID <= upper {
			cont, err := visit(activeID, &arr.Bins[activeID-lower])
			if err != nil {
				return activeID, err
			}
			if !cont {
				return activeID, nil
			}
			if swapForY {
				activeID--
			} else {
				activeID++
			}
		}
	}
	return activeID, nil
}

// nearestLoaded returns the closest fetched array strictly past from.
func (p *Pool) nearestLoaded(from int64, swapForY bool) (int64, bool) {
	var best int64
	found := false
	for idx := range p.BinArrays {
		if (swapForY && idx >= from) || (!swapForY && idx <= from) {
			continue
		}
		if !found || nearer(idx, best, swapForY) {
			best, found = idx, true
		}
	}
	return best, found
}

func nearer(a, b int64, swapForY bool) bool {
	if swapForY {
		return a > b
	}
	return a < b
}

func (p *Pool) precheck(ctx SwapContext) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return p.checkTradable(ctx)
}

// SwapExactIn quotes the output for amountIn. A swap that runs out of
// loaded bins returns what it filled; one that fills nothing fails with
// ErrInsufficientLiquidity.
func (p *Pool) SwapExactIn(ctx SwapContext, amountIn uint64, swapForY bool) (Quote, error) {
	if err := p.precheck(ctx); err != nil {
		return Quote{}, err
	}
	if amountIn == 0 {
		return Quote{EndActiveID: p.ActiveID}, nil
	}

	fees := p.newFeeState(ctx.Timestamp)
	remaining := amountIn
	q := Quote{AmountIn: amountIn}

	end, err := p.walk(swapForY, func(id int32, bin *Bin) (bool, error) {
		if (swapForY && bin.AmountY == 0) || (!swapForY && bin.AmountX == 0) {
			return true, nil
		}
		fees.cross(id)
		price, err := PriceFromID(id, p.BinStep)
		if err != nil {
			return false, err
		}
		in, out, fee, err := bin.swapExactIn(remaining, price, swapForY, fees.totalFeeRate())
		if err != nil {
			return false, err
		}
		remaining -= in
		q.AmountOut += out
		q.Fee += fee
		q.BinsCrossed++
		return remaining > 0, nil
	})
	if err != nil {
		return Quote{}, err
	}
	if remaining == amountIn {
		return Quote{}, common.ErrInsufficientLiquidity
	}
	q.EndActiveID = end
	q.ConsumedIn = amountIn - remaining
	q.PartialFill = remaining > 0
	return q, nil
}

// SwapExactOut quotes the input required to receive amountOut. It must
// fill completely.
func (p *Pool) SwapExactOut(ctx SwapContext, amountOut uint64, swapForY bool) (Quote, error) {
	if err := p.precheck(ctx); err != nil {
		return Quote{}, err
	}
	if amountOut == 0 {
		return Quote{EndActiveID: p.ActiveID}, nil
	}

	fees := p.newFeeState(ctx.Timestamp)
	remaining := amountOut
	q := Quote{AmountOut: amountOut}

	end, err := p.walk(swapForY, func(id int32, bin *Bin) (bool, error) {
		maxOut := bin.AmountX
		if swapForY {
			maxOut = bin.AmountY
		}
		if maxOut == 0 {
			return true, nil
		}
		fees.cross(id)
		price, err := PriceFromID(id, p.BinStep)
		if err != nil {
			return false, err
		}
		take := min(remaining, maxOut)
		net, err := inForOut(take, price, swapForY)
		if err != nil {
			return false, err
		}
		fee, err := feeOnTop(net, fees.totalFeeRate())
		if err != nil {
			return false, err
		}
		step := net + fee
		if step < net || q.AmountIn+step < q.AmountIn {
			return false, common.ErrMathOverflow
		}
		q.AmountIn += step
		q.Fee += fee
		q.BinsCrossed++
		remaining -= take
		return remaining > 0, nil
	})
	if err != nil {
		return Quote{}, err
	}
	if remaining > 0 {
		return Quote{}, common.ErrInsufficientLiquidity
	}
	q.EndActiveID = end
	q.ConsumedIn = q.AmountIn
	return q, nil
}
