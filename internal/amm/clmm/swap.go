package clmm

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
)

// nextSqrtPriceFromInput moves the price for a net input amount.
//
// A→B: s' = ceil(L·s / (L + Δa·s/2^64)), rounded up so the pool keeps the dust.
// B→A: s' = s + floor(Δb·2^64 / L).
func (p *Pool) nextSqrtPriceFromInput(amountIn uint64, aToB bool) (*uint256.Int, error) {
	s, l := p.SqrtPrice, p.Liquidity
	in := uint256.NewInt(amountIn)
	if aToB {
		lShift := new(uint256.Int).Lsh(l, 64)
		denom := new(uint256.Int).Mul(in, s)
		denom.Add(denom, lShift)
		return mathutil.MulDivCeil(lShift, s, denom)
	}
	delta, err := mathutil.MulDiv(in, mathutil.Q64, l)
	if err != nil {
		return nil, err
	}
	next, overflow := new(uint256.Int).AddOverflow(s, delta)
	if overflow {
		return nil, common.ErrMathOverflow
	}
	return next, nil
}

// amountB is L·(upper-lower)/2^64.
func amountB(l, lower, upper *uint256.Int, roundUp bool) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(upper, lower)
	if roundUp {
		return mathutil.MulDivCeil(l, diff, mathutil.Q64)
	}
	return mathutil.MulDiv(l, diff, mathutil.Q64)
}

// amountA is L·(upper-lower)·2^64/(upper·lower).
func amountA(l, lower, upper *uint256.Int, roundUp bool) (*uint256.Int, error) {
	diff := new(uint256.Int).Sub(upper, lower)
	lShift := new(uint256.Int).Lsh(l, 64)
	if roundUp {
		partial, err := mathutil.MulDivCeil(lShift, diff, upper)
		if err != nil {
			return nil, err
		}
		return mathutil.CeilDiv(partial, lower)
	}
	partial, err := mathutil.MulDiv(lShift, diff, upper)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Div(partial, lower), nil
}

// curveOut runs a net input through the curve.
func (p *Pool) curveOut(amountIn uint64, aToB bool) (uint64, *uint256.Int, error) {
	if amountIn == 0 {
		return 0, new(uint256.Int).Set(p.SqrtPrice), nil
	}
	next, err := p.nextSqrtPriceFromInput(amountIn, aToB)
	if err != nil {
		return 0, nil, err
	}

	var out *uint256.Int
	if aToB {
		if next.Lt(p.SqrtMinPrice) {
			return 0, nil, common.ErrPriceRangeViolation
		}
		out, err = amountB(p.Liquidity, next, p.SqrtPrice, false)
	} else {
		if next.Gt(p.SqrtMaxPrice) {
			return 0, nil, common.ErrPriceRangeViolation
		}
		out, err = amountA(p.Liquidity, p.SqrtPrice, next, false)
	}
	if err != nil {
		return 0, nil, err
	}
	outU64, err := mathutil.ToU64(out)
	if err != nil {
		return 0, nil, err
	}
	return outU64, next, nil
}

// curveIn returns the net input needed for a gross curve output.
func (p *Pool) curveIn(amountOut uint64, aToB bool) (uint64, *uint256.Int, error) {
	if amountOut == 0 {
		return 0, new(uint256.Int).Set(p.SqrtPrice), nil
	}
	s, l := p.SqrtPrice, p.Liquidity
	out := uint256.NewInt(amountOut)

	var next, in *uint256.Int
	var err error
	if aToB {
		delta, err := mathutil.MulDivCeil(out, mathutil.Q64, l)
		if err != nil {
			return 0, nil, err
		}
		if !delta.Lt(s) {
			return 0, nil, common.ErrInsufficientLiquidity
		}
		next = new(uint256.Int).Sub(s, delta)
		if next.Lt(p.SqrtMinPrice) {
			return 0, nil, common.ErrPriceRangeViolation
		}
		in, err = amountA(l, next, s, true)
		if err != nil {
			return 0, nil, err
		}
	} else {
		lShift := new(uint256.Int).Lsh(l, 64)
		product := new(uint256.Int).Mul(out, s)
		if !product.Lt(lShift) {
			return 0, nil, common.ErrInsufficientLiquidity
		}
		denom := new(uint256.Int).Sub(lShift, product)
		next, err = mathutil.MulDivCeil(lShift, s, denom)
		if err != nil {
			return 0, nil, err
		}
		if next.Gt(p.SqrtMaxPrice) {
			return 0, nil, common.ErrPriceRangeViolation
		}
		in, err = amountB(l, s, next, true)
		if err != nil {
			return 0, nil, err
		}
	}
	inU64, err := mathutil.ToU64(in)
	if err != nil {
		return 0, nil, err
	}
	return inU64, next, nil
}

func (p *Pool) precheck(ctx SwapContext) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := p.checkTradable(ctx); err != nil {
		return err
	}
	if p.Liquidity.IsZero() {
		return common.ErrInsufficientLiquidity
	}
	return nil
}

// SwapExactIn quotes the output for amountIn supplied on the input side.
func (p *Pool) SwapExactIn(ctx SwapContext, amountIn uint64, aToB bool) (Quote, error) {
	p = p.atTime(ctx)
	if err := p.precheck(ctx); err != nil {
		return Quote{}, err
	}
	if amountIn == 0 {
		return Quote{NextSqrtPrice: new(uint256.Int).Set(p.SqrtPrice)}, nil
	}
	point := p.currentPoint(ctx)

	if p.feeOnInput(aToB) {
		fee, numerator, err := p.tradeFee(amountIn, point, aToB)
		if err != nil {
			return Quote{}, err
		}
		out, next, err := p.curveOut(amountIn-fee, aToB)
		if err != nil {
			return Quote{}, err
		}
		return Quote{AmountIn: amountIn, AmountOut: out, Fee: fee, FeeNumerator: numerator, NextSqrtPrice: next}, nil
	}

	gross, next, err := p.curveOut(amountIn, aToB)
	if err != nil {
		return Quote{}, err
	}
	fee, numerator, err := p.tradeFee(gross, point, aToB)
	if err != nil {
		return Quote{}, err
	}
	return Quote{AmountIn: amountIn, AmountOut: gross - fee, Fee: fee, FeeNumerator: numerator, NextSqrtPrice: next}, nil
}

// SwapExactOut quotes the input required to receive amountOut.
func (p *Pool) SwapExactOut(ctx SwapContext, amountOut uint64, aToB bool) (Quote, error) {
	p = p.atTime(ctx)
	if err := p.precheck(ctx); err != nil {
		return Quote{}, err
	}
	if amountOut == 0 {
		return Quote{NextSqrtPrice: new(uint256.Int).Set(p.SqrtPrice)}, nil
	}
	point := p.currentPoint(ctx)

	if p.feeOnInput(aToB) {
		net, next, err := p.curveIn(amountOut, aToB)
		if err != nil {
			return Quote{}, err
		}
		gross, fee, err := p.grossUpForFee(net, point, aToB)
		if err != nil {
			return Quote{}, err
		}
		return Quote{AmountIn: gross, AmountOut: amountOut, Fee: fee, FeeNumerator: p.feeNumerator(point), NextSqrtPrice: next}, nil
	}

	grossOut, fee, err := p.grossUpForFee(amountOut, point, aToB)
	if err != nil {
		return Quote{}, err
	}
	in, next, err := p.curveIn(grossOut, aToB)
	if err != nil {
		return Quote{}, err
	}
	return Quote{AmountIn: in, AmountOut: amountOut, Fee: fee, FeeNumerator: p.feeNumerator(point), NextSqrtPrice: next}, nil
}
