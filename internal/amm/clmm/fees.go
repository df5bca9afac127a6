package clmm

import (
	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
)

// schedulerNumerator returns the base fee at point for the cliff and
// scheduler modes. Before activation the cliff applies.
func (b *BaseFee) schedulerNumerator(point, activation uint64) uint64 {
	if b.Mode != FeeModeSchedulerLinear && b.Mode != FeeModeSchedulerExponential {
		return b.CliffFeeNumerator
	}
	if b.PeriodFrequency == 0 || point < activation {
		return b.CliffFeeNumerator
	}
	period := min((point-activation)/b.PeriodFrequency, uint64(b.NumberOfPeriod))

	if b.Mode == FeeModeSchedulerLinear {
		reduction := period * b.ReductionFactor
		if period != 0 && reduction/period != b.ReductionFactor {
			return 0
		}
		if reduction >= b.CliffFeeNumerator {
			return 0
		}
		return b.CliffFeeNumerator - reduction
	}

	if b.ReductionFactor >= BasisPointMax {
		if period == 0 {
			return b.CliffFeeNumerator
		}
		return 0
	}
	// cliff * ((10000 - r) / 10000)^period in Q64
	base, _ := mathutil.MulDiv(uint256.NewInt(BasisPointMax-b.ReductionFactor), mathutil.Q64, mathutil.BpsDenom)
	acc := new(uint256.Int).Set(mathutil.Q64)
	for e := period; e > 0; e >>= 1 {
		if e&1 == 1 {
			acc.Mul(acc, base).Rsh(acc, 64)
		}
		base = new(uint256.Int).Mul(base, base)
		base.Rsh(base, 64)
	}
	fee := new(uint256.Int).Mul(uint256.NewInt(b.CliffFeeNumerator), acc)
	fee.Rsh(fee, 64)
	return fee.Uint64()
}

// rateLimiterActive reports whether trade size drives the fee. Only quote
// to base trades (B→A) inside the limiter window are affected.
func (b *BaseFee) rateLimiterActive(point, activation uint64, aToB bool) bool {
	if b.Mode != FeeModeRateLimiter || aToB || b.ReferenceAmount == 0 || b.FeeIncrementBps == 0 {
		return false
	}
	return point >= activation && point-activation < b.MaxLimiterDuration
}

// variableFeeNumerator is ceil((va * binStep)^2 * control / 1e11).
func (d *DynamicFee) variableFeeNumerator() uint64 {
	if !d.Initialized || d.VariableFeeControl == 0 {
		return 0
	}
	v := new(uint256.Int).Mul(uint256.NewInt(d.VolatilityAccumulator), uint256.NewInt(uint64(d.BinStep)))
	v.Mul(v, v)
	v.Mul(v, uint256.NewInt(uint64(d.VariableFeeControl)))
	scaled, err := mathutil.CeilDiv(v, uint256.NewInt(variableFeeScaling))
	if err != nil || !scaled.IsUint64() {
		return ^uint64(0)
	}
	return scaled.Uint64()
}

// UpdateReferences decays the volatility reference the way the venue does
// at the start of a swap. Once a filter period has passed the price
// reference moves to the current price, so the accumulator restarts from
// the decayed reference.
func (d *DynamicFee) UpdateReferences(now int64) {
	if !d.Initialized {
		return
	}
	elapsed := now - d.LastUpdateTimestamp
	if elapsed < int64(d.FilterPeriod) {
		return
	}
	if elapsed < int64(d.DecayPeriod) {
		d.VolatilityReference = d.VolatilityAccumulator * uint64(d.ReductionFactor) / BasisPointMax
	} else {
		d.VolatilityReference = 0
	}
	d.VolatilityAccumulator = min(d.VolatilityReference, uint64(d.MaxVolatilityAccumulator))
	d.LastUpdateTimestamp = now
}

// atTime returns the pool as a swap at ctx would see it. The stored pool
// is left untouched.
func (p *Pool) atTime(ctx SwapContext) *Pool {
	if !p.DynamicFee.Initialized {
		return p
	}
	q := *p
	q.DynamicFee.UpdateReferences(ctx.Timestamp)
	return &q
}

// feeNumerator is the flat rate for a trade: base plus variable, capped.
func (p *Pool) feeNumerator(point uint64) uint64 {
	base := p.BaseFee.schedulerNumerator(point, p.ActivationPoint)
	total := base + p.DynamicFee.variableFeeNumerator()
	if total < base {
		return p.maxFeeNumerator()
	}
	return min(total, p.maxFeeNumerator())
}

// feeOnInput reports whether the fee is charged on what the trader supplies.
func (p *Pool) feeOnInput(aToB bool) bool {
	return p.CollectFeeMode == CollectFeeOnlyB && !aToB
}

// flatFee is ceil(amount * numerator / 1e9).
func flatFee(amount, numerator uint64) (uint64, error) {
	return mathutil.MulDivCeilU64(amount, numerator, FeeDenominator)
}

// rateLimitedFee charges the first ReferenceAmount at the base rate and
// every following ReferenceAmount chunk one increment higher, capped at the
// pool maximum.
func (p *Pool) rateLimitedFee(amount, baseNumerator uint64) (uint64, error) {
	maxFee := p.maxFeeNumerator()
	c := min(baseNumerator, maxFee)
	ref := p.BaseFee.ReferenceAmount
	if amount <= ref {
		return flatFee(amount, c)
	}

	inc := uint64(p.BaseFee.FeeIncrementBps) * bpsToFeeNumerator
	rest := amount - ref
	full, rem := rest/ref, rest%ref

	var capIndex uint64
	if c < maxFee {
		capIndex = (maxFee - c) / inc
	}
	n1 := min(full, capIndex)
	n2 := full - n1

	refU, cU, incU := uint256.NewInt(ref), uint256.NewInt(c), uint256.NewInt(inc)
	n1U := uint256.NewInt(n1)

	// ref*c + ref*(n1*c + inc*n1*(n1+1)/2) + ref*n2*max + rem*rate(full+1)
	weighted := new(uint256.Int).Mul(refU, cU)

	ramp := new(uint256.Int).Mul(n1U, cU)
	tri := new(uint256.Int).Mul(n1U, uint256.NewInt(n1+1))
	tri.Rsh(tri, 1)
	tri.Mul(tri, incU)
	ramp.Add(ramp, tri)
	ramp.Mul(ramp, refU)
	weighted.Add(weighted, ramp)

	capped := new(uint256.Int).Mul(refU, uint256.NewInt(n2))
	capped.Mul(capped, uint256.NewInt(maxFee))
	weighted.Add(weighted, capped)

	lastRate := maxFee
	if full+1 <= capIndex {
		lastRate = c + inc*(full+1)
	}
	tail := new(uint256.Int).Mul(uint256.NewInt(rem), uint256.NewInt(lastRate))
	weighted.Add(weighted, tail)

	fee, err := mathutil.CeilDiv(weighted, uint256.NewInt(FeeDenominator))
	if err != nil {
		return 0, err
	}
	return mathutil.ToU64(fee)
}

// tradeFee returns the fee charged on amount for this trade and the
// effective flat numerator used.
func (p *Pool) tradeFee(amount, point uint64, aToB bool) (uint64, uint64, error) {
	numerator := p.feeNumerator(point)
	if p.feeOnInput(aToB) && p.BaseFee.rateLimiterActive(point, p.ActivationPoint, aToB) {
		fee, err := p.rateLimitedFee(amount, numerator)
		return fee, numerator, err
	}
	fee, err := flatFee(amount, numerator)
	return fee, numerator, err
}

// grossUpForFee returns the smallest gross with gross - fee(gross) >= net.
// Trades under an active rate limiter are grossed up at the pool maximum.
func (p *Pool) grossUpForFee(net, point uint64, aToB bool) (uint64, uint64, error) {
	numerator := p.feeNumerator(point)
	if p.feeOnInput(aToB) && p.BaseFee.rateLimiterActive(point, p.ActivationPoint, aToB) {
		numerator = p.maxFeeNumerator()
	}
	gross, err := mathutil.MulDivCeilU64(net, FeeDenominator, FeeDenominator-numerator)
	if err != nil {
		return 0, 0, err
	}
	for {
		fee, err := flatFee(gross, numerator)
		if err != nil {
			return 0, 0, err
		}
		if gross-fee >= net {
			return gross, fee, nil
		}
		gross++
	}
}
