// Package cpmm implements the constant-product (x·y = k) venue curve.
//
// The forward direction (A→B) charges the venue trade fee on the gross output.
// The reverse direction (B→A) splits its fee into an LP share and a protocol
// share; both are taken out of the gross output in one step so the quote stays
// monotone in the input.
package cpmm

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
)

// Rational is a fee expressed as Num/Den.
type Rational struct {
	Num uint64 `json:"num" toml:"num"`
	Den uint64 `json:"den" toml:"den"`
}

func (r Rational) valid() bool {
	return r.Den > 0 && r.Num < r.Den
}

// Fees holds the fee schedule of a constant-product venue.
type Fees struct {
	TradeFee    Rational `json:"tradeFee" toml:"trade_fee"`
	LPFee       Rational `json:"lpFee" toml:"lp_fee"`
	ProtocolFee Rational `json:"protocolFee" toml:"protocol_fee"`
}

// DefaultFees: 0.02% forward, 0.2% LP + 0.05% protocol on the reverse leg.
func DefaultFees() Fees {
	return Fees{
		TradeFee:    Rational{Num: 2, Den: 10_000},
		LPFee:       Rational{Num: 20, Den: 10_000},
		ProtocolFee: Rational{Num: 5, Den: 10_000},
	}
}

// Validate rejects fee schedules that would take 100% or more.
func (f Fees) Validate() error {
	if !f.TradeFee.valid() || !f.LPFee.valid() || !f.ProtocolFee.valid() {
		return fmt.Errorf("%w: fee rationals must satisfy 0 <= num < den", common.ErrInvalidAccountData)
	}
	num, den := f.reverseKeep()
	if num == nil || num.IsZero() || den.IsZero() {
		return fmt.Errorf("%w: reverse fees take the whole output", common.ErrInvalidAccountData)
	}
	return nil
}

// reverseKeep returns the share of the gross reverse output left after the
// LP and protocol fees: 1 - lp - protocol as a single rational.
func (f Fees) reverseKeep() (*uint256.Int, *uint256.Int) {
	den := new(uint256.Int).Mul(uint256.NewInt(f.LPFee.Den), uint256.NewInt(f.ProtocolFee.Den))
	lp := new(uint256.Int).Mul(uint256.NewInt(f.LPFee.Num), uint256.NewInt(f.ProtocolFee.Den))
	pr := new(uint256.Int).Mul(uint256.NewInt(f.ProtocolFee.Num), uint256.NewInt(f.LPFee.Den))
	taken := new(uint256.Int).Add(lp, pr)
	if taken.Cmp(den) >= 0 {
		return nil, den
	}
	return new(uint256.Int).Sub(den, taken), den
}

// Pool is a constant-product reserve pair. ReserveA is the left (base) side.
type Pool struct {
	ReserveA uint64
	ReserveB uint64
	Fees     Fees
}

// Quote is the result of a single swap computation.
type Quote struct {
	AmountIn    uint64
	AmountOut   uint64
	Fee         uint64
	LPFee       uint64
	ProtocolFee uint64
}

func (p *Pool) reserves(aToB bool) (in, out uint64) {
	if aToB {
		return p.ReserveA, p.ReserveB
	}
	return p.ReserveB, p.ReserveA
}

// grossOut is y - floor(x*y/(x+dx)).
func grossOut(x, y, dx uint64) (uint64, error) {
	xu, yu := uint256.NewInt(x), uint256.NewInt(y)
	denom := new(uint256.Int).Add(xu, uint256.NewInt(dx))
	k, err := mathutil.MulDiv(xu, yu, denom)
	if err != nil {
		return 0, err
	}
	rest, err := mathutil.ToU64(k)
	if err != nil {
		return 0, err
	}
	return y - rest, nil
}

// SwapExactIn quotes the output for amountIn supplied on the input side.
func (p *Pool) SwapExactIn(amountIn uint64, aToB bool) (Quote, error) {
	if err := p.Fees.Validate(); err != nil {
		return Quote{}, err
	}
	if amountIn == 0 {
		return Quote{}, nil
	}
	x, y := p.reserves(aToB)
	if x == 0 || y == 0 {
		return Quote{}, common.ErrInsufficientLiquidity
	}

	gross, err := grossOut(x, y, amountIn)
	if err != nil {
		return Quote{}, err
	}
	if gross >= y {
		return Quote{}, common.ErrInsufficientLiquidity
	}

	q := Quote{AmountIn: amountIn}
	if aToB {
		fee := p.Fees.TradeFee
		out, err := mathutil.MulDivU64(gross, fee.Den-fee.Num, fee.Den)
		if err != nil {
			return Quote{}, err
		}
		q.AmountOut = out
		q.Fee = gross - out
		q.LPFee = q.Fee
		return q, nil
	}

	keepNum, keepDen := p.Fees.reverseKeep()
	outU, err := mathutil.MulDiv(uint256.NewInt(gross), keepNum, keepDen)
	if err != nil {
		return Quote{}, err
	}
	out, err := mathutil.ToU64(outU)
	if err != nil {
		return Quote{}, err
	}
	lp, err := mathutil.MulDivU64(gross, p.Fees.LPFee.Num, p.Fees.LPFee.Den)
	if err != nil {
		return Quote{}, err
	}
	q.AmountOut = out
	q.Fee = gross - out
	q.LPFee = lp
	q.ProtocolFee = q.Fee - lp
	return q, nil
}

// SwapExactOut quotes the input required to receive amountOut on the output
// side.
func (p *Pool) SwapExactOut(amountOut uint64, aToB bool) (Quote, error) {
	if err := p.Fees.Validate(); err != nil {
		return Quote{}, err
	}
	if amountOut == 0 {
		return Quote{}, nil
	}
	x, y := p.reserves(aToB)
	if x == 0 || y == 0 {
		return Quote{}, common.ErrInsufficientLiquidity
	}

	var gross uint64
	var err error
	if aToB {
		fee := p.Fees.TradeFee
		gross, err = mathutil.MulDivCeilU64(amountOut, fee.Den, fee.Den-fee.Num)
	} else {
		keepNum, keepDen := p.Fees.reverseKeep()
		var g *uint256.Int
		g, err = mathutil.MulDivCeil(uint256.NewInt(amountOut), keepDen, keepNum)
		if err == nil {
			gross, err = mathutil.ToU64(g)
		}
	}
	if err != nil {
		return Quote{}, err
	}
	if gross >= y {
		return Quote{}, common.ErrInsufficientLiquidity
	}

	in, err := mathutil.MulDivCeilU64(x, gross, y-gross)
	if err != nil {
		return Quote{}, err
	}
	return Quote{AmountIn: in, AmountOut: amountOut, Fee: gross - amountOut}, nil
}

// PriceHint is the marginal output per unit of input, before fees.
func (p *Pool) PriceHint(aToB bool) float64 {
	x, y := p.reserves(aToB)
	if x == 0 {
		return 0
	}
	return float64(y) / float64(x)
}
