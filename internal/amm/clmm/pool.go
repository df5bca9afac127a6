// Package clmm implements the concentrated-liquidity venue curve: a single
// liquidity value active over a bounded sqrt-price range, with scheduled,
// rate-limited and volatility-driven fees.
//
// Prices are Q64.64 square roots of token B per token A.
package clmm

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
)

const (
	FeeDenominator     uint64 = 1_000_000_000
	MaxFeeNumeratorV0  uint64 = 500_000_000
	MaxFeeNumeratorV1  uint64 = 990_000_000
	BasisPointMax      uint64 = 10_000
	bpsToFeeNumerator         = FeeDenominator / BasisPointMax
	slotBuffer         uint64 = 9_000
	timestampBuffer    uint64 = 3_600
	variableFeeScaling uint64 = 100_000_000_000
)

type Status uint8

const (
	StatusEnabled Status = iota
	StatusDisabled
)

type ActivationType uint8

const (
	ActivationSlot ActivationType = iota
	ActivationTimestamp
)

// CollectFeeMode decides which token the trading fee is charged in.
type CollectFeeMode uint8

const (
	// CollectFeeBothTokens charges the fee on the output token.
	CollectFeeBothTokens CollectFeeMode = iota
	// CollectFeeOnlyB always charges in token B: on the output when selling A,
	// on the input when buying A.
	CollectFeeOnlyB
)

type BaseFeeMode uint8

const (
	FeeModeCliff BaseFeeMode = iota
	FeeModeSchedulerLinear
	FeeModeSchedulerExponential
	FeeModeRateLimiter
)

// BaseFee is the time- or size-dependent part of the trading fee.
type BaseFee struct {
	Mode              BaseFeeMode `json:"mode"`
	CliffFeeNumerator uint64      `json:"cliffFeeNumerator"`

	// scheduler
	NumberOfPeriod  uint16 `json:"numberOfPeriod,omitempty"`
	PeriodFrequency uint64 `json:"periodFrequency,omitempty"`
	// linear: numerator removed per period; exponential: bps removed per period
	ReductionFactor uint64 `json:"reductionFactor,omitempty"`

	// rate limiter
	FeeIncrementBps    uint16 `json:"feeIncrementBps,omitempty"`
	MaxLimiterDuration uint64 `json:"maxLimiterDuration,omitempty"`
	ReferenceAmount    uint64 `json:"referenceAmount,omitempty"`
}

// DynamicFee is the volatility-driven surcharge.
type DynamicFee struct {
	Initialized              bool   `json:"initialized"`
	BinStep                  uint16 `json:"binStep"`
	FilterPeriod             uint16 `json:"filterPeriod"`
	DecayPeriod              uint16 `json:"decayPeriod"`
	ReductionFactor          uint16 `json:"reductionFactor"`
	MaxVolatilityAccumulator uint32 `json:"maxVolatilityAccumulator"`
	VariableFeeControl       uint32 `json:"variableFeeControl"`
	LastUpdateTimestamp      int64  `json:"lastUpdateTimestamp"`
	VolatilityAccumulator    uint64 `json:"volatilityAccumulator"`
	VolatilityReference      uint64 `json:"volatilityReference"`
}

// Pool is a concentrated-liquidity pool snapshot.
type Pool struct {
	SqrtPrice    *uint256.Int
	SqrtMinPrice *uint256.Int
	SqrtMaxPrice *uint256.Int
	Liquidity    *uint256.Int

	Status           Status
	ActivationType   ActivationType
	ActivationPoint  uint64
	WhitelistedVault solana.PublicKey
	CollectFeeMode   CollectFeeMode
	BaseFee          BaseFee
	DynamicFee       DynamicFee
	Version          uint8
}

// SwapContext is the clock reading and caller identity a quote is pure
// with respect to.
type SwapContext struct {
	Slot      uint64
	Timestamp int64
	Swapper   solana.PublicKey
}

// Quote is the result of a single swap computation.
type Quote struct {
	AmountIn      uint64
	AmountOut     uint64
	Fee           uint64
	FeeNumerator  uint64
	NextSqrtPrice *uint256.Int
}

// Clone returns a copy that shares no price or liquidity words with p.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.SqrtPrice = cloneWord(p.SqrtPrice)
	cp.SqrtMinPrice = cloneWord(p.SqrtMinPrice)
	cp.SqrtMaxPrice = cloneWord(p.SqrtMaxPrice)
	cp.Liquidity = cloneWord(p.Liquidity)
	return &cp
}

func cloneWord(x *uint256.Int) *uint256.Int {
	if x == nil {
		return nil
	}
	return x.Clone()
}

func (p *Pool) maxFeeNumerator() uint64 {
	if p.Version == 0 {
		return MaxFeeNumeratorV0
	}
	return MaxFeeNumeratorV1
}

func (p *Pool) currentPoint(ctx SwapContext) uint64 {
	if p.ActivationType == ActivationTimestamp {
		if ctx.Timestamp < 0 {
			return 0
		}
		return uint64(ctx.Timestamp)
	}
	return ctx.Slot
}

// Validate checks the account invariants the curve relies on.
func (p *Pool) Validate() error {
	if p.SqrtPrice == nil || p.SqrtMinPrice == nil || p.SqrtMaxPrice == nil || p.Liquidity == nil {
		return fmt.Errorf("%w: missing price or liquidity", common.ErrInvalidAccountData)
	}
	if p.SqrtMinPrice.IsZero() || p.SqrtMinPrice.Gt(p.SqrtMaxPrice) {
		return fmt.Errorf("%w: bad sqrt price range", common.ErrInvalidAccountData)
	}
	if p.SqrtPrice.Lt(p.SqrtMinPrice) || p.SqrtPrice.Gt(p.SqrtMaxPrice) {
		return fmt.Errorf("%w: sqrt price outside range", common.ErrInvalidAccountData)
	}
	if p.Liquidity.Gt(mathutil.MaxU128) || p.SqrtMaxPrice.Gt(mathutil.MaxU128) {
		return fmt.Errorf("%w: value exceeds u128", common.ErrInvalidAccountData)
	}
	if p.BaseFee.Mode > FeeModeRateLimiter {
		return fmt.Errorf("%w: unknown base fee mode %d", common.ErrInvalidAccountData, p.BaseFee.Mode)
	}
	return nil
}

// checkTradable enforces the enabled flag and the activation point. The
// whitelisted vault may trade inside the pre-activation buffer.
func (p *Pool) checkTradable(ctx SwapContext) error {
	if p.Status != StatusEnabled {
		return common.ErrPoolDisabled
	}
	point := p.currentPoint(ctx)
	if point >= p.ActivationPoint {
		return nil
	}
	if p.WhitelistedVault.IsZero() || !ctx.Swapper.Equals(p.WhitelistedVault) {
		return common.ErrPoolNotActivated
	}
	buffer := slotBuffer
	if p.ActivationType == ActivationTimestamp {
		buffer = timestampBuffer
	}
	if p.ActivationPoint > buffer && point < p.ActivationPoint-buffer {
		return common.ErrPoolNotActivated
	}
	return nil
}

// PriceHint is the spot output per unit input, before fees.
func (p *Pool) PriceHint(aToB bool) float64 {
	if p.SqrtPrice == nil || p.SqrtPrice.IsZero() {
		return 0
	}
	s := mathutil.Q64ToFloat(p.SqrtPrice)
	price := s * s
	if aToB {
		return price
	}
	return 1 / price
}
