package clmm

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/arb-engine/internal/common"
)

var q64 = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

// testPool sits at price 1 with room to move to 0.25 and 4.
func testPool() *Pool {
	return &Pool{
		SqrtPrice:       q64.Clone(),
		SqrtMinPrice:    new(uint256.Int).Rsh(q64, 1),
		SqrtMaxPrice:    new(uint256.Int).Lsh(q64, 1),
		Liquidity:       uint256.NewInt(1_000_000_000_000),
		ActivationPoint: 100,
		Version:         1,
		BaseFee:         BaseFee{Mode: FeeModeCliff, CliffFeeNumerator: 2_500_000},
	}
}

var liveCtx = SwapContext{Slot: 1_000, Timestamp: 1_700_000_000}

func TestSwapExactInChargesFeeOnOutput(t *testing.T) {
	q, err := testPool().SwapExactIn(liveCtx, 1_000_000, true)
	require.NoError(t, err)

	assert.Equal(t, uint64(2_500), q.Fee)
	assert.InDelta(t, 997_499, q.AmountOut, 1)
	assert.True(t, q.NextSqrtPrice.Lt(q64))
}

func TestSwapExactInOnlyBChargesInputWhenBuyingA(t *testing.T) {
	p := testPool()
	p.CollectFeeMode = CollectFeeOnlyB

	q, err := p.SwapExactIn(liveCtx, 1_000_000, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500), q.Fee)
	assert.True(t, q.NextSqrtPrice.Gt(q64))

	// fee came off the input, so the curve saw 997500
	net, _, err := p.curveOut(997_500, false)
	require.NoError(t, err)
	assert.Equal(t, net, q.AmountOut)
}

func TestSwapExactInZeroInput(t *testing.T) {
	q, err := testPool().SwapExactIn(liveCtx, 0, true)
	require.NoError(t, err)
	assert.Zero(t, q.AmountOut)
}

func TestPriceRangeViolation(t *testing.T) {
	p := testPool()
	_, err := p.SwapExactIn(liveCtx, 2_000_000_000_000, true)
	assert.ErrorIs(t, err, common.ErrPriceRangeViolation)

	_, err = p.SwapExactIn(liveCtx, 2_000_000_000_000, false)
	assert.ErrorIs(t, err, common.ErrPriceRangeViolation)
	assert.True(t, common.IsRecoverableQuoteError(err))
}

func TestTradability(t *testing.T) {
	vault := solana.NewWallet().PublicKey()

	p := testPool()
	p.Status = StatusDisabled
	_, err := p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrPoolDisabled)

	p = testPool()
	p.ActivationPoint = 100_000
	p.WhitelistedVault = vault

	_, err = p.SwapExactIn(SwapContext{Slot: 95_000}, 10, true)
	assert.ErrorIs(t, err, common.ErrPoolNotActivated)

	_, err = p.SwapExactIn(SwapContext{Slot: 95_000, Swapper: vault}, 10, true)
	assert.NoError(t, err)

	_, err = p.SwapExactIn(SwapContext{Slot: 90_000, Swapper: vault}, 10, true)
	assert.ErrorIs(t, err, common.ErrPoolNotActivated)

	p.ActivationType = ActivationTimestamp
	p.ActivationPoint = 1_700_000_000
	_, err = p.SwapExactIn(SwapContext{Timestamp: 1_699_998_000, Swapper: vault}, 10, true)
	assert.NoError(t, err)
	_, err = p.SwapExactIn(SwapContext{Timestamp: 1_699_990_000, Swapper: vault}, 10, true)
	assert.ErrorIs(t, err, common.ErrPoolNotActivated)
}

func TestInvalidPool(t *testing.T) {
	p := testPool()
	p.SqrtPrice = new(uint256.Int).Lsh(q64, 2)
	_, err := p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrInvalidAccountData)

	p = testPool()
	p.Liquidity = nil
	_, err = p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrInvalidAccountData)

	p = testPool()
	p.Liquidity = new(uint256.Int)
	_, err = p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrInsufficientLiquidity)
}

func TestSchedulerNumerator(t *testing.T) {
	linear := BaseFee{
		Mode:              FeeModeSchedulerLinear,
		CliffFeeNumerator: 100_000_000,
		NumberOfPeriod:    10,
		PeriodFrequency:   10,
		ReductionFactor:   5_000_000,
	}
	assert.Equal(t, uint64(100_000_000), linear.schedulerNumerator(50, 100), "before activation")
	assert.Equal(t, uint64(85_000_000), linear.schedulerNumerator(135, 100))
	assert.Equal(t, uint64(50_000_000), linear.schedulerNumerator(10_000, 100), "capped at the last period")

	expo := BaseFee{
		Mode:              FeeModeSchedulerExponential,
		CliffFeeNumerator: 100_000_000,
		NumberOfPeriod:    5,
		PeriodFrequency:   1,
		ReductionFactor:   1_000,
	}
	assert.InDelta(t, 81_000_000, expo.schedulerNumerator(102, 100), 1)
	assert.InDelta(t, 59_049_000, expo.schedulerNumerator(900, 100), 1)

	cliff := BaseFee{Mode: FeeModeCliff, CliffFeeNumerator: 7}
	assert.Equal(t, uint64(7), cliff.schedulerNumerator(1_000_000, 0))
}

func rateLimitedPool() *Pool {
	p := testPool()
	p.CollectFeeMode = CollectFeeOnlyB
	p.BaseFee = BaseFee{
		Mode:               FeeModeRateLimiter,
		CliffFeeNumerator:  10_000_000,
		FeeIncrementBps:    10,
		MaxLimiterDuration: 10_000,
		ReferenceAmount:    1_000_000,
	}
	return p
}

func TestRateLimitedFee(t *testing.T) {
	p := rateLimitedPool()

	fee, err := p.rateLimitedFee(3_500_000, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(39_500), fee)

	fee, err = p.rateLimitedFee(800_000, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, uint64(8_000), fee)

	limited, err := p.SwapExactIn(liveCtx, 3_500_000, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(39_500), limited.Fee)

	// selling A is never rate limited
	selling, err := p.SwapExactIn(liveCtx, 3_500_000, true)
	require.NoError(t, err)
	assert.Less(t, selling.Fee, uint64(39_500))

	// outside the limiter window the cliff applies
	late, err := p.SwapExactIn(SwapContext{Slot: 20_000}, 3_500_000, false)
	require.NoError(t, err)
	assert.Equal(t, uint64(35_000), late.Fee)
}

func TestRateLimitedFeeHitsCap(t *testing.T) {
	p := rateLimitedPool()
	p.BaseFee.FeeIncrementBps = 5_000
	p.BaseFee.ReferenceAmount = 10

	fee, err := p.rateLimitedFee(1_000, 10_000_000)
	require.NoError(t, err)
	assert.LessOrEqual(t, fee, uint64(990))
	assert.Greater(t, fee, uint64(900))
}

func TestDynamicFee(t *testing.T) {
	d := DynamicFee{
		Initialized:           true,
		BinStep:               10,
		VariableFeeControl:    100_000,
		VolatilityAccumulator: 100_000,
	}
	assert.Equal(t, uint64(1_000_000), d.variableFeeNumerator())

	p := testPool()
	p.DynamicFee = d
	assert.Equal(t, uint64(3_500_000), p.feeNumerator(1_000))

	p.BaseFee.CliffFeeNumerator = 989_900_000
	assert.Equal(t, MaxFeeNumeratorV1, p.feeNumerator(1_000))
}

func TestUpdateReferences(t *testing.T) {
	d := DynamicFee{
		Initialized:           true,
		FilterPeriod:          10,
		DecayPeriod:           120,
		ReductionFactor:       5_000,
		LastUpdateTimestamp:   1_000,
		VolatilityAccumulator: 40_000,
		VolatilityReference:   7,
	}

	c := d
	c.UpdateReferences(1_005)
	assert.Equal(t, uint64(7), c.VolatilityReference)

	c = d
	c.MaxVolatilityAccumulator = 350_000
	c.UpdateReferences(1_050)
	assert.Equal(t, uint64(20_000), c.VolatilityReference)
	assert.Equal(t, uint64(20_000), c.VolatilityAccumulator)
	assert.Equal(t, int64(1_050), c.LastUpdateTimestamp)

	c = d
	c.UpdateReferences(2_000)
	assert.Zero(t, c.VolatilityReference)
}

func TestSwapAppliesVolatilityDecay(t *testing.T) {
	last := liveCtx.Timestamp - 5
	p := testPool()
	p.DynamicFee = DynamicFee{
		Initialized:              true,
		BinStep:                  10,
		FilterPeriod:             10,
		DecayPeriod:              120,
		ReductionFactor:          5_000,
		MaxVolatilityAccumulator: 350_000,
		VariableFeeControl:       100_000,
		LastUpdateTimestamp:      last,
		VolatilityAccumulator:    100_000,
	}
	stored := p.DynamicFee

	cases := []struct {
		name      string
		ts        int64
		numerator uint64
	}{
		{"inside filter period", last + 5, 3_500_000},
		{"decaying", last + 65, 2_750_000},
		{"fully decayed", last + 1_000, 2_500_000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := SwapContext{Slot: liveCtx.Slot, Timestamp: tc.ts}
			q, err := p.SwapExactIn(ctx, 1_000_000, true)
			require.NoError(t, err)
			assert.Equal(t, tc.numerator, q.FeeNumerator)

			out, err := p.SwapExactOut(ctx, 500_000, true)
			require.NoError(t, err)
			assert.Equal(t, tc.numerator, out.FeeNumerator)
		})
	}
	assert.Equal(t, stored, p.DynamicFee)
}

func TestSwapExactInMonotone(t *testing.T) {
	pools := map[string]*Pool{"cliff": testPool(), "rate-limited": rateLimitedPool()}
	for name, p := range pools {
		for _, aToB := range []bool{true, false} {
			var prev uint64
			for in := uint64(0); in < 6_000_000; in += 9_973 {
				q, err := p.SwapExactIn(liveCtx, in, aToB)
				require.NoError(t, err)
				require.GreaterOrEqual(t, q.AmountOut, prev, "%s in=%d aToB=%v", name, in, aToB)
				prev = q.AmountOut
			}
		}
	}
}

func TestSwapExactOutCoversRequestedOutput(t *testing.T) {
	pools := map[string]*Pool{"cliff": testPool(), "rate-limited": rateLimitedPool()}
	for name, p := range pools {
		for _, aToB := range []bool{true, false} {
			for _, want := range []uint64{1, 1_000, 777_777, 5_000_000} {
				quote, err := p.SwapExactOut(liveCtx, want, aToB)
				require.NoError(t, err)

				got, err := p.SwapExactIn(liveCtx, quote.AmountIn, aToB)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got.AmountOut, want, "%s aToB=%v want=%d", name, aToB, want)
			}
		}
	}
}

func TestPriceHint(t *testing.T) {
	p := testPool()
	p.SqrtPrice = new(uint256.Int).Lsh(q64, 1)
	p.SqrtMaxPrice = new(uint256.Int).Lsh(q64, 2)
	assert.InDelta(t, 4.0, p.PriceHint(true), 1e-9)
	assert.InDelta(t, 0.25, p.PriceHint(false), 1e-9)
}

func BenchmarkSwapExactIn(b *testing.B) {
	p := testPool()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = p.SwapExactIn(liveCtx, 1_000_000, i&1 == 0)
	}
}
