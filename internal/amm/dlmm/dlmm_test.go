package dlmm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
)

var liveCtx = SwapContext{Slot: 500, Timestamp: 1_700_000_000}

// testPool: bin step 10bps, active bin 0, one million Y in bins 0,-1,-2 and
// one million X in bins 1,2. Arrays 0 and -1 are loaded.
func testPool() *Pool {
	p := &Pool{
		ActiveID:   0,
		BinStep:    10,
		Parameters: StaticParameters{BaseFactor: 2_500, FilterPeriod: 30, DecayPeriod: 600, ReductionFactor: 5_000, MaxVolatilityAccumulator: 350_000},
		Variables:  VariableParameters{LastUpdateTimestamp: 1_700_000_000},
		BinArrays:  map[int64]*BinArray{},
	}
	p.put(0, Bin{AmountY: 1_000_000})
	p.put(-1, Bin{AmountY: 1_000_000})
	p.put(-2, Bin{AmountY: 1_000_000})
	p.put(1, Bin{AmountX: 1_000_000})
	p.put(2, Bin{AmountX: 1_000_000})
	return p
}

func (p *Pool) put(id int32, bin Bin) {
	idx := BinArrayIndex(id)
	arr, ok := p.BinArrays[idx]
	if !ok {
		arr = &BinArray{Index: idx}
		p.BinArrays[idx] = arr
		p.SetLiquidity(idx, true)
	}
	lower, _ := BinArrayBounds(idx)
	arr.Bins[id-lower] = bin
}

func TestBinArrayIndex(t *testing.T) {
	cases := map[int32]int64{0: 0, 69: 0, 70: 1, -1: -1, -70: -1, -71: -2, -141: -3}
	for id, want := range cases {
		assert.Equal(t, want, BinArrayIndex(id), "bin %d", id)
	}
	lower, upper := BinArrayBounds(-3)
	assert.Equal(t, int32(-210), lower)
	assert.Equal(t, int32(-141), upper)
}

func TestPriceFromID(t *testing.T) {
	p, err := PriceFromID(0, 100)
	require.NoError(t, err)
	assert.True(t, p.Eq(mathutil.Q64))

	p, err = PriceFromID(1, 100)
	require.NoError(t, err)
	assert.InDelta(t, 1.01, mathutil.Q64ToFloat(p), 1e-12)

	p, err = PriceFromID(-250, 25)
	require.NoError(t, err)
	assert.InEpsilon(t, 0.5357, mathutil.Q64ToFloat(p), 1e-3)

	_, err = PriceFromID(MaxBinID, 10_000)
	assert.ErrorIs(t, err, common.ErrMathOverflow)
}

func TestBitmap(t *testing.T) {
	p := &Pool{}
	for _, idx := range []int64{0, -512, 511, 512, -513, 3_000, -4_000, MaxBinArrayIndex, MinBinArrayIndex} {
		assert.False(t, p.hasLiquidity(idx))
		p.SetLiquidity(idx, true)
		assert.True(t, p.hasLiquidity(idx), "idx %d", idx)
	}
	require.NotNil(t, p.Extension)

	next, ok := p.nextArrayWithLiquidity(0, true)
	require.True(t, ok)
	assert.Equal(t, int64(-512), next)

	next, ok = p.nextArrayWithLiquidity(512, false)
	require.True(t, ok)
	assert.Equal(t, int64(3_000), next)

	p.SetLiquidity(3_000, false)
	next, ok = p.nextArrayWithLiquidity(512, false)
	require.True(t, ok)
	assert.Equal(t, MaxBinArrayIndex, next)

	_, ok = p.nextArrayWithLiquidity(MinBinArrayIndex, true)
	assert.False(t, ok)
}

func TestSwapExactInSingleBin(t *testing.T) {
	q, err := testPool().SwapExactIn(liveCtx, 1_000, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(999), q.AmountOut)
	assert.Equal(t, uint64(1), q.Fee)
	assert.Equal(t, int32(0), q.EndActiveID)
	assert.Equal(t, 1, q.BinsCrossed)
	assert.False(t, q.PartialFill)
}

func TestSwapExactInCrossesBins(t *testing.T) {
	q, err := testPool().SwapExactIn(liveCtx, 1_500_000, true)
	require.NoError(t, err)

	// bin 0 takes 1_000_000 + 251 fee, bin -1 prices at 1/1.001
	assert.InDelta(t, 1_499_125, q.AmountOut, 1)
	assert.Equal(t, int32(-1), q.EndActiveID)
	assert.Equal(t, 2, q.BinsCrossed)
	assert.Equal(t, uint64(251+125), q.Fee)
}

func TestSwapExactInBuysX(t *testing.T) {
	q, err := testPool().SwapExactIn(liveCtx, 1_000, false)
	require.NoError(t, err)
	assert.InDelta(t, 998, q.AmountOut, 1)
	assert.Equal(t, int32(1), q.EndActiveID)
}

func TestSwapExactInPartialFill(t *testing.T) {
	q, err := testPool().SwapExactIn(liveCtx, 10_000_000, true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_000_000), q.AmountOut)
	assert.True(t, q.PartialFill)
	assert.Less(t, q.ConsumedIn, uint64(10_000_000))
}

func TestSwapExactInNoProgress(t *testing.T) {
	p := testPool()
	p.BinArrays = map[int64]*BinArray{0: {Index: 0}}
	// array -1 is marked but was not fetched
	_, err := p.SwapExactIn(liveCtx, 1_000, true)
	assert.ErrorIs(t, err, common.ErrInsufficientLiquidity)
}

func TestSwapExactInJumpsThroughBitmap(t *testing.T) {
	p := &Pool{
		BinStep:    10,
		Parameters: StaticParameters{BaseFactor: 2_500},
		BinArrays:  map[int64]*BinArray{},
	}
	p.put(0, Bin{})
	p.put(-141, Bin{AmountY: 5_000})

	q, err := p.SwapExactIn(liveCtx, 1_000, true)
	require.NoError(t, err)
	assert.Equal(t, int32(-141), q.EndActiveID)
	assert.Greater(t, q.AmountOut, uint64(0))

	// a marked but unloaded array in between stops the walk
	p.SetLiquidity(-2, true)
	_, err = p.SwapExactIn(liveCtx, 1_000, true)
	assert.ErrorIs(t, err, common.ErrInsufficientLiquidity)
}

func TestSwapExactInMonotone(t *testing.T) {
	p := testPool()
	p.Parameters.VariableFeeControl = 40_000
	for _, swapForY := range []bool{true, false} {
		var prev uint64
		for in := uint64(1); in < 2_500_000; in += 4_999 {
			q, err := p.SwapExactIn(liveCtx, in, swapForY)
			require.NoError(t, err)
			require.GreaterOrEqual(t, q.AmountOut, prev, "in=%d swapForY=%v", in, swapForY)
			prev = q.AmountOut
		}
	}
}

func TestSwapExactOutCoversRequestedOutput(t *testing.T) {
	p := testPool()
	p.Parameters.VariableFeeControl = 40_000
	for _, swapForY := range []bool{true, false} {
		for _, want := range []uint64{1, 500, 999_999, 1_000_000, 1_700_000} {
			quote, err := p.SwapExactOut(liveCtx, want, swapForY)
			require.NoError(t, err)

			got, err := p.SwapExactIn(liveCtx, quote.AmountIn, swapForY)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.AmountOut, want, "swapForY=%v want=%d", swapForY, want)
		}
	}

	_, err := p.SwapExactOut(liveCtx, 3_000_001, true)
	assert.ErrorIs(t, err, common.ErrInsufficientLiquidity)
}

func TestVolatilityAccumulator(t *testing.T) {
	p := testPool()
	p.Variables = VariableParameters{VolatilityAccumulator: 20_000, IndexReference: 4, LastUpdateTimestamp: 1_000}

	within := p.newFeeState(1_010)
	assert.Equal(t, int32(4), within.vars.IndexReference, "inside the filter period nothing moves")

	decayed := p.newFeeState(1_100)
	assert.Equal(t, int32(0), decayed.vars.IndexReference)
	assert.Equal(t, uint32(10_000), decayed.vars.VolatilityReference)

	decayed.cross(-3)
	assert.Equal(t, uint32(40_000), decayed.vars.VolatilityAccumulator)
	decayed.cross(-100)
	assert.Equal(t, uint32(350_000), decayed.vars.VolatilityAccumulator, "capped")

	reset := p.newFeeState(10_000)
	assert.Zero(t, reset.vars.VolatilityReference)
}

func TestFeeRates(t *testing.T) {
	s := &feeState{params: StaticParameters{BaseFactor: 2_500, BaseFeePowerFactor: 1, VariableFeeControl: 7_500}, step: 10}
	assert.Equal(t, uint64(2_500_000), s.baseFeeRate())

	s.vars.VolatilityAccumulator = 100_000
	// (1e5 * 10)^2 * 7500 / 1e11 = 75_000
	assert.Equal(t, uint64(75_000), s.variableFeeRate())
	assert.Equal(t, uint64(2_575_000), s.totalFeeRate())

	s.params.BaseFeePowerFactor = 3
	assert.Equal(t, uint64(MaxFeeRate), s.totalFeeRate())
}

func TestTradability(t *testing.T) {
	p := testPool()
	p.Status = StatusDisabled
	_, err := p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrPoolDisabled)

	p = testPool()
	p.ActivationPoint = 1_000
	_, err = p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrPoolNotActivated)

	p = testPool()
	p.BinStep = 0
	_, err = p.SwapExactIn(liveCtx, 10, true)
	assert.ErrorIs(t, err, common.ErrInvalidAccountData)
}

func BenchmarkSwapExactIn(b *testing.B) {
	p := testPool()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = p.SwapExactIn(liveCtx, 1_500_000, true)
	}
}
