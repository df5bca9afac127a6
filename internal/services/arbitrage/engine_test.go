package arbitrage

import (
	"errors"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
)

const oneSOL = 1_000_000_000

// rate quotes amount*num/den, or fails with err.
type rate struct {
	num, den uint64
	err      error
}

func r(num, den uint64) rate { return rate{num: num, den: den} }

func broken(err error) rate { return rate{err: err} }

// ratioQuoter prices each market side at a fixed ratio.
type ratioQuoter struct {
	rates map[*domain.Market][2]rate
	calls int
}

func newRatioQuoter() *ratioQuoter {
	return &ratioQuoter{rates: make(map[*domain.Market][2]rate)}
}

func (q *ratioQuoter) Quote(e *domain.Edge, amountIn uint64) (uint64, error) {
	q.calls++
	sides, ok := q.rates[e.Market]
	if !ok {
		return 0, common.ErrUnknownVenue
	}
	side := sides[e.Direction]
	if side.err != nil {
		return 0, side.err
	}
	return mathutil.MulDivU64(amountIn, side.num, side.den)
}

type fixture struct {
	q       *ratioQuoter
	markets []*domain.Market
}

func newFixture() *fixture {
	return &fixture{q: newRatioQuoter()}
}

// market adds a market at venue trading left for right at fwd, and back at rev.
func (f *fixture) market(venue, left, right solana.PublicKey, fwd, rev rate) *domain.Market {
	m := &domain.Market{
		Address: solana.NewWallet().PublicKey(),
		Venue:   venue,
		Left:    domain.Pool{Mint: left, Amount: 1},
		Right:   domain.Pool{Mint: right, Amount: 1},
		Active:  true,
	}
	f.markets = append(f.markets, m)
	f.q.rates[m] = [2]rate{fwd, rev}
	return m
}

func (f *fixture) edges() []domain.Edge {
	return domain.EdgesOf(f.markets)
}

func key() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func params(root solana.PublicKey) Params {
	return Params{StartAmount: oneSOL, StartToken: &root, MinProfit: big.NewInt(40_000)}
}

func TestCrossCycleFound(t *testing.T) {
	sol, usdc := key(), key()
	venueX, venueY := key(), key()

	f := newFixture()
	mx := f.market(venueX, sol, usdc, r(100, 1), r(99, 10_000))
	my := f.market(venueY, sol, usdc, r(90, 1), r(11, 1_000))

	path, stats, err := CheckArbitrage(f.q, f.edges(), params(sol))
	require.NoError(t, err)
	require.Len(t, path.Edges, 2)

	assert.Same(t, mx, path.Edges[0].Market)
	assert.Same(t, my, path.Edges[1].Market)
	assert.Equal(t, venueX, path.Edges[0].Venue)
	assert.Equal(t, venueY, path.Edges[1].Venue)
	assert.Equal(t, uint64(1_100_000_000), path.FinalAmount)
	assert.Equal(t, big.NewInt(100_000_000), path.Profit)
	assert.Equal(t, StrategyCross, stats.Strategy)
	assert.True(t, path.Closed())
}

func TestCrossCycleBelowFloor(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(99, 10_000))
	f.market(key(), sol, usdc, r(90, 1), r(9, 1_000))

	_, _, err := CheckArbitrage(f.q, f.edges(), params(sol))
	assert.ErrorIs(t, err, common.ErrNoProfitFound)
}

func TestTriangularCycleFound(t *testing.T) {
	a, b, c := key(), key(), key()
	venue := key()

	f := newFixture()
	ab := f.market(venue, a, b, r(2, 1), r(4, 10))
	bc := f.market(venue, b, c, r(3, 1), r(3, 10))
	ca := f.market(venue, c, a, r(1, 5), r(4, 1))

	path, stats, err := CheckArbitrage(f.q, f.edges(), params(a))
	require.NoError(t, err)
	require.Len(t, path.Edges, 3)

	assert.Same(t, ab, path.Edges[0].Market)
	assert.Same(t, bc, path.Edges[1].Market)
	assert.Same(t, ca, path.Edges[2].Market)
	assert.Equal(t, uint64(1_200_000_000), path.FinalAmount)
	assert.Equal(t, big.NewInt(200_000_000), path.Profit)
	assert.Equal(t, StrategyTriangular, stats.Strategy)
	assert.Equal(t, 3, stats.UniqueTokens)
}

func TestSingleMarketHasNoCycle(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(1, 10))

	_, stats, err := CheckArbitrage(f.q, f.edges(), Params{StartAmount: oneSOL})
	assert.ErrorIs(t, err, common.ErrNoProfitFound)
	assert.Equal(t, StrategyCross, stats.Strategy)
	assert.Equal(t, 2, stats.Roots)
}

func TestRecoverableQuoteErrorDropsEdge(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(99, 10_000))
	violating := f.market(key(), sol, usdc, broken(common.ErrPriceRangeViolation), broken(common.ErrPriceRangeViolation))
	good := f.market(key(), sol, usdc, r(90, 1), r(105, 10_000))

	path, stats, err := CheckArbitrage(f.q, f.edges(), params(sol))
	require.NoError(t, err)
	for _, e := range path.Edges {
		assert.NotSame(t, violating, e.Market)
	}
	assert.Same(t, good, path.Edges[1].Market)
	assert.Equal(t, big.NewInt(50_000_000), path.Profit)
	assert.Positive(t, stats.RecoverableFailures)
}

func TestBestCycleWins(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(1, 1), r(1, 2))
	f.market(key(), sol, usdc, r(1, 2), r(1_000_050_000, oneSOL))
	best := f.market(key(), sol, usdc, r(1, 2), r(1_000_090_000, oneSOL))

	path, _, err := CheckArbitrage(f.q, f.edges(), params(sol))
	require.NoError(t, err)
	assert.Same(t, best, path.Edges[1].Market)
	assert.Equal(t, big.NewInt(90_000), path.Profit)
}

func TestTiesKeepFirstFound(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(1, 1), r(1, 2))
	first := f.market(key(), sol, usdc, r(1, 2), r(1_000_090_000, oneSOL))
	f.market(key(), sol, usdc, r(1, 2), r(1_000_090_000, oneSOL))

	path, _, err := CheckArbitrage(f.q, f.edges(), params(sol))
	require.NoError(t, err)
	assert.Same(t, first, path.Edges[1].Market)
}

func TestProfitFloorIsInclusive(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(1, 1), r(1, 2))
	f.market(key(), sol, usdc, r(1, 2), r(1_000_040_000, oneSOL))

	path, _, err := CheckArbitrage(f.q, f.edges(), params(sol))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(40_000), path.Profit)

	p := params(sol)
	p.MinProfit = big.NewInt(40_001)
	_, _, err = CheckArbitrage(f.q, f.edges(), p)
	assert.ErrorIs(t, err, common.ErrNoProfitFound)

	// nil floor means the 40k default
	p.MinProfit = nil
	_, _, err = CheckArbitrage(f.q, f.edges(), p)
	assert.NoError(t, err)
}

func TestNegativeFloorAcceptsLosses(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(1, 1), r(998, 1_000))
	f.market(key(), sol, usdc, r(1, 1), r(999, 1_000))

	p := params(sol)
	p.MinProfit = big.NewInt(-2_000_000)
	path, _, err := CheckArbitrage(f.q, f.edges(), p)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(-1_000_000), path.Profit)
}

func TestFatalQuoteErrorAborts(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(99, 10_000))
	f.market(key(), sol, usdc, broken(common.ErrMathOverflow), r(11, 1_000))

	_, _, err := CheckArbitrage(f.q, f.edges(), params(sol))
	assert.ErrorIs(t, err, common.ErrMathOverflow)
}

func TestUnquotableEdgeAborts(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(99, 10_000))
	f.market(key(), sol, usdc, r(90, 1), r(11, 1_000))

	stray := domain.Edge{Venue: key(), Left: domain.Pool{Mint: sol}, Right: domain.Pool{Mint: usdc}}
	_, _, err := CheckArbitrage(f.q, append(f.edges(), stray), params(sol))
	assert.ErrorIs(t, err, common.ErrUnknownVenue)
}

func TestInputTooLarge(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(1, 1), r(1, 1))
	f.market(key(), sol, usdc, r(1, 1), r(1, 1))

	p := params(sol)
	p.MaxEdges = 3
	_, _, err := CheckArbitrage(f.q, f.edges(), p)
	assert.ErrorIs(t, err, common.ErrInputTooLarge)
	assert.Zero(t, f.q.calls)
}

func TestSelfLoopEdgeIsInvalid(t *testing.T) {
	sol := key()
	edges := []domain.Edge{{Venue: key(), Left: domain.Pool{Mint: sol}, Right: domain.Pool{Mint: sol}}}
	_, _, err := CheckArbitrage(newRatioQuoter(), edges, Params{StartAmount: 1})
	assert.ErrorIs(t, err, common.ErrInvalidAccountData)
}

func TestUnknownStartToken(t *testing.T) {
	sol, usdc := key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(99, 10_000))
	f.market(key(), sol, usdc, r(90, 1), r(11, 1_000))

	_, stats, err := CheckArbitrage(f.q, f.edges(), params(key()))
	assert.ErrorIs(t, err, common.ErrNoProfitFound)
	assert.Zero(t, stats.Roots)
}

// crossWithThirdToken has a profitable two-hop on sol/usdc and an unrelated
// third token, so auto selection runs the triangular search only.
func crossWithThirdToken() (*fixture, solana.PublicKey) {
	sol, usdc, bonk := key(), key(), key()
	f := newFixture()
	f.market(key(), sol, usdc, r(100, 1), r(99, 10_000))
	f.market(key(), sol, usdc, r(90, 1), r(11, 1_000))
	f.market(key(), sol, bonk, r(1, 1), r(1, 2))
	return f, sol
}

func TestStrategyOverride(t *testing.T) {
	f, sol := crossWithThirdToken()

	_, stats, err := CheckArbitrage(f.q, f.edges(), params(sol))
	assert.ErrorIs(t, err, common.ErrNoProfitFound)
	assert.Equal(t, StrategyTriangular, stats.Strategy)

	for _, s := range []Strategy{StrategyCross, StrategyBoth} {
		p := params(sol)
		p.Strategy = s
		path, stats, err := CheckArbitrage(f.q, f.edges(), p)
		require.NoError(t, err, s.String())
		assert.Len(t, path.Edges, 2)
		assert.Equal(t, s, stats.Strategy)
	}
}

func TestBothReusesQuotes(t *testing.T) {
	f, sol := crossWithThirdToken()
	p := params(sol)
	p.Strategy = StrategyBoth
	_, stats, err := CheckArbitrage(f.q, f.edges(), p)
	require.NoError(t, err)
	assert.Positive(t, stats.MemoHits)
	assert.Equal(t, stats.Quotes, f.q.calls)
}

func TestParseStrategy(t *testing.T) {
	for _, s := range []Strategy{StrategyAuto, StrategyCross, StrategyTriangular, StrategyBoth} {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStrategy("greedy")
	assert.Error(t, err)
}

// mesh builds a dense snapshot: n tokens, every pair at two venues, with
// rates derived deterministically from the indexes.
func mesh(n int) (*fixture, []solana.PublicKey) {
	tokens := make([]solana.PublicKey, n)
	for i := range tokens {
		tokens[i] = key()
	}
	venues := []solana.PublicKey{key(), key()}
	f := newFixture()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for v, venue := range venues {
				skew := uint64(997 + (i*7+j*13+v*5)%11)
				f.market(venue, tokens[i], tokens[j], r(skew, 1_000), r(1_000, skew+3))
			}
		}
	}
	return f, tokens
}

func TestFoundPathsAreWellFormed(t *testing.T) {
	f, _ := mesh(6)
	edges := f.edges()

	for _, s := range []Strategy{StrategyCross, StrategyTriangular, StrategyBoth} {
		p := Params{StartAmount: oneSOL, MinProfit: big.NewInt(1), Strategy: s}
		path, _, err := CheckArbitrage(f.q, edges, p)
		if errors.Is(err, common.ErrNoProfitFound) {
			continue
		}
		require.NoError(t, err)

		assert.True(t, path.Closed())
		assert.GreaterOrEqual(t, path.Profit.Cmp(big.NewInt(1)), 0)
		assert.Equal(t, mathutil.SignedDiff(path.FinalAmount, path.StartAmount), path.Profit)
		switch len(path.Edges) {
		case 2:
			assert.NotEqual(t, path.Edges[0].Venue, path.Edges[1].Venue)
		case 3:
			assert.NotEqual(t, path.Edges[0].Left.Mint, path.Edges[1].Right.Mint)
		default:
			t.Fatalf("path of %d edges", len(path.Edges))
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	f, _ := mesh(7)
	edges := f.edges()
	p := Params{StartAmount: oneSOL, MinProfit: big.NewInt(-oneSOL), Strategy: StrategyBoth}

	first, _, err := CheckArbitrage(f.q, edges, p)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, _, err := CheckArbitrage(f.q, edges, p)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestSearchDoesNotMutateEdges(t *testing.T) {
	f, _ := mesh(4)
	edges := f.edges()
	before := make([]domain.Edge, len(edges))
	copy(before, edges)

	_, _, _ = CheckArbitrage(f.q, edges, Params{StartAmount: oneSOL, Strategy: StrategyBoth})
	assert.Equal(t, before, edges)
}

func BenchmarkTriangular(b *testing.B) {
	f, _ := mesh(12)
	edges := f.edges()
	p := Params{StartAmount: oneSOL, Strategy: StrategyTriangular}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = CheckArbitrage(f.q, edges, p)
	}
}
