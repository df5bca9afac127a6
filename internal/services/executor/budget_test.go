package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/arb-engine/internal/amm/transferfee"
	"github.com/hxuan190/arb-engine/internal/domain"
)

type sampler struct {
	fees     []uint64
	err      error
	accounts []solana.PublicKey
}

func (s *sampler) RecentPriorityFees(_ context.Context, accounts []solana.PublicKey) ([]uint64, error) {
	s.accounts = accounts
	return s.fees, s.err
}

func TestEstimateComputeUnits(t *testing.T) {
	cp := &domain.Edge{Market: &domain.Market{}}
	cl := &domain.Edge{Market: &domain.Market{State: domain.MarketState{Kind: domain.CurveConcentrated}}}
	bins := &domain.Edge{
		Market: &domain.Market{State: domain.MarketState{Kind: domain.CurveBinArray}},
		Right:  domain.Pool{TransferFee: &transferfee.Config{}},
	}

	assert.Equal(t, uint32(121_000), EstimateComputeUnits([]Step{{Edge: cp}, {Edge: cp}}))
	assert.Equal(t, uint32(319_000), EstimateComputeUnits([]Step{{Edge: cp}, {Edge: cl}, {Edge: bins}}))

	many := make([]Step, 20)
	for i := range many {
		many[i].Edge = bins
	}
	assert.Equal(t, uint32(MaxComputeUnits), EstimateComputeUnits(many))
}

func TestPercentile(t *testing.T) {
	sorted := []uint64{100, 200, 300, 400, 500}
	assert.Equal(t, uint64(300), percentile(sorted, 50))
	assert.Equal(t, uint64(400), percentile(sorted, 75))
	assert.Equal(t, uint64(100), percentile(sorted, 0))
	assert.Equal(t, uint64(500), percentile(sorted, 100))
	assert.Zero(t, percentile(nil, 50))
}

func TestEstimateBudget(t *testing.T) {
	market := solana.NewWallet().PublicKey()
	steps := []Step{
		{Edge: &domain.Edge{}, Accounts: StepAccounts{Market: market}},
		{Edge: &domain.Edge{}, Accounts: StepAccounts{Market: market}},
	}

	s := &sampler{fees: []uint64{5_000, 1_000, 3_000, 2_000, 4_000}}
	b := EstimateBudget(context.Background(), steps, s, UrgencyMedium)
	assert.Equal(t, uint64(4_000), b.FeePerCU)
	assert.Equal(t, 5, b.SampleCount)
	assert.Equal(t, uint64(484), b.PriorityFee)
	assert.Equal(t, []solana.PublicKey{market}, s.accounts, "accounts are deduplicated")

	s = &sampler{fees: []uint64{1, 2}}
	assert.Equal(t, uint64(minFeePerCU), EstimateBudget(context.Background(), steps, s, UrgencyLow).FeePerCU)

	s = &sampler{err: errors.New("rpc")}
	b = EstimateBudget(context.Background(), steps, s, UrgencyHigh)
	assert.Equal(t, DefaultFees[UrgencyHigh], b.FeePerCU)
	assert.Zero(t, b.SampleCount)

	b = EstimateBudget(context.Background(), steps, nil, UrgencyLow)
	assert.Equal(t, uint64(121), b.PriorityFee)
}

func TestExecuteCarriesBudget(t *testing.T) {
	f := newFixture(t)
	inv := &registryInvoker{reg: f.reg, clock: f.clock, keep: 10_000}
	collab := f.collab(inv, f.funded(f.path.StartAmount))
	collab.Fees = &sampler{fees: []uint64{50_000}}

	report, err := Execute(context.Background(), f.path, f.reg, collab)
	require.NoError(t, err)
	assert.Equal(t, uint32(121_000), report.Budget.ComputeUnits)
	assert.Equal(t, uint64(50_000), report.Budget.FeePerCU)
}
