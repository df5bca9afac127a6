package executor

import (
	"context"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/hxuan190/arb-engine/internal/domain"
)

// Compute unit allowances per swap, by curve family.
const (
	cpSwapUnits       = 45_000
	clSwapUnits       = 90_000
	binSwapUnits      = 120_000
	transferFeeUnits  = 15_000
	baseUnits         = 20_000
	computeUnitBuffer = 1.1
	MaxComputeUnits   = 1_400_000

	minFeePerCU = 100
)

// Urgency picks the percentile of recent priority fees a cycle bids.
type Urgency uint8

const (
	UrgencyLow Urgency = iota
	UrgencyMedium
	UrgencyHigh
	UrgencyExtreme
)

// DefaultFees are used when no recent fees are available, in microLamports
// per compute unit.
var DefaultFees = map[Urgency]uint64{
	UrgencyLow:     1_000,
	UrgencyMedium:  10_000,
	UrgencyHigh:    100_000,
	UrgencyExtreme: 1_000_000,
}

func (u Urgency) percentile() int {
	switch u {
	case UrgencyLow:
		return 50
	case UrgencyHigh:
		return 90
	case UrgencyExtreme:
		return 99
	default:
		return 75
	}
}

// FeeSampler reports recent non-zero prioritization fees paid on accounts.
type FeeSampler interface {
	RecentPriorityFees(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error)
}

// Budget is the compute and priority fee a cycle transaction would carry.
type Budget struct {
	ComputeUnits uint32  `json:"computeUnits"`
	FeePerCU     uint64  `json:"feePerCu"`
	Urgency      Urgency `json:"urgency"`
	SampleCount  int     `json:"sampleCount"`
	// PriorityFee is the total in lamports.
	PriorityFee uint64 `json:"priorityFee"`
}

func stepUnits(e *domain.Edge) uint32 {
	var units uint32
	switch {
	case e.Market != nil && e.Market.State.Kind == domain.CurveBinArray:
		units = binSwapUnits
	case e.Market != nil && e.Market.State.Kind == domain.CurveConcentrated:
		units = clSwapUnits
	default:
		units = cpSwapUnits
	}
	if e.Left.TransferFee != nil {
		units += transferFeeUnits
	}
	if e.Right.TransferFee != nil {
		units += transferFeeUnits
	}
	return units
}

// EstimateComputeUnits sizes the compute budget of a transaction running
// every step, with a 10% buffer.
func EstimateComputeUnits(steps []Step) uint32 {
	total := uint32(baseUnits)
	for i := range steps {
		if steps[i].Edge != nil {
			total += stepUnits(steps[i].Edge)
		} else {
			total += cpSwapUnits
		}
	}
	return min(uint32(float64(total)*computeUnitBuffer), MaxComputeUnits)
}

func percentile(sorted []uint64, p int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	k := float64(p) / 100 * float64(len(sorted)-1)
	f := int(k)
	c := min(f+1, len(sorted)-1)
	d := k - float64(f)
	return uint64(float64(sorted[f])*(1-d) + float64(sorted[c])*d)
}

// writableAccounts are the accounts whose fee market the steps compete in.
func writableAccounts(steps []Step) []solana.PublicKey {
	seen := make(map[solana.PublicKey]struct{}, len(steps)*3)
	out := make([]solana.PublicKey, 0, len(steps)*3)
	for i := range steps {
		for _, acc := range []solana.PublicKey{steps[i].Accounts.Market, steps[i].Accounts.InputVault, steps[i].Accounts.OutputVault} {
			if acc.IsZero() {
				continue
			}
			if _, ok := seen[acc]; ok {
				continue
			}
			seen[acc] = struct{}{}
			out = append(out, acc)
		}
	}
	return out
}

// EstimateBudget prices the steps at the urgency's percentile of recent
// fees. A nil sampler or a failed sample falls back to DefaultFees.
func EstimateBudget(ctx context.Context, steps []Step, sampler FeeSampler, urgency Urgency) Budget {
	b := Budget{
		ComputeUnits: EstimateComputeUnits(steps),
		FeePerCU:     DefaultFees[urgency],
		Urgency:      urgency,
	}
	if sampler != nil {
		fees, err := sampler.RecentPriorityFees(ctx, writableAccounts(steps))
		if err == nil && len(fees) > 0 {
			sorted := append([]uint64(nil), fees...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			b.FeePerCU = max(percentile(sorted, urgency.percentile()), minFeePerCU)
			b.SampleCount = len(sorted)
		}
	}
	b.PriorityFee = b.FeePerCU * uint64(b.ComputeUnits) / 1_000_000
	return b
}
