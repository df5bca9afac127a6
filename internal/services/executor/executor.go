// Package executor turns a chosen cycle into swap steps and runs them
// through caller-supplied collaborators.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/hxuan190/arb-engine/internal/amm/mathutil"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/domain"
	"github.com/hxuan190/arb-engine/internal/services/market"
)

// Quoter prices one step. *market.Registry satisfies it.
type Quoter interface {
	QuoteExactIn(edge *domain.Edge, amountIn uint64, clock domain.Clock) (market.EdgeQuote, error)
}

// SwapInvoker performs one swap and reports what reached the user's output
// account. Implementations must refuse to deliver less than req.MinOut.
type SwapInvoker interface {
	Swap(ctx context.Context, req Step) (uint64, error)
}

// BalanceReader reads a token account balance in base units.
type BalanceReader interface {
	TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// ClockSource returns the current chain clock.
type ClockSource interface {
	Now(ctx context.Context) (domain.Clock, error)
}

// Collaborators is everything Execute needs from the host.
type Collaborators struct {
	Payer       solana.PublicKey
	Invoker     SwapInvoker
	Balances    BalanceReader
	Clock       ClockSource
	SlippageBps uint16
	// Fees is optional. Without it the budget uses DefaultFees.
	Fees    FeeSampler
	Urgency Urgency
}

type Step struct {
	Index       int              `json:"index"`
	Venue       domain.VenueID   `json:"venue"`
	Direction   domain.Direction `json:"direction"`
	AmountIn    uint64           `json:"amountIn"`
	ExpectedOut uint64           `json:"expectedOut"`
	MinOut      uint64           `json:"minOut"`
	Accounts    StepAccounts     `json:"accounts"`
	Edge        *domain.Edge     `json:"-"`
}

type StepResult struct {
	Step
	Delivered uint64 `json:"delivered"`
}

type Report struct {
	ID          string        `json:"id"`
	Clock       domain.Clock  `json:"clock"`
	Steps       []StepResult  `json:"steps"`
	StartAmount uint64        `json:"startAmount"`
	FinalAmount uint64        `json:"finalAmount"`
	Profit      *big.Int      `json:"profit"`
	Budget      Budget        `json:"budget"`
	Elapsed     time.Duration `json:"elapsed"`
}

// MinOut applies slippage tolerance to an expected output, rounding down.
func MinOut(expected uint64, slippageBps uint16) uint64 {
	if slippageBps >= 10_000 {
		return 0
	}
	out, err := mathutil.MulDivU64(expected, 10_000-uint64(slippageBps), 10_000)
	if err != nil {
		return 0
	}
	return out
}

func checkPath(path *domain.ArbitragePath) error {
	if path == nil || len(path.Edges) == 0 {
		return fmt.Errorf("%w: empty path", common.ErrInvalidAccountData)
	}
	if !path.Closed() {
		return fmt.Errorf("%w: path does not return to %s", common.ErrInvalidAccountData, path.StartToken())
	}
	return nil
}

func buildStep(q Quoter, clock domain.Clock, payer solana.PublicKey, i int, e *domain.Edge, amountIn uint64, slippageBps uint16) (Step, error) {
	quote, err := q.QuoteExactIn(e, amountIn, clock)
	if err != nil {
		return Step{}, fmt.Errorf("step %d (%s): %w", i, e, err)
	}
	if quote.PartialFill {
		return Step{}, fmt.Errorf("step %d (%s): %w: only part of %d fills", i, e, common.ErrInsufficientLiquidity, amountIn)
	}
	acc, err := accountsFor(payer, e)
	if err != nil {
		return Step{}, fmt.Errorf("step %d: derive accounts: %w", i, err)
	}
	return Step{
		Index:       i,
		Venue:       e.Venue,
		Direction:   e.Direction,
		AmountIn:    amountIn,
		ExpectedOut: quote.AmountOut,
		MinOut:      MinOut(quote.AmountOut, slippageBps),
		Accounts:    acc,
		Edge:        e,
	}, nil
}

// Plan lays out the steps of path as quoted at clock, each step consuming
// the previous step's expected output.
func Plan(path *domain.ArbitragePath, q Quoter, clock domain.Clock, payer solana.PublicKey, slippageBps uint16) ([]Step, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	steps := make([]Step, 0, len(path.Edges))
	amount := path.StartAmount
	for i := range path.Edges {
		step, err := buildStep(q, clock, payer, i, &path.Edges[i], amount, slippageBps)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
		amount = step.ExpectedOut
	}
	return steps, nil
}

// Execute runs path step by step. Each step is re-quoted on the amount the
// previous step actually delivered.
func Execute(ctx context.Context, path *domain.ArbitragePath, q Quoter, collab Collaborators) (*Report, error) {
	if err := checkPath(path); err != nil {
		return nil, err
	}
	if collab.Invoker == nil || collab.Balances == nil || collab.Clock == nil {
		return nil, fmt.Errorf("executor: missing collaborator")
	}
	started := time.Now()

	clock, err := collab.Clock.Now(ctx)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}

	first := &path.Edges[0]
	source, err := AssociatedTokenAccount(collab.Payer, first.Left.Mint, TokenProgramOf(first.Left))
	if err != nil {
		return nil, fmt.Errorf("derive source account: %w", err)
	}
	balance, err := collab.Balances.TokenBalance(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("read balance of %s: %w", source, err)
	}
	if balance < path.StartAmount {
		return nil, fmt.Errorf("%w: %s holds %d, need %d", common.ErrInsufficientFunds, source, balance, path.StartAmount)
	}

	planned, err := Plan(path, q, clock, collab.Payer, collab.SlippageBps)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ID:          uuid.NewString(),
		Clock:       clock,
		Steps:       make([]StepResult, 0, len(path.Edges)),
		StartAmount: path.StartAmount,
		Budget:      EstimateBudget(ctx, planned, collab.Fees, collab.Urgency),
	}

	current := path.StartAmount
	for i := range path.Edges {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		step, err := buildStep(q, clock, collab.Payer, i, &path.Edges[i], current, collab.SlippageBps)
		if err != nil {
			return report, err
		}
		delivered, err := collab.Invoker.Swap(ctx, step)
		if err != nil {
			return report, fmt.Errorf("step %d (%s): swap: %w", i, step.Edge, err)
		}
		if delivered < step.MinOut {
			return report, fmt.Errorf("step %d (%s): %w: got %d, limit %d", i, step.Edge, common.ErrSlippageExceeded, delivered, step.MinOut)
		}
		report.Steps = append(report.Steps, StepResult{Step: step, Delivered: delivered})
		current = delivered
	}

	report.FinalAmount = current
	report.Profit = mathutil.SignedDiff(current, path.StartAmount)
	report.Elapsed = time.Since(started)
	return report, nil
}
