// Package simulation executes swap steps against the in-memory snapshot
// instead of the chain.
package simulation

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/services/executor"
)

// Invoker fills every step at the price the quoter reports for the current
// clock, so a dry run sees the same state changes a scan would.
type Invoker struct {
	quoter executor.Quoter
	clock  executor.ClockSource
}

func NewInvoker(q executor.Quoter, clock executor.ClockSource) *Invoker {
	return &Invoker{quoter: q, clock: clock}
}

func (inv *Invoker) Swap(ctx context.Context, req executor.Step) (uint64, error) {
	if req.Edge == nil {
		return 0, fmt.Errorf("%w: step %d has no edge", common.ErrInvalidAccountData, req.Index)
	}
	clock, err := inv.clock.Now(ctx)
	if err != nil {
		return 0, err
	}
	q, err := inv.quoter.QuoteExactIn(req.Edge, req.AmountIn, clock)
	if err != nil {
		return 0, err
	}
	if q.PartialFill {
		return 0, fmt.Errorf("%w: partial fill of %d", common.ErrInsufficientLiquidity, req.AmountIn)
	}
	if q.AmountOut < req.MinOut {
		return 0, fmt.Errorf("%w: simulated %d, limit %d", common.ErrSlippageExceeded, q.AmountOut, req.MinOut)
	}

	log.Debug().
		Int("step", req.Index).
		Str("edge", req.Edge.String()).
		Uint64("in", req.AmountIn).
		Uint64("out", q.AmountOut).
		Uint64("slot", clock.Slot).
		Msg("[simulation] swap filled")
	return q.AmountOut, nil
}

// Balances is a fixed balance sheet for dry runs.
type Balances struct {
	Default uint64
}

func (b Balances) TokenBalance(context.Context, solana.PublicKey) (uint64, error) {
	return b.Default, nil
}
