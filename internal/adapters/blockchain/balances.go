package blockchain

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// BalanceReader reads SPL token balances over RPC.
type BalanceReader struct {
	client *rpc.Client
}

func NewBalanceReader(rpcURL string) *BalanceReader {
	return &BalanceReader{client: rpc.New(rpcURL)}
}

func (r *BalanceReader) TokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := r.client.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		// a missing associated account holds nothing
		if errors.Is(err, rpc.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if res == nil || res.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("token account %s: bad amount %q: %w", account, res.Value.Amount, err)
	}
	return amount, nil
}
