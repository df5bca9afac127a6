package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// PriorityFeeSampler reads recent prioritization fees over RPC.
type PriorityFeeSampler struct {
	client *rpc.Client
}

func NewPriorityFeeSampler(rpcURL string) *PriorityFeeSampler {
	return &PriorityFeeSampler{client: rpc.New(rpcURL)}
}

// RecentPriorityFees returns the non-zero fees, in microLamports per compute
// unit, paid in recent slots by transactions writing to accounts.
func (s *PriorityFeeSampler) RecentPriorityFees(ctx context.Context, accounts []solana.PublicKey) ([]uint64, error) {
	recent, err := s.client.GetRecentPrioritizationFees(ctx, accounts)
	if err != nil {
		return nil, err
	}
	fees := make([]uint64, 0, len(recent))
	for _, f := range recent {
		if f.PrioritizationFee > 0 {
			fees = append(fees, f.PrioritizationFee)
		}
	}
	return fees, nil
}
