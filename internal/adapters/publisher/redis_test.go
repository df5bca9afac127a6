package publisher

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/domain"
)

func TestDisabledPublisherIsNoop(t *testing.T) {
	p := &RedisPublisher{conf: &config.PublisherConfig{Channel: "arb:opportunities"}}
	require.NoError(t, p.Start())
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), &domain.Opportunity{ID: "x"}))
	assert.NoError(t, p.Stop())
}

func TestEncodeOpportunity(t *testing.T) {
	sol, usdc := solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()
	opp := &domain.Opportunity{
		ID:         "opp-1",
		ScanID:     "scan-1",
		DetectedAt: time.Unix(1_700_000_000, 0).UTC(),
		Clock:      domain.Clock{Slot: 9},
		Strategy:   "cross",
		Tokens:     []domain.TokenID{sol, usdc, sol},
		Path: &domain.ArbitragePath{
			Edges:       []domain.Edge{{Left: domain.Pool{Mint: sol}, Right: domain.Pool{Mint: usdc}}},
			StartAmount: 100,
			FinalAmount: 150,
			Profit:      big.NewInt(50),
		},
	}
	payload, err := encode(opp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, sonic.Unmarshal(payload, &decoded))
	assert.Equal(t, "opp-1", decoded["id"])
	assert.Equal(t, "cross", decoded["strategy"])
	path := decoded["path"].(map[string]any)
	assert.EqualValues(t, 50, path["profit"])
}

func TestStreamName(t *testing.T) {
	assert.Equal(t, "arb:opportunities:stream", StreamName("arb:opportunities"))
}
