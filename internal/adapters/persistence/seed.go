package persistence

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"github.com/hxuan190/arb-engine/internal/domain"
)

// DecodeMarkets parses a JSON array of stored markets.
func DecodeMarkets(data []byte) ([]*domain.Market, error) {
	var stored []StoredMarket
	if err := sonic.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}
	markets := make([]*domain.Market, 0, len(stored))
	for i := range stored {
		m, err := StoredToMarket(&stored[i])
		if err != nil {
			return nil, fmt.Errorf("market %d (%s): %w", i, stored[i].Address, err)
		}
		markets = append(markets, m)
	}
	return markets, nil
}

// LoadSeedFile reads a snapshot seed written as a JSON array of stored
// markets.
func LoadSeedFile(path string) ([]*domain.Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeMarkets(data)
}
