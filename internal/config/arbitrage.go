package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andrew-solarstorm/go-packages/common"
	"github.com/gagliardetto/solana-go"
)

const (
	defaultStartAmount = 1_000_000_000
	defaultMinProfit   = 40_000
	defaultMaxEdges    = 20_000
)

type ArbitrageConfig struct {
	// StartTokens are the roots scanned each tick. Empty means every token.
	StartTokens []solana.PublicKey
	StartAmount uint64
	MinProfit   int64
	// Strategy is one of auto, cross, triangular, both.
	Strategy     string
	MaxEdges     int
	ScanInterval time.Duration
	SlippageBps  uint16
	AutoExecute  bool
}

func (c *ArbitrageConfig) Key() string {
	return ARBITRAGE_CONFIG_KEY
}

func (c *ArbitrageConfig) Load() error {
	c.StartTokens = c.StartTokens[:0]
	for _, p := range strings.Split(common.GetEnvOrDefault("ARB_START_TOKENS", ""), ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		mint, err := solana.PublicKeyFromBase58(p)
		if err != nil {
			return fmt.Errorf("ARB_START_TOKENS %q: %w", p, err)
		}
		c.StartTokens = append(c.StartTokens, mint)
	}

	amount, err := strconv.ParseUint(common.GetEnvOrDefault("ARB_START_AMOUNT", strconv.Itoa(defaultStartAmount)), 10, 64)
	if err != nil {
		return fmt.Errorf("ARB_START_AMOUNT: %w", err)
	}
	c.StartAmount = amount

	minProfit, err := strconv.ParseInt(common.GetEnvOrDefault("ARB_MIN_PROFIT", strconv.Itoa(defaultMinProfit)), 10, 64)
	if err != nil {
		return fmt.Errorf("ARB_MIN_PROFIT: %w", err)
	}
	c.MinProfit = minProfit

	c.Strategy = strings.ToLower(common.GetEnvOrDefault("ARB_STRATEGY", "auto"))
	c.MaxEdges = common.GetEnvOrDefaultInt("ARB_MAX_EDGES", defaultMaxEdges)
	c.ScanInterval = time.Duration(common.GetEnvOrDefaultInt("ARB_SCAN_INTERVAL_MS", 400)) * time.Millisecond
	slippage, err := parseSlippageBps(common.GetEnvOrDefaultInt("ARB_SLIPPAGE_BPS", 50))
	if err != nil {
		return err
	}
	c.SlippageBps = slippage
	c.AutoExecute = common.GetEnvOrDefault("ARB_AUTO_EXECUTE", "false") == "true"
	return c.Validate()
}

func (c *ArbitrageConfig) Validate() error {
	if c.StartAmount == 0 {
		return errors.New("arbitrage start amount must be positive")
	}
	if c.MaxEdges <= 0 {
		return errors.New("arbitrage max edges must be positive")
	}
	if c.ScanInterval <= 0 {
		return errors.New("arbitrage scan interval must be positive")
	}
	if c.SlippageBps > 10_000 {
		return errors.New("arbitrage slippage above 100%")
	}
	switch c.Strategy {
	case "auto", "cross", "triangular", "both":
	default:
		return fmt.Errorf("unknown arbitrage strategy %q", c.Strategy)
	}
	return nil
}

// parseSlippageBps range-checks before narrowing so out-of-range values
// cannot wrap into the valid range.
func parseSlippageBps(bps int) (uint16, error) {
	if bps < 0 || bps > 10_000 {
		return 0, fmt.Errorf("ARB_SLIPPAGE_BPS %d: must be within 0..10000", bps)
	}
	return uint16(bps), nil
}
