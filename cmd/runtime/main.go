package main

import (
	"strings"

	envutil "github.com/andrew-solarstorm/go-packages/common"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"
	"github.com/thehyperflames/yellowstone"

	"github.com/hxuan190/arb-engine/internal/adapters/blockchain"
	"github.com/hxuan190/arb-engine/internal/adapters/publisher"
	"github.com/hxuan190/arb-engine/internal/common"
	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/http"
	"github.com/hxuan190/arb-engine/internal/services/market"
	"github.com/hxuan190/arb-engine/internal/services/scanner"
	"github.com/hxuan190/arb-engine/internal/services/snapshot"
)

// @title Arb Engine API
// @version 1.0-beta
// @description Cyclic arbitrage detection across Solana constant-product, concentrated-liquidity and bin-array markets.
// @description
// @description ## - Features
// @description - **Cycle Search**: Two-hop cross-venue and triangular cycles over every ready market
// @description - **Exact Quoting**: Integer-exact swap math per curve family, Token-2022 transfer fees on both legs
// @description - **Live Snapshot**: Immutable edge snapshots rebuilt as market state changes
// @description - **Opportunity Feed**: Found cycles published over Redis pub/sub and a capped stream
// @description
// @description ## - Usage Tips
// @description - Amounts are in base units of the start token
// @description - `minProfit` may be negative to inspect near-miss cycles
// @description - Identical queries within one snapshot version and slot are served from cache
// @description
// @BasePath /
// @schemes http https
// @tag.name arbitrage
// @tag.description Search the current snapshot for profitable cycles
// @tag.name markets
// @tag.description Inspect and maintain the market table

func main() {
	common.InitRuntimeForHFT()

	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}
	setLogLevel(envutil.GetEnvOrDefault("LOG_LEVEL", "INFO"))

	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.RPCConfig{},
		&yellowstone.Config{},
		&config.ArbitrageConfig{},
		&config.SnapshotConfig{},
		&config.VenuesConfig{},
		&config.PublisherConfig{},
	)

	dic, err := container.New(
		conf,

		&yellowstone.Service{},
		&market.Registry{},
		&blockchain.ClockCacheService{},
		&snapshot.Service{},
		&publisher.RedisPublisher{},
		&scanner.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
