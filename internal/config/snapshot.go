package config

import (
	"github.com/andrew-solarstorm/go-packages/common"
)

type SnapshotConfig struct {
	// DBPath is the BoltDB file markets are persisted to.
	// Default: "./data/markets.db"
	DBPath string

	// PersistenceEnabled controls whether markets are written to disk.
	// Default: true
	PersistenceEnabled bool

	// PersistInterval is how often dirty markets are batch-saved (seconds).
	// Default: 30
	PersistInterval int

	// SeedFile is an optional JSON list of markets loaded at start.
	SeedFile string
}

func (c *SnapshotConfig) Key() string {
	return SNAPSHOT_CONFIG_KEY
}

func (c *SnapshotConfig) Load() error {
	c.DBPath = common.GetEnvOrDefault("SNAPSHOT_DB_PATH", "./data/markets.db")
	c.PersistenceEnabled = common.GetEnvOrDefault("SNAPSHOT_PERSISTENCE_ENABLED", "true") == "true"
	c.PersistInterval = common.GetEnvOrDefaultInt("SNAPSHOT_PERSIST_INTERVAL", 30)
	c.SeedFile = common.GetEnvOrDefault("SNAPSHOT_SEED_FILE", "")
	return nil
}

func (c *SnapshotConfig) Validate() error {
	return nil
}
