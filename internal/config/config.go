package config

import (
	"errors"
	"fmt"

	"github.com/andrew-solarstorm/go-packages/common"
)

type ServerEnv = string

var (
	DevEnv     ServerEnv = "dev"
	StagingEnv ServerEnv = "staging"
	ProdEnv    ServerEnv = "prod"
)

const (
	GENERAL_CONFIG_KEY   = "general-config"
	RPC_CONFIG_KEY       = "rpc-config"
	ARBITRAGE_CONFIG_KEY = "arbitrage-config"
	SNAPSHOT_CONFIG_KEY  = "snapshot-config"
	VENUES_CONFIG_KEY    = "venues-config"
	PUBLISHER_CONFIG_KEY = "publisher-config"
)

type GeneralConfig struct {
	HTTPPort string
	HTTPHost string
	Env      string
	LogLevel string
	// AdminToken guards the admin routes. Empty disables them.
	AdminToken string
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load() error {
	gc.HTTPPort = common.GetEnvOrDefault("HTTP_PORT", "8080")
	gc.HTTPHost = common.GetEnvOrDefault("HTTP_HOST", "localhost")
	gc.Env = common.GetEnvOrDefault("ENV", "dev")
	gc.LogLevel = common.GetEnvOrDefault("LOG_LEVEL", "INFO")
	gc.AdminToken = common.GetEnvOrDefault("ADMIN_TOKEN", "")
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	if gc.HTTPPort == "" || gc.HTTPHost == "" {
		return errors.New("invalid server config")
	}
	switch gc.Env {
	case DevEnv, StagingEnv, ProdEnv:
	default:
		return fmt.Errorf("unknown ENV %q", gc.Env)
	}
	if gc.Env == ProdEnv && gc.AdminToken != "" && len(gc.AdminToken) < 16 {
		return errors.New("ADMIN_TOKEN must be at least 16 characters in prod")
	}
	return nil
}
