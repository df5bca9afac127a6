package config

import (
	"github.com/andrew-solarstorm/go-packages/common"
)

type PublisherConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Channel       string
}

func (c *PublisherConfig) Key() string {
	return PUBLISHER_CONFIG_KEY
}

func (c *PublisherConfig) Load() error {
	c.RedisAddr = common.GetEnvOrDefault("REDIS_ADDR", "")
	c.RedisPassword = common.GetEnvOrDefault("REDIS_PASSWORD", "")
	c.RedisDB = common.GetEnvOrDefaultInt("REDIS_DB", 0)
	c.Channel = common.GetEnvOrDefault("REDIS_CHANNEL", "arb:opportunities")
	return nil
}

func (c *PublisherConfig) Validate() error {
	return nil
}

// Enabled reports whether opportunities should be published at all.
func (c *PublisherConfig) Enabled() bool {
	return c.RedisAddr != ""
}
