// Package publisher fans found opportunities out over Redis pub/sub, with a
// capped stream alongside for late consumers.
package publisher

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/arb-engine/internal/config"
	"github.com/hxuan190/arb-engine/internal/domain"
)

const OPPORTUNITY_PUBLISHER = "opportunity-publisher"

// streamMaxLen bounds the stream via XADD MAXLEN ~.
const streamMaxLen int64 = 10_000

type RedisPublisher struct {
	container.BaseDIInstance

	conf *config.PublisherConfig
	rdb  *redis.Client
}

func (p *RedisPublisher) ID() string {
	return OPPORTUNITY_PUBLISHER
}

func (p *RedisPublisher) Configure(c container.IContainer) error {
	p.conf = c.GetConfig(config.PUBLISHER_CONFIG_KEY).(*config.PublisherConfig)
	return nil
}

func (p *RedisPublisher) Start() error {
	if p.conf == nil || !p.conf.Enabled() {
		log.Info().Msg("[publisher] redis not configured, opportunities stay local")
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     p.conf.RedisAddr,
		Password: p.conf.RedisPassword,
		DB:       p.conf.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis: ping: %w", err)
	}
	p.rdb = rdb

	log.Info().Str("addr", p.conf.RedisAddr).Str("channel", p.conf.Channel).Msg("[publisher] connected to redis")
	return nil
}

func (p *RedisPublisher) Stop() error {
	if p.rdb != nil {
		return p.rdb.Close()
	}
	return nil
}

func (p *RedisPublisher) Enabled() bool {
	return p.rdb != nil
}

func StreamName(channel string) string {
	return channel + ":stream"
}

func encode(opp *domain.Opportunity) ([]byte, error) {
	payload, err := sonic.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("marshal opportunity %s: %w", opp.ID, err)
	}
	return payload, nil
}

// Publish sends opp to the channel and appends it to the stream. It is a
// no-op when redis is not configured.
func (p *RedisPublisher) Publish(ctx context.Context, opp *domain.Opportunity) error {
	if p.rdb == nil {
		return nil
	}
	payload, err := encode(opp)
	if err != nil {
		return err
	}

	channel := p.conf.Channel
	_, err = p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Publish(ctx, channel, payload)
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: StreamName(channel),
			MaxLen: streamMaxLen,
			Approx: true,
			Values: map[string]any{"id": opp.ID, "payload": payload},
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}
