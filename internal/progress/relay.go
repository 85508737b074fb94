package progress

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/SkelleTu/UltraPix/internal/infra"
)

// RedisRelay fans envelopes out across API instances. Broadcast publishes to
// a Redis channel; Run forwards everything received on that channel to the
// local sink, so every instance's subscribers see every job.
type RedisRelay struct {
	client  *redis.Client
	channel string
	local   Sink
	logger  infra.Logger
}

func NewRedisRelay(client *redis.Client, channel string, local Sink, logger infra.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		local:   local,
		logger:  logger.With().Str("component", "progress_relay").Str("channel", channel).Logger(),
	}
}

func (r *RedisRelay) Broadcast(ctx context.Context, payload []byte) error {
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	return nil
}

// Run blocks until ctx is done or the subscription breaks.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		_ = sub.Close()
	}()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.logger.Info().Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription to %s closed", r.channel)
			}
			_ = r.local.Broadcast(ctx, []byte(msg.Payload))
		}
	}
}
