package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/private-swap/internal/constants"
)

// PubSubManager publishes flow status to Redis subscribers.
type PubSubManager struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewPubSubManager(client *redis.Client, logger *logrus.Logger) *PubSubManager {
	if logger == nil {
		logger = logrus.New()
	}
	return &PubSubManager{client: client, logger: logger}
}

// PoolChannel is the per-pool status channel.
func PoolChannel(pool string) string {
	return fmt.Sprintf("%s:pool:%s", constants.PubSubChannelStatus, pool)
}

// Publish sends ev to the global status channel and, when it names a pool,
// to that pool's channel.
func (p *PubSubManager) Publish(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	channels := []string{constants.PubSubChannelStatus}
	if ev.Pool != "" {
		channels = append(channels, PoolChannel(ev.Pool))
	}

	pipe := p.client.Pipeline()
	for _, channel := range channels {
		pipe.Publish(ctx, channel, data)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Subscribe delivers events from channel to handler until ctx is done.
func (p *PubSubManager) Subscribe(ctx context.Context, channel string, handler func(*Event)) error {
	pubsub := p.client.Subscribe(ctx, channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", channel, err)
	}
	p.logger.WithField("channel", channel).Info("subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				p.logger.WithError(err).Warn("dropping malformed event")
				continue
			}
			handler(&ev)
		}
	}
}
