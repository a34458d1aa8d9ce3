package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// DefaultChannel redis 通知频道
const DefaultChannel = "oblivion:notifications"

// RedisBroker 多实例部署时经 redis pub/sub 转发，再由各实例的 Hub 本地投递
type RedisBroker struct {
	client  *redis.Client
	hub     *Hub
	channel string
}

func NewRedisBroker(client *redis.Client, hub *Hub, channel string) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{client: client, hub: hub, channel: channel}
}

func (b *RedisBroker) Publish(ctx context.Context, n *model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

func (b *RedisBroker) Subscribe(userID string) (<-chan *model.Notification, func()) {
	return b.hub.Subscribe(userID)
}

// Run 订阅频道直到 ctx 结束；ready 在订阅确认后关闭（可为 nil）
func (b *RedisBroker) Run(ctx context.Context, ready chan<- struct{}) error {
	ps := b.client.Subscribe(ctx, b.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	if ready != nil {
		close(ready)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var n model.Notification
			if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
				logger.Warn("drop malformed notification", zap.Error(err))
				continue
			}
			b.hub.Deliver(&n)
		}
	}
}
