package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// NotificationDispatcher 本地异步通知投递，请求路径不等待落库
type NotificationDispatcher struct {
	deliver func(ctx context.Context, n *model.Notification) error
	ch      chan *model.Notification
}

func NewNotificationDispatcher(deliver func(ctx context.Context, n *model.Notification) error, queueSize int) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 10000
	}
	return &NotificationDispatcher{deliver: deliver, ch: make(chan *model.Notification, queueSize)}
}

// Start 启动 workers 个消费协程；返回的停止函数会先尽量排空队列
func (d *NotificationDispatcher) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 4
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case n := <-d.ch:
					d.handle(n)
				case <-stopCh:
					return
				}
			}
		}()
	}
	return func(ctx context.Context) error {
		close(stopCh)
		for {
			select {
			case n := <-d.ch:
				d.handle(n)
			case <-ctx.Done():
				return ctx.Err()
			default:
				return nil
			}
		}
	}
}

func (d *NotificationDispatcher) handle(n *model.Notification) {
	metrics.NotificationQueueDepth.Set(float64(len(d.ch)))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.deliver(ctx, n); err != nil {
		logger.Warn("deliver notification failed",
			zap.String("type", string(n.Type)), zap.String("to", n.ToUserID), zap.Error(err))
	}
}

// Enqueue 队列满时丢弃并告警
func (d *NotificationDispatcher) Enqueue(n *model.Notification) bool {
	select {
	case d.ch <- n:
		metrics.NotificationQueueDepth.Set(float64(len(d.ch)))
		return true
	default:
		metrics.NotificationsDelivered.WithLabelValues(string(n.Type), "dropped").Inc()
		logger.Warn("notification queue full, drop", zap.String("type", string(n.Type)), zap.String("to", n.ToUserID))
		return false
	}
}

// QueueLen 当前队列长度（采样值）
func (d *NotificationDispatcher) QueueLen() int { return len(d.ch) }
