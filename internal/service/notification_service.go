package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/realtime"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// NotificationService 站内通知：落库 + 实时推送
type NotificationService interface {
	// Create 同步落库并推送；自己给自己的通知直接忽略
	Create(ctx context.Context, n *model.Notification) error
	// Send 业务路径使用，dispatcher 启动后异步投递
	Send(n *model.Notification)
	List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
	Subscribe(userID string) (<-chan *model.Notification, func())
	Start(workers int) func(context.Context) error
}

type notificationService struct {
	repo       repository.NotificationRepository
	broker     realtime.Broker
	dispatcher *NotificationDispatcher
	async      atomic.Bool
}

func NewNotificationService(repo repository.NotificationRepository, broker realtime.Broker, queueSize int) NotificationService {
	s := &notificationService{repo: repo, broker: broker}
	s.dispatcher = NewNotificationDispatcher(s.Create, queueSize)
	return s
}

func (s *notificationService) Create(ctx context.Context, n *model.Notification) error {
	if n == nil || n.ToUserID == "" || n.FromUserID == n.ToUserID {
		return nil
	}
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if err := s.repo.Create(ctx, n); err != nil {
		metrics.NotificationsDelivered.WithLabelValues(string(n.Type), "error").Inc()
		return err
	}
	metrics.NotificationsDelivered.WithLabelValues(string(n.Type), "stored").Inc()

	if s.broker != nil {
		if err := s.broker.Publish(ctx, n); err != nil {
			logger.Warn("publish notification failed", zap.String("id", n.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *notificationService) Send(n *model.Notification) {
	if n == nil || n.ToUserID == "" || n.FromUserID == n.ToUserID {
		return
	}
	if s.async.Load() {
		s.dispatcher.Enqueue(n)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Create(ctx, n); err != nil {
		logger.Warn("create notification failed", zap.String("type", string(n.Type)), zap.Error(err))
	}
}

func (s *notificationService) Start(workers int) func(context.Context) error {
	stop := s.dispatcher.Start(workers)
	s.async.Store(true)
	return func(ctx context.Context) error {
		s.async.Store(false)
		return stop(ctx)
	}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*model.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *notificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *notificationService) MarkRead(ctx context.Context, userID, id string) error {
	err := s.repo.MarkRead(ctx, userID, id)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *notificationService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	return s.repo.DeleteAll(ctx, userID)
}

// Prune 清理过期的已读通知
func (s *notificationService) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.repo.DeleteReadBefore(ctx, time.Now().Add(-olderThan))
}

func (s *notificationService) Subscribe(userID string) (<-chan *model.Notification, func()) {
	if s.broker == nil {
		ch := make(chan *model.Notification)
		close(ch)
		return ch, func() {}
	}
	return s.broker.Subscribe(userID)
}
