package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/feedcache"
	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// RelationshipService 关系链服务
type RelationshipService interface {
	Follow(ctx context.Context, fromUserID, toUserID string) error
	Unfollow(ctx context.Context, fromUserID, toUserID string) error
	IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error)
	ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]*model.User, error)
	ListFans(ctx context.Context, userID string, page, pageSize int) ([]*model.User, error)
}

type relationshipService struct {
	userRepo      repository.UserRepository
	followRepo    repository.FollowRepository
	fanRepo       repository.FanRepository
	timelineRepo  repository.TimelineRepository
	notifications NotificationService
	cache         *feedcache.Cache
}

func NewRelationshipService(
	userRepo repository.UserRepository,
	followRepo repository.FollowRepository,
	fanRepo repository.FanRepository,
	timelineRepo repository.TimelineRepository,
	notifications NotificationService,
	cache *feedcache.Cache,
) RelationshipService {
	return &relationshipService{
		userRepo:      userRepo,
		followRepo:    followRepo,
		fanRepo:       fanRepo,
		timelineRepo:  timelineRepo,
		notifications: notifications,
		cache:         cache,
	}
}

// Follow 关注关系、粉丝冗余与双方计数同事务写入；重复关注不报错
func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	if err := s.requireUsers(ctx, fromUserID, toUserID); err != nil {
		return err
	}
	created, err := s.followRepo.Create(ctx, fromUserID, toUserID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	metrics.Actions.WithLabelValues("follow").Inc()
	s.cache.Delete(ctx, feedcache.UserKey(fromUserID), feedcache.UserKey(toUserID))
	s.notifications.Send(&model.Notification{Type: model.NotifyFollow, FromUserID: fromUserID, ToUserID: toUserID})
	return nil
}

func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID string) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	removed, err := s.followRepo.Delete(ctx, fromUserID, toUserID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	metrics.Actions.WithLabelValues("unfollow").Inc()
	s.cache.Delete(ctx, feedcache.UserKey(fromUserID), feedcache.UserKey(toUserID))
	// 取关后把对方的帖子从自己的时间线移除
	if err := s.timelineRepo.RemoveAuthor(ctx, fromUserID, toUserID); err != nil {
		logger.Warn("prune timeline failed", zap.String("user", fromUserID), zap.String("author", toUserID), zap.Error(err))
	}
	return nil
}

func (s *relationshipService) IsFollowing(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	return s.followRepo.Exists(ctx, fromUserID, toUserID)
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID string, page, pageSize int) ([]*model.User, error) {
	offset, limit := pageWindow(page, pageSize)
	items, err := s.followRepo.ListFollowings(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.FolloweeID
	}
	return s.cache.LoadUsers(ctx, ids, s.userRepo.GetByIDs)
}

func (s *relationshipService) ListFans(ctx context.Context, userID string, page, pageSize int) ([]*model.User, error) {
	offset, limit := pageWindow(page, pageSize)
	items, err := s.fanRepo.ListFans(ctx, userID, offset, limit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.FanID
	}
	return s.cache.LoadUsers(ctx, ids, s.userRepo.GetByIDs)
}

func (s *relationshipService) requireUsers(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if _, err := s.userRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrUserNotFound
			}
			return err
		}
	}
	return nil
}

// pageWindow page 从 1 开始，默认每页 10 条
func pageWindow(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}
