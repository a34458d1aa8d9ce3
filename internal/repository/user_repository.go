package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.User, error)
	Update(ctx context.Context, id string, fields map[string]interface{}) error
	Search(ctx context.Context, query string, limit int) ([]*model.User, error)
	ListByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]*model.User, error)
	ListSuggestions(ctx context.Context, exclude []string, limit int) ([]*model.User, error)
	RecountFollows(ctx context.Context) (int64, error)
}

type userRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &userRepository{db: db} }

func (r *userRepository) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// GetByUsername 大小写不敏感
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username_lower = ?", lower(username)).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *userRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	var res []*model.User
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error
	return res, err
}

func (r *userRepository) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Search 用户名或昵称子串匹配
func (r *userRepository) Search(ctx context.Context, query string, limit int) ([]*model.User, error) {
	pattern := likeContains(query)
	var res []*model.User
	err := r.db.WithContext(ctx).
		Where(`username_lower LIKE ? ESCAPE '\' OR LOWER(display_name) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("follower_count DESC").
		Order("username_lower").
		Limit(clampLimit(limit, 20, 100)).
		Find(&res).Error
	return res, err
}

// ListByUsernamePrefix @ 提及补全
func (r *userRepository) ListByUsernamePrefix(ctx context.Context, prefix string, limit int) ([]*model.User, error) {
	q := r.db.WithContext(ctx)
	if prefix != "" {
		q = q.Where(`username_lower LIKE ? ESCAPE '\'`, likePrefix(prefix))
	}
	var res []*model.User
	err := q.Order("username_lower").Limit(clampLimit(limit, 5, 50)).Find(&res).Error
	return res, err
}

func (r *userRepository) ListSuggestions(ctx context.Context, exclude []string, limit int) ([]*model.User, error) {
	q := r.db.WithContext(ctx)
	if len(exclude) > 0 {
		q = q.Where("id NOT IN ?", exclude)
	}
	var res []*model.User
	err := q.Order("follower_count DESC").Order("created_at DESC").
		Limit(clampLimit(limit, 5, 50)).
		Find(&res).Error
	return res, err
}

// RecountFollows 按 follows 表重算计数，修复批量写造成的漂移
func (r *userRepository) RecountFollows(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE users SET
			follower_count = (SELECT COUNT(*) FROM follows WHERE follows.followee_id = users.id),
			following_count = (SELECT COUNT(*) FROM follows WHERE follows.follower_id = users.id)
	`)
	return res.RowsAffected, res.Error
}
