package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	ListByPost(ctx context.Context, postID string, limit int) ([]*model.Comment, error)
	Delete(ctx context.Context, id string) error
}

type commentRepository struct{ db *gorm.DB }

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

// Create 写评论并累加帖子评论数；帖子不存在返回 ErrNotFound
func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Post{}).Where("id = ?", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(c).Error
	})
}

func (r *commentRepository) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// ListByPost 按时间正序
func (r *commentRepository) ListByPost(ctx context.Context, postID string, limit int) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).Where("post_id = ?", postID).
		Order("created_at ASC").
		Limit(clampLimit(limit, 200, 1000)).
		Find(&res).Error
	return res, err
}

func (r *commentRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var c model.Comment
		if err := tx.Where("id = ?", id).First(&c).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Delete(&model.Comment{}, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).Where("id = ? AND comment_count > 0", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count - 1")).Error
	})
}
