package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

// ErrCannotRepostOwn 不能转发自己的帖子
var ErrCannotRepostOwn = errors.New("cannot repost own post")

// RepostResult 转发切换结果
type RepostResult struct {
	Reposted    bool
	RepostCount int64
	Repost      *model.Post // 新建的转发帖；取消转发时为被删除的那条
}

type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	GetByIDs(ctx context.Context, ids []string) ([]*model.Post, error)
	ListByAuthor(ctx context.Context, authorID string, before time.Time, limit int) ([]*model.Post, error)
	ListRecent(ctx context.Context, before time.Time, limit int) ([]*model.Post, error)
	Search(ctx context.Context, query string, limit int) ([]*model.Post, error)
	ListContaining(ctx context.Context, token string, offset, limit int) ([]*model.Post, error)
	ListTrending(ctx context.Context, since time.Time, limit int) ([]*model.Post, error)
	ListTextsSince(ctx context.Context, since time.Time, limit int) ([]string, error)
	ToggleLike(ctx context.Context, postID, userID string) (bool, int64, error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	ToggleRepost(ctx context.Context, original *model.Post, reposter model.Author) (*RepostResult, error)
	HasReposted(ctx context.Context, postID, userID string) (bool, error)
	Delete(ctx context.Context, id string) error
	UpdateAuthor(ctx context.Context, a model.Author) error
	RecountEngagement(ctx context.Context) (int64, error)
}

type postRepository struct{ db *gorm.DB }

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetByIDs 按传入顺序返回，缺失的跳过
func (r *postRepository) GetByIDs(ctx context.Context, ids []string) ([]*model.Post, error) {
	if len(ids) == 0 {
		return []*model.Post{}, nil
	}
	var rows []*model.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Post, len(rows))
	for _, p := range rows {
		byID[p.ID] = p
	}
	res := make([]*model.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *postRepository) ListByAuthor(ctx context.Context, authorID string, before time.Time, limit int) ([]*model.Post, error) {
	q := r.db.WithContext(ctx).Where("author_id = ?", authorID)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	var res []*model.Post
	err := q.Order("created_at DESC").Limit(clampLimit(limit, 20, 100)).Find(&res).Error
	return res, err
}

func (r *postRepository) ListRecent(ctx context.Context, before time.Time, limit int) ([]*model.Post, error) {
	q := r.db.WithContext(ctx)
	if !before.IsZero() {
		q = q.Where("created_at < ?", before)
	}
	var res []*model.Post
	err := q.Order("created_at DESC").Limit(clampLimit(limit, 20, 100)).Find(&res).Error
	return res, err
}

// Search 帖子正文子串匹配（转发帖匹配原文）
func (r *postRepository) Search(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	pattern := likeContains(query)
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where(`LOWER(text) LIKE ? ESCAPE '\' OR LOWER(original_text) LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("created_at DESC").
		Limit(clampLimit(limit, 20, 100)).
		Find(&res).Error
	return res, err
}

// ListContaining 粗筛包含 token 的帖子，调用方再做精确匹配；offset 用于继续翻页
func (r *postRepository) ListContaining(ctx context.Context, token string, offset, limit int) ([]*model.Post, error) {
	var res []*model.Post
	if offset < 0 {
		offset = 0
	}
	err := r.db.WithContext(ctx).
		Where(`LOWER(text) LIKE ? ESCAPE '\'`, likeContains(token)).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(clampLimit(limit, 50, 500)).
		Find(&res).Error
	return res, err
}

// ListTrending since 之后的原创帖，按点赞+转发降序
func (r *postRepository) ListTrending(ctx context.Context, since time.Time, limit int) ([]*model.Post, error) {
	var res []*model.Post
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND (repost_of_id = '' OR repost_of_id IS NULL)", since).
		Order("like_count + repost_count DESC").
		Order("created_at DESC").
		Limit(clampLimit(limit, 20, 100)).
		Find(&res).Error
	return res, err
}

func (r *postRepository) ListTextsSince(ctx context.Context, since time.Time, limit int) ([]string, error) {
	var texts []string
	err := r.db.WithContext(ctx).Model(&model.Post{}).
		Where("created_at >= ? AND text <> ''", since).
		Order("created_at DESC").
		Limit(clampLimit(limit, 1000, 10000)).
		Pluck("text", &texts).Error
	return texts, err
}

// ToggleLike 事务内先查后写：已赞则取消并减计数，否则新增并加计数
func (r *postRepository) ToggleLike(ctx context.Context, postID, userID string) (bool, int64, error) {
	var liked bool
	var count int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post model.Post
		if err := tx.Select("id").Where("id = ?", postID).First(&post).Error; err != nil {
			return notFound(err)
		}
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := tx.Model(&model.Post{}).Where("id = ? AND like_count > 0", postID).
				UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error; err != nil {
				return err
			}
		} else {
			like := &model.Like{ID: uuid.New().String(), PostID: postID, UserID: userID}
			ins := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(like)
			if ins.Error != nil {
				return ins.Error
			}
			if ins.RowsAffected > 0 {
				if err := tx.Model(&model.Post{}).Where("id = ?", postID).
					UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error; err != nil {
					return err
				}
			}
			liked = true
		}
		var err error
		count, err = counterValue(tx, postID, "like_count")
		return err
	})
	return liked, count, err
}

func (r *postRepository) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("post_id = ? AND user_id = ?", postID, userID).Count(&cnt).Error
	return cnt > 0, err
}

func (r *postRepository) LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	res := make(map[string]bool, len(postIDs))
	if userID == "" || len(postIDs) == 0 {
		return res, nil
	}
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		res[id] = true
	}
	return res, nil
}

// ToggleRepost 已转发则删除转发记录与转发帖，否则生成冗余原帖内容的新帖
func (r *postRepository) ToggleRepost(ctx context.Context, original *model.Post, reposter model.Author) (*RepostResult, error) {
	if original.AuthorID == reposter.ID {
		return nil, ErrCannotRepostOwn
	}
	out := &RepostResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Repost
		err := tx.Where("post_id = ? AND user_id = ?", original.ID, reposter.ID).First(&existing).Error
		switch {
		case err == nil:
			var repostPost model.Post
			if err := tx.Where("id = ?", existing.RepostPostID).First(&repostPost).Error; err == nil {
				out.Repost = &repostPost
			}
			if err := tx.Delete(&model.Repost{}, "id = ?", existing.ID).Error; err != nil {
				return err
			}
			if err := deletePostTx(tx, existing.RepostPostID); err != nil {
				return err
			}
			if err := tx.Model(&model.Post{}).Where("id = ? AND repost_count > 0", original.ID).
				UpdateColumn("repost_count", gorm.Expr("repost_count - 1")).Error; err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			created := original.CreatedAt
			p := &model.Post{
				ID:                        uuid.New().String(),
				StorageMode:               model.StorageDatabase,
				RepostOfID:                original.ID,
				OriginalAuthorID:          original.AuthorID,
				OriginalAuthorUsername:    original.AuthorUsername,
				OriginalAuthorDisplayName: original.AuthorDisplayName,
				OriginalAuthorAvatar:      original.AuthorAvatar,
				OriginalText:              original.Text,
				OriginalImageURL:          original.ImageURL,
				OriginalCreatedAt:         &created,
			}
			p.SetAuthor(reposter)
			if err := tx.Create(p).Error; err != nil {
				return err
			}
			rp := &model.Repost{ID: uuid.New().String(), PostID: original.ID, UserID: reposter.ID, RepostPostID: p.ID}
			if err := tx.Create(rp).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Post{}).Where("id = ?", original.ID).
				UpdateColumn("repost_count", gorm.Expr("repost_count + 1")).Error; err != nil {
				return err
			}
			ob := &model.Outbox{ID: uuid.New().String(), PostID: p.ID, AuthorID: reposter.ID, Status: model.OutboxPending}
			if err := tx.Create(ob).Error; err != nil {
				return err
			}
			out.Reposted = true
			out.Repost = p
		default:
			return err
		}
		var cerr error
		out.RepostCount, cerr = counterValue(tx, original.ID, "repost_count")
		return cerr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postRepository) HasReposted(ctx context.Context, postID, userID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&model.Repost{}).
		Where("post_id = ? AND user_id = ?", postID, userID).Count(&cnt).Error
	return cnt > 0, err
}

// Delete 删除帖子及其点赞、转发记录、评论、收藏和时间线项
func (r *postRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Post
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return notFound(err)
		}
		if p.IsRepost() {
			if err := tx.Where("repost_post_id = ?", id).Delete(&model.Repost{}).Error; err != nil {
				return err
			}
			if err := tx.Model(&model.Post{}).Where("id = ? AND repost_count > 0", p.RepostOfID).
				UpdateColumn("repost_count", gorm.Expr("repost_count - 1")).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("post_id = ?", id).Delete(&model.Repost{}).Error; err != nil {
			return err
		}
		return deletePostTx(tx, id)
	})
}

func counterValue(tx *gorm.DB, postID, column string) (int64, error) {
	var v int64
	err := tx.Model(&model.Post{}).Select(column).Where("id = ?", postID).Row().Scan(&v)
	return v, err
}

func deletePostTx(tx *gorm.DB, id string) error {
	for _, m := range []interface{}{&model.Like{}, &model.Comment{}, &model.Bookmark{}, &model.Inbox{}, &model.Outbox{}} {
		if err := tx.Where("post_id = ?", id).Delete(m).Error; err != nil {
			return err
		}
	}
	return tx.Delete(&model.Post{}, "id = ?", id).Error
}

// UpdateAuthor 用户改资料后同步冗余字段
func (r *postRepository) UpdateAuthor(ctx context.Context, a model.Author) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Post{}).Where("author_id = ?", a.ID).Updates(map[string]interface{}{
			"author_username":     a.Username,
			"author_display_name": a.DisplayName,
			"author_avatar":       a.Avatar,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.Post{}).Where("original_author_id = ?", a.ID).Updates(map[string]interface{}{
			"original_author_username":     a.Username,
			"original_author_display_name": a.DisplayName,
			"original_author_avatar":       a.Avatar,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&model.Comment{}).Where("author_id = ?", a.ID).Updates(map[string]interface{}{
			"author_username":     a.Username,
			"author_display_name": a.DisplayName,
			"author_avatar":       a.Avatar,
		}).Error
	})
}

// RecountEngagement 按明细表重算点赞、转发、评论计数
func (r *postRepository) RecountEngagement(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE posts SET
			like_count = (SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id),
			repost_count = (SELECT COUNT(*) FROM reposts WHERE reposts.post_id = posts.id),
			comment_count = (SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id)
	`)
	return res.RowsAffected, res.Error
}
