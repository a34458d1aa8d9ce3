package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/internal/feedcache"
	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// TrendingWindow 热门统计窗口
const TrendingWindow = 24 * time.Hour

// PostAnchor oblivion 模式下把帖子写到合约
type PostAnchor interface {
	CreatePost(ctx context.Context, author, content, image string) (string, error)
}

type CreatePostInput struct {
	Text         string            `json:"text"`
	ImageURL     string            `json:"imageUrl"`
	ImageDataURL string            `json:"imageDataUrl"`
	StorageMode  model.StorageMode `json:"storageMode"`
}

// RepostOutcome 转发切换结果
type RepostOutcome struct {
	Reposted    bool        `json:"reposted"`
	RepostCount int64       `json:"repostCount"`
	Post        *model.Post `json:"post,omitempty"`
}

// HashtagCount 话题计数
type HashtagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// PostService 帖子、点赞、转发、话题
type PostService interface {
	CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error)
	GetPost(ctx context.Context, id string) (*model.Post, error)
	GetPostsByUser(ctx context.Context, authorID string, before time.Time, limit int) ([]*model.Post, error)
	GetFeed(ctx context.Context, before time.Time, limit int) ([]*model.Post, error)
	GetHomeTimeline(ctx context.Context, userID string, beforeScore int64, limit int) ([]*model.Post, error)
	SearchPosts(ctx context.Context, query string, limit int) ([]*model.Post, error)
	GetTrendingPosts(ctx context.Context, limit int) ([]*model.Post, error)
	RefreshTrending(ctx context.Context, limit int) error
	GetPostsByHashtag(ctx context.Context, tag string, limit int) ([]*model.Post, error)
	TrendingHashtags(ctx context.Context, limit int) ([]HashtagCount, error)
	ToggleLike(ctx context.Context, userID, postID string) (bool, int64, error)
	HasLiked(ctx context.Context, userID, postID string) (bool, error)
	LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	ToggleRepost(ctx context.Context, userID, postID string) (*RepostOutcome, error)
	HasReposted(ctx context.Context, userID, postID string) (bool, error)
	DeletePost(ctx context.Context, userID, postID string) error
}

type postService struct {
	posts         repository.PostRepository
	users         repository.UserRepository
	timeline      repository.TimelineRepository
	publisher     *Publisher
	anchor        PostAnchor
	uploader      MediaUploader
	mentions      MentionService
	notifications NotificationService
	cache         *feedcache.Cache
	now           func() time.Time
}

// PostServiceDeps 可选依赖为 nil 时对应功能关闭（anchor 为 nil 时拒绝 oblivion 模式）
type PostServiceDeps struct {
	Posts         repository.PostRepository
	Users         repository.UserRepository
	Timeline      repository.TimelineRepository
	Publisher     *Publisher
	Anchor        PostAnchor
	Uploader      MediaUploader
	Mentions      MentionService
	Notifications NotificationService
	Cache         *feedcache.Cache
}

func NewPostService(d PostServiceDeps) PostService {
	return &postService{
		posts:         d.Posts,
		users:         d.Users,
		timeline:      d.Timeline,
		publisher:     d.Publisher,
		anchor:        d.Anchor,
		uploader:      d.Uploader,
		mentions:      d.Mentions,
		notifications: d.Notifications,
		cache:         d.Cache,
		now:           time.Now,
	}
}

func (s *postService) CreatePost(ctx context.Context, authorID string, in CreatePostInput) (*model.Post, error) {
	text := strings.TrimSpace(in.Text)
	if utf8.RuneCountInString(text) > MaxTextLength {
		return nil, ErrTextTooLong
	}
	if text == "" && in.ImageURL == "" && in.ImageDataURL == "" {
		return nil, ErrEmptyPost
	}
	mode := in.StorageMode
	if mode == "" {
		mode = model.StorageDatabase
	}
	if !mode.Valid() {
		return nil, ErrInvalidStorageMode
	}
	if mode == model.StorageOblivion && s.anchor == nil {
		return nil, ErrChainUnavailable
	}

	author, err := s.users.GetByID(ctx, authorID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	imageURL := strings.TrimSpace(in.ImageURL)
	if in.ImageDataURL != "" {
		if s.uploader == nil {
			return nil, ErrInvalidMedia
		}
		m, err := s.uploader.UploadDataURL(ctx, "posts", in.ImageDataURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMedia, err)
		}
		imageURL = m.URL
	}

	post := &model.Post{Text: text, ImageURL: imageURL, StorageMode: mode, CreatedAt: s.now()}
	post.SetAuthor(author.Author())

	if mode == model.StorageOblivion {
		// 上链失败则整个发帖失败
		txHash, err := s.anchor.CreatePost(ctx, author.ID, text, imageURL)
		if err != nil {
			return nil, fmt.Errorf("anchor post: %w", err)
		}
		post.ChainTxHash = txHash
	}

	if err := s.publisher.Publish(ctx, post); err != nil {
		return nil, fmt.Errorf("publish post: %w", err)
	}
	metrics.Actions.WithLabelValues("post").Inc()

	if s.mentions != nil && text != "" {
		if _, err := s.mentions.NotifyMentions(ctx, author.ID, text, post.ID); err != nil {
			logger.Warn("notify mentions failed", zap.String("post", post.ID), zap.Error(err))
		}
	}
	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id string) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	return p, err
}

func (s *postService) GetPostsByUser(ctx context.Context, authorID string, before time.Time, limit int) ([]*model.Post, error) {
	return s.posts.ListByAuthor(ctx, authorID, before, limit)
}

func (s *postService) GetFeed(ctx context.Context, before time.Time, limit int) ([]*model.Post, error) {
	return s.posts.ListRecent(ctx, before, limit)
}

// GetHomeTimeline 从 inbox 读关注时间线，beforeScore 为上一页最后一条的 score
func (s *postService) GetHomeTimeline(ctx context.Context, userID string, beforeScore int64, limit int) ([]*model.Post, error) {
	ids, err := s.timeline.ListPostIDs(ctx, userID, beforeScore, limit)
	if err != nil {
		return nil, err
	}
	return s.posts.GetByIDs(ctx, ids)
}

func (s *postService) SearchPosts(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []*model.Post{}, nil
	}
	return s.posts.Search(ctx, query, limit)
}

func (s *postService) GetTrendingPosts(ctx context.Context, limit int) ([]*model.Post, error) {
	return feedcache.Fetch(ctx, s.cache, feedcache.TrendingPostsKey(limit), func(ctx context.Context) ([]*model.Post, error) {
		return s.loadTrending(ctx, limit)
	})
}

// RefreshTrending 定时任务调用，预热热门帖子与话题缓存
func (s *postService) RefreshTrending(ctx context.Context, limit int) error {
	if _, err := feedcache.Refresh(ctx, s.cache, feedcache.TrendingPostsKey(limit), func(ctx context.Context) ([]*model.Post, error) {
		return s.loadTrending(ctx, limit)
	}); err != nil {
		return err
	}
	_, err := feedcache.Refresh(ctx, s.cache, feedcache.TrendingTagsKey(limit), func(ctx context.Context) ([]HashtagCount, error) {
		return s.countHashtags(ctx, limit)
	})
	return err
}

func (s *postService) loadTrending(ctx context.Context, limit int) ([]*model.Post, error) {
	return s.posts.ListTrending(ctx, s.now().Add(-TrendingWindow), limit)
}

var hashtagRe = regexp.MustCompile(`#([A-Za-z0-9_]+)`)

// ExtractHashtags 提取 #tag，小写去重；# 前不能是单词字符或 &（排除 HTML 实体）
func ExtractHashtags(text string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, loc := range hashtagRe.FindAllStringSubmatchIndex(text, -1) {
		if loc[0] > 0 {
			if prev := text[loc[0]-1]; isWordByte(prev) || prev == '&' {
				continue
			}
		}
		tag := strings.ToLower(text[loc[2]:loc[3]])
		if len(tag) > 50 {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// GetPostsByHashtag 先 LIKE 粗筛再按整词匹配，#go 不会命中 #golang
func (s *postService) GetPostsByHashtag(ctx context.Context, tag string, limit int) ([]*model.Post, error) {
	tag = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
	if tag == "" {
		return []*model.Post{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	// LIKE 也会命中更长的话题（#go 命中 #golang），逐页筛到够数或扫完为止
	pageSize := limit * 5
	if pageSize > 500 {
		pageSize = 500
	}
	out := make([]*model.Post, 0, limit)
	for offset := 0; ; offset += pageSize {
		candidates, err := s.posts.ListContaining(ctx, "#"+tag, offset, pageSize)
		if err != nil {
			return nil, err
		}
		for _, p := range candidates {
			if hasHashtag(p.Text, tag) {
				out = append(out, p)
				if len(out) == limit {
					return out, nil
				}
			}
		}
		if len(candidates) < pageSize {
			return out, nil
		}
	}
}

func hasHashtag(text, tag string) bool {
	for _, t := range ExtractHashtags(text) {
		if t == tag {
			return true
		}
	}
	return false
}

func (s *postService) TrendingHashtags(ctx context.Context, limit int) ([]HashtagCount, error) {
	return feedcache.Fetch(ctx, s.cache, feedcache.TrendingTagsKey(limit), func(ctx context.Context) ([]HashtagCount, error) {
		return s.countHashtags(ctx, limit)
	})
}

func (s *postService) countHashtags(ctx context.Context, limit int) ([]HashtagCount, error) {
	if limit <= 0 {
		limit = 10
	}
	texts, err := s.posts.ListTextsSince(ctx, s.now().Add(-TrendingWindow), 5000)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, t := range texts {
		for _, tag := range ExtractHashtags(t) {
			counts[tag]++
		}
	}
	out := make([]HashtagCount, 0, len(counts))
	for tag, n := range counts {
		out = append(out, HashtagCount{Tag: tag, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ToggleLike 同一事务内检查并写入；点赞通知作者（自己点赞不通知）
func (s *postService) ToggleLike(ctx context.Context, userID, postID string) (bool, int64, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return false, 0, err
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, 0, ErrUserNotFound
		}
		return false, 0, err
	}
	liked, count, err := s.posts.ToggleLike(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, 0, ErrPostNotFound
		}
		return false, 0, err
	}
	if liked {
		metrics.Actions.WithLabelValues("like").Inc()
		s.notifications.Send(&model.Notification{Type: model.NotifyLike, FromUserID: userID, ToUserID: post.AuthorID, PostID: postID})
	} else {
		metrics.Actions.WithLabelValues("unlike").Inc()
	}
	return liked, count, nil
}

func (s *postService) HasLiked(ctx context.Context, userID, postID string) (bool, error) {
	return s.posts.HasLiked(ctx, postID, userID)
}

func (s *postService) LikedPostIDs(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	return s.posts.LikedPostIDs(ctx, userID, postIDs)
}

// ToggleRepost 转发的目标总是原帖
func (s *postService) ToggleRepost(ctx context.Context, userID, postID string) (*RepostOutcome, error) {
	original, err := s.resolveOriginal(ctx, postID)
	if err != nil {
		return nil, err
	}
	reposter, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	res, err := s.posts.ToggleRepost(ctx, original, reposter.Author())
	if err != nil {
		if errors.Is(err, repository.ErrCannotRepostOwn) {
			return nil, ErrCannotRepostOwn
		}
		return nil, err
	}
	if res.Reposted {
		metrics.Actions.WithLabelValues("repost").Inc()
		s.notifications.Send(&model.Notification{Type: model.NotifyRepost, FromUserID: userID, ToUserID: original.AuthorID, PostID: original.ID})
	} else {
		metrics.Actions.WithLabelValues("unrepost").Inc()
	}
	return &RepostOutcome{Reposted: res.Reposted, RepostCount: res.RepostCount, Post: res.Repost}, nil
}

func (s *postService) HasReposted(ctx context.Context, userID, postID string) (bool, error) {
	original, err := s.resolveOriginal(ctx, postID)
	if err != nil {
		return false, err
	}
	return s.posts.HasReposted(ctx, original.ID, userID)
}

func (s *postService) resolveOriginal(ctx context.Context, postID string) (*model.Post, error) {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !p.IsRepost() {
		return p, nil
	}
	return s.GetPost(ctx, p.RepostOfID)
}

// DeletePost 仅作者可删
func (s *postService) DeletePost(ctx context.Context, userID, postID string) error {
	p, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if p.AuthorID != userID {
		return ErrForbidden
	}
	if err := s.posts.Delete(ctx, postID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrPostNotFound
		}
		return err
	}
	metrics.Actions.WithLabelValues("delete_post").Inc()
	return nil
}
