package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/pkg/response"
)

// postPage 列表响应；登录时附带当前用户点过赞的帖子
type postPage struct {
	List       []*model.Post   `json:"list"`
	Liked      map[string]bool `json:"liked,omitempty"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

func (h *Handler) postPage(c *gin.Context, posts []*model.Post) postPage {
	if posts == nil {
		posts = []*model.Post{}
	}
	page := postPage{List: posts}
	viewer := middleware.CurrentWallet(c)
	if viewer == "" || len(posts) == 0 {
		return page
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	liked, err := h.postService.LikedPostIDs(c.Request.Context(), viewer, ids)
	if err == nil {
		page.Liked = liked
	}
	return page
}

// CreatePost 发帖
// @Summary 发帖
// @Description storageMode=oblivion 时同时写入合约
// @Tags 帖子
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "帖子内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req service.CreatePostInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	post, err := h.postService.CreatePost(c.Request.Context(), middleware.CurrentWallet(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, post)
}

// GetPost 帖子详情
// @Summary 帖子详情
// @Tags 帖子
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	post, err := h.postService.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// DeletePost 删除自己的帖子
// @Summary 删除帖子
// @Tags 帖子
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.postService.DeletePost(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// GetFeed 全站最新
// @Summary 全站动态
// @Tags 帖子
// @Param before query string false "RFC3339 游标"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=postPage}
// @Router /api/v1/posts [get]
func (h *Handler) GetFeed(c *gin.Context) {
	posts, err := h.postService.GetFeed(c.Request.Context(), queryTime(c, "before"), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	page := h.postPage(c, posts)
	if n := len(posts); n > 0 {
		page.NextCursor = posts[n-1].CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	response.Success(c, page)
}

// GetUserPosts 某用户的帖子
// @Summary 用户帖子
// @Tags 帖子
// @Param user_id path string true "钱包地址"
// @Param before query string false "RFC3339 游标"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=postPage}
// @Router /api/v1/users/{user_id}/posts [get]
func (h *Handler) GetUserPosts(c *gin.Context) {
	posts, err := h.postService.GetPostsByUser(c.Request.Context(), normalizeID(c.Param("user_id")),
		queryTime(c, "before"), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, h.postPage(c, posts))
}

// GetHomeTimeline 关注时间线（读 inbox）
// @Summary 关注时间线
// @Tags 帖子
// @Security BearerAuth
// @Param before_score query int false "上一页最后一条的 score"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=postPage}
// @Router /api/v1/posts/timeline [get]
func (h *Handler) GetHomeTimeline(c *gin.Context) {
	before, _ := strconv.ParseInt(c.Query("before_score"), 10, 64)
	posts, err := h.postService.GetHomeTimeline(c.Request.Context(), middleware.CurrentWallet(c), before, queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	page := h.postPage(c, posts)
	if n := len(posts); n > 0 {
		page.NextCursor = strconv.FormatInt(posts[n-1].CreatedAt.UnixNano(), 10)
	}
	response.Success(c, page)
}

// SearchPosts 正文搜索
// @Summary 搜索帖子
// @Tags 帖子
// @Param q query string true "关键词"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=postPage}
// @Router /api/v1/posts/search [get]
func (h *Handler) SearchPosts(c *gin.Context) {
	posts, err := h.postService.SearchPosts(c.Request.Context(), c.Query("q"), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, h.postPage(c, posts))
}

// GetTrendingPosts 24 小时热门
// @Summary 热门帖子
// @Tags 帖子
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=postPage}
// @Router /api/v1/posts/trending [get]
func (h *Handler) GetTrendingPosts(c *gin.Context) {
	posts, err := h.postService.GetTrendingPosts(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, h.postPage(c, posts))
}

// TrendingHashtags 热门话题
// @Summary 热门话题
// @Tags 帖子
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=[]service.HashtagCount}
// @Router /api/v1/posts/hashtags [get]
func (h *Handler) TrendingHashtags(c *gin.Context) {
	tags, err := h.postService.TrendingHashtags(c.Request.Context(), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, tags)
}

// GetPostsByHashtag 话题下的帖子
// @Summary 话题帖子
// @Tags 帖子
// @Param tag path string true "话题（不带 #）"
// @Param limit query int false "数量" default(20)
// @Success 200 {object} response.Response{data=postPage}
// @Router /api/v1/posts/hashtags/{tag} [get]
func (h *Handler) GetPostsByHashtag(c *gin.Context) {
	posts, err := h.postService.GetPostsByHashtag(c.Request.Context(), c.Param("tag"), queryInt(c, "limit", 20))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, h.postPage(c, posts))
}

// ToggleLike 点赞/取消点赞
// @Summary 切换点赞
// @Tags 互动
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/like [post]
func (h *Handler) ToggleLike(c *gin.Context) {
	liked, count, err := h.postService.ToggleLike(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"liked": liked, "likeCount": count})
}

// ToggleRepost 转发/取消转发
// @Summary 切换转发
// @Tags 互动
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=service.RepostOutcome}
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id}/repost [post]
func (h *Handler) ToggleRepost(c *gin.Context) {
	out, err := h.postService.ToggleRepost(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, out)
}

// ToggleBookmark 收藏/取消收藏
// @Summary 切换收藏
// @Tags 互动
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Router /api/v1/posts/{id}/bookmark [post]
func (h *Handler) ToggleBookmark(c *gin.Context) {
	saved, err := h.userService.ToggleBookmark(c.Request.Context(), middleware.CurrentWallet(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"bookmarked": saved})
}

// GetInteractions 当前用户对帖子的点赞/转发/收藏状态
// @Summary 互动状态
// @Tags 互动
// @Security BearerAuth
// @Param id path string true "帖子 ID"
// @Success 200 {object} response.Response{data=map[string]bool}
// @Router /api/v1/posts/{id}/interactions [get]
func (h *Handler) GetInteractions(c *gin.Context) {
	ctx, viewer, id := c.Request.Context(), middleware.CurrentWallet(c), c.Param("id")
	liked, err := h.postService.HasLiked(ctx, viewer, id)
	if err != nil {
		fail(c, err)
		return
	}
	reposted, err := h.postService.HasReposted(ctx, viewer, id)
	if err != nil {
		fail(c, err)
		return
	}
	bookmarked, err := h.userService.IsBookmarked(ctx, viewer, id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"liked": liked, "reposted": reposted, "bookmarked": bookmarked})
}
