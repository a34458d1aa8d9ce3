package api

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/oblivion-social/oblivion-api/docs"
	"github.com/oblivion-social/oblivion-api/internal/api/handler"
	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/middleware"
)

// Options 路由装配参数
type Options struct {
	JWTSecret     string
	ServiceName   string
	EnableSwagger bool
	EnableSentry  bool
	EnableTracing bool
	// MediaDir 非空时以 /media 暴露本地上传目录
	MediaDir    string
	RateLimiter *middleware.RateLimiter
}

// NewRouter 注册全部路由
func NewRouter(h *handler.Handler, opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.EnableSentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if opts.EnableTracing {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(metrics.Middleware(), middleware.RequestLogger())
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", metrics.Handler())
	if opts.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if opts.MediaDir != "" {
		r.Static("/media", opts.MediaDir)
	}

	auth := middleware.Auth(opts.JWTSecret)
	r.GET("/ws/notifications", auth, h.StreamNotifications)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.OptionalAuth(opts.JWTSecret))
	if opts.RateLimiter != nil {
		v1.Use(opts.RateLimiter.Handler())
	}

	users := v1.Group("/users")
	{
		users.POST("", auth, h.CreateUser)
		users.GET("/me", auth, h.GetMe)
		users.PATCH("/me", auth, h.UpdateProfile)
		users.GET("/me/bookmarks", auth, h.ListBookmarks)
		users.GET("/suggestions", auth, h.SuggestUsers)
		users.GET("/search", h.SearchUsers)
		users.GET("/by-username/:username", h.GetUserByUsername)
		users.GET("/:user_id", h.GetUser)
		users.GET("/:user_id/posts", h.GetUserPosts)
	}

	relations := v1.Group("/relations")
	{
		relations.POST("/follow", auth, h.Follow)
		relations.POST("/unfollow", auth, h.Unfollow)
		relations.GET("/:user_id/status", auth, h.IsFollowing)
		relations.GET("/:user_id/following", h.ListFollowing)
		relations.GET("/:user_id/fans", h.ListFans)
	}

	posts := v1.Group("/posts")
	{
		posts.GET("", h.GetFeed)
		posts.POST("", auth, h.CreatePost)
		posts.GET("/timeline", auth, h.GetHomeTimeline)
		posts.GET("/search", h.SearchPosts)
		posts.GET("/trending", h.GetTrendingPosts)
		posts.GET("/hashtags", h.TrendingHashtags)
		posts.GET("/hashtags/:tag", h.GetPostsByHashtag)
		posts.GET("/:id", h.GetPost)
		posts.DELETE("/:id", auth, h.DeletePost)
		posts.POST("/:id/like", auth, h.ToggleLike)
		posts.POST("/:id/repost", auth, h.ToggleRepost)
		posts.POST("/:id/bookmark", auth, h.ToggleBookmark)
		posts.GET("/:id/interactions", auth, h.GetInteractions)
		posts.GET("/:id/comments", h.ListComments)
		posts.POST("/:id/comments", auth, h.AddComment)
	}

	v1.DELETE("/comments/:id", auth, h.DeleteComment)

	notifications := v1.Group("/notifications", auth)
	{
		notifications.GET("", h.ListNotifications)
		notifications.DELETE("", h.ClearNotifications)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.POST("/read-all", h.MarkAllNotificationsRead)
		notifications.POST("/:id/read", h.MarkNotificationRead)
	}

	mentions := v1.Group("/mentions")
	{
		mentions.GET("/candidates", h.MentionCandidates)
		mentions.POST("/extract", h.ExtractMentions)
		mentions.POST("/autocomplete", h.Autocomplete)
		mentions.POST("/apply", h.ApplyMention)
	}

	campaigns := v1.Group("/campaigns")
	{
		campaigns.GET("", h.ListCampaigns)
		campaigns.GET("/count", h.CampaignCount)
		campaigns.GET("/:id", h.GetCampaign)
		campaigns.POST("/:id/like", auth, h.ToggleCampaignLike)
		campaigns.GET("/:id/final-amount", h.GetFinalAmount)
		campaigns.PUT("/:id/final-amount", auth, h.SetFinalAmount)
	}

	return r
}
