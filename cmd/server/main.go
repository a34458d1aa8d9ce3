package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/config"
	"github.com/oblivion-social/oblivion-api/internal/api"
	"github.com/oblivion-social/oblivion-api/internal/api/handler"
	"github.com/oblivion-social/oblivion-api/internal/chain"
	"github.com/oblivion-social/oblivion-api/internal/feedcache"
	"github.com/oblivion-social/oblivion-api/internal/jobs"
	"github.com/oblivion-social/oblivion-api/internal/llm"
	"github.com/oblivion-social/oblivion-api/internal/middleware"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/realtime"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/internal/storage"
	"github.com/oblivion-social/oblivion-api/pkg/cache"
	"github.com/oblivion-social/oblivion-api/pkg/database"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
	"github.com/oblivion-social/oblivion-api/pkg/tracing"
)

// @title Oblivion API
// @version 1.0
// @description Oblivion 社交网络数据层
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	db, err := database.InitDB(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// 通知推送：有 redis 时跨实例广播，否则进程内 hub
	hub := realtime.NewHub(32)
	var broker realtime.Broker = hub
	if rdb != nil {
		rb := realtime.NewRedisBroker(rdb, hub, realtime.DefaultChannel)
		ready := make(chan struct{})
		go func() {
			if err := rb.Run(ctx, ready); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, redis.ErrClosed) {
				logger.Error("notification broker stopped", zap.Error(err))
			}
		}()
		select {
		case <-ready:
		case <-time.After(5 * time.Second):
			logger.Warn("notification broker not ready, continuing")
		}
		broker = rb
	}

	uploader, mediaDir, err := newUploader(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	var (
		anchor      service.PostAnchor
		campaignsRd service.CampaignReader
	)
	if cfg.Chain.Endpoint != "" {
		cc, err := chain.NewClient(chain.Config{
			Endpoint:        cfg.Chain.Endpoint,
			ContractAddress: cfg.Chain.ContractAddress,
			Timeout:         cfg.Chain.Timeout,
		})
		if err != nil {
			return err
		}
		defer cc.Close()
		anchor, campaignsRd = cc, cc
	} else {
		logger.Warn("chain endpoint not configured, oblivion storage and campaigns disabled")
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	feed := feedcache.New(rdb, cfg.Jobs.CacheTTL)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), broker, 4096)
	mentions := service.NewMentionService(userRepo, notifications)

	var assistant *service.AIResponder
	if cfg.Assistant.Enabled {
		assistant = service.NewAIResponder(
			model.Author{
				ID:          cfg.Assistant.Wallet,
				Username:    cfg.Assistant.Username,
				DisplayName: cfg.Assistant.DisplayName,
				Avatar:      cfg.Assistant.Avatar,
			},
			llm.NewClient(llm.Config{
				Endpoint:    cfg.LLM.Endpoint,
				APIKey:      cfg.LLM.APIKey,
				Model:       cfg.LLM.Model,
				MaxTokens:   cfg.LLM.MaxTokens,
				Temperature: cfg.LLM.Temperature,
				Timeout:     cfg.LLM.Timeout,
			}),
			postRepo, commentRepo, userRepo, notifications, 256,
		)
		if _, err := assistant.EnsureAccount(ctx); err != nil {
			return err
		}
	}

	users := service.NewUserService(userRepo, followRepo, postRepo, repository.NewBookmarkRepository(db), uploader, feed)
	posts := service.NewPostService(service.PostServiceDeps{
		Posts:         postRepo,
		Users:         userRepo,
		Timeline:      timelineRepo,
		Publisher:     service.NewPublisher(db),
		Anchor:        anchor,
		Uploader:      uploader,
		Mentions:      mentions,
		Notifications: notifications,
		Cache:         feed,
	})

	h := handler.New(handler.Services{
		Users:         users,
		Relations:     service.NewRelationshipService(userRepo, followRepo, fanRepo, timelineRepo, notifications, feed),
		Posts:         posts,
		Comments:      service.NewCommentService(commentRepo, postRepo, userRepo, uploader, mentions, notifications, assistant),
		Notifications: notifications,
		Mentions:      mentions,
		Campaigns:     service.NewCampaignService(campaignsRd, repository.NewCampaignRepository(db), notifications),
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(h, api.Options{
		JWTSecret:     cfg.JWT.Secret,
		ServiceName:   cfg.Tracing.ServiceName,
		EnableSwagger: cfg.Server.EnableSwagger,
		EnableSentry:  cfg.Sentry.DSN != "",
		EnableTracing: cfg.Tracing.Enabled,
		MediaDir:      mediaDir,
		RateLimiter:   limiter,
	})

	// 后台任务
	stopNotifications := notifications.Start(4)
	stopFanout := service.NewFanoutWorker(db, fanRepo,
		cfg.Timeline.Workers, cfg.Timeline.BatchSize, cfg.Timeline.ClaimLimit, cfg.Timeline.PollInterval).Start()
	stopAssistant := func(context.Context) error { return nil }
	if assistant != nil {
		stopAssistant = assistant.Start(cfg.Assistant.Workers)
	}

	scheduler := jobs.NewScheduler(time.Minute)
	var cleaner jobs.IdleCleaner
	if limiter != nil {
		cleaner = limiter
	}
	if err := jobs.Register(scheduler, jobs.Config{
		TrendingSpec:    cfg.Jobs.TrendingRefresh,
		PruneSpec:       cfg.Jobs.NotificationPrune,
		NotificationTTL: cfg.Jobs.NotificationTTL,
	}, posts, notifications, cleaner); err != nil {
		return err
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// 先停生产者，最后排空通知队列
	stops := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"scheduler", scheduler.Stop},
		{"assistant", stopAssistant},
		{"fanout", stopFanout},
		{"notifications", stopNotifications},
	}
	for _, st := range stops {
		if err := st.fn(shutdownCtx); err != nil {
			logger.Warn("stop worker", zap.String("worker", st.name), zap.Error(err))
		}
	}
	return nil
}

// newUploader 本地目录返回 mediaDir 供 /media 静态访问
func newUploader(ctx context.Context, cfg config.StorageConfig) (*storage.Uploader, string, error) {
	switch cfg.Backend {
	case "firebase":
		store, err := storage.NewFirebaseStore(ctx, cfg.FirebaseBucket, cfg.CredentialsFile)
		if err != nil {
			return nil, "", err
		}
		return storage.NewUploader(store, cfg.MaxUploadBytes), "", nil
	default:
		store := storage.NewLocalStore(cfg.LocalDir, cfg.PublicBaseURL)
		return storage.NewUploader(store, cfg.MaxUploadBytes), store.Dir(), nil
	}
}
