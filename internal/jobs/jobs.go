// Package jobs runs the periodic maintenance tasks on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// TrendingRefresher 预热热门帖子与话题缓存
type TrendingRefresher interface {
	RefreshTrending(ctx context.Context, limit int) error
}

// NotificationPruner 清理过期的已读通知
type NotificationPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdleCleaner 回收空闲的限流器
type IdleCleaner interface {
	Cleanup(idle time.Duration) int
}

type Config struct {
	TrendingSpec    string
	TrendingLimit   int
	PruneSpec       string
	NotificationTTL time.Duration
	// JobTimeout 单次任务上限
	JobTimeout time.Duration
}

// Scheduler 包装 cron，任务之间互不阻塞，同一任务不重入
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

func NewScheduler(timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		timeout: timeout,
	}
}

// Add 注册任务；spec 为空时跳过
func (s *Scheduler) Add(name, spec string, run func(ctx context.Context) error) error {
	if spec == "" {
		return nil
	}
	job := cron.NewChain(cron.SkipIfStillRunning(cron.DefaultLogger)).Then(cron.FuncJob(func() {
		s.runOnce(name, run)
	}))
	if _, err := s.cron.AddJob(spec, job); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	return nil
}

func (s *Scheduler) runOnce(name string, run func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	start := time.Now()
	if err := run(ctx); err != nil {
		logger.Warn("job failed", zap.String("job", name), zap.Error(err))
		return
	}
	logger.Debug("job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// Entries 已注册任务数
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() { s.cron.Start() }

// Stop 等待正在执行的任务结束或 ctx 到期
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register 注册内置维护任务；limiter 可为 nil
func Register(s *Scheduler, cfg Config, trending TrendingRefresher, pruner NotificationPruner, limiter IdleCleaner) error {
	if cfg.TrendingLimit <= 0 {
		cfg.TrendingLimit = 20
	}
	if err := s.Add("refresh_trending", cfg.TrendingSpec, func(ctx context.Context) error {
		return trending.RefreshTrending(ctx, cfg.TrendingLimit)
	}); err != nil {
		return err
	}
	if cfg.NotificationTTL > 0 {
		if err := s.Add("prune_notifications", cfg.PruneSpec, func(ctx context.Context) error {
			n, err := pruner.Prune(ctx, cfg.NotificationTTL)
			if n > 0 {
				logger.Info("pruned notifications", zap.Int64("count", n))
			}
			return err
		}); err != nil {
			return err
		}
	}
	if limiter != nil {
		return s.Add("cleanup_rate_limiters", "@every 10m", func(context.Context) error {
			limiter.Cleanup(30 * time.Minute)
			return nil
		})
	}
	return nil
}
