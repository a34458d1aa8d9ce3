package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/pkg/logger"
)

// FanoutWorker 从 outbox 拉取发帖事件并写入作者本人与粉丝的 inbox
type FanoutWorker struct {
	db           *gorm.DB
	fanRepo      repository.FanRepository
	batchSize    int
	claimLimit   int
	pollInterval time.Duration
	workers      int
}

func NewFanoutWorker(db *gorm.DB, fanRepo repository.FanRepository, workers, batchSize, claimLimit int, pollInterval time.Duration) *FanoutWorker {
	if workers <= 0 {
		workers = 4
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	if claimLimit <= 0 {
		claimLimit = 128
	}
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &FanoutWorker{db: db, fanRepo: fanRepo, workers: workers, batchSize: batchSize, claimLimit: claimLimit, pollInterval: pollInterval}
}

// Start 启动若干 worker 轮询处理 outbox；返回停止函数
func (w *FanoutWorker) Start() func(context.Context) error {
	stop := make(chan struct{})
	for i := 0; i < w.workers; i++ {
		go w.loop(stop)
	}
	return func(ctx context.Context) error { close(stop); return nil }
}

func (w *FanoutWorker) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := w.ProcessOnce(context.Background()); err != nil {
				logger.Warn("fanout pass failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce claim 一批 pending outbox 并扇出，返回处理的事件数
func (w *FanoutWorker) ProcessOnce(ctx context.Context) (int, error) {
	var batch []model.Outbox
	err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// postgres 上为 FOR UPDATE SKIP LOCKED，多 worker 互不抢占；sqlite 忽略锁子句
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ?", model.OutboxPending).
			Order("created_at").
			Limit(w.claimLimit).
			Find(&batch).Error; err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		ids := make([]string, len(batch))
		for i, b := range batch {
			ids[i] = b.ID
		}
		return tx.Model(&model.Outbox{}).Where("id IN ?", ids).Update("status", model.OutboxProcessing).Error
	})
	if err != nil {
		return 0, err
	}

	for _, b := range batch {
		written, err := w.fanout(ctx, b)
		if err != nil {
			// 放回 pending 等下一轮
			_ = w.db.WithContext(ctx).Model(&model.Outbox{}).Where("id = ?", b.ID).Update("status", model.OutboxPending).Error
			logger.Warn("fanout failed", zap.String("post", b.PostID), zap.Error(err))
			continue
		}
		now := time.Now()
		_ = w.db.WithContext(ctx).Model(&model.Outbox{}).
			Where("id = ?", b.ID).
			Updates(map[string]any{"status": model.OutboxDone, "processed_at": now, "fanout_count": written}).Error
		metrics.FanoutEntries.Add(float64(written))
		if !b.CreatedAt.IsZero() {
			metrics.FanoutLatency.Observe(time.Since(b.CreatedAt).Seconds())
		}
	}
	return len(batch), nil
}

func (w *FanoutWorker) fanout(ctx context.Context, b model.Outbox) (int64, error) {
	var post model.Post
	if err := w.db.WithContext(ctx).Select("id", "created_at").Where("id = ?", b.PostID).First(&post).Error; err != nil {
		// 帖子已删除，无需投递
		return 0, nil
	}
	score := post.CreatedAt.UnixNano()

	// 作者自己的时间线也包含自己的帖子
	total, err := w.insert(ctx, []string{b.AuthorID}, b.PostID, score)
	if err != nil {
		return 0, err
	}
	offset := 0
	for {
		fans, err := w.fanRepo.ListFans(ctx, b.AuthorID, offset, w.batchSize)
		if err != nil {
			return total, err
		}
		if len(fans) == 0 {
			break
		}
		userIDs := make([]string, len(fans))
		for i, f := range fans {
			userIDs[i] = f.FanID
		}
		n, err := w.insert(ctx, userIDs, b.PostID, score)
		if err != nil {
			return total, err
		}
		total += n
		if len(fans) < w.batchSize {
			break
		}
		offset += w.batchSize
	}
	return total, nil
}

func (w *FanoutWorker) insert(ctx context.Context, userIDs []string, postID string, score int64) (int64, error) {
	now := time.Now()
	records := make([]model.Inbox, 0, len(userIDs))
	for _, uid := range userIDs {
		records = append(records, model.Inbox{ID: uuid.New().String(), UserID: uid, PostID: postID, Score: score, CreatedAt: now})
	}
	// (user_id, post_id) 唯一，重复投递忽略
	res := w.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&records)
	return res.RowsAffected, res.Error
}
