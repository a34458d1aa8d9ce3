package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oblivion-social/oblivion-api/internal/feedcache"
	"github.com/oblivion-social/oblivion-api/internal/llm"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/realtime"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/internal/storage"
)

type fakeAnchor struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeAnchor) CreatePost(_ context.Context, author, content, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("0xtx%d", f.calls), nil
}

type fakeCompleter struct {
	reply    string
	err      error
	messages []llm.Message
}

func (f *fakeCompleter) Complete(_ context.Context, messages []llm.Message) (string, error) {
	f.messages = messages
	return f.reply, f.err
}

type testEnv struct {
	db    *gorm.DB
	redis *miniredis.Miniredis
	cache *feedcache.Cache
	hub   *realtime.Hub

	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	commentRepo      repository.CommentRepository
	notificationRepo repository.NotificationRepository

	anchor    *fakeAnchor
	completer *fakeCompleter

	notifications NotificationService
	mentions      MentionService
	users         UserService
	relations     RelationshipService
	posts         PostService
	comments      CommentService
	ai            *AIResponder
	fanout        *FanoutWorker
}

var assistant = model.Author{ID: "0x00000000000000000000000000000000000a1a1a", Username: "oblivionai", DisplayName: "Oblivion AI"}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	e := &testEnv{
		db:               db,
		redis:            mr,
		cache:            feedcache.New(client, 0),
		hub:              realtime.NewHub(16),
		userRepo:         repository.NewUserRepository(db),
		postRepo:         repository.NewPostRepository(db),
		commentRepo:      repository.NewCommentRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		anchor:           &fakeAnchor{},
		completer:        &fakeCompleter{reply: "gm!"},
	}
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	uploader := storage.NewUploader(storage.NewLocalStore(t.TempDir(), "/media"), 1<<20)

	e.notifications = NewNotificationService(e.notificationRepo, e.hub, 64)
	e.mentions = NewMentionService(e.userRepo, e.notifications)
	e.users = NewUserService(e.userRepo, followRepo, e.postRepo, repository.NewBookmarkRepository(db), uploader, e.cache)
	e.relations = NewRelationshipService(e.userRepo, followRepo, fanRepo, timelineRepo, e.notifications, e.cache)
	e.posts = NewPostService(PostServiceDeps{
		Posts:         e.postRepo,
		Users:         e.userRepo,
		Timeline:      timelineRepo,
		Publisher:     NewPublisher(db),
		Anchor:        e.anchor,
		Uploader:      uploader,
		Mentions:      e.mentions,
		Notifications: e.notifications,
		Cache:         e.cache,
	})
	e.ai = NewAIResponder(assistant, e.completer, e.postRepo, e.commentRepo, e.userRepo, e.notifications, 8)
	e.comments = NewCommentService(e.commentRepo, e.postRepo, e.userRepo, uploader, e.mentions, e.notifications, e.ai)
	e.fanout = NewFanoutWorker(db, fanRepo, 1, 2, 10, 0)
	return e
}

func walletOf(n int) string { return fmt.Sprintf("0x%040x", n) }

func (e *testEnv) user(t *testing.T, n int, username string) *model.User {
	t.Helper()
	u, err := e.users.CreateUser(context.Background(), CreateUserInput{Wallet: walletOf(n), Username: username})
	require.NoError(t, err)
	return u
}

func (e *testEnv) post(t *testing.T, author *model.User, text string) *model.Post {
	t.Helper()
	p, err := e.posts.CreatePost(context.Background(), author.ID, CreatePostInput{Text: text})
	require.NoError(t, err)
	return p
}

// inbox 返回 userID 的全部通知（新的在前）
func (e *testEnv) inbox(t *testing.T, userID string) []*model.Notification {
	t.Helper()
	list, err := e.notifications.List(context.Background(), userID, false, 100)
	require.NoError(t, err)
	return list
}

func countType(list []*model.Notification, typ model.NotificationType) int {
	n := 0
	for _, it := range list {
		if it.Type == typ {
			n++
		}
	}
	return n
}

var (
	errBoom  = errors.New("boom")
	zeroTime time.Time
)
