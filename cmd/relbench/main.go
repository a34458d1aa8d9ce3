package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oblivion-social/oblivion-api/config"
	"github.com/oblivion-social/oblivion-api/internal/feedcache"
	"github.com/oblivion-social/oblivion-api/internal/model"
	"github.com/oblivion-social/oblivion-api/internal/realtime"
	"github.com/oblivion-social/oblivion-api/internal/repository"
	"github.com/oblivion-social/oblivion-api/internal/service"
	"github.com/oblivion-social/oblivion-api/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func wallet(i int) string { return fmt.Sprintf("0x%040x", i) }

// relbench 压测关注写入、粉丝查询和发帖扇出
func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	N := envInt("N", 10000)
	CONC := envInt("CONC", 8)
	PAGE := envInt("PAGE", 50)
	POSTS := envInt("POSTS", 20)

	userRepo := repository.NewUserRepository(db)
	followRepo := repository.NewFollowRepository(db)
	fanRepo := repository.NewFanRepository(db)
	timelineRepo := repository.NewTimelineRepository(db)
	postRepo := repository.NewPostRepository(db)
	notifications := service.NewNotificationService(repository.NewNotificationRepository(db), realtime.NewHub(1), N)
	stopNotifications := notifications.Start(4)
	cache := feedcache.New(nil, 0)

	relSvc := service.NewRelationshipService(userRepo, followRepo, fanRepo, timelineRepo, notifications, cache)
	postSvc := service.NewPostService(service.PostServiceDeps{
		Posts:         postRepo,
		Users:         userRepo,
		Timeline:      timelineRepo,
		Publisher:     service.NewPublisher(db),
		Notifications: notifications,
		Cache:         cache,
	})

	// u0 是大 V，其余用户全部关注 u0
	users := make([]model.User, N+1)
	for i := range users {
		users[i] = model.User{ID: wallet(i + 1), Username: fmt.Sprintf("bench%d", i), UsernameLower: fmt.Sprintf("bench%d", i)}
	}
	if err := db.CreateInBatches(&users, 1000).Error; err != nil {
		panic(err)
	}
	celeb := users[0]

	feed := make(chan int, N)
	for i := 1; i <= N; i++ {
		feed <- i
	}
	close(feed)

	var mu sync.Mutex
	followRecs := make([]time.Duration, 0, N)
	t0 := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				_ = relSvc.Follow(ctx, users[i].ID, celeb.ID)
				d := time.Since(st)
				mu.Lock()
				followRecs = append(followRecs, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	followDur := time.Since(t0)

	q0 := time.Now()
	_, _ = relSvc.ListFans(ctx, celeb.ID, 1, PAGE)
	fansDur := time.Since(q0)
	q1 := time.Now()
	_, _ = relSvc.ListFollowing(ctx, users[1].ID, 1, PAGE)
	follDur := time.Since(q1)

	// 发帖后由扇出 worker 写入每个粉丝的 inbox
	for i := 0; i < POSTS; i++ {
		_, _ = postSvc.CreatePost(ctx, celeb.ID, service.CreatePostInput{Text: strings.Repeat("gm ", 1+i%5)})
	}
	worker := service.NewFanoutWorker(db, fanRepo, cfg.Timeline.Workers, cfg.Timeline.BatchSize, cfg.Timeline.ClaimLimit, cfg.Timeline.PollInterval)
	f0 := time.Now()
	for {
		n, err := worker.ProcessOnce(ctx)
		if err != nil {
			panic(err)
		}
		if n == 0 {
			break
		}
	}
	fanoutDur := time.Since(f0)

	t1 := time.Now()
	_, _ = postSvc.GetHomeTimeline(ctx, users[N].ID, 0, PAGE)
	timelineDur := time.Since(t1)

	_ = stopNotifications(ctx)

	fmt.Printf("N=%d, CONC=%d, PAGE=%d, POSTS=%d\n", N, CONC, PAGE, POSTS)
	fmt.Printf("Follow total: %v, per op: %v, p50: %v, p95: %v, p99: %v\n",
		followDur, followDur/time.Duration(N), pct(followRecs, 0.50), pct(followRecs, 0.95), pct(followRecs, 0.99))
	fmt.Printf("Query fans(%d) latency: %v\n", PAGE, fansDur)
	fmt.Printf("Query following(%d) latency: %v\n", PAGE, follDur)
	fmt.Printf("Fanout %d posts x %d fans: %v\n", POSTS, N, fanoutDur)
	fmt.Printf("Home timeline(%d) latency: %v\n", PAGE, timelineDur)
}
