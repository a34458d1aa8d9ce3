package repository

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func setupRelBenchDB(b *testing.B) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		b.Fatalf("open db: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		b.Fatalf("migrate: %v", err)
	}
	return db
}

func seedBenchUsers(b *testing.B, db *gorm.DB, n int) []model.User {
	users := make([]model.User, n)
	for i := range users {
		id := fmt.Sprintf("0x%040x", i+1)
		users[i] = model.User{ID: id, Username: fmt.Sprintf("u%04d", i), UsernameLower: fmt.Sprintf("u%04d", i)}
	}
	if err := db.CreateInBatches(&users, 500).Error; err != nil {
		b.Fatalf("seed users: %v", err)
	}
	return users
}

func BenchmarkFollowWrite_WithFanAndCounters(b *testing.B) {
	db := setupRelBenchDB(b)
	followRepo := NewFollowRepository(db)
	ctx := context.Background()
	users := seedBenchUsers(b, db, 1000)

	rnd := rand.New(rand.NewSource(1))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		from := users[rnd.Intn(len(users))].ID
		to := users[rnd.Intn(len(users))].ID
		if from == to {
			continue
		}
		_, _ = followRepo.Create(ctx, from, to)
	}
}

func BenchmarkToggleLike(b *testing.B) {
	db := setupRelBenchDB(b)
	postRepo := NewPostRepository(db)
	ctx := context.Background()
	users := seedBenchUsers(b, db, 200)
	post := &model.Post{AuthorID: users[0].ID, Text: "bench", StorageMode: model.StorageDatabase}
	if err := postRepo.Create(ctx, post); err != nil {
		b.Fatalf("create post: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = postRepo.ToggleLike(ctx, post.ID, users[i%len(users)].ID)
	}
}

func BenchmarkQueryFansAndFollowing(b *testing.B) {
	db := setupRelBenchDB(b)
	followRepo := NewFollowRepository(db)
	fanRepo := NewFanRepository(db)
	ctx := context.Background()

	// u0 有 N 个粉丝，同时关注 N 个用户
	const N = 2000
	users := seedBenchUsers(b, db, N+1)
	u0 := users[0].ID
	for _, u := range users[1:] {
		_, _ = followRepo.Create(ctx, u.ID, u0)
		_, _ = followRepo.Create(ctx, u0, u.ID)
	}

	b.ResetTimer()
	b.Run("ListFans", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = fanRepo.ListFans(ctx, u0, 0, 50)
		}
	})

	b.Run("ListFollowing", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = followRepo.ListFollowings(ctx, u0, 0, 50)
		}
	})
}
