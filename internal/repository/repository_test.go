package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, n int, username string) *model.User {
	t.Helper()
	u := &model.User{ID: fmt.Sprintf("0x%040x", n), Username: username, UsernameLower: lower(username), DisplayName: username}
	require.NoError(t, db.Create(u).Error)
	return u
}

func TestFollowRepository_CreateDeleteKeepsCounters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewFollowRepository(db)
	fans := NewFanRepository(db)
	users := NewUserRepository(db)
	a := seedUser(t, db, 1, "alice")
	b := seedUser(t, db, 2, "bob")

	created, err := repo.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, created, "second follow is a no-op")

	ok, err := repo.Exists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := fans.Count(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	ua, _ := users.GetByID(ctx, a.ID)
	ub, _ := users.GetByID(ctx, b.ID)
	assert.EqualValues(t, 1, ua.FollowingCount)
	assert.EqualValues(t, 1, ub.FollowerCount)

	deleted, err := repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, deleted)
	deleted, err = repo.Delete(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	ub, _ = users.GetByID(ctx, b.ID)
	assert.EqualValues(t, 0, ub.FollowerCount)
	n, _ = fans.Count(ctx, b.ID)
	assert.Zero(t, n)
}

func TestFanRepository_Rebuild(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	follows := NewFollowRepository(db)
	fans := NewFanRepository(db)
	a := seedUser(t, db, 1, "alice")
	b := seedUser(t, db, 2, "bob")
	_, err := follows.Create(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, db.Exec("DELETE FROM fans").Error)

	n, err := fans.Rebuild(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	list, err := fans.ListFans(ctx, b.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].FanID)
}

func TestUserRepository_SearchAndPrefix(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository(db)
	seedUser(t, db, 1, "Alice")
	seedUser(t, db, 2, "alicia_x")
	seedUser(t, db, 3, "bob")
	seedUser(t, db, 4, "al_b")

	got, err := repo.Search(ctx, "LIC", 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = repo.ListByUsernamePrefix(ctx, "al", 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// "_" is literal, not a wildcard
	got, err = repo.ListByUsernamePrefix(ctx, "al_", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "al_b", got[0].Username)

	u, err := repo.GetByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "Alice", u.Username)

	_, err = repo.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostRepository_ToggleLikeTwiceRestores(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostRepository(db)
	a := seedUser(t, db, 1, "alice")
	b := seedUser(t, db, 2, "bob")
	p := &model.Post{AuthorID: a.ID, Text: "hello", StorageMode: model.StorageDatabase}
	require.NoError(t, repo.Create(ctx, p))

	liked, count, err := repo.ToggleLike(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, count)

	has, err := repo.HasLiked(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, has)

	liked, count, err = repo.ToggleLike(ctx, p.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	assert.EqualValues(t, 0, count)

	_, _, err = repo.ToggleLike(ctx, "missing", b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostRepository_ToggleRepost(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostRepository(db)
	a := seedUser(t, db, 1, "alice")
	b := seedUser(t, db, 2, "bob")
	orig := &model.Post{AuthorID: a.ID, AuthorUsername: a.Username, Text: "original", StorageMode: model.StorageDatabase}
	require.NoError(t, repo.Create(ctx, orig))

	_, err := repo.ToggleRepost(ctx, orig, a.Author())
	assert.ErrorIs(t, err, ErrCannotRepostOwn)

	res, err := repo.ToggleRepost(ctx, orig, b.Author())
	require.NoError(t, err)
	assert.True(t, res.Reposted)
	assert.EqualValues(t, 1, res.RepostCount)
	require.NotNil(t, res.Repost)
	assert.Equal(t, orig.ID, res.Repost.RepostOfID)
	assert.Equal(t, "original", res.Repost.OriginalText)
	assert.Equal(t, "alice", res.Repost.OriginalAuthorUsername)
	assert.Equal(t, b.ID, res.Repost.AuthorID)

	res2, err := repo.ToggleRepost(ctx, orig, b.Author())
	require.NoError(t, err)
	assert.False(t, res2.Reposted)
	assert.EqualValues(t, 0, res2.RepostCount)
	_, err = repo.GetByID(ctx, res.Repost.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostRepository_DeleteRepostDecrementsOriginal(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostRepository(db)
	a := seedUser(t, db, 1, "alice")
	b := seedUser(t, db, 2, "bob")
	orig := &model.Post{AuthorID: a.ID, Text: "original", StorageMode: model.StorageDatabase}
	require.NoError(t, repo.Create(ctx, orig))
	res, err := repo.ToggleRepost(ctx, orig, b.Author())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, res.Repost.ID))
	got, err := repo.GetByID(ctx, orig.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RepostCount)
	has, err := repo.HasReposted(ctx, orig.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPostRepository_TrendingOrder(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewPostRepository(db)
	a := seedUser(t, db, 1, "alice")
	now := time.Now()

	old := &model.Post{AuthorID: a.ID, Text: "old", LikeCount: 100, CreatedAt: now.Add(-48 * time.Hour)}
	low := &model.Post{AuthorID: a.ID, Text: "low", LikeCount: 1, CreatedAt: now.Add(-time.Hour)}
	high := &model.Post{AuthorID: a.ID, Text: "high", LikeCount: 2, RepostCount: 3, CreatedAt: now.Add(-2 * time.Hour)}
	for _, p := range []*model.Post{old, low, high} {
		require.NoError(t, repo.Create(ctx, p))
	}

	got, err := repo.ListTrending(ctx, now.Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "high", got[0].Text)
	assert.Equal(t, "low", got[1].Text)
}

func TestCommentRepository_CountsFollowComments(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	a := seedUser(t, db, 1, "alice")
	p := &model.Post{AuthorID: a.ID, Text: "x"}
	require.NoError(t, posts.Create(ctx, p))

	c := &model.Comment{PostID: p.ID, AuthorID: a.ID, Text: "first"}
	require.NoError(t, comments.Create(ctx, c))
	err := comments.Create(ctx, &model.Comment{PostID: "missing", AuthorID: a.ID, Text: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	got, _ := posts.GetByID(ctx, p.ID)
	assert.EqualValues(t, 1, got.CommentCount)

	require.NoError(t, comments.Delete(ctx, c.ID))
	got, _ = posts.GetByID(ctx, p.ID)
	assert.Zero(t, got.CommentCount)
}

func TestBookmarkRepository_Toggle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewBookmarkRepository(db)

	on, err := repo.Toggle(ctx, "0xa", "p1")
	require.NoError(t, err)
	assert.True(t, on)
	ids, err := repo.ListPostIDs(ctx, "0xa", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)

	on, err = repo.Toggle(ctx, "0xa", "p1")
	require.NoError(t, err)
	assert.False(t, on)
	exists, err := repo.Exists(ctx, "0xa", "p1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNotificationRepository_ReadFlags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewNotificationRepository(db)
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(ctx, &model.Notification{Type: model.NotifyLike, FromUserID: "0xb", ToUserID: "0xa"}))
	}
	list, err := repo.ListByUser(ctx, "0xa", false, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)

	require.NoError(t, repo.MarkRead(ctx, "0xa", list[0].ID))
	assert.ErrorIs(t, repo.MarkRead(ctx, "0xc", list[1].ID), ErrNotFound)

	n, err := repo.CountUnread(ctx, "0xa")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.MarkAllRead(ctx, "0xa")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.DeleteReadBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)
}

func TestCampaignRepository(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	repo := NewCampaignRepository(db)

	liked, count, err := repo.ToggleLike(ctx, "7", "0xa")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.EqualValues(t, 1, count)
	_, _, err = repo.ToggleLike(ctx, "7", "0xb")
	require.NoError(t, err)

	counts, err := repo.CountLikes(ctx, []string{"7", "8"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts["7"])
	assert.Zero(t, counts["8"])

	require.NoError(t, repo.SetFinalAmount(ctx, "7", "100", "0xa"))
	require.NoError(t, repo.SetFinalAmount(ctx, "7", "250", "0xa"))
	rec, err := repo.GetFinalAmount(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "250", rec.Amount)

	_, err = repo.GetFinalAmount(ctx, "8")
	assert.ErrorIs(t, err, ErrNotFound)
}
