package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/feedcache"
)

func strPtr(s string) *string { return &s }

func TestUserService_CreateUserValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	u, err := e.users.CreateUser(ctx, CreateUserInput{Wallet: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Username: "Alice_1"})
	require.NoError(t, err)
	assert.Equal(t, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed", u.ID)
	assert.Equal(t, "Alice_1", u.DisplayName, "display name defaults to username")

	_, err = e.users.CreateUser(ctx, CreateUserInput{Wallet: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAeD", Username: "other"})
	assert.ErrorIs(t, err, ErrInvalidWallet, "bad EIP-55 checksum")
	_, err = e.users.CreateUser(ctx, CreateUserInput{Wallet: "not-a-wallet", Username: "other"})
	assert.ErrorIs(t, err, ErrInvalidWallet)

	for _, bad := range []string{"ab", "has space", "dash-name", strings.Repeat("x", 31)} {
		_, err = e.users.CreateUser(ctx, CreateUserInput{Wallet: walletOf(9), Username: bad})
		assert.ErrorIs(t, err, ErrInvalidUsername, bad)
	}

	_, err = e.users.CreateUser(ctx, CreateUserInput{Wallet: walletOf(2), Username: "alice_1"})
	assert.ErrorIs(t, err, ErrUsernameTaken, "uniqueness is case-insensitive")
	_, err = e.users.CreateUser(ctx, CreateUserInput{Wallet: u.ID, Username: "fresh"})
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestUserService_GetUserIsCached(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")

	got, err := e.users.GetUser(ctx, "0xzz")
	assert.ErrorIs(t, err, ErrInvalidWallet)
	assert.Nil(t, got)

	got, err = e.users.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.True(t, e.redis.Exists(feedcache.UserKey(alice.ID)))

	_, err = e.users.GetUser(ctx, walletOf(99))
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = e.users.GetUserByUsername(ctx, "@ALICE")
	require.NoError(t, err)
}

func TestUserService_UpdateProfilePropagatesAuthor(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")
	bob := e.user(t, 2, "bob")
	p := e.post(t, alice, "hello")
	_, err := e.posts.ToggleRepost(ctx, bob.ID, p.ID)
	require.NoError(t, err)
	_, err = e.users.GetUser(ctx, alice.ID)
	require.NoError(t, err)

	_, err = e.users.UpdateProfile(ctx, alice.ID, ProfilePatch{Username: strPtr("BOB")})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	updated, err := e.users.UpdateProfile(ctx, alice.ID, ProfilePatch{Username: strPtr("Alicia"), Bio: strPtr(" gm ")})
	require.NoError(t, err)
	assert.Equal(t, "Alicia", updated.Username)
	assert.Equal(t, "gm", updated.Bio)
	assert.False(t, e.redis.Exists(feedcache.UserKey(alice.ID)), "profile cache invalidated")

	got, err := e.posts.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alicia", got.AuthorUsername)

	reposts, err := e.posts.GetPostsByUser(ctx, bob.ID, zeroTime, 10)
	require.NoError(t, err)
	require.Len(t, reposts, 1)
	assert.Equal(t, "Alicia", reposts[0].OriginalAuthorUsername)

	// 大小写变化不算占用
	_, err = e.users.UpdateProfile(ctx, alice.ID, ProfilePatch{Username: strPtr("ALICIA")})
	require.NoError(t, err)
}

func TestUserService_Bookmarks(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")
	p1 := e.post(t, alice, "one")
	p2 := e.post(t, alice, "two")

	_, err := e.users.ToggleBookmark(ctx, alice.ID, "missing")
	assert.ErrorIs(t, err, ErrPostNotFound)
	_, err = e.users.ToggleBookmark(ctx, walletOf(99), p1.ID)
	assert.ErrorIs(t, err, ErrUserNotFound)

	on, err := e.users.ToggleBookmark(ctx, alice.ID, p1.ID)
	require.NoError(t, err)
	assert.True(t, on)
	_, err = e.users.ToggleBookmark(ctx, alice.ID, p2.ID)
	require.NoError(t, err)

	list, err := e.users.ListBookmarks(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)

	on, err = e.users.ToggleBookmark(ctx, alice.ID, p1.ID)
	require.NoError(t, err)
	assert.False(t, on)
	ok, err := e.users.IsBookmarked(ctx, alice.ID, p1.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUserService_SearchAndSuggest(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")
	bob := e.user(t, 2, "bob")
	carol := e.user(t, 3, "carol")
	dave := e.user(t, 4, "dave")
	require.NoError(t, e.relations.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, e.relations.Follow(ctx, dave.ID, carol.ID))

	list, err := e.users.SearchUsers(ctx, "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, list)

	list, err = e.users.SearchUsers(ctx, "AR", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, carol.ID, list[0].ID)

	list, err = e.users.SuggestUsers(ctx, alice.ID, 10)
	require.NoError(t, err)
	ids := make([]string, len(list))
	for i, u := range list {
		ids[i] = u.ID
	}
	assert.NotContains(t, ids, alice.ID)
	assert.NotContains(t, ids, bob.ID)
	require.Len(t, ids, 2)
	assert.Equal(t, carol.ID, ids[0], "most followed first")
}
