package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func TestRelationshipService_FollowRules(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")
	bob := e.user(t, 2, "bob")

	assert.ErrorIs(t, e.relations.Follow(ctx, alice.ID, alice.ID), ErrFollowSelf)
	assert.ErrorIs(t, e.relations.Follow(ctx, alice.ID, walletOf(42)), ErrUserNotFound)

	require.NoError(t, e.relations.Follow(ctx, alice.ID, bob.ID))
	require.NoError(t, e.relations.Follow(ctx, alice.ID, bob.ID))
	assert.Equal(t, 1, countType(e.inbox(t, bob.ID), model.NotifyFollow), "repeat follow notifies once")

	ok, err := e.relations.IsFollowing(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	following, err := e.relations.ListFollowing(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, following, 1)
	assert.Equal(t, "bob", following[0].Username)

	fans, err := e.relations.ListFans(ctx, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, fans, 1)
	assert.Equal(t, alice.ID, fans[0].ID)

	b, err := e.users.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.FollowerCount)

	require.NoError(t, e.relations.Unfollow(ctx, alice.ID, bob.ID))
	require.NoError(t, e.relations.Unfollow(ctx, alice.ID, bob.ID))
	b, err = e.users.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, b.FollowerCount, "cached profile invalidated on unfollow")
}

func TestRelationshipService_UnfollowPrunesTimeline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	alice := e.user(t, 1, "alice")
	bob := e.user(t, 2, "bob")
	require.NoError(t, e.relations.Follow(ctx, alice.ID, bob.ID))
	e.post(t, bob, "from bob")
	_, err := e.fanout.ProcessOnce(ctx)
	require.NoError(t, err)

	tl, err := e.posts.GetHomeTimeline(ctx, alice.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, tl, 1)

	require.NoError(t, e.relations.Unfollow(ctx, alice.ID, bob.ID))
	tl, err = e.posts.GetHomeTimeline(ctx, alice.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, tl)
}
