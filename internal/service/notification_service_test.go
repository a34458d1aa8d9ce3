package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func TestNotificationService_CreateSkipsSelf(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, e.notifications.Create(ctx, &model.Notification{Type: model.NotifyLike, FromUserID: "a", ToUserID: "a"}))
	assert.Empty(t, e.inbox(t, "a"))
}

func TestNotificationService_CreatePublishesToSubscribers(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	ch, cancel := e.notifications.Subscribe("bob")
	defer cancel()

	n := &model.Notification{Type: model.NotifyFollow, FromUserID: "alice", ToUserID: "bob"}
	require.NoError(t, e.notifications.Create(ctx, n))
	assert.NotEmpty(t, n.ID)

	select {
	case got := <-ch:
		assert.Equal(t, n.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive notification")
	}
}

func TestNotificationService_ReadLifecycle(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		e.notifications.Send(&model.Notification{Type: model.NotifyLike, FromUserID: "alice", ToUserID: "bob", PostID: "p"})
	}
	list := e.inbox(t, "bob")
	require.Len(t, list, 3)

	n, err := e.notifications.UnreadCount(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	require.NoError(t, e.notifications.MarkRead(ctx, "bob", list[0].ID))
	assert.ErrorIs(t, e.notifications.MarkRead(ctx, "carol", list[1].ID), ErrNotificationNotFound)

	unread, err := e.notifications.List(ctx, "bob", true, 10)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	marked, err := e.notifications.MarkAllRead(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 2, marked)

	pruned, err := e.notifications.Prune(ctx, -time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 3, pruned)

	e.notifications.Send(&model.Notification{Type: model.NotifyLike, FromUserID: "alice", ToUserID: "bob"})
	deleted, err := e.notifications.DeleteAll(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestNotificationService_AsyncDispatch(t *testing.T) {
	e := newTestEnv(t)
	stop := e.notifications.Start(2)

	for i := 0; i < 5; i++ {
		e.notifications.Send(&model.Notification{Type: model.NotifyLike, FromUserID: "alice", ToUserID: "bob"})
	}
	require.Eventually(t, func() bool {
		n, err := e.notifications.UnreadCount(context.Background(), "bob")
		return err == nil && n == 5
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, stop(ctx))
}
