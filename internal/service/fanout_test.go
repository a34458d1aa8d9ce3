package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func TestFanoutWorker_ProcessOnce(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	author := e.user(t, 1, "author")
	for i := 2; i <= 6; i++ {
		fan := e.user(t, i, "fan"+string(rune('a'+i)))
		require.NoError(t, e.relations.Follow(ctx, fan.ID, author.ID))
	}
	p := e.post(t, author, "to everyone")

	n, err := e.fanout.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var ob model.Outbox
	require.NoError(t, e.db.Where("post_id = ?", p.ID).First(&ob).Error)
	assert.Equal(t, model.OutboxDone, ob.Status)
	assert.EqualValues(t, 6, ob.FanoutCount, "author plus five fans, paged by two")

	n, err = e.fanout.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing left to claim")

	tl, err := e.posts.GetHomeTimeline(ctx, author.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, tl, 1)
	assert.Equal(t, p.ID, tl[0].ID)
}

func TestFanoutWorker_SkipsDeletedPosts(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	author := e.user(t, 1, "author")
	p := e.post(t, author, "gone")
	require.NoError(t, e.db.Delete(&model.Post{}, "id = ?", p.ID).Error)

	n, err := e.fanout.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var cnt int64
	require.NoError(t, e.db.Model(&model.Inbox{}).Count(&cnt).Error)
	assert.Zero(t, cnt)
}
