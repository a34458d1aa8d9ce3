package feedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, time.Minute), mr
}

func TestFetchLoadsOnceThenHits(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	calls := 0
	load := func(context.Context) ([]string, error) {
		calls++
		return []string{"a", "b"}, nil
	}

	got, err := Fetch(ctx, c, "k", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	got, err = Fetch(ctx, c, "k", load)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	_, err = Fetch(ctx, c, "k", load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entry reloads")
}

func TestFetchDoesNotCacheErrors(t *testing.T) {
	c, mr := newTestCache(t)
	_, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestLoadUsersUsesCacheForKnownIDs(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	var requested [][]string
	load := func(_ context.Context, missing []string) ([]*model.User, error) {
		requested = append(requested, missing)
		out := make([]*model.User, 0, len(missing))
		for _, id := range missing {
			if id == "ghost" {
				continue
			}
			out = append(out, &model.User{ID: id, Username: "u" + id})
		}
		return out, nil
	}

	got, err := c.LoadUsers(ctx, []string{"1", "2"}, load)
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = c.LoadUsers(ctx, []string{"2", "3", "ghost", "1"}, load)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{got[0].ID, got[1].ID, got[2].ID})
	assert.Equal(t, [][]string{{"1", "2"}, {"3", "ghost"}}, requested)
}

func TestDisabledCacheAlwaysLoads(t *testing.T) {
	c := New(nil, 0)
	calls := 0
	for i := 0; i < 2; i++ {
		_, err := Fetch(context.Background(), c, "k", func(context.Context) (int, error) {
			calls++
			return 1, nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.False(t, c.Enabled())
}
