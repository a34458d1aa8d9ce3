package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrending struct{ calls atomic.Int32 }

func (c *countingTrending) RefreshTrending(context.Context, int) error {
	c.calls.Add(1)
	return nil
}

type stubPruner struct{ ttl time.Duration }

func (p *stubPruner) Prune(_ context.Context, olderThan time.Duration) (int64, error) {
	p.ttl = olderThan
	return 3, nil
}

type stubCleaner struct{}

func (stubCleaner) Cleanup(time.Duration) int { return 0 }

func TestRegisterSkipsEmptySpecs(t *testing.T) {
	s := NewScheduler(0)
	err := Register(s, Config{}, &countingTrending{}, &stubPruner{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Entries())

	err = Register(s, Config{TrendingSpec: "@every 5m", PruneSpec: "@daily", NotificationTTL: time.Hour}, &countingTrending{}, &stubPruner{}, stubCleaner{})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Entries())
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	s := NewScheduler(0)
	err := Register(s, Config{TrendingSpec: "every now and then"}, &countingTrending{}, &stubPruner{}, nil)
	assert.Error(t, err)
}

func TestSchedulerRunsJobs(t *testing.T) {
	s := NewScheduler(time.Second)
	tr := &countingTrending{}
	require.NoError(t, Register(s, Config{TrendingSpec: "@every 1s"}, tr, &stubPruner{}, nil))

	s.Start()
	require.Eventually(t, func() bool { return tr.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestRunOnceSwallowsErrors(t *testing.T) {
	s := NewScheduler(time.Second)
	var got error
	s.runOnce("boom", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		assert.True(t, ok)
		got = errors.New("boom")
		return got
	})
	assert.EqualError(t, got, "boom")
}
