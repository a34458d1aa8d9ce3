package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oblivion-social/oblivion-api/internal/model"
)

func TestHubDeliversToEverySubscriberOfRecipient(t *testing.T) {
	h := NewHub(4)
	a1, cancelA1 := h.Subscribe("alice")
	a2, cancelA2 := h.Subscribe("alice")
	b, cancelB := h.Subscribe("bob")
	defer cancelA1()
	defer cancelA2()
	defer cancelB()

	n := &model.Notification{ID: "n1", ToUserID: "alice", Type: model.NotifyLike}
	assert.Equal(t, 2, h.Deliver(n))
	assert.Equal(t, "n1", (<-a1).ID)
	assert.Equal(t, "n1", (<-a2).ID)
	select {
	case <-b:
		t.Fatal("bob must not receive alice's notification")
	default:
	}
}

func TestHubCancelClosesChannelOnce(t *testing.T) {
	h := NewHub(1)
	ch, cancel := h.Subscribe("alice")
	assert.True(t, h.Online("alice"))
	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.False(t, h.Online("alice"))
	assert.Equal(t, 0, h.Deliver(&model.Notification{ToUserID: "alice"}))
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	h := NewHub(1)
	_, cancel := h.Subscribe("alice")
	defer cancel()
	assert.Equal(t, 1, h.Deliver(&model.Notification{ID: "1", ToUserID: "alice"}))
	assert.Equal(t, 0, h.Deliver(&model.Notification{ID: "2", ToUserID: "alice"}))
}

func TestRedisBrokerFansOutThroughChannel(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub(4)
	broker := NewRedisBroker(client, hub, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- broker.Run(ctx, ready) }()
	<-ready

	ch, unsubscribe := broker.Subscribe("alice")
	defer unsubscribe()

	require.NoError(t, broker.Publish(ctx, &model.Notification{ID: "n1", ToUserID: "alice", Type: model.NotifyFollow}))
	select {
	case n := <-ch:
		assert.Equal(t, "n1", n.ID)
		assert.Equal(t, model.NotifyFollow, n.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broker did not stop")
	}
}
