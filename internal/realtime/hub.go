// Package realtime delivers notifications to connected listeners.
package realtime

import (
	"context"
	"sync"

	"github.com/oblivion-social/oblivion-api/internal/metrics"
	"github.com/oblivion-social/oblivion-api/internal/model"
)

const defaultBuffer = 32

// Broker 通知实时分发
type Broker interface {
	Publish(ctx context.Context, n *model.Notification) error
	Subscribe(userID string) (<-chan *model.Notification, func())
}

type subscriber struct {
	ch chan *model.Notification
}

// Hub 进程内按用户维护订阅者；同一用户可有多个连接
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*subscriber]struct{}
	buffer  int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{clients: make(map[string]map[*subscriber]struct{}), buffer: buffer}
}

// Subscribe registers a listener for userID. The returned cancel closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan *model.Notification, func()) {
	sub := &subscriber{ch: make(chan *model.Notification, h.buffer)}
	h.mu.Lock()
	set, ok := h.clients[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.clients[userID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	metrics.RealtimeSubscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if set, ok := h.clients[userID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(h.clients, userID)
				}
			}
			close(sub.ch)
			h.mu.Unlock()
			metrics.RealtimeSubscribers.Dec()
		})
	}
	return sub.ch, cancel
}

// Deliver 推给接收者的全部本地订阅；慢消费者直接丢弃，通知已落库可再拉取
func (h *Hub) Deliver(n *model.Notification) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for sub := range h.clients[n.ToUserID] {
		select {
		case sub.ch <- n:
			delivered++
		default:
		}
	}
	return delivered
}

// Publish implements Broker for a single instance.
func (h *Hub) Publish(_ context.Context, n *model.Notification) error {
	h.Deliver(n)
	return nil
}

// Online reports whether userID has at least one local listener.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}
