package eventbus

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yuqie6/Folio/internal/schema"
)

// Event 记录变更通知。订阅者只会收到“有变化”的信号，需自行重新查询。
type Event struct {
	Entity    schema.Entity   `json:"entity"`
	Op        schema.ChangeOp `json:"op"`
	Owner     string          `json:"owner"`
	RecordID  string          `json:"record_id,omitempty"`
	Seq       int64           `json:"seq,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Filter 订阅过滤条件，Owner 必填；Entities 为空表示全部
type Filter struct {
	Owner    string
	Entities []schema.Entity
}

func (f Filter) match(evt Event) bool {
	if evt.Owner != f.Owner {
		return false
	}
	if len(f.Entities) == 0 {
		return true
	}
	for _, e := range f.Entities {
		if e == evt.Entity {
			return true
		}
	}
	return false
}

type subscriber struct {
	filter Filter
	ch     chan struct{}
}

type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	onPublish func(Event)
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// SetOnPublish 设置发布钩子（用于指标），需在发布前调用
func (h *Hub) SetOnPublish(fn func(Event)) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.onPublish = fn
	h.mu.Unlock()
}

func (h *Hub) Publish(evt Event) {
	if h == nil {
		return
	}
	if evt.Timestamp == 0 {
		evt.Timestamp = time.Now().UnixMilli()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.onPublish != nil {
		h.onPublish(evt)
	}
	for sub := range h.subs {
		if !sub.filter.match(evt) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default:
			// 通道里已有未消费的信号，消费者一定还会再重载一次，合并即可
		}
	}
}

// Subscribe 订阅 owner 范围内的变更。通道容量为 1：多个事件会合并为一次信号，
// 但不会出现事件到达后没有后续信号的情况。ctx 结束后通道关闭。
func (h *Hub) Subscribe(ctx context.Context, filter Filter) <-chan struct{} {
	sub := &subscriber{
		filter: Filter{Owner: filter.Owner, Entities: append([]schema.Entity(nil), filter.Entities...)},
		ch:     make(chan struct{}, 1),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		close(sub.ch)
	}()

	return sub.ch
}

// Len 当前订阅数
func (h *Hub) Len() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Watch 实现 store.ChangeFeed
func (h *Hub) Watch(ctx context.Context, owner string, entities []schema.Entity) (<-chan struct{}, error) {
	if h == nil {
		return nil, errors.New("eventbus: hub 未初始化")
	}
	if owner == "" {
		return nil, errors.New("eventbus: owner 不能为空")
	}
	return h.Subscribe(ctx, Filter{Owner: owner, Entities: entities}), nil
}
