// Package subscription opens owner-scoped change channels for mounted views
// and turns change signals into reload calls.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

// ErrSubscribe 变更通道无法建立，视图退化为单次加载
var ErrSubscribe = errors.New("subscribe failed")

// Observer 订阅数量观测（指标）
type Observer interface {
	SubscriptionOpened()
	SubscriptionClosed()
	SubscriptionFailed()
	ChangeDelivered(owner string)
}

// Handle 一个视图的订阅句柄
type Handle struct {
	id       uint64
	Owner    string
	Entities []schema.Entity

	cancel context.CancelFunc
	done   chan struct{}
	open   atomic.Bool

	mu       sync.Mutex
	degraded bool
	err      error
}

// Open 句柄是否仍有效
func (h *Handle) Open() bool {
	return h != nil && h.open.Load()
}

// Degraded 通道未建立或已中断，只有单次加载，没有实时更新
func (h *Handle) Degraded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.degraded
}

// Err 退化原因
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) markDegraded(err error) {
	h.mu.Lock()
	h.degraded = true
	h.err = err
	h.mu.Unlock()
}

// Done 投递协程退出后关闭
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

type Manager struct {
	feed     store.ChangeFeed
	observer Observer

	mu      sync.Mutex
	nextID  uint64
	handles map[uint64]*Handle
}

func NewManager(feed store.ChangeFeed, observer Observer) *Manager {
	return &Manager{
		feed:     feed,
		observer: observer,
		handles:  make(map[uint64]*Handle),
	}
}

// Subscribe 为 owner 打开变更通道，每次变更调用一次 reload（突发事件可能合并）。
// 打开失败时返回 Degraded 句柄与包装了 ErrSubscribe 的错误；调用方应继续做初始加载。
func (m *Manager) Subscribe(owner string, entities []schema.Entity, reload func()) (*Handle, error) {
	h := &Handle{
		Owner:    owner,
		Entities: append([]schema.Entity(nil), entities...),
		done:     make(chan struct{}),
	}
	if owner == "" || reload == nil {
		return m.degrade(h, fmt.Errorf("%w: 缺少用户或回调", ErrSubscribe))
	}
	if m.feed == nil {
		return m.degrade(h, fmt.Errorf("%w: 未配置变更源", ErrSubscribe))
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.feed.Watch(ctx, owner, h.Entities)
	if err != nil {
		cancel()
		return m.degrade(h, fmt.Errorf("%w: %v", ErrSubscribe, err))
	}

	h.cancel = cancel
	h.open.Store(true)

	m.mu.Lock()
	m.nextID++
	h.id = m.nextID
	m.handles[h.id] = h
	m.mu.Unlock()

	if m.observer != nil {
		m.observer.SubscriptionOpened()
	}
	slog.Debug("订阅已建立", "owner", owner, "entities", h.Entities)

	go m.deliver(h, ch, reload)
	return h, nil
}

func (m *Manager) degrade(h *Handle, err error) (*Handle, error) {
	h.markDegraded(err)
	close(h.done)
	if m.observer != nil {
		m.observer.SubscriptionFailed()
	}
	slog.Warn("订阅失败，退化为单次加载", "owner", h.Owner, "error", err)
	return h, err
}

func (m *Manager) deliver(h *Handle, ch <-chan struct{}, reload func()) {
	defer close(h.done)
	for range ch {
		// 退订后通道里可能还残留信号，不能投递给已卸载的视图
		if !h.open.Load() {
			continue
		}
		if m.observer != nil {
			m.observer.ChangeDelivered(h.Owner)
		}
		reload()
	}
	m.dropped(h, reload)
}

// dropped 变更源自行关闭了通道（如 websocket 断开）：句柄退化，补一次加载
func (m *Manager) dropped(h *Handle, reload func()) {
	if !h.open.CompareAndSwap(true, false) {
		return
	}
	m.mu.Lock()
	delete(m.handles, h.id)
	m.mu.Unlock()

	h.cancel()
	h.markDegraded(fmt.Errorf("%w: 变更通道已断开", ErrSubscribe))
	if m.observer != nil {
		m.observer.SubscriptionClosed()
		m.observer.SubscriptionFailed()
	}
	slog.Warn("变更通道中断，退化为单次加载", "owner", h.Owner)
	reload()
}

// Unsubscribe 关闭句柄；之后不会再调用 reload。可重复调用。
func (m *Manager) Unsubscribe(h *Handle) {
	if h == nil || !h.open.CompareAndSwap(true, false) {
		return
	}
	m.mu.Lock()
	delete(m.handles, h.id)
	m.mu.Unlock()

	h.cancel()
	if m.observer != nil {
		m.observer.SubscriptionClosed()
	}
	slog.Debug("订阅已关闭", "owner", h.Owner)
}

// CloseOwner 关闭某用户的全部订阅，返回关闭数量
func (m *Manager) CloseOwner(owner string) int {
	return m.closeWhere(func(h *Handle) bool { return h.Owner == owner })
}

// CloseAll 关闭全部订阅（退出登录）
func (m *Manager) CloseAll() int {
	return m.closeWhere(func(*Handle) bool { return true })
}

func (m *Manager) closeWhere(match func(*Handle) bool) int {
	m.mu.Lock()
	var victims []*Handle
	for _, h := range m.handles {
		if match(h) {
			victims = append(victims, h)
		}
	}
	m.mu.Unlock()

	for _, h := range victims {
		m.Unsubscribe(h)
	}
	return len(victims)
}

// Active 当前有效订阅数
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handles)
}
