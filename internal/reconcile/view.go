// Package reconcile keeps one view's published state in step with the record
// store. A View runs at most one fetch at a time, folds triggers that arrive
// mid-fetch into a single follow-up load, and never lets an abandoned fetch
// overwrite a newer result.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrClosed 视图已卸载
	ErrClosed = errors.New("view closed")
	// ErrLoadTimeout 加载超时，本次结果被放弃
	ErrLoadTimeout = errors.New("view load timed out")
)

// State 视图状态
type State int

const (
	StateIdle State = iota
	StateLoading
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Loader 拉取完整快照（不是增量）
type Loader[T any] func(ctx context.Context) (T, error)

// Published 已发布的快照
type Published[T any] struct {
	Value      T
	Version    uint64 // 每次成功发布递增
	Generation uint64 // 产生该快照的 fetch 代号
	LoadedAt   time.Time
}

// Observer 加载过程观测（指标）
type Observer interface {
	LoadFinished(view, result string, elapsed time.Duration)
	Coalesced(view string)
	Stale(view string)
}

// 加载结果标签
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Options 视图选项
type Options[T any] struct {
	// Name 用于日志与指标，如 "dashboard"
	Name string
	// LoadTimeout 单次加载上限；0 表示不限
	LoadTimeout time.Duration
	// Clone 快照拷贝函数，保证每个读取方拿到独立副本；nil 时直接返回值
	Clone    func(T) T
	Observer Observer
}

type View[T any] struct {
	opts Options[T]
	load Loader[T]

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	pending     bool
	gen         uint64
	inflight    uint64 // 当前有效 fetch 的代号，0 表示没有
	cancelFetch context.CancelFunc
	timer       *time.Timer
	idle        chan struct{}
	current     Published[T]
	loaded      bool
	lastErr     error
	listeners   []func(Published[T])

	notifyMu     sync.Mutex
	lastNotified uint64
}

// New 创建视图，不会自动加载，需要调用 Trigger
func New[T any](load Loader[T], opts Options[T]) *View[T] {
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &View[T]{
		opts:   opts,
		load:   load,
		ctx:    ctx,
		cancel: cancel,
		idle:   idle,
	}
}

// Name 视图名
func (v *View[T]) Name() string {
	return v.opts.Name
}

// OnPublish 注册发布回调。回调按版本单调递增调用，不会并发执行。
func (v *View[T]) OnPublish(fn func(Published[T])) {
	if fn == nil {
		return
	}
	v.mu.Lock()
	v.listeners = append(v.listeners, fn)
	v.mu.Unlock()
}

// Trigger 请求一次重载。加载中再次触发只记一个待办，当前加载结束后恰好补一次。
func (v *View[T]) Trigger() {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch v.state {
	case StateClosed:
		return
	case StateLoading:
		if !v.pending {
			v.pending = true
		}
		if v.opts.Observer != nil {
			v.opts.Observer.Coalesced(v.opts.Name)
		}
		slog.Debug("视图加载中，合并重载请求", "view", v.opts.Name, "generation", v.inflight)
		return
	}
	v.startLocked()
}

// Reload 触发并等待视图回到空闲，返回最后一次加载的错误
func (v *View[T]) Reload(ctx context.Context) error {
	v.Trigger()
	return v.Wait(ctx)
}

// Wait 等待视图回到空闲（包括合并产生的补加载）
func (v *View[T]) Wait(ctx context.Context) error {
	for {
		v.mu.Lock()
		state := v.state
		idle := v.idle
		lastErr := v.lastErr
		v.mu.Unlock()

		switch state {
		case StateClosed:
			return ErrClosed
		case StateIdle:
			return lastErr
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Current 当前快照副本；尚未成功加载过时 ok=false
func (v *View[T]) Current() (Published[T], bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		return Published[T]{}, false
	}
	return v.copyLocked(), true
}

// State 当前状态
func (v *View[T]) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// LastError 最后一次加载的错误（成功后清空）
func (v *View[T]) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Close 卸载视图：取消在途加载，之后的结果全部丢弃
func (v *View[T]) Close() {
	v.mu.Lock()
	if v.state == StateClosed {
		v.mu.Unlock()
		return
	}
	wasLoading := v.state == StateLoading
	v.state = StateClosed
	v.pending = false
	v.inflight = 0
	v.stopTimerLocked()
	if v.cancelFetch != nil {
		v.cancelFetch()
		v.cancelFetch = nil
	}
	if wasLoading {
		close(v.idle)
	}
	v.listeners = nil
	v.mu.Unlock()

	v.cancel()
	slog.Debug("视图已关闭", "view", v.opts.Name)
}

func (v *View[T]) startLocked() {
	v.gen++
	gen := v.gen
	v.inflight = gen
	v.state = StateLoading
	v.idle = make(chan struct{})

	ctx, cancel := context.WithCancel(v.ctx)
	v.cancelFetch = cancel
	started := time.Now()

	if v.opts.LoadTimeout > 0 {
		v.timer = time.AfterFunc(v.opts.LoadTimeout, func() {
			v.abandon(gen, started)
		})
	}

	go func() {
		val, err := v.load(ctx)
		v.finish(gen, started, val, err)
	}()
}

func (v *View[T]) abandon(gen uint64, started time.Time) {
	v.mu.Lock()
	if v.inflight != gen {
		v.mu.Unlock()
		return
	}
	v.inflight = 0
	v.timer = nil
	if v.cancelFetch != nil {
		v.cancelFetch()
		v.cancelFetch = nil
	}
	v.lastErr = ErrLoadTimeout
	v.settleLocked()
	v.mu.Unlock()

	slog.Warn("视图加载超时，保留上一份状态", "view", v.opts.Name, "generation", gen, "timeout", v.opts.LoadTimeout)
	if v.opts.Observer != nil {
		v.opts.Observer.LoadFinished(v.opts.Name, ResultTimeout, time.Since(started))
	}
}

func (v *View[T]) finish(gen uint64, started time.Time, val T, err error) {
	elapsed := time.Since(started)

	v.mu.Lock()
	if v.inflight != gen {
		// 已被放弃或视图已关闭的旧结果
		v.mu.Unlock()
		slog.Debug("丢弃过期加载结果", "view", v.opts.Name, "generation", gen)
		if v.opts.Observer != nil {
			v.opts.Observer.Stale(v.opts.Name)
		}
		return
	}
	v.inflight = 0
	v.stopTimerLocked()
	if v.cancelFetch != nil {
		v.cancelFetch()
		v.cancelFetch = nil
	}

	var (
		published Published[T]
		listeners []func(Published[T])
	)
	if err != nil {
		v.lastErr = err
	} else {
		v.lastErr = nil
		v.current = Published[T]{
			Value:      val,
			Version:    v.current.Version + 1,
			Generation: gen,
			LoadedAt:   time.Now(),
		}
		v.loaded = true
		published = v.current
		listeners = append([]func(Published[T]){}, v.listeners...)
	}
	v.settleLocked()
	v.mu.Unlock()

	if err != nil {
		slog.Warn("视图加载失败，保留上一份状态", "view", v.opts.Name, "generation", gen, "error", err)
		if v.opts.Observer != nil {
			v.opts.Observer.LoadFinished(v.opts.Name, ResultError, elapsed)
		}
		return
	}
	if v.opts.Observer != nil {
		v.opts.Observer.LoadFinished(v.opts.Name, ResultOK, elapsed)
	}
	v.notify(published, listeners)
}

// settleLocked 有待办则立即开始下一次加载，否则回到空闲
func (v *View[T]) settleLocked() {
	if v.state == StateClosed {
		return
	}
	if v.pending {
		v.pending = false
		close(v.idle)
		v.startLocked()
		return
	}
	v.state = StateIdle
	close(v.idle)
}

func (v *View[T]) notify(p Published[T], listeners []func(Published[T])) {
	if len(listeners) == 0 {
		return
	}
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()
	// 后发布的版本可能先到，旧版本不再通知
	if p.Version <= v.lastNotified {
		return
	}
	v.lastNotified = p.Version
	for _, fn := range listeners {
		out := p
		if v.opts.Clone != nil {
			out.Value = v.opts.Clone(p.Value)
		}
		fn(out)
	}
}

func (v *View[T]) copyLocked() Published[T] {
	out := v.current
	if v.opts.Clone != nil {
		out.Value = v.opts.Clone(v.current.Value)
	}
	return out
}

func (v *View[T]) stopTimerLocked() {
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}
