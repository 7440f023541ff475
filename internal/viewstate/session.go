// Package viewstate owns the mounted views of the signed-in user. Each view is
// a reconcile.View fed by one owner-scoped subscription; switching user tears
// every view down before the next user's are opened.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yuqie6/Folio/internal/reconcile"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
	"github.com/yuqie6/Folio/internal/subscription"
)

// ErrNoUser 未登录
var ErrNoUser = errors.New("no signed-in user")

// ErrNotMounted 视图未挂载
var ErrNotMounted = errors.New("view not mounted")

// Update 视图发布通知
type Update struct {
	Owner   string `json:"owner"`
	View    Kind   `json:"view"`
	Version uint64 `json:"version"`
}

// Options 会话选项
type Options struct {
	LoadTimeout time.Duration
	Observer    reconcile.Observer
	Now         func() time.Time
}

type view interface {
	Trigger()
	Wait(ctx context.Context) error
	Close()
	State() reconcile.State
	LastError() error
}

type mounted struct {
	kind   Kind
	view   view
	handle *subscription.Handle

	dashboard *reconcile.View[Dashboard]
	resume    *reconcile.View[Resume]
	profile   *reconcile.View[ProfileView]
}

// Session 当前用户的视图集合
type Session struct {
	store store.Store
	subs  *subscription.Manager
	opts  Options

	mu        sync.Mutex
	owner     string
	epoch     uint64
	views     map[Kind]*mounted
	listeners []func(Update)
}

func NewSession(st store.Store, subs *subscription.Manager, opts Options) *Session {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		store: st,
		subs:  subs,
		opts:  opts,
		views: make(map[Kind]*mounted),
	}
}

// CurrentUser 当前用户，未登录为空
func (s *Session) CurrentUser() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

// OnPublish 注册视图发布监听（SSE 等）
func (s *Session) OnPublish(fn func(Update)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// SignIn 切换到 owner。已挂载的视图先全部关闭，再为新用户重新挂载。
func (s *Session) SignIn(owner string) error {
	if owner == "" {
		return fmt.Errorf("用户不能为空")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.owner == owner {
		return nil
	}
	kinds := s.teardownLocked()
	prev := s.owner
	s.owner = owner
	s.epoch++
	for _, k := range kinds {
		s.mountLocked(k)
	}
	slog.Info("用户已切换", "from", prev, "to", owner, "remounted", len(kinds))
	return nil
}

// SignOut 退出登录，关闭全部订阅与视图
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == "" {
		return
	}
	s.teardownLocked()
	closed := 0
	if s.subs != nil {
		closed = s.subs.CloseAll()
	}
	slog.Info("用户已退出", "owner", s.owner, "leftover_subscriptions", closed)
	s.owner = ""
	s.epoch++
}

// teardownLocked 先退订再关闭视图，返回原先挂载的视图类型
func (s *Session) teardownLocked() []Kind {
	var kinds []Kind
	for _, k := range AllKinds() {
		m, ok := s.views[k]
		if !ok {
			continue
		}
		kinds = append(kinds, k)
		s.closeMounted(m)
		delete(s.views, k)
	}
	return kinds
}

func (s *Session) closeMounted(m *mounted) {
	if s.subs != nil {
		s.subs.Unsubscribe(m.handle)
	}
	m.view.Close()
}

// Mount 挂载视图并触发初始加载；订阅失败时退化为单次加载，不返回错误
func (s *Session) Mount(kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == "" {
		return ErrNoUser
	}
	if _, ok := s.views[kind]; ok {
		return nil
	}
	s.mountLocked(kind)
	return nil
}

func (s *Session) mountLocked(kind Kind) {
	owner := s.owner
	epoch := s.epoch

	m := &mounted{kind: kind}
	emit := func(version uint64) {
		s.emit(epoch, Update{Owner: owner, View: kind, Version: version})
	}

	switch kind {
	case KindDashboard:
		v := reconcile.New(func(ctx context.Context) (Dashboard, error) {
			return LoadDashboard(ctx, s.store, owner, s.opts.Now())
		}, reconcile.Options[Dashboard]{Name: string(kind), LoadTimeout: s.opts.LoadTimeout, Clone: CloneDashboard, Observer: s.opts.Observer})
		v.OnPublish(func(p reconcile.Published[Dashboard]) { emit(p.Version) })
		m.dashboard, m.view = v, v
	case KindResume:
		v := reconcile.New(func(ctx context.Context) (Resume, error) {
			return LoadResume(ctx, s.store, owner)
		}, reconcile.Options[Resume]{Name: string(kind), LoadTimeout: s.opts.LoadTimeout, Clone: CloneResume, Observer: s.opts.Observer})
		v.OnPublish(func(p reconcile.Published[Resume]) { emit(p.Version) })
		m.resume, m.view = v, v
	case KindProfile:
		v := reconcile.New(func(ctx context.Context) (ProfileView, error) {
			return LoadProfile(ctx, s.store, owner)
		}, reconcile.Options[ProfileView]{Name: string(kind), LoadTimeout: s.opts.LoadTimeout, Clone: CloneProfileView, Observer: s.opts.Observer})
		v.OnPublish(func(p reconcile.Published[ProfileView]) { emit(p.Version) })
		m.profile, m.view = v, v
	}

	if s.subs != nil {
		h, err := s.subs.Subscribe(owner, kind.Entities(), m.view.Trigger)
		if err != nil {
			slog.Warn("视图订阅失败，仅做初始加载", "view", kind, "owner", owner, "error", err)
		}
		m.handle = h
	}
	s.views[kind] = m
	m.view.Trigger()
	slog.Debug("视图已挂载", "view", kind, "owner", owner)
}

// Unmount 卸载视图
func (s *Session) Unmount(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.views[kind]
	if !ok {
		return
	}
	s.closeMounted(m)
	delete(s.views, kind)
	slog.Debug("视图已卸载", "view", kind)
}

// Mounted 已挂载的视图
func (s *Session) Mounted() []Kind {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Kind
	for _, k := range AllKinds() {
		if _, ok := s.views[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Degraded 视图是否没有实时更新
func (s *Session) Degraded(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.views[kind]
	if !ok {
		return false
	}
	return m.handle == nil || m.handle.Degraded()
}

// TriggerReload 手动重载；不传参数时重载全部已挂载视图
func (s *Session) TriggerReload(kinds ...Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(kinds) == 0 {
		kinds = AllKinds()
	}
	for _, k := range kinds {
		if m, ok := s.views[k]; ok {
			m.view.Trigger()
		}
	}
}

// NotifyMutation 本会话写入成功后调用：只重载依赖该集合的视图，且仅限当前用户
func (s *Session) NotifyMutation(owner string, entity schema.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner == "" || owner != s.owner {
		return
	}
	for _, k := range AllKinds() {
		m, ok := s.views[k]
		if ok && k.DependsOn(entity) {
			m.view.Trigger()
		}
	}
}

// Wait 等待视图空闲，返回最后一次加载的错误
func (s *Session) Wait(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	m, ok := s.views[kind]
	s.mu.Unlock()
	if !ok {
		return ErrNotMounted
	}
	return m.view.Wait(ctx)
}

// Dashboard 仪表盘快照
func (s *Session) Dashboard() (reconcile.Published[Dashboard], bool) {
	s.mu.Lock()
	m, ok := s.views[KindDashboard]
	s.mu.Unlock()
	if !ok {
		return reconcile.Published[Dashboard]{}, false
	}
	return m.dashboard.Current()
}

// Resume 简历快照
func (s *Session) Resume() (reconcile.Published[Resume], bool) {
	s.mu.Lock()
	m, ok := s.views[KindResume]
	s.mu.Unlock()
	if !ok {
		return reconcile.Published[Resume]{}, false
	}
	return m.resume.Current()
}

// Profile 资料页快照
func (s *Session) Profile() (reconcile.Published[ProfileView], bool) {
	s.mu.Lock()
	m, ok := s.views[KindProfile]
	s.mu.Unlock()
	if !ok {
		return reconcile.Published[ProfileView]{}, false
	}
	return m.profile.Current()
}

// ViewStatus 视图运行状态（状态接口用）
type ViewStatus struct {
	View      Kind   `json:"view"`
	State     string `json:"state"`
	Degraded  bool   `json:"degraded"`
	LastError string `json:"last_error,omitempty"`
}

// Status 已挂载视图的状态
func (s *Session) Status() []ViewStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ViewStatus
	for _, k := range AllKinds() {
		m, ok := s.views[k]
		if !ok {
			continue
		}
		st := ViewStatus{
			View:     k,
			State:    m.view.State().String(),
			Degraded: m.handle == nil || m.handle.Degraded(),
		}
		if err := m.view.LastError(); err != nil {
			st.LastError = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Close 关闭会话
func (s *Session) Close() {
	s.SignOut()
}

func (s *Session) emit(epoch uint64, u Update) {
	s.mu.Lock()
	if epoch != s.epoch {
		// 旧用户的视图迟到的发布
		s.mu.Unlock()
		return
	}
	listeners := append([]func(Update){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}
