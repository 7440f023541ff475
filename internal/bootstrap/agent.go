package bootstrap

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yuqie6/Folio/internal/changefeed"
	"github.com/yuqie6/Folio/internal/repository"
	"github.com/yuqie6/Folio/internal/viewstate"
)

// 仪表盘 "Last sync" 为相对时间，定时重载保持新鲜
const dashboardRefreshInterval = time.Minute

// 变更日志只保留最近的若干条，追读器总是从最新位置开始
const (
	journalPruneInterval = time.Hour
	journalKeep          = 10000
)

// AgentRuntime 包含 Agent 二进制需要启动的后台任务
type AgentRuntime struct {
	*Core
	Tailer *changefeed.Tailer

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAgentRuntime 构建 Agent 运行时并启动追读与定时任务
func NewAgentRuntime(ctx context.Context, cfgPath string) (*AgentRuntime, error) {
	core, err := NewCore(cfgPath)
	if err != nil {
		return nil, err
	}
	return StartAgent(ctx, core)
}

// StartAgent 在已构建的 Core 上启动后台任务
func StartAgent(ctx context.Context, core *Core) (*AgentRuntime, error) {
	rt := &AgentRuntime{Core: core, done: make(chan struct{})}

	if core.DB != nil && core.DB.SafeMode {
		// 安全模式：允许状态接口启动，不启动追读
		slog.Warn("数据库处于安全模式，跳过后台任务", "reason", core.DB.MigrationError)
		close(rt.done)
		return rt, nil
	}

	if core.Local != nil && core.Cfg.ChangeFeed.Enabled {
		fc := changefeed.DefaultConfig(core.DB.Path)
		if ms := core.Cfg.ChangeFeed.DebounceMs; ms > 0 {
			fc.Debounce = time.Duration(ms) * time.Millisecond
		}
		if ms := core.Cfg.ChangeFeed.PollIntervalMs; ms >= 0 {
			fc.Fallback = time.Duration(ms) * time.Millisecond
		}
		if n := core.Cfg.ChangeFeed.BatchSize; n > 0 {
			fc.Batch = n
		}
		core.Local.TrackLocal(true)
		tailer, err := changefeed.NewTailer(fc, core.Local.Changes(), core.Local, core.Hub)
		if err != nil {
			core.Close()
			return nil, err
		}
		if err := tailer.Start(ctx); err != nil {
			_ = tailer.Stop()
			core.Close()
			return nil, err
		}
		rt.Tailer = tailer
	}

	if u := core.Cfg.App.DefaultUser; u != "" && core.Session.CurrentUser() == "" {
		if err := core.SignIn(ctx, u, core.Cfg.App.DefaultEmail); err != nil {
			slog.Warn("默认用户登录失败", "user", u, "error", err)
		}
	}

	bgCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runPeriodic(bgCtx, dashboardRefreshInterval, func() {
			core.Session.TriggerReload(viewstate.KindDashboard)
		})
	}()
	if core.Local != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runPeriodic(bgCtx, journalPruneInterval, func() { pruneJournal(bgCtx, core.Local.Changes(), journalKeep) })
		}()
	}
	go func() {
		wg.Wait()
		close(rt.done)
	}()

	return rt, nil
}

// TailerCursor 已追读到的 seq，未启用时为 nil
func (rt *AgentRuntime) TailerCursor() func() int64 {
	if rt == nil || rt.Tailer == nil {
		return nil
	}
	return rt.Tailer.Cursor
}

// Stop 停止后台任务，Core 保持可用
func (rt *AgentRuntime) Stop() {
	if rt == nil {
		return
	}
	if rt.cancel != nil {
		rt.cancel()
		<-rt.done
		rt.cancel = nil
	}
	if rt.Tailer != nil {
		_ = rt.Tailer.Stop()
	}
}

// Close 关闭 Agent 运行时资源
func (rt *AgentRuntime) Close() error {
	if rt == nil {
		return nil
	}
	rt.Stop()
	return rt.Core.Close()
}

// pruneJournal 清理旧的变更日志
func pruneJournal(ctx context.Context, journal *repository.ChangeRepository, keep int64) {
	maxSeq, err := journal.MaxSeq(ctx)
	if err != nil || maxSeq <= keep {
		return
	}
	n, err := journal.PruneBefore(ctx, maxSeq-keep+1)
	if err != nil {
		slog.Warn("清理变更日志失败", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("已清理变更日志", "rows", n, "before", maxSeq-keep+1)
	}
}

// runPeriodic 定时执行函数（首次等待一个周期）
func runPeriodic(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
