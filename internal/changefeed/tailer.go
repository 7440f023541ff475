// Package changefeed picks up record changes written by other processes that
// share the same SQLite file (for example the CLI writing while the agent is
// serving views) and republishes them on the local event hub.
package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/schema"
)

// Journal 变更日志读取
type Journal interface {
	ListAfter(ctx context.Context, seq int64, limit int) ([]schema.RecordChange, error)
	MaxSeq(ctx context.Context) (int64, error)
}

// LocalTracker 判断 seq 是否已由本进程发布
type LocalTracker interface {
	ConsumeLocal(seq int64) bool
}

// Config 追读配置
type Config struct {
	DBPath   string
	Debounce time.Duration // 文件写入后延迟多久读取
	Fallback time.Duration // 兜底轮询间隔，0 表示关闭
	Batch    int
}

// DefaultConfig 默认配置
func DefaultConfig(dbPath string) Config {
	return Config{
		DBPath:   dbPath,
		Debounce: 150 * time.Millisecond,
		Fallback: 10 * time.Second,
		Batch:    200,
	}
}

// Tailer 跨进程变更追读器
type Tailer struct {
	cfg     Config
	journal Journal
	local   LocalTracker
	hub     *eventbus.Hub

	watcher  *fsnotify.Watcher
	names    map[string]bool
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
	timer   *time.Timer

	pollMu sync.Mutex
	cursor int64
}

// NewTailer 创建追读器
func NewTailer(cfg Config, journal Journal, local LocalTracker, hub *eventbus.Hub) (*Tailer, error) {
	if journal == nil || hub == nil {
		return nil, fmt.Errorf("journal 和 hub 不能为空")
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 200
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 150 * time.Millisecond
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	base := filepath.Base(cfg.DBPath)
	return &Tailer{
		cfg:     cfg,
		journal: journal,
		local:   local,
		hub:     hub,
		watcher: watcher,
		// WAL 模式下写入先落在 -wal 文件
		names: map[string]bool{
			base:          true,
			base + "-wal": true,
		},
		stopChan: make(chan struct{}),
	}, nil
}

// Start 从当前最大 seq 开始追读（历史变更不重放）
func (t *Tailer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true
	t.mu.Unlock()

	seq, err := t.journal.MaxSeq(ctx)
	if err != nil {
		return fmt.Errorf("初始化追读位置失败: %w", err)
	}
	t.pollMu.Lock()
	t.cursor = seq
	t.pollMu.Unlock()

	dir, err := filepath.Abs(filepath.Dir(t.cfg.DBPath))
	if err != nil {
		return fmt.Errorf("获取绝对路径失败: %w", err)
	}
	if err := t.watcher.Add(dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}
	slog.Info("变更追读器启动", "dir", dir, "cursor", seq)

	t.wg.Add(1)
	go t.watchLoop(ctx)
	return nil
}

// Stop 停止追读
func (t *Tailer) Stop() error {
	t.stopOnce.Do(func() {
		t.mu.Lock()
		t.running = false
		if t.timer != nil {
			t.timer.Stop()
		}
		t.mu.Unlock()

		close(t.stopChan)
		_ = t.watcher.Close()
		t.wg.Wait()
		slog.Info("变更追读器已停止")
	})
	return nil
}

// Cursor 已追读到的 seq
func (t *Tailer) Cursor() int64 {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()
	return t.cursor
}

func (t *Tailer) watchLoop(ctx context.Context) {
	defer t.wg.Done()

	var fallback <-chan time.Time
	if t.cfg.Fallback > 0 {
		ticker := time.NewTicker(t.cfg.Fallback)
		defer ticker.Stop()
		fallback = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopChan:
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			t.handleFsEvent(ctx, event)
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("文件监控错误", "error", err)
		case <-fallback:
			t.pollLogged(ctx)
		}
	}
}

func (t *Tailer) handleFsEvent(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	if !t.names[filepath.Base(event.Name)] {
		return
	}

	// 防抖：一次事务会触发多次写入
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.cfg.Debounce, func() {
		t.pollLogged(ctx)
	})
}

func (t *Tailer) pollLogged(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	n, err := t.Poll(ctx)
	if err != nil {
		slog.Warn("追读变更日志失败", "error", err)
		return
	}
	if n > 0 {
		slog.Debug("发布跨进程变更", "count", n, "cursor", t.Cursor())
	}
}

// Poll 读取游标之后的变更并发布非本进程写入的部分，返回发布数量
func (t *Tailer) Poll(ctx context.Context) (int, error) {
	t.pollMu.Lock()
	defer t.pollMu.Unlock()

	published := 0
	for {
		changes, err := t.journal.ListAfter(ctx, t.cursor, t.cfg.Batch)
		if err != nil {
			return published, err
		}
		for _, c := range changes {
			t.cursor = c.Seq
			if t.local != nil && t.local.ConsumeLocal(c.Seq) {
				continue
			}
			t.hub.Publish(eventbus.Event{
				Entity:    c.Entity,
				Op:        c.Op,
				Owner:     c.Owner,
				RecordID:  c.RecordID,
				Seq:       c.Seq,
				Timestamp: c.CreatedAt.UnixMilli(),
			})
			published++
		}
		if len(changes) < t.cfg.Batch {
			return published, nil
		}
	}
}
