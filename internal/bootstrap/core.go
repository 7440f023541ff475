package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yuqie6/Folio/internal/aggregate"
	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/observability"
	"github.com/yuqie6/Folio/internal/pkg/config"
	"github.com/yuqie6/Folio/internal/repository"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/service"
	"github.com/yuqie6/Folio/internal/store"
	"github.com/yuqie6/Folio/internal/subscription"
	"github.com/yuqie6/Folio/internal/supabase"
	"github.com/yuqie6/Folio/internal/viewstate"
)

// Core 持有跨二进制共享的核心依赖
type Core struct {
	Cfg     *config.Config
	CfgPath string

	// DB/Local 仅 sqlite 后端
	DB    *repository.Database
	Local *repository.Store

	Store       store.Store
	Provisioner store.Provisioner
	Feed        store.ChangeFeed
	Hub         *eventbus.Hub
	Subs        *subscription.Manager
	Session     *viewstate.Session
	Metrics     *observability.Metrics

	Services struct {
		Achievements *service.AchievementService
		Profiles     *service.ProfileService
	}
}

// NewCore 加载配置并构建核心依赖（不启动后台任务）
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	c, err := NewCoreWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	c.CfgPath = cfgPath
	return c, nil
}

// NewCoreWithConfig 使用已加载的配置构建
func NewCoreWithConfig(cfg *config.Config) (*Core, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg 不能为空")
	}
	c := &Core{Cfg: cfg, Hub: eventbus.NewHub(), Metrics: observability.NewMetrics()}
	c.Metrics.ObserveHub(c.Hub)

	switch cfg.Storage.Backend {
	case config.BackendSupabase:
		if err := c.openSupabase(); err != nil {
			return nil, err
		}
	default:
		if err := c.openSQLite(); err != nil {
			return nil, err
		}
	}

	c.Subs = subscription.NewManager(c.Feed, c.Metrics)
	c.Session = viewstate.NewSession(c.Store, c.Subs, viewstate.Options{
		LoadTimeout: cfg.Reconcile.LoadTimeout(),
		Observer:    c.Metrics,
	})
	c.Services.Achievements = service.NewAchievementService(c.Store, c.Session.NotifyMutation)
	c.Services.Profiles = service.NewProfileService(c.Store, c.Session.NotifyMutation)

	slog.Info("核心依赖已就绪", "backend", cfg.Storage.Backend, "realtime", c.Feed != nil)
	return c, nil
}

func (c *Core) openSQLite() error {
	db, err := repository.NewDatabase(c.Cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	c.DB = db
	c.Local = repository.NewStore(db.DB, c.Hub)
	c.Store = c.Local
	c.Provisioner = c.Local
	c.Feed = c.Local
	return nil
}

func (c *Core) openSupabase() error {
	sc := supabase.Config{
		URL:         c.Cfg.Supabase.URL,
		APIKey:      c.Cfg.Supabase.APIKey,
		AccessToken: c.Cfg.Supabase.AccessToken,
	}
	client, err := supabase.New(sc)
	if err != nil {
		return err
	}
	c.Store = client
	c.Provisioner = client
	if c.Cfg.Supabase.Realtime {
		rt, err := supabase.NewRealtime(sc)
		if err != nil {
			return err
		}
		c.Feed = rt
	}
	return nil
}

// SignIn 确保资料存在后切换会话用户
func (c *Core) SignIn(ctx context.Context, owner, email string) error {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return fmt.Errorf("用户不能为空")
	}
	if c.DB != nil && c.DB.SafeMode {
		return fmt.Errorf("数据库处于安全模式: %s", c.DB.MigrationError)
	}
	if err := c.Provisioner.EnsureProfile(ctx, owner, email); err != nil {
		return fmt.Errorf("登录失败: %w", err)
	}
	return c.Session.SignIn(owner)
}

// Connect 登记平台连接；同一平台重复登记时更新原记录
func (c *Core) Connect(ctx context.Context, owner, platform, username string) (*schema.IntegrationConnection, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if !aggregate.IsKnownPlatform(platform) {
		return nil, &service.ValidationError{Field: "platform", Reason: fmt.Sprintf("未知平台 %q", platform)}
	}
	conns, err := c.Store.ListIntegrations(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("读取平台连接失败: %w", err)
	}
	conn := &schema.IntegrationConnection{UserID: owner, Platform: platform, SyncFrequency: "manual"}
	for i := range conns {
		if conns[i].Platform == platform {
			conn = &conns[i]
			break
		}
	}
	now := time.Now().UTC()
	conn.PlatformUserID = username
	conn.IsActive = true
	conn.LastSyncAt = &now
	if err := c.Provisioner.UpsertIntegration(ctx, conn); err != nil {
		return nil, err
	}
	c.Session.NotifyMutation(owner, schema.EntityIntegrations)
	slog.Info("平台已连接", "owner", owner, "platform", platform)
	return conn, nil
}

// BackendInfo 状态接口用
func (c *Core) BackendInfo() (backend, dbPath string, schemaVersion int) {
	backend = c.Cfg.Storage.Backend
	if c.DB != nil {
		dbPath, schemaVersion = c.DB.Path, c.DB.SchemaVersion
	}
	return
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.Session != nil {
		c.Session.Close()
	}
	if c.Subs != nil {
		c.Subs.CloseAll()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
