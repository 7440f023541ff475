package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 存储后端
const (
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Config 应用配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Supabase   SupabaseConfig   `mapstructure:"supabase"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	ChangeFeed ChangeFeedConfig `mapstructure:"changefeed"`
	Server     ServerConfig     `mapstructure:"server"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
	// DefaultUser 启动时自动登录的用户（可选）
	DefaultUser  string `mapstructure:"default_user"`
	DefaultEmail string `mapstructure:"default_email"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	DBPath  string `mapstructure:"db_path"`
}

// SupabaseConfig 远端存储
type SupabaseConfig struct {
	URL         string `mapstructure:"url"`
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
	Realtime    bool   `mapstructure:"realtime"`
}

// ReconcileConfig 视图加载
type ReconcileConfig struct {
	LoadTimeoutMs int `mapstructure:"load_timeout_ms"`
}

// LoadTimeout 单次加载超时
func (c ReconcileConfig) LoadTimeout() time.Duration {
	return time.Duration(c.LoadTimeoutMs) * time.Millisecond
}

// ChangeFeedConfig 跨进程变更追读
type ChangeFeedConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	DebounceMs     int  `mapstructure:"debounce_ms"`
	PollIntervalMs int  `mapstructure:"poll_interval_ms"`
	BatchSize      int  `mapstructure:"batch_size"`
}

// ServerConfig 本地 HTTP API
type ServerConfig struct {
	ListenAddr     string  `mapstructure:"listen_addr"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 设置配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else if configPath != "" && os.IsNotExist(err) {
			slog.Warn("配置文件未找到，使用默认配置", "path", configPath)
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	// 解析配置
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	// 处理环境变量占位符
	cfg.Supabase.URL = expandEnv(cfg.Supabase.URL)
	cfg.Supabase.APIKey = expandEnv(cfg.Supabase.APIKey)
	cfg.Supabase.AccessToken = expandEnv(cfg.Supabase.AccessToken)

	// 处理相对路径
	cfg.Storage.DBPath = resolvePath(cfg.Storage.DBPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查后端相关的必填项
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if strings.TrimSpace(c.Storage.DBPath) == "" {
			return fmt.Errorf("storage.db_path 不能为空")
		}
	case BackendSupabase:
		if c.Supabase.URL == "" || c.Supabase.APIKey == "" {
			return fmt.Errorf("supabase 后端需要 supabase.url 与 supabase.api_key")
		}
	default:
		return fmt.Errorf("未知存储后端: %q", c.Storage.Backend)
	}
	if c.Reconcile.LoadTimeoutMs < 0 {
		return fmt.Errorf("reconcile.load_timeout_ms 不能为负数")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	d := Default()

	// App
	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.version", d.App.Version)
	v.SetDefault("app.log_level", d.App.LogLevel)
	v.SetDefault("app.default_user", "")
	v.SetDefault("app.default_email", "")

	// Storage
	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.db_path", d.Storage.DBPath)

	// Supabase
	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.api_key", "")
	v.SetDefault("supabase.access_token", "")
	v.SetDefault("supabase.realtime", d.Supabase.Realtime)

	// Reconcile
	v.SetDefault("reconcile.load_timeout_ms", d.Reconcile.LoadTimeoutMs)

	// ChangeFeed
	v.SetDefault("changefeed.enabled", d.ChangeFeed.Enabled)
	v.SetDefault("changefeed.debounce_ms", d.ChangeFeed.DebounceMs)
	v.SetDefault("changefeed.poll_interval_ms", d.ChangeFeed.PollIntervalMs)
	v.SetDefault("changefeed.batch_size", d.ChangeFeed.BatchSize)

	// Server
	v.SetDefault("server.listen_addr", d.Server.ListenAddr)
	v.SetDefault("server.rate_limit_rps", d.Server.RateLimitRPS)
	v.SetDefault("server.rate_limit_burst", d.Server.RateLimitBurst)
}

// Default 默认配置（首次运行写入文件）
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:     "folio",
			Version:  "0.1.0",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Backend: BackendSQLite,
			DBPath:  "./data/folio.db",
		},
		Supabase: SupabaseConfig{
			Realtime: true,
		},
		Reconcile: ReconcileConfig{
			LoadTimeoutMs: 10000,
		},
		ChangeFeed: ChangeFeedConfig{
			Enabled:        true,
			DebounceMs:     150,
			PollIntervalMs: 10000,
			BatchSize:      200,
		},
		Server: ServerConfig{
			ListenAddr:     "127.0.0.1:7420",
			RateLimitRPS:   10,
			RateLimitBurst: 20,
		},
	}
}

// expandEnv 展开环境变量占位符 ${VAR}
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		envVar := s[2 : len(s)-1]
		return os.Getenv(envVar)
	}
	return s
}

// resolvePath 解析相对路径为绝对路径
func resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	// 获取可执行文件目录
	exe, err := os.Executable()
	if err != nil {
		return path
	}

	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, path)
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
