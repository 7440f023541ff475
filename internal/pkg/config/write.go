package config

import (
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"
)

func DefaultConfigPath() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("获取可执行文件路径失败: %w", err)
	}
	exeDir := filepath.Dir(exe)
	return filepath.Join(exeDir, "config", "config.yaml"), nil
}

// EnsureFile 配置文件不存在时写入默认配置，返回是否新建
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("检查配置文件失败: %w", err)
	}
	if err := WriteFile(path, Default()); err != nil {
		return false, err
	}
	return true, nil
}

func WriteFile(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("cfg 不能为空")
	}
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	payload := map[string]any{
		"app": map[string]any{
			"name":          cfg.App.Name,
			"version":       cfg.App.Version,
			"log_level":     cfg.App.LogLevel,
			"default_user":  cfg.App.DefaultUser,
			"default_email": cfg.App.DefaultEmail,
		},
		"storage": map[string]any{
			"backend": cfg.Storage.Backend,
			"db_path": cfg.Storage.DBPath,
		},
		"supabase": map[string]any{
			"url":          cfg.Supabase.URL,
			"api_key":      cfg.Supabase.APIKey,
			"access_token": cfg.Supabase.AccessToken,
			"realtime":     cfg.Supabase.Realtime,
		},
		"reconcile": map[string]any{
			"load_timeout_ms": cfg.Reconcile.LoadTimeoutMs,
		},
		"changefeed": map[string]any{
			"enabled":          cfg.ChangeFeed.Enabled,
			"debounce_ms":      cfg.ChangeFeed.DebounceMs,
			"poll_interval_ms": cfg.ChangeFeed.PollIntervalMs,
			"batch_size":       cfg.ChangeFeed.BatchSize,
		},
		"server": map[string]any{
			"listen_addr":      cfg.Server.ListenAddr,
			"rate_limit_rps":   cfg.Server.RateLimitRPS,
			"rate_limit_burst": cfg.Server.RateLimitBurst,
		},
	}

	b, err := yaml.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}
	return nil
}
