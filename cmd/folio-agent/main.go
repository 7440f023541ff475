package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/Folio/internal/bootstrap"
	"github.com/yuqie6/Folio/internal/httpapi"
	"github.com/yuqie6/Folio/internal/pkg/config"
)

func main() {
	var (
		cfgFile string
		user    string
		email   string
		listen  string
	)

	rootCmd := &cobra.Command{
		Use:   "folio-agent",
		Short: "Folio Agent - 本地视图同步服务",
		Long:  `常驻进程：维护当前用户的仪表盘/简历/资料视图，数据变更后自动重载并通过 HTTP/SSE 对外提供。`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cfgFile, user, email, listen)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径（默认在可执行文件旁的 config/config.yaml）")
	rootCmd.Flags().StringVarP(&user, "user", "u", "", "启动后登录的用户（覆盖 app.default_user）")
	rootCmd.Flags().StringVar(&email, "email", "", "用户邮箱（首次登录时写入资料）")
	rootCmd.Flags().StringVar(&listen, "listen", "", "监听地址（覆盖 server.listen_addr）")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfgPath, user, email, listen string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfgPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		cfgPath = p
	}
	if created, err := config.EnsureFile(cfgPath); err != nil {
		slog.Warn("写入默认配置失败", "path", cfgPath, "error", err)
	} else if created {
		slog.Info("已写入默认配置", "path", cfgPath)
	}

	core, err := bootstrap.NewCore(cfgPath)
	if err != nil {
		slog.Error("启动 Agent 失败", "error", err)
		return err
	}
	if user != "" {
		core.Cfg.App.DefaultUser = user
		core.Cfg.App.DefaultEmail = email
	}
	rt, err := bootstrap.StartAgent(ctx, core)
	if err != nil {
		slog.Error("启动 Agent 失败", "error", err)
		return err
	}
	defer rt.Close()

	slog.Info("Folio Agent 启动中...", "name", rt.Cfg.App.Name, "version", rt.Cfg.App.Version)

	addr := rt.Cfg.Server.ListenAddr
	if listen != "" {
		addr = listen
	}
	apiServer, err := httpapi.Start(ctx, rt, httpapi.Options{
		ListenAddr:     addr,
		RateLimitRPS:   rt.Cfg.Server.RateLimitRPS,
		RateLimitBurst: rt.Cfg.Server.RateLimitBurst,
	})
	if err != nil {
		slog.Error("启动本地 API 失败", "error", err)
		return err
	}
	slog.Info("Folio Agent 已启动", "base_url", apiServer.BaseURL(), "user", rt.Session.CurrentUser())

	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("收到系统退出信号，正在关闭...")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("关闭 HTTP 服务失败", "error", err)
	}
	slog.Info("Folio Agent 已退出")
	return nil
}
