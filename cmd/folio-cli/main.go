package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuqie6/Folio/internal/bootstrap"
	"github.com/yuqie6/Folio/internal/viewstate"
)

var (
	cfgFile string
	userArg string
	core    *bootstrap.Core
	owner   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "folio",
		Short: "Folio - 职业成就记录与简历生成",
		Long:  `Folio 记录实习、项目、课程等成就，自动汇总成仪表盘和简历。与 folio-agent 共享同一数据库时，写入会实时同步到 agent 的视图。`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				return fmt.Errorf("初始化失败: %w", err)
			}
			owner = strings.TrimSpace(userArg)
			if owner == "" {
				owner = core.Cfg.App.DefaultUser
			}
			if owner == "" {
				return fmt.Errorf("未指定用户：使用 --user 或在配置中设置 app.default_user")
			}
			return core.SignIn(cmd.Context(), owner, core.Cfg.App.DefaultEmail)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().StringVarP(&userArg, "user", "u", "", "用户 ID（默认 app.default_user）")

	// 添加子命令
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(toggleCmd())
	rootCmd.AddCommand(visibilityCmd("hide", false))
	rootCmd.AddCommand(visibilityCmd("show", true))
	rootCmd.AddCommand(rmCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(profileCmd())
	rootCmd.AddCommand(summaryCmd())
	rootCmd.AddCommand(connectCmd())
	rootCmd.AddCommand(watchCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Debug("命令失败", "error", err)
		os.Exit(1)
	}
}

// settle 挂载视图并等待首次加载结束
func settle(ctx context.Context, kind viewstate.Kind) error {
	if err := core.Session.Mount(kind); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return core.Session.Wait(ctx, kind)
}

// truncateString 截断字符串
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
