package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yuqie6/Folio/internal/bootstrap"
	"github.com/yuqie6/Folio/internal/export"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/service"
	"github.com/yuqie6/Folio/internal/viewstate"
)

// statsCmd 仪表盘统计
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "查看仪表盘统计",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settle(cmd.Context(), viewstate.KindDashboard); err != nil {
				return err
			}
			d, ok := core.Session.Dashboard()
			if !ok {
				return fmt.Errorf("仪表盘加载失败")
			}
			printDashboard(d.Value)
			return nil
		},
	}
}

func printDashboard(d viewstate.Dashboard) {
	s := d.Stats
	fmt.Println("📊 仪表盘")
	fmt.Println("═══════════════════════════════════════")
	fmt.Printf("  • 成就总数: %d\n", s.Total)
	fmt.Printf("  • 已认证:   %d\n", s.Verified)
	fmt.Printf("  • 实习:     %d\n", s.Internships)
	fmt.Printf("  • 课程:     %d\n", s.Courses)

	fmt.Printf("\n🔗 平台连接\n")
	for _, it := range d.Integrations {
		state := "未连接"
		if it.Connected {
			state = "已连接"
		}
		fmt.Printf("  • %-9s %s, 上次同步 %s\n", it.Label, state, it.LastSync)
	}
	fmt.Println("═══════════════════════════════════════")
}

// resumeCmd 输出简历 Markdown
func resumeCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "生成简历（Markdown）",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := settle(cmd.Context(), viewstate.KindResume); err != nil {
				return err
			}
			r, ok := core.Session.Resume()
			if !ok {
				return fmt.Errorf("简历加载失败")
			}
			md := export.Markdown(r.Value.Profile, r.Value.Sections)
			if out == "" {
				fmt.Print(md)
				return nil
			}
			if err := export.WriteFile(out, md); err != nil {
				return err
			}
			fmt.Printf("✅ 简历已写入 %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "markdown", "", "写入指定 Markdown 文件")
	return cmd
}

// profileCmd 资料查看与编辑
func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "查看或编辑个人资料",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "显示资料",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.Services.Profiles.Get(cmd.Context(), owner)
			if err != nil {
				return err
			}
			printProfile(p)
			return nil
		},
	})

	var in service.ProfileInput
	set := &cobra.Command{
		Use:   "set",
		Short: "修改资料（只修改传入的字段）",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := core.Services.Profiles.Get(cmd.Context(), owner)
			if err != nil {
				return err
			}
			merged := service.FromProfile(p)
			f := cmd.Flags()
			pick := func(name string, dst *string, v string) {
				if f.Changed(name) {
					*dst = v
				}
			}
			pick("name", &merged.FullName, in.FullName)
			pick("headline", &merged.Headline, in.Headline)
			pick("phone", &merged.Phone, in.Phone)
			pick("location", &merged.Location, in.Location)
			pick("linkedin", &merged.LinkedinURL, in.LinkedinURL)
			pick("github", &merged.GithubURL, in.GithubURL)
			pick("portfolio", &merged.PortfolioURL, in.PortfolioURL)
			if err := core.Services.Profiles.Save(cmd.Context(), owner, merged); err != nil {
				return err
			}
			fmt.Println("✅ 资料已保存")
			return nil
		},
	}
	f := set.Flags()
	f.StringVar(&in.FullName, "name", "", "姓名")
	f.StringVar(&in.Headline, "headline", "", "一句话介绍")
	f.StringVar(&in.Phone, "phone", "", "电话")
	f.StringVar(&in.Location, "location", "", "所在地")
	f.StringVar(&in.LinkedinURL, "linkedin", "", "LinkedIn 链接")
	f.StringVar(&in.GithubURL, "github", "", "GitHub 链接")
	f.StringVar(&in.PortfolioURL, "portfolio", "", "作品集链接")
	cmd.AddCommand(set)

	return cmd
}

func printProfile(p *schema.Profile) {
	if p == nil {
		fmt.Println("（尚无资料）")
		return
	}
	fmt.Printf("👤 %s\n", orDash(p.FullName))
	fmt.Printf("  标题:     %s\n", orDash(p.Headline))
	fmt.Printf("  邮箱:     %s\n", orDash(p.Email))
	fmt.Printf("  电话:     %s\n", orDash(p.Phone))
	fmt.Printf("  所在地:   %s\n", orDash(p.Location))
	fmt.Printf("  LinkedIn: %s\n", orDash(p.LinkedinURL))
	fmt.Printf("  GitHub:   %s\n", orDash(p.GithubURL))
	fmt.Printf("  作品集:   %s\n", orDash(p.PortfolioURL))
	if p.AISummary != "" {
		fmt.Printf("\n📝 摘要\n%s\n", p.AISummary)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// summaryCmd 生成职业摘要
func summaryCmd() *cobra.Command {
	var save bool

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "根据可见成就生成职业摘要",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			svc := core.Services.Profiles
			if save {
				text, err := svc.GenerateAndSave(ctx, owner)
				if err != nil {
					return err
				}
				fmt.Println(text)
				fmt.Println("\n✅ 摘要已保存到资料")
				return nil
			}
			p, err := svc.Get(ctx, owner)
			if err != nil {
				return err
			}
			text, err := svc.GenerateSummary(ctx, owner, service.FromProfile(p))
			if err != nil {
				return err
			}
			fmt.Println(text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "保存到资料")
	return cmd
}

// connectCmd 登记平台连接
func connectCmd() *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:       "connect <platform>",
		Short:     "登记外部平台连接 (linkedin, github, coursera)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"linkedin", "github", "coursera"},
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := core.Connect(cmd.Context(), owner, args[0], username)
			if err != nil {
				return err
			}
			fmt.Printf("🔗 已连接 %s (%s)\n", conn.Platform, conn.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "平台用户名")
	return cmd
}

// watchCmd 挂载仪表盘，每次发布时打印统计
func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "实时查看仪表盘（Ctrl+C 退出）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// 追读其他进程（agent / 另一个 CLI）的写入
			rt, err := bootstrap.StartAgent(ctx, core)
			if err != nil {
				return err
			}
			defer rt.Stop()

			core.Session.OnPublish(func(u viewstate.Update) {
				if u.View != viewstate.KindDashboard {
					return
				}
				d, ok := core.Session.Dashboard()
				if !ok {
					return
				}
				fmt.Printf("\n🔄 第 %d 版\n", u.Version)
				printDashboard(d.Value)
			})
			if err := settle(ctx, viewstate.KindDashboard); err != nil {
				return err
			}
			if core.Session.Degraded(viewstate.KindDashboard) {
				fmt.Println("⚠️  实时订阅不可用，仅显示当前快照")
			}
			<-ctx.Done()
			return nil
		},
	}
}

