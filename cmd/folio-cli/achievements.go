package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/service"
)

// addCmd 添加成就
func addCmd() *cobra.Command {
	var in service.AchievementInput

	cmd := &cobra.Command{
		Use:   "add",
		Short: "添加成就",
		Example: `  folio add --type internship --title "Backend Intern" --org Acme --start 2024-06-01 --skills "Go, Redis"
  folio add --type course --title "Distributed Systems" --org MIT`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := core.Services.Achievements.Create(cmd.Context(), owner, in)
			if err != nil {
				return err
			}
			fmt.Printf("✅ 已添加 %s %s (%s)\n", a.Type.Label(), a.Title, a.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&in.Type, "type", "t", "", "类型: "+kindList())
	f.StringVar(&in.Title, "title", "", "标题")
	f.StringVar(&in.Organization, "org", "", "组织/学校/平台")
	f.StringVar(&in.Description, "desc", "", "描述")
	f.StringVar(&in.Location, "location", "", "地点")
	f.StringVar(&in.StartDate, "start", "", "开始日期 (YYYY-MM-DD)")
	f.StringVar(&in.EndDate, "end", "", "结束日期 (YYYY-MM-DD，空表示至今)")
	f.StringVar(&in.Skills, "skills", "", "技能，逗号分隔")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func kindList() string {
	var names []string
	for _, k := range schema.AllKinds() {
		names = append(names, string(k))
	}
	return strings.Join(names, ", ")
}

// listCmd 列出成就（最近添加在前）
func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "列出全部成就",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := core.Services.Achievements.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Println("📚 还没有成就记录，使用 'folio add' 添加")
				return nil
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\t类型\t标题\t组织\t简历\t认证")
			for _, a := range items {
				vis := "显示"
				if !a.IsVisible {
					vis = "隐藏"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.Type.Label(), truncateString(a.Title, 30), truncateString(a.Organization, 20), vis, a.VerificationStatus)
			}
			return tw.Flush()
		},
	}
}

// toggleCmd 以当前存储值取反
func toggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "切换成就是否在简历中显示",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			visible, err := core.Services.Achievements.ToggleVisibility(cmd.Context(), owner, args[0])
			if err != nil {
				return err
			}
			printVisibility(args[0], visible)
			return nil
		},
	}
}

// visibilityCmd hide/show
func visibilityCmd(use string, visible bool) *cobra.Command {
	short := "在简历中隐藏成就"
	if visible {
		short = "在简历中显示成就"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := core.Services.Achievements.SetVisibility(cmd.Context(), owner, args[0], visible); err != nil {
				return err
			}
			printVisibility(args[0], visible)
			return nil
		},
	}
}

func printVisibility(id string, visible bool) {
	if visible {
		fmt.Printf("👁  %s 已在简历中显示\n", id)
		return
	}
	fmt.Printf("🙈 %s 已从简历中隐藏（仪表盘仍可见）\n", id)
}

// rmCmd 删除成就，默认需要确认
func rmCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "删除成就",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var confirm service.Confirmer = service.AlwaysConfirm
			if !yes {
				confirm = promptConfirm(bufio.NewReader(os.Stdin))
			}
			deleted, err := core.Services.Achievements.Delete(cmd.Context(), owner, args[0], confirm)
			if err != nil {
				return err
			}
			if deleted {
				fmt.Println("🗑  已删除")
			} else {
				fmt.Println("已取消")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "跳过确认")
	return cmd
}

// promptConfirm 交互确认，只有 y/yes 视为同意
func promptConfirm(r *bufio.Reader) service.Confirmer {
	return func(a schema.Achievement) bool {
		fmt.Printf("确定删除 %q (%s)? [y/N] ", a.Title, a.Organization)
		line, _ := r.ReadString('\n')
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}
