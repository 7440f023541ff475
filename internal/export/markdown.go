// Package export renders the resume snapshot to Markdown.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuqie6/Folio/internal/aggregate"
	"github.com/yuqie6/Folio/internal/policy"
	"github.com/yuqie6/Folio/internal/schema"
)

const placeholderName = "Your Name"

// Markdown 渲染简历。空分区跳过；没有摘要时不输出 Professional Summary。
func Markdown(profile *schema.Profile, sections []aggregate.Section) string {
	var b strings.Builder

	name := placeholderName
	if profile != nil && strings.TrimSpace(profile.FullName) != "" {
		name = profile.FullName
	}
	fmt.Fprintf(&b, "# %s\n\n", name)

	if profile != nil {
		if profile.Headline != "" {
			fmt.Fprintf(&b, "_%s_\n\n", profile.Headline)
		}
		if line := contactLine(profile); line != "" {
			b.WriteString(line)
			b.WriteString("\n\n")
		}
		if s := strings.TrimSpace(profile.AISummary); s != "" {
			b.WriteString("## Professional Summary\n\n")
			b.WriteString(s)
			b.WriteString("\n\n")
		}
	}

	for _, sec := range aggregate.NonEmptySections(sections) {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		for _, e := range sec.Entries {
			writeEntry(&b, sec.ID, e)
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func contactLine(p *schema.Profile) string {
	var parts []string
	if p.Email != "" {
		parts = append(parts, p.Email)
	}
	if p.Phone != "" {
		parts = append(parts, p.Phone)
	}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	links := []struct{ label, url string }{
		{"Portfolio", p.PortfolioURL},
		{"LinkedIn", p.LinkedinURL},
		{"GitHub", p.GithubURL},
	}
	for _, l := range links {
		if l.url != "" {
			parts = append(parts, fmt.Sprintf("[%s](%s)", l.label, l.url))
		}
	}
	return strings.Join(parts, " · ")
}

func writeEntry(b *strings.Builder, section policy.SectionID, e aggregate.Entry) {
	a := e.Achievement
	fmt.Fprintf(b, "### %s\n\n", a.Title)

	// 项目分区不显示组织
	var meta []string
	if section != policy.SectionProjects && a.Organization != "" {
		meta = append(meta, "**"+a.Organization+"**")
	}
	if e.Period != "" {
		meta = append(meta, e.Period)
	}
	if a.Location != "" && (section == policy.SectionEducation || section == policy.SectionExperience) {
		meta = append(meta, a.Location)
	}
	if len(meta) > 0 {
		b.WriteString(strings.Join(meta, " | "))
		b.WriteString("\n\n")
	}
	if d := strings.TrimSpace(a.Description); d != "" && section != policy.SectionCredentials {
		b.WriteString(d)
		b.WriteString("\n\n")
	}
	if len(a.Skills) > 0 && (section == policy.SectionExperience || section == policy.SectionProjects) {
		fmt.Fprintf(b, "Skills: %s\n\n", strings.Join(a.Skills, ", "))
	}
}

// WriteFile 写入 Markdown 文件，目录不存在时创建
func WriteFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("创建输出目录失败: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("写入 Markdown 失败: %w", err)
	}
	return nil
}
