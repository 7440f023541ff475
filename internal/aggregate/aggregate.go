// Package aggregate derives view-ready structures from a user's records.
// Every function here is pure: the same input always yields the same output
// and the input slices are never modified.
package aggregate

import (
	"strings"

	"github.com/yuqie6/Folio/internal/policy"
	"github.com/yuqie6/Folio/internal/schema"
)

// Stats 仪表盘统计，隐藏的成就同样计入
type Stats struct {
	Total       int                 `json:"total"`
	Verified    int                 `json:"verified"`
	Internships int                 `json:"internships"`
	Courses     int                 `json:"courses"`
	ByKind      map[schema.Kind]int `json:"by_kind"`
}

// ComputeStats 统计全部成就
func ComputeStats(items []schema.Achievement) Stats {
	st := Stats{ByKind: make(map[schema.Kind]int, len(schema.AllKinds()))}
	for _, k := range schema.AllKinds() {
		st.ByKind[k] = 0
	}
	for i := range items {
		a := &items[i]
		if !policy.CountsInDashboard(a) {
			continue
		}
		st.Total++
		if policy.IsVerified(a) {
			st.Verified++
		}
		switch a.Type {
		case schema.KindInternship:
			st.Internships++
		case schema.KindCourse:
			st.Courses++
		}
		st.ByKind[a.Type]++
	}
	return st
}

// Entry 简历条目
type Entry struct {
	Achievement schema.Achievement `json:"achievement"`
	// Period 展示用日期文本，可能为空
	Period string `json:"period"`
}

// Section 简历分区。空分区同样返回，由渲染方决定是否跳过。
type Section struct {
	ID      policy.SectionID `json:"id"`
	Title   string           `json:"title"`
	Entries []Entry          `json:"entries"`
}

// Empty 分区是否没有条目
func (s Section) Empty() bool {
	return len(s.Entries) == 0
}

// GroupForResume 过滤可见成就，按分区归类、排序，按展示顺序返回全部分区
func GroupForResume(items []schema.Achievement) []Section {
	buckets := make(map[policy.SectionID][]schema.Achievement)
	for i := range items {
		if !policy.IncludeInResume(&items[i]) {
			continue
		}
		id := policy.SectionOf(items[i].Type)
		buckets[id] = append(buckets[id], items[i].Clone())
	}

	specs := policy.Sections()
	out := make([]Section, 0, len(specs))
	for _, spec := range specs {
		sorted := policy.SortForSection(spec.ID, buckets[spec.ID])
		entries := make([]Entry, 0, len(sorted))
		for _, a := range sorted {
			entries = append(entries, Entry{Achievement: a, Period: formatPeriod(spec.Period, a)})
		}
		out = append(out, Section{ID: spec.ID, Title: spec.Title, Entries: entries})
	}
	return out
}

// NonEmptySections 只保留有条目的分区
func NonEmptySections(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if !s.Empty() {
			out = append(out, s)
		}
	}
	return out
}

// CountEntries 分区条目总数
func CountEntries(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Entries)
	}
	return n
}

func formatPeriod(style policy.PeriodStyle, a schema.Achievement) string {
	switch style {
	case policy.PeriodRange:
		return FormatDateRange(a.StartDate, a.EndDate)
	case policy.PeriodEndOnly:
		return FormatMonth(a.EndDate)
	default:
		return ""
	}
}

// FormatMonth "Jun 2023"；空日期返回 ""
func FormatMonth(d *schema.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format("Jan 2006")
}

// FormatDateRange "Jun 2023 - Present"；没有开始日期时只显示结束部分
func FormatDateRange(start, end *schema.Date) string {
	to := FormatMonth(end)
	if to == "" {
		to = "Present"
	}
	from := FormatMonth(start)
	if from == "" {
		return to
	}
	return from + " - " + to
}

const (
	maxSummarySkills   = 8
	fallbackExperience = "various domains"
	fallbackSkills     = "multiple technologies"
	fallbackHeadline   = "professional"
)

// SummaryInput 摘要模板的确定性输入
type SummaryInput struct {
	ExperiencePhrase string   `json:"experience_phrase"`
	TopSkills        []string `json:"top_skills"`
	SkillsPhrase     string   `json:"skills_phrase"`
}

// AssembleSummaryInput 组装摘要输入。
// 经历：简历可见的实习按集合顺序 "{title} at {organization}"；技能：简历可见成就技能首次出现顺序去重，取前 8 个。
func AssembleSummaryInput(items []schema.Achievement) SummaryInput {
	var experience []string
	var skills []string
	seen := make(map[string]struct{})

	for i := range items {
		a := &items[i]
		if !policy.IncludeInResume(a) {
			continue
		}
		if a.Type == schema.KindInternship {
			experience = append(experience, a.Title+" at "+a.Organization)
		}
		for _, s := range a.Skills {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			skills = append(skills, s)
		}
	}
	if len(skills) > maxSummarySkills {
		skills = skills[:maxSummarySkills]
	}

	in := SummaryInput{
		ExperiencePhrase: strings.Join(experience, ", "),
		TopSkills:        skills,
		SkillsPhrase:     strings.Join(skills, ", "),
	}
	if in.ExperiencePhrase == "" {
		in.ExperiencePhrase = fallbackExperience
	}
	if in.SkillsPhrase == "" {
		in.SkillsPhrase = fallbackSkills
	}
	if in.TopSkills == nil {
		in.TopSkills = []string{}
	}
	return in
}

// RenderSummary 本地模板生成摘要文本
func RenderSummary(fullName, headline string, in SummaryInput) string {
	if strings.TrimSpace(headline) == "" {
		headline = fallbackHeadline
	}
	var b strings.Builder
	b.WriteString(fullName)
	b.WriteString(" is a ")
	b.WriteString(headline)
	b.WriteString(" with experience in ")
	b.WriteString(in.ExperiencePhrase)
	b.WriteString(". Skilled in ")
	b.WriteString(in.SkillsPhrase)
	b.WriteString(", with a proven track record of delivering impactful results. ")
	b.WriteString("Passionate about leveraging technology to solve complex problems and drive innovation.")
	return b.String()
}
