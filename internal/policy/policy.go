// Package policy holds the visibility and ordering rules shared by every view.
// Dashboard counts and resume sections must both be derived through these
// functions so the two can never disagree on the same collection.
package policy

import (
	"fmt"
	"sort"

	"github.com/yuqie6/Folio/internal/schema"
)

// SectionID 简历物理分区
type SectionID string

const (
	SectionEducation   SectionID = "education"
	SectionExperience  SectionID = "experience"
	SectionProjects    SectionID = "projects"
	SectionCredentials SectionID = "certifications"
	SectionHackathons  SectionID = "hackathons"
)

// SortKey 分区内排序字段
type SortKey int

const (
	SortByStart SortKey = iota
	SortByEnd
)

// PeriodStyle 分区条目的日期展示方式
type PeriodStyle int

const (
	PeriodRange PeriodStyle = iota // "Jun 2023 - Present"
	PeriodEndOnly
	PeriodNone
)

// SectionSpec 分区定义
type SectionSpec struct {
	ID    SectionID
	Title string
	// Kinds 分区内的类型，按拼接顺序排列
	Kinds  []schema.Kind
	Period PeriodStyle
}

var sections = []SectionSpec{
	{ID: SectionEducation, Title: "Education", Kinds: []schema.Kind{schema.KindEducation}, Period: PeriodRange},
	{ID: SectionExperience, Title: "Experience", Kinds: []schema.Kind{schema.KindInternship}, Period: PeriodRange},
	{ID: SectionProjects, Title: "Projects", Kinds: []schema.Kind{schema.KindProject}, Period: PeriodNone},
	{ID: SectionCredentials, Title: "Certifications & Courses", Kinds: []schema.Kind{schema.KindCertification, schema.KindCourse}, Period: PeriodEndOnly},
	{ID: SectionHackathons, Title: "Hackathons & Competitions", Kinds: []schema.Kind{schema.KindHackathon}, Period: PeriodNone},
}

// Sections 按展示顺序返回分区定义（副本）
func Sections() []SectionSpec {
	out := make([]SectionSpec, len(sections))
	for i, s := range sections {
		s.Kinds = append([]schema.Kind(nil), s.Kinds...)
		out[i] = s
	}
	return out
}

// KindsIn 分区包含的类型，按拼接顺序
func KindsIn(id SectionID) []schema.Kind {
	for _, s := range sections {
		if s.ID == id {
			return append([]schema.Kind(nil), s.Kinds...)
		}
	}
	return nil
}

// SectionOf 类型到分区的映射。新增类型时这里必须补上，否则 panic。
func SectionOf(kind schema.Kind) SectionID {
	switch kind {
	case schema.KindEducation:
		return SectionEducation
	case schema.KindInternship:
		return SectionExperience
	case schema.KindProject:
		return SectionProjects
	case schema.KindCertification, schema.KindCourse:
		return SectionCredentials
	case schema.KindHackathon:
		return SectionHackathons
	}
	panic(fmt.Sprintf("policy: unknown achievement kind %q", kind))
}

// SortKeyOf 类型在分区内的排序字段：证书与课程按结束日期，其余按开始日期
func SortKeyOf(kind schema.Kind) SortKey {
	switch kind {
	case schema.KindCertification, schema.KindCourse:
		return SortByEnd
	case schema.KindEducation, schema.KindInternship, schema.KindProject, schema.KindHackathon:
		return SortByStart
	}
	panic(fmt.Sprintf("policy: unknown achievement kind %q", kind))
}

// IncludeInResume 可见且类型已知才进入简历
func IncludeInResume(a *schema.Achievement) bool {
	return a != nil && a.IsVisible && a.Type.Valid()
}

// CountsInDashboard 仪表盘不受可见性影响
func CountsInDashboard(a *schema.Achievement) bool {
	return a != nil
}

// IsVerified 是否已认证
func IsVerified(a *schema.Achievement) bool {
	return a != nil && a.VerificationStatus == schema.VerificationVerified
}

// Less 同类型内的比较：倒序，无日期排最后
func Less(key SortKey) func(a, b *schema.Achievement) bool {
	return func(a, b *schema.Achievement) bool {
		switch key {
		case SortByEnd:
			return schema.CompareDatesDesc(a.EndDate, b.EndDate) < 0
		default:
			return schema.CompareDatesDesc(a.StartDate, b.StartDate) < 0
		}
	}
}

// SortByKind 原地稳定排序，相同日期保留原始顺序
func SortByKind(kind schema.Kind, items []schema.Achievement) {
	less := Less(SortKeyOf(kind))
	sort.SliceStable(items, func(i, j int) bool {
		return less(&items[i], &items[j])
	})
}

// SortForSection 分区内排序：逐个类型稳定排序后按 KindsIn 顺序拼接。
// 传入的条目必须都属于该分区。
func SortForSection(id SectionID, items []schema.Achievement) []schema.Achievement {
	kinds := KindsIn(id)
	buckets := make(map[schema.Kind][]schema.Achievement, len(kinds))
	for _, a := range items {
		buckets[a.Type] = append(buckets[a.Type], a)
	}
	out := make([]schema.Achievement, 0, len(items))
	for _, k := range kinds {
		b := buckets[k]
		SortByKind(k, b)
		out = append(out, b...)
	}
	return out
}
