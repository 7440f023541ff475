package viewstate

import (
	"context"
	"fmt"
	"time"

	"github.com/yuqie6/Folio/internal/aggregate"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
	"golang.org/x/sync/errgroup"
)

// Kind 视图类型
type Kind string

const (
	KindDashboard Kind = "dashboard"
	KindResume    Kind = "resume"
	KindProfile   Kind = "profile"
)

// AllKinds 全部视图
func AllKinds() []Kind {
	return []Kind{KindDashboard, KindResume, KindProfile}
}

// ParseKind 解析视图名
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDashboard, KindResume, KindProfile:
		return Kind(s), nil
	}
	return "", fmt.Errorf("未知视图: %q", s)
}

// Entities 视图订阅的记录集合
func (k Kind) Entities() []schema.Entity {
	switch k {
	case KindDashboard:
		return []schema.Entity{schema.EntityAchievements, schema.EntityIntegrations}
	case KindResume, KindProfile:
		return []schema.Entity{schema.EntityAchievements, schema.EntityProfiles}
	}
	return nil
}

// DependsOn 该集合变更时视图是否需要重载
func (k Kind) DependsOn(e schema.Entity) bool {
	for _, x := range k.Entities() {
		if x == e {
			return true
		}
	}
	return false
}

// Dashboard 仪表盘快照：全部成就（含隐藏）按创建时间倒序
type Dashboard struct {
	Achievements []schema.Achievement           `json:"achievements"`
	Integrations []aggregate.IntegrationStatus  `json:"integrations"`
	Connections  []schema.IntegrationConnection `json:"-"`
	Stats        aggregate.Stats                `json:"stats"`
}

// Resume 简历快照
type Resume struct {
	Profile  *schema.Profile     `json:"profile"`
	Sections []aggregate.Section `json:"sections"`
}

// ProfileView 资料页快照
type ProfileView struct {
	Profile          *schema.Profile        `json:"profile"`
	SummaryInput     aggregate.SummaryInput `json:"summary_input"`
	SuggestedSummary string                 `json:"suggested_summary"`
}

// LoadDashboard 并行拉取成就与平台连接
func LoadDashboard(ctx context.Context, st store.Store, owner string, now time.Time) (Dashboard, error) {
	var (
		items []schema.Achievement
		conns []schema.IntegrationConnection
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = st.ListAchievements(gctx, owner, store.OrderCreatedDesc)
		return err
	})
	g.Go(func() error {
		var err error
		conns, err = st.ListIntegrations(gctx, owner)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("加载仪表盘失败: %w", err)
	}
	if items == nil {
		items = []schema.Achievement{}
	}
	return Dashboard{
		Achievements: items,
		Integrations: aggregate.IntegrationStatuses(conns, now),
		Connections:  conns,
		Stats:        aggregate.ComputeStats(items),
	}, nil
}

// loadProfileAndAchievements 资料与成就并行拉取
func loadProfileAndAchievements(ctx context.Context, st store.Store, owner string, order store.Order) (*schema.Profile, []schema.Achievement, error) {
	var (
		profile *schema.Profile
		items   []schema.Achievement
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profile, err = st.GetProfile(gctx, owner)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = st.ListAchievements(gctx, owner, order)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return profile, items, nil
}

// LoadResume 简历：资料 + 分区
func LoadResume(ctx context.Context, st store.Store, owner string) (Resume, error) {
	profile, items, err := loadProfileAndAchievements(ctx, st, owner, store.OrderStartDesc)
	if err != nil {
		return Resume{}, fmt.Errorf("加载简历失败: %w", err)
	}
	return Resume{Profile: profile, Sections: aggregate.GroupForResume(items)}, nil
}

// LoadProfile 资料页：资料 + 摘要输入与建议文本
func LoadProfile(ctx context.Context, st store.Store, owner string) (ProfileView, error) {
	profile, items, err := loadProfileAndAchievements(ctx, st, owner, store.OrderCreatedAsc)
	if err != nil {
		return ProfileView{}, fmt.Errorf("加载资料失败: %w", err)
	}
	in := aggregate.AssembleSummaryInput(items)
	var name, headline string
	if profile != nil {
		name, headline = profile.FullName, profile.Headline
	}
	return ProfileView{
		Profile:          profile,
		SummaryInput:     in,
		SuggestedSummary: aggregate.RenderSummary(name, headline, in),
	}, nil
}

// CloneDashboard 快照深拷贝
func CloneDashboard(d Dashboard) Dashboard {
	out := d
	out.Achievements = schema.CloneAchievements(d.Achievements)
	out.Connections = schema.CloneIntegrations(d.Connections)
	if d.Integrations != nil {
		out.Integrations = make([]aggregate.IntegrationStatus, len(d.Integrations))
		for i, st := range d.Integrations {
			out.Integrations[i] = st
			if st.LastSyncAt != nil {
				t := *st.LastSyncAt
				out.Integrations[i].LastSyncAt = &t
			}
		}
	}
	out.Stats.ByKind = make(map[schema.Kind]int, len(d.Stats.ByKind))
	for k, v := range d.Stats.ByKind {
		out.Stats.ByKind[k] = v
	}
	return out
}

// CloneResume 快照深拷贝
func CloneResume(r Resume) Resume {
	return Resume{Profile: r.Profile.Clone(), Sections: cloneSections(r.Sections)}
}

// CloneProfileView 快照深拷贝
func CloneProfileView(p ProfileView) ProfileView {
	out := p
	out.Profile = p.Profile.Clone()
	out.SummaryInput.TopSkills = append([]string{}, p.SummaryInput.TopSkills...)
	return out
}

func cloneSections(in []aggregate.Section) []aggregate.Section {
	if in == nil {
		return nil
	}
	out := make([]aggregate.Section, len(in))
	for i, s := range in {
		out[i] = s
		out[i].Entries = make([]aggregate.Entry, len(s.Entries))
		for j, e := range s.Entries {
			out[i].Entries[j] = aggregate.Entry{Achievement: e.Achievement.Clone(), Period: e.Period}
		}
	}
	return out
}
