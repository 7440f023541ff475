package supabase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

var (
	_ store.Store       = (*Client)(nil)
	_ store.Provisioner = (*Client)(nil)
)

// ownerColumn 各表按用户过滤的列；profiles 主键即用户 ID
func ownerColumn(e schema.Entity) string {
	if e == schema.EntityProfiles {
		return "id"
	}
	return "user_id"
}

func (c *Client) ListAchievements(ctx context.Context, owner string, order store.Order) ([]schema.Achievement, error) {
	q := c.from(string(schema.EntityAchievements)).selectCols("*").eq("user_id", owner)
	switch order {
	case store.OrderStartDesc:
		q.order("start_date", false, true)
	case store.OrderCreatedAsc:
		q.order("created_at", true, false)
	default:
		q.order("created_at", false, false)
	}
	var items []schema.Achievement
	if err := q.get(ctx, &items); err != nil {
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}
	return items, nil
}

func (c *Client) GetAchievement(ctx context.Context, owner, id string) (*schema.Achievement, error) {
	var items []schema.Achievement
	err := c.from(string(schema.EntityAchievements)).selectCols("*").
		eq("id", id).eq("user_id", owner).limitN(1).
		get(ctx, &items)
	if err != nil {
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}
	if len(items) == 0 {
		return nil, store.ErrNotFound
	}
	return &items[0], nil
}

// achievementRow 写入用的行：时间戳由数据库生成
type achievementRow struct {
	ID                 string              `json:"id"`
	UserID             string              `json:"user_id"`
	Type               schema.Kind         `json:"type"`
	Title              string              `json:"title"`
	Organization       string              `json:"organization"`
	Description        string              `json:"description"`
	StartDate          *schema.Date        `json:"start_date"`
	EndDate            *schema.Date        `json:"end_date"`
	Location           string              `json:"location"`
	Skills             []string            `json:"skills"`
	VerificationStatus schema.Verification `json:"verification_status"`
	IsVisible          bool                `json:"is_visible"`
}

func (c *Client) InsertAchievement(ctx context.Context, a *schema.Achievement) error {
	if a == nil {
		return fmt.Errorf("成就不能为空")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	skills := []string(a.Skills)
	if skills == nil {
		skills = []string{}
	}
	row := achievementRow{
		ID: a.ID, UserID: a.UserID, Type: a.Type, Title: a.Title, Organization: a.Organization,
		Description: a.Description, StartDate: a.StartDate, EndDate: a.EndDate, Location: a.Location,
		Skills: skills, VerificationStatus: a.VerificationStatus, IsVisible: a.IsVisible,
	}
	var created []schema.Achievement
	if err := c.from(string(schema.EntityAchievements)).insert(ctx, row, false, &created); err != nil {
		return fmt.Errorf("保存成就失败: %w", err)
	}
	if len(created) > 0 {
		a.CreatedAt = created[0].CreatedAt
		a.UpdatedAt = created[0].UpdatedAt
	}
	return nil
}

func (c *Client) UpdateAchievement(ctx context.Context, owner, id string, patch store.AchievementPatch) error {
	body := achievementPatchBody(patch)
	if len(body) == 0 {
		_, err := c.GetAchievement(ctx, owner, id)
		return err
	}
	var updated []schema.Achievement
	err := c.from(string(schema.EntityAchievements)).eq("id", id).eq("user_id", owner).update(ctx, body, &updated)
	if err != nil {
		return fmt.Errorf("更新成就失败: %w", err)
	}
	if len(updated) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) DeleteAchievement(ctx context.Context, owner, id string) error {
	var deleted []schema.Achievement
	if err := c.from(string(schema.EntityAchievements)).eq("id", id).eq("user_id", owner).delete(ctx, &deleted); err != nil {
		return fmt.Errorf("删除成就失败: %w", err)
	}
	if len(deleted) == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (c *Client) GetProfile(ctx context.Context, owner string) (*schema.Profile, error) {
	var profiles []schema.Profile
	if err := c.from(string(schema.EntityProfiles)).selectCols("*").eq("id", owner).limitN(1).get(ctx, &profiles); err != nil {
		return nil, fmt.Errorf("查询资料失败: %w", err)
	}
	if len(profiles) == 0 {
		return nil, nil
	}
	return &profiles[0], nil
}

func (c *Client) UpdateProfile(ctx context.Context, owner string, patch store.ProfilePatch) error {
	body := profilePatchBody(patch)
	body["id"] = owner
	var out []schema.Profile
	if err := c.from(string(schema.EntityProfiles)).insert(ctx, body, true, &out); err != nil {
		return fmt.Errorf("更新资料失败: %w", err)
	}
	return nil
}

func (c *Client) ListIntegrations(ctx context.Context, owner string) ([]schema.IntegrationConnection, error) {
	var conns []schema.IntegrationConnection
	err := c.from(string(schema.EntityIntegrations)).selectCols("*").eq("user_id", owner).
		order("platform", true, false).get(ctx, &conns)
	if err != nil {
		return nil, fmt.Errorf("查询平台连接失败: %w", err)
	}
	return conns, nil
}

func achievementPatchBody(p store.AchievementPatch) map[string]any {
	m := make(map[string]any)
	if p.Type != nil {
		m["type"] = *p.Type
	}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Organization != nil {
		m["organization"] = *p.Organization
	}
	if p.Description != nil {
		m["description"] = *p.Description
	}
	if p.Location != nil {
		m["location"] = *p.Location
	}
	if p.StartDate != nil {
		m["start_date"] = *p.StartDate
	}
	if p.EndDate != nil {
		m["end_date"] = *p.EndDate
	}
	if p.Skills != nil {
		m["skills"] = *p.Skills
	}
	if p.IsVisible != nil {
		m["is_visible"] = *p.IsVisible
	}
	return m
}

func profilePatchBody(p store.ProfilePatch) map[string]any {
	m := make(map[string]any)
	set := func(col string, v *string) {
		if v != nil {
			m[col] = *v
		}
	}
	set("full_name", p.FullName)
	set("headline", p.Headline)
	set("phone", p.Phone)
	set("location", p.Location)
	set("linkedin_url", p.LinkedinURL)
	set("github_url", p.GithubURL)
	set("portfolio_url", p.PortfolioURL)
	set("ai_summary", p.AISummary)
	return m
}

// EnsureProfile 资料不存在时插入；已存在的行不覆盖
func (c *Client) EnsureProfile(ctx context.Context, owner, email string) error {
	row := map[string]any{"id": owner, "email": email}
	if err := c.from(string(schema.EntityProfiles)).insertIgnore(ctx, row); err != nil {
		return fmt.Errorf("创建资料失败: %w", err)
	}
	return nil
}

// integrationRow 写入用的行
type integrationRow struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Platform       string     `json:"platform"`
	PlatformUserID string     `json:"platform_user_id"`
	IsActive       bool       `json:"is_active"`
	LastSyncAt     *time.Time `json:"last_sync_at"`
	SyncFrequency  string     `json:"sync_frequency"`
}

func (c *Client) UpsertIntegration(ctx context.Context, conn *schema.IntegrationConnection) error {
	if conn == nil {
		return fmt.Errorf("平台连接不能为空")
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	row := integrationRow{
		ID: conn.ID, UserID: conn.UserID, Platform: conn.Platform, PlatformUserID: conn.PlatformUserID,
		IsActive: conn.IsActive, LastSyncAt: conn.LastSyncAt, SyncFrequency: conn.SyncFrequency,
	}
	var out []schema.IntegrationConnection
	if err := c.from(string(schema.EntityIntegrations)).insert(ctx, row, true, &out); err != nil {
		return fmt.Errorf("保存平台连接失败: %w", err)
	}
	return nil
}
