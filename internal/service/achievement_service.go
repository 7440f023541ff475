package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

const (
	maxTitleLen       = 255
	maxTextLen        = 255
	maxDescriptionLen = 5000
)

// AchievementInput 录入表单（日期为 YYYY-MM-DD，空串表示未填）
type AchievementInput struct {
	Type         string `json:"type"`
	Title        string `json:"title"`
	Organization string `json:"organization"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Skills       string `json:"skills"` // 逗号分隔
}

// validated 校验后的字段
type validated struct {
	kind         schema.Kind
	title        string
	organization string
	description  string
	location     string
	start        *schema.Date
	end          *schema.Date
	skills       []string
}

func (in AchievementInput) validate() (validated, error) {
	var v validated
	var err error

	v.kind = schema.Kind(in.Type)
	if !v.kind.Valid() {
		return v, invalid("type", fmt.Sprintf("未知类型 %q", in.Type))
	}
	if v.title, err = requireText("title", in.Title, maxTitleLen); err != nil {
		return v, err
	}
	if v.organization, err = requireText("organization", in.Organization, maxTextLen); err != nil {
		return v, err
	}
	if v.description, err = limitText("description", in.Description, maxDescriptionLen); err != nil {
		return v, err
	}
	if v.location, err = limitText("location", in.Location, maxTextLen); err != nil {
		return v, err
	}
	if v.start, err = schema.ParseDatePtr(in.StartDate); err != nil {
		return v, invalid("start_date", err.Error())
	}
	if v.end, err = schema.ParseDatePtr(in.EndDate); err != nil {
		return v, invalid("end_date", err.Error())
	}
	if v.start != nil && v.end != nil && v.end.Before(v.start.Time) {
		return v, invalid("end_date", "结束日期早于开始日期")
	}
	v.skills = ParseSkills(in.Skills)
	return v, nil
}

// AchievementService 成就写入
type AchievementService struct {
	store  AchievementStore
	onSave MutationHook
}

func NewAchievementService(st AchievementStore, hook MutationHook) *AchievementService {
	return &AchievementService{store: st, onSave: hook}
}

func (s *AchievementService) notify(owner string) {
	if s.onSave != nil {
		s.onSave(owner, schema.EntityAchievements)
	}
}

// List 按创建时间倒序
func (s *AchievementService) List(ctx context.Context, owner string) ([]schema.Achievement, error) {
	return s.store.ListAchievements(ctx, owner, store.OrderCreatedDesc)
}

// Create 新建成就：默认未认证、在简历中可见
func (s *AchievementService) Create(ctx context.Context, owner string, in AchievementInput) (*schema.Achievement, error) {
	if owner == "" {
		return nil, invalid("owner", "未登录")
	}
	v, err := in.validate()
	if err != nil {
		return nil, err
	}
	a := &schema.Achievement{
		ID:                 uuid.NewString(),
		UserID:             owner,
		Type:               v.kind,
		Title:              v.title,
		Organization:       v.organization,
		Description:        v.description,
		Location:           v.location,
		StartDate:          v.start,
		EndDate:            v.end,
		Skills:             schema.JSONArray(v.skills),
		VerificationStatus: schema.VerificationUnverified,
		IsVisible:          true,
	}
	if err := s.store.InsertAchievement(ctx, a); err != nil {
		return nil, fmt.Errorf("保存成就失败: %w", err)
	}
	slog.Info("成就已添加", "owner", owner, "id", a.ID, "type", a.Type, "title", truncateRunes(a.Title, 40))
	s.notify(owner)
	return a, nil
}

// Update 整表单更新（可见性与认证状态不变）
func (s *AchievementService) Update(ctx context.Context, owner, id string, in AchievementInput) error {
	v, err := in.validate()
	if err != nil {
		return err
	}
	skills := v.skills
	patch := store.AchievementPatch{
		Type:         &v.kind,
		Title:        &v.title,
		Organization: &v.organization,
		Description:  &v.description,
		Location:     &v.location,
		StartDate:    &v.start,
		EndDate:      &v.end,
		Skills:       &skills,
	}
	if err := s.store.UpdateAchievement(ctx, owner, id, patch); err != nil {
		return fmt.Errorf("更新成就失败: %w", err)
	}
	s.notify(owner)
	return nil
}

// SetVisibility 显式设置是否在简历中显示（幂等）
func (s *AchievementService) SetVisibility(ctx context.Context, owner, id string, visible bool) error {
	if err := s.store.UpdateAchievement(ctx, owner, id, store.AchievementPatch{IsVisible: &visible}); err != nil {
		return fmt.Errorf("更新可见性失败: %w", err)
	}
	slog.Debug("成就可见性已更新", "owner", owner, "id", id, "visible", visible)
	s.notify(owner)
	return nil
}

// ToggleVisibility 以存储中的当前值为准取反，返回新值
func (s *AchievementService) ToggleVisibility(ctx context.Context, owner, id string) (bool, error) {
	a, err := s.store.GetAchievement(ctx, owner, id)
	if err != nil {
		return false, fmt.Errorf("读取成就失败: %w", err)
	}
	next := !a.IsVisible
	if err := s.SetVisibility(ctx, owner, id, next); err != nil {
		return a.IsVisible, err
	}
	return next, nil
}

// Delete 确认后删除。取消确认不是错误，返回 false。
func (s *AchievementService) Delete(ctx context.Context, owner, id string, confirm Confirmer) (bool, error) {
	a, err := s.store.GetAchievement(ctx, owner, id)
	if err != nil {
		return false, fmt.Errorf("读取成就失败: %w", err)
	}
	if confirm == nil || !confirm(*a) {
		slog.Debug("删除已取消", "owner", owner, "id", id)
		return false, nil
	}
	if err := s.store.DeleteAchievement(ctx, owner, id); err != nil {
		return false, fmt.Errorf("删除成就失败: %w", err)
	}
	slog.Info("成就已删除", "owner", owner, "id", id)
	s.notify(owner)
	return true, nil
}
