package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfileRepository 用户资料仓储
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository 创建仓储
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get 获取资料，不存在返回 nil, nil
func (r *ProfileRepository) Get(ctx context.Context, owner string) (*schema.Profile, error) {
	var p schema.Profile
	err := r.db.WithContext(ctx).Where("id = ?", owner).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询资料失败: %w", err)
	}
	return &p, nil
}

// Ensure 资料不存在时创建空资料，返回是否新建
func (r *ProfileRepository) Ensure(ctx context.Context, owner, email string) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&schema.Profile{ID: owner, Email: email})
	if res.Error != nil {
		return false, fmt.Errorf("创建资料失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Update 按补丁更新，资料不存在时先创建
func (r *ProfileRepository) Update(ctx context.Context, owner string, patch store.ProfilePatch) error {
	if _, err := r.Ensure(ctx, owner, ""); err != nil {
		return err
	}
	updates := profileUpdates(patch)
	if len(updates) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Model(&schema.Profile{}).
		Where("id = ?", owner).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("更新资料失败: %w", err)
	}
	return nil
}

func profileUpdates(p store.ProfilePatch) map[string]interface{} {
	m := make(map[string]interface{})
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
