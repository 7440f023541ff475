package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
	"gorm.io/gorm"
)

// AchievementRepository 成就仓储
type AchievementRepository struct {
	db *gorm.DB
}

// NewAchievementRepository 创建仓储
func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// ListByOwner 按用户查询全部成就
func (r *AchievementRepository) ListByOwner(ctx context.Context, owner string, order store.Order) ([]schema.Achievement, error) {
	var items []schema.Achievement
	q := r.db.WithContext(ctx).Where("user_id = ?", owner)
	switch order {
	case store.OrderStartDesc:
		// SQLite 中 NULL 最小，DESC 时自然排在最后
		q = q.Order("start_date DESC").Order("created_at DESC")
	case store.OrderCreatedAsc:
		q = q.Order("created_at ASC").Order("id ASC")
	default:
		q = q.Order("created_at DESC").Order("id DESC")
	}
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}
	return items, nil
}

// GetByID 获取单条成就；不存在或不属于 owner 时返回 store.ErrNotFound
func (r *AchievementRepository) GetByID(ctx context.Context, owner, id string) (*schema.Achievement, error) {
	var a schema.Achievement
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}
	return &a, nil
}

// Create 插入成就
func (r *AchievementRepository) Create(ctx context.Context, a *schema.Achievement) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("保存成就失败: %w", err)
	}
	return nil
}

// Update 按补丁更新
func (r *AchievementRepository) Update(ctx context.Context, owner, id string, patch store.AchievementPatch) error {
	updates := achievementUpdates(patch)
	if len(updates) == 0 {
		// 空补丁也要确认记录存在
		_, err := r.GetByID(ctx, owner, id)
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&schema.Achievement{}).
		Where("id = ? AND user_id = ?", id, owner).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("更新成就失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete 删除成就
func (r *AchievementRepository) Delete(ctx context.Context, owner, id string) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).Delete(&schema.Achievement{})
	if res.Error != nil {
		return fmt.Errorf("删除成就失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func achievementUpdates(p store.AchievementPatch) map[string]interface{} {
	m := make(map[string]interface{})
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
		m["start_date"] = dateValue(*p.StartDate)
	}
	if p.EndDate != nil {
		m["end_date"] = dateValue(*p.EndDate)
	}
	if p.Skills != nil {
		m["skills"] = schema.JSONArray(*p.Skills)
	}
	if p.IsVisible != nil {
		m["is_visible"] = *p.IsVisible
	}
	return m
}

func dateValue(d *schema.Date) interface{} {
	if d == nil || d.IsZero() {
		return nil
	}
	return d.String()
}
