package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/Folio/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IntegrationRepository 平台连接仓储（只读展示，写入仅用于登记连接）
type IntegrationRepository struct {
	db *gorm.DB
}

// NewIntegrationRepository 创建仓储
func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

// ListByOwner 查询用户的平台连接
func (r *IntegrationRepository) ListByOwner(ctx context.Context, owner string) ([]schema.IntegrationConnection, error) {
	var conns []schema.IntegrationConnection
	err := r.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("platform ASC").
		Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("查询平台连接失败: %w", err)
	}
	return conns, nil
}

// Upsert 插入或更新连接
func (r *IntegrationRepository) Upsert(ctx context.Context, conn *schema.IntegrationConnection) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"platform_user_id", "is_active", "last_sync_at", "sync_frequency", "updated_at"}),
	}).Create(conn).Error
	if err != nil {
		return fmt.Errorf("保存平台连接失败: %w", err)
	}
	return nil
}
