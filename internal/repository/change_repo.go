package repository

import (
	"context"
	"fmt"

	"github.com/yuqie6/Folio/internal/schema"
	"gorm.io/gorm"
)

// ChangeRepository 变更日志仓储
type ChangeRepository struct {
	db *gorm.DB
}

// NewChangeRepository 创建仓储
func NewChangeRepository(db *gorm.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// Append 追加一条变更，写入后 c.Seq 被填充
func (r *ChangeRepository) Append(ctx context.Context, c *schema.RecordChange) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("写入变更日志失败: %w", err)
	}
	return nil
}

// ListAfter 按 Seq 升序读取 seq 之后的变更
func (r *ChangeRepository) ListAfter(ctx context.Context, seq int64, limit int) ([]schema.RecordChange, error) {
	if limit <= 0 {
		limit = 500
	}
	var changes []schema.RecordChange
	err := r.db.WithContext(ctx).
		Where("seq > ?", seq).
		Order("seq ASC").
		Limit(limit).
		Find(&changes).Error
	if err != nil {
		return nil, fmt.Errorf("查询变更日志失败: %w", err)
	}
	return changes, nil
}

// MaxSeq 当前最大序号，空表返回 0
func (r *ChangeRepository) MaxSeq(ctx context.Context) (int64, error) {
	var maxSeq int64
	err := r.db.WithContext(ctx).
		Model(&schema.RecordChange{}).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error
	if err != nil {
		return 0, fmt.Errorf("查询变更序号失败: %w", err)
	}
	return maxSeq, nil
}

// PruneBefore 删除 seq 之前的旧日志
func (r *ChangeRepository) PruneBefore(ctx context.Context, seq int64) (int64, error) {
	res := r.db.WithContext(ctx).Where("seq < ?", seq).Delete(&schema.RecordChange{})
	if res.Error != nil {
		return 0, fmt.Errorf("清理变更日志失败: %w", res.Error)
	}
	return res.RowsAffected, nil
}
