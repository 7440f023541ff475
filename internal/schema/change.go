package schema

import "time"

// RecordChange 变更日志：每次写操作在同一事务内追加一行，
// 供跨进程的变更订阅按 Seq 顺序追读。
type RecordChange struct {
	Seq       int64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	Entity    Entity    `gorm:"size:50;not null;index:idx_changes_owner_entity" json:"entity"`
	Op        ChangeOp  `gorm:"size:10;not null" json:"op"`
	Owner     string    `gorm:"size:64;not null;index:idx_changes_owner_entity" json:"owner"`
	RecordID  string    `gorm:"size:64" json:"record_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (RecordChange) TableName() string {
	return "record_changes"
}
