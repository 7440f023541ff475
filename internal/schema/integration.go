package schema

import "time"

// IntegrationConnection 外部平台连接（本系统只读，不执行同步）
type IntegrationConnection struct {
	ID             string     `gorm:"primaryKey;size:36" json:"id"`
	UserID         string     `gorm:"size:64;not null;index" json:"user_id"`
	Platform       string     `gorm:"size:50;not null" json:"platform"` // linkedin, github, coursera
	PlatformUserID string     `gorm:"size:255" json:"platform_user_id"`
	IsActive       bool       `gorm:"not null" json:"is_active"`
	LastSyncAt     *time.Time `json:"last_sync_at"`
	SyncFrequency  string     `gorm:"size:20" json:"sync_frequency"` // realtime, daily, weekly, manual
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (IntegrationConnection) TableName() string {
	return string(EntityIntegrations)
}

// CloneIntegrations 批量拷贝
func CloneIntegrations(in []IntegrationConnection) []IntegrationConnection {
	if in == nil {
		return nil
	}
	out := make([]IntegrationConnection, len(in))
	for i, c := range in {
		out[i] = c
		if c.LastSyncAt != nil {
			t := *c.LastSyncAt
			out[i].LastSyncAt = &t
		}
	}
	return out
}
