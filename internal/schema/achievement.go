package schema

import (
	"time"
)

// Achievement 用户的一条履历记录
// 数据量级：百级/用户
type Achievement struct {
	ID                 string       `gorm:"primaryKey;size:36" json:"id"`
	UserID             string       `gorm:"size:64;not null;index" json:"user_id"`                // 所有者，创建后不变
	Type               Kind         `gorm:"size:20;not null;index" json:"type"`                   // education, internship, ...
	Title              string       `gorm:"size:255;not null" json:"title"`
	Organization       string       `gorm:"size:255;not null" json:"organization"`
	Description        string       `gorm:"type:text" json:"description"`
	StartDate          *Date        `gorm:"type:text;index" json:"start_date"`                    // nil 表示未填
	EndDate            *Date        `gorm:"type:text" json:"end_date"`                            // nil 表示至今
	Location           string       `gorm:"size:255" json:"location"`
	Skills             JSONArray    `gorm:"type:text" json:"skills"`                              // ["Go", "Redis"]
	VerificationStatus Verification `gorm:"size:20;not null" json:"verification_status"`
	VerificationSource string       `gorm:"size:100" json:"verification_source"`
	ExternalID         string       `gorm:"size:255" json:"external_id"`
	Metadata           JSONMap      `gorm:"type:text" json:"metadata"`
	IsVisible          bool         `gorm:"not null" json:"is_visible"`                           // 仅影响简历，不影响仪表盘
	CreatedAt          time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Achievement) TableName() string {
	return string(EntityAchievements)
}

// Ongoing 没有结束日期即视为进行中
func (a *Achievement) Ongoing() bool {
	return a.EndDate == nil || a.EndDate.IsZero()
}

// Clone 深拷贝，发布给视图的快照各自持有
func (a Achievement) Clone() Achievement {
	out := a
	if a.StartDate != nil {
		d := *a.StartDate
		out.StartDate = &d
	}
	if a.EndDate != nil {
		d := *a.EndDate
		out.EndDate = &d
	}
	out.Skills = a.Skills.Clone()
	out.Metadata = a.Metadata.Clone()
	return out
}

// CloneAchievements 批量深拷贝
func CloneAchievements(in []Achievement) []Achievement {
	if in == nil {
		return nil
	}
	out := make([]Achievement, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
