package schema

import "time"

// Profile 用户资料，每个用户一行，主键即用户 ID
type Profile struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	Email        string    `gorm:"size:255" json:"email"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	Headline     string    `gorm:"size:255" json:"headline"`
	Phone        string    `gorm:"size:64" json:"phone"`
	Location     string    `gorm:"size:255" json:"location"`
	LinkedinURL  string    `gorm:"size:512" json:"linkedin_url"`
	GithubURL    string    `gorm:"size:512" json:"github_url"`
	PortfolioURL string    `gorm:"size:512" json:"portfolio_url"`
	AISummary    string    `gorm:"type:text" json:"ai_summary"` // 本地模板生成后像普通字段一样保存
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Profile) TableName() string {
	return string(EntityProfiles)
}

// Clone 返回副本指针（nil 安全）
func (p *Profile) Clone() *Profile {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}
