// Package store defines the record store contract shared by the local SQLite
// backend and the remote Supabase backend.
package store

import (
	"context"
	"errors"

	"github.com/yuqie6/Folio/internal/schema"
)

var (
	// ErrNotFound 记录不存在，或不属于该用户
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable 存储不可达（传输失败），调用方保留上一份状态即可
	ErrUnavailable = errors.New("record store unavailable")
)

// Order 查询排序
type Order int

const (
	// OrderCreatedDesc 仪表盘：最近添加在前
	OrderCreatedDesc Order = iota
	// OrderStartDesc 简历：开始日期倒序，无日期在后
	OrderStartDesc
	// OrderCreatedAsc 摘要：按添加顺序
	OrderCreatedAsc
)

// AchievementPatch 部分字段更新，nil 表示不修改
type AchievementPatch struct {
	Type         *schema.Kind
	Title        *string
	Organization *string
	Description  *string
	Location     *string
	StartDate    **schema.Date
	EndDate      **schema.Date
	Skills       *[]string
	IsVisible    *bool
}

// Empty 是否没有任何字段
func (p AchievementPatch) Empty() bool {
	return p.Type == nil && p.Title == nil && p.Organization == nil && p.Description == nil &&
		p.Location == nil && p.StartDate == nil && p.EndDate == nil && p.Skills == nil && p.IsVisible == nil
}

// ProfilePatch 资料部分更新
type ProfilePatch struct {
	FullName     *string
	Headline     *string
	Phone        *string
	Location     *string
	LinkedinURL  *string
	GithubURL    *string
	PortfolioURL *string
	AISummary    *string
}

// Store 记录存储。所有读写都按 owner 限定范围。
type Store interface {
	ListAchievements(ctx context.Context, owner string, order Order) ([]schema.Achievement, error)
	// GetAchievement 不存在或不属于 owner 时返回 ErrNotFound
	GetAchievement(ctx context.Context, owner, id string) (*schema.Achievement, error)
	InsertAchievement(ctx context.Context, a *schema.Achievement) error
	UpdateAchievement(ctx context.Context, owner, id string, patch AchievementPatch) error
	DeleteAchievement(ctx context.Context, owner, id string) error

	// GetProfile 资料不存在时返回 nil, nil
	GetProfile(ctx context.Context, owner string) (*schema.Profile, error)
	UpdateProfile(ctx context.Context, owner string, patch ProfilePatch) error

	ListIntegrations(ctx context.Context, owner string) ([]schema.IntegrationConnection, error)
}

// ChangeFeed 变更通知源。事件不带数据，收到后需要重新查询。
// 返回的通道在 ctx 结束后关闭；过滤必须在源头按 owner 完成。
type ChangeFeed interface {
	Watch(ctx context.Context, owner string, entities []schema.Entity) (<-chan struct{}, error)
}

// Provisioner 登录时建资料、登记平台连接
type Provisioner interface {
	// EnsureProfile 资料不存在时创建，已存在时不修改
	EnsureProfile(ctx context.Context, owner, email string) error
	UpsertIntegration(ctx context.Context, conn *schema.IntegrationConnection) error
}
