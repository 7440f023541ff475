package service

import (
	"context"

	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

// 存储依赖的最小接口集合（ISP）

type AchievementStore interface {
	ListAchievements(ctx context.Context, owner string, order store.Order) ([]schema.Achievement, error)
	GetAchievement(ctx context.Context, owner, id string) (*schema.Achievement, error)
	InsertAchievement(ctx context.Context, a *schema.Achievement) error
	UpdateAchievement(ctx context.Context, owner, id string, patch store.AchievementPatch) error
	DeleteAchievement(ctx context.Context, owner, id string) error
}

type ProfileStore interface {
	GetProfile(ctx context.Context, owner string) (*schema.Profile, error)
	UpdateProfile(ctx context.Context, owner string, patch store.ProfilePatch) error
	ListAchievements(ctx context.Context, owner string, order store.Order) ([]schema.Achievement, error)
}

// MutationHook 写入成功后调用（会话据此重载依赖该集合的视图）
type MutationHook func(owner string, entity schema.Entity)

// Confirmer 删除前确认；返回 false 表示取消
type Confirmer func(a schema.Achievement) bool

// AlwaysConfirm 非交互调用方使用
func AlwaysConfirm(schema.Achievement) bool { return true }
