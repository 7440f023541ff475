package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
	"gorm.io/gorm"
)

// Store 本地 SQLite 记录存储。
// 每次写操作与一条变更日志在同一事务内提交，提交后向 hub 发布变更。
type Store struct {
	db  *gorm.DB
	hub *eventbus.Hub

	achievements *AchievementRepository
	profiles     *ProfileRepository
	integrations *IntegrationRepository
	changes      *ChangeRepository

	mu         sync.Mutex
	trackLocal bool
	localSeqs  map[int64]struct{}
}

var (
	_ store.Store       = (*Store)(nil)
	_ store.ChangeFeed  = (*Store)(nil)
	_ store.Provisioner = (*Store)(nil)
)

// NewStore 创建本地存储；hub 为 nil 时不发布变更
func NewStore(db *gorm.DB, hub *eventbus.Hub) *Store {
	return &Store{
		db:           db,
		hub:          hub,
		achievements: NewAchievementRepository(db),
		profiles:     NewProfileRepository(db),
		integrations: NewIntegrationRepository(db),
		changes:      NewChangeRepository(db),
		localSeqs:    make(map[int64]struct{}),
	}
}

// Changes 变更日志仓储（供跨进程追读）
func (s *Store) Changes() *ChangeRepository {
	return s.changes
}

func (s *Store) ListAchievements(ctx context.Context, owner string, order store.Order) ([]schema.Achievement, error) {
	return s.achievements.ListByOwner(ctx, owner, order)
}

func (s *Store) GetAchievement(ctx context.Context, owner, id string) (*schema.Achievement, error) {
	return s.achievements.GetByID(ctx, owner, id)
}

func (s *Store) InsertAchievement(ctx context.Context, a *schema.Achievement) error {
	if a == nil {
		return fmt.Errorf("成就不能为空")
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return s.mutate(ctx, schema.EntityAchievements, schema.OpInsert, a.UserID, a.ID, func(tx *gorm.DB) error {
		return NewAchievementRepository(tx).Create(ctx, a)
	})
}

func (s *Store) UpdateAchievement(ctx context.Context, owner, id string, patch store.AchievementPatch) error {
	return s.mutate(ctx, schema.EntityAchievements, schema.OpUpdate, owner, id, func(tx *gorm.DB) error {
		return NewAchievementRepository(tx).Update(ctx, owner, id, patch)
	})
}

func (s *Store) DeleteAchievement(ctx context.Context, owner, id string) error {
	return s.mutate(ctx, schema.EntityAchievements, schema.OpDelete, owner, id, func(tx *gorm.DB) error {
		return NewAchievementRepository(tx).Delete(ctx, owner, id)
	})
}

func (s *Store) GetProfile(ctx context.Context, owner string) (*schema.Profile, error) {
	return s.profiles.Get(ctx, owner)
}

func (s *Store) UpdateProfile(ctx context.Context, owner string, patch store.ProfilePatch) error {
	return s.mutate(ctx, schema.EntityProfiles, schema.OpUpdate, owner, owner, func(tx *gorm.DB) error {
		return NewProfileRepository(tx).Update(ctx, owner, patch)
	})
}

// EnsureProfile 登录时确保资料行存在（代替账号注册流程）
func (s *Store) EnsureProfile(ctx context.Context, owner, email string) error {
	var change *schema.RecordChange
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := NewProfileRepository(tx).Ensure(ctx, owner, email)
		if err != nil || !created {
			return err
		}
		change = &schema.RecordChange{Entity: schema.EntityProfiles, Op: schema.OpInsert, Owner: owner, RecordID: owner}
		return NewChangeRepository(tx).Append(ctx, change)
	})
	if err != nil {
		return err
	}
	if change != nil {
		slog.Info("已创建用户资料", "owner", owner)
		s.publish(*change)
	}
	return nil
}

func (s *Store) ListIntegrations(ctx context.Context, owner string) ([]schema.IntegrationConnection, error) {
	return s.integrations.ListByOwner(ctx, owner)
}

// UpsertIntegration 登记或更新平台连接
func (s *Store) UpsertIntegration(ctx context.Context, conn *schema.IntegrationConnection) error {
	if conn == nil {
		return fmt.Errorf("平台连接不能为空")
	}
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	return s.mutate(ctx, schema.EntityIntegrations, schema.OpUpdate, conn.UserID, conn.ID, func(tx *gorm.DB) error {
		return NewIntegrationRepository(tx).Upsert(ctx, conn)
	})
}

// Watch 实现 store.ChangeFeed（本进程内的变更 + 追读到的跨进程变更）
func (s *Store) Watch(ctx context.Context, owner string, entities []schema.Entity) (<-chan struct{}, error) {
	if s.hub == nil {
		return nil, fmt.Errorf("本地存储未配置事件总线")
	}
	return s.hub.Watch(ctx, owner, entities)
}

// TrackLocal 开启后记录本进程发布过的 seq，追读跨进程变更时跳过
func (s *Store) TrackLocal(enabled bool) {
	s.mu.Lock()
	s.trackLocal = enabled
	if !enabled {
		s.localSeqs = make(map[int64]struct{})
	}
	s.mu.Unlock()
}

// ConsumeLocal seq 是否由本进程发布过；命中后移除
func (s *Store) ConsumeLocal(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.localSeqs[seq]; ok {
		delete(s.localSeqs, seq)
		return true
	}
	return false
}

func (s *Store) mutate(ctx context.Context, entity schema.Entity, op schema.ChangeOp, owner, recordID string, fn func(tx *gorm.DB) error) error {
	if owner == "" {
		return fmt.Errorf("owner 不能为空")
	}
	change := schema.RecordChange{Entity: entity, Op: op, Owner: owner, RecordID: recordID}
	marked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(tx); err != nil {
			return err
		}
		if err := NewChangeRepository(tx).Append(ctx, &change); err != nil {
			return err
		}
		// 提交前登记，追读方在提交后才能看到这一行
		marked = s.markLocal(change.Seq)
		return nil
	})
	if err != nil {
		if marked {
			s.ConsumeLocal(change.Seq)
		}
		return err
	}
	// 只在提交成功后发布，回滚的写入不会触发重载
	s.publish(change)
	return nil
}

func (s *Store) markLocal(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.trackLocal {
		return false
	}
	s.localSeqs[seq] = struct{}{}
	return true
}

func (s *Store) publish(change schema.RecordChange) {
	s.hub.Publish(eventbus.Event{
		Entity:    change.Entity,
		Op:        change.Op,
		Owner:     change.Owner,
		RecordID:  change.RecordID,
		Seq:       change.Seq,
		Timestamp: time.Now().UnixMilli(),
	})
}
