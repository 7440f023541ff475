package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/yuqie6/Folio/internal/aggregate"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

// ProfileInput 资料表单
type ProfileInput struct {
	FullName     string `json:"full_name"`
	Headline     string `json:"headline"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	LinkedinURL  string `json:"linkedin_url"`
	GithubURL    string `json:"github_url"`
	PortfolioURL string `json:"portfolio_url"`
	AISummary    string `json:"ai_summary"`
}

// FromProfile 以现有资料填充表单
func FromProfile(p *schema.Profile) ProfileInput {
	if p == nil {
		return ProfileInput{}
	}
	return ProfileInput{
		FullName:     p.FullName,
		Headline:     p.Headline,
		Phone:        p.Phone,
		Location:     p.Location,
		LinkedinURL:  p.LinkedinURL,
		GithubURL:    p.GithubURL,
		PortfolioURL: p.PortfolioURL,
		AISummary:    p.AISummary,
	}
}

func (in ProfileInput) patch() (store.ProfilePatch, error) {
	name, err := requireText("full_name", in.FullName, maxTextLen)
	if err != nil {
		return store.ProfilePatch{}, err
	}
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"headline", in.Headline, maxTextLen},
		{"phone", in.Phone, 64},
		{"location", in.Location, maxTextLen},
		{"ai_summary", in.AISummary, maxDescriptionLen},
	}
	for _, f := range fields {
		if _, err := limitText(f.name, f.value, f.max); err != nil {
			return store.ProfilePatch{}, err
		}
	}
	links := map[string]string{
		"linkedin_url":  in.LinkedinURL,
		"github_url":    in.GithubURL,
		"portfolio_url": in.PortfolioURL,
	}
	for field, raw := range links {
		if err := checkURL(field, raw); err != nil {
			return store.ProfilePatch{}, err
		}
	}

	headline, phone, location, summary := in.Headline, in.Phone, in.Location, in.AISummary
	linkedin, github, portfolio := in.LinkedinURL, in.GithubURL, in.PortfolioURL
	return store.ProfilePatch{
		FullName:     &name,
		Headline:     &headline,
		Phone:        &phone,
		Location:     &location,
		LinkedinURL:  &linkedin,
		GithubURL:    &github,
		PortfolioURL: &portfolio,
		AISummary:    &summary,
	}, nil
}

func checkURL(field, raw string) error {
	if raw == "" {
		return nil
	}
	if _, err := limitText(field, raw, 512); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid(field, "不是有效的 http(s) 链接")
	}
	return nil
}

// ProfileService 资料读写与摘要生成
type ProfileService struct {
	store  ProfileStore
	onSave MutationHook
}

func NewProfileService(st ProfileStore, hook MutationHook) *ProfileService {
	return &ProfileService{store: st, onSave: hook}
}

// Get 资料不存在时返回 nil
func (s *ProfileService) Get(ctx context.Context, owner string) (*schema.Profile, error) {
	return s.store.GetProfile(ctx, owner)
}

// Save 保存整张表单
func (s *ProfileService) Save(ctx context.Context, owner string, in ProfileInput) error {
	if owner == "" {
		return invalid("owner", "未登录")
	}
	patch, err := in.patch()
	if err != nil {
		return err
	}
	if err := s.store.UpdateProfile(ctx, owner, patch); err != nil {
		return fmt.Errorf("保存资料失败: %w", err)
	}
	slog.Info("资料已保存", "owner", owner)
	if s.onSave != nil {
		s.onSave(owner, schema.EntityProfiles)
	}
	return nil
}

// GenerateSummary 用可见成就和表单里的姓名/标题生成摘要，不保存
func (s *ProfileService) GenerateSummary(ctx context.Context, owner string, draft ProfileInput) (string, error) {
	items, err := s.store.ListAchievements(ctx, owner, store.OrderCreatedAsc)
	if err != nil {
		return "", fmt.Errorf("读取成就失败: %w", err)
	}
	in := aggregate.AssembleSummaryInput(items)
	return aggregate.RenderSummary(draft.FullName, draft.Headline, in), nil
}

// GenerateAndSave 以当前资料为草稿生成摘要并保存，返回摘要文本
func (s *ProfileService) GenerateAndSave(ctx context.Context, owner string) (string, error) {
	p, err := s.store.GetProfile(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("读取资料失败: %w", err)
	}
	if p == nil {
		return "", fmt.Errorf("读取资料失败: %w", store.ErrNotFound)
	}
	draft := FromProfile(p)
	text, err := s.GenerateSummary(ctx, owner, draft)
	if err != nil {
		return "", err
	}
	draft.AISummary = text
	if err := s.Save(ctx, owner, draft); err != nil {
		return "", err
	}
	return text, nil
}
