package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/store"
)

type fakeStore struct {
	items    map[string]*schema.Achievement
	order    []string
	profiles map[string]*schema.Profile
	deleted  []string
	failNext error
}

func newFakeStore() *fakeStore {
	return &fakeStore{items: make(map[string]*schema.Achievement), profiles: make(map[string]*schema.Profile)}
}

func (f *fakeStore) ListAchievements(ctx context.Context, owner string, order store.Order) ([]schema.Achievement, error) {
	var out []schema.Achievement
	for _, id := range f.order {
		if a, ok := f.items[id]; ok && a.UserID == owner {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (f *fakeStore) GetAchievement(ctx context.Context, owner, id string) (*schema.Achievement, error) {
	a, ok := f.items[id]
	if !ok || a.UserID != owner {
		return nil, store.ErrNotFound
	}
	c := a.Clone()
	return &c, nil
}

func (f *fakeStore) InsertAchievement(ctx context.Context, a *schema.Achievement) error {
	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}
	c := a.Clone()
	f.items[a.ID] = &c
	f.order = append(f.order, a.ID)
	return nil
}

func (f *fakeStore) UpdateAchievement(ctx context.Context, owner, id string, patch store.AchievementPatch) error {
	a, ok := f.items[id]
	if !ok || a.UserID != owner {
		return store.ErrNotFound
	}
	if patch.Title != nil {
		a.Title = *patch.Title
	}
	if patch.IsVisible != nil {
		a.IsVisible = *patch.IsVisible
	}
	if patch.Skills != nil {
		a.Skills = schema.JSONArray(*patch.Skills)
	}
	if patch.EndDate != nil {
		a.EndDate = *patch.EndDate
	}
	return nil
}

func (f *fakeStore) DeleteAchievement(ctx context.Context, owner, id string) error {
	if _, ok := f.items[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.items, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) GetProfile(ctx context.Context, owner string) (*schema.Profile, error) {
	return f.profiles[owner].Clone(), nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, owner string, patch store.ProfilePatch) error {
	p, ok := f.profiles[owner]
	if !ok {
		return store.ErrNotFound
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.Headline != nil {
		p.Headline = *patch.Headline
	}
	if patch.AISummary != nil {
		p.AISummary = *patch.AISummary
	}
	return nil
}

type hookRecorder struct {
	calls []string
}

func (h *hookRecorder) hook(owner string, entity schema.Entity) {
	h.calls = append(h.calls, owner+":"+string(entity))
}

func validInput() AchievementInput {
	return AchievementInput{
		Type:         "internship",
		Title:        " Backend Intern ",
		Organization: "Acme",
		StartDate:    "2023-06-01",
		EndDate:      "2023-09-01",
		Skills:       "Go, , Redis,go ,Kafka",
	}
}

func TestCreateDefaultsAndHook(t *testing.T) {
	st := newFakeStore()
	rec := &hookRecorder{}
	svc := NewAchievementService(st, rec.hook)

	a, err := svc.Create(context.Background(), "alice", validInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.ID == "" || a.UserID != "alice" || a.Title != "Backend Intern" {
		t.Fatalf("achievement=%+v", a)
	}
	if a.VerificationStatus != schema.VerificationUnverified || !a.IsVisible {
		t.Fatalf("defaults status=%s visible=%v", a.VerificationStatus, a.IsVisible)
	}
	if strings.Join(a.Skills, "|") != "Go|Redis|Kafka" {
		t.Fatalf("skills=%v", a.Skills)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "alice:achievements" {
		t.Fatalf("hook calls=%v", rec.calls)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*AchievementInput)
		field string
	}{
		{"unknown kind", func(in *AchievementInput) { in.Type = "job" }, "type"},
		{"blank title", func(in *AchievementInput) { in.Title = "   " }, "title"},
		{"missing organization", func(in *AchievementInput) { in.Organization = "" }, "organization"},
		{"bad date", func(in *AchievementInput) { in.StartDate = "June 2023" }, "start_date"},
		{"end before start", func(in *AchievementInput) { in.EndDate = "2023-01-01" }, "end_date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := newFakeStore()
			rec := &hookRecorder{}
			in := validInput()
			tc.edit(&in)
			_, err := NewAchievementService(st, rec.hook).Create(context.Background(), "alice", in)
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tc.field {
				t.Fatalf("err=%v, want ValidationError on %s", err, tc.field)
			}
			if len(st.items) != 0 || len(rec.calls) != 0 {
				t.Fatalf("invalid input must not write or notify")
			}
		})
	}
}

func TestCreateStoreFailureSkipsHook(t *testing.T) {
	st := newFakeStore()
	st.failNext = store.ErrUnavailable
	rec := &hookRecorder{}
	_, err := NewAchievementService(st, rec.hook).Create(context.Background(), "alice", validInput())
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("err=%v, want ErrUnavailable", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("hook called on failed write")
	}
}

func TestOngoingAchievementHasNoEndDate(t *testing.T) {
	st := newFakeStore()
	in := validInput()
	in.EndDate = ""
	a, err := NewAchievementService(st, nil).Create(context.Background(), "alice", in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.EndDate != nil || !a.Ongoing() {
		t.Fatalf("end=%v, want ongoing", a.EndDate)
	}
}

func TestToggleVisibilityReadsPersistedValue(t *testing.T) {
	st := newFakeStore()
	svc := NewAchievementService(st, nil)
	a, _ := svc.Create(context.Background(), "alice", validInput())

	// 另一端已经把它隐藏了
	st.items[a.ID].IsVisible = false

	got, err := svc.ToggleVisibility(context.Background(), "alice", a.ID)
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !got || !st.items[a.ID].IsVisible {
		t.Fatalf("visible=%v, want true", got)
	}

	if err := svc.SetVisibility(context.Background(), "alice", a.ID, true); err != nil {
		t.Fatalf("SetVisibility: %v", err)
	}
	if !st.items[a.ID].IsVisible {
		t.Fatalf("SetVisibility(true) not idempotent")
	}
}

func TestToggleOtherOwnersRecordIsNotFound(t *testing.T) {
	st := newFakeStore()
	svc := NewAchievementService(st, nil)
	a, _ := svc.Create(context.Background(), "alice", validInput())
	if _, err := svc.ToggleVisibility(context.Background(), "bob", a.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	st := newFakeStore()
	rec := &hookRecorder{}
	svc := NewAchievementService(st, rec.hook)
	a, _ := svc.Create(context.Background(), "alice", validInput())
	rec.calls = nil

	deleted, err := svc.Delete(context.Background(), "alice", a.ID, func(schema.Achievement) bool { return false })
	if err != nil || deleted {
		t.Fatalf("declined delete: deleted=%v err=%v", deleted, err)
	}
	if deleted, _ := svc.Delete(context.Background(), "alice", a.ID, nil); deleted {
		t.Fatalf("nil confirmer must not delete")
	}
	if len(st.deleted) != 0 || len(rec.calls) != 0 {
		t.Fatalf("declined delete had side effects")
	}

	var seen string
	deleted, err = svc.Delete(context.Background(), "alice", a.ID, func(x schema.Achievement) bool {
		seen = x.Title
		return true
	})
	if err != nil || !deleted {
		t.Fatalf("confirmed delete: deleted=%v err=%v", deleted, err)
	}
	if seen != "Backend Intern" || len(rec.calls) != 1 {
		t.Fatalf("seen=%q hook=%v", seen, rec.calls)
	}
}

func TestUpdateRevalidates(t *testing.T) {
	st := newFakeStore()
	svc := NewAchievementService(st, nil)
	a, _ := svc.Create(context.Background(), "alice", validInput())

	in := validInput()
	in.Title = ""
	if err := svc.Update(context.Background(), "alice", a.ID, in); err == nil {
		t.Fatalf("expected validation error")
	}
	in = validInput()
	in.Title = "Senior Intern"
	in.EndDate = ""
	if err := svc.Update(context.Background(), "alice", a.ID, in); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := st.items[a.ID]
	if got.Title != "Senior Intern" || got.EndDate != nil || !got.IsVisible {
		t.Fatalf("updated=%+v", got)
	}
}

func TestProfileSaveValidates(t *testing.T) {
	st := newFakeStore()
	st.profiles["alice"] = &schema.Profile{ID: "alice"}
	rec := &hookRecorder{}
	svc := NewProfileService(st, rec.hook)

	err := svc.Save(context.Background(), "alice", ProfileInput{FullName: ""})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "full_name" {
		t.Fatalf("err=%v, want full_name validation", err)
	}
	err = svc.Save(context.Background(), "alice", ProfileInput{FullName: "Alice", GithubURL: "github.com/alice"})
	if !errors.As(err, &ve) || ve.Field != "github_url" {
		t.Fatalf("err=%v, want github_url validation", err)
	}
	if err := svc.Save(context.Background(), "alice", ProfileInput{FullName: "Alice", GithubURL: "https://github.com/alice"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != "alice:profiles" {
		t.Fatalf("hook calls=%v", rec.calls)
	}
}

func TestGenerateSummary(t *testing.T) {
	st := newFakeStore()
	st.profiles["alice"] = &schema.Profile{ID: "alice", FullName: "Alice", Headline: "Backend Engineer"}
	svc := NewAchievementService(st, nil)
	_, _ = svc.Create(context.Background(), "alice", validInput())
	hidden := validInput()
	hidden.Title = "Secret Intern"
	h, _ := svc.Create(context.Background(), "alice", hidden)
	_ = svc.SetVisibility(context.Background(), "alice", h.ID, false)

	ps := NewProfileService(st, nil)
	text, err := ps.GenerateSummary(context.Background(), "alice", ProfileInput{FullName: "Alice", Headline: "Backend Engineer"})
	if err != nil {
		t.Fatalf("GenerateSummary: %v", err)
	}
	if !strings.HasPrefix(text, "Alice is a Backend Engineer with experience in Backend Intern at Acme. Skilled in Go, Redis, Kafka,") {
		t.Fatalf("summary=%q", text)
	}
	if strings.Contains(text, "Secret") {
		t.Fatalf("hidden achievement leaked into summary")
	}
	if st.profiles["alice"].AISummary != "" {
		t.Fatalf("GenerateSummary must not save")
	}

	saved, err := ps.GenerateAndSave(context.Background(), "alice")
	if err != nil || saved != text || st.profiles["alice"].AISummary != text {
		t.Fatalf("GenerateAndSave=%q err=%v stored=%q", saved, err, st.profiles["alice"].AISummary)
	}
}

func TestParseSkills(t *testing.T) {
	if got := ParseSkills(""); len(got) != 0 || got == nil {
		t.Fatalf("ParseSkills(\"\")=%v, want empty non-nil", got)
	}
	if got := strings.Join(ParseSkills(" SQL ,sql,, Rust ,"), "|"); got != "SQL|sql|Rust" {
		t.Fatalf("ParseSkills=%s", got)
	}
}
