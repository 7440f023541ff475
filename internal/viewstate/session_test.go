package viewstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yuqie6/Folio/internal/aggregate"
	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/repository"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/subscription"
	"github.com/yuqie6/Folio/internal/testutil"
)

type failingFeed struct{}

func (failingFeed) Watch(context.Context, string, []schema.Entity) (<-chan struct{}, error) {
	return nil, errors.New("offline")
}

type fixture struct {
	store   *repository.Store
	hub     *eventbus.Hub
	subs    *subscription.Manager
	session *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	hub := eventbus.NewHub()
	st := repository.NewStore(db, hub)
	subs := subscription.NewManager(st, nil)
	sess := NewSession(st, subs, Options{LoadTimeout: 2 * time.Second})
	t.Cleanup(sess.Close)
	return &fixture{store: st, hub: hub, subs: subs, session: sess}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within 3s")
}

func insert(t *testing.T, st *repository.Store, owner string, kind schema.Kind, visible bool) {
	t.Helper()
	start := schema.NewDate(2023, time.June, 1)
	err := st.InsertAchievement(context.Background(), &schema.Achievement{
		UserID:             owner,
		Type:               kind,
		Title:              "Intern",
		Organization:       "Acme",
		StartDate:          &start,
		VerificationStatus: schema.VerificationUnverified,
		IsVisible:          visible,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestMountRequiresUser(t *testing.T) {
	f := newFixture(t)
	if err := f.session.Mount(KindDashboard); !errors.Is(err, ErrNoUser) {
		t.Fatalf("err=%v, want ErrNoUser", err)
	}
	if err := f.session.SignIn("alice"); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if err := f.session.Mount(Kind("settings")); err == nil {
		t.Fatalf("expected error for unknown view")
	}
}

func TestDashboardReloadsOnChange(t *testing.T) {
	f := newFixture(t)
	_ = f.session.SignIn("alice")
	if err := f.session.Mount(KindDashboard); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := f.session.Wait(waitCtx(t), KindDashboard); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	p, ok := f.session.Dashboard()
	if !ok || p.Value.Stats.Total != 0 {
		t.Fatalf("initial dashboard=%+v ok=%v", p.Value.Stats, ok)
	}

	insert(t, f.store, "alice", schema.KindInternship, true)

	eventually(t, func() bool {
		p, ok := f.session.Dashboard()
		return ok && p.Value.Stats.Total == 1
	})
	p, _ = f.session.Dashboard()
	if st := p.Value.Stats; st.Internships != 1 || st.Verified != 0 || st.Courses != 0 {
		t.Fatalf("stats=%+v", p.Value.Stats)
	}
	if len(p.Value.Integrations) != 3 {
		t.Fatalf("integrations=%d, want 3 fixed platforms", len(p.Value.Integrations))
	}
}

func TestHiddenAchievementDashboardVsResume(t *testing.T) {
	f := newFixture(t)
	_ = f.session.SignIn("alice")
	insert(t, f.store, "alice", schema.KindProject, true)
	insert(t, f.store, "alice", schema.KindProject, false)

	for _, k := range []Kind{KindDashboard, KindResume} {
		if err := f.session.Mount(k); err != nil {
			t.Fatalf("Mount %s: %v", k, err)
		}
		if err := f.session.Wait(waitCtx(t), k); err != nil {
			t.Fatalf("Wait %s: %v", k, err)
		}
	}
	d, _ := f.session.Dashboard()
	r, _ := f.session.Resume()
	if d.Value.Stats.Total != 2 || len(d.Value.Achievements) != 2 {
		t.Fatalf("dashboard total=%d, want 2", d.Value.Stats.Total)
	}
	if n := aggregate.CountEntries(r.Value.Sections); n != 1 {
		t.Fatalf("resume entries=%d, want 1", n)
	}
}

func TestUserSwitchDoesNotLeak(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	var updates []Update
	f.session.OnPublish(func(u Update) {
		mu.Lock()
		updates = append(updates, u)
		mu.Unlock()
	})

	_ = f.session.SignIn("alice")
	_ = f.session.Mount(KindDashboard)
	_ = f.session.Mount(KindResume)
	if err := f.session.Wait(waitCtx(t), KindDashboard); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if err := f.session.SignIn("bob"); err != nil {
		t.Fatalf("SignIn bob: %v", err)
	}
	if got := f.session.Mounted(); len(got) != 2 {
		t.Fatalf("mounted=%v, want dashboard and resume remounted", got)
	}
	if f.subs.Active() != 2 {
		t.Fatalf("active subscriptions=%d, want 2 (bob only)", f.subs.Active())
	}
	_ = f.session.Wait(waitCtx(t), KindDashboard)
	_ = f.session.Wait(waitCtx(t), KindResume)

	mu.Lock()
	updates = nil
	mu.Unlock()

	insert(t, f.store, "alice", schema.KindInternship, true)
	time.Sleep(100 * time.Millisecond)

	d, _ := f.session.Dashboard()
	if d.Value.Stats.Total != 0 {
		t.Fatalf("bob sees alice's data: %+v", d.Value.Stats)
	}
	mu.Lock()
	defer mu.Unlock()
	for _, u := range updates {
		if u.Owner != "bob" {
			t.Fatalf("update for %s delivered after switch", u.Owner)
		}
	}
	if len(updates) != 0 {
		t.Fatalf("alice's change reloaded bob's views: %+v", updates)
	}
}

func TestSignOutClosesEverything(t *testing.T) {
	f := newFixture(t)
	_ = f.session.SignIn("alice")
	for _, k := range AllKinds() {
		_ = f.session.Mount(k)
	}
	f.session.SignOut()

	if f.session.CurrentUser() != "" || len(f.session.Mounted()) != 0 {
		t.Fatalf("session not cleared")
	}
	if f.subs.Active() != 0 {
		t.Fatalf("active subscriptions=%d, want 0", f.subs.Active())
	}
	eventually(t, func() bool { return f.hub.Len() == 0 })
}

func TestDegradedViewStillLoadsOnce(t *testing.T) {
	db := testutil.OpenTestDB(t)
	st := repository.NewStore(db, eventbus.NewHub())
	sess := NewSession(st, subscription.NewManager(failingFeed{}, nil), Options{})
	defer sess.Close()

	insert(t, st, "alice", schema.KindCourse, true)
	_ = sess.SignIn("alice")
	if err := sess.Mount(KindProfile); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if err := sess.Wait(waitCtx(t), KindProfile); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !sess.Degraded(KindProfile) {
		t.Fatalf("expected degraded view")
	}
	p, ok := sess.Profile()
	if !ok || p.Value.SummaryInput.ExperiencePhrase != "various domains" {
		t.Fatalf("profile view=%+v ok=%v", p.Value, ok)
	}
}

func TestNotifyMutationIgnoresOtherOwners(t *testing.T) {
	db := testutil.OpenTestDB(t)
	st := repository.NewStore(db, nil)
	sess := NewSession(st, nil, Options{})
	defer sess.Close()

	_ = sess.SignIn("alice")
	_ = sess.Mount(KindResume)
	_ = sess.Wait(waitCtx(t), KindResume)
	before, _ := sess.Resume()

	sess.NotifyMutation("mallory", schema.EntityAchievements)
	sess.NotifyMutation("alice", schema.EntityIntegrations)
	_ = sess.Wait(waitCtx(t), KindResume)
	after, _ := sess.Resume()
	if after.Version != before.Version {
		t.Fatalf("version changed %d -> %d on unrelated notify", before.Version, after.Version)
	}

	sess.NotifyMutation("alice", schema.EntityProfiles)
	_ = sess.Wait(waitCtx(t), KindResume)
	after, _ = sess.Resume()
	if after.Version != before.Version+1 {
		t.Fatalf("version=%d, want %d", after.Version, before.Version+1)
	}
}

func TestProfileSummaryFollowsInsertionOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, org := range []string{"Acme", "Globex"} {
		start := schema.NewDate(2021+i, time.June, 1)
		err := f.store.InsertAchievement(ctx, &schema.Achievement{
			UserID:             "alice",
			Type:               schema.KindInternship,
			Title:              "Intern",
			Organization:       org,
			StartDate:          &start,
			VerificationStatus: schema.VerificationUnverified,
			IsVisible:          true,
			CreatedAt:          base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", org, err)
		}
	}

	pv, err := LoadProfile(ctx, f.store, "alice")
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if want := "Intern at Acme, Intern at Globex"; pv.SummaryInput.ExperiencePhrase != want {
		t.Fatalf("experience=%q, want %q", pv.SummaryInput.ExperiencePhrase, want)
	}
}
