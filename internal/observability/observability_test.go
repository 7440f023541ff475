package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yuqie6/Folio/internal/eventbus"
	"github.com/yuqie6/Folio/internal/schema"
	"github.com/yuqie6/Folio/internal/viewstate"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestMetricsExposeReconcileAndSubscriptionCounters(t *testing.T) {
	m := NewMetrics()
	m.LoadFinished("dashboard", "ok", 20*time.Millisecond)
	m.LoadFinished("dashboard", "error", time.Millisecond)
	m.Coalesced("resume")
	m.Stale("resume")
	m.SubscriptionOpened()
	m.SubscriptionOpened()
	m.SubscriptionClosed()
	m.SubscriptionFailed()

	hub := eventbus.NewHub()
	m.ObserveHub(hub)
	hub.Publish(eventbus.Event{Entity: schema.EntityAchievements, Owner: "u1"})

	out := scrape(t, m)
	for _, want := range []string{
		`folio_reconcile_loads_total{result="ok",view="dashboard"} 1`,
		`folio_reconcile_loads_total{result="error",view="dashboard"} 1`,
		`folio_reconcile_coalesced_total{view="resume"} 1`,
		`folio_reconcile_stale_total{view="resume"} 1`,
		`folio_subscriptions_active 1`,
		`folio_subscription_failures_total 1`,
		`folio_change_events_total{entity="achievements"} 1`,
		`folio_reconcile_load_seconds_count{view="dashboard"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q", want)
		}
	}
}

func TestInstrumentHandlerCollapsesIDs(t *testing.T) {
	m := NewMetrics()
	h := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/achievements/abc-123", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPatch, "/api/achievements/def-456", nil))

	out := scrape(t, m)
	if !strings.Contains(out, `folio_http_requests_total{method="PATCH",path="/api/achievements/:id",status="404"} 2`) {
		t.Fatalf("http metrics not collapsed:\n%s", out)
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/health":                         "/health",
		"/api/achievements":               "/api/achievements",
		"/api/achievements/x1/visibility": "/api/achievements/:id/visibility",
		"/api/resume/markdown":            "/api/resume/markdown",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q)=%q, want %q", in, got, want)
		}
	}
}

func TestBuildStatus(t *testing.T) {
	if _, err := BuildStatus(StatusSource{}, time.Now()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err=%v, want ErrNotReady", err)
	}
	sess := viewstate.NewSession(nil, nil, viewstate.Options{})
	defer sess.Close()
	st, err := BuildStatus(StatusSource{
		AppName:      "folio",
		Backend:      "sqlite",
		Session:      sess,
		Hub:          eventbus.NewHub(),
		TailerCursor: func() int64 { return 42 },
	}, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("BuildStatus: %v", err)
	}
	if st.App.UptimeSec < 59 || st.Storage.Backend != "sqlite" || st.Session.User != "" {
		t.Fatalf("status=%+v", st)
	}
	if !st.Sync.TailerEnabled || st.Sync.TailerLastSeq != 42 || len(st.Session.Views) != 0 {
		t.Fatalf("sync=%+v views=%v", st.Sync, st.Session.Views)
	}
}
