package aggregate

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/yuqie6/Folio/internal/policy"
	"github.com/yuqie6/Folio/internal/schema"
)

func date(y int, m time.Month, d int) *schema.Date {
	v := schema.NewDate(y, m, d)
	return &v
}

func sample() []schema.Achievement {
	return []schema.Achievement{
		{ID: "i1", Type: schema.KindInternship, Title: "Backend Intern", Organization: "Acme", StartDate: date(2023, 6, 1), IsVisible: true, Skills: schema.JSONArray{"Go", "SQL"}, VerificationStatus: schema.VerificationVerified},
		{ID: "i2", Type: schema.KindInternship, Title: "SRE Intern", Organization: "Globex", IsVisible: true, Skills: schema.JSONArray{"Go", "Kubernetes"}},
		{ID: "e1", Type: schema.KindEducation, Title: "BSc", Organization: "MIT", StartDate: date(2019, 9, 1), EndDate: date(2023, 6, 1), IsVisible: true},
		{ID: "p1", Type: schema.KindProject, Title: "Folio", Organization: "self", IsVisible: false, Skills: schema.JSONArray{"Rust"}},
		{ID: "c1", Type: schema.KindCourse, Title: "Distributed Systems", Organization: "Coursera", EndDate: date(2022, 3, 1), IsVisible: true},
		{ID: "z1", Type: schema.KindCertification, Title: "CKA", Organization: "CNCF", EndDate: date(2021, 1, 1), IsVisible: true, VerificationStatus: schema.VerificationPending},
		{ID: "h1", Type: schema.KindHackathon, Title: "HackMIT", Organization: "MIT", IsVisible: true},
	}
}

func sectionIDs(sections []Section, id policy.SectionID) []string {
	for _, s := range sections {
		if s.ID != id {
			continue
		}
		out := make([]string, 0, len(s.Entries))
		for _, e := range s.Entries {
			out = append(out, e.Achievement.ID)
		}
		return out
	}
	return nil
}

func TestSingleInternshipScenario(t *testing.T) {
	items := []schema.Achievement{{
		ID: "a", Type: schema.KindInternship, Title: "Intern", Organization: "Acme",
		StartDate: date(2023, 6, 1), IsVisible: true, VerificationStatus: schema.VerificationUnverified,
	}}

	st := ComputeStats(items)
	if st.Total != 1 || st.Verified != 0 || st.Internships != 1 || st.Courses != 0 {
		t.Fatalf("stats=%+v, want {1 0 1 0}", st)
	}

	sections := GroupForResume(items)
	if len(sections) != 5 {
		t.Fatalf("sections=%d, want 5", len(sections))
	}
	exp := sections[1]
	if exp.ID != policy.SectionExperience || len(exp.Entries) != 1 {
		t.Fatalf("experience=%+v", exp)
	}
	if exp.Entries[0].Period != "Jun 2023 - Present" {
		t.Fatalf("period=%q, want %q", exp.Entries[0].Period, "Jun 2023 - Present")
	}
	for i, s := range sections {
		if i != 1 && !s.Empty() {
			t.Fatalf("section %s should be empty", s.ID)
		}
	}
}

func TestHiddenExcludedFromResumeButCounted(t *testing.T) {
	items := []schema.Achievement{
		{ID: "a", Type: schema.KindProject, IsVisible: true},
		{ID: "b", Type: schema.KindProject, IsVisible: false},
	}
	if got := CountEntries(GroupForResume(items)); got != 1 {
		t.Fatalf("resume entries=%d, want 1", got)
	}
	if got := ComputeStats(items).Total; got != 2 {
		t.Fatalf("dashboard total=%d, want 2", got)
	}
}

func TestGroupForResumePartitionIsComplete(t *testing.T) {
	items := sample()
	sections := GroupForResume(items)

	seen := make(map[string]int)
	for _, s := range sections {
		for _, e := range s.Entries {
			seen[e.Achievement.ID]++
			if policy.SectionOf(e.Achievement.Type) != s.ID {
				t.Fatalf("%s placed in %s", e.Achievement.ID, s.ID)
			}
		}
	}
	for _, a := range items {
		n := seen[a.ID]
		if a.IsVisible && n != 1 {
			t.Fatalf("visible %s appears %d times, want 1", a.ID, n)
		}
		if !a.IsVisible && n != 0 {
			t.Fatalf("hidden %s appears in resume", a.ID)
		}
	}
}

func TestGroupForResumeOrdering(t *testing.T) {
	items := append(sample(),
		schema.Achievement{ID: "i3", Type: schema.KindInternship, StartDate: date(2024, 1, 1), IsVisible: true},
	)
	sections := GroupForResume(items)

	if got := sectionIDs(sections, policy.SectionExperience); !reflect.DeepEqual(got, []string{"i3", "i1", "i2"}) {
		t.Fatalf("experience order=%v", got)
	}
	if got := sectionIDs(sections, policy.SectionCredentials); !reflect.DeepEqual(got, []string{"z1", "c1"}) {
		t.Fatalf("credentials order=%v, want certifications first", got)
	}
	if sections[3].Entries[1].Period != "Mar 2022" {
		t.Fatalf("course period=%q, want Mar 2022", sections[3].Entries[1].Period)
	}
	if sections[4].Entries[0].Period != "" {
		t.Fatalf("hackathon period=%q, want empty", sections[4].Entries[0].Period)
	}
}

func TestAggregationIsIdempotentAndPure(t *testing.T) {
	items := sample()
	before := schema.CloneAchievements(items)

	a := GroupForResume(items)
	b := GroupForResume(items)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("GroupForResume not idempotent")
	}
	if !reflect.DeepEqual(ComputeStats(items), ComputeStats(items)) {
		t.Fatalf("ComputeStats not idempotent")
	}
	if !reflect.DeepEqual(AssembleSummaryInput(items), AssembleSummaryInput(items)) {
		t.Fatalf("AssembleSummaryInput not idempotent")
	}
	if !reflect.DeepEqual(items, before) {
		t.Fatalf("input mutated")
	}

	a[1].Entries[0].Achievement.Skills[0] = "COBOL"
	if items[0].Skills[0] != "Go" {
		t.Fatalf("section entries share memory with input")
	}
}

func TestComputeStatsCountsEverything(t *testing.T) {
	st := ComputeStats(sample())
	if st.Total != 7 || st.Verified != 1 || st.Internships != 2 || st.Courses != 1 {
		t.Fatalf("stats=%+v", st)
	}
	sum := 0
	for _, n := range st.ByKind {
		sum += n
	}
	if sum != st.Total {
		t.Fatalf("by_kind sum=%d, want %d", sum, st.Total)
	}
	if empty := ComputeStats(nil); empty.Total != 0 || empty.ByKind[schema.KindProject] != 0 {
		t.Fatalf("empty stats=%+v", empty)
	}
}

func TestAssembleSummaryInput(t *testing.T) {
	in := AssembleSummaryInput(sample())
	if in.ExperiencePhrase != "Backend Intern at Acme, SRE Intern at Globex" {
		t.Fatalf("experience=%q", in.ExperiencePhrase)
	}
	if !reflect.DeepEqual(in.TopSkills, []string{"Go", "SQL", "Kubernetes"}) {
		t.Fatalf("skills=%v (hidden project skills must be excluded)", in.TopSkills)
	}

	empty := AssembleSummaryInput(nil)
	if empty.ExperiencePhrase != "various domains" || empty.SkillsPhrase != "multiple technologies" {
		t.Fatalf("fallbacks=%+v", empty)
	}
}

func TestAssembleSummaryInputCapsSkills(t *testing.T) {
	a := schema.Achievement{Type: schema.KindProject, IsVisible: true}
	for _, s := range strings.Split("a,b,c,d,e,f,g,h,i,j", ",") {
		a.Skills = append(a.Skills, s)
	}
	in := AssembleSummaryInput([]schema.Achievement{a})
	if len(in.TopSkills) != 8 || in.TopSkills[7] != "h" {
		t.Fatalf("skills=%v, want first 8", in.TopSkills)
	}
}

func TestSummaryUsesResumeVisibility(t *testing.T) {
	items := []schema.Achievement{
		{ID: "w1", Type: "workshop", Title: "FP Workshop", Organization: "Lambda", IsVisible: true, Skills: schema.JSONArray{"Haskell"}},
	}
	if n := CountEntries(GroupForResume(items)); n != 0 {
		t.Fatalf("resume entries=%d, want 0 for unknown kind", n)
	}
	in := AssembleSummaryInput(items)
	if len(in.TopSkills) != 0 || in.SkillsPhrase != "multiple technologies" {
		t.Fatalf("summary skills=%v, want none from entries the resume excludes", in.TopSkills)
	}
}

func TestRenderSummary(t *testing.T) {
	got := RenderSummary("Ada", "", SummaryInput{ExperiencePhrase: "various domains", SkillsPhrase: "Go, SQL"})
	want := "Ada is a professional with experience in various domains. Skilled in Go, SQL, with a proven track record of delivering impactful results. Passionate about leveraging technology to solve complex problems and drive innovation."
	if got != want {
		t.Fatalf("summary=%q", got)
	}
}

func TestFormatDateRange(t *testing.T) {
	cases := []struct {
		start, end *schema.Date
		want       string
	}{
		{date(2023, 6, 1), nil, "Jun 2023 - Present"},
		{date(2019, 9, 1), date(2023, 6, 30), "Sep 2019 - Jun 2023"},
		{nil, nil, "Present"},
		{nil, date(2020, 1, 1), "Jan 2020"},
	}
	for _, tc := range cases {
		if got := FormatDateRange(tc.start, tc.end); got != tc.want {
			t.Errorf("FormatDateRange=%q, want %q", got, tc.want)
		}
	}
}
