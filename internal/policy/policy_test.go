package policy

import (
	"testing"
	"time"

	"github.com/yuqie6/Folio/internal/schema"
)

func date(y int, m time.Month, d int) *schema.Date {
	v := schema.NewDate(y, m, d)
	return &v
}

func TestEveryKindHasExactlyOneSection(t *testing.T) {
	for _, k := range schema.AllKinds() {
		hits := 0
		for _, s := range Sections() {
			for _, sk := range s.Kinds {
				if sk == k {
					hits++
					if SectionOf(k) != s.ID {
						t.Fatalf("SectionOf(%s)=%s, want %s", k, SectionOf(k), s.ID)
					}
				}
			}
		}
		if hits != 1 {
			t.Fatalf("kind %s appears in %d sections, want 1", k, hits)
		}
	}
}

func TestSectionsDisplayOrder(t *testing.T) {
	want := []SectionID{SectionEducation, SectionExperience, SectionProjects, SectionCredentials, SectionHackathons}
	got := Sections()
	if len(got) != len(want) {
		t.Fatalf("sections=%d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("sections[%d]=%s, want %s", i, got[i].ID, want[i])
		}
	}
	kinds := KindsIn(SectionCredentials)
	if len(kinds) != 2 || kinds[0] != schema.KindCertification || kinds[1] != schema.KindCourse {
		t.Fatalf("credential kinds=%v, want [certification course]", kinds)
	}
}

func TestSectionsReturnsCopy(t *testing.T) {
	s := Sections()
	s[0].Kinds[0] = schema.KindHackathon
	if Sections()[0].Kinds[0] != schema.KindEducation {
		t.Fatalf("Sections leaked internal slice")
	}
}

func TestSectionOfUnknownKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for unknown kind")
		}
	}()
	SectionOf(schema.Kind("volunteering"))
}

func TestIncludeInResume(t *testing.T) {
	cases := []struct {
		name string
		a    *schema.Achievement
		want bool
	}{
		{"nil", nil, false},
		{"hidden", &schema.Achievement{Type: schema.KindProject}, false},
		{"visible", &schema.Achievement{Type: schema.KindProject, IsVisible: true}, true},
		{"unknown kind", &schema.Achievement{Type: "other", IsVisible: true}, false},
	}
	for _, tc := range cases {
		if got := IncludeInResume(tc.a); got != tc.want {
			t.Errorf("%s: IncludeInResume=%v, want %v", tc.name, got, tc.want)
		}
	}
	if !CountsInDashboard(&schema.Achievement{IsVisible: false}) {
		t.Fatalf("hidden achievement must still count in dashboard")
	}
}

func TestSortByKindStartDescNullsLast(t *testing.T) {
	items := []schema.Achievement{
		{ID: "none", Type: schema.KindInternship},
		{ID: "2021", Type: schema.KindInternship, StartDate: date(2021, 1, 1)},
		{ID: "2023", Type: schema.KindInternship, StartDate: date(2023, 6, 1)},
	}
	SortByKind(schema.KindInternship, items)
	want := []string{"2023", "2021", "none"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("order[%d]=%s, want %s", i, items[i].ID, id)
		}
	}
}

func TestSortForSectionCredentialsByEnd(t *testing.T) {
	items := []schema.Achievement{
		{ID: "course-new", Type: schema.KindCourse, EndDate: date(2024, 2, 1)},
		{ID: "cert-old", Type: schema.KindCertification, StartDate: date(2024, 1, 1), EndDate: date(2020, 1, 1)},
		{ID: "cert-none", Type: schema.KindCertification, StartDate: date(2025, 1, 1)},
		{ID: "cert-new", Type: schema.KindCertification, EndDate: date(2022, 1, 1)},
	}
	got := SortForSection(SectionCredentials, items)
	want := []string{"cert-new", "cert-old", "cert-none", "course-new"}
	if len(got) != len(want) {
		t.Fatalf("len=%d, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("order[%d]=%s, want %s", i, got[i].ID, id)
		}
	}
}

func TestSortByKindIsStableForEqualDates(t *testing.T) {
	items := []schema.Achievement{
		{ID: "a", Type: schema.KindProject, StartDate: date(2022, 1, 1)},
		{ID: "b", Type: schema.KindProject, StartDate: date(2022, 1, 1)},
		{ID: "c", Type: schema.KindProject},
		{ID: "d", Type: schema.KindProject},
	}
	SortByKind(schema.KindProject, items)
	want := []string{"a", "b", "c", "d"}
	for i, id := range want {
		if items[i].ID != id {
			t.Fatalf("order[%d]=%s, want %s", i, items[i].ID, id)
		}
	}
}
