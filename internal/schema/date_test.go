package schema

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseDateAcceptsBothLayouts(t *testing.T) {
	d, err := ParseDate("2023-06-01")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if d.String() != "2023-06-01" {
		t.Fatalf("date=%s, want 2023-06-01", d)
	}

	d, err = ParseDate("2023-06-01T15:04:05+08:00")
	if err != nil {
		t.Fatalf("ParseDate rfc3339 error: %v", err)
	}
	if d.String() != "2023-06-01" {
		t.Fatalf("date=%s, want 2023-06-01", d)
	}

	if _, err := ParseDate("06/01/2023"); err == nil {
		t.Fatalf("expected error for unsupported layout")
	}
}

func TestParseDatePtrEmptyIsNil(t *testing.T) {
	d, err := ParseDatePtr("  ")
	if err != nil || d != nil {
		t.Fatalf("got=%v err=%v, want nil nil", d, err)
	}
}

func TestDateScanVariants(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, ""},
		{"2024-01-31", "2024-01-31"},
		{[]byte("2022-12-01"), "2022-12-01"},
		{time.Date(2021, 3, 4, 10, 0, 0, 0, time.UTC), "2021-03-04"},
	}
	for _, tc := range cases {
		var d Date
		if err := d.Scan(tc.in); err != nil {
			t.Fatalf("Scan(%v) error: %v", tc.in, err)
		}
		if d.String() != tc.want {
			t.Errorf("Scan(%v)=%q, want %q", tc.in, d.String(), tc.want)
		}
	}
}

func TestDateJSON(t *testing.T) {
	type wrap struct {
		Start *Date `json:"start"`
		End   *Date `json:"end"`
	}
	start := NewDate(2023, time.June, 1)
	b, err := json.Marshal(wrap{Start: &start})
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	if string(b) != `{"start":"2023-06-01","end":null}` {
		t.Fatalf("json=%s", b)
	}

	var got wrap
	if err := json.Unmarshal([]byte(`{"start":"2020-01-02","end":null}`), &got); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if got.Start == nil || got.Start.String() != "2020-01-02" || got.End != nil {
		t.Fatalf("got=%+v", got)
	}
}

func TestCompareDatesDescNilsLast(t *testing.T) {
	early := NewDate(2020, time.January, 1)
	late := NewDate(2023, time.January, 1)

	if CompareDatesDesc(&late, &early) >= 0 {
		t.Fatalf("later date should sort first")
	}
	if CompareDatesDesc(nil, &early) <= 0 {
		t.Fatalf("nil should sort after dated")
	}
	if CompareDatesDesc(&early, nil) >= 0 {
		t.Fatalf("dated should sort before nil")
	}
	if CompareDatesDesc(nil, &Date{}) != 0 {
		t.Fatalf("nil and zero should compare equal")
	}
}

func TestAchievementCloneIsIndependent(t *testing.T) {
	start := NewDate(2023, time.June, 1)
	a := Achievement{ID: "a1", Skills: JSONArray{"Go"}, StartDate: &start, Metadata: JSONMap{"k": "v"}}
	c := a.Clone()
	c.Skills[0] = "Rust"
	*c.StartDate = NewDate(1999, time.January, 1)
	c.Metadata["k"] = "x"

	if a.Skills[0] != "Go" || a.StartDate.String() != "2023-06-01" || a.Metadata["k"] != "v" {
		t.Fatalf("original mutated through clone: %+v", a)
	}
}
