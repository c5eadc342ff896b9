package schedule

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"cytosched/internal/catalog"
	"cytosched/internal/workday"
)

// fakeOracle treats weekends as rest days plus an explicit off-day set,
// so tests can force holiday runs without touching the real table.
type fakeOracle struct {
	off map[string]string
}

func (f fakeOracle) IsWorkday(d time.Time) bool {
	if _, ok := f.off[d.Format("2006-01-02")]; ok {
		return false
	}
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (f fakeOracle) HolidayName(d time.Time) (string, bool) {
	name, ok := f.off[d.Format("2006-01-02")]
	return name, ok
}

func newCalc(t *testing.T, off map[string]string) *Calculator {
	t.Helper()
	return NewCalculator(catalog.New(), fakeOracle{off: off})
}

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestComputeNonAdjustableMethod(t *testing.T) {
	t.Parallel()
	calc := newCalc(t, nil)

	// Monday start; day 6 (06-08) and day 9 land per template even
	// though 06-08 is a Saturday: the method never adjusts.
	rec, err := calc.Compute(Input{
		ExpID:       1,
		MethodName:  "7天计数增值度法",
		SampleBatch: "B2024-001",
		StartDate:   mustDate(t, "2024-06-03"),
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	want := []string{"2024-06-03", "2024-06-04", "2024-06-06", "2024-06-08", "2024-06-11"}
	if len(rec.Steps) != len(want) {
		t.Fatalf("got %d steps, want %d", len(rec.Steps), len(want))
	}
	for i, w := range want {
		s := rec.Steps[i]
		if s.DateStr != w {
			t.Fatalf("step %d scheduled %s, want %s", i, s.DateStr, w)
		}
		if s.WasAdjusted {
			t.Fatalf("step %d adjusted, want no adjustment", i)
		}
		if !s.ScheduledDate.Equal(s.OriginalDate) {
			t.Fatalf("step %d scheduled != original", i)
		}
	}
	if rec.EndDate.String() != "2024-06-11" {
		t.Fatalf("EndDate = %s, want 2024-06-11", rec.EndDate)
	}
	if rec.TotalDays != 9 {
		t.Fatalf("TotalDays = %d, want 9", rec.TotalDays)
	}
}

func TestComputeAdjustToggleOff(t *testing.T) {
	t.Parallel()
	calc := newCalc(t, nil)

	// 日本药局方 is adjustable, but the global toggle wins.
	rec, err := calc.Compute(Input{
		MethodName:  "日本药局方",
		SampleBatch: "B2024-002",
		StartDate:   mustDate(t, "2024-06-07"),
	}, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	last := rec.Steps[len(rec.Steps)-1]
	if last.DateStr != "2024-06-15" {
		t.Fatalf("count step = %s, want nominal 2024-06-15", last.DateStr)
	}
	if last.WasAdjusted {
		t.Fatal("no step may adjust with the toggle off")
	}
}

func TestComputeFlexibleWindow(t *testing.T) {
	t.Parallel()
	calc := newCalc(t, nil)

	// Friday start: day 9 = 06-15 (Sat), day 10 = 06-16 (Sun),
	// day 11 = 06-17 (Mon) is the first workday in the window.
	rec, err := calc.Compute(Input{
		MethodName:  "日本药局方",
		SampleBatch: "B2024-003",
		StartDate:   mustDate(t, "2024-06-07"),
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	last := rec.Steps[len(rec.Steps)-1]
	if last.DateStr != "2024-06-17" {
		t.Fatalf("count step = %s, want 2024-06-17", last.DateStr)
	}
	if !last.WasAdjusted {
		t.Fatal("count step must report adjustment")
	}
	if last.OriginalDate.String() != "2024-06-15" {
		t.Fatalf("OriginalDate = %s, want 2024-06-15", last.OriginalDate)
	}
	if last.RelativeDay != 11 {
		t.Fatalf("RelativeDay = %d, want 11", last.RelativeDay)
	}
	if rec.EndDate.String() != "2024-06-17" {
		t.Fatalf("EndDate = %s, want 2024-06-17", rec.EndDate)
	}
}

func TestComputeFlexibleWindowFallback(t *testing.T) {
	t.Parallel()
	// Force the whole window onto rest days: 06-17..06-19 declared off,
	// 06-15/16 are a weekend anyway.
	calc := newCalc(t, map[string]string{
		"2024-06-17": "假日",
		"2024-06-18": "假日",
		"2024-06-19": "假日",
	})

	rec, err := calc.Compute(Input{
		MethodName:  "日本药局方",
		SampleBatch: "B2024-004",
		StartDate:   mustDate(t, "2024-06-07"),
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	// No workday in [9,10,11]: the earliest offset stands so the step is
	// always scheduled.
	last := rec.Steps[len(rec.Steps)-1]
	if last.DateStr != "2024-06-15" {
		t.Fatalf("count step = %s, want fallback 2024-06-15", last.DateStr)
	}
	if last.IsWorkday {
		t.Fatal("fallback date must report non-workday")
	}
	if last.WasAdjusted {
		t.Fatal("fallback lands on the nominal date; no adjustment recorded")
	}
}

func TestComputeUnknownMethod(t *testing.T) {
	t.Parallel()
	calc := newCalc(t, nil)
	_, err := calc.Compute(Input{MethodName: "nope", StartDate: mustDate(t, "2024-06-03")}, true)
	if !errors.Is(err, catalog.ErrUnknownMethod) {
		t.Fatalf("expected ErrUnknownMethod, got %v", err)
	}
}

func TestComputeEndDateIsMax(t *testing.T) {
	t.Parallel()
	calc := newCalc(t, nil)

	for _, name := range catalog.New().Names() {
		rec, err := calc.Compute(Input{
			MethodName:  name,
			SampleBatch: "B",
			StartDate:   mustDate(t, "2024-06-07"),
		}, true)
		if err != nil {
			t.Fatalf("Compute(%q): %v", name, err)
		}
		max := rec.Steps[0].ScheduledDate
		for _, s := range rec.Steps {
			if s.ScheduledDate.After(max) {
				max = s.ScheduledDate
			}
		}
		if !rec.EndDate.Equal(max) {
			t.Fatalf("%q: EndDate = %s, max step = %s", name, rec.EndDate, max)
		}
		if got := rec.StartDate.DaysUntil(rec.EndDate) + 1; got != rec.TotalDays {
			t.Fatalf("%q: TotalDays = %d, want %d", name, rec.TotalDays, got)
		}
		if rec.EndDate.Before(rec.StartDate) {
			t.Fatalf("%q: end before start", name)
		}
	}
}

func TestComputeAgainstRealCalendar(t *testing.T) {
	t.Parallel()
	cal, err := workday.NewCalendar()
	if err != nil {
		t.Fatalf("NewCalendar: %v", err)
	}
	calc := NewCalculator(catalog.New(), cal)

	rec, err := calc.Compute(Input{
		MethodName:  "7天计数增值度法",
		SampleBatch: "B2024-005",
		StartDate:   mustDate(t, "2024-06-03"),
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if rec.EndDate.String() != "2024-06-11" || rec.TotalDays != 9 {
		t.Fatalf("got end %s / %d days, want 2024-06-11 / 9", rec.EndDate, rec.TotalDays)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()
	calc := newCalc(t, nil)

	rec, err := calc.Compute(Input{
		ExpID:       7,
		MethodName:  "日本药局方",
		SampleBatch: "B2024-006",
		Notes:       "留样复测",
		StartDate:   mustDate(t, "2024-06-07"),
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(rec, back) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", back, rec)
	}
}

func TestValidateInput(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      Input
		wantErr bool
	}{
		{name: "ok", in: Input{SampleBatch: "B1", StartDate: mustDate(t, "2024-06-03")}},
		{name: "zero start date", in: Input{SampleBatch: "B1"}, wantErr: true},
		{name: "blank batch", in: Input{SampleBatch: "  ", StartDate: mustDate(t, "2024-06-03")}, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateInput(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateExpID(t *testing.T) {
	t.Parallel()
	existing := []Record{{ExpID: 3}}

	if err := ValidateExpID(0, existing, false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for non-positive id, got %v", err)
	}
	if err := ValidateExpID(3, existing, false); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for duplicate id, got %v", err)
	}
	// Duplicates are how batches share a logical experiment number.
	if err := ValidateExpID(3, existing, true); err != nil {
		t.Fatalf("duplicate with allowDuplicate: %v", err)
	}
	if err := ValidateExpID(4, existing, false); err != nil {
		t.Fatalf("fresh id: %v", err)
	}
}

func TestDateHelpers(t *testing.T) {
	t.Parallel()
	d := mustDate(t, "2024-06-01")
	if got := d.AddDays(30).String(); got != "2024-07-01" {
		t.Fatalf("AddDays = %s, want 2024-07-01", got)
	}
	if got := mustDate(t, "2023-11-01").DaysUntil(d); got != 213 {
		t.Fatalf("DaysUntil = %d, want 213", got)
	}
	if got := mustDate(t, "2024-01-01").DaysUntil(d); got != 152 {
		t.Fatalf("DaysUntil = %d, want 152", got)
	}
}
