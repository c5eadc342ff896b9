package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cytosched/internal/catalog"
	"cytosched/internal/schedule"
	logx "cytosched/pkg/logx"
)

type weekendOracle struct{}

func (weekendOracle) IsWorkday(d time.Time) bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (weekendOracle) HolidayName(time.Time) (string, bool) { return "", false }

func computeRecord(t *testing.T, expID int, batch string) schedule.Record {
	t.Helper()
	calc := schedule.NewCalculator(catalog.New(), weekendOracle{})
	start, err := schedule.ParseDate("2024-06-03")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	rec, err := calc.Compute(schedule.Input{
		ExpID:       expID,
		MethodName:  "USP显微镜法",
		SampleBatch: batch,
		StartDate:   start,
	}, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return rec
}

func newFileStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "experiments.json")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newFileStore(t)

	// Missing file is an empty list, not an error.
	records, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("fresh store holds %d records", len(records))
	}

	in := []schedule.Record{computeRecord(t, 1, "A"), computeRecord(t, 2, "B")}
	if err := st.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	out, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d records, want 2", len(out))
	}
	if out[0].SampleBatch != "A" || out[1].SampleBatch != "B" {
		t.Fatalf("order lost: %+v", out)
	}
	if !out[0].StartDate.Equal(in[0].StartDate) || out[0].Steps[1].DateStr != in[0].Steps[1].DateStr {
		t.Fatalf("round trip mismatch: %+v", out[0])
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "bolt", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestManagerAddValidatesExpID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(newFileStore(t), logx.Nop())

	if err := m.Add(ctx, computeRecord(t, 1, "A"), false); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Same id rejected unless duplicates are explicitly allowed.
	err := m.Add(ctx, computeRecord(t, 1, "B"), false)
	if !errors.Is(err, schedule.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if err := m.Add(ctx, computeRecord(t, 1, "B"), true); err != nil {
		t.Fatalf("Add duplicate-allowed: %v", err)
	}

	records, err := m.Records(ctx)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
}

func TestManagerUpdateAndDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(newFileStore(t), logx.Nop())

	if err := m.Add(ctx, computeRecord(t, 1, "A"), false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	next := computeRecord(t, 1, "A")
	next.Notes = "复测"
	if err := m.Update(ctx, 1, "A", next); err != nil {
		t.Fatalf("Update: %v", err)
	}
	records, _ := m.Records(ctx)
	if records[0].Notes != "复测" {
		t.Fatalf("update not persisted: %+v", records[0])
	}

	if err := m.Update(ctx, 9, "A", next); !errors.Is(err, schedule.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing record, got %v", err)
	}

	if err := m.Delete(ctx, 1, "A"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	records, _ = m.Records(ctx)
	if len(records) != 0 {
		t.Fatalf("delete left %d records", len(records))
	}
	if err := m.Delete(ctx, 1, "A"); !errors.Is(err, schedule.ErrValidation) {
		t.Fatalf("expected ErrValidation for double delete, got %v", err)
	}
}

func TestManagerMutateAbortLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := NewManager(newFileStore(t), logx.Nop())
	if err := m.Add(ctx, computeRecord(t, 1, "A"), false); err != nil {
		t.Fatalf("Add: %v", err)
	}

	boom := errors.New("boom")
	err := m.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	records, _ := m.Records(ctx)
	if len(records) != 1 {
		t.Fatalf("aborted mutation changed the store: %d records", len(records))
	}
}
