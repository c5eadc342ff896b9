package archive

import (
	"cytosched/internal/schedule"
)

// DefaultThresholdDays is how long a finished experiment stays in the
// live list before becoming eligible for cold storage (about half a year).
const DefaultThresholdDays = 180

// Record is an archived experiment: the original record plus the
// archive stamp. Once archived, a record leaves the live list.
type Record struct {
	schedule.Record
	ArchivedAt    schedule.Date `json:"archived_at"`
	ArchiveReason string        `json:"archive_reason"`
}

// Eligible reports whether a record's end date lies strictly more than
// thresholdDays before today. A threshold of zero matches everything
// already ended, which is how forced archiving works.
func Eligible(rec schedule.Record, today schedule.Date, thresholdDays int) bool {
	return rec.EndDate.DaysUntil(today) > thresholdDays
}

// Partition splits records into (eligible, retained), keeping relative
// order inside each list. The two outputs always cover the input exactly.
func Partition(records []schedule.Record, today schedule.Date, thresholdDays int) (eligible, retained []schedule.Record) {
	for _, rec := range records {
		if Eligible(rec, today, thresholdDays) {
			eligible = append(eligible, rec)
		} else {
			retained = append(retained, rec)
		}
	}
	return eligible, retained
}

// Filter is the restore query: zero-valued fields are wildcards.
// The date range is an inclusive overlap test against [start, end].
type Filter struct {
	SampleBatch string
	MethodName  string
	RangeStart  schedule.Date
	RangeEnd    schedule.Date
}

func (f Filter) matches(rec Record) bool {
	if f.SampleBatch != "" && rec.SampleBatch != f.SampleBatch {
		return false
	}
	if f.MethodName != "" && rec.MethodName != f.MethodName {
		return false
	}
	if !f.RangeStart.IsZero() && !f.RangeEnd.IsZero() {
		if rec.StartDate.After(f.RangeEnd) || rec.EndDate.Before(f.RangeStart) {
			return false
		}
	}
	return true
}
