package archive

import (
	"fmt"

	"cytosched/internal/schedule"
	logx "cytosched/pkg/logx"
)

// Archiver applies the eligibility policy and moves records into the
// archive store. It never mutates its input slice.
type Archiver struct {
	store *Store
	log   logx.Logger
}

func NewArchiver(store *Store, log logx.Logger) *Archiver {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Archiver{store: store, log: log}
}

// Run archives every eligible record and returns the archived count
// plus the records that stay live. On save failure nothing is archived
// and the input is returned untouched, so the live list is not trimmed
// against data that was never persisted.
func (a *Archiver) Run(records []schedule.Record, today schedule.Date, thresholdDays int) (int, []schedule.Record, error) {
	eligible, retained := Partition(records, today, thresholdDays)
	if len(eligible) == 0 {
		return 0, records, nil
	}
	if err := a.append(eligible, today, thresholdDays); err != nil {
		return 0, records, err
	}
	a.log.Info("experiments archived",
		logx.Int("archived", len(eligible)),
		logx.Int("retained", len(retained)),
		logx.Int("threshold_days", thresholdDays),
	)
	return len(eligible), retained, nil
}

// ArchiveByExpID force-archives every ended record carrying the
// experiment number, regardless of age.
func (a *Archiver) ArchiveByExpID(records []schedule.Record, today schedule.Date, expID int) (int, []schedule.Record, error) {
	return a.forceArchive(records, today, func(rec schedule.Record) bool {
		return rec.ExpID == expID
	})
}

// ArchiveBySampleBatch force-archives every ended record of the sample batch.
func (a *Archiver) ArchiveBySampleBatch(records []schedule.Record, today schedule.Date, batch string) (int, []schedule.Record, error) {
	return a.forceArchive(records, today, func(rec schedule.Record) bool {
		return rec.SampleBatch == batch
	})
}

// forceArchive is the zero-threshold form of the same policy: selected
// records that have already ended move to the archive, everything else
// stays live in its original order.
func (a *Archiver) forceArchive(records []schedule.Record, today schedule.Date, match func(schedule.Record) bool) (int, []schedule.Record, error) {
	var eligible, retained []schedule.Record
	for _, rec := range records {
		if match(rec) && Eligible(rec, today, 0) {
			eligible = append(eligible, rec)
		} else {
			retained = append(retained, rec)
		}
	}
	if len(eligible) == 0 {
		return 0, records, nil
	}
	if err := a.append(eligible, today, 0); err != nil {
		return 0, records, err
	}
	a.log.Info("experiments force-archived", logx.Int("archived", len(eligible)))
	return len(eligible), retained, nil
}

func (a *Archiver) append(eligible []schedule.Record, today schedule.Date, thresholdDays int) error {
	archived := a.store.Load()
	reason := fmt.Sprintf("end date exceeded %d days", thresholdDays)
	for _, rec := range eligible {
		archived = append(archived, Record{
			Record:        rec,
			ArchivedAt:    today,
			ArchiveReason: reason,
		})
	}
	if err := a.store.Save(archived); err != nil {
		a.log.Error("archive save failed", logx.Err(err), logx.Int("eligible", len(eligible)))
		return err
	}
	return nil
}

// Restore returns the archived records matching the filter.
func (a *Archiver) Restore(f Filter) []Record {
	var out []Record
	for _, rec := range a.store.Load() {
		if f.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Stats summarizes the archive for operational surfaces.
type Stats struct {
	TotalArchived   int            `json:"total_archived"`
	ArchiveSizeMB   float64        `json:"archive_size_mb"`
	YearCounts      map[string]int `json:"year_distribution"`
	LastArchiveDate string         `json:"last_archive_date"`
}

func (a *Archiver) Stats() Stats {
	records := a.store.Load()

	st := Stats{
		TotalArchived: len(records),
		YearCounts:    map[string]int{},
	}
	if info, err := a.store.fileInfo(); err == nil {
		st.ArchiveSizeMB = float64(info.Size()) / (1024 * 1024)
	}
	for _, rec := range records {
		st.YearCounts[rec.StartDate.String()[:4]]++
		if at := rec.ArchivedAt.String(); at > st.LastArchiveDate {
			st.LastArchiveDate = at
		}
	}
	if st.TotalArchived == 0 {
		st.LastArchiveDate = ""
	}
	return st
}
