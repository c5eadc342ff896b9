package app

import (
	"context"

	"cytosched/internal/aggregate"
	"cytosched/internal/archive"
	"cytosched/internal/catalog"
	"cytosched/internal/config"
	"cytosched/internal/schedule"
	"cytosched/internal/storage"
	logx "cytosched/pkg/logx"
)

// Service bundles every schedule operation behind the storage manager's
// single-writer discipline. All mutations, including archive sweeps, go
// through load-modify-save transactions.
type Service struct {
	log      logx.Logger
	cfgm     *ConfigManager
	catalog  *catalog.Catalog
	calc     *schedule.Calculator
	store    *storage.Manager
	archiver *archive.Archiver
}

func NewService(log logx.Logger, cfgm *ConfigManager, cat *catalog.Catalog, calc *schedule.Calculator, store *storage.Manager, archiver *archive.Archiver) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log:      log,
		cfgm:     cfgm,
		catalog:  cat,
		calc:     calc,
		store:    store,
		archiver: archiver,
	}
}

func (s *Service) scheduling() config.SchedulingConfig {
	if cfg := s.cfgm.Get(); cfg != nil {
		return cfg.Scheduling
	}
	return config.SchedulingConfig{}
}

func (s *Service) archiveThreshold() int {
	if cfg := s.cfgm.Get(); cfg != nil && cfg.Archive.ThresholdDays > 0 {
		return cfg.Archive.ThresholdDays
	}
	return archive.DefaultThresholdDays
}

// Register computes a schedule for a new experiment and persists it.
// Malformed input is rejected up front; no partial record is created.
func (s *Service) Register(ctx context.Context, in schedule.Input) (schedule.Record, error) {
	if err := schedule.ValidateInput(in); err != nil {
		return schedule.Record{}, err
	}
	sch := s.scheduling()
	rec, err := s.calc.Compute(in, sch.AdjustWorkdays)
	if err != nil {
		return schedule.Record{}, err
	}
	if err := s.store.Add(ctx, rec, sch.AllowDuplicateExpID); err != nil {
		return schedule.Record{}, err
	}
	s.log.Info("experiment registered",
		logx.Int("exp_id", rec.ExpID),
		logx.String("method", rec.MethodName),
		logx.String("batch", rec.SampleBatch),
		logx.String("start", rec.StartDate.String()),
		logx.String("end", rec.EndDate.String()),
	)
	return rec, nil
}

// Reschedule recomputes the record identified by (expID, sampleBatch)
// from fresh inputs. The experiment number is kept; everything else is
// replaced wholesale.
func (s *Service) Reschedule(ctx context.Context, expID int, sampleBatch string, in schedule.Input) (schedule.Record, error) {
	in.ExpID = expID
	if err := schedule.ValidateInput(in); err != nil {
		return schedule.Record{}, err
	}
	rec, err := s.calc.Compute(in, s.scheduling().AdjustWorkdays)
	if err != nil {
		return schedule.Record{}, err
	}
	if err := s.store.Update(ctx, expID, sampleBatch, rec); err != nil {
		return schedule.Record{}, err
	}
	s.log.Info("experiment rescheduled",
		logx.Int("exp_id", expID),
		logx.String("batch", sampleBatch),
		logx.String("start", rec.StartDate.String()),
	)
	return rec, nil
}

// Remove deletes the record identified by (expID, sampleBatch).
func (s *Service) Remove(ctx context.Context, expID int, sampleBatch string) error {
	if err := s.store.Delete(ctx, expID, sampleBatch); err != nil {
		return err
	}
	s.log.Info("experiment removed", logx.Int("exp_id", expID), logx.String("batch", sampleBatch))
	return nil
}

// Records returns the live experiment list.
func (s *Service) Records(ctx context.Context) ([]schedule.Record, error) {
	return s.store.Records(ctx)
}

// Methods lists the catalog for presentation surfaces.
func (s *Service) Methods() []catalog.Summary { return s.catalog.Summaries() }

// TasksOn returns every scheduled step landing on one date.
func (s *Service) TasksOn(ctx context.Context, d schedule.Date) ([]aggregate.Task, error) {
	records, err := s.store.Records(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.OnDate(records, d), nil
}

// Upcoming returns the steps in [today, today+horizonDays].
func (s *Service) Upcoming(ctx context.Context, today schedule.Date, horizonDays int) ([]aggregate.Task, error) {
	records, err := s.store.Records(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.Upcoming(records, today, horizonDays), nil
}

// ArchiveEligible moves every record past the configured age threshold
// into cold storage and trims the live list accordingly. The trim only
// happens when the archive write succeeded.
func (s *Service) ArchiveEligible(ctx context.Context, today schedule.Date) (int, error) {
	threshold := s.archiveThreshold()
	var archived int
	err := s.store.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		n, retained, err := s.archiver.Run(records, today, threshold)
		if err != nil {
			return nil, err
		}
		archived = n
		return retained, nil
	})
	return archived, err
}

// ArchiveExperiment force-archives every ended record under the
// experiment number, regardless of age.
func (s *Service) ArchiveExperiment(ctx context.Context, today schedule.Date, expID int) (int, error) {
	var archived int
	err := s.store.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		n, retained, err := s.archiver.ArchiveByExpID(records, today, expID)
		if err != nil {
			return nil, err
		}
		archived = n
		return retained, nil
	})
	return archived, err
}

// ArchiveBatch force-archives every ended record of the sample batch.
func (s *Service) ArchiveBatch(ctx context.Context, today schedule.Date, batch string) (int, error) {
	var archived int
	err := s.store.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		n, retained, err := s.archiver.ArchiveBySampleBatch(records, today, batch)
		if err != nil {
			return nil, err
		}
		archived = n
		return retained, nil
	})
	return archived, err
}

// SearchArchive returns archived records matching the filter.
func (s *Service) SearchArchive(f archive.Filter) []archive.Record {
	return s.archiver.Restore(f)
}

// ArchiveStats summarizes cold storage.
func (s *Service) ArchiveStats() archive.Stats { return s.archiver.Stats() }
