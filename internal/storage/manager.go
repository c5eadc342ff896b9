package storage

import (
	"context"
	"fmt"
	"sync"

	"cytosched/internal/schedule"
	logx "cytosched/pkg/logx"
)

// Manager serializes all mutations of the live experiment list.
//
// The underlying store has no fine-grained locking, so every mutation is
// a load-modify-save transaction executed under one mutex: a single
// writer at a time, whole-list replacement, no in-place edits.
type Manager struct {
	mu  sync.Mutex
	st  Store
	log logx.Logger
}

func NewManager(st Store, log logx.Logger) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{st: st, log: log}
}

// Records returns the current live list.
func (m *Manager) Records(ctx context.Context) ([]schedule.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Load(ctx)
}

// Mutate runs fn inside the critical section: load, transform, save.
// If fn or the save fails, nothing is persisted.
func (m *Manager) Mutate(ctx context.Context, fn func(records []schedule.Record) ([]schedule.Record, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	records, err := m.st.Load(ctx)
	if err != nil {
		return err
	}
	next, err := fn(records)
	if err != nil {
		return err
	}
	return m.st.Save(ctx, next)
}

// Add validates and appends one record.
func (m *Manager) Add(ctx context.Context, rec schedule.Record, allowDuplicateID bool) error {
	return m.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		if err := schedule.ValidateExpID(rec.ExpID, records, allowDuplicateID); err != nil {
			return nil, err
		}
		return append(records, rec), nil
	})
}

// Update replaces the record identified by (expID, sampleBatch) with a
// freshly computed one. Edits are whole-record replacements.
func (m *Manager) Update(ctx context.Context, expID int, sampleBatch string, next schedule.Record) error {
	return m.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		for i, rec := range records {
			if rec.ExpID == expID && rec.SampleBatch == sampleBatch {
				next.ExpID = expID
				records[i] = next
				return records, nil
			}
		}
		return nil, fmt.Errorf("%w: experiment %d batch %q not found", schedule.ErrValidation, expID, sampleBatch)
	})
}

// Delete removes the record identified by (expID, sampleBatch).
func (m *Manager) Delete(ctx context.Context, expID int, sampleBatch string) error {
	return m.Mutate(ctx, func(records []schedule.Record) ([]schedule.Record, error) {
		for i, rec := range records {
			if rec.ExpID == expID && rec.SampleBatch == sampleBatch {
				return append(records[:i], records[i+1:]...), nil
			}
		}
		return nil, fmt.Errorf("%w: experiment %d batch %q not found", schedule.ErrValidation, expID, sampleBatch)
	})
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.Close()
}
