//go:build sqlite
// +build sqlite

package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cytosched/internal/schedule"
	logx "cytosched/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) Load(ctx context.Context) ([]schedule.Record, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT exp_id, method_name, sample_batch, start_date, end_date, notes, total_days, steps
		 FROM experiments ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []schedule.Record
	for rows.Next() {
		var (
			rec        schedule.Record
			start, end string
			stepsJSON  string
		)
		if err := rows.Scan(&rec.ExpID, &rec.MethodName, &rec.SampleBatch, &start, &end, &rec.Notes, &rec.TotalDays, &stepsJSON); err != nil {
			return nil, err
		}
		if rec.StartDate, err = schedule.ParseDate(start); err != nil {
			return nil, err
		}
		if rec.EndDate, err = schedule.ParseDate(end); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(stepsJSON), &rec.Steps); err != nil {
			return nil, fmt.Errorf("decode steps: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Save replaces the whole list in one transaction so a crash mid-save
// never leaves a partial list behind.
func (s *sqliteStore) Save(ctx context.Context, records []schedule.Record) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM experiments`); err != nil {
		return err
	}
	for _, rec := range records {
		stepsJSON, err := json.Marshal(rec.Steps)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO experiments(exp_id, method_name, sample_batch, start_date, end_date, notes, total_days, steps)
			 VALUES(?,?,?,?,?,?,?,?)`,
			rec.ExpID, rec.MethodName, rec.SampleBatch,
			rec.StartDate.String(), rec.EndDate.String(),
			rec.Notes, rec.TotalDays, string(stepsJSON),
		)
		if err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("experiments saved", logx.Int("records", len(records)))
	return nil
}
