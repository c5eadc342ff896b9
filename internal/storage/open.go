package storage

import (
	"context"
	"errors"
	"strings"

	"cytosched/internal/schedule"
	logx "cytosched/pkg/logx"
)

// Store is the persistence API for the live experiment list.
//
// Load and Save move the whole list: records are replaced wholesale,
// never mutated in place.
type Store interface {
	Load(ctx context.Context) ([]schedule.Record, error)
	Save(ctx context.Context, records []schedule.Record) error
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
