package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the experiment store.
//
// Driver values:
//   - "file": JSON file backend (atomic temp-then-rename saves)
//   - "sqlite": SQLite database file (optional build tag)
//
// If Driver is empty, the file driver is used.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}
