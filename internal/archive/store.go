package archive

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	logx "cytosched/pkg/logx"
)

// ErrArchiveIO marks an unreadable or unwritable archive store.
// Loads degrade to an empty archive instead; saves surface it so the
// caller never treats unsaved data as persisted.
var ErrArchiveIO = errors.New("archive store failure")

const archiveFileName = "archived_experiments.json.gz"

// Store persists archived records as gzip-compressed JSON.
type Store struct {
	dir  string
	path string
	log  logx.Logger
}

func NewStore(dir string, log logx.Logger) (*Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArchiveIO, err)
	}
	return &Store{dir: dir, path: filepath.Join(dir, archiveFileName), log: log}, nil
}

// Load reads the whole archive. A missing file is an empty archive.
// A corrupt file is quarantined and reading restarts from empty; the
// loss is logged, not propagated.
func (s *Store) Load() []Record {
	records, err := s.read()
	if err == nil {
		return records
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	s.log.Error("archive unreadable; quarantining", logx.String("path", s.path), logx.Err(err))
	s.quarantine()
	return nil
}

func (s *Store) read() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var records []Record
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) quarantine() {
	backup := filepath.Join(s.dir, fmt.Sprintf("corrupted_archive_%d.json.gz", time.Now().Unix()))
	if err := os.Rename(s.path, backup); err != nil {
		s.log.Error("archive quarantine failed", logx.String("path", s.path), logx.Err(err))
		return
	}
	s.log.Warn("corrupt archive moved aside", logx.String("backup", backup))
}

// Save writes the whole archive: temp file first, read back and count
// check, then atomic rename. On verification failure the existing
// archive is left untouched.
func (s *Store) Save(records []Record) error {
	tmp := filepath.Join(s.dir, fmt.Sprintf("temp_archive_%d.json.gz", time.Now().UnixNano()))

	if err := writeGzipJSON(tmp, records); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrArchiveIO, err)
	}

	n, err := countGzipJSON(tmp)
	if err != nil || n != len(records) {
		_ = os.Remove(tmp)
		if err == nil {
			err = fmt.Errorf("wrote %d records, read back %d", len(records), n)
		}
		return fmt.Errorf("%w: verify: %v", ErrArchiveIO, err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrArchiveIO, err)
	}
	s.log.Debug("archive saved", logx.Int("records", len(records)))
	return nil
}

func (s *Store) fileInfo() (os.FileInfo, error) {
	return os.Stat(s.path)
}

func writeGzipJSON(path string, records []Record) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(f)
	enc := json.NewEncoder(zw)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(records); err != nil {
		_ = zw.Close()
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func countGzipJSON(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	zr, err := gzip.NewReader(f)
	if err != nil {
		return 0, err
	}
	defer zr.Close()
	var records []Record
	if err := json.NewDecoder(zr).Decode(&records); err != nil {
		return 0, err
	}
	return len(records), nil
}
