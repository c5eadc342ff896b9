package workday

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

//go:embed table.yaml
var defaultTable []byte

const dayKey = "2006-01-02"

// Calendar is the locale-specific Oracle implementation.
//
// A date is a workday when it is a weekday that is not a listed holiday,
// or a weekend day listed as a makeup workday (the CN adjusted-workday
// system swaps weekend days against long holiday runs).
type Calendar struct {
	holidays map[string]string
	workdays map[string]bool
}

// tableFile is the on-disk/embedded shape of the holiday table.
type tableFile struct {
	// Holidays maps YYYY-MM-DD to the holiday name.
	Holidays map[string]string `yaml:"holidays"`
	// Workdays lists weekend dates that are worked instead.
	Workdays []string `yaml:"workdays"`
}

// NewCalendar builds a Calendar from the embedded holiday table.
func NewCalendar() (*Calendar, error) {
	return parseTable(defaultTable)
}

// LoadCalendar builds a Calendar from a YAML table on disk.
// An empty path falls back to the embedded table.
func LoadCalendar(path string) (*Calendar, error) {
	if path == "" {
		return NewCalendar()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workday table: %w", err)
	}
	return parseTable(b)
}

func parseTable(b []byte) (*Calendar, error) {
	var tf tableFile
	if err := yaml.Unmarshal(b, &tf); err != nil {
		return nil, fmt.Errorf("workday table: %w", err)
	}

	c := &Calendar{
		holidays: make(map[string]string, len(tf.Holidays)),
		workdays: make(map[string]bool, len(tf.Workdays)),
	}
	for k, name := range tf.Holidays {
		if _, err := time.Parse(dayKey, k); err != nil {
			return nil, fmt.Errorf("workday table: bad holiday date %q: %w", k, err)
		}
		c.holidays[k] = name
	}
	for _, k := range tf.Workdays {
		if _, err := time.Parse(dayKey, k); err != nil {
			return nil, fmt.Errorf("workday table: bad workday date %q: %w", k, err)
		}
		c.workdays[k] = true
	}
	return c, nil
}

func (c *Calendar) IsWorkday(d time.Time) bool {
	key := d.Format(dayKey)
	if _, ok := c.holidays[key]; ok {
		return false
	}
	if c.workdays[key] {
		return true
	}
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (c *Calendar) HolidayName(d time.Time) (string, bool) {
	name, ok := c.holidays[d.Format(dayKey)]
	return name, ok
}
