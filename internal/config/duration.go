package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationField parses a human-readable duration setting ("5s",
// "1500ms"). An empty or whitespace-only value means unset and yields
// zero; negative durations are rejected.
func DurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// DurationFieldOr is DurationField with a fallback for unset values.
func DurationFieldOr(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := DurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
