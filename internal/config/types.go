package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Logging      LoggingConfig      `json:"logging"`
	Scheduling   SchedulingConfig   `json:"scheduling"`
	Notification NotificationConfig `json:"notification"`
	Storage      *StorageConfig     `json:"storage,omitempty"`
	Archive      ArchiveConfig      `json:"archive"`
	Workday      WorkdayConfig      `json:"workday,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulingConfig holds the global schedule-calculation switches.
type SchedulingConfig struct {
	// AdjustWorkdays is the global workday-adjustment toggle. It only
	// affects methods whose template is itself marked adjustable.
	AdjustWorkdays bool `json:"adjust_workdays"`

	// AllowDuplicateExpID permits registering a new schedule under an
	// experiment number that is already in use.
	AllowDuplicateExpID bool `json:"allow_duplicate_exp_id,omitempty"`
}

// NotificationConfig controls the daily webhook push.
//
// All times are wall-clock HH:MM in Timezone (default local).
type NotificationConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url,omitempty"`
	PushTime   string `json:"push_time"`

	// LastPushDate is state, not configuration: the service writes it
	// back after each successful automatic push so restarts do not
	// re-push the same day.
	LastPushDate string `json:"last_push_date,omitempty"`

	// ReminderDays appends an upcoming-steps section covering this many
	// days after today. 0 disables the section.
	ReminderDays int `json:"reminder_days,omitempty"`

	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the schedule persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./experiments.json" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// ArchiveConfig controls cold storage for finished experiments.
type ArchiveConfig struct {
	// Dir is where the compressed archive lives. Empty means the
	// current working directory.
	Dir string `json:"dir,omitempty"`

	// ThresholdDays archives records whose end date is strictly more
	// than this many days in the past. 0 means the built-in default.
	ThresholdDays int `json:"threshold_days,omitempty"`
}

// WorkdayConfig points at an external holiday table. Empty means the
// embedded table.
type WorkdayConfig struct {
	TablePath string `json:"table_path,omitempty"`
}

// Validate checks cross-field constraints that the strict decoder
// cannot express. It is the hook Watch() runs before committing a
// reloaded file.
func (c *Config) Validate() error {
	if c.Notification.Enabled {
		if err := validateWebhookURL(c.Notification.WebhookURL); err != nil {
			return fmt.Errorf("notification.webhook_url: %w", err)
		}
		if err := validatePushTime(c.Notification.PushTime); err != nil {
			return fmt.Errorf("notification.push_time: %w", err)
		}
	}
	if c.Notification.ReminderDays < 0 {
		return fmt.Errorf("notification.reminder_days: must be >= 0")
	}
	if c.Archive.ThresholdDays < 0 {
		return fmt.Errorf("archive.threshold_days: must be >= 0")
	}
	if c.Storage != nil {
		if _, err := DurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
			return err
		}
	}
	return nil
}

func validateWebhookURL(u string) error {
	if strings.TrimSpace(u) == "" {
		return fmt.Errorf("required when notification is enabled")
	}
	if !strings.HasPrefix(u, "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=") {
		return fmt.Errorf("not a 企业微信 robot address")
	}
	return nil
}

func validatePushTime(s string) error {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	hh, err1 := parseClockPart(parts[0], 23)
	mm, err2 := parseClockPart(parts[1], 59)
	if err1 != nil || err2 != nil || hh < 0 || mm < 0 {
		return fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return nil
}

func parseClockPart(s string, max int) (int, error) {
	if s == "" || len(s) > 2 {
		return -1, fmt.Errorf("bad clock field %q", s)
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1, fmt.Errorf("bad clock field %q", s)
		}
		n = n*10 + int(r-'0')
	}
	if n > max {
		return -1, fmt.Errorf("bad clock field %q", s)
	}
	return n, nil
}
