package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
logging:
  level: INFO
  console: true
  file:
    enabled: false
    path: ""
scheduling:
  adjust_workdays: true
notification:
  enabled: true
  webhook_url: "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=abc"
  push_time: "09:00"
  reminder_days: 3
storage:
  driver: file
  path: ./experiments.json
archive:
  threshold_days: 180
`

func writeConfig(t *testing.T, name, content string) *ConfigManager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewConfigManager(path)
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Scheduling.AdjustWorkdays {
		t.Error("scheduling.adjust_workdays not parsed")
	}
	if cfg.Notification.PushTime != "09:00" || cfg.Notification.ReminderDays != 3 {
		t.Errorf("notification section mismatch: %+v", cfg.Notification)
	}
	if cfg.Storage == nil || cfg.Storage.Driver != "file" {
		t.Errorf("storage section mismatch: %+v", cfg.Storage)
	}
	if cfg.Archive.ThresholdDays != 180 {
		t.Errorf("archive.threshold_days = %d", cfg.Archive.ThresholdDays)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get must return the committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, "config.yaml", sampleYAML+"\nlegacy_section:\n  x: 1\n")
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level key must be rejected")
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Config {
		return &Config{
			Notification: NotificationConfig{
				Enabled:    true,
				WebhookURL: "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key=abc",
				PushTime:   "08:30",
			},
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing webhook", func(c *Config) { c.Notification.WebhookURL = "" }},
		{"wrong webhook host", func(c *Config) { c.Notification.WebhookURL = "https://example.com/h" }},
		{"bad push time", func(c *Config) { c.Notification.PushTime = "25:00" }},
		{"malformed push time", func(c *Config) { c.Notification.PushTime = "noon" }},
		{"negative reminder days", func(c *Config) { c.Notification.ReminderDays = -1 }},
		{"negative threshold", func(c *Config) { c.Archive.ThresholdDays = -5 }},
		{"bad busy timeout", func(c *Config) { c.Storage = &StorageConfig{Driver: "sqlite", BusyTimeout: "soon"} }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("want validation error")
			}
		})
	}

	// Disabled notification skips webhook checks entirely.
	off := base()
	off.Notification.Enabled = false
	off.Notification.WebhookURL = ""
	off.Notification.PushTime = ""
	if err := off.Validate(); err != nil {
		t.Fatalf("disabled notification must not require webhook: %v", err)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, "config.yaml", sampleYAML)
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}

	next := *cfg
	next.Notification.LastPushDate = "2024-06-03"
	if err := m.Save(&next); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// The written file must survive a strict reload with every field intact.
	again, err := m.Parse()
	if err != nil {
		t.Fatalf("reload after Save: %v", err)
	}
	if again.Notification.LastPushDate != "2024-06-03" {
		t.Errorf("last_push_date not persisted: %+v", again.Notification)
	}
	if again.Scheduling != cfg.Scheduling || again.Archive != cfg.Archive {
		t.Error("Save must not change unrelated sections")
	}
}

func TestSetLastPushDate(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, "config.yaml", sampleYAML)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}
	if err := m.SetLastPushDate("2024-06-04"); err != nil {
		t.Fatalf("SetLastPushDate: %v", err)
	}
	if got := m.Get().Notification.LastPushDate; got != "2024-06-04" {
		t.Fatalf("committed last_push_date = %q", got)
	}

	empty := NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if err := empty.SetLastPushDate("2024-06-04"); err == nil {
		t.Fatal("SetLastPushDate before Load must fail")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	m := writeConfig(t, "config.yaml", sampleYAML)
	oldCfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}

	newCfg := *oldCfg
	newCfg.Scheduling.AdjustWorkdays = false
	newCfg.Notification.PushTime = "18:00"

	changed, attrs := SummarizeConfigChange(oldCfg, &newCfg)
	want := []string{"notification", "scheduling"}
	if strings.Join(changed, ",") != strings.Join(want, ",") {
		t.Fatalf("changed = %v, want %v", changed, want)
	}
	if len(attrs) == 0 {
		t.Error("expected attrs for changed sections")
	}

	// Only the service-owned push date moved: not an operator edit.
	stateOnly := *oldCfg
	stateOnly.Notification.LastPushDate = "2024-06-03"
	if changed, _ := SummarizeConfigChange(oldCfg, &stateOnly); len(changed) != 0 {
		t.Fatalf("last_push_date alone must not count as a change, got %v", changed)
	}
}

func TestDurationField(t *testing.T) {
	t.Parallel()

	if d, err := DurationField("x", " 5s "); err != nil || d.Seconds() != 5 {
		t.Fatalf("got %v, %v", d, err)
	}
	if d, err := DurationField("x", ""); err != nil || d != 0 {
		t.Fatalf("empty must be zero, got %v, %v", d, err)
	}
	if _, err := DurationField("x", "-1s"); err == nil {
		t.Fatal("negative duration must fail")
	}
	if _, err := DurationField("x", "soon"); err == nil {
		t.Fatal("garbage duration must fail")
	}
	if d, err := DurationFieldOr("x", "", 2*time.Second); err != nil || d != 2*time.Second {
		t.Fatalf("unset must take the default, got %v, %v", d, err)
	}
	if d, err := DurationFieldOr("x", "500ms", 2*time.Second); err != nil || d != 500*time.Millisecond {
		t.Fatalf("set value must win, got %v, %v", d, err)
	}
}
