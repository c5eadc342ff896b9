package config

import (
	"sort"
	"strings"

	logx "cytosched/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus
// safe structured attrs for logging. The webhook key never appears in
// the attrs, only whether one is set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduling != newCfg.Scheduling {
		changed = append(changed, "scheduling")
		attrs = append(attrs,
			logx.Bool("scheduling.adjust_workdays", newCfg.Scheduling.AdjustWorkdays),
			logx.Bool("scheduling.allow_duplicate_exp_id", newCfg.Scheduling.AllowDuplicateExpID),
		)
	}

	// Notification (never log the webhook key). LastPushDate is service
	// state; changing only it is not an operator edit.
	oldN := oldCfg.Notification
	newN := newCfg.Notification
	oldN.LastPushDate = ""
	newN.LastPushDate = ""
	if oldN != newN {
		changed = append(changed, "notification")
		attrs = append(attrs,
			logx.Bool("notification.enabled", newN.Enabled),
			logx.Bool("notification.webhook_set", strings.TrimSpace(newN.WebhookURL) != ""),
			logx.String("notification.push_time", newN.PushTime),
			logx.Int("notification.reminder_days", newN.ReminderDays),
			logx.String("notification.timezone", strings.TrimSpace(newN.Timezone)),
		)
	}

	// Storage. Nil means the built-in file driver defaults.
	var oldS, newS StorageConfig
	if oldCfg.Storage != nil {
		oldS = *oldCfg.Storage
	}
	if newCfg.Storage != nil {
		newS = *newCfg.Storage
	}
	if oldS != newS {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newS.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newS.BusyTimeout)),
		)
	}

	if oldCfg.Archive != newCfg.Archive {
		changed = append(changed, "archive")
		attrs = append(attrs,
			logx.Bool("archive.dir_set", strings.TrimSpace(newCfg.Archive.Dir) != ""),
			logx.Int("archive.threshold_days", newCfg.Archive.ThresholdDays),
		)
	}

	if oldCfg.Workday != newCfg.Workday {
		changed = append(changed, "workday")
		attrs = append(attrs,
			logx.Bool("workday.table_path_set", strings.TrimSpace(newCfg.Workday.TablePath) != ""),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}
