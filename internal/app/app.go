package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cytosched/internal/archive"
	"cytosched/internal/catalog"
	"cytosched/internal/notify"
	"cytosched/internal/schedule"
	"cytosched/internal/storage"
	"cytosched/internal/workday"
	logx "cytosched/pkg/logx"
)

// archiveSweepEvery is how often the background eligibility sweep runs.
// One sweep also runs at startup so long-stopped instances catch up.
const archiveSweepEvery = 24 * time.Hour

type App struct {
	cfgPath string

	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service

	oracle workday.Oracle
	store  *storage.Manager
	svc    *Service

	gate   *notify.Gate
	poller *notify.Poller
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	// Workday oracle: embedded table unless the config points elsewhere.
	var oracle workday.Oracle
	if tp := strings.TrimSpace(cfg.Workday.TablePath); tp != "" {
		oracle, err = workday.LoadCalendar(tp)
	} else {
		oracle, err = workday.NewCalendar()
	}
	if err != nil {
		return nil, fmt.Errorf("workday table: %w", err)
	}

	cat := catalog.New()
	calc := schedule.NewCalculator(cat, oracle)

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	manager := storage.NewManager(st, log.With(logx.String("comp", "storage")))
	log.Info("storage ready", logx.String("driver", sc.Driver))

	arcStore, err := archive.NewStore(cfg.Archive.Dir, log.With(logx.String("comp", "archive")))
	if err != nil {
		return nil, err
	}
	archiver := archive.NewArchiver(arcStore, log.With(logx.String("comp", "archive")))

	svc := NewService(log.With(logx.String("comp", "schedule")), cfgm, cat, calc, manager, archiver)

	gate := notify.NewGate(time.Now())
	poller := notify.NewPoller(
		log.With(logx.String("comp", "notify")),
		gate,
		func() notify.Settings {
			c := cfgm.Get()
			if c == nil {
				return notify.Settings{}
			}
			return notify.Settings{
				Enabled:      c.Notification.Enabled,
				WebhookURL:   c.Notification.WebhookURL,
				PushTime:     c.Notification.PushTime,
				LastPushDate: c.Notification.LastPushDate,
				ReminderDays: c.Notification.ReminderDays,
				Timezone:     c.Notification.Timezone,
			}
		},
		manager.Records,
		cfgm.SetLastPushDate,
	)

	return &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		oracle:  oracle,
		store:   manager,
		svc:     svc,
		gate:    gate,
		poller:  poller,
	}, nil
}

// Schedules exposes the operation surface (registration, queries,
// archive management).
func (a *App) Schedules() *Service { return a.svc }

// Notify exposes the push service for manual sends.
func (a *App) Notify() *notify.Poller { return a.poller }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, WithLogger(a.log), WithCancelOnError(true))

	// Transactional config reload: validate before commit/publish.
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *Config) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if _, err := mapStorageConfig(cfg); err != nil {
			return err
		}
		if tz := strings.TrimSpace(cfg.Notification.Timezone); tz != "" {
			if _, err := time.LoadLocation(tz); err != nil {
				return fmt.Errorf("notification.timezone: invalid %q: %w", tz, err)
			}
		}
		return nil
	})

	if err := a.poller.Start(a.sup.Context()); err != nil {
		return err
	}

	// Archive sweep: once at startup, then daily.
	a.sup.Go0("archive.sweep", func(c context.Context) {
		sweep := func() {
			today := schedule.DateOf(time.Now())
			n, err := a.svc.ArchiveEligible(c, today)
			if err != nil {
				a.log.Error("archive sweep failed", logx.Err(err))
				return
			}
			if n > 0 {
				a.log.Info("archive sweep done", logx.Int("archived", n))
			}
		}
		sweep()
		t := time.NewTicker(archiveSweepEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				sweep()
			}
		}
	})

	// Hot reload fan-out.
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						goto APPLY
					}
				}
			APPLY:
				sections, attrs := SummarizeConfigChange(lastApplied, newCfg)
				prev := lastApplied
				lastApplied = newCfg

				if len(sections) == 0 {
					a.log.Debug("config reload received, but no effective changes detected")
					continue
				}

				a.logs.Apply(logx.Config{
					Level:   newCfg.Logging.Level,
					Console: newCfg.Logging.Console,
					File: logx.FileConfig{
						Enabled: newCfg.Logging.File.Enabled,
						Path:    newCfg.Logging.File.Path,
					},
				})

				for _, msg := range restartWarnings(prev, newCfg, sections) {
					a.log.Warn(msg)
				}

				// Scheduling, archive and the remaining notification
				// settings are read from the committed config on use;
				// nothing to restart.
				fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
				a.log.Info("config reloaded", fields...)
			}
		}
	})

	// The watcher returns an error when fsnotify breaks; the restart
	// wrapper recreates it with backoff instead of taking the app down.
	a.sup.GoRestart("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info("app started")
	return nil
}

// restartWarnings lists the reload warnings for settings that are only
// read at startup. The poller resolves its timezone once in Start, so a
// timezone edit joins storage and workday in needing a restart.
func restartWarnings(prev, next *Config, sections []string) []string {
	var out []string
	for _, s := range sections {
		switch s {
		case "storage":
			out = append(out, "storage config changed; restart required for changes to take effect")
		case "workday":
			out = append(out, "workday table changed; restart required for changes to take effect")
		case "notification":
			if prev != nil && next != nil && prev.Notification.Timezone != next.Notification.Timezone {
				out = append(out, "notification timezone changed; restart required for changes to take effect")
			}
		}
	}
	return out
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()
	a.poller.Stop()

	waitCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := a.sup.Wait(waitCtx); err != nil && waitCtx.Err() != nil {
		a.log.Warn("shutdown wait expired", logx.Err(err))
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close failed", logx.Err(err))
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
