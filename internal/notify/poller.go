package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"cytosched/internal/schedule"
	logx "cytosched/pkg/logx"
)

// Settings is the live notification configuration a Poller consults on
// every tick. Values may change between ticks when the config file is
// reloaded.
type Settings struct {
	Enabled      bool
	WebhookURL   string
	PushTime     string
	LastPushDate string
	ReminderDays int
	Timezone     string
}

// Poller drives the once-a-day automatic push off a 30 second tick.
type Poller struct {
	log      logx.Logger
	gate     *Gate
	settings func() Settings
	records  func(context.Context) ([]schedule.Record, error)
	markSent func(date string) error

	// sendMu serializes automatic and manual sends so the two paths
	// cannot double-push inside the same window.
	sendMu sync.Mutex

	mu      sync.Mutex
	cron    *cron.Cron
	webhook *Webhook
	whURL   string
}

// NewPoller wires the tick loop. settings returns the current
// notification config, records loads the live schedule set, and
// markSent persists the last push date after a successful automatic
// send.
func NewPoller(log logx.Logger, gate *Gate, settings func() Settings, records func(context.Context) ([]schedule.Record, error), markSent func(date string) error) *Poller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		log:      log,
		gate:     gate,
		settings: settings,
		records:  records,
		markSent: markSent,
	}
}

// Start seeds the gate from persisted state and begins ticking.
func (p *Poller) Start(ctx context.Context) error {
	s := p.settings()
	p.gate.Seed(s.LastPushDate, s.PushTime)

	loc := time.Local
	if s.Timezone != "" {
		l, err := time.LoadLocation(s.Timezone)
		if err != nil {
			p.log.Warn("bad timezone, using local", logx.String("timezone", s.Timezone), logx.Err(err))
		} else {
			loc = l
		}
	}

	c := cron.New(cron.WithLocation(loc))
	if _, err := c.AddFunc("@every 30s", func() { p.tick(ctx, loc) }); err != nil {
		return err
	}
	c.Start()

	p.mu.Lock()
	p.cron = c
	p.mu.Unlock()

	p.log.Info("notify poller started", logx.String("push_time", s.PushTime), logx.Bool("enabled", s.Enabled))
	return nil
}

func (p *Poller) Stop() {
	p.mu.Lock()
	c := p.cron
	p.cron = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

func (p *Poller) tick(ctx context.Context, loc *time.Location) {
	s := p.settings()
	if !s.Enabled || s.WebhookURL == "" {
		return
	}
	now := time.Now().In(loc)
	if !p.gate.Due(now, s.PushTime) {
		return
	}

	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	// Re-check under the lock: another tick may have pushed and marked
	// today while we waited.
	if !p.gate.Due(now, s.PushTime) {
		return
	}

	if err := p.push(ctx, s, now); err != nil {
		p.log.Error("daily push failed", logx.Err(err))
		return
	}
	p.gate.MarkSent(now, s.PushTime)
	if err := p.markSent(now.Format("2006-01-02")); err != nil {
		p.log.Error("persist last push date failed", logx.Err(err))
	}
}

// SendNow pushes today's report immediately, ignoring the gate. Manual
// sends do not advance the gate, matching the behavior of an operator
// poking the robot by hand.
func (p *Poller) SendNow(ctx context.Context) error {
	s := p.settings()
	if s.WebhookURL == "" {
		return errors.New("notification webhook not configured")
	}
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return p.push(ctx, s, time.Now())
}

func (p *Poller) push(ctx context.Context, s Settings, now time.Time) error {
	if err := ValidateWebhookURL(s.WebhookURL); err != nil {
		return err
	}
	recs, err := p.records(ctx)
	if err != nil {
		return err
	}
	today := schedule.DateOf(now)

	report := BuildDailyReport(recs, today)
	if report == "" {
		p.log.Info("no tasks today, push skipped", logx.String("date", today.String()))
		return nil
	}
	if s.ReminderDays > 0 {
		if upcoming := BuildUpcomingReport(recs, today, s.ReminderDays); upcoming != "" {
			report += "\n" + upcoming
		}
	}
	return p.client(s.WebhookURL).SendReport(ctx, report)
}

// client caches the webhook so the rate limiter survives across sends,
// rebuilding it when the configured URL changes.
func (p *Poller) client(url string) *Webhook {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.webhook == nil || p.whURL != url {
		p.webhook = NewWebhook(url, p.log)
		p.whURL = url
	}
	return p.webhook
}
