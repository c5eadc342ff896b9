package notify

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// Ticks inside the first minute after process start are ignored so
	// a restart near push time does not immediately re-push.
	startupDebounce = 60 * time.Second

	// A tick counts as "at push time" when it lands inside this half
	// window on either side of the configured instant.
	windowHalf = 30 * time.Second
)

// ParsePushTime validates an HH:MM clock string and returns its
// components.
func ParsePushTime(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("push time %q: want HH:MM", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("push time %q: bad hour", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("push time %q: bad minute", s)
	}
	return hour, minute, nil
}

// DueAt reports whether a tick at now should trigger the daily push.
// Suppression is keyed on (date, push time): changing push_time during
// the day re-arms the gate even when today already pushed at the old
// time.
func DueAt(now time.Time, pushTime string, lastSentDate, lastSentPush string, serverStart time.Time) bool {
	hour, minute, err := ParsePushTime(pushTime)
	if err != nil {
		return false
	}
	if now.Sub(serverStart) < startupDebounce {
		return false
	}
	if lastSentDate == now.Format("2006-01-02") && lastSentPush == pushTime {
		return false
	}
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	return diff <= windowHalf
}

// Gate tracks the last successful automatic push. It only advances on
// MarkSent, so a failed send leaves the window open for the next tick.
type Gate struct {
	serverStart time.Time

	mu       sync.Mutex
	lastDate string
	lastPush string
}

func NewGate(serverStart time.Time) *Gate {
	return &Gate{serverStart: serverStart}
}

// Seed restores persisted state so a same-day restart after the push
// does not push again.
func (g *Gate) Seed(lastDate, pushTime string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDate = lastDate
	g.lastPush = pushTime
}

func (g *Gate) Due(now time.Time, pushTime string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return DueAt(now, pushTime, g.lastDate, g.lastPush, g.serverStart)
}

func (g *Gate) MarkSent(now time.Time, pushTime string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastDate = now.Format("2006-01-02")
	g.lastPush = pushTime
}
