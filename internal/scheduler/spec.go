package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// TickSpec describes when delivery sweeps fire.
//
// Supported forms:
//   - Go duration: "1m", "30s", "2m30s"
//   - Cron (crontab.guru-style): "*/1 * * * *", "@every 1m"
//
// The reference cadence is one sweep per minute; anything coarser than an
// hour would skip whole delivery windows, so ParseTick rejects it.
type TickSpec struct {
	raw   string
	every time.Duration // interval form; 0 when cron
	sched cron.Schedule // cron form; nil when interval
}

const maxTick = time.Hour

// ParseTick parses a sweep schedule. Empty input means every minute.
func ParseTick(raw string) (TickSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return TickSpec{raw: "1m", every: time.Minute}, nil
	}

	// Whitespace or '@' means cron; bare tokens are durations.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		sched, err := cron.ParseStandard(s)
		if err != nil {
			return TickSpec{}, fmt.Errorf("scheduler.sweep: invalid cron %q: %w", raw, err)
		}
		return TickSpec{raw: s, sched: sched}, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		return TickSpec{}, fmt.Errorf("scheduler.sweep: %q is neither a duration nor a cron expression", raw)
	}
	if d <= 0 {
		return TickSpec{}, fmt.Errorf("scheduler.sweep: interval must be > 0")
	}
	if d > maxTick {
		return TickSpec{}, fmt.Errorf("scheduler.sweep: interval %s exceeds %s and would skip delivery hours", d, maxTick)
	}
	return TickSpec{raw: s, every: d}, nil
}

// Next returns the first fire time strictly after now.
func (t TickSpec) Next(now time.Time) time.Time {
	if t.sched != nil {
		return t.sched.Next(now)
	}
	every := t.every
	if every <= 0 {
		every = time.Minute
	}
	return now.Add(every)
}

func (t TickSpec) String() string { return t.raw }
