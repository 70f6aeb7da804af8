package config

import (
	"fmt"
	"strings"
	"time"
)

// Timing knobs (telegram.poll_timeout, scheduler.delivery_timeout,
// database.busy_timeout, openrouter.timeout) are Go duration strings in the
// config file. They stay strings in Config so validate() can report the
// offending field by its config path; these helpers do the conversion at
// the point of use.

// ParseDurationField parses one duration field. Empty means "not set" and
// yields 0; callers pick their own default via ParseDurationOrDefault.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault substitutes def when the field is unset or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}
