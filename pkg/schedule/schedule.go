package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule computes the next run time of a recurring task.
type Schedule interface {
	Next(from time.Time) time.Time
}

type everySchedule struct {
	interval time.Duration
}

// Every runs at a fixed interval from the previous run.
func Every(d time.Duration) Schedule {
	return &everySchedule{interval: d}
}

func (s *everySchedule) Next(from time.Time) time.Time {
	return from.Add(s.interval)
}

type dailySchedule struct {
	hour   int
	minute int
	loc    *time.Location
}

// Daily runs once a day at hour:minute UTC.
func Daily(hour, minute int) Schedule {
	return &dailySchedule{hour: hour, minute: minute, loc: time.UTC}
}

func (s *dailySchedule) Next(from time.Time) time.Time {
	from = from.In(s.loc)
	next := time.Date(from.Year(), from.Month(), from.Day(), s.hour, s.minute, 0, 0, s.loc)
	if !next.After(from) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Parse reads a schedule. "@every <duration>" keeps sub-second precision,
// unlike the cron form, and "@daily HH:MM" pins the daily run to a UTC time.
// Anything else is a standard cron expression or descriptor.
func Parse(spec string) (Schedule, error) {
	spec = strings.TrimSpace(spec)
	if rest, ok := strings.CutPrefix(spec, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid schedule %q: interval must be a positive duration", spec)
		}
		return Every(d), nil
	}
	if rest, ok := strings.CutPrefix(spec, "@daily "); ok {
		at, err := time.Parse("15:04", strings.TrimSpace(rest))
		if err != nil {
			return nil, fmt.Errorf("invalid schedule %q: daily time must be HH:MM", spec)
		}
		return Daily(at.Hour(), at.Minute()), nil
	}

	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}
