// Package scheduler computes daily occurrences of a wall-clock time. The
// daemon asks it when the next payout is due; it never sleeps or ticks
// itself.
package scheduler

import (
	"fmt"
	"time"
)

// Schedule is one wall-clock time of day in one location.
type Schedule struct {
	hour     int
	minute   int
	location *time.Location
}

func New(hour, minute int, location *time.Location) (*Schedule, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("%02d:%02d is not a valid time of day", hour, minute)
	}
	if location == nil {
		location = time.UTC
	}
	return &Schedule{hour: hour, minute: minute, location: location}, nil
}

// Occurrence returns the schedule's occurrence on the calendar day that
// contains the given instant, evaluated in the schedule's location.
func (s *Schedule) Occurrence(at time.Time) time.Time {
	local := at.In(s.location)
	return time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.minute, 0, 0, s.location)
}

// Next returns the first occurrence strictly after the given instant. An
// occurrence exactly at the instant counts as already passed, so a daemon
// waking up on its own tick does not fire twice.
func (s *Schedule) Next(after time.Time) time.Time {
	candidate := s.Occurrence(after)
	if !candidate.After(after) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

func (s *Schedule) String() string {
	return fmt.Sprintf("%02d:%02d %s", s.hour, s.minute, s.location)
}
