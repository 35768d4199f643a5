package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"prom-markup/internal/domain"
)

// Schedule yields the next firing time strictly after now
type Schedule interface {
	Next(now time.Time) time.Time
}

// DailySchedule fires once a day at Hour:Minute:00 in Location.
// A nil Location uses the location of the time passed to Next.
type DailySchedule struct {
	Hour     int
	Minute   int
	Location *time.Location
}

func (s DailySchedule) Next(now time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = now.Location()
	}

	t := now.In(loc)
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, loc)
	if !next.After(t) {
		next = time.Date(t.Year(), t.Month(), t.Day()+1, s.Hour, s.Minute, 0, 0, loc)
	}
	return next
}

// StartTime renders the schedule as the canonical "HH:MM" stored with automations
func (s DailySchedule) StartTime() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// ParseStartTime reads an "HH:MM" wall clock time
func ParseStartTime(value string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 || len(parts[1]) != 2 {
		return 0, 0, fmt.Errorf("%w: %q, expected HH:MM", domain.ErrInvalidStartTime, value)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour in %q", domain.ErrInvalidStartTime, value)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute in %q", domain.ErrInvalidStartTime, value)
	}
	return hour, minute, nil
}

// BuildSchedule maps a persisted frequency and start time to a Schedule
func BuildSchedule(frequency, startTime string, loc *time.Location) (Schedule, error) {
	switch frequency {
	case domain.FrequencyDaily:
		hour, minute, err := ParseStartTime(startTime)
		if err != nil {
			return nil, err
		}
		return DailySchedule{Hour: hour, Minute: minute, Location: loc}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFrequency, frequency)
	}
}
