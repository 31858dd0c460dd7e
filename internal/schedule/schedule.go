// Package schedule computes firing instants for recurring subscriptions.
package schedule

import (
	"errors"
	"time"

	"github.com/bissquit/grocer/internal/domain"
)

// Validation errors.
var (
	ErrInvalidFrequency  = errors.New("frequency must be daily or weekly")
	ErrInvalidHour       = errors.New("hour must be between 0 and 23")
	ErrInvalidMinute     = errors.New("minute must be between 0 and 59")
	ErrDayOfWeekRequired = errors.New("day_of_week is required for weekly frequency")
	ErrInvalidDayOfWeek  = errors.New("day_of_week must be between 0 (Sunday) and 6 (Saturday)")
)

// Spec is the schedule part of a subscription.
type Spec struct {
	Frequency domain.Frequency
	Hour      int
	Minute    int
	// DayOfWeek is 0 (Sunday) to 6 (Saturday). Used only for weekly specs.
	DayOfWeek *int
}

// FromSubscription extracts the schedule of a subscription.
func FromSubscription(sub *domain.Subscription) Spec {
	return Spec{
		Frequency: sub.Frequency,
		Hour:      sub.Hour,
		Minute:    sub.Minute,
		DayOfWeek: sub.DayOfWeek,
	}
}

// Validate checks that the spec can be scheduled.
func (s Spec) Validate() error {
	if !s.Frequency.IsValid() {
		return ErrInvalidFrequency
	}
	if s.Hour < 0 || s.Hour > 23 {
		return ErrInvalidHour
	}
	if s.Minute < 0 || s.Minute > 59 {
		return ErrInvalidMinute
	}
	if s.Frequency == domain.FrequencyWeekly {
		if s.DayOfWeek == nil {
			return ErrDayOfWeekRequired
		}
		if *s.DayOfWeek < 0 || *s.DayOfWeek > 6 {
			return ErrInvalidDayOfWeek
		}
	}
	return nil
}

// Normalize drops DayOfWeek from daily specs.
func (s Spec) Normalize() Spec {
	if s.Frequency == domain.FrequencyDaily {
		s.DayOfWeek = nil
	}
	return s
}

// NextRunAt returns the first firing instant strictly after from.
//
// The candidate is from's calendar date at Hour:Minute:00 in from's location.
// A candidate equal to from counts as already passed, so a subscription that
// fires at its exact scheduled instant is always moved to the next period.
// Days are added as calendar days, so the wall-clock time survives DST changes.
//
// The spec must be valid; weekly specs without DayOfWeek are treated as daily.
func NextRunAt(spec Spec, from time.Time) time.Time {
	loc := from.Location()
	year, month, day := from.Date()
	candidate := time.Date(year, month, day, spec.Hour, spec.Minute, 0, 0, loc)

	if spec.Frequency != domain.FrequencyWeekly || spec.DayOfWeek == nil {
		if !candidate.After(from) {
			candidate = time.Date(year, month, day+1, spec.Hour, spec.Minute, 0, 0, loc)
		}
		return candidate
	}

	daysUntil := (*spec.DayOfWeek - int(from.Weekday()) + 7) % 7
	if daysUntil == 0 && !candidate.After(from) {
		daysUntil = 7
	}
	return time.Date(year, month, day+daysUntil, spec.Hour, spec.Minute, 0, 0, loc)
}
