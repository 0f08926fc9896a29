package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

// RecurrenceKind identifies the shape of a recurrence rule.
type RecurrenceKind string

// Supported recurrence kinds.
const (
	RecurrenceDaily   RecurrenceKind = "daily"
	RecurrenceWeekly  RecurrenceKind = "weekly"
	RecurrenceMonthly RecurrenceKind = "monthly"
	RecurrenceCron    RecurrenceKind = "cron"
)

// Recurrence-specific validation errors.
var (
	// ErrWeekdaysEmpty is returned when a weekly rule names no weekdays.
	ErrWeekdaysEmpty = errors.New("weekly rule must name at least one weekday")

	// ErrDayOfMonthRange is returned when a monthly rule's day is outside 1..31.
	ErrDayOfMonthRange = errors.New("monthly rule day must be between 1 and 31")

	// ErrCronExpressionInvalid is returned when a cron expression does not parse.
	ErrCronExpressionInvalid = errors.New("cron expression is invalid")
)

// RecurrenceRule describes when a recurring template produces task instances.
// Exactly one variant is active, selected by Kind; the variant fields for the
// other kinds are zero. Rules are value objects and never mutated.
type RecurrenceRule struct {
	Kind RecurrenceKind `json:"kind"`

	// Weekdays applies to weekly rules: the days on which an occurrence is due.
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// DayOfMonth applies to monthly rules. Months shorter than the configured
	// day clamp to their last day.
	DayOfMonth int `json:"day_of_month,omitempty"`

	// Expression applies to cron rules, in standard five-field syntax.
	Expression string `json:"expression,omitempty"`
}

// Validate checks that the rule's active variant is well formed.
func (r RecurrenceRule) Validate() error {
	switch r.Kind {
	case RecurrenceDaily:
		return nil
	case RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			return fmt.Errorf("%w: %w", ErrInvalidRecurrenceRule, ErrWeekdaysEmpty)
		}
		for _, d := range r.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: weekday %d out of range", ErrInvalidRecurrenceRule, d)
			}
		}
		return nil
	case RecurrenceMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return fmt.Errorf("%w: %w", ErrInvalidRecurrenceRule, ErrDayOfMonthRange)
		}
		return nil
	case RecurrenceCron:
		if !gronx.New().IsValid(r.Expression) {
			return fmt.Errorf("%w: %w: %q", ErrInvalidRecurrenceRule, ErrCronExpressionInvalid, r.Expression)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecurrenceRule, r.Kind)
	}
}

// Next computes the occurrence strictly after the given one. The input is a
// prior occurrence (the template's anchor chain), never wall-clock "now", so
// advancing from the occurrence itself is what keeps the schedule drift-free
// across late or skipped ticks.
func (r RecurrenceRule) Next(after time.Time) (time.Time, error) {
	switch r.Kind {
	case RecurrenceDaily:
		return after.AddDate(0, 0, 1), nil

	case RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidRecurrenceRule, ErrWeekdaysEmpty)
		}
		due := make(map[time.Weekday]bool, len(r.Weekdays))
		for _, d := range r.Weekdays {
			due[d] = true
		}
		// At most a week away. Keeps the anchor's time of day.
		for i := 1; i <= 7; i++ {
			candidate := after.AddDate(0, 0, i)
			if due[candidate.Weekday()] {
				return candidate, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: no matching weekday", ErrInvalidRecurrenceRule)

	case RecurrenceMonthly:
		if r.DayOfMonth < 1 || r.DayOfMonth > 31 {
			return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidRecurrenceRule, ErrDayOfMonthRange)
		}
		year, month, _ := after.Date()
		hh, mm, ss := after.Clock()
		month++
		day := r.DayOfMonth
		if last := daysInMonth(year, month); day > last {
			day = last
		}
		return time.Date(year, month, day, hh, mm, ss, 0, after.Location()), nil

	case RecurrenceCron:
		next, err := gronx.NextTickAfter(r.Expression, after, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w: %v", ErrInvalidRecurrenceRule, ErrCronExpressionInvalid, err)
		}
		return next, nil

	default:
		return time.Time{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRecurrenceRule, r.Kind)
	}
}

// daysInMonth returns the number of days in the given month.
// time.Date normalizes day 0 of the next month to the last day of this one.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
