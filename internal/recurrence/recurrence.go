// Package recurrence computes the next fire instant for a recurrence
// pattern. It is pure: no state, no I/O, no clock reads.
package recurrence

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/daybreak-labs/triggerd/internal/domain"
)

// Calendar patterns are translated to cron expressions and evaluated
// by the cron library, which handles month boundaries and DST. The
// parser carries no timezone, so schedules are evaluated in the
// reference instant's own location.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextFire returns the next instant r fires, strictly after ref.
// Equality with ref is never returned: a Daily(9,0) evaluated at
// exactly 09:00:00 yields tomorrow 09:00.
func NextFire(r domain.Recurrence, ref time.Time) (time.Time, error) {
	switch rec := r.(type) {
	case domain.Interval:
		return ref.Add(time.Duration(rec.Seconds) * time.Second), nil
	case domain.Daily:
		return nextCron(fmt.Sprintf("%d %d * * *", rec.Minute, rec.Hour), ref)
	case domain.Weekdays:
		return nextCron(fmt.Sprintf("%d %d * * 1-5", rec.Minute, rec.Hour), ref)
	case domain.Weekly:
		return nextCron(fmt.Sprintf("%d %d * * %d", rec.Minute, rec.Hour, int(rec.Weekday)), ref)
	default:
		return time.Time{}, fmt.Errorf("unknown recurrence %T", r)
	}
}

// Validate reports whether the pattern's fields are in range.
func Validate(r domain.Recurrence) error {
	switch rec := r.(type) {
	case domain.Interval:
		if rec.Seconds <= 0 {
			return fmt.Errorf("interval seconds must be positive, got %d", rec.Seconds)
		}
	case domain.Daily:
		return validateClock(rec.Hour, rec.Minute)
	case domain.Weekdays:
		return validateClock(rec.Hour, rec.Minute)
	case domain.Weekly:
		if rec.Weekday < time.Sunday || rec.Weekday > time.Saturday {
			return fmt.Errorf("invalid weekday %d", rec.Weekday)
		}
		return validateClock(rec.Hour, rec.Minute)
	default:
		return fmt.Errorf("unknown recurrence %T", r)
	}
	return nil
}

func validateClock(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("hour out of range: %d", hour)
	}
	if minute < 0 || minute > 59 {
		return fmt.Errorf("minute out of range: %d", minute)
	}
	return nil
}

func nextCron(expression string, ref time.Time) (time.Time, error) {
	sched, err := parser.Parse(expression)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", expression, err)
	}
	return sched.Next(ref), nil
}
