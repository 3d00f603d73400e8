package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/naildiary/booking/internal/apperr"
)

// Interval is an occupied stretch of calendar time, half-open: the end
// instant is not part of the interval, so back-to-back appointments touch
// without colliding.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals share any instant.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// IntervalSource yields the intervals of calendar-blocking appointments
// that start on the given day. excludeID, when non-empty, names an
// appointment to leave out (used when rescheduling it).
type IntervalSource interface {
	ActiveIntervalsOn(ctx context.Context, day time.Time, excludeID string) ([]Interval, error)
}

// Checker validates a candidate booking against the availability policy and
// the existing calendar. Checks run in order: past date, closed weekday,
// opening hours, then slot collision; the first failure wins.
type Checker struct {
	policy    *Policy
	intervals IntervalSource
	now       func() time.Time
	loc       *time.Location
}

func NewChecker(policy *Policy, intervals IntervalSource) *Checker {
	return &Checker{
		policy:    policy,
		intervals: intervals,
		now:       time.Now,
		loc:       time.Local,
	}
}

func (c *Checker) CheckAvailability(ctx context.Context, start time.Time, durationMinutes int, excludeID string) error {
	start = start.In(c.loc)
	if !start.After(c.now()) {
		return apperr.New(apperr.KindPastDate, "appointments cannot be booked in the past")
	}

	cfg, err := c.policy.Get(ctx)
	if err != nil {
		return err
	}
	if !cfg.AllowsWeekday(start.Weekday()) {
		return apperr.Newf(apperr.KindClosedDay, "bookings are only accepted on: %s", weekdayNames(cfg.Weekdays))
	}
	if start.Hour() < cfg.OpenHour || start.Hour() >= cfg.CloseHour {
		return apperr.Newf(apperr.KindOutsideHours, "bookings are only accepted between %02d:00 and %02d:00", cfg.OpenHour, cfg.CloseHour)
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, c.loc)
	existing, err := c.intervals.ActiveIntervalsOn(ctx, day, excludeID)
	if err != nil {
		return fmt.Errorf("load appointments for %s: %w", day.Format("2006-01-02"), err)
	}
	for _, iv := range existing {
		if Overlaps(start, end, iv.Start, iv.End) {
			return apperr.New(apperr.KindSlotUnavailable, "this time slot is already taken, please pick another")
		}
	}
	return nil
}

func weekdayNames(weekdays []int) string {
	names := make([]string, 0, len(weekdays))
	for _, wd := range weekdays {
		if wd >= 0 && wd <= 6 {
			names = append(names, time.Weekday(wd).String())
		}
	}
	return strings.Join(names, ", ")
}
