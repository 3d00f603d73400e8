package schedule

import (
	"context"
	"fmt"
	"time"
)

// OccupiedHours returns the "HH:00" labels of every hour of the given day
// touched by one of the intervals. An interval ending exactly on the hour
// does not claim that hour.
func OccupiedHours(day time.Time, intervals []Interval) []string {
	var labels []string
	for hour := 0; hour < 24; hour++ {
		cellStart := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, day.Location())
		cellEnd := cellStart.Add(time.Hour)
		for _, iv := range intervals {
			if Overlaps(iv.Start, iv.End, cellStart, cellEnd) {
				labels = append(labels, fmt.Sprintf("%02d:00", hour))
				break
			}
		}
	}
	return labels
}

// OccupiedSlots lists the taken hour slots for one day, for the public
// booking calendar. day must be a midnight value in the server's location.
func (c *Checker) OccupiedSlots(ctx context.Context, day time.Time) ([]string, error) {
	intervals, err := c.intervals.ActiveIntervalsOn(ctx, day, "")
	if err != nil {
		return nil, fmt.Errorf("load appointments for %s: %w", day.Format("2006-01-02"), err)
	}
	labels := OccupiedHours(day, intervals)
	if labels == nil {
		labels = []string{}
	}
	return labels, nil
}
