package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// Span returns the calendar dates an occurrence occupies on a day grid,
// inclusive and ascending. Timed events and all-day events without an end
// occupy only their start date. An all-day end before its start degrades to
// the start date. At most limit dates are returned; truncated reports that
// the limit applied.
func Span(start time.Time, end mo.Option[time.Time], allDay bool, limit int) (dates []time.Time, truncated bool) {
	if limit <= 0 {
		limit = DefaultCap
	}
	start = DateOf(start, time.UTC)

	last, ok := end.Get()
	if !allDay || !ok {
		return []time.Time{start}, false
	}
	last = DateOf(last, time.UTC)
	if last.Before(start) {
		return []time.Time{start}, false
	}

	days := daysBetween(start, last) + 1
	if days > limit {
		days = limit
		truncated = true
	}
	dates = make([]time.Time, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, AddDays(start, i))
	}
	return dates, truncated
}
