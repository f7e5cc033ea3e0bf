package recurrence

import "time"

// DefaultCap is the global safety limit on dates a single expansion or span
// may enumerate.
const DefaultCap = 365

// Expand returns the calendar dates in [from, to] on which a series starting
// on start recurs, in ascending order and without duplicates. Expansion stops
// at to, at the rule's own end, or after limit dates, whichever comes first;
// truncated reports that the limit cut the result short.
//
// Dates before from are skipped arithmetically rather than walked. Monthly and
// yearly steps are computed from the anchor and clamp to the last day of short
// months (Jan 31 -> Feb 28/29 -> Mar 31).
func Expand(rule Rule, start, from, to time.Time, limit int) (dates []time.Time, truncated bool) {
	if limit <= 0 {
		limit = DefaultCap
	}
	start = DateOf(start, time.UTC)
	from = DateOf(from, time.UTC)
	to = DateOf(to, time.UTC)
	if to.Before(from) {
		return nil, false
	}

	if rule.Kind == None {
		if !start.Before(from) && !start.After(to) {
			return []time.Time{start}, false
		}
		return nil, false
	}

	it := newIterator(rule, start)
	n := it.indexOnOrAfter(from)

	var last time.Time
	// Each pass either emits, skips a malformed candidate or stops, so the
	// step guard also bounds rules with a non-positive interval.
	for steps := 0; steps <= limit; steps, n = steps+1, n+1 {
		if !it.inBounds(n) {
			break
		}
		candidate := it.nth(n)
		if candidate.After(to) {
			break
		}
		if candidate.Before(from) || (len(dates) > 0 && !candidate.After(last)) {
			continue
		}
		if len(dates) == limit {
			truncated = true
			break
		}
		dates = append(dates, candidate)
		last = candidate
	}
	return dates, truncated
}

// Occurs reports whether the series produces an occurrence on date d,
// ignoring any safety cap.
func Occurs(rule Rule, start, d time.Time) bool {
	start = DateOf(start, time.UTC)
	d = DateOf(d, time.UTC)
	if rule.Kind == None {
		return d.Equal(start)
	}
	if d.Before(start) {
		return false
	}
	it := newIterator(rule, start)
	n := it.indexOnOrAfter(d)
	return it.inBounds(n) && it.nth(n).Equal(d)
}

// CountBefore returns how many occurrences the series produces strictly
// before date d.
func CountBefore(rule Rule, start, d time.Time) int {
	start = DateOf(start, time.UTC)
	d = DateOf(d, time.UTC)
	if !start.Before(d) {
		return 0
	}
	if rule.Kind == None {
		return 1
	}
	it := newIterator(rule, start)
	n := it.indexOnOrAfter(d)
	if c, ok := rule.end().(AfterCount); ok && n > c.Count {
		return c.Count
	}
	if od, ok := rule.end().(OnDate); ok {
		for n > 0 && it.nth(n-1).After(DateOf(od.Date, time.UTC)) {
			n--
		}
	}
	return n
}

// LastDate returns the final occurrence of a bounded series. ok is false
// for series that never end.
func LastDate(rule Rule, start time.Time) (last time.Time, ok bool) {
	start = DateOf(start, time.UTC)
	if rule.Kind == None {
		return start, true
	}
	it := newIterator(rule, start)
	if it.interval < 1 {
		return time.Time{}, false
	}
	// A zero last date means the series produces nothing at all.
	switch e := rule.end().(type) {
	case AfterCount:
		if e.Count < 1 {
			return time.Time{}, true
		}
		return it.nth(e.Count - 1), true
	case OnDate:
		n := it.indexOnOrAfter(AddDays(DateOf(e.Date, time.UTC), 1))
		if n == 0 {
			return time.Time{}, true
		}
		return it.nth(n - 1), true
	}
	return time.Time{}, false
}

// CouldIntersect is a cheap prefilter: it reports false only when the series
// certainly has no occurrence on or after from.
func CouldIntersect(rule Rule, start, from time.Time) bool {
	last, bounded := LastDate(rule, start)
	if !bounded {
		return true
	}
	return !last.Before(DateOf(from, time.UTC))
}

type iterator struct {
	rule     Rule
	start    time.Time
	interval int
	anchor   int
}

func newIterator(rule Rule, start time.Time) *iterator {
	anchor := rule.AnchorDay
	if anchor == 0 {
		anchor = start.Day()
	}
	return &iterator{
		rule:     rule,
		start:    start,
		interval: rule.interval(),
		anchor:   anchor,
	}
}

// nth returns the n-th step of the series (n = 0 is the start date).
func (it *iterator) nth(n int) time.Time {
	if n == 0 {
		return it.start
	}
	switch it.rule.Kind {
	case Daily:
		return it.start.AddDate(0, 0, n*it.interval)
	case Weekly:
		return it.start.AddDate(0, 0, 7*n*it.interval)
	case Monthly:
		total := int(it.start.Month()) - 1 + n*it.interval
		year := it.start.Year() + floorDiv(total, 12)
		month := time.Month(total - floorDiv(total, 12)*12 + 1)
		return clamped(year, month, it.anchor)
	case Yearly:
		return clamped(it.start.Year()+n*it.interval, it.start.Month(), it.anchor)
	}
	return it.start
}

// indexOnOrAfter returns the smallest step index whose date is not before d.
// For non-positive intervals it returns 0 and lets the caller's guard stop.
func (it *iterator) indexOnOrAfter(d time.Time) int {
	if it.interval < 1 || !it.start.Before(d) {
		return 0
	}
	var n int
	switch it.rule.Kind {
	case Daily:
		n = ceilDiv(daysBetween(it.start, d), it.interval)
	case Weekly:
		n = ceilDiv(daysBetween(it.start, d), 7*it.interval)
	case Monthly:
		months := (d.Year()-it.start.Year())*12 + int(d.Month()) - int(it.start.Month())
		n = months / it.interval
	case Yearly:
		n = (d.Year() - it.start.Year()) / it.interval
	default:
		return 0
	}
	for n > 0 && !it.nth(n-1).Before(d) {
		n--
	}
	for it.nth(n).Before(d) {
		n++
	}
	return n
}

// inBounds reports whether step n is within the rule's own end condition.
func (it *iterator) inBounds(n int) bool {
	switch e := it.rule.end().(type) {
	case AfterCount:
		return n < e.Count
	case OnDate:
		return !it.nth(n).After(DateOf(e.Date, time.UTC))
	}
	return true
}

func clamped(year int, month time.Month, day int) time.Time {
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
