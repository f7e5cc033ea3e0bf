package occurrence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/metrics"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

// EventSource supplies candidate master events and their exceptions.
type EventSource interface {
	// ListCandidates returns master events that may occur between the
	// instants from and to. Override rows must not be returned.
	ListCandidates(ctx context.Context, familyID int64, from, to time.Time) ([]model.Event, error)
	// ListExceptions returns exceptions per event id, keyed by YYYY-MM-DD.
	ListExceptions(ctx context.Context, eventIDs []int64) (map[int64]map[string]Exception, error)
}

// Query lists the effective occurrences of a family's events in a window.
type Query struct {
	source EventSource
	limit  int
	logger *slog.Logger
}

func NewQuery(source EventSource, limit int, logger *slog.Logger) *Query {
	if limit <= 0 {
		limit = recurrence.DefaultCap
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Query{source: source, limit: limit, logger: logger.With("component", "occurrences")}
}

// List returns every effective occurrence that occupies a date in [from, to]
// (calendar dates in loc), sorted by start, then series creation order, then
// date. A multi-day all-day occurrence of a series is returned once, keyed by
// its own date, even when that date lies before from.
func (q *Query) List(ctx context.Context, familyID int64, loc *time.Location, from, to time.Time) ([]Occurrence, error) {
	if loc == nil {
		loc = time.UTC
	}
	from = recurrence.DateOf(from, time.UTC)
	to = recurrence.DateOf(to, time.UTC)
	if to.Before(from) {
		return nil, nil
	}

	windowStart := recurrence.Midnight(from, loc)
	windowEnd := recurrence.Midnight(recurrence.AddDays(to, 1), loc).Add(-time.Nanosecond)
	candidates, err := q.source.ListCandidates(ctx, familyID, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}

	var recurring []model.Event
	var out []Occurrence
	for _, ev := range candidates {
		startDate := recurrence.DateOf(ev.StartTime, loc)
		if !ev.Recurrence.IsRecurring() {
			out = append(out, q.single(ev, startDate, from, to, loc)...)
			continue
		}
		lookback := recurrence.AddDays(from, 1-dayCount(ev, loc))
		if recurrence.CouldIntersect(ev.Recurrence, startDate, lookback) {
			recurring = append(recurring, ev)
		}
	}

	if len(recurring) > 0 {
		ids := make([]int64, len(recurring))
		for i, ev := range recurring {
			ids[i] = ev.ID
		}
		exceptions, err := q.source.ListExceptions(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("list exceptions: %w", err)
		}
		for _, ev := range recurring {
			startDate := recurrence.DateOf(ev.StartTime, loc)
			lookback := recurrence.AddDays(from, 1-longestSpan(ev, exceptions[ev.ID], loc))
			dates, truncated := recurrence.Expand(ev.Recurrence, startDate, lookback, to, q.limit)
			if truncated {
				q.truncated("recurrence", ev, from, to)
			}
			for _, occ := range Resolve(ev, dates, exceptions[ev.ID], loc) {
				if occ.endsBefore(from) {
					continue
				}
				out = append(out, occ)
			}
		}
	}

	return dedupe(sortOccurrences(out)), nil
}

// single expands a one-off event: one occurrence per spanned day for
// all-day events, otherwise its start date.
func (q *Query) single(ev model.Event, startDate, from, to time.Time, loc *time.Location) []Occurrence {
	end := mo.None[time.Time]()
	if t, ok := ev.EndTime.Get(); ok {
		end = mo.Some(recurrence.DateOf(t, loc))
	}
	days, truncated := recurrence.Span(startDate, end, ev.AllDay, q.limit)
	if truncated {
		q.truncated("span", ev, from, to)
	}

	base := place(ev, ev, startDate, loc)
	var out []Occurrence
	for _, d := range days {
		if d.Before(from) || d.After(to) {
			continue
		}
		occ := base
		occ.Key = Key(ev.ID, d)
		occ.Date = d
		out = append(out, occ)
	}
	return out
}

// longestSpan is the most days any occurrence of ev covers, counting the
// overrides among its exceptions.
func longestSpan(ev model.Event, exceptions map[string]Exception, loc *time.Location) int {
	n := dayCount(ev, loc)
	for _, ex := range exceptions {
		if o, ok := ex.Override.Get(); ok {
			n = max(n, dayCount(o, loc))
		}
	}
	return n
}

func (q *Query) truncated(kind string, ev model.Event, from, to time.Time) {
	metrics.ExpansionTruncated.WithLabelValues(kind).Inc()
	q.logger.Warn("expansion truncated by safety cap",
		"kind", kind,
		"event_id", ev.ID,
		"rule", ev.Recurrence.String(),
		"from", recurrence.FormatDate(from),
		"to", recurrence.FormatDate(to),
		"limit", q.limit,
	)
}

func sortOccurrences(occs []Occurrence) []Occurrence {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !a.seriesCreated.Equal(b.seriesCreated) {
			return a.seriesCreated.Before(b.seriesCreated)
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.Date.Before(b.Date)
	})
	return occs
}

func dedupe(occs []Occurrence) []Occurrence {
	seen := make(map[string]bool, len(occs))
	out := occs[:0]
	for _, o := range occs {
		if seen[o.Key] {
			continue
		}
		seen[o.Key] = true
		out = append(out, o)
	}
	return out
}
