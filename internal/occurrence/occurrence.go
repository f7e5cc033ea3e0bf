// Package occurrence turns master events and their exceptions into the
// concrete, dated occurrences a calendar shows.
package occurrence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

// Occurrence is one dated instance of an event with any modification applied.
type Occurrence struct {
	Key      string
	EventID  int64 // the master event, also for modified occurrences
	Date     time.Time
	Start    time.Time
	End      mo.Option[time.Time]
	Days     []time.Time
	Event    model.Event // effective fields
	Modified bool

	seriesCreated time.Time
}

// Key identifies an occurrence across queries.
func Key(eventID int64, date time.Time) string {
	return fmt.Sprintf("%d:%s", eventID, recurrence.FormatDate(date))
}

type occurrenceJSON struct {
	Key          string               `json:"key"`
	EventID      int64                `json:"event_id"`
	Date         string               `json:"date"`
	Start        time.Time            `json:"start"`
	End          mo.Option[time.Time] `json:"end"`
	Days         []string             `json:"days"`
	AllDay       bool                 `json:"all_day"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Location     string               `json:"location"`
	CategoryID   mo.Option[int64]     `json:"category_id"`
	Participants []int64              `json:"participants"`
	Recurrence   recurrence.Rule      `json:"recurrence"`
	IsTask       bool                 `json:"is_task"`
	IsRequired   bool                 `json:"is_required"`
	RewardPoints int                  `json:"reward_points"`
	Modified     bool                 `json:"modified"`
}

func (o Occurrence) MarshalJSON() ([]byte, error) {
	days := make([]string, len(o.Days))
	for i, d := range o.Days {
		days[i] = recurrence.FormatDate(d)
	}
	participants := o.Event.Participants
	if participants == nil {
		participants = []int64{}
	}
	return json.Marshal(occurrenceJSON{
		Key:          o.Key,
		EventID:      o.EventID,
		Date:         recurrence.FormatDate(o.Date),
		Start:        o.Start,
		End:          o.End,
		Days:         days,
		AllDay:       o.Event.AllDay,
		Title:        o.Event.Title,
		Description:  o.Event.Description,
		Location:     o.Event.Location,
		CategoryID:   o.Event.CategoryID,
		Participants: participants,
		Recurrence:   o.Event.Recurrence,
		IsTask:       o.Event.IsTask,
		IsRequired:   o.Event.IsRequired,
		RewardPoints: o.Event.RewardPoints,
		Modified:     o.Modified,
	})
}

// Exception is an exception with its override row loaded. Without an
// Override it is a tombstone.
type Exception struct {
	Date     time.Time
	Override mo.Option[model.Event]
}

// Resolve applies exceptions to the expanded dates of a master event. Dates
// match exactly: a tombstone drops its date and a modification substitutes
// the override's fields while keeping the occurrence date. exceptions is
// keyed by YYYY-MM-DD.
func Resolve(master model.Event, dates []time.Time, exceptions map[string]Exception, loc *time.Location) []Occurrence {
	out := make([]Occurrence, 0, len(dates))
	for _, d := range dates {
		ex, ok := exceptions[recurrence.FormatDate(d)]
		if !ok {
			out = append(out, place(master, master, d, loc))
			continue
		}
		override, ok := ex.Override.Get()
		if !ok {
			continue
		}
		occ := place(master, override, d, loc)
		occ.Modified = true
		out = append(out, occ)
	}
	return out
}

// place puts the time of day and duration of fields onto date d.
func place(master, fields model.Event, d time.Time, loc *time.Location) Occurrence {
	if loc == nil {
		loc = time.UTC
	}
	d = recurrence.DateOf(d, time.UTC)

	var start time.Time
	if fields.AllDay {
		start = recurrence.Midnight(d, loc)
	} else {
		start = recurrence.At(d, fields.StartTime, loc)
	}

	end := mo.None[time.Time]()
	if e, ok := fields.EndTime.Get(); ok {
		if e.Before(fields.StartTime) {
			end = mo.Some(start)
		} else if fields.AllDay {
			// Whole days, so DST shifts between start and end do not matter.
			n := dayCount(fields, loc)
			end = mo.Some(recurrence.Midnight(recurrence.AddDays(d, n-1), loc))
		} else {
			end = mo.Some(start.Add(fields.Duration()))
		}
	}

	n := dayCount(fields, loc)
	days := make([]time.Time, n)
	for i := range days {
		days[i] = recurrence.AddDays(d, i)
	}

	effective := fields
	effective.Recurrence = master.Recurrence
	return Occurrence{
		Key:           Key(master.ID, d),
		EventID:       master.ID,
		Date:          d,
		Start:         start,
		End:           end,
		Days:          days,
		Event:         effective,
		seriesCreated: master.CreatedAt,
	}
}

// endsBefore reports whether the last day the occurrence covers is before d.
func (o Occurrence) endsBefore(d time.Time) bool {
	last := o.Date
	if len(o.Days) > 0 {
		last = o.Days[len(o.Days)-1]
	}
	return last.Before(d)
}

// dayCount is how many calendar days one occurrence of e covers.
func dayCount(e model.Event, loc *time.Location) int {
	end := mo.None[time.Time]()
	if t, ok := e.EndTime.Get(); ok {
		end = mo.Some(recurrence.DateOf(t, loc))
	}
	days, _ := recurrence.Span(recurrence.DateOf(e.StartTime, loc), end, e.AllDay, recurrence.DefaultCap)
	return len(days)
}
