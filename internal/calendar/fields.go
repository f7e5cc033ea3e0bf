package calendar

import (
	"strings"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

// Scope selects which occurrences of a recurring event a mutation affects.
type Scope string

const (
	ScopeNone             Scope = ""
	ScopeThis             Scope = "THIS"
	ScopeThisAndFollowing Scope = "THIS_AND_FOLLOWING"
	ScopeAll              Scope = "ALL"
)

func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToUpper(strings.TrimSpace(s))); sc {
	case ScopeNone, ScopeThis, ScopeThisAndFollowing, ScopeAll:
		return sc, nil
	}
	return ScopeNone, invalid("scope", "unknown scope %q", s)
}

// Fields are the user-editable attributes of an event. An absent Recurrence
// leaves the stored rule alone on update and means "does not repeat" on
// create.
type Fields struct {
	Title        string
	Description  string
	Location     string
	Start        time.Time
	End          mo.Option[time.Time]
	AllDay       bool
	CategoryID   mo.Option[int64]
	Participants []int64
	Recurrence   mo.Option[recurrence.Rule]
	IsTask       bool
	IsRequired   bool
	RewardPoints int
}

// DefaultEnd is the end given to a timed event created without one. It can
// fall on the next day.
func DefaultEnd(start time.Time) time.Time {
	return start.Add(time.Hour)
}

func (f Fields) validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return invalid("title", "is required")
	}
	if f.Start.IsZero() {
		return invalid("start", "is required")
	}
	if end, ok := f.End.Get(); ok && end.Before(f.Start) {
		return invalid("end", "must not be before start")
	}
	if f.RewardPoints < 0 {
		return invalid("reward_points", "must not be negative")
	}
	return nil
}

func validateRule(rule recurrence.Rule, start time.Time) error {
	if err := rule.Validate(start); err != nil {
		return invalid("recurrence", "%s", err.Error())
	}
	return nil
}

// apply copies every field except the recurrence rule onto e.
func (f Fields) apply(e *model.Event) {
	e.Title = strings.TrimSpace(f.Title)
	e.Description = f.Description
	e.Location = f.Location
	e.StartTime = f.Start
	e.EndTime = f.End
	e.AllDay = f.AllDay
	e.CategoryID = f.CategoryID
	e.Participants = f.Participants
	e.IsTask = f.IsTask
	e.IsRequired = f.IsRequired
	e.RewardPoints = f.RewardPoints
}

// onDate returns an event carrying f with its time of day and length moved
// to calendar date d.
func (f Fields) onDate(d time.Time, loc *time.Location) model.Event {
	var e model.Event
	f.apply(&e)

	var start time.Time
	if f.AllDay {
		start = recurrence.Midnight(d, loc)
	} else {
		start = recurrence.At(d, f.Start, loc)
	}
	e.StartTime = start

	if end, ok := f.End.Get(); ok {
		if f.AllDay {
			days := daysApart(recurrence.DateOf(f.Start, loc), recurrence.DateOf(end, loc))
			e.EndTime = mo.Some(recurrence.Midnight(recurrence.AddDays(d, days), loc))
		} else {
			e.EndTime = mo.Some(start.Add(end.Sub(f.Start)))
		}
	}
	return e
}

func daysApart(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
