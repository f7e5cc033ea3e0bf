// Package task derives the per-member status of task occurrences.
package task

import (
	"encoding/json"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/occurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusCompleted      Status = "completed"
	StatusOverdue        Status = "overdue"
	StatusOptionalMissed Status = "optional_missed"
)

// ComputeStatus determines the status of one task occurrence dated date for
// a member, given whether the member has completed it. Required tasks left
// undone in the past are overdue; optional ones are simply missed.
func ComputeStatus(date time.Time, required, completed bool, today time.Time) Status {
	if completed {
		return StatusCompleted
	}
	date = recurrence.DateOf(date, time.UTC)
	today = recurrence.DateOf(today, time.UTC)
	if !date.Before(today) {
		return StatusPending
	}
	if required {
		return StatusOverdue
	}
	return StatusOptionalMissed
}

// Item is an occurrence decorated for one member.
type Item struct {
	occurrence.Occurrence
	Completed bool
	Status    Status // empty for non-task occurrences
}

func (it Item) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(it.Occurrence)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	if fields["completed"], err = json.Marshal(it.Completed); err != nil {
		return nil, err
	}
	if it.Status != "" {
		if fields["status"], err = json.Marshal(it.Status); err != nil {
			return nil, err
		}
	}
	return json.Marshal(fields)
}

// Decorate marks each occurrence with memberID's completion state and, for
// tasks, its status as of today (a calendar date in the family's zone).
func Decorate(occs []occurrence.Occurrence, completions []model.Completion, memberID int64, today time.Time) []Item {
	done := make(map[string]bool, len(completions))
	for _, c := range completions {
		if c.MemberID == memberID {
			done[occurrence.Key(c.EventID, c.OccurrenceDate)] = true
		}
	}

	items := make([]Item, len(occs))
	for i, o := range occs {
		items[i] = Item{Occurrence: o, Completed: done[o.Key]}
		if o.Event.IsTask {
			items[i].Status = ComputeStatus(o.Date, o.Event.IsRequired, items[i].Completed, today)
		}
	}
	return items
}
