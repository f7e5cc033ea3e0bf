package model

import (
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

// Event is a calendar entry. A recurring event is the master of a series;
// rows with IsOverride set carry the fields of one modified occurrence and
// are only reachable through an Exception.
type Event struct {
	ID           int64                `json:"id"`
	FamilyID     int64                `json:"family_id"`
	Title        string               `json:"title"`
	Description  string               `json:"description"`
	Location     string               `json:"location"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      mo.Option[time.Time] `json:"end_time"`
	AllDay       bool                 `json:"all_day"`
	CategoryID   mo.Option[int64]     `json:"category_id"`
	Participants []int64              `json:"participants"`
	Recurrence   recurrence.Rule      `json:"recurrence"`
	IsTask       bool                 `json:"is_task"`
	IsRequired   bool                 `json:"is_required"`
	RewardPoints int                  `json:"reward_points"`
	CreatedBy    mo.Option[int64]     `json:"created_by"`
	IsOverride   bool                 `json:"-"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Duration is the event's length, zero when it has no end or the stored end
// precedes the start.
func (e Event) Duration() time.Duration {
	end, ok := e.EndTime.Get()
	if !ok || end.Before(e.StartTime) {
		return 0
	}
	return end.Sub(e.StartTime)
}

// Exception overrides one occurrence of a recurring event. Without a
// ModifiedEventID it is a tombstone.
type Exception struct {
	ID              int64            `json:"id"`
	EventID         int64            `json:"event_id"`
	OccurrenceDate  time.Time        `json:"occurrence_date"`
	ModifiedEventID mo.Option[int64] `json:"modified_event_id"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (x Exception) IsTombstone() bool {
	return x.ModifiedEventID.IsAbsent()
}

// Completion records that a member finished a task occurrence.
type Completion struct {
	ID             int64     `json:"id"`
	EventID        int64     `json:"event_id"`
	MemberID       int64     `json:"member_id"`
	OccurrenceDate time.Time `json:"occurrence_date"`
	CompletedAt    time.Time `json:"completed_at"`
}
