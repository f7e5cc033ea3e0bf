// Package ics renders a family's occurrences as an iCalendar feed.
//
// Every occurrence becomes its own VEVENT. Recurrence rules are not
// exported, so subscribers see exactly the dates this server computes,
// including month-end clamping and per-occurrence changes.
package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/occurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
)

const (
	productID = "-//familyapp//calendar//EN"
	uidDomain = "familyapp"
)

// calendarNamespace derives stable calendar ids from family ids.
var calendarNamespace = uuid.MustParse("6f1c1b0e-3d4a-4c55-9a51-2b7d3c8e9f10")

// UID is the VEVENT uid of the occurrence of eventID on date.
func UID(eventID int64, date time.Time) string {
	return fmt.Sprintf("%d-%s@%s", eventID, recurrence.FormatDate(date), uidDomain)
}

// CalendarID is the stable X-WR-RELCALID of a family's feed.
func CalendarID(familyID int64) string {
	return uuid.NewSHA1(calendarNamespace, []byte(fmt.Sprintf("family:%d", familyID))).String()
}

// Build assembles the calendar for family. stamp is written as DTSTAMP on
// every event.
func Build(family *model.Family, occs []occurrence.Occurrence, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	cal.SetXWRCalName(family.Name)
	cal.SetXWRCalID(CalendarID(family.ID))
	cal.SetXWRTimezone(family.Location().String())

	stamp = stamp.UTC()
	for _, o := range occs {
		addOccurrence(cal, o, stamp)
	}
	return cal
}

func addOccurrence(cal *ical.Calendar, o occurrence.Occurrence, stamp time.Time) {
	ev := cal.AddEvent(UID(o.EventID, o.Date))
	ev.SetDtStampTime(stamp)
	ev.SetSummary(o.Event.Title)
	if o.Event.Description != "" {
		ev.SetDescription(o.Event.Description)
	}
	if o.Event.Location != "" {
		ev.SetLocation(o.Event.Location)
	}

	if o.Event.AllDay {
		days := len(o.Days)
		if days < 1 {
			days = 1
		}
		ev.SetAllDayStartAt(o.Date)
		// DTEND of an all-day event is exclusive.
		ev.SetAllDayEndAt(recurrence.AddDays(o.Date, days))
	} else {
		ev.SetStartAt(o.Start.UTC())
		ev.SetEndAt(o.End.OrElse(o.Start).UTC())
	}

	var categories []string
	if o.Event.IsTask {
		categories = append(categories, "TASK")
		if o.Event.IsRequired {
			categories = append(categories, "REQUIRED")
		}
	}
	if len(categories) > 0 {
		ev.SetProperty(ical.ComponentPropertyCategories, strings.Join(categories, ","))
	}
	if !o.Event.UpdatedAt.IsZero() {
		ev.SetModifiedAt(o.Event.UpdatedAt.UTC())
	}
}

// Write serializes the calendar for family to w.
func Write(w io.Writer, family *model.Family, occs []occurrence.Occurrence, stamp time.Time) error {
	if _, err := io.WriteString(w, Build(family, occs, stamp).Serialize()); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}
