package store

import (
	"context"
	"testing"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

func TestExceptionReplace(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	xs := NewExceptionStore(f.db)
	e := f.createTask(t, "Piano", time.Date(2026, 1, 5, 16, 0, 0, 0, time.UTC), recurrence.Rule{Kind: recurrence.Weekly, Interval: 1})
	d := recurrence.Date(2026, 1, 12)

	override, err := f.events.Create(ctx, &model.Event{FamilyID: f.family.ID, Title: "Piano (late)", StartTime: time.Date(2026, 1, 12, 18, 0, 0, 0, time.UTC), IsOverride: true})
	if err != nil {
		t.Fatalf("create override: %v", err)
	}
	x, err := xs.Replace(ctx, e.ID, d, mo.Some(override.ID))
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if x.IsTombstone() {
		t.Error("expected a modification")
	}
	if !x.OccurrenceDate.Equal(d) {
		t.Errorf("date = %v, want %v", x.OccurrenceDate, d)
	}

	// Replacing with a tombstone drops the old override row.
	x, err = xs.Replace(ctx, e.ID, d, mo.None[int64]())
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if !x.IsTombstone() {
		t.Error("expected a tombstone")
	}
	if got, _ := f.events.GetByID(ctx, override.ID); got != nil {
		t.Error("override row should be deleted")
	}
	if n := countRows(t, f.db, "SELECT COUNT(*) FROM event_exceptions WHERE event_id = ?", e.ID); n != 1 {
		t.Errorf("exceptions = %d, want 1", n)
	}

	got, err := xs.GetByEventAndDate(ctx, e.ID, d)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != x.ID {
		t.Errorf("got %v, want exception %d", got, x.ID)
	}
	missing, err := xs.GetByEventAndDate(ctx, e.ID, recurrence.Date(2026, 1, 19))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for date without exception")
	}
}

func TestExceptionDeleteFrom(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	xs := NewExceptionStore(f.db)
	e := f.createTask(t, "Soccer", time.Date(2026, 1, 1, 17, 0, 0, 0, time.UTC), recurrence.Rule{Kind: recurrence.Daily, Interval: 1})

	for _, day := range []int{2, 5, 8} {
		override, err := f.events.Create(ctx, &model.Event{FamilyID: f.family.ID, Title: "moved", StartTime: time.Date(2026, 1, day, 18, 0, 0, 0, time.UTC), IsOverride: true})
		if err != nil {
			t.Fatalf("create override: %v", err)
		}
		if _, err := xs.Replace(ctx, e.ID, recurrence.Date(2026, 1, day), mo.Some(override.ID)); err != nil {
			t.Fatalf("replace: %v", err)
		}
	}
	if _, err := xs.Replace(ctx, e.ID, recurrence.Date(2026, 1, 6), mo.None[int64]()); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if err := xs.DeleteFrom(ctx, e.ID, recurrence.Date(2026, 1, 5)); err != nil {
		t.Fatalf("delete from: %v", err)
	}

	left, err := xs.ListByEventIDs(ctx, []int64{e.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(left) != 1 || recurrence.FormatDate(left[0].OccurrenceDate) != "2026-01-02" {
		t.Errorf("left = %v, want only 2026-01-02", left)
	}
	if n := countRows(t, f.db, "SELECT COUNT(*) FROM events WHERE is_override = 1"); n != 1 {
		t.Errorf("override rows = %d, want 1", n)
	}
}

func TestExceptionListByEventIDsEmpty(t *testing.T) {
	f := setupFixture(t)
	got, err := NewExceptionStore(f.db).ListByEventIDs(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
