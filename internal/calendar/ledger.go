package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/metrics"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/samber/mo"
)

// ToggleResult is the ledger state after a toggle. RewardPoints is the
// task's reward, for the caller to credit or debit.
type ToggleResult struct {
	Completed    bool `json:"completed"`
	RewardPoints int  `json:"reward_points"`
}

// Ledger wraps the completion store with the checks a toggle request needs.
type Ledger struct {
	db     store.DBTX
	logger *slog.Logger
}

func NewLedger(db store.DBTX, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{db: db, logger: logger.With("component", "ledger")}
}

// ToggleCompletion flips whether member has done the task occurrence of
// eventID on date.
func (l *Ledger) ToggleCompletion(ctx context.Context, eventID, memberID int64, date time.Time) (ToggleResult, error) {
	date = recurrence.DateOf(date, time.UTC)
	var res ToggleResult
	err := store.InTx(ctx, l.db, func(tx store.DBTX) error {
		s := bind(tx)
		ev, loc, err := s.loadMaster(ctx, eventID)
		if err != nil {
			return err
		}
		if !ev.IsTask {
			return invalid("event_id", "event %d is not a task", eventID)
		}
		member, err := s.members.GetByID(ctx, memberID)
		if err != nil {
			return err
		}
		if member == nil || member.FamilyID != ev.FamilyID {
			return notFound("member", memberID)
		}
		if !occursOn(*ev, date, loc) {
			return invalid("date", "%s is not an occurrence of event %d", recurrence.FormatDate(date), eventID)
		}
		if ev.Recurrence.IsRecurring() {
			x, err := s.exceptions.GetByEventAndDate(ctx, eventID, date)
			if err != nil {
				return err
			}
			if x != nil && x.IsTombstone() {
				return invalid("date", "occurrence %s of event %d was deleted", recurrence.FormatDate(date), eventID)
			}
		}

		completed, err := s.completions.Toggle(ctx, eventID, memberID, date)
		if err != nil {
			return err
		}
		res = ToggleResult{Completed: completed, RewardPoints: ev.RewardPoints}
		return nil
	})
	if err != nil {
		return ToggleResult{}, err
	}

	metrics.CompletionToggles.WithLabelValues(metrics.ToggleResult(res.Completed)).Inc()
	l.logger.Info("completion toggled",
		"event_id", eventID,
		"member_id", memberID,
		"date", recurrence.FormatDate(date),
		"completed", res.Completed,
	)
	return res, nil
}

// occursOn reports whether date is one of ev's occurrence dates. One-off
// all-day events occur on every day they span.
func occursOn(ev model.Event, date time.Time, loc *time.Location) bool {
	startDate := recurrence.DateOf(ev.StartTime, loc)
	if ev.Recurrence.IsRecurring() {
		return recurrence.Occurs(ev.Recurrence, startDate, date)
	}
	end := mo.None[time.Time]()
	if t, ok := ev.EndTime.Get(); ok {
		end = mo.Some(recurrence.DateOf(t, loc))
	}
	days, _ := recurrence.Span(startDate, end, ev.AllDay, recurrence.DefaultCap)
	for _, d := range days {
		if d.Equal(date) {
			return true
		}
	}
	return false
}
