// Package calendar implements the write side of the family calendar:
// creating events, scoped edits and deletes of recurring series, and the
// completion ledger service.
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

// Editor applies event mutations. Each call runs in one transaction.
type Editor struct {
	db     store.DBTX
	logger *slog.Logger
}

func NewEditor(db store.DBTX, logger *slog.Logger) *Editor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Editor{db: db, logger: logger.With("component", "editor")}
}

// txStores groups the stores bound to one transaction.
type txStores struct {
	families    *store.FamilyStore
	members     *store.FamilyMemberStore
	events      *store.EventStore
	exceptions  *store.ExceptionStore
	completions *store.CompletionStore
}

func bind(tx store.DBTX) txStores {
	return txStores{
		families:    store.NewFamilyStore(tx),
		members:     store.NewFamilyMemberStore(tx),
		events:      store.NewEventStore(tx),
		exceptions:  store.NewExceptionStore(tx),
		completions: store.NewCompletionStore(tx),
	}
}

// Create adds a new event to a family. Timed events without an end get
// DefaultEnd.
func (ed *Editor) Create(ctx context.Context, familyID int64, createdBy mo.Option[int64], f Fields) (*model.Event, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	if f.End.IsAbsent() && !f.AllDay {
		f.End = mo.Some(DefaultEnd(f.Start))
	}

	var created *model.Event
	err := store.InTx(ctx, ed.db, func(tx store.DBTX) error {
		s := bind(tx)
		family, err := s.families.GetByID(ctx, familyID)
		if err != nil {
			return err
		}
		if family == nil {
			return notFound("family", familyID)
		}
		loc := family.Location()
		if err := s.checkParticipants(ctx, familyID, f.Participants); err != nil {
			return err
		}

		e := model.Event{FamilyID: familyID, CreatedBy: createdBy, Recurrence: recurrence.NoRecurrence()}
		f.apply(&e)
		if rule, ok := f.Recurrence.Get(); ok {
			rule = rule.Normalize()
			if err := validateRule(rule, recurrence.DateOf(f.Start, loc)); err != nil {
				return err
			}
			e.Recurrence = rule
		}

		created, err = s.events.Create(ctx, &e)
		return err
	})
	if err != nil {
		return nil, err
	}
	ed.logger.Info("event created", "event_id", created.ID, "family_id", familyID, "rule", created.Recurrence.String())
	return created, nil
}

// Update edits an event. For recurring events scope and date pick the
// occurrences affected; without a scope, or for one-off events, the event is
// updated as a whole. The returned events are the rows written: the override
// for THIS, the truncated master and the new series for THIS_AND_FOLLOWING,
// and the master otherwise.
func (ed *Editor) Update(ctx context.Context, id int64, f Fields, scope Scope, date mo.Option[time.Time]) ([]model.Event, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	var out []model.Event
	err := store.InTx(ctx, ed.db, func(tx store.DBTX) error {
		s := bind(tx)
		master, loc, err := s.loadMaster(ctx, id)
		if err != nil {
			return err
		}
		if err := s.checkParticipants(ctx, master.FamilyID, f.Participants); err != nil {
			return err
		}

		if !master.Recurrence.IsRecurring() || scope == ScopeNone {
			e, err := s.updateAll(ctx, master, f, mo.None[time.Time](), loc)
			if err != nil {
				return err
			}
			out = []model.Event{*e}
			return nil
		}

		d, err := requireDate(scope, date)
		if err != nil {
			return err
		}
		startDate := recurrence.DateOf(master.StartTime, loc)

		switch scope {
		case ScopeThis:
			if !recurrence.Occurs(master.Recurrence, startDate, d) {
				return conflict("%s is not an occurrence of event %d", recurrence.FormatDate(d), id)
			}
			override := f.onDate(d, loc)
			override.FamilyID = master.FamilyID
			override.CreatedBy = master.CreatedBy
			override.IsOverride = true
			override.Recurrence = recurrence.NoRecurrence()
			o, err := s.events.Create(ctx, &override)
			if err != nil {
				return err
			}
			if _, err := s.exceptions.Replace(ctx, master.ID, d, mo.Some(o.ID)); err != nil {
				return err
			}
			out = []model.Event{*o}

		case ScopeThisAndFollowing:
			if err := s.checkEffective(ctx, master, startDate, d); err != nil {
				return err
			}
			if d.Equal(startDate) {
				e, err := s.updateAll(ctx, master, f, date, loc)
				if err != nil {
					return err
				}
				out = []model.Event{*e}
				return nil
			}
			events, err := s.split(ctx, master, f, startDate, d, loc)
			if err != nil {
				return err
			}
			out = events

		case ScopeAll:
			e, err := s.updateAll(ctx, master, f, date, loc)
			if err != nil {
				return err
			}
			out = []model.Event{*e}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ScopeEdits.WithLabelValues(scopeLabel(scope), "update").Inc()
	ed.logger.Info("event updated", "event_id", id, "scope", scopeLabel(scope), "date", formatOptDate(date), "rows", len(out))
	return out, nil
}

// Delete removes an event or some of its occurrences.
func (ed *Editor) Delete(ctx context.Context, id int64, scope Scope, date mo.Option[time.Time]) error {
	err := store.InTx(ctx, ed.db, func(tx store.DBTX) error {
		s := bind(tx)
		master, loc, err := s.loadMaster(ctx, id)
		if err != nil {
			return err
		}

		if !master.Recurrence.IsRecurring() || scope == ScopeNone || scope == ScopeAll {
			return s.deleteAll(ctx, master.ID)
		}

		d, err := requireDate(scope, date)
		if err != nil {
			return err
		}
		startDate := recurrence.DateOf(master.StartTime, loc)

		switch scope {
		case ScopeThis:
			if !recurrence.Occurs(master.Recurrence, startDate, d) {
				return conflict("%s is not an occurrence of event %d", recurrence.FormatDate(d), id)
			}
			if _, err := s.exceptions.Replace(ctx, master.ID, d, mo.None[int64]()); err != nil {
				return err
			}
			return s.completions.DeleteOn(ctx, master.ID, d)

		case ScopeThisAndFollowing:
			if err := s.checkEffective(ctx, master, startDate, d); err != nil {
				return err
			}
			if d.Equal(startDate) {
				return s.deleteAll(ctx, master.ID)
			}
			if err := s.truncate(ctx, master, d); err != nil {
				return err
			}
			return s.completions.DeleteFrom(ctx, master.ID, d)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.ScopeEdits.WithLabelValues(scopeLabel(scope), "delete").Inc()
	ed.logger.Info("event deleted", "event_id", id, "scope", scopeLabel(scope), "date", formatOptDate(date))
	return nil
}

func (s txStores) loadMaster(ctx context.Context, id int64) (*model.Event, *time.Location, error) {
	master, err := s.events.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if master == nil || master.IsOverride {
		return nil, nil, notFound("event", id)
	}
	family, err := s.families.GetByID(ctx, master.FamilyID)
	if err != nil {
		return nil, nil, err
	}
	if family == nil {
		return nil, nil, notFound("family", master.FamilyID)
	}
	return master, family.Location(), nil
}

func (s txStores) checkParticipants(ctx context.Context, familyID int64, ids []int64) error {
	for _, id := range ids {
		m, err := s.members.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if m == nil || m.FamilyID != familyID {
			return invalid("participants", "member %d is not in this family", id)
		}
	}
	return nil
}

// checkEffective requires d to be an occurrence that has not been deleted.
func (s txStores) checkEffective(ctx context.Context, master *model.Event, startDate, d time.Time) error {
	if !recurrence.Occurs(master.Recurrence, startDate, d) {
		return conflict("%s is not an occurrence of event %d", recurrence.FormatDate(d), master.ID)
	}
	x, err := s.exceptions.GetByEventAndDate(ctx, master.ID, d)
	if err != nil {
		return err
	}
	if x != nil && x.IsTombstone() {
		return conflict("occurrence %s of event %d was deleted", recurrence.FormatDate(d), master.ID)
	}
	return nil
}

// updateAll edits the master in place. Existing exceptions stay in force.
// When the edit was made from occurrence date d, the start moves by as many
// days as the edited start lies from d, keeping the series' own start date
// otherwise.
func (s txStores) updateAll(ctx context.Context, master *model.Event, f Fields, date mo.Option[time.Time], loc *time.Location) (*model.Event, error) {
	e := *master
	f.apply(&e)

	if d, ok := date.Get(); ok && master.Recurrence.IsRecurring() {
		shift := daysApart(d, recurrence.DateOf(f.Start, loc))
		moved := f.onDate(recurrence.AddDays(recurrence.DateOf(master.StartTime, loc), shift), loc)
		e.StartTime = moved.StartTime
		e.EndTime = moved.EndTime
	}

	if rule, ok := f.Recurrence.Get(); ok {
		e.Recurrence = rule.Normalize()
	}
	if err := validateRule(e.Recurrence, recurrence.DateOf(e.StartTime, loc)); err != nil {
		return nil, err
	}
	return s.events.Update(ctx, &e)
}

// split ends the master the day before d and starts a new series carrying
// the edited fields. The new series starts on d moved by as many days as the
// edited start lies from d, so an edit can move the rest of the series to
// another weekday. Completions from d on follow the new series only when it
// keeps the same dates.
func (s txStores) split(ctx context.Context, master *model.Event, f Fields, startDate, d time.Time, loc *time.Location) ([]model.Event, error) {
	shift := daysApart(d, recurrence.DateOf(f.Start, loc))
	nextStart := recurrence.AddDays(d, shift)

	rule := followingRule(master.Recurrence, f.Recurrence, startDate, d)
	if shift != 0 {
		rule.AnchorDay = 0
	}
	if err := validateRule(rule, nextStart); err != nil {
		return nil, err
	}

	if err := s.truncate(ctx, master, d); err != nil {
		return nil, err
	}

	next := f.onDate(nextStart, loc)
	next.FamilyID = master.FamilyID
	next.CreatedBy = master.CreatedBy
	next.Recurrence = rule
	created, err := s.events.Create(ctx, &next)
	if err != nil {
		return nil, err
	}

	if shift == 0 {
		if _, err := s.completions.Reassign(ctx, master.ID, created.ID, d); err != nil {
			return nil, err
		}
	} else if err := s.completions.DeleteFrom(ctx, master.ID, d); err != nil {
		return nil, err
	}

	truncated, err := s.events.GetByID(ctx, master.ID)
	if err != nil {
		return nil, err
	}
	return []model.Event{*truncated, *created}, nil
}

// truncate makes d - 1 day the master's last possible occurrence and drops
// its exceptions from d on.
func (s txStores) truncate(ctx context.Context, master *model.Event, d time.Time) error {
	rule := master.Recurrence.Normalize()
	rule.End = recurrence.OnDate{Date: recurrence.AddDays(d, -1)}
	if err := s.events.SetRecurrence(ctx, master.ID, rule); err != nil {
		return err
	}
	return s.exceptions.DeleteFrom(ctx, master.ID, d)
}

func (s txStores) deleteAll(ctx context.Context, id int64) error {
	if err := s.exceptions.DeleteOverrides(ctx, id); err != nil {
		return err
	}
	return s.events.Delete(ctx, id)
}

// followingRule is the rule of the series that continues from d. An edited
// rule that differs from the original wins. Otherwise the original carries
// on: an end date stays, a count shrinks by the occurrences already before
// d, and monthly and yearly series keep clamping against their anchor day.
func followingRule(original recurrence.Rule, edited mo.Option[recurrence.Rule], startDate, d time.Time) recurrence.Rule {
	original = original.Normalize()
	if rule, ok := edited.Get(); ok {
		rule = rule.Normalize()
		if rule.Kind != original.Kind || rule.Interval != original.Interval || rule.End != original.End {
			return rule
		}
	}

	next := original
	if c, ok := original.End.(recurrence.AfterCount); ok {
		k := recurrence.CountBefore(original, startDate, d)
		next.End = recurrence.AfterCount{Count: c.Count - k}
	}
	next.AnchorDay = 0
	if original.Kind == recurrence.Monthly || original.Kind == recurrence.Yearly {
		anchor := original.AnchorDay
		if anchor == 0 {
			anchor = startDate.Day()
		}
		if anchor != d.Day() {
			next.AnchorDay = anchor
		}
	}
	return next
}

func requireDate(scope Scope, date mo.Option[time.Time]) (time.Time, error) {
	d, ok := date.Get()
	if !ok {
		return time.Time{}, invalid("date", "is required for scope %s", scope)
	}
	return recurrence.DateOf(d, time.UTC), nil
}

func scopeLabel(scope Scope) string {
	if scope == ScopeNone {
		return "NONE"
	}
	return string(scope)
}

func formatOptDate(date mo.Option[time.Time]) string {
	d, ok := date.Get()
	if !ok {
		return ""
	}
	return recurrence.FormatDate(d)
}
