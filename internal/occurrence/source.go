package occurrence

import (
	"context"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/samber/mo"
)

// StoreSource reads candidates and exceptions from the SQLite stores.
type StoreSource struct {
	Events     *store.EventStore
	Exceptions *store.ExceptionStore
}

func NewStoreSource(db store.DBTX) *StoreSource {
	return &StoreSource{Events: store.NewEventStore(db), Exceptions: store.NewExceptionStore(db)}
}

func (s *StoreSource) ListCandidates(ctx context.Context, familyID int64, from, to time.Time) ([]model.Event, error) {
	return s.Events.ListCandidates(ctx, familyID, from, to)
}

// ListExceptions loads the exceptions of the given events and, in a second
// query, the override rows they point at.
func (s *StoreSource) ListExceptions(ctx context.Context, eventIDs []int64) (map[int64]map[string]Exception, error) {
	rows, err := s.Exceptions.ListByEventIDs(ctx, eventIDs)
	if err != nil {
		return nil, err
	}

	var overrideIDs []int64
	for _, x := range rows {
		if id, ok := x.ModifiedEventID.Get(); ok {
			overrideIDs = append(overrideIDs, id)
		}
	}
	overrides, err := s.Events.ListByIDs(ctx, overrideIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]model.Event, len(overrides))
	for _, o := range overrides {
		byID[o.ID] = o
	}

	out := make(map[int64]map[string]Exception)
	for _, x := range rows {
		ex := Exception{Date: x.OccurrenceDate, Override: mo.None[model.Event]()}
		if id, ok := x.ModifiedEventID.Get(); ok {
			o, found := byID[id]
			if !found {
				// The override row vanished; the exception cascades with it, so
				// the row is mid-deletion. Show the unmodified occurrence.
				continue
			}
			ex.Override = mo.Some(o)
		}
		if out[x.EventID] == nil {
			out[x.EventID] = make(map[string]Exception)
		}
		out[x.EventID][recurrence.FormatDate(x.OccurrenceDate)] = ex
	}
	return out, nil
}
