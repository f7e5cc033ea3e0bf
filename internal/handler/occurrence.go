package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/ics"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/occurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/patrikBLMelander/familyApp-sub002/internal/task"
	"golang.org/x/sync/errgroup"
)

// maxWindowDays bounds a single listing request.
const maxWindowDays = 366

type OccurrenceHandler struct {
	query       *occurrence.Query
	families    *store.FamilyStore
	members     *store.FamilyMemberStore
	completions *store.CompletionStore
	pageDays    int
	now         func() time.Time
	logger      *slog.Logger
}

func NewOccurrenceHandler(q *occurrence.Query, fs *store.FamilyStore, ms *store.FamilyMemberStore, cs *store.CompletionStore, pageDays int, logger *slog.Logger) *OccurrenceHandler {
	if pageDays < 1 {
		pageDays = 14
	}
	return &OccurrenceHandler{
		query:       q,
		families:    fs,
		members:     ms,
		completions: cs,
		pageDays:    pageDays,
		now:         time.Now,
		logger:      logger,
	}
}

type occurrencePage struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Next        string `json:"next"`
	Occurrences any    `json:"occurrences"`
}

// window resolves from/to. Missing bounds default to today in the family's
// zone and one page after from.
func (h *OccurrenceHandler) window(r *http.Request, loc *time.Location, defaultDays int) (time.Time, time.Time, error) {
	fromOpt, err := dateQuery(r, "from")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	toOpt, err := dateQuery(r, "to")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from := fromOpt.OrElse(recurrence.DateOf(h.now(), loc))
	to := toOpt.OrElse(recurrence.AddDays(from, defaultDays-1))
	if to.Before(from) {
		return from, to, &calendar.ValidationError{Field: "to", Message: "must not be before from"}
	}
	if to.Sub(from) >= maxWindowDays*24*time.Hour {
		return from, to, &calendar.ValidationError{Field: "to", Message: "window is longer than a year"}
	}
	return from, to, nil
}

// List serves the occurrences of a family in a window. With member set, the
// list is narrowed to what concerns that member and each task occurrence
// carries the member's completion and status.
func (h *OccurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}
	family, err := h.families.GetByID(r.Context(), familyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if family == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}
	loc := family.Location()

	from, to, err := h.window(r, loc, h.pageDays)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	memberID, err := int64Query(r, "member")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if id, ok := memberID.Get(); ok {
		m, err := h.members.GetByID(r.Context(), id)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if m == nil || m.FamilyID != familyID {
			writeMessage(w, http.StatusNotFound, "member not found")
			return
		}
	}

	var (
		occs        []occurrence.Occurrence
		completions []model.Completion
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		occs, err = h.query.List(ctx, familyID, loc, from, to)
		return err
	})
	if memberID.IsPresent() {
		g.Go(func() error {
			var err error
			completions, err = h.completions.ListByFamilyRange(ctx, familyID, from, to)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	page := occurrencePage{
		From: recurrence.FormatDate(from),
		To:   recurrence.FormatDate(to),
		Next: recurrence.FormatDate(recurrence.AddDays(to, 1)),
	}
	if id, ok := memberID.Get(); ok {
		occs = forMember(occs, id)
		page.Occurrences = task.Decorate(occs, completions, id, recurrence.DateOf(h.now(), loc))
	} else {
		if occs == nil {
			occs = []occurrence.Occurrence{}
		}
		page.Occurrences = occs
	}
	writeJSON(w, http.StatusOK, page)
}

// forMember keeps occurrences the member takes part in. Events without
// participants belong to the whole family.
func forMember(occs []occurrence.Occurrence, memberID int64) []occurrence.Occurrence {
	out := make([]occurrence.Occurrence, 0, len(occs))
	for _, o := range occs {
		if len(o.Event.Participants) == 0 || slices.Contains(o.Event.Participants, memberID) {
			out = append(out, o)
		}
	}
	return out
}

// Calendar serves the family's occurrences as an iCalendar feed. The
// default window is one year starting 30 days ago.
func (h *OccurrenceHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}
	family, err := h.families.GetByID(r.Context(), familyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if family == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}
	loc := family.Location()

	if r.URL.Query().Get("from") == "" {
		q := r.URL.Query()
		q.Set("from", recurrence.FormatDate(recurrence.AddDays(recurrence.DateOf(h.now(), loc), -30)))
		r.URL.RawQuery = q.Encode()
	}
	from, to, err := h.window(r, loc, maxWindowDays)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	occs, err := h.query.List(r.Context(), familyID, loc, from, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	if err := ics.Write(w, family, occs, h.now()); err != nil {
		h.logger.Error("write calendar", "family_id", familyID, "error", err)
	}
}
