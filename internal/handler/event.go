package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/patrikBLMelander/familyApp-sub002/internal/websocket"
	"github.com/samber/mo"
)

type EventHandler struct {
	editor   *calendar.Editor
	events   *store.EventStore
	families *store.FamilyStore
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewEventHandler(editor *calendar.Editor, es *store.EventStore, fs *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *EventHandler {
	return &EventHandler{editor: editor, events: es, families: fs, hub: hub, logger: logger}
}

func (h *EventHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// eventRequest is the body of create and update. Start and end accept
// RFC 3339 timestamps, or plain dates for all-day events. Omitting
// recurrence leaves the rule unchanged on update.
type eventRequest struct {
	Title        string           `json:"title"`
	Description  string           `json:"description"`
	Location     string           `json:"location"`
	Start        string           `json:"start"`
	End          *string          `json:"end"`
	AllDay       bool             `json:"all_day"`
	CategoryID   *int64           `json:"category_id"`
	Participants []int64          `json:"participants"`
	Recurrence   *recurrence.Rule `json:"recurrence"`
	IsTask       bool             `json:"is_task"`
	IsRequired   bool             `json:"is_required"`
	RewardPoints int              `json:"reward_points"`
}

func (req eventRequest) fields(loc *time.Location) (calendar.Fields, error) {
	f := calendar.Fields{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		AllDay:       req.AllDay,
		Participants: req.Participants,
		IsTask:       req.IsTask,
		IsRequired:   req.IsRequired,
		RewardPoints: req.RewardPoints,
	}
	if req.Start == "" {
		return f, &calendar.ValidationError{Field: "start", Message: "is required"}
	}
	start, err := parseTimestamp(req.Start, req.AllDay, loc)
	if err != nil {
		return f, &calendar.ValidationError{Field: "start", Message: err.Error()}
	}
	f.Start = start
	if req.End != nil && *req.End != "" {
		end, err := parseTimestamp(*req.End, req.AllDay, loc)
		if err != nil {
			return f, &calendar.ValidationError{Field: "end", Message: err.Error()}
		}
		f.End = mo.Some(end)
	}
	if req.CategoryID != nil {
		f.CategoryID = mo.Some(*req.CategoryID)
	}
	if req.Recurrence != nil {
		f.Recurrence = mo.Some(*req.Recurrence)
	}
	return f, nil
}

type timestampError struct{}

func (timestampError) Error() string {
	return "must be an RFC 3339 timestamp or a date (YYYY-MM-DD)"
}

// parseTimestamp reads s in loc. All-day values are moved to local midnight.
func parseTimestamp(s string, allDay bool, loc *time.Location) (time.Time, error) {
	if d, err := recurrence.ParseDate(s); err == nil {
		return recurrence.Midnight(d, loc), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, timestampError{}
	}
	if allDay {
		return recurrence.Midnight(recurrence.DateOf(t, loc), loc), nil
	}
	return t, nil
}

// load returns the master event if it belongs to the caller's family.
// Override rows are not addressable on their own.
func (h *EventHandler) load(ctx context.Context, id int64) (*model.Event, *model.Family, error) {
	ev, err := h.events.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if ev == nil || ev.IsOverride || ev.FamilyID != auth.FamilyID(ctx) {
		return nil, nil, fmt.Errorf("event %d: %w", id, calendar.ErrNotFound)
	}
	family, err := h.families.GetByID(ctx, ev.FamilyID)
	if err != nil {
		return nil, nil, err
	}
	if family == nil {
		return nil, nil, fmt.Errorf("family %d: %w", ev.FamilyID, calendar.ErrNotFound)
	}
	return ev, family, nil
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	f, err := req.fields(family.Location())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	ev, err := h.editor.Create(r.Context(), familyID, mo.Some(auth.MemberID(r.Context())), f)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(websocket.NewMessage(familyID, "event", "created", ev.ID))
	writeJSON(w, http.StatusCreated, ev)
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	ev, _, err := h.load(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	scope, date, err := scopeParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_, family, err := h.load(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	f, err := req.fields(family.Location())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	events, err := h.editor.Update(r.Context(), id, f, scope, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(eventMessage(family.ID, "updated", id, date))
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	scope, date, err := scopeParams(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	_, family, err := h.load(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.editor.Delete(r.Context(), id, scope, date); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(eventMessage(family.ID, "deleted", id, date))
	w.WriteHeader(http.StatusNoContent)
}

func scopeParams(r *http.Request) (calendar.Scope, mo.Option[time.Time], error) {
	scope, err := calendar.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		return calendar.ScopeNone, mo.None[time.Time](), err
	}
	date, err := dateQuery(r, "date")
	if err != nil {
		return calendar.ScopeNone, mo.None[time.Time](), err
	}
	return scope, date, nil
}

func eventMessage(familyID int64, action string, id int64, date mo.Option[time.Time]) websocket.Message {
	msg := websocket.NewMessage(familyID, "event", action, id)
	if d, ok := date.Get(); ok {
		msg.Date = recurrence.FormatDate(d)
	}
	return msg
}
