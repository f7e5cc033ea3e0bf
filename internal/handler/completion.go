package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/patrikBLMelander/familyApp-sub002/internal/websocket"
)

type CompletionHandler struct {
	ledger      *calendar.Ledger
	events      *store.EventStore
	members     *store.FamilyMemberStore
	completions *store.CompletionStore
	hub         *websocket.Hub
	logger      *slog.Logger
}

func NewCompletionHandler(l *calendar.Ledger, es *store.EventStore, ms *store.FamilyMemberStore, cs *store.CompletionStore, hub *websocket.Hub, logger *slog.Logger) *CompletionHandler {
	return &CompletionHandler{ledger: l, events: es, members: ms, completions: cs, hub: hub, logger: logger}
}

func (h *CompletionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// Toggle flips a member's completion of one task occurrence. member_id
// defaults to the caller; children may only toggle their own.
func (h *CompletionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req struct {
		MemberID *int64 `json:"member_id"`
		Date     string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	date, err := recurrence.ParseDate(req.Date)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be a date (YYYY-MM-DD)", "field": "date"})
		return
	}
	memberID := auth.MemberID(r.Context())
	if req.MemberID != nil {
		memberID = *req.MemberID
	}
	if !auth.CanActFor(r.Context(), memberID) {
		writeMessage(w, http.StatusForbidden, "cannot toggle another member's completion")
		return
	}

	ev, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if ev == nil || ev.IsOverride || ev.FamilyID != auth.FamilyID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "event not found")
		return
	}

	res, err := h.ledger.ToggleCompletion(r.Context(), eventID, memberID, date)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	msg := websocket.NewMessage(ev.FamilyID, "completion", "toggled", eventID)
	msg.Date = recurrence.FormatDate(date)
	msg.Extra = map[string]any{"member_id": memberID, "completed": res.Completed}
	h.broadcast(msg)

	writeJSON(w, http.StatusOK, res)
}

// ListByMember returns a member's completions, newest first.
func (h *CompletionHandler) ListByMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	m, err := h.members.GetByID(r.Context(), memberID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if m == nil || m.FamilyID != auth.FamilyID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "member not found")
		return
	}

	completions, err := h.completions.ListByMember(r.Context(), memberID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if completions == nil {
		completions = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}

// ListForEventAndDate returns who has completed one task occurrence.
func (h *CompletionHandler) ListForEventAndDate(w http.ResponseWriter, r *http.Request) {
	eventID, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return
	}
	date, err := dateQuery(r, "date")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	d, ok := date.Get()
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required", "field": "date"})
		return
	}

	ev, err := h.events.GetByID(r.Context(), eventID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if ev == nil || ev.IsOverride || ev.FamilyID != auth.FamilyID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "event not found")
		return
	}

	completions, err := h.completions.ListByEventAndDate(r.Context(), eventID, d)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if completions == nil {
		completions = []model.Completion{}
	}
	writeJSON(w, http.StatusOK, completions)
}
