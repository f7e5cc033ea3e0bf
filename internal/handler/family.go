package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/patrikBLMelander/familyApp-sub002/internal/websocket"
)

type FamilyHandler struct {
	store  *store.FamilyStore
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewFamilyHandler(s *store.FamilyStore, hub *websocket.Hub, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{store: s, hub: hub, logger: logger}
}

func (h *FamilyHandler) Get(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}
	family, err := h.store.GetByID(r.Context(), familyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if family == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}
	writeJSON(w, http.StatusOK, family)
}

// Update renames the family or moves it to another time zone.
func (h *FamilyHandler) Update(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}
	existing, err := h.store.GetByID(r.Context(), familyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if existing == nil {
		writeMessage(w, http.StatusNotFound, "family not found")
		return
	}

	var req struct {
		Name     string `json:"name"`
		Timezone string `json:"timezone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		req.Name = existing.Name
	}
	if req.Timezone == "" {
		req.Timezone = existing.Timezone
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown time zone", "field": "timezone"})
		return
	}

	family, err := h.store.Update(r.Context(), familyID, req.Name, req.Timezone)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage(familyID, "family", "updated", familyID))
	}
	writeJSON(w, http.StatusOK, family)
}
