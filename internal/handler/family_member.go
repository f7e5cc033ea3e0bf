package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/patrikBLMelander/familyApp-sub002/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

var hexColorRegexp = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type FamilyMemberHandler struct {
	store      *store.FamilyMemberStore
	tokens     *auth.TokenManager
	hub        *websocket.Hub
	logger     *slog.Logger
	bcryptCost int
}

func NewFamilyMemberHandler(s *store.FamilyMemberStore, tokens *auth.TokenManager, hub *websocket.Hub, logger *slog.Logger) *FamilyMemberHandler {
	return &FamilyMemberHandler{store: s, tokens: tokens, hub: hub, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

func (h *FamilyMemberHandler) broadcast(familyID int64, action string, id int64) {
	if h.hub != nil {
		h.hub.Broadcast(websocket.NewMessage(familyID, "family_member", action, id))
	}
}

type memberRequest struct {
	Name        string     `json:"name"`
	Color       string     `json:"color"`
	AvatarEmoji string     `json:"avatar_emoji"`
	Role        model.Role `json:"role"`
}

// member loads {id} and checks it belongs to the caller's family.
func (h *FamilyMemberHandler) member(w http.ResponseWriter, r *http.Request) (*model.FamilyMember, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	m, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return nil, false
	}
	if m == nil || m.FamilyID != auth.FamilyID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "family member not found")
		return nil, false
	}
	return m, true
}

func (h *FamilyMemberHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}
	members, err := h.store.List(r.Context(), familyID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if members == nil {
		members = []model.FamilyMember{}
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *FamilyMemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color == "" {
		req.Color = "#3B82F6"
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeMessage(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = "😀"
	}
	if req.Role == "" {
		req.Role = model.RoleChild
	}
	if !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "role must be parent or child")
		return
	}

	exists, err := h.store.NameExists(r.Context(), familyID, req.Name, 0)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if exists {
		writeMessage(w, http.StatusConflict, "a family member with that name already exists")
		return
	}

	member, err := h.store.Create(r.Context(), familyID, req.Name, req.Color, req.AvatarEmoji, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(familyID, "created", member.ID)
	writeJSON(w, http.StatusCreated, member)
}

func (h *FamilyMemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.member(w, r)
	if !ok {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeMessage(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color == "" {
		req.Color = existing.Color
	}
	if !hexColorRegexp.MatchString(req.Color) {
		writeMessage(w, http.StatusBadRequest, "color must be a hex color (e.g. #FF0000)")
		return
	}
	if req.AvatarEmoji == "" {
		req.AvatarEmoji = existing.AvatarEmoji
	}
	if req.Role == "" {
		req.Role = existing.Role
	}
	if !req.Role.Valid() {
		writeMessage(w, http.StatusBadRequest, "role must be parent or child")
		return
	}
	if existing.ID == auth.MemberID(r.Context()) && req.Role != model.RoleParent {
		writeMessage(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	exists, err := h.store.NameExists(r.Context(), existing.FamilyID, req.Name, existing.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if exists {
		writeMessage(w, http.StatusConflict, "a family member with that name already exists")
		return
	}

	member, err := h.store.Update(r.Context(), existing.ID, req.Name, req.Color, req.AvatarEmoji, req.Role)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(existing.FamilyID, "updated", existing.ID)
	writeJSON(w, http.StatusOK, member)
}

func (h *FamilyMemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.member(w, r)
	if !ok {
		return
	}
	if existing.ID == auth.MemberID(r.Context()) {
		writeMessage(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := h.store.Delete(r.Context(), existing.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(existing.FamilyID, "deleted", existing.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyMemberHandler) UpdateSortOrder(w http.ResponseWriter, r *http.Request) {
	familyID, ok := familyParam(w, r)
	if !ok {
		return
	}

	var req struct {
		IDs []int64 `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.IDs) == 0 {
		writeMessage(w, http.StatusBadRequest, "ids are required")
		return
	}

	if err := h.store.UpdateSortOrder(r.Context(), familyID, req.IDs); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.broadcast(familyID, "reordered", 0)
	w.WriteHeader(http.StatusNoContent)
}

func (h *FamilyMemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.member(w, r)
	if !ok {
		return
	}
	if !auth.CanActFor(r.Context(), existing.ID) {
		writeMessage(w, http.StatusForbidden, "cannot change another member's PIN")
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.PIN) != 4 || !isDigits(req.PIN) {
		writeMessage(w, http.StatusBadRequest, "PIN must be exactly 4 digits")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.PIN), h.bcryptCost)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.store.SetPIN(r.Context(), existing.ID, string(hash)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin set"})
}

func (h *FamilyMemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.member(w, r)
	if !ok {
		return
	}
	if !auth.CanActFor(r.Context(), existing.ID) {
		writeMessage(w, http.StatusForbidden, "cannot change another member's PIN")
		return
	}

	if err := h.store.ClearPIN(r.Context(), existing.ID); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "pin cleared"})
}

// VerifyPIN checks a member's PIN. On a shared family device this is how
// someone switches to themselves, so success returns a device token bound
// to that member.
func (h *FamilyMemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.member(w, r)
	if !ok {
		return
	}

	var req struct {
		PIN string `json:"pin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	hash, err := h.store.GetPINHash(r.Context(), existing.ID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if hash == "" {
		writeMessage(w, http.StatusBadRequest, "no PIN set for this member")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.PIN)); err != nil {
		h.logger.Warn("incorrect PIN", "member_id", existing.ID)
		writeMessage(w, http.StatusUnauthorized, "incorrect PIN")
		return
	}

	token, err := h.tokens.Issue(existing)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "verified", "token": token, "member": existing})
}
