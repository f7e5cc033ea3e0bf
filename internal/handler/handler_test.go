package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/database"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/occurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	"github.com/patrikBLMelander/familyApp-sub002/internal/websocket"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testEnv struct {
	mux     *http.ServeMux
	hub     *websocket.Hub
	family  *model.Family
	other   *model.Family
	parent  *model.FamilyMember
	child   *model.FamilyMember
	members *store.FamilyMemberStore
	tokens  *auth.TokenManager
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	families := store.NewFamilyStore(db)
	members := store.NewFamilyMemberStore(db)
	events := store.NewEventStore(db)
	completions := store.NewCompletionStore(db)

	family, err := families.Create(ctx, "Lind", "UTC")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	other, err := families.Create(ctx, "Berg", "UTC")
	if err != nil {
		t.Fatalf("create other family: %v", err)
	}
	parent, err := members.Create(ctx, family.ID, "Eva", "", "", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := members.Create(ctx, family.ID, "Max", "", "", model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	hub := websocket.NewHub(logger)
	tokens := auth.NewTokenManager(testSecret, time.Hour)
	query := occurrence.NewQuery(occurrence.NewStoreSource(db), 0, logger)

	eventH := NewEventHandler(calendar.NewEditor(db, logger), events, families, hub, logger)
	occH := NewOccurrenceHandler(query, families, members, completions, 7, logger)
	occH.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	compH := NewCompletionHandler(calendar.NewLedger(db, logger), events, members, completions, hub, logger)
	memberH := NewFamilyMemberHandler(members, tokens, hub, logger)
	memberH.bcryptCost = bcrypt.MinCost
	familyH := NewFamilyHandler(families, hub, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/families/{family}", familyH.Get)
	mux.HandleFunc("PUT /api/families/{family}", familyH.Update)
	mux.HandleFunc("GET /api/families/{family}/occurrences", occH.List)
	mux.HandleFunc("GET /api/families/{family}/calendar.ics", occH.Calendar)
	mux.HandleFunc("POST /api/families/{family}/events", eventH.Create)
	mux.HandleFunc("GET /api/events/{id}", eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", eventH.Delete)
	mux.HandleFunc("POST /api/events/{id}/completions/toggle", compH.Toggle)
	mux.HandleFunc("GET /api/events/{id}/completions", compH.ListForEventAndDate)
	mux.HandleFunc("GET /api/members/{id}/completions", compH.ListByMember)
	mux.HandleFunc("GET /api/families/{family}/members", memberH.List)
	mux.HandleFunc("POST /api/families/{family}/members", memberH.Create)
	mux.HandleFunc("PUT /api/families/{family}/members/sort", memberH.UpdateSortOrder)
	mux.HandleFunc("PUT /api/members/{id}", memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", memberH.Delete)
	mux.HandleFunc("POST /api/members/{id}/pin", memberH.SetPIN)
	mux.HandleFunc("DELETE /api/members/{id}/pin", memberH.ClearPIN)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", memberH.VerifyPIN)

	return &testEnv{mux: mux, hub: hub, family: family, other: other, parent: parent, child: child, members: members, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, as *model.FamilyMember, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	ctx := auth.WithAuth(r.Context(), auth.Context{FamilyID: as.FamilyID, MemberID: as.ID, Role: as.Role})
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, r.WithContext(ctx))
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, strings.TrimSpace(rec.Body.String()))
	}
}

func (e *testEnv) createEvent(t *testing.T, body map[string]any) int64 {
	t.Helper()
	rec := e.do(t, e.parent, "POST", familyPath(e.family.ID, "/events"), body)
	wantStatus(t, rec, http.StatusCreated)
	return decodeBody[model.Event](t, rec).ID
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func familyPath(id int64, suffix string) string {
	return fmt.Sprintf("/api/families/%d%s", id, suffix)
}

type occurrenceDTO struct {
	Key       string `json:"key"`
	EventID   int64  `json:"event_id"`
	Date      string `json:"date"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Status    string `json:"status"`
}

type pageDTO struct {
	From        string          `json:"from"`
	To          string          `json:"to"`
	Next        string          `json:"next"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

func dates(p pageDTO) []string {
	out := []string{}
	for _, o := range p.Occurrences {
		out = append(out, o.Date)
	}
	return out
}
