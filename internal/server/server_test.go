package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/patrikBLMelander/familyApp-sub002/internal/config"
	"github.com/patrikBLMelander/familyApp-sub002/internal/database"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
)

type fixture struct {
	srv    *Server
	ts     *httptest.Server
	family *model.Family
	parent *model.FamilyMember
	child  *model.FamilyMember
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	family, err := store.NewFamilyStore(db).Create(ctx, "Lind", "UTC")
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	members := store.NewFamilyMemberStore(db)
	parent, err := members.Create(ctx, family.ID, "Eva", "", "", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := members.Create(ctx, family.ID, "Max", "", "", model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	cfg := config.Default()
	cfg.TokenSecret = "0123456789abcdef0123456789abcdef"
	srv := New(db, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &fixture{srv: srv, ts: ts, family: family, parent: parent, child: child}
}

func (f *fixture) request(t *testing.T, as *model.FamilyMember, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if as != nil {
		token, err := f.srv.Tokens().Issue(as)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	f := setup(t)

	resp := f.request(t, nil, "GET", "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID on response")
	}

	resp = f.request(t, nil, "GET", "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status = %d", resp.StatusCode)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	f := setup(t)
	resp := f.request(t, nil, "GET", "/api/events/1", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestParentOnlyRoutes(t *testing.T) {
	f := setup(t)
	path := "/api/families/" + itoa(f.family.ID) + "/members"

	resp := f.request(t, f.child, "POST", path, map[string]any{"name": "Lo"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("child create status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
	resp = f.request(t, f.parent, "POST", path, map[string]any{"name": "Lo"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("parent create status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	resp = f.request(t, f.child, "GET", path, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("child list status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestPINVerifyIsRateLimited(t *testing.T) {
	f := setup(t)
	path := "/api/members/" + itoa(f.child.ID) + "/pin"
	if resp := f.request(t, f.child, "POST", path, map[string]any{"pin": "1234"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("set pin status = %d", resp.StatusCode)
	}

	for i := 0; i < pinAttempts; i++ {
		resp := f.request(t, f.parent, "POST", path+"/verify", map[string]any{"pin": "0000"})
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want %d", i+1, resp.StatusCode, http.StatusUnauthorized)
		}
	}
	resp := f.request(t, f.parent, "POST", path+"/verify", map[string]any{"pin": "1234"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status after limit = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
}

func TestEndToEndCompletion(t *testing.T) {
	f := setup(t)
	resp := f.request(t, f.parent, "POST", "/api/families/"+itoa(f.family.ID)+"/events", map[string]any{
		"title":         "Dishes",
		"start":         "2024-03-04T18:00:00Z",
		"is_task":       true,
		"reward_points": 2,
		"recurrence":    map[string]any{"kind": "DAILY", "end": map[string]any{"type": "on_date", "date": "2024-03-31"}},
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var ev struct {
		ID int64 `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}

	toggle := "/api/events/" + itoa(ev.ID) + "/completions/toggle"
	for i, want := range []bool{true, false} {
		resp := f.request(t, f.child, "POST", toggle, map[string]any{"date": "2024-03-10"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("toggle %d status = %d", i+1, resp.StatusCode)
		}
		var res struct {
			Completed    bool `json:"completed"`
			RewardPoints int  `json:"reward_points"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
			t.Fatalf("decode toggle: %v", err)
		}
		if res.Completed != want || res.RewardPoints != 2 {
			t.Errorf("toggle %d = %+v, want completed=%v", i+1, res, want)
		}
	}

	resp = f.request(t, f.parent, "GET", "/metrics", nil)
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "familyapp_completion_toggles_total") {
		t.Error("metrics missing completion toggles")
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
