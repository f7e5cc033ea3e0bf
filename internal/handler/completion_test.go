package handler

import (
	"net/http"
	"testing"

	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
)

func TestToggleCompletion(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())
	path := "/api/events/" + itoa(id) + "/completions/toggle"

	rec := e.do(t, e.child, "POST", path, map[string]any{"date": "2024-01-08"})
	wantStatus(t, rec, http.StatusOK)
	res := decodeBody[calendar.ToggleResult](t, rec)
	if !res.Completed || res.RewardPoints != 5 {
		t.Errorf("first toggle = %+v, want completed with 5 points", res)
	}

	rec = e.do(t, e.parent, "GET", "/api/events/"+itoa(id)+"/completions?date=2024-01-08", nil)
	wantStatus(t, rec, http.StatusOK)
	list := decodeBody[[]model.Completion](t, rec)
	if len(list) != 1 || list[0].MemberID != e.child.ID {
		t.Errorf("completions = %+v, want one for the child", list)
	}

	rec = e.do(t, e.child, "POST", path, map[string]any{"date": "2024-01-08"})
	wantStatus(t, rec, http.StatusOK)
	if res := decodeBody[calendar.ToggleResult](t, rec); res.Completed {
		t.Error("second toggle should uncomplete")
	}

	rec = e.do(t, e.parent, "GET", "/api/members/"+itoa(e.child.ID)+"/completions", nil)
	wantStatus(t, rec, http.StatusOK)
	if list := decodeBody[[]model.Completion](t, rec); len(list) != 0 {
		t.Errorf("member completions = %d, want 0", len(list))
	}
}

func TestToggleOnBehalf(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())
	path := "/api/events/" + itoa(id) + "/completions/toggle"

	rec := e.do(t, e.child, "POST", path, map[string]any{"date": "2024-01-08", "member_id": e.parent.ID})
	wantStatus(t, rec, http.StatusForbidden)

	rec = e.do(t, e.parent, "POST", path, map[string]any{"date": "2024-01-08", "member_id": e.child.ID})
	wantStatus(t, rec, http.StatusOK)

	rec = e.do(t, e.child, "GET", "/api/members/"+itoa(e.child.ID)+"/completions", nil)
	wantStatus(t, rec, http.StatusOK)
	if list := decodeBody[[]model.Completion](t, rec); len(list) != 1 {
		t.Errorf("child completions = %d, want 1", len(list))
	}
}

func TestToggleErrors(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())
	plain := e.createEvent(t, map[string]any{"title": "Dentist", "start": "2024-01-08T09:00:00Z"})
	path := "/api/events/" + itoa(id) + "/completions/toggle"

	tests := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{"not an occurrence", path, map[string]any{"date": "2024-01-09"}, http.StatusBadRequest},
		{"after the count", path, map[string]any{"date": "2024-01-22"}, http.StatusBadRequest},
		{"bad date", path, map[string]any{"date": "soon"}, http.StatusBadRequest},
		{"not a task", "/api/events/" + itoa(plain) + "/completions/toggle", map[string]any{"date": "2024-01-08"}, http.StatusBadRequest},
		{"unknown event", "/api/events/999/completions/toggle", map[string]any{"date": "2024-01-08"}, http.StatusNotFound},
		{"unknown member", path, map[string]any{"date": "2024-01-08", "member_id": 999}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, e.parent, "POST", tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := e.do(t, e.parent, "GET", "/api/events/"+itoa(id)+"/completions", nil)
	wantStatus(t, rec, http.StatusBadRequest)
}
