package handler

import (
	"context"
	"net/http"
	"reflect"
	"testing"

	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
)

func weeklyTask() map[string]any {
	return map[string]any{
		"title":         "Vacuum",
		"start":         "2024-01-01T10:00:00Z",
		"end":           "2024-01-01T11:00:00Z",
		"is_task":       true,
		"reward_points": 5,
		"recurrence": map[string]any{
			"kind":     "WEEKLY",
			"interval": 1,
			"end":      map[string]any{"type": "after_count", "count": 3},
		},
	}
}

func (e *testEnv) listDates(t *testing.T, from, to string) []string {
	t.Helper()
	rec := e.do(t, e.parent, "GET", familyPath(e.family.ID, "/occurrences?from="+from+"&to="+to), nil)
	wantStatus(t, rec, http.StatusOK)
	return dates(decodeBody[pageDTO](t, rec))
}

func TestCreateAndGetEvent(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())

	rec := e.do(t, e.child, "GET", "/api/events/"+itoa(id), nil)
	wantStatus(t, rec, http.StatusOK)
	ev := decodeBody[model.Event](t, rec)
	if ev.Title != "Vacuum" || !ev.IsTask || ev.RewardPoints != 5 {
		t.Errorf("event = %+v", ev)
	}
	if got, ok := ev.CreatedBy.Get(); !ok || got != e.parent.ID {
		t.Errorf("created_by = %v, want %d", ev.CreatedBy, e.parent.ID)
	}
	if got := ev.Recurrence.String(); got != "FREQ=WEEKLY;COUNT=3" {
		t.Errorf("recurrence = %q", got)
	}

	got := e.listDates(t, "2024-01-01", "2024-01-31")
	want := []string{"2024-01-01", "2024-01-08", "2024-01-15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dates = %v, want %v", got, want)
	}
}

func TestCreateEventValidation(t *testing.T) {
	e := setupEnv(t)
	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"missing title", map[string]any{"start": "2024-01-01T10:00:00Z"}, "title"},
		{"missing start", map[string]any{"title": "x"}, "start"},
		{"bad start", map[string]any{"title": "x", "start": "tomorrow"}, "start"},
		{"end before start", map[string]any{"title": "x", "start": "2024-01-02T10:00:00Z", "end": "2024-01-01T10:00:00Z"}, "end"},
		{"bad interval", map[string]any{"title": "x", "start": "2024-01-01T10:00:00Z", "recurrence": map[string]any{"kind": "DAILY", "interval": -2}}, "recurrence"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, e.parent, "POST", familyPath(e.family.ID, "/events"), tt.body)
			wantStatus(t, rec, http.StatusBadRequest)
			body := decodeBody[map[string]string](t, rec)
			if body["field"] != tt.field {
				t.Errorf("field = %q, want %q", body["field"], tt.field)
			}
		})
	}
}

func TestCreateAllDaySpan(t *testing.T) {
	e := setupEnv(t)
	e.createEvent(t, map[string]any{"title": "Ski trip", "start": "2024-01-10", "end": "2024-01-12", "all_day": true})

	got := e.listDates(t, "2024-01-01", "2024-01-31")
	want := []string{"2024-01-10", "2024-01-11", "2024-01-12"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dates = %v, want %v", got, want)
	}
}

func TestUpdateThisAndFollowing(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())

	body := weeklyTask()
	body["start"] = "2024-01-08T12:00:00Z"
	body["end"] = "2024-01-08T13:00:00Z"
	delete(body, "recurrence")
	rec := e.do(t, e.parent, "PUT", "/api/events/"+itoa(id)+"?scope=THIS_AND_FOLLOWING&date=2024-01-08", body)
	wantStatus(t, rec, http.StatusOK)
	resp := decodeBody[struct {
		Events []model.Event `json:"events"`
	}](t, rec)
	if len(resp.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(resp.Events))
	}

	got := e.listDates(t, "2024-01-01", "2024-01-31")
	want := []string{"2024-01-01", "2024-01-08", "2024-01-15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dates = %v, want %v", got, want)
	}
}

func TestUpdateThisOccurrence(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())

	body := weeklyTask()
	body["title"] = "Vacuum upstairs"
	body["start"] = "2024-01-09T10:00:00Z"
	body["end"] = "2024-01-09T11:00:00Z"
	rec := e.do(t, e.parent, "PUT", "/api/events/"+itoa(id)+"?scope=this&date=2024-01-08", body)
	wantStatus(t, rec, http.StatusOK)

	rec = e.do(t, e.parent, "GET", familyPath(e.family.ID, "/occurrences?from=2024-01-01&to=2024-01-31"), nil)
	wantStatus(t, rec, http.StatusOK)
	page := decodeBody[pageDTO](t, rec)
	if len(page.Occurrences) != 3 {
		t.Fatalf("occurrences = %d, want 3", len(page.Occurrences))
	}
	mod := page.Occurrences[1]
	if mod.Date != "2024-01-08" || mod.Title != "Vacuum upstairs" || mod.EventID != id {
		t.Errorf("modified occurrence = %+v", mod)
	}
}

func TestUpdateScopeErrors(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())
	body := weeklyTask()

	rec := e.do(t, e.parent, "PUT", "/api/events/"+itoa(id)+"?scope=SOMETIMES&date=2024-01-08", body)
	wantStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, e.parent, "PUT", "/api/events/"+itoa(id)+"?scope=THIS&date=2024-01-09", body)
	wantStatus(t, rec, http.StatusConflict)

	rec = e.do(t, e.parent, "PUT", "/api/events/"+itoa(id)+"?scope=THIS", body)
	wantStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, e.parent, "PUT", "/api/events/"+itoa(id)+"?scope=THIS&date=08-01-2024", body)
	wantStatus(t, rec, http.StatusBadRequest)

	rec = e.do(t, e.parent, "PUT", "/api/events/999?scope=ALL&date=2024-01-08", body)
	wantStatus(t, rec, http.StatusNotFound)
}

func TestDeleteThisOccurrence(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())

	rec := e.do(t, e.parent, "DELETE", "/api/events/"+itoa(id)+"?scope=THIS&date=2024-01-08", nil)
	wantStatus(t, rec, http.StatusNoContent)

	got := e.listDates(t, "2024-01-01", "2024-01-31")
	want := []string{"2024-01-01", "2024-01-15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dates = %v, want %v", got, want)
	}

	rec = e.do(t, e.parent, "DELETE", "/api/events/"+itoa(id), nil)
	wantStatus(t, rec, http.StatusNoContent)
	rec = e.do(t, e.parent, "GET", "/api/events/"+itoa(id), nil)
	wantStatus(t, rec, http.StatusNotFound)
}

func TestEventsAreScopedToFamily(t *testing.T) {
	e := setupEnv(t)
	id := e.createEvent(t, weeklyTask())

	outsider, err := e.members.Create(context.Background(), e.other.ID, "Olle", "", "", model.RoleParent)
	if err != nil {
		t.Fatalf("create outsider: %v", err)
	}

	wantStatus(t, e.do(t, outsider, "GET", "/api/events/"+itoa(id), nil), http.StatusNotFound)
	wantStatus(t, e.do(t, outsider, "DELETE", "/api/events/"+itoa(id), nil), http.StatusNotFound)
	wantStatus(t, e.do(t, outsider, "GET", familyPath(e.family.ID, "/occurrences"), nil), http.StatusNotFound)
	wantStatus(t, e.do(t, outsider, "POST", familyPath(e.family.ID, "/events"), weeklyTask()), http.StatusNotFound)
}
