package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/recurrence"
	"github.com/samber/mo"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps calendar errors onto HTTP statuses. Anything unexpected is
// logged and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr *calendar.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, calendar.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, calendar.ErrScopeConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// familyParam reads {family} from the path and checks it is the caller's
// family. Other families are reported as not found.
func familyParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("family"), 10, 64)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid family id")
		return 0, false
	}
	if id != auth.FamilyID(r.Context()) {
		writeMessage(w, http.StatusNotFound, "family not found")
		return 0, false
	}
	return id, true
}

// dateQuery parses an optional YYYY-MM-DD query parameter.
func dateQuery(r *http.Request, name string) (mo.Option[time.Time], error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return mo.None[time.Time](), nil
	}
	d, err := recurrence.ParseDate(s)
	if err != nil {
		return mo.None[time.Time](), &calendar.ValidationError{Field: name, Message: "must be a date (YYYY-MM-DD)"}
	}
	return mo.Some(d), nil
}

func int64Query(r *http.Request, name string) (mo.Option[int64], error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return mo.None[int64](), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return mo.None[int64](), &calendar.ValidationError{Field: name, Message: "must be an integer id"}
	}
	return mo.Some(n), nil
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
