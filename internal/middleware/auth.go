package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/model"
)

// MemberLookup resolves the member a token was issued to.
type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*model.FamilyMember, error)
}

// RequireDevice validates the bearer device token and populates auth.Context.
// The role is re-read from the member row so that demoting or removing a
// member takes effect without reissuing tokens.
//
// Browsers cannot set headers on a websocket handshake, so the token may
// also arrive as the access_token query parameter.
func RequireDevice(tokens *auth.TokenManager, members MemberLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := tokens.Validate(bearerToken(r))
			if err != nil {
				unauthorized(w, err.Error())
				return
			}

			member, err := members.GetByID(r.Context(), claims.MemberID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if member == nil || member.FamilyID != claims.FamilyID {
				unauthorized(w, auth.ErrInvalidToken.Error())
				return
			}

			ac := auth.Context{
				FamilyID: member.FamilyID,
				MemberID: member.ID,
				Role:     member.Role,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireParent rejects callers that are not parents.
func RequireParent(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsParent(r.Context()) {
			writeError(w, http.StatusForbidden, "parent role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="familyapp"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
