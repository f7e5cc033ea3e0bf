package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/patrikBLMelander/familyApp-sub002/internal/auth"
	"github.com/patrikBLMelander/familyApp-sub002/internal/calendar"
	"github.com/patrikBLMelander/familyApp-sub002/internal/config"
	"github.com/patrikBLMelander/familyApp-sub002/internal/handler"
	"github.com/patrikBLMelander/familyApp-sub002/internal/metrics"
	"github.com/patrikBLMelander/familyApp-sub002/internal/middleware"
	"github.com/patrikBLMelander/familyApp-sub002/internal/occurrence"
	"github.com/patrikBLMelander/familyApp-sub002/internal/store"
	ws "github.com/patrikBLMelander/familyApp-sub002/internal/websocket"
)

// PIN attempts allowed per member and client address.
const (
	pinAttempts = 5
	pinWindow   = 5 * time.Minute
)

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	tokens      *auth.TokenManager
	members     *store.FamilyMemberStore
	familyH     *handler.FamilyHandler
	memberH     *handler.FamilyMemberHandler
	eventH      *handler.EventHandler
	occurrenceH *handler.OccurrenceHandler
	completionH *handler.CompletionHandler
	rateLimiter *middleware.RateLimiter
	logger      *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger)
	tokens := auth.NewTokenManager(cfg.TokenSecret, cfg.TokenTTL)

	familyStore := store.NewFamilyStore(db)
	memberStore := store.NewFamilyMemberStore(db)
	eventStore := store.NewEventStore(db)
	completionStore := store.NewCompletionStore(db)

	query := occurrence.NewQuery(occurrence.NewStoreSource(db), cfg.ExpansionCap, logger)
	editor := calendar.NewEditor(db, logger)
	ledger := calendar.NewLedger(db, logger)

	return &Server{
		db:          db,
		hub:         hub,
		tokens:      tokens,
		members:     memberStore,
		familyH:     handler.NewFamilyHandler(familyStore, hub, logger.With("component", "family")),
		memberH:     handler.NewFamilyMemberHandler(memberStore, tokens, hub, logger.With("component", "family_member")),
		eventH:      handler.NewEventHandler(editor, eventStore, familyStore, hub, logger.With("component", "event")),
		occurrenceH: handler.NewOccurrenceHandler(query, familyStore, memberStore, completionStore, cfg.FeedPageDays, logger.With("component", "occurrence")),
		completionH: handler.NewCompletionHandler(ledger, eventStore, memberStore, completionStore, hub, logger.With("component", "completion")),
		rateLimiter: middleware.NewRateLimiter(),
		logger:      logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// Tokens returns the device token manager.
func (s *Server) Tokens() *auth.TokenManager {
	return s.tokens
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", metrics.Handler())

	// Protected routes, wrapped with RequireDevice
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireDevice(s.tokens, s.members)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestID(middleware.RequestLogger(s.logger.With("component", "http"))(outerMux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) pinLimited(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return "pin:" + r.PathValue("id") + ":" + middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc, pinAttempts, pinWindow)(h).ServeHTTP
}

func parentOnly(h http.HandlerFunc) http.Handler {
	return middleware.RequireParent(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.Handle("GET /ws", ws.HandleWebSocket(s.hub))

	// Family
	mux.HandleFunc("GET /api/families/{family}", s.familyH.Get)
	mux.Handle("PUT /api/families/{family}", parentOnly(s.familyH.Update))

	// Family members
	mux.HandleFunc("GET /api/families/{family}/members", s.memberH.List)
	mux.Handle("POST /api/families/{family}/members", parentOnly(s.memberH.Create))
	mux.Handle("PUT /api/families/{family}/members/sort", parentOnly(s.memberH.UpdateSortOrder))
	mux.Handle("PUT /api/members/{id}", parentOnly(s.memberH.Update))
	mux.Handle("DELETE /api/members/{id}", parentOnly(s.memberH.Delete))

	// PIN routes
	mux.HandleFunc("POST /api/members/{id}/pin", s.memberH.SetPIN)
	mux.HandleFunc("DELETE /api/members/{id}/pin", s.memberH.ClearPIN)
	mux.HandleFunc("POST /api/members/{id}/pin/verify", s.pinLimited(s.memberH.VerifyPIN))

	// Calendar
	mux.HandleFunc("GET /api/families/{family}/occurrences", s.occurrenceH.List)
	mux.HandleFunc("GET /api/families/{family}/calendar.ics", s.occurrenceH.Calendar)
	mux.HandleFunc("POST /api/families/{family}/events", s.eventH.Create)
	mux.HandleFunc("GET /api/events/{id}", s.eventH.Get)
	mux.HandleFunc("PUT /api/events/{id}", s.eventH.Update)
	mux.HandleFunc("DELETE /api/events/{id}", s.eventH.Delete)

	// Completion ledger
	mux.HandleFunc("POST /api/events/{id}/completions/toggle", s.completionH.Toggle)
	mux.HandleFunc("GET /api/events/{id}/completions", s.completionH.ListForEventAndDate)
	mux.HandleFunc("GET /api/members/{id}/completions", s.completionH.ListByMember)
}
