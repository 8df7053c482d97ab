package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"taskcal/internal/app"
	"taskcal/internal/civil"
	"taskcal/internal/clock"
	"taskcal/internal/config"
	"taskcal/internal/ics"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/planner"
	"taskcal/internal/recurrence"
	"taskcal/internal/section"
	"taskcal/internal/store"
)

// Server exposes the board and the recurrence engine over HTTP.
type Server struct {
	cfg *config.Config
	svc *app.Service
	mux *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, svc *app.Service) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/board", s.handleBoard)
	s.mux.HandleFunc("GET /api/next", s.handleNext)
	s.mux.HandleFunc("GET /api/rules", s.handleRules)
	s.mux.HandleFunc("GET /api/recurring.ics", s.handleRecurringICS)
	s.mux.HandleFunc("POST /api/materialize", s.handleMaterialize)
	s.mux.HandleFunc("POST /api/sync", s.handleSync)
	s.mux.HandleFunc("POST /api/tasks/{id}/section", s.handleOverrideSection)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured with both
// a username and a password.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="taskcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve runs the HTTP server on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func Serve(ctx context.Context, cfg *config.Config, svc *app.Service) error {
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewServer(cfg, svc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// boardResponse is the JSON response shape for /api/board.
type boardResponse struct {
	Date    civil.Date   `json:"date"`
	Weekend bool         `json:"weekend"`
	Tasks   []model.Task `json:"tasks"`
}

// handleBoard returns the ordered tasks of one date.
//
// GET /api/board?date=2026-01-16
//   - date: defaults to today (with rollover if configured)
func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}
	tasks, err := s.svc.Planner.Board(r.Context(), day)
	if err != nil {
		appLog.Error("api board failed", err, "date", day)
		writeError(w, http.StatusInternalServerError, "failed to load board")
		return
	}
	writeJSON(w, http.StatusOK, boardResponse{
		Date:    day,
		Weekend: planner.IsWeekend(day),
		Tasks:   tasks,
	})
}

type nextResponse struct {
	Rule  string     `json:"rule"`
	Basis civil.Date `json:"basis"`
	Next  civil.Date `json:"next"`
}

// handleNext evaluates a rule label against a basis date.
//
// GET /api/next?rule=毎月2日&basis=2026-01-03
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	rule, err := recurrence.FromLabel(r.URL.Query().Get("rule"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	basis, ok := s.dateParam(w, r, "basis")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, nextResponse{
		Rule:  rule.Label(),
		Basis: basis,
		Next:  recurrence.Next(rule, basis),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"rules": recurrence.Labels()})
}

// handleRecurringICS publishes recurring definitions as an iCalendar feed.
func (s *Server) handleRecurringICS(w http.ResponseWriter, r *http.Request) {
	defs, err := s.svc.Definitions(r.Context())
	if err != nil {
		appLog.Error("api recurring.ics failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load definitions")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics.ExportRecurring(defs, s.svc.Clock.Now())))
}

type materializeResponse struct {
	Target  civil.Date   `json:"target"`
	Created []model.Task `json:"created"`
	Skipped []string     `json:"skipped,omitempty"`
}

// handleMaterialize runs recurring generation on demand.
//
// POST /api/materialize?tomorrow=1
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	forTomorrow := parseBoolDefault(r.URL.Query().Get("tomorrow"), false)
	res, err := s.svc.Materialize(r.Context(), forTomorrow)
	if err != nil {
		appLog.Error("api materialize failed", err)
		writeError(w, http.StatusInternalServerError, "failed to materialize")
		return
	}
	writeJSON(w, http.StatusOK, materializeResponse{
		Target:  res.Target,
		Created: nonNil(res.Created),
		Skipped: res.Skipped,
	})
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	day, ok := s.dateParam(w, r, "date")
	if !ok {
		return
	}
	tasks, err := s.svc.SyncCalendars(r.Context(), day)
	if err != nil {
		appLog.Error("api sync failed", err, "date", day)
		writeError(w, http.StatusBadGateway, "calendar sync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": day, "tasks": nonNil(tasks)})
}

// handleOverrideSection pins a task to another section.
//
// POST /api/tasks/{id}/section?section=E
func (s *Server) handleOverrideSection(w http.ResponseWriter, r *http.Request) {
	sec, err := section.Parse(r.URL.Query().Get("section"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.svc.Planner.OverrideSection(r.Context(), r.PathValue("id"), sec)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, task)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	default:
		appLog.Error("api override section failed", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
	}
}

// dateParam reads a YYYY-MM-DD query parameter, defaulting to today. It writes
// a 400 and returns false on malformed input.
func (s *Server) dateParam(w http.ResponseWriter, r *http.Request, name string) (civil.Date, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return clock.Today(s.svc.Clock, s.svc.Rollover), true
	}
	d, err := civil.ParseDate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name+": expected YYYY-MM-DD")
		return civil.Date{}, false
	}
	return d, true
}

func parseBoolDefault(s string, def bool) bool {
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
