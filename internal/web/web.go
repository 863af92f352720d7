package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tailscale/hujson"

	"calmark/internal/config"
	"calmark/internal/host"
	appLog "calmark/internal/log"
	"calmark/internal/mark"
	"calmark/internal/metrics"
	"calmark/internal/render"
	"calmark/internal/store"
)

const maxMarksBody = 4 << 20

// Server exposes the mark index, the month grid and a few control
// endpoints over HTTP.
type Server struct {
	cfg     *config.Config
	host    *host.Host
	metrics *metrics.Metrics
	loc     *time.Location
	mux     *http.ServeMux

	// now is swapped in tests.
	now func() time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, h *host.Host, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		host:    h,
		metrics: m,
		loc:     ResolveLocationOrLocal(cfg.Timezone),
		mux:     http.NewServeMux(),
		now:     time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
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
			w.Header().Set("WWW-Authenticate", `Basic realm="calmark", charset="UTF-8"`)
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

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", s.metrics.Handler())
	s.mux.HandleFunc("GET /api/decorations", s.handleDecorations)
	s.mux.HandleFunc("GET /api/schedule", s.handleSchedule)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("PUT /api/marks", s.handlePutMarks)
	s.mux.HandleFunc("GET /calendar", s.handleCalendar)
	s.mux.HandleFunc("GET /preview.png", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// decorationsResponse is the JSON shape of /api/decorations.
type decorationsResponse struct {
	Date string `json:"date"`
	Key  string `json:"key"`
	mark.Decorations
}

// handleDecorations returns the decorations of one date.
//
// GET /api/decorations?date=2024-02-10
func (s *Server) handleDecorations(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	t, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	d := mark.DateOf(t)

	dec, ok := s.host.Indexer().DecorationsFor(d)
	if !ok {
		writeError(w, http.StatusNotFound, "no marks on "+d.String())
		return
	}
	writeJSON(w, http.StatusOK, decorationsResponse{
		Date:        d.String(),
		Key:         d.Key(),
		Decorations: dec,
	})
}

// handleSchedule resolves a schedule item id to the day it covers.
//
// GET /api/schedule?id=2024_2_10_mark_0
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	rng, ok := mark.ScheduleRange(id, s.loc)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown schedule id")
		return
	}
	writeJSON(w, http.StatusOK, rng)
}

// handleMonth returns the decorated month grid. Year and month default to
// the current month in the configured timezone.
//
// GET /api/month?year=2024&month=2
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monthGrid(r))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.WritePage(w, s.monthGrid(r)); err != nil {
		appLog.Error("failed to render calendar page", err)
	}
}

func (s *Server) monthGrid(r *http.Request) render.Grid {
	today := mark.DateOf(s.now().In(s.loc))
	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), today.Year)
	month := parseIntDefault(q.Get("month"), today.Month)

	// One snapshot so the whole grid reflects a single rebuild.
	ix := s.host.Indexer().Snapshot()
	return render.Month(year, month, s.cfg.WeekStart, today, ix.Decorations)
}

type refreshResponse struct {
	Changed []mark.Date `json:"changed"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	changed, err := s.host.Refresh(r.Context())
	if err != nil {
		appLog.Error("api refresh failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if changed == nil {
		changed = []mark.Date{}
	}
	writeJSON(w, http.StatusOK, refreshResponse{Changed: changed})
}

// handlePutMarks replaces the marks file with the JSON array in the body
// and refreshes. The body may carry comments and trailing commas.
func (s *Server) handlePutMarks(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Edit {
		writeError(w, http.StatusForbidden, "editing is disabled")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMarksBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	std, err := hujson.Standardize(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var fms []store.FileMark
	if err := json.Unmarshal(std, &fms); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Reject bad marks before touching the file on disk.
	marks, err := store.FromFile(fms, s.loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := mark.NewIndexer().Rebuild(marks); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := store.SaveFile(s.cfg.MarksFile, fms); err != nil {
		appLog.Error("failed to save marks file", err, "path", s.cfg.MarksFile)
		writeError(w, http.StatusInternalServerError, "failed to save marks")
		return
	}
	appLog.Info("marks file replaced", "path", s.cfg.MarksFile, "marks", len(fms))

	s.handleRefresh(w, r)
}

// handlePreview serves the last captured PNG preview from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, s.cfg.Preview.Path)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ResolveLocationOrLocal loads the named zone, falling back to time.Local.
func ResolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
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
