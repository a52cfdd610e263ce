package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"calgrid/internal/calendar"
	"calgrid/internal/config"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// RecordSource supplies the current record snapshot and entity list.
type RecordSource interface {
	Records() []calendar.Record
	Entities() []model.Entity
	UpdatedAt() time.Time
}

// Refresher triggers an immediate record refresh.
type Refresher interface {
	RunOnce(ctx context.Context) error
}

// Server provides the calendar HTTP API.
//
// /api/month and /api/day are stateless: every request recomputes buckets
// and grid from the current snapshot. /api/view drives the single
// server-owned view, whose navigator and filter are guarded by viewMu.
type Server struct {
	cfg       *config.Config
	opts      calendar.Options
	records   RecordSource
	refresher Refresher
	clock     calendar.Clock
	mux       *http.ServeMux

	viewMu sync.Mutex
	view   *calendar.View
}

// NewServer constructs a new Server. A nil clock means calendar.RealClock.
func NewServer(cfg *config.Config, opts calendar.Options, records RecordSource, refresher Refresher, clock calendar.Clock) *Server {
	if clock == nil {
		clock = calendar.RealClock{}
	}
	s := &Server{
		cfg:       cfg,
		opts:      opts,
		records:   records,
		refresher: refresher,
		clock:     clock,
		mux:       http.NewServeMux(),
		view:      calendar.NewView(opts, clock),
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

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
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

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials leave auth disabled.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
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
	s.mux.HandleFunc("GET /api/entities", s.handleEntities)
	s.mux.HandleFunc("GET /api/month", s.handleMonth)
	s.mux.HandleFunc("GET /api/day", s.handleDay)
	s.mux.HandleFunc("GET /api/view", s.handleView)
	s.mux.HandleFunc("POST /api/view/{action}", s.handleViewAction)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, entitiesResponse{Entities: s.records.Entities()})
}

// handleMonth returns the grid for an arbitrary month.
//
// GET /api/month?year=2024&month=2&entity=acme
//   - year/month: default to the current month
//   - entity:     optional; empty means all entities
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	today := calendar.DateOf(s.clock.Now(), s.opts.Location)

	target := calendar.StateOf(today)
	var err error
	if target.Year, err = parseIntDefault(q.Get("year"), target.Year); err != nil {
		writeError(w, http.StatusBadRequest, "invalid year")
		return
	}
	month, err := parseIntDefault(q.Get("month"), int(target.Month))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month")
		return
	}
	target.Month = time.Month(month)

	filter := calendar.FilterFor(q.Get("entity"))
	buckets := calendar.Bucketer{Location: s.opts.Location}.Bucket(s.records.Records(), filter)
	grid, err := calendar.GridBuilder{WeekStart: s.opts.WeekStart}.Build(buckets, target, today)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidMonth) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("api month: build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build month")
		return
	}

	writeJSON(w, http.StatusOK, s.monthDTO(grid, buckets, filter, today))
}

// handleDay returns every record of one day.
//
// GET /api/day?date=2024-03-01&entity=acme
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	d, err := calendar.ParseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	// A throwaway view keeps the shared /api/view filter untouched.
	view := calendar.NewView(s.opts, s.clock)
	filter := calendar.FilterFor(q.Get("entity"))
	view.SetFilter(filter)
	cell := view.Day(s.records.Records(), d)

	writeJSON(w, http.StatusOK, dayResponse{
		Date:    d,
		IsToday: cell.IsToday,
		Filter:  filter.String(),
		Records: recordDTOs(calendar.Select(cell)),
	})
}

// handleView renders the server-owned view.
func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	s.viewMu.Lock()
	resp, err := s.renderView()
	s.viewMu.Unlock()
	if err != nil {
		appLog.Error("api view: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render view")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleViewAction applies a navigation or filter change to the view and
// returns the re-rendered month.
//
// POST /api/view/prev | next | today
// POST /api/view/filter?entity=acme   (empty entity clears the filter)
func (s *Server) handleViewAction(w http.ResponseWriter, r *http.Request) {
	s.viewMu.Lock()
	defer s.viewMu.Unlock()

	nav := s.view.Navigator()
	switch action := r.PathValue("action"); action {
	case "prev":
		nav.Prev()
	case "next":
		nav.Next()
	case "today":
		nav.Today()
	case "filter":
		s.view.SetFilter(calendar.FilterFor(r.URL.Query().Get("entity")))
	default:
		writeError(w, http.StatusNotFound, "unknown view action "+strconv.Quote(action))
		return
	}

	resp, err := s.renderView()
	if err != nil {
		appLog.Error("api view: render failed", err)
		writeError(w, http.StatusInternalServerError, "failed to render view")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// renderView must be called with viewMu held.
func (s *Server) renderView() (monthResponse, error) {
	grid, buckets, err := s.view.Render(s.records.Records())
	if err != nil {
		return monthResponse{}, err
	}
	return s.monthDTO(grid, buckets, s.view.Filter(), s.view.Navigator().TodayDate()), nil
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refresher == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	if err := s.refresher.RunOnce(r.Context()); err != nil {
		appLog.Error("api refresh: refresh reported errors", err)
		writeJSON(w, http.StatusOK, refreshResponse{
			UpdatedAt: s.records.UpdatedAt(),
			Error:     err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{UpdatedAt: s.records.UpdatedAt()})
}

func parseIntDefault(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
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
