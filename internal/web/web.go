// Package web serves the holiday, weekly portion and image data over HTTP.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matai/internal/calendar"
	"matai/internal/config"
	appLog "matai/internal/log"
	"matai/internal/metrics"
	"matai/internal/model"
	"matai/internal/months"
)

type HolidayService interface {
	GetHolidays(ctx context.Context) []model.HolidayEvent
}

type PortionService interface {
	Resolve(ctx context.Context, date time.Time) *model.ParashaPortion
}

type ImageService interface {
	HeaderImage(ctx context.Context) (string, error)
	ClearCache(ctx context.Context) error
}

type SnapshotStore interface {
	Clear(ctx context.Context) error
}

type MonthService interface {
	Get(ctx context.Context) months.Names
}

// Deps are the services behind the API.
type Deps struct {
	Holidays HolidayService
	Portions PortionService
	Images   ImageService
	Snapshot SnapshotStore
	Months   MonthService
}

// Server provides the HTTP API.
type Server struct {
	cfg    *config.Config
	deps   Deps
	loc    *time.Location
	now    func() time.Time
	router chi.Router
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, loc *time.Location, deps Deps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		loc:  loc,
		now:  time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if s.cfg.MetricsEnabled {
		r.Use(metrics.Middleware())
	}
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}

	r.Get("/health", s.handleHealth)
	if s.cfg.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/holidays", s.handleHolidays)
		r.Get("/holidays.ics", s.handleHolidaysICS)
		r.Get("/parasha", s.handleParasha)
		r.Get("/header-image", s.handleHeaderImage)
		r.Get("/months", s.handleMonths)
		r.Post("/cache/clear", s.handleClearCache)
	})
	return r
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
			w.Header().Set("WWW-Authenticate", `Basic realm="Matai", charset="UTF-8"`)
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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type holidayResponse struct {
	model.HolidayEvent
	DisplayDate string `json:"displayDate"`
	Countdown   string `json:"countdown"`
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	events := s.deps.Holidays.GetHolidays(ctx)
	names := s.deps.Months.Get(ctx)
	now := s.now().In(s.loc)

	resp := make([]holidayResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, holidayResponse{
			HolidayEvent: ev,
			DisplayDate:  months.FormatDate(ev.Date, now, names),
			Countdown:    months.FormatCountdown(ev.DaysLeft),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHolidaysICS(w http.ResponseWriter, r *http.Request) {
	events := s.deps.Holidays.GetHolidays(r.Context())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="matai.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.WriteICS(events, s.now())))
}

type parashaResponse struct {
	Parasha *model.ParashaPortion `json:"parasha"`
}

func (s *Server) handleParasha(w http.ResponseWriter, r *http.Request) {
	date := s.now().In(s.loc)
	if v := r.URL.Query().Get("date"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = d
	}

	writeJSON(w, http.StatusOK, parashaResponse{Parasha: s.deps.Portions.Resolve(r.Context(), date)})
}

func (s *Server) handleHeaderImage(w http.ResponseWriter, r *http.Request) {
	u, err := s.deps.Images.HeaderImage(r.Context())
	if err != nil {
		appLog.Warn("header image request interrupted", "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Server) handleMonths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Months.Get(r.Context()))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.deps.Images.ClearCache(ctx); err != nil {
		appLog.Error("clearing image cache failed", err)
		writeError(w, http.StatusInternalServerError, "failed to clear image cache")
		return
	}
	if err := s.deps.Snapshot.Clear(ctx); err != nil {
		appLog.Error("clearing holiday snapshot failed", err)
		writeError(w, http.StatusInternalServerError, "failed to clear holiday snapshot")
		return
	}
	w.WriteHeader(http.StatusNoContent)
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
