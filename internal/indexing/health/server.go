package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vietddude/withdrawal-watcher/internal/core/domain"
	"github.com/vietddude/withdrawal-watcher/internal/indexing/stats"
)

// StatsQuery is the statistics surface served over HTTP.
type StatsQuery interface {
	ForWindow(start, end time.Time) *domain.Statistics
	ForCalendarDay(date time.Time) *domain.Statistics
	Weekly(end time.Time) *stats.WeeklySummary
}

// StatusProvider builds the system status.
type StatusProvider interface {
	SystemInfo(ctx context.Context) SystemInfo
}

// Server provides HTTP endpoints for health, metrics, status and statistics.
type Server struct {
	monitor *Monitor
	stats   StatsQuery
	status  StatusProvider
	r       chi.Router
	server  *http.Server
	log     *slog.Logger
}

// NewServer creates a new health server. stats and status may be nil, in
// which case their routes answer 404.
func NewServer(monitor *Monitor, st StatsQuery, status StatusProvider, port int) *Server {
	s := &Server{
		monitor: monitor,
		stats:   st,
		status:  status,
		log:     slog.Default().With("component", "http"),
	}
	s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleDetailed)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.status != nil {
		r.Get("/status", s.handleStatus)
	}
	if s.stats != nil {
		r.Route("/stats", func(r chi.Router) {
			r.Get("/window", s.handleWindow)
			r.Get("/day/{date}", s.handleDay)
			r.Get("/weekly", s.handleWeekly)
		})
	}
	s.r = r
}

// ServeHTTP lets tests drive the router directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.r.ServeHTTP(w, r)
}

// Start starts the HTTP server. It returns nil after Stop.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Fprintf(w, "%s", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := Aggregate(s.monitor.CheckHealth(r.Context()))
	code := http.StatusOK
	if status == StatusCritical {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]string{"status": string(status)})
}

func (s *Server) handleDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Report(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.SystemInfo(r.Context()))
}

// handleWindow serves ?start=&end= as RFC 3339 timestamps. end defaults to
// now and start to 24 hours before end.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
			return
		}
		end = t
	}
	start := end.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid start: %w", err))
			return
		}
		start = t
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, errors.New("end is before start"))
		return
	}
	writeJSON(w, http.StatusOK, NewStatsView(s.stats.ForWindow(start, end)))
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse(time.DateOnly, chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid date: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, NewStatsView(s.stats.ForCalendarDay(date)))
}

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	end := time.Now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid end: %w", err))
			return
		}
		end = t
	}
	writeJSON(w, http.StatusOK, s.stats.Weekly(end))
}
