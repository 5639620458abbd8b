// Package server exposes the read API for the aggregated listings, the
// sync trigger/status endpoints, the holiday calendar, and the Prometheus
// scrape handler.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/holiday"
	"github.com/Leejhua/concert-calendar/internal/model"
	"github.com/Leejhua/concert-calendar/internal/store"
	"github.com/Leejhua/concert-calendar/internal/syncer"
)

type Server struct {
	cfg      config.ServerConfig
	events   store.EventStore
	status   *store.StatusStore
	sync     *syncer.Syncer
	registry *prometheus.Registry
	server   *http.Server
}

func New(cfg config.ServerConfig, events store.EventStore, status *store.StatusStore, sync *syncer.Syncer, registry *prometheus.Registry) *Server {
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	return &Server{
		cfg:      cfg,
		events:   events,
		status:   status,
		sync:     sync,
		registry: registry,
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/concerts", s.handleConcerts)
	mux.HandleFunc("/api/sync", s.handleSync)
	mux.HandleFunc("/api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("/api/holidays", s.handleHolidays)
	if s.registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start blocks until SIGINT/SIGTERM (delivered on stop) and shuts down
// gracefully.
func (s *Server) Start(stop <-chan struct{}) error {
	s.server = &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.routes(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("server: listening on %s", s.cfg.Listen)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return err
	case <-stop:
	}

	log.Println("server: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

type concertPage struct {
	Success    bool          `json:"success"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
	Data       []model.Event `json:"data"`
}

// handleConcerts serves the merged listing with optional city substring,
// free-text search, and month filters, sorted by start date ascending.
func (s *Server) handleConcerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	page := intParam(q.Get("page"), 1)
	pageSize := intParam(q.Get("pageSize"), 20)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	events, err := s.events.LoadAll(r.Context())
	if err != nil {
		log.Printf("server: load events: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	events = filterEvents(events, q.Get("city"), q.Get("search"), q.Get("month"))

	sort.SliceStable(events, func(i, j int) bool {
		return sortKey(events[i]) < sortKey(events[j])
	})

	total := len(events)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	pageData := events[start:end]
	if pageData == nil {
		pageData = []model.Event{}
	}

	writeJSON(w, http.StatusOK, concertPage{
		Success:    true,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
		Data:       pageData,
	})
}

func filterEvents(events []model.Event, city, search, month string) []model.Event {
	out := events
	if city != "" {
		out = keep(out, func(e model.Event) bool { return strings.Contains(e.City, city) })
	}
	if search != "" {
		needle := strings.ToLower(search)
		out = keep(out, func(e model.Event) bool {
			return strings.Contains(strings.ToLower(e.Title), needle) ||
				strings.Contains(strings.ToLower(e.Venue), needle) ||
				strings.Contains(strings.ToLower(e.City), needle) ||
				strings.Contains(strings.ToLower(e.Artist), needle)
		})
	}
	if month != "" {
		out = keep(out, func(e model.Event) bool { return model.MonthKey(e.Date) == month })
	}
	return out
}

func keep(events []model.Event, pred func(model.Event) bool) []model.Event {
	out := events[:0:0]
	for _, e := range events {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// Undated events sort last.
func sortKey(e model.Event) string {
	if d := model.StartDate(e.Date); d != "" {
		return d
	}
	return "9999.99.99"
}

type syncRequest struct {
	CurlCommand string `json:"curlCommand"`
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req syncRequest
	if r.Body != nil {
		// An empty or absent body means auto-handshake mode.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	outcome, msg := s.sync.Trigger(req.CurlCommand)
	switch outcome {
	case syncer.TriggerBusy:
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "message": msg})
	case syncer.TriggerSkipped:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg, "skipped": true})
	case syncer.TriggerBadRequest:
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": msg})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
	}
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status.Get())
}

func (s *Server) handleHolidays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "GET only", http.StatusMethodNotAllowed)
		return
	}
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.Parse("2006-01-02", d)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		writeJSON(w, http.StatusOK, holiday.DateStatus(t))
		return
	}
	writeJSON(w, http.StatusOK, holiday.All())
}

func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}
