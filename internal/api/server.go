// Package api provides the read-only REST endpoints over the live and
// summary tables.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"vatsim_tracker/internal/pipeline"
	"vatsim_tracker/internal/scheduler"
	"vatsim_tracker/internal/storage"
)

// Server exposes system status and stored data over HTTP. All endpoints
// are reads; the pipeline is the only writer.
type Server struct {
	db       *storage.DB
	ingestor *pipeline.Ingestor
	filter   *pipeline.Filter
	sched    *scheduler.Scheduler
	port     int
	log      *zap.SugaredLogger
}

func NewServer(db *storage.DB, ing *pipeline.Ingestor, filter *pipeline.Filter, sched *scheduler.Scheduler, port int, log *zap.SugaredLogger) *Server {
	return &Server{db: db, ingestor: ing, filter: filter, sched: sched, port: port, log: log}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.requestLogger)
	r.Use(corsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/status/filters", s.handleFilterStats)
		r.Get("/flights", s.handleFlights)
		r.Get("/controllers", s.handleControllers)
		r.Get("/transceivers/{callsign}", s.handleTransceivers)
		r.Get("/summaries/flights", s.handleFlightSummaries)
		r.Get("/summaries/controllers", s.handleControllerSummaries)
	})

	return r
}

// HTTPServer wires the router into an http.Server ready to run.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debugw("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbOK := true
	if err := s.db.Ping(ctx); err != nil {
		dbOK = false
		s.log.Warnw("status ping failed", "err", err)
	}

	jobsOK := s.sched.Healthy()
	ingest := s.ingestor.Status()
	resp := map[string]any{
		"status":   "ok",
		"time":     time.Now().UTC().Format(time.RFC3339),
		"database": dbOK,
		"jobs":     jobsOK,
		"ingest":   ingest,
	}
	if !dbOK || !jobsOK {
		resp["status"] = "degraded"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	freshness := map[string]bool{"live": false}
	if ingest.LastIngestAt != nil {
		freshness["live"] = time.Since(*ingest.LastIngestAt) < 5*time.Minute
	}
	if ts, err := s.db.LatestSummaryTime(ctx); err == nil && ts != nil {
		freshness["summaries"] = time.Since(*ts) < 2*time.Hour
	}
	resp["freshness"] = freshness

	if counts, err := s.db.TableCounts(ctx); err == nil {
		resp["tables"] = counts
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFilterStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.filter.Stats().View())
}

func (s *Server) handleFlights(w http.ResponseWriter, r *http.Request) {
	flights, err := s.db.LatestFlights(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]FlightResponse, 0, len(flights))
	for i := range flights {
		results = append(results, flightToResponse(&flights[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleControllers(w http.ResponseWriter, r *http.Request) {
	controllers, err := s.db.LiveControllers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]ControllerResponse, 0, len(controllers))
	for i := range controllers {
		results = append(results, controllerToResponse(&controllers[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleTransceivers(w http.ResponseWriter, r *http.Request) {
	callsign := strings.ToUpper(chi.URLParam(r, "callsign"))
	if callsign == "" {
		writeError(w, http.StatusBadRequest, "callsign is required")
		return
	}

	since := time.Now().UTC().Add(-time.Hour)
	if v := r.URL.Query().Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid since (use RFC 3339)")
			return
		}
		since = t
	}

	samples, err := s.db.RecentTransceivers(r.Context(), callsign, since, 1000)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(samples) == 0 {
		writeError(w, http.StatusNotFound, "No transceiver samples found")
		return
	}

	results := make([]TransceiverResponse, 0, len(samples))
	for i := range samples {
		results = append(results, transceiverToResponse(&samples[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleFlightSummaries(w http.ResponseWriter, r *http.Request) {
	callsign := strings.ToUpper(r.URL.Query().Get("callsign"))
	departure := strings.ToUpper(r.URL.Query().Get("departure"))
	arrival := strings.ToUpper(r.URL.Query().Get("arrival"))
	limit, offset := pagination(r, 100)

	summaries, err := s.db.FlightSummaries(r.Context(), callsign, departure, arrival, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]FlightSummaryResponse, 0, len(summaries))
	for i := range summaries {
		results = append(results, flightSummaryToResponse(&summaries[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleControllerSummaries(w http.ResponseWriter, r *http.Request) {
	callsign := strings.ToUpper(r.URL.Query().Get("callsign"))
	limit, offset := pagination(r, 100)

	summaries, err := s.db.ControllerSummaries(r.Context(), callsign, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	results := make([]ControllerSummaryResponse, 0, len(summaries))
	for i := range summaries {
		results = append(results, controllerSummaryToResponse(&summaries[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

// pagination reads limit and offset query parameters, clamping limit to
// [1, 1000].
func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 1000 {
		limit = 1000
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
