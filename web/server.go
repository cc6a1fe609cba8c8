package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/nihatbirbudak/Hotel-Lead-Builder/facility"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/writers/csvrows"
	"github.com/nihatbirbudak/Hotel-Lead-Builder/writers/xlsxrows"
)

// JobStarter launches the background work for a queued job.
type JobStarter interface {
	StartDiscovery(job Job, uids []string, mode string, rateLimit float64)
	StartEmailCrawl(job Job, uids []string, mode string, rateLimit float64)
}

// JobSettings tune one enrichment run.
type JobSettings struct {
	Provider       string  `json:"provider"`
	RateLimit      float64 `json:"rate_limit"`
	MaxConcurrency int     `json:"max_concurrency"`
}

// JobRequest is the body of the job-start endpoints.
type JobRequest struct {
	Mode     string      `json:"mode"`
	UIDs     []string    `json:"uids"`
	Settings JobSettings `json:"settings"`
}

// Server exposes the HTTP/JSON surface.
type Server struct {
	svc     *Service
	starter JobStarter
	dbPath  string
	srv     *http.Server
	logger  *zerolog.Logger
}

// NewServer creates the HTTP server. dbPath is streamed by the SQLite export
// endpoint.
func NewServer(svc *Service, starter JobStarter, addr, dbPath string, logger *zerolog.Logger) *Server {
	s := &Server{svc: svc, starter: starter, dbPath: dbPath, logger: logger}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/facilities", s.handleFacilities)
	mux.HandleFunc("GET /api/facilities/stats", s.handleStats)
	mux.HandleFunc("GET /api/filters/types", s.handleTypes)
	mux.HandleFunc("POST /api/jobs/website-discovery", s.handleStartDiscovery)
	mux.HandleFunc("POST /api/jobs/email-crawl", s.handleStartEmailCrawl)
	mux.HandleFunc("GET /api/jobs", s.handleJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("DELETE /api/jobs/{id}", s.handleCancelJob)
	mux.HandleFunc("GET /api/export/csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/export/xlsx", s.handleExportXLSX)
	mux.HandleFunc("GET /api/export/sqlite", s.handleExportSQLite)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the route mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = s.srv.Shutdown(shutdownCtx)
	}()

	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil && s.logger != nil {
		s.logger.Debug().Err(err).Msg("response encode failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"detail": message})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	reset := r.URL.Query().Get("reset_db") == "true"

	var rows []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	summary, err := s.svc.Upload(r.Context(), rows, reset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleFacilities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	filter := FacilityFilter{
		Page:         page,
		Limit:        limit,
		City:         q.Get("city"),
		Type:         q.Get("type"),
		Search:       q.Get("search"),
		StatusFilter: q.Get("status_filter"),
	}

	result, err := s.svc.Facilities(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.svc.DocumentTypes(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if types == nil {
		types = []TypeCount{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"types": types})
}

func (s *Server) startJob(w http.ResponseWriter, r *http.Request, jobType string) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Mode == "" {
		req.Mode = "all"
	}

	job, err := s.svc.CreateJob(r.Context(), jobType)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch jobType {
	case JobTypeDiscovery:
		s.starter.StartDiscovery(job, req.UIDs, req.Mode, req.Settings.RateLimit)
	case JobTypeEmailCrawl:
		s.starter.StartEmailCrawl(job, req.UIDs, req.Mode, req.Settings.RateLimit)
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"job_id": job.ID})
}

func (s *Server) handleStartDiscovery(w http.ResponseWriter, r *http.Request) {
	s.startJob(w, r, JobTypeDiscovery)
}

func (s *Server) handleStartEmailCrawl(w http.ResponseWriter, r *http.Request) {
	s.startJob(w, r, JobTypeEmailCrawl)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.svc.Jobs(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if jobs == nil {
		jobs = []JobSummary{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.JobStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Job not found")
			return
		}

		s.writeError(w, http.StatusInternalServerError, err.Error())

		return
	}

	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	job, err := s.svc.CancelJob(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			s.writeError(w, http.StatusNotFound, "Job not found")
		case errors.Is(err, ErrJobTerminal):
			s.writeError(w, http.StatusBadRequest, "Cannot cancel job with status: "+job.Status)
		default:
			s.writeError(w, http.StatusInternalServerError, err.Error())
		}

		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"job_id":  jobID,
		"status":  StatusCancelled,
		"message": "Job cancellation requested. The job will stop after current item.",
	})
}

func (s *Server) exportFacilities(r *http.Request) ([]facility.Facility, error) {
	return s.svc.Export(r.Context(), r.URL.Query().Get("city"))
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	facilities, err := s.exportFacilities(r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="facilities_export.csv"`)

	in := make(chan *facility.Facility, len(facilities))

	for i := range facilities {
		in <- &facilities[i]
	}

	close(in)

	if err := csvrows.New(csv.NewWriter(w)).Run(r.Context(), in); err != nil && s.logger != nil {
		s.logger.Debug().Err(err).Msg("csv export failed")
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	facilities, err := s.exportFacilities(r)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="facilities_export.xlsx"`)

	if err := xlsxrows.Write(w, facilities); err != nil && s.logger != nil {
		s.logger.Debug().Err(err).Msg("xlsx export failed")
	}
}

func (s *Server) handleExportSQLite(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.dbPath); err != nil {
		s.writeError(w, http.StatusNotFound, "database file not found")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.sqlite3")
	w.Header().Set("Content-Disposition", `attachment; filename="leads.db"`)

	http.ServeFile(w, r, s.dbPath)
}
