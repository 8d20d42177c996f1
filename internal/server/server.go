package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/filo/internal/config"
	"github.com/cwbudde/filo/internal/metrics"
	"github.com/cwbudde/filo/internal/solution"
	"github.com/cwbudde/filo/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager *JobManager
	store      store.Store // nil disables checkpoints
	addr       string
	server     *http.Server

	workers sync.WaitGroup
}

// NewServer creates a new HTTP server. checkpointStore may be nil.
func NewServer(addr string, checkpointStore store.Store) *Server {
	s := &Server{
		jobManager: NewJobManager(),
		store:      checkpointStore,
		addr:       addr,
	}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler with all routes and middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	handle := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, metrics.Middleware(pattern, h))
	}
	handle("/api/v1/jobs", s.handleJobs)
	handle("/api/v1/jobs/", s.handleJobsWithID)
	handle("/api/v1/checkpoints", s.handleListCheckpoints)
	handle("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	mux.Handle("/metrics", metrics.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start serves until Shutdown is called. After Shutdown it returns http.ErrServerClosed.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "addr", s.addr, "checkpoints", s.store != nil)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, cancels running jobs and waits for their workers
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	err := s.server.Shutdown(ctx)

	s.jobManager.CancelAll()
	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
	return err
}

// startJob runs the job's worker in the background
func (s *Server) startJob(job *Job) {
	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.setCancel(job.ID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer cancel()
		runJob(ctx, s.jobManager, s.store, job.ID)
	}()
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch {
	case sub == "" && r.Method == http.MethodDelete:
		s.handleDeleteJob(w, r, jobID)
	case (sub == "" || sub == "status") && r.Method == http.MethodGet:
		s.handleGetJobStatus(w, r, jobID)
	case sub == "solution" && r.Method == http.MethodGet:
		s.handleGetSolution(w, r, jobID)
	case sub == "stream" && r.Method == http.MethodGet:
		s.handleJobStream(w, r, jobID)
	case sub == "cancel" && r.Method == http.MethodPost:
		s.handleCancelJob(w, r, jobID)
	case sub == "" || sub == "status" || sub == "solution" || sub == "stream" || sub == "cancel":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// CreateJobRequest is the body of POST /api/v1/jobs. Omitted solver fields keep their defaults.
type CreateJobRequest struct {
	JobConfig
	// ResumeFrom continues from the checkpoint of an earlier job
	ResumeFrom string `json:"resumeFrom,omitempty"`
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	req := CreateJobRequest{JobConfig: JobConfig{Solver: config.Default()}}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	var checkpoint *store.Checkpoint
	if req.ResumeFrom != "" {
		if s.store == nil {
			http.Error(w, "Checkpoints are disabled", http.StatusBadRequest)
			return
		}
		var err error
		checkpoint, err = s.store.LoadCheckpoint(req.ResumeFrom)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		} else if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if req.InstancePath == "" {
			req.InstancePath = checkpoint.Config.InstancePath
			req.Solver.Parser = checkpoint.Config.Solver.Parser
		}
		if err := checkpoint.IsCompatible(req.JobConfig); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}

	if req.InstancePath == "" {
		http.Error(w, "instancePath is required", http.StatusBadRequest)
		return
	}
	if req.CheckpointInterval < 0 {
		http.Error(w, "checkpointInterval cannot be negative", http.StatusBadRequest)
		return
	}
	if err := req.Solver.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var job *Job
	if checkpoint != nil {
		job = s.jobManager.CreateResumedJob(req.JobConfig, checkpoint)
	} else {
		job = s.jobManager.CreateJob(req.JobConfig)
	}
	s.startJob(job)

	writeJSON(w, http.StatusCreated, newJobStatus(job))
}

// JobStatus is the API view of a job without its routes
type JobStatus struct {
	ID          string     `json:"id"`
	State       JobState   `json:"state"`
	Config      JobConfig  `json:"config"`
	ResumedFrom string     `json:"resumedFrom,omitempty"`
	BestCost    float64    `json:"bestCost"`
	InitialCost float64    `json:"initialCost"`
	CurrentCost float64    `json:"currentCost"`
	Routes      int        `json:"routes"`
	Iterations  int        `json:"iterations"`
	Elapsed     float64    `json:"elapsed"` // seconds
	IPS         float64    `json:"ips"`
	StartTime   time.Time  `json:"startTime"`
	EndTime     *time.Time `json:"endTime,omitempty"`
	Error       string     `json:"error,omitempty"`
}

func newJobStatus(job *Job) JobStatus {
	elapsed := job.Elapsed()
	return JobStatus{
		ID:          job.ID,
		State:       job.State,
		Config:      job.Config,
		ResumedFrom: job.ResumedFrom,
		BestCost:    job.BestCost,
		InitialCost: job.InitialCost,
		CurrentCost: job.CurrentCost,
		Routes:      len(job.Routes),
		Iterations:  job.Iterations,
		Elapsed:     elapsed.Seconds(),
		IPS:         iterationsPerSecond(job.Iterations, elapsed),
		StartTime:   job.StartTime,
		EndTime:     job.EndTime,
		Error:       job.Error,
	}
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()
	statuses := make([]JobStatus, len(jobs))
	for i, job := range jobs {
		statuses[i] = newJobStatus(job)
	}
	writeJSON(w, http.StatusOK, statuses)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newJobStatus(job))
}

// handleGetSolution handles GET /api/v1/jobs/:id/solution
func (s *Server) handleGetSolution(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if len(job.Routes) == 0 {
		http.Error(w, "No solution yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := solution.WriteRoutes(w, job.Routes, job.BestCost); err != nil {
		slog.Error("Failed to write solution", "job_id", jobID, "error", err)
	}
}

// handleCancelJob handles POST /api/v1/jobs/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job already finished", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleDeleteJob handles DELETE /api/v1/jobs/:id for finished jobs
func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.RemoveJob(jobID) {
		http.Error(w, "Job still running", http.StatusConflict)
		return
	}
	s.jobManager.broadcaster.CleanupJob(jobID)
	metrics.Forget(jobID)
	w.WriteHeader(http.StatusNoContent)
}

// handleListCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.CheckpointInfo{})
		return
	}
	infos, err := s.store.ListCheckpoints()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
