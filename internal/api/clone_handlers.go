package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/mistops/org-clone-workbench/internal/clone"
	"github.com/mistops/org-clone-workbench/internal/models"
)

// ReportStore keeps the results of finished preflight and clone jobs,
// keyed by job ID.
type ReportStore struct {
	mu         sync.RWMutex
	preflights map[string]*models.PreflightReport
	runs       map[string]*models.RunReport
}

func NewReportStore() *ReportStore {
	return &ReportStore{
		preflights: make(map[string]*models.PreflightReport),
		runs:       make(map[string]*models.RunReport),
	}
}

func (rs *ReportStore) StorePreflight(jobID string, r *models.PreflightReport) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.preflights[jobID] = r
}

func (rs *ReportStore) GetPreflight(jobID string) *models.PreflightReport {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.preflights[jobID]
}

func (rs *ReportStore) StoreRun(jobID string, r *models.RunReport) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.runs[jobID] = r
}

func (rs *ReportStore) GetRun(jobID string) *models.RunReport {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.runs[jobID]
}

type preflightRequest struct {
	SourceID string           `json:"source_id"`
	Spec     models.CloneSpec `json:"spec"`
}

// RunPreflight starts an async source-only inspection job.
func (s *Server) RunPreflight(w http.ResponseWriter, r *http.Request) {
	var req preflightRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	src := s.Connections.Get(req.SourceID)
	if src == nil {
		writeError(w, http.StatusNotFound, "source connection not found")
		return
	}

	job := s.Jobs.Create("preflight", req.SourceID)
	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)

	go func() {
		defer cancel()
		report, err := clone.Preflight(ctx, s.client(src), req.Spec, job.AppendLog)
		if err != nil {
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(err.Error())
			return
		}
		s.Reports.StorePreflight(job.ID, report)
		job.Complete()
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// GetPreflightReport returns the report of a completed preflight job.
func (s *Server) GetPreflightReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job := s.Jobs.Get(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	switch job.CurrentStatus() {
	case "running":
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "running",
			"message": "preflight is still in progress",
		})
		return
	case "failed", "cancelled":
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": job.CurrentStatus(),
			"error":  job.Error,
		})
		return
	}
	report := s.Reports.GetPreflight(jobID)
	if report == nil {
		writeError(w, http.StatusNotFound, "preflight report not found")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type cloneRequest struct {
	SourceID      string           `json:"source_id"`
	DestinationID string           `json:"destination_id"`
	Spec          models.CloneSpec `json:"spec"`
}

// RunClone starts an async clone job. When source and destination point at
// the same cloud the server-side clone path is used; otherwise the engine
// bootstraps the destination org resource by resource.
func (s *Server) RunClone(w http.ResponseWriter, r *http.Request) {
	var req cloneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	src := s.Connections.Get(req.SourceID)
	if src == nil {
		writeError(w, http.StatusNotFound, "source connection not found")
		return
	}
	dst := s.Connections.Get(req.DestinationID)
	if dst == nil {
		writeError(w, http.StatusNotFound, "destination connection not found")
		return
	}

	job := s.Jobs.Create("clone-run", req.DestinationID)
	ctx, cancel := context.WithCancel(context.Background())
	job.SetCancel(cancel)

	engine := clone.New(s.client(src), s.client(dst), req.Spec, !src.SameCloud(dst), job.AppendLog)

	go func() {
		defer cancel()
		report, err := engine.Run(ctx)
		if report != nil {
			s.Reports.StoreRun(job.ID, report)
		}
		if err != nil {
			job.AppendLog("ERROR: " + err.Error())
			job.Fail(err.Error())
			return
		}
		job.Complete()
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": job.ID})
}

// GetRunReport returns the report of a finished clone job. Cancelled and
// failed runs may still carry a partial report.
func (s *Server) GetRunReport(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	job := s.Jobs.Get(jobID)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.CurrentStatus() == "running" {
		writeJSON(w, http.StatusConflict, map[string]string{
			"status":  "running",
			"message": "clone is still in progress",
		})
		return
	}
	report := s.Reports.GetRun(jobID)
	if report == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": job.CurrentStatus(),
			"error":  job.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
