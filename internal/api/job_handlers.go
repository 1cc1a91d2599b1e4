package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Jobs.List())
}

func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := s.Jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// CancelJob cancels a running job. The worker observes the cancellation
// between stages, so already-issued writes still land.
func (s *Server) CancelJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job := s.Jobs.Get(id)
	if job == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if job.CurrentStatus() != "running" {
		writeError(w, http.StatusConflict, "job is not running")
		return
	}
	job.Cancel()
	job.AppendLog("CANCELLED: stopped by user")
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
