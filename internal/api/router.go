package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/mistops/org-clone-workbench/internal/metrics"
	"github.com/mistops/org-clone-workbench/internal/mist"
	"github.com/mistops/org-clone-workbench/internal/models"
)

// Server holds shared state for all API handlers.
type Server struct {
	Connections *models.ConnectionStore
	Jobs        *models.JobStore
	Reports     *ReportStore
	Log         zerolog.Logger
}

// client builds a Mist API client for a stored connection.
func (s *Server) client(conn *models.Connection) *mist.Client {
	return mist.NewClient(conn, s.Log)
}

// NewRouter builds the chi router with all API routes.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		// Connections
		r.Post("/connections", s.CreateConnection)
		r.Get("/connections", s.ListConnections)
		r.Put("/connections/{id}", s.UpdateConnection)
		r.Delete("/connections/{id}", s.DeleteConnection)
		r.Post("/connections/{id}/test", s.TestConnection)

		// Source browsing
		r.Get("/connections/{id}/orgs", s.ListOrgs)
		r.Get("/connections/{id}/orgs/{orgId}/sites", s.ListSites)
		r.Get("/connections/{id}/orgs/{orgId}/templates", s.ListTemplates)

		// Clone workflow
		r.Post("/clone/preflight", s.RunPreflight)
		r.Get("/clone/preflight/{jobId}", s.GetPreflightReport)
		r.Post("/clone/run", s.RunClone)
		r.Get("/clone/run/{jobId}", s.GetRunReport)

		// Jobs
		r.Get("/jobs", s.ListJobs)
		r.Get("/jobs/{id}", s.GetJob)
		r.Post("/jobs/{id}/cancel", s.CancelJob)
	})

	// WebSocket (outside /api to avoid JSON content-type assumptions)
	r.Get("/ws/jobs/{id}/logs", s.StreamJobLogs)

	r.Handle("/metrics", metrics.Handler())

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
