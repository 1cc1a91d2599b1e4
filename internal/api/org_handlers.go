package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mistops/org-clone-workbench/internal/models"
)

// ListOrgs enumerates the orgs visible to a connection's token.
func (s *Server) ListOrgs(w http.ResponseWriter, r *http.Request) {
	conn := s.Connections.Get(chi.URLParam(r, "id"))
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	orgs, err := s.client(conn).ListOrgs(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if orgs == nil {
		orgs = []models.NamedRef{}
	}
	writeJSON(w, http.StatusOK, orgs)
}

// ListSites enumerates the sites of an org on a connection.
func (s *Server) ListSites(w http.ResponseWriter, r *http.Request) {
	conn := s.Connections.Get(chi.URLParam(r, "id"))
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	sites, err := s.client(conn).ListSites(r.Context(), chi.URLParam(r, "orgId"))
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if sites == nil {
		sites = []models.Resource{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// ListTemplates returns id+name pairs for the four template kinds of an
// org, so clients can build assignment selections.
func (s *Server) ListTemplates(w http.ResponseWriter, r *http.Request) {
	conn := s.Connections.Get(chi.URLParam(r, "id"))
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	client := s.client(conn)
	orgID := chi.URLParam(r, "orgId")

	endpoints := map[string]string{
		"switch":   "networktemplates",
		"wan_edge": "gatewaytemplates",
		"wlan":     "templates",
		"rf":       "rftemplates",
	}
	out := map[string][]models.NamedRef{}
	for kind, endpoint := range endpoints {
		items, err := client.Paginate(r.Context(), "/orgs/"+orgID+"/"+endpoint)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		out[kind] = models.Refs(items)
	}
	writeJSON(w, http.StatusOK, out)
}
