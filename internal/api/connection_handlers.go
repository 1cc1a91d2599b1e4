package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mistops/org-clone-workbench/internal/models"
)

// connectionRequest carries the token explicitly; the Connection model
// never serializes it back out.
type connectionRequest struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	BaseURL  string `json:"base_url"`
	Token    string `json:"token"`
	Insecure bool   `json:"insecure"`
}

func (s *Server) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if req.BaseURL == "" {
		writeError(w, http.StatusBadRequest, "base_url is required")
		return
	}
	if req.Token == "" {
		writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	conn := &models.Connection{
		Name:     req.Name,
		Role:     req.Role,
		BaseURL:  req.BaseURL,
		Token:    req.Token,
		Insecure: req.Insecure,
	}
	if conn.Role == "" {
		conn.Role = "source"
	}
	s.Connections.Create(conn)
	writeJSON(w, http.StatusCreated, conn)
}

func (s *Server) ListConnections(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Connections.List())
}

func (s *Server) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	existing := s.Connections.Get(id)
	if existing == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	var req connectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	conn := &models.Connection{
		ID:       id,
		Name:     req.Name,
		Role:     req.Role,
		BaseURL:  req.BaseURL,
		Token:    req.Token,
		Insecure: req.Insecure,
	}
	// An empty token keeps the stored one so updates don't have to resend it.
	if conn.Token == "" {
		conn.Token = existing.Token
	}
	if !s.Connections.Update(conn) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

func (s *Server) DeleteConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Connections.Delete(id) {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) TestConnection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	conn := s.Connections.Get(id)
	if conn == nil {
		writeError(w, http.StatusNotFound, "connection not found")
		return
	}
	if err := s.client(conn).Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}
