package models

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Connection represents a user-configured Mist cloud tenant: an API base URL
// plus the token used to authenticate against it.
type Connection struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Role     string `json:"role"`     // "source" or "destination"
	BaseURL  string `json:"base_url"` // e.g. "https://api.mist.com/api/v1"
	Token    string `json:"-"`
	Insecure bool   `json:"insecure"` // skip TLS verification
}

// SameCloud reports whether two connections point at the same cloud instance,
// in which case the server-side org clone endpoint can be used.
func (c *Connection) SameCloud(other *Connection) bool {
	return strings.TrimSuffix(c.BaseURL, "/") == strings.TrimSuffix(other.BaseURL, "/")
}

// ConnectionStore is an in-memory thread-safe store for connections.
type ConnectionStore struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// NewConnectionStore creates an empty connection store.
func NewConnectionStore() *ConnectionStore {
	return &ConnectionStore{conns: make(map[string]*Connection)}
}

// Create adds a new connection, assigning it a UUID.
func (s *ConnectionStore) Create(c *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.New().String()
	s.conns[c.ID] = c
}

// Get returns a connection by ID, or nil if not found.
func (s *ConnectionStore) Get(id string) *Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conns[id]
}

// List returns all connections.
func (s *ConnectionStore) List() []*Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		result = append(result, c)
	}
	return result
}

// Update replaces an existing connection's settings.
func (s *ConnectionStore) Update(c *Connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[c.ID]; !ok {
		return false
	}
	s.conns[c.ID] = c
	return true
}

// Delete removes a connection by ID.
func (s *ConnectionStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[id]; !ok {
		return false
	}
	delete(s.conns, id)
	return true
}
