// Package status exposes a read-only summary of the credential store, so an
// operator can see at a glance which credentials exist, which are nearing
// expiry, and which are beyond saving. Token material is never included.
package status

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"

	"github.com/golden-vcr/creds/internal/store"
)

type Status struct {
	Ok          bool    `json:"ok"`
	Credentials []State `json:"credentials"`
}

type State struct {
	Key         string     `json:"key"`
	Provider    string     `json:"provider"`
	DisplayName string     `json:"display_name,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Expired     bool       `json:"expired"`
	Refreshable bool       `json:"refreshable"`
}

type Server struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

func NewServer(s *store.Store, logger *slog.Logger) *Server {
	return &Server{
		store:  s,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path("/status").Methods("GET").HandlerFunc(s.handleGetStatus)
}

// handleGetStatus (GET /status) summarizes every stored credential: the
// overall status is OK as long as no credential is sitting expired with no
// way to refresh itself
func (s *Server) handleGetStatus(res http.ResponseWriter, req *http.Request) {
	now := s.now()
	snapshot := s.store.Values()

	states := make([]State, 0, len(snapshot))
	for key, credential := range snapshot {
		states = append(states, State{
			Key:         key,
			Provider:    string(credential.Provider),
			DisplayName: credential.DisplayName,
			Scopes:      credential.Scopes,
			ExpiresAt:   credential.ExpiresAt,
			Expired:     credential.Expired(now),
			Refreshable: credential.Refreshable(),
		})
	}
	sort.Slice(states, func(i, j int) bool {
		return states[i].Key < states[j].Key
	})

	ok := true
	for _, state := range states {
		if state.Expired && !state.Refreshable {
			ok = false
			break
		}
	}

	if err := json.NewEncoder(res).Encode(Status{Ok: ok, Credentials: states}); err != nil {
		s.logger.Error("Failed to encode status response", "error", err)
		http.Error(res, err.Error(), http.StatusInternalServerError)
	}
}
