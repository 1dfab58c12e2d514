package connect

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/golden-vcr/creds"
)

// RegisterRoutes exposes GET /authorize/start, which initiates an
// authorization-code flow and redirects the browser to the provider's consent
// page
func (m *Manager) RegisterRoutes(r *mux.Router) {
	r.Path("/authorize/start").Methods("GET").HandlerFunc(m.handleStartAuthorization)
}

func (m *Manager) handleStartAuthorization(res http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	provider := creds.Provider(q.Get("provider"))
	if provider == "" {
		provider = creds.ProviderTwitch
	}
	subkey := q.Get("key")
	if subkey == "" {
		subkey = creds.KeyIRC
	}

	authorizeUrl, err := m.BeginAuthorization(provider, subkey)
	if err != nil {
		http.Error(res, fmt.Sprintf("failed to initiate authorization: %v", err), http.StatusBadRequest)
		return
	}
	res.Header().Set("location", authorizeUrl)
	res.WriteHeader(http.StatusSeeOther)
}
