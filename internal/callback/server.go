package callback

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/golden-vcr/creds"
)

// acknowledgment is the fixed body shown in the user's browser tab after the
// redirect lands, regardless of outcome: operational errors surface through
// logs and events, never through this response
const acknowledgment = "Authorization received. You may now close this page.\n"

type PublishEventFunc func(event creds.AuthorizationEvent)

type Server struct {
	path         string
	logger       *slog.Logger
	publishEvent PublishEventFunc
}

func NewServer(path string, logger *slog.Logger, publishEvent PublishEventFunc) *Server {
	return &Server{
		path:         path,
		logger:       logger,
		publishEvent: publishEvent,
	}
}

func (s *Server) RegisterRoutes(r *mux.Router) {
	r.Path(s.path).Methods("GET").HandlerFunc(s.handleGetCallback)
}

func (s *Server) handleGetCallback(res http.ResponseWriter, req *http.Request) {
	// An empty query string means the request didn't come from an
	// authorization redirect: acknowledge it anyway, but publish nothing
	if req.URL.RawQuery == "" {
		s.logger.Warn("Ignoring callback request with empty query")
		s.respond(res)
		return
	}
	q := req.URL.Query()

	// If the provider reported an error (e.g. the user declined consent),
	// surface it as-is; otherwise carry the authorization code and the CSRF
	// state for the subscriber to validate
	var event creds.AuthorizationEvent
	if errorValue := q.Get("error"); errorValue != "" {
		event = creds.AuthorizationEvent{
			Error:            errorValue,
			ErrorDescription: q.Get("error_description"),
		}
		s.logger.Warn("Received authorization error callback",
			"error", event.Error,
			"errorDescription", event.ErrorDescription,
		)
	} else {
		event = creds.AuthorizationEvent{
			Code:  q.Get("code"),
			State: q.Get("state"),
		}
		s.logger.Info("Received authorization code callback", "state", event.State)
	}

	// Dispatch synchronously before responding: by the time the browser sees
	// the acknowledgment, every subscriber has run
	s.publishEvent(event)
	s.respond(res)
}

func (s *Server) respond(res http.ResponseWriter) {
	res.Header().Set("Content-Type", "text/plain; charset=utf-8")
	res.WriteHeader(http.StatusOK)
	res.Write([]byte(acknowledgment))
}
