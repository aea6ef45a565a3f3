package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/omnilab/atsconsole/internal/session"
)

// Server wires a SessionManager to an HTTP mux.
type Server struct {
	manager   SessionManager
	authToken string
}

// NewServer returns a Server backed by manager. authToken, if non-empty,
// is required via the Authorization: Bearer header, the X-ATS-Token
// header, or a ?token= query parameter.
func NewServer(manager SessionManager, authToken string) *Server {
	return &Server{manager: manager, authToken: authToken}
}

// Router builds the gorilla/mux router exposing the control surface.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.authMiddleware)

	r.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/detail", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/sessions/{id}/notify", s.handleNotify).Methods(http.MethodPost)
	r.HandleFunc("/sessions/{id}/abort", s.handleAbort).Methods(http.MethodPost)

	return r
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	if r.Header.Get("X-ATS-Token") == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}
	return false
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var cfg session.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid session config", http.StatusBadRequest)
		return
	}

	id, err := s.manager.CreateSession(r.Context(), cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": id}) //nolint:errcheck
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	mask := parseFieldMask(r.URL.Query()["fields"])
	detail, ok := s.manager.GetSession(id, mask)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(detail) //nolint:errcheck
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Payload any `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid notification body", http.StatusBadRequest)
		return
	}

	accepted, found := s.manager.NotifySession(id, body.Payload)
	if !found {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !accepted {
		http.Error(w, "session is no longer accepting notifications", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if !s.manager.AbortSession(id) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// parseFieldMask turns repeated ?fields= query values (each possibly
// comma-separated) into a *session.FieldMask. No values means "no mask",
// i.e. include everything.
func parseFieldMask(values []string) *session.FieldMask {
	if len(values) == 0 {
		return nil
	}
	var paths []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				paths = append(paths, p)
			}
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return session.NewFieldMask(paths...)
}
