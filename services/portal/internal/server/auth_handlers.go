package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"eduportal/pkg/domain"
	"eduportal/pkg/session"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "portal.register", "rate_limited")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "portal.register", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(r, "portal.register", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "portal.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "portal.login", "rate_limited")
		return
	}
	var req credentialsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "portal.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role, ok := parseRole(req.Role)
	if !ok {
		s.audit(r, "portal.login", "fail", "reason", "unknown_role")
		writeAppError(w, r, session.ErrUnknownRole)
		return
	}
	token, user, err := s.app.Login(r.Context(), req.Username, req.Password, role)
	if err != nil {
		s.audit(r, "portal.login", "fail", "role", role, "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "portal.login", "success", "user_id", user.ID, "role", role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	raw, ok := bearerToken(r)
	if !ok {
		s.audit(r, "portal.logout", "fail", "reason", "missing_token")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(r.Context(), raw); err != nil {
		s.audit(r, "portal.logout", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "portal.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, principal domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.Me(r.Context(), principal)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// parseRole defaults to the student tab when no role is sent.
func parseRole(raw string) (domain.Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(domain.RoleUser):
		return domain.RoleUser, true
	case string(domain.RoleAdmin):
		return domain.RoleAdmin, true
	default:
		return "", false
	}
}
